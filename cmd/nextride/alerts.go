package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/krishs7/nextride"
)

var (
	alertsStop   string
	alertsRoute  string
	alertsWindow int
)

func init() {
	alertsCmd.Flags().StringVarP(&alertsStop, "stop", "s", "", "Scope alerts to this stop")
	alertsCmd.Flags().StringVarP(&alertsRoute, "route", "r", "", "Scope alerts to this route")
	alertsCmd.Flags().IntVarP(&alertsWindow, "window", "w", 90, "Activity window in minutes around now")
}

var alertsCmd = &cobra.Command{
	Use:   "alerts <agency>",
	Short: "Current service alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		alerts, err := engine.Alerts(cmd.Context(), nextride.AlertsRequest{
			Agency:      args[0],
			StopRef:     alertsStop,
			RouteFilter: alertsRoute,
			Window:      time.Duration(alertsWindow) * time.Minute,
		})
		if err != nil {
			return err
		}

		if len(alerts) == 0 {
			fmt.Println("no alerts")
			return nil
		}
		for _, a := range alerts {
			fmt.Printf("[%s/%s] %s\n", a.Cause, a.Effect, a.Header)
			if a.Description != "" {
				fmt.Printf("  %s\n", a.Description)
			}
		}
		return nil
	},
}
