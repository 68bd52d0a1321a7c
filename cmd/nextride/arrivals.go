package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/krishs7/nextride"
)

var (
	arrivalsRoute string
	arrivalsLimit int
)

func init() {
	arrivalsCmd.Flags().StringVarP(&arrivalsRoute, "route", "r", "", "Only show this route")
	arrivalsCmd.Flags().IntVarP(&arrivalsLimit, "limit", "l", 3, "Max departures to show")
}

var arrivalsCmd = &cobra.Command{
	Use:   "arrivals <agency> <stop>",
	Short: "Next departures from a stop",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		resp, err := engine.Arrivals(cmd.Context(), nextride.ArrivalsRequest{
			Agency:      args[0],
			StopRef:     strings.Join(args[1:], " "),
			RouteFilter: arrivalsRoute,
			Limit:       arrivalsLimit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s) via %s\n", resp.ResolvedStopName, resp.ResolvedStopID, resp.Source)
		if len(resp.Arrivals) == 0 {
			fmt.Println("no upcoming departures")
		}
		for _, a := range resp.Arrivals {
			fmt.Printf("%s  %s %s\n", a.When.Local().Format(time.Kitchen), a.RouteShortName, a.Headsign)
		}
		if len(resp.SuggestedRoutes) > 0 {
			fmt.Printf("routes here: %s\n", strings.Join(resp.SuggestedRoutes, ", "))
		}
		return nil
	},
}
