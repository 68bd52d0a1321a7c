package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krishs7/nextride"
	"github.com/krishs7/nextride/model"
)

var stopsLimit int

func init() {
	stopsCmd.Flags().IntVarP(&stopsLimit, "limit", "l", 10, "Max candidates to show")
}

var stopsCmd = &cobra.Command{
	Use:   "stops <agency> <query>",
	Short: "Search stops by name or id",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agency, ok := model.ParseAgency(args[0])
		if !ok {
			return fmt.Errorf("unknown agency %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		sched, err := engine.Schedule(cmd.Context())
		if err != nil {
			return err
		}

		candidates, err := nextride.NewResolver(sched.Store()).Resolve(
			agency, strings.Join(args[1:], " "), stopsLimit)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("no matching stops")
			return nil
		}
		for _, c := range candidates {
			fmt.Printf("%-12s %s\n", c.ID, c.Name)
		}
		return nil
	},
}
