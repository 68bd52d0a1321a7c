package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/parse"
	"github.com/krishs7/nextride/storage"
)

var loadCmd = &cobra.Command{
	Use:   "load <agency> <zip>",
	Short: "Load a static GTFS zip into the configured database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agency, ok := model.ParseAgency(args[0])
		if !ok {
			return fmt.Errorf("unknown agency %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Schedule.DatabaseDriver == "" {
			return fmt.Errorf("no schedule database configured")
		}

		var buf []byte
		if strings.HasPrefix(args[1], "http://") || strings.HasPrefix(args[1], "https://") {
			buf, err = fetchStaticZipFromURL(cmd.Context(), args[1])
		} else {
			buf, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("reading zip: %w", err)
		}

		store, err := storage.NewSQLStore(cfg.Schedule.DatabaseDriver, cfg.Schedule.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("opening schedule database: %w", err)
		}
		defer store.Close()

		if err := parse.ParseStatic(store.Writer(), agency, buf); err != nil {
			return fmt.Errorf("loading static feed: %w", err)
		}

		fmt.Printf("loaded %s static feed (%d bytes)\n", agency, len(buf))
		return nil
	},
}
