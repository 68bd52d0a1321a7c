package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/krishs7/nextride"
	"github.com/krishs7/nextride/config"
	"github.com/krishs7/nextride/downloader"
	"github.com/krishs7/nextride/internal/logging"
	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/parse"
	"github.com/krishs7/nextride/storage"
)

var rootCmd = &cobra.Command{
	Use:          "nextride",
	Short:        "Next departures and alerts for Toronto-area transit",
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "nextride.yaml", "Config file")
	rootCmd.AddCommand(arrivalsCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(stopsCmd)
	rootCmd.AddCommand(loadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Builds the engine the config describes: a database-backed schedule
// when one is configured, otherwise an in-memory schedule hydrated
// from the static zips on first use.
func buildEngine(cfg *config.Config) (*nextride.Engine, error) {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	logger := logging.New(cfg.LogLevel)

	var handle *nextride.ScheduleHandle
	if cfg.Schedule.DatabaseDriver != "" {
		store, err := storage.NewSQLStore(cfg.Schedule.DatabaseDriver, cfg.Schedule.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("opening schedule database: %w", err)
		}
		handle = nextride.NewStaticHandle(nextride.NewSchedule(store, tz))
	} else {
		handle = nextride.NewScheduleHandle(func(ctx context.Context) (*nextride.Schedule, error) {
			store, err := hydrateMemoryStore(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return nextride.NewSchedule(store, tz), nil
		})
	}

	var dl downloader.Downloader
	if cfg.Schedule.CachePath != "" {
		dl, err = downloader.NewFilesystem(cfg.Schedule.CachePath)
		if err != nil {
			return nil, fmt.Errorf("creating feed cache: %w", err)
		}
	} else {
		dl = downloader.NewMemory()
	}

	adapters := []*nextride.Adapter{}
	for _, ac := range cfg.Agencies {
		agency, _ := ac.Agency()
		policy, _ := model.ParseMatchPolicy(ac.MatchPolicy)
		adapters = append(adapters, nextride.NewAdapter(nextride.AdapterConfig{
			Agency:         agency,
			TripUpdatesURL: ac.TripUpdatesURL,
			AlertsURL:      ac.AlertsURL,
			Policy:         policy,
			Timeout:        time.Duration(ac.TimeoutMS) * time.Millisecond,
		}, dl, logger))
	}

	return nextride.NewEngine(handle, adapters, nextride.EngineOptions{
		StationRadiusM: cfg.StationRadiusM,
		Logger:         logger,
	}), nil
}

// Loads every configured static zip into one in-memory store.
func hydrateMemoryStore(ctx context.Context, cfg *config.Config) (*storage.MemoryStore, error) {
	store := storage.NewMemoryStore()
	loaded := false

	for _, ac := range cfg.Agencies {
		agency, _ := ac.Agency()

		buf, err := fetchStaticZip(ctx, cfg, ac.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching static feed for %s: %w", ac.ID, err)
		}
		if buf == nil {
			continue
		}

		if err := parse.ParseStatic(store, agency, buf); err != nil {
			return nil, fmt.Errorf("loading static feed for %s: %w", ac.ID, err)
		}
		loaded = true
	}

	if !loaded {
		return nil, fmt.Errorf("no static feeds configured")
	}
	return store, nil
}

func fetchStaticZip(ctx context.Context, cfg *config.Config, agencyID string) ([]byte, error) {
	if path, ok := cfg.Schedule.StaticPaths[agencyID]; ok {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return buf, nil
	}

	url, ok := cfg.Schedule.StaticURLs[agencyID]
	if !ok {
		return nil, nil
	}

	var dl downloader.Downloader
	if cfg.Schedule.CachePath != "" {
		fs, err := downloader.NewFilesystem(cfg.Schedule.CachePath)
		if err != nil {
			return nil, err
		}
		dl = fs
	} else {
		dl = downloader.NewMemory()
	}

	// Static bundles change rarely; cache for a day.
	return dl.Get(ctx, url, nil, downloader.GetOptions{
		Timeout:  5 * time.Minute,
		Cache:    true,
		CacheTTL: 24 * time.Hour,
	})
}

func fetchStaticZipFromURL(ctx context.Context, url string) ([]byte, error) {
	return downloader.HTTPGet(ctx, url, nil, downloader.GetOptions{
		Timeout: 5 * time.Minute,
	})
}
