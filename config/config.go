// Package config loads and validates the YAML configuration for the
// engine and its CLI: where the static timetable comes from, and the
// realtime feed endpoints per agency.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/krishs7/nextride/model"
)

const (
	DefaultStationRadiusM = 300
	DefaultTimeoutMS      = 8000
)

type Config struct {
	// IANA time zone the agencies operate in. Service dates and
	// seconds-since-midnight cutoffs are computed in this zone.
	Timezone string `yaml:"timezone" validate:"required"`

	// Radius for grouping nearby stops when the static feed lacks
	// station hierarchy. Zero means the default of 300 meters.
	StationRadiusM float64 `yaml:"station_radius_m" validate:"gte=0"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Schedule ScheduleConfig `yaml:"schedule"`

	Agencies []AgencyConfig `yaml:"agencies" validate:"required,min=1,dive"`
}

// Where the static timetable lives. Either a relational database
// previously populated by the load command, or a GTFS zip (URL or
// local path) hydrated into memory on first use.
type ScheduleConfig struct {
	DatabaseDriver string `yaml:"database_driver" validate:"omitempty,oneof=sqlite3 postgres"`
	DatabaseDSN    string `yaml:"database_dsn"`

	// Per-agency static zip sources, keyed by agency id. Used when
	// no database is configured.
	StaticURLs  map[string]string `yaml:"static_urls"`
	StaticPaths map[string]string `yaml:"static_paths"`

	// Cache file for downloaded zips. Empty disables caching.
	CachePath string `yaml:"cache_path"`
}

type AgencyConfig struct {
	ID                  string `yaml:"id" validate:"required"`
	TripUpdatesURL      string `yaml:"trip_updates_url" validate:"omitempty,url"`
	VehiclePositionsURL string `yaml:"vehicle_positions_url" validate:"omitempty,url"`
	AlertsURL           string `yaml:"alerts_url" validate:"omitempty,url"`
	MatchPolicy         string `yaml:"match_policy" validate:"omitempty,oneof=strict loose"`
	TimeoutMS           int    `yaml:"timeout_ms" validate:"gte=0"`
}

// Agency resolves the configured id through the alias table.
func (a *AgencyConfig) Agency() (model.Agency, bool) {
	return model.ParseAgency(a.ID)
}

func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(buf)
}

func Parse(buf []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	for i := range cfg.Agencies {
		if _, ok := cfg.Agencies[i].Agency(); !ok {
			return nil, fmt.Errorf("unknown agency %q", cfg.Agencies[i].ID)
		}
	}

	if cfg.Schedule.DatabaseDriver == "" &&
		len(cfg.Schedule.StaticURLs) == 0 &&
		len(cfg.Schedule.StaticPaths) == 0 {
		return nil, fmt.Errorf("schedule source required: configure a database or static zips")
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StationRadiusM == 0 {
		c.StationRadiusM = DefaultStationRadiusM
	}
	for i := range c.Agencies {
		if c.Agencies[i].TimeoutMS == 0 {
			c.Agencies[i].TimeoutMS = DefaultTimeoutMS
		}
	}
}
