package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishs7/nextride/model"
)

const validYAML = `
timezone: America/Toronto
log_level: debug
schedule:
  database_driver: sqlite3
  database_dsn: nextride.db
agencies:
  - id: ttc
    trip_updates_url: https://example.com/ttc/tripupdates
    alerts_url: https://example.com/ttc/alerts
    match_policy: strict
  - id: yrt
    trip_updates_url: https://example.com/yrt/tripupdates
    match_policy: loose
    timeout_ms: 4000
`

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "America/Toronto", cfg.Timezone)
	assert.Equal(t, float64(DefaultStationRadiusM), cfg.StationRadiusM)
	require.Len(t, cfg.Agencies, 2)

	agency, ok := cfg.Agencies[0].Agency()
	require.True(t, ok)
	assert.Equal(t, model.AgencyTTC, agency)

	// Defaults fill in where the file is silent.
	assert.Equal(t, DefaultTimeoutMS, cfg.Agencies[0].TimeoutMS)
	assert.Equal(t, 4000, cfg.Agencies[1].TimeoutMS)
}

func TestParseAgencyAlias(t *testing.T) {
	cfg, err := Parse([]byte(`
timezone: America/Toronto
schedule:
  database_driver: sqlite3
  database_dsn: nextride.db
agencies:
  - id: durham
`))
	require.NoError(t, err)

	agency, ok := cfg.Agencies[0].Agency()
	require.True(t, ok)
	assert.Equal(t, model.AgencyDRT, agency)
}

func TestParseUnknownAgency(t *testing.T) {
	_, err := Parse([]byte(`
timezone: America/Toronto
schedule:
  database_driver: sqlite3
  database_dsn: nextride.db
agencies:
  - id: metropolis
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metropolis")
}

func TestParseMissingTimezone(t *testing.T) {
	_, err := Parse([]byte(`
schedule:
  database_driver: sqlite3
  database_dsn: nextride.db
agencies:
  - id: ttc
`))
	require.Error(t, err)
}

func TestParseNoScheduleSource(t *testing.T) {
	_, err := Parse([]byte(`
timezone: America/Toronto
agencies:
  - id: ttc
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule source")
}

func TestParseStaticZipSource(t *testing.T) {
	cfg, err := Parse([]byte(`
timezone: America/Toronto
schedule:
  static_urls:
    ttc: https://example.com/ttc/gtfs.zip
agencies:
  - id: ttc
`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ttc/gtfs.zip", cfg.Schedule.StaticURLs["ttc"])
}

func TestParseBadMatchPolicy(t *testing.T) {
	_, err := Parse([]byte(`
timezone: America/Toronto
schedule:
  database_driver: sqlite3
  database_dsn: nextride.db
agencies:
  - id: ttc
    match_policy: fuzzy
`))
	require.Error(t, err)
}

func TestParseBadDriver(t *testing.T) {
	_, err := Parse([]byte(`
timezone: America/Toronto
schedule:
  database_driver: oracle
  database_dsn: whatever
agencies:
  - id: ttc
`))
	require.Error(t, err)
}
