package nextride

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishs7/nextride/model"
)

func TestExpandStationNode(t *testing.T) {
	store := newTestStore(t)

	group, err := ExpandStopGroup(store, model.AgencyTTC, "100", 300)
	require.NoError(t, err)

	assert.Equal(t, "100", group[0])
	assert.ElementsMatch(t, []string{"100", "101", "102"}, group)
}

func TestExpandPlatformToSiblings(t *testing.T) {
	store := newTestStore(t)

	group, err := ExpandStopGroup(store, model.AgencyTTC, "101", 300)
	require.NoError(t, err)

	assert.Equal(t, "101", group[0])
	assert.ElementsMatch(t, []string{"101", "102", "100"}, group)
}

func TestExpandProximityFallback(t *testing.T) {
	store := newTestStore(t)

	// Main Street Station has no hierarchy metadata but the name
	// says station, so nearby stops are grouped in.
	group, err := ExpandStopGroup(store, model.AgencyTTC, "400", 300)
	require.NoError(t, err)

	assert.Equal(t, "400", group[0])
	assert.Contains(t, group, "401")
	assert.NotContains(t, group, "402")
}

func TestExpandOrdinaryStop(t *testing.T) {
	store := newTestStore(t)

	// No station in the name, no hierarchy: expands to itself.
	group, err := ExpandStopGroup(store, model.AgencyTTC, "300", 300)
	require.NoError(t, err)
	assert.Equal(t, []string{"300"}, group)
}

func TestExpandUnknownStop(t *testing.T) {
	store := newTestStore(t)

	group, err := ExpandStopGroup(store, model.AgencyTTC, "999", 300)
	require.NoError(t, err)
	assert.Equal(t, []string{"999"}, group)
}

func TestExpandIdempotent(t *testing.T) {
	store := newTestStore(t)

	for _, stopID := range []string{"100", "101", "300", "400"} {
		first, err := ExpandStopGroup(store, model.AgencyTTC, stopID, 300)
		require.NoError(t, err)
		second, err := ExpandStopGroup(store, model.AgencyTTC, stopID, 300)
		require.NoError(t, err)

		assert.Equal(t, first, second, "stop %s", stopID)
		assert.Contains(t, first, stopID, "stop %s", stopID)
	}
}

func TestNameSuggestsStation(t *testing.T) {
	assert.True(t, nameSuggestsStation("Main Street Station"))
	assert.True(t, nameSuggestsStation("Kennedy Stn"))
	assert.False(t, nameSuggestsStation("Stanley Ave"))
	assert.False(t, nameSuggestsStation("Kingstn Rd"))
}
