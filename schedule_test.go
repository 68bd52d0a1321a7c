package nextride

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishs7/nextride/model"
)

func TestNextDeparturesRollsOverMidnight(t *testing.T) {
	sched := newTestSchedule(t)

	arrivals, err := sched.NextDepartures(model.AgencyTTC, "101", DepartureOptions{
		Limit: 5,
		AsOf:  testNoon,
	})
	require.NoError(t, err)
	require.Len(t, arrivals, 4)

	// Today 12:05, today's post-midnight 25:00 trip, then
	// tomorrow's repeats of both.
	assert.Equal(t, time.Date(2026, 9, 1, 12, 5, 0, 0, time.UTC), arrivals[0].When)
	assert.Equal(t, time.Date(2026, 9, 2, 1, 0, 0, 0, time.UTC), arrivals[1].When)
	assert.Equal(t, time.Date(2026, 9, 2, 12, 5, 0, 0, time.UTC), arrivals[2].When)
	assert.Equal(t, time.Date(2026, 9, 3, 1, 0, 0, 0, time.UTC), arrivals[3].When)

	for _, a := range arrivals {
		assert.False(t, a.Realtime)
	}
	assert.Equal(t, "4", arrivals[0].RouteShortName)
	assert.Equal(t, "Sheppard East", arrivals[0].Headsign)
	assert.Equal(t, "504", arrivals[1].RouteShortName)
}

func TestNextDeparturesCutoff(t *testing.T) {
	sched := newTestSchedule(t)

	arrivals, err := sched.NextDepartures(model.AgencyTTC, "101", DepartureOptions{
		Limit: 1,
		AsOf:  testNoon.Add(6 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, arrivals, 1)

	// 12:05 is in the past; the next departure is the post-midnight
	// trip.
	assert.Equal(t, time.Date(2026, 9, 2, 1, 0, 0, 0, time.UTC), arrivals[0].When)
}

func TestNextDeparturesRouteFilter(t *testing.T) {
	sched := newTestSchedule(t)

	// Zero-padded filter matches short name "4".
	arrivals, err := sched.NextDepartures(model.AgencyTTC, "101", DepartureOptions{
		Limit:       5,
		RouteFilter: "004",
		AsOf:        testNoon,
	})
	require.NoError(t, err)
	require.Len(t, arrivals, 2)
	for _, a := range arrivals {
		assert.Equal(t, "4", a.RouteShortName)
	}
}

func TestNextDeparturesOrderingInvariant(t *testing.T) {
	sched := newTestSchedule(t)

	for _, stopID := range []string{"101", "102", "300", "400"} {
		arrivals, err := sched.NextDepartures(model.AgencyTTC, stopID, DepartureOptions{
			Limit: 10,
			AsOf:  testNoon,
		})
		require.NoError(t, err)
		for i := 1; i < len(arrivals); i++ {
			assert.False(t, arrivals[i].When.Before(arrivals[i-1].When),
				"stop %s index %d", stopID, i)
		}
	}
}

func TestNextDeparturesNoService(t *testing.T) {
	sched := newTestSchedule(t)

	// Outside the calendar's date range entirely.
	arrivals, err := sched.NextDepartures(model.AgencyTTC, "101", DepartureOptions{
		Limit: 5,
		AsOf:  time.Date(2035, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, arrivals)
}

func TestRoutesServing(t *testing.T) {
	sched := newTestSchedule(t)

	routes, err := sched.RoutesServing(model.AgencyTTC, []string{"101", "102"}, testNoon, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "504"}, routes)
}

func TestRoutesServingShortWindow(t *testing.T) {
	sched := newTestSchedule(t)

	// Only the 12:05 departure falls inside a ten minute window.
	routes, err := sched.RoutesServing(model.AgencyTTC, []string{"101"}, testNoon, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, routes)
}

func TestScheduleHandleSingleFlight(t *testing.T) {
	var hydrations int32
	ready := make(chan struct{})

	handle := NewScheduleHandle(func(ctx context.Context) (*Schedule, error) {
		atomic.AddInt32(&hydrations, 1)
		<-ready
		return newTestSchedule(t), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched, err := handle.Get(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, sched)
		}()
	}

	close(ready)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hydrations))

	// And the hydrated schedule is reused afterwards.
	_, err := handle.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hydrations))
}

func TestScheduleHandleHydrationError(t *testing.T) {
	boom := fmt.Errorf("bundle missing")
	calls := 0
	handle := NewScheduleHandle(func(ctx context.Context) (*Schedule, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return newTestSchedule(t), nil
	})

	_, err := handle.Get(context.Background())
	require.Error(t, err)

	// A failed hydration doesn't poison the handle.
	sched, err := handle.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sched)
}
