package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishs7/nextride/model"
)

// The memory and SQL backings must be indistinguishable to callers,
// so every test here runs against both.

var backends = []string{"memory", "sqlite"}

func buildStore(t *testing.T, backend string) Store {
	var store Store
	var writer Writer

	switch backend {
	case "memory":
		m := NewMemoryStore()
		store, writer = m, m
	case "sqlite":
		s, err := NewSQLStore("sqlite3", filepath.Join(t.TempDir(), "sched.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		store, writer = s, s.Writer()
	default:
		t.Fatalf("unknown backend %q", backend)
	}

	ttc := model.AgencyTTC

	for _, stop := range []*model.Stop{
		{ID: "100", Agency: ttc, Name: "Kennedy Station", Lat: 43.7325, Lon: -79.2633, LocationType: model.LocationTypeStation},
		{ID: "101", Agency: ttc, Name: "Kennedy Station - Platform 1", Lat: 43.7325, Lon: -79.2633, ParentStation: "100"},
		{ID: "102", Agency: ttc, Name: "Kennedy Station - Platform 2", Lat: 43.7326, Lon: -79.2634, ParentStation: "100"},
		{ID: "200", Agency: ttc, Name: "Queen St at Yonge St", Lat: 43.6525, Lon: -79.3790},
	} {
		require.NoError(t, writer.WriteStop(stop))
	}

	require.NoError(t, writer.WriteRoute(&model.Route{ID: "R1", Agency: ttc, ShortName: "43", LongName: "Kennedy"}))
	require.NoError(t, writer.WriteRoute(&model.Route{ID: "R2", Agency: ttc, ShortName: "501", LongName: "Queen"}))

	require.NoError(t, writer.WriteTrip(&model.Trip{ID: "T1", Agency: ttc, RouteID: "R1", ServiceID: "WKDY", Headsign: "North"}))
	require.NoError(t, writer.WriteTrip(&model.Trip{ID: "T2", Agency: ttc, RouteID: "R2", ServiceID: "SAT", Headsign: "East"}))

	// WKDY: Mon-Fri. SAT: Saturdays only.
	require.NoError(t, writer.WriteCalendar(&model.Calendar{
		Agency: ttc, ServiceID: "WKDY",
		Weekday:   1<<1 | 1<<2 | 1<<3 | 1<<4 | 1<<5,
		StartDate: "20260101", EndDate: "20261231",
	}))
	require.NoError(t, writer.WriteCalendar(&model.Calendar{
		Agency: ttc, ServiceID: "SAT",
		Weekday:   1 << 6,
		StartDate: "20260101", EndDate: "20261231",
	}))

	// 2026-09-07 is a Monday holiday: WKDY removed, SAT added.
	require.NoError(t, writer.WriteCalendarDate(&model.CalendarDate{
		Agency: ttc, ServiceID: "WKDY", Date: "20260907", ExceptionType: model.CalendarRemoved,
	}))
	require.NoError(t, writer.WriteCalendarDate(&model.CalendarDate{
		Agency: ttc, ServiceID: "SAT", Date: "20260907", ExceptionType: model.CalendarAdded,
	}))

	require.NoError(t, writer.BeginStopTimes())
	for _, st := range []*model.StopTime{
		{Agency: ttc, TripID: "T1", StopID: "101", ArrivalSec: 45000, DepartureSec: 45000},
		{Agency: ttc, TripID: "T1", StopID: "101", ArrivalSec: 43500, DepartureSec: 43500},
		{Agency: ttc, TripID: "T2", StopID: "101", ArrivalSec: 44000, DepartureSec: 44000},
		{Agency: ttc, TripID: "T2", StopID: "200", ArrivalSec: 90000, DepartureSec: 90000},
	} {
		require.NoError(t, writer.WriteStopTime(st))
	}
	require.NoError(t, writer.EndStopTimes())
	require.NoError(t, writer.Close())

	return store
}

func TestStopByID(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			stop, err := store.StopByID(model.AgencyTTC, "101")
			require.NoError(t, err)
			require.NotNil(t, stop)
			assert.Equal(t, "Kennedy Station - Platform 1", stop.Name)
			assert.Equal(t, "100", stop.ParentStation)
			assert.Equal(t, model.LocationTypeStop, stop.LocationType)

			stop, err = store.StopByID(model.AgencyTTC, "nope")
			require.NoError(t, err)
			assert.Nil(t, stop)

			// Same id, wrong agency.
			stop, err = store.StopByID(model.AgencyYRT, "101")
			require.NoError(t, err)
			assert.Nil(t, stop)
		})
	}
}

func TestSearchStopsByName(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			stops, err := store.SearchStopsByName(model.AgencyTTC, "KENNEDY", 0)
			require.NoError(t, err)
			assert.Len(t, stops, 3)

			stops, err = store.SearchStopsByName(model.AgencyTTC, "kennedy", 2)
			require.NoError(t, err)
			assert.Len(t, stops, 2)

			stops, err = store.SearchStopsByName(model.AgencyTTC, "spadina", 0)
			require.NoError(t, err)
			assert.Empty(t, stops)
		})
	}
}

func TestStopsByParent(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			children, err := store.StopsByParent(model.AgencyTTC, "100")
			require.NoError(t, err)
			require.Len(t, children, 2)
			assert.Equal(t, "101", children[0].ID)
			assert.Equal(t, "102", children[1].ID)

			children, err = store.StopsByParent(model.AgencyTTC, "200")
			require.NoError(t, err)
			assert.Empty(t, children)
		})
	}
}

func TestStopsWithin(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			stops, err := store.StopsWithin(model.AgencyTTC, BoundsAround(43.7325, -79.2633, 200))
			require.NoError(t, err)

			ids := []string{}
			for _, stop := range stops {
				ids = append(ids, stop.ID)
			}
			assert.ElementsMatch(t, []string{"100", "101", "102"}, ids)
		})
	}
}

func TestActiveServices(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			// A regular Tuesday.
			services, err := store.ActiveServices(model.AgencyTTC, "20260901")
			require.NoError(t, err)
			assert.Equal(t, []string{"WKDY"}, services)

			// A Saturday.
			services, err = store.ActiveServices(model.AgencyTTC, "20260905")
			require.NoError(t, err)
			assert.Equal(t, []string{"SAT"}, services)

			// The holiday Monday swaps WKDY out for SAT.
			services, err = store.ActiveServices(model.AgencyTTC, "20260907")
			require.NoError(t, err)
			assert.Equal(t, []string{"SAT"}, services)

			// Outside every calendar's range.
			services, err = store.ActiveServices(model.AgencyTTC, "20270901")
			require.NoError(t, err)
			assert.Empty(t, services)
		})
	}
}

func TestStopTimeEvents(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			events, err := store.StopTimeEvents(StopTimeEventFilter{
				Agency:       model.AgencyTTC,
				StopID:       "101",
				DepartureMin: -1,
				DepartureMax: -1,
			})
			require.NoError(t, err)
			require.Len(t, events, 3)

			// Ascending by departure regardless of insert order.
			assert.Equal(t, 43500, events[0].StopTime.DepartureSec)
			assert.Equal(t, 44000, events[1].StopTime.DepartureSec)
			assert.Equal(t, 45000, events[2].StopTime.DepartureSec)

			// Trip and route are joined in.
			assert.Equal(t, "North", events[0].Trip.Headsign)
			assert.Equal(t, "43", events[0].Route.ShortName)

			// Departure range.
			events, err = store.StopTimeEvents(StopTimeEventFilter{
				Agency:       model.AgencyTTC,
				StopID:       "101",
				DepartureMin: 43600,
				DepartureMax: 44500,
			})
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, 44000, events[0].StopTime.DepartureSec)

			// Service filter.
			events, err = store.StopTimeEvents(StopTimeEventFilter{
				Agency:       model.AgencyTTC,
				StopID:       "101",
				ServiceIDs:   []string{"WKDY"},
				DepartureMin: -1,
				DepartureMax: -1,
			})
			require.NoError(t, err)
			assert.Len(t, events, 2)

			// Empty non-nil service set matches nothing.
			events, err = store.StopTimeEvents(StopTimeEventFilter{
				Agency:       model.AgencyTTC,
				StopID:       "101",
				ServiceIDs:   []string{},
				DepartureMin: -1,
				DepartureMax: -1,
			})
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestRoutesAt(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store := buildStore(t, backend)

			routes, err := store.RoutesAt(model.AgencyTTC, "101", nil, 0, 86400)
			require.NoError(t, err)
			assert.Equal(t, []string{"43", "501"}, routes)

			routes, err = store.RoutesAt(model.AgencyTTC, "101", []string{"WKDY"}, 0, 86400)
			require.NoError(t, err)
			assert.Equal(t, []string{"43"}, routes)

			routes, err = store.RoutesAt(model.AgencyTTC, "101", nil, 44500, 86400)
			require.NoError(t, err)
			assert.Equal(t, []string{"43"}, routes)
		})
	}
}
