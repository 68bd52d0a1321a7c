package nextride

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
)

// Schedule answers "what departs next" from the static timetable
// alone. Realtime never enters here; the engine layers it on top.
type Schedule struct {
	store storage.Store
	tz    *time.Location
}

func NewSchedule(store storage.Store, tz *time.Location) *Schedule {
	return &Schedule{store: store, tz: tz}
}

func (s *Schedule) Store() storage.Store {
	return s.store
}

func (s *Schedule) Location() *time.Location {
	return s.tz
}

type DepartureOptions struct {
	Limit       int
	RouteFilter string

	// Zero means now.
	AsOf time.Time
}

const DefaultDepartureLimit = 3

// NextDepartures returns upcoming scheduled departures from the stop,
// ascending by time, realtime flag always false. If today's remaining
// service can't fill the limit, tomorrow's early departures are
// appended, which gives a rolling look-ahead across midnight.
func (s *Schedule) NextDepartures(agency model.Agency, stopID string, opts DepartureOptions) ([]*model.Arrival, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultDepartureLimit
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	local := asOf.In(s.tz)

	midnight := serviceMidnight(local)
	cutoff := int(local.Sub(midnight) / time.Second)

	arrivals, err := s.departuresOn(agency, stopID, local, cutoff, opts.RouteFilter)
	if err != nil {
		return nil, err
	}

	if len(arrivals) < limit {
		tomorrow := local.AddDate(0, 0, 1)
		more, err := s.departuresOn(agency, stopID, tomorrow, 0, opts.RouteFilter)
		if err != nil {
			return nil, err
		}
		arrivals = append(arrivals, more...)
	}

	// Today's post-midnight service (departure seconds past 86400)
	// can land later than tomorrow's first departures.
	sort.Slice(arrivals, func(i, j int) bool {
		return arrivals[i].When.Before(arrivals[j].When)
	})

	if len(arrivals) > limit {
		arrivals = arrivals[:limit]
	}
	return arrivals, nil
}

func (s *Schedule) departuresOn(agency model.Agency, stopID string, day time.Time, cutoffSec int, routeFilter string) ([]*model.Arrival, error) {
	date := day.Format("20060102")
	services, err := s.store.ActiveServices(agency, date)
	if err != nil {
		return nil, fmt.Errorf("resolving active services: %w", err)
	}
	if len(services) == 0 {
		return nil, nil
	}

	events, err := s.store.StopTimeEvents(storage.StopTimeEventFilter{
		Agency:       agency,
		StopID:       stopID,
		ServiceIDs:   services,
		DepartureMin: cutoffSec,
		DepartureMax: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("querying stop times: %w", err)
	}

	midnight := serviceMidnight(day)

	arrivals := []*model.Arrival{}
	for _, ev := range events {
		shortName := ""
		if ev.Route != nil {
			shortName = ev.Route.ShortName
		}
		if routeFilter != "" && !routeKeyMatches(routeFilter, shortName) {
			continue
		}
		arrivals = append(arrivals, &model.Arrival{
			When:           midnight.Add(time.Duration(ev.StopTime.DepartureSec) * time.Second),
			Realtime:       false,
			RouteShortName: shortName,
			Headsign:       ev.Trip.Headsign,
		})
	}
	return arrivals, nil
}

// RoutesServing returns the distinct route short names with a
// departure from any of the stops within the look-ahead window,
// sorted the way riders read route lists.
func (s *Schedule) RoutesServing(agency model.Agency, stopIDs []string, asOf time.Time, window time.Duration) ([]string, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	local := asOf.In(s.tz)
	midnight := serviceMidnight(local)
	cutoff := int(local.Sub(midnight) / time.Second)
	windowSec := int(window / time.Second)

	seen := map[string]bool{}

	collect := func(day time.Time, fromSec, toSec int) error {
		date := day.Format("20060102")
		services, err := s.store.ActiveServices(agency, date)
		if err != nil {
			return fmt.Errorf("resolving active services: %w", err)
		}
		if len(services) == 0 {
			return nil
		}
		for _, stopID := range stopIDs {
			names, err := s.store.RoutesAt(agency, stopID, services, fromSec, toSec)
			if err != nil {
				return fmt.Errorf("listing routes at %s: %w", stopID, err)
			}
			for _, name := range names {
				seen[name] = true
			}
		}
		return nil
	}

	if err := collect(local, cutoff, cutoff+windowSec); err != nil {
		return nil, err
	}
	// The remainder of the window spills into tomorrow's service day.
	if spill := cutoff + windowSec - 86400; spill > 0 {
		if err := collect(local.AddDate(0, 0, 1), 0, spill); err != nil {
			return nil, err
		}
	}

	routes := make([]string, 0, len(seen))
	for name := range seen {
		routes = append(routes, name)
	}
	sort.Slice(routes, func(i, j int) bool { return routeLess(routes[i], routes[j]) })
	return routes, nil
}

// Midnight computed as noon minus 12 hours, so a DST transition
// between midnight and noon can't shift the service day.
func serviceMidnight(day time.Time) time.Time {
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, day.Location())
	return noon.Add(-12 * time.Hour)
}

// ScheduleHandle lazily builds the Schedule on first use. Concurrent
// first requests share one in-flight hydration instead of each
// triggering their own bulk load.
type ScheduleHandle struct {
	hydrate func(ctx context.Context) (*Schedule, error)
	group   singleflight.Group

	mu    sync.Mutex
	sched *Schedule
}

func NewScheduleHandle(hydrate func(ctx context.Context) (*Schedule, error)) *ScheduleHandle {
	return &ScheduleHandle{hydrate: hydrate}
}

// NewStaticHandle wraps an already-built Schedule, for callers whose
// store needs no hydration (a database backing, or tests).
func NewStaticHandle(sched *Schedule) *ScheduleHandle {
	return &ScheduleHandle{sched: sched}
}

func (h *ScheduleHandle) Get(ctx context.Context) (*Schedule, error) {
	h.mu.Lock()
	sched := h.sched
	h.mu.Unlock()
	if sched != nil {
		return sched, nil
	}

	v, err, _ := h.group.Do("hydrate", func() (interface{}, error) {
		h.mu.Lock()
		cached := h.sched
		h.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		sched, err := h.hydrate(ctx)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		h.sched = sched
		h.mu.Unlock()
		return sched, nil
	})
	if err != nil {
		return nil, fmt.Errorf("hydrating schedule: %w", err)
	}
	return v.(*Schedule), nil
}
