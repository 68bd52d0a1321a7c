package storage

import (
	"sort"
	"strings"
	"time"

	"github.com/tidwall/rtree"

	"github.com/krishs7/nextride/model"
)

// In memory implementation of Store. Built once by a bulk load and
// read-only afterwards; no locking is required for queries.

const defaultSearchCap = 200

type MemoryStore struct {
	agencies map[model.Agency]*memoryAgency
}

type memoryAgency struct {
	stops           map[string]*model.Stop
	stopsByParent   map[string][]*model.Stop
	routes          map[string]*model.Route
	trips           map[string]*model.Trip
	stopTimesByStop map[string][]*model.StopTime
	calendars       map[string]*model.Calendar
	calendarDates   map[string][]*model.CalendarDate
	tree            rtree.RTreeG[*model.Stop]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agencies: map[model.Agency]*memoryAgency{},
	}
}

func (s *MemoryStore) agency(a model.Agency) *memoryAgency {
	ag, ok := s.agencies[a]
	if !ok {
		ag = &memoryAgency{
			stops:           map[string]*model.Stop{},
			stopsByParent:   map[string][]*model.Stop{},
			routes:          map[string]*model.Route{},
			trips:           map[string]*model.Trip{},
			stopTimesByStop: map[string][]*model.StopTime{},
			calendars:       map[string]*model.Calendar{},
			calendarDates:   map[string][]*model.CalendarDate{},
		}
		s.agencies[a] = ag
	}
	return ag
}

// Writer side

func (s *MemoryStore) WriteStop(stop *model.Stop) error {
	ag := s.agency(stop.Agency)
	ag.stops[stop.ID] = stop
	if stop.ParentStation != "" {
		ag.stopsByParent[stop.ParentStation] = append(ag.stopsByParent[stop.ParentStation], stop)
	}
	if stop.Lat != 0 || stop.Lon != 0 {
		p := [2]float64{stop.Lon, stop.Lat}
		ag.tree.Insert(p, p, stop)
	}
	return nil
}

func (s *MemoryStore) WriteRoute(route *model.Route) error {
	s.agency(route.Agency).routes[route.ID] = route
	return nil
}

func (s *MemoryStore) WriteTrip(trip *model.Trip) error {
	s.agency(trip.Agency).trips[trip.ID] = trip
	return nil
}

func (s *MemoryStore) WriteCalendar(cal *model.Calendar) error {
	s.agency(cal.Agency).calendars[cal.ServiceID] = cal
	return nil
}

func (s *MemoryStore) WriteCalendarDate(cd *model.CalendarDate) error {
	ag := s.agency(cd.Agency)
	ag.calendarDates[cd.ServiceID] = append(ag.calendarDates[cd.ServiceID], cd)
	return nil
}

func (s *MemoryStore) BeginStopTimes() error {
	return nil
}

func (s *MemoryStore) WriteStopTime(st *model.StopTime) error {
	ag := s.agency(st.Agency)
	ag.stopTimesByStop[st.StopID] = append(ag.stopTimesByStop[st.StopID], st)
	return nil
}

func (s *MemoryStore) EndStopTimes() error {
	// Per-stop entries must be retrievable sorted ascending by
	// departure.
	for _, ag := range s.agencies {
		for _, sts := range ag.stopTimesByStop {
			sort.Slice(sts, func(i, j int) bool {
				return sts[i].DepartureSec < sts[j].DepartureSec
			})
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Store side

func (s *MemoryStore) StopByID(agency model.Agency, stopID string) (*model.Stop, error) {
	ag, ok := s.agencies[agency]
	if !ok {
		return nil, nil
	}
	return ag.stops[stopID], nil
}

func (s *MemoryStore) SearchStopsByName(agency model.Agency, query string, limit int) ([]*model.Stop, error) {
	ag, ok := s.agencies[agency]
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchCap
	}

	q := strings.ToLower(query)
	matches := []*model.Stop{}
	for _, stop := range ag.stops {
		if strings.Contains(strings.ToLower(stop.Name), q) {
			matches = append(matches, stop)
		}
	}

	// Deterministic order before capping, as a database backing
	// would give.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) StopsByParent(agency model.Agency, parentID string) ([]*model.Stop, error) {
	ag, ok := s.agencies[agency]
	if !ok {
		return nil, nil
	}
	children := append([]*model.Stop{}, ag.stopsByParent[parentID]...)
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (s *MemoryStore) StopsWithin(agency model.Agency, bounds Bounds) ([]*model.Stop, error) {
	ag, ok := s.agencies[agency]
	if !ok {
		return nil, nil
	}

	stops := []*model.Stop{}
	ag.tree.Search(
		[2]float64{bounds.MinLon, bounds.MinLat},
		[2]float64{bounds.MaxLon, bounds.MaxLat},
		func(min, max [2]float64, stop *model.Stop) bool {
			stops = append(stops, stop)
			return true
		},
	)
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	return stops, nil
}

func (s *MemoryStore) ActiveServices(agency model.Agency, date string) ([]string, error) {
	ag, ok := s.agencies[agency]
	if !ok {
		return nil, nil
	}

	parsed, err := time.Parse("20060102", date)
	if err != nil {
		return nil, err
	}

	active := map[string]bool{}
	for _, cal := range ag.calendars {
		if cal.Weekday&(1<<parsed.Weekday()) == 0 {
			continue
		}
		if cal.StartDate > date || cal.EndDate < date {
			continue
		}
		active[cal.ServiceID] = true
	}

	for _, cds := range ag.calendarDates {
		for _, cd := range cds {
			if cd.Date != date {
				continue
			}
			switch cd.ExceptionType {
			case model.CalendarAdded:
				active[cd.ServiceID] = true
			case model.CalendarRemoved:
				active[cd.ServiceID] = false
			}
		}
	}

	serviceIDs := []string{}
	for serviceID, on := range active {
		if on {
			serviceIDs = append(serviceIDs, serviceID)
		}
	}
	sort.Strings(serviceIDs)
	return serviceIDs, nil
}

func (s *MemoryStore) StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error) {
	ag, ok := s.agencies[filter.Agency]
	if !ok {
		return []*StopTimeEvent{}, nil
	}

	var services map[string]bool
	if filter.ServiceIDs != nil {
		services = map[string]bool{}
		for _, id := range filter.ServiceIDs {
			services[id] = true
		}
	}

	events := []*StopTimeEvent{}
	for _, st := range ag.stopTimesByStop[filter.StopID] {
		if filter.DepartureMin >= 0 && st.DepartureSec < filter.DepartureMin {
			continue
		}
		if filter.DepartureMax >= 0 && st.DepartureSec > filter.DepartureMax {
			continue
		}

		trip := ag.trips[st.TripID]
		if trip == nil {
			continue
		}
		if services != nil && !services[trip.ServiceID] {
			continue
		}

		events = append(events, &StopTimeEvent{
			StopTime: st,
			Trip:     trip,
			Route:    ag.routes[trip.RouteID],
		})
	}

	// stopTimesByStop is already sorted by departure.
	return events, nil
}

func (s *MemoryStore) RoutesAt(agency model.Agency, stopID string, serviceIDs []string, fromSec, toSec int) ([]string, error) {
	events, err := s.StopTimeEvents(StopTimeEventFilter{
		Agency:       agency,
		StopID:       stopID,
		ServiceIDs:   serviceIDs,
		DepartureMin: fromSec,
		DepartureMax: toSec,
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	names := []string{}
	for _, ev := range events {
		if ev.Route == nil || ev.Route.ShortName == "" {
			continue
		}
		if !seen[ev.Route.ShortName] {
			seen[ev.Route.ShortName] = true
			names = append(names, ev.Route.ShortName)
		}
	}
	sort.Strings(names)
	return names, nil
}
