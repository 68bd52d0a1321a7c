package storage

import (
	"github.com/krishs7/nextride/model"
)

// Store is the read side of the schedule data. Two equivalent
// backings exist: MemoryStore, built once from a parsed timetable
// bundle, and SQLStore on a relational database. Callers must not be
// able to tell them apart except by latency.
//
// All records are read-only from the engine's perspective. A missing
// stop is reported as a nil result, not an error.
type Store interface {
	// StopByID returns the stop, or nil if the agency has no stop
	// with that id.
	StopByID(agency model.Agency, stopID string) (*model.Stop, error)

	// SearchStopsByName returns stops whose name contains the
	// query, case-insensitive, capped at limit (pass 0 for the
	// backing's default cap).
	SearchStopsByName(agency model.Agency, query string, limit int) ([]*model.Stop, error)

	// StopsByParent returns all stops whose parent_station is the
	// given stop id.
	StopsByParent(agency model.Agency, parentID string) ([]*model.Stop, error)

	// StopsWithin returns stops inside the bounding box. Callers
	// that need a radius filter the results by distance.
	StopsWithin(agency model.Agency, bounds Bounds) ([]*model.Stop, error)

	// ActiveServices returns service ids active on the given
	// date (YYYYMMDD): weekday+range calendars, plus added
	// exceptions, minus removed exceptions.
	ActiveServices(agency model.Agency, date string) ([]string, error)

	// StopTimeEvents returns stop_time rows joined with their trip
	// and route, matching the filter, sorted ascending by
	// departure seconds.
	StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error)

	// RoutesAt returns the distinct route short names with a
	// departure from the stop in [fromSec, toSec], restricted to
	// the given services.
	RoutesAt(agency model.Agency, stopID string, serviceIDs []string, fromSec, toSec int) ([]string, error)
}

// Writer is the bulk-load side, fed by parse.ParseStatic. As
// stop_times tends to be very large, BeginStopTimes/EndStopTimes
// bracket all WriteStopTime calls to allow batching.
type Writer interface {
	WriteStop(stop *model.Stop) error
	WriteRoute(route *model.Route) error
	WriteTrip(trip *model.Trip) error
	WriteCalendar(cal *model.Calendar) error
	WriteCalendarDate(cd *model.CalendarDate) error
	BeginStopTimes() error
	WriteStopTime(st *model.StopTime) error
	EndStopTimes() error
	Close() error
}

// Filter for StopTimeEvents.
type StopTimeEventFilter struct {
	Agency model.Agency

	// Limit results to departures from this stop.
	StopID string

	// Limit results to trips on these services. Nil means no
	// service filtering; an empty non-nil slice matches nothing.
	ServiceIDs []string

	// Departure range in seconds since local midnight,
	// inclusive. Pass -1 to leave an end unbounded.
	DepartureMin int
	DepartureMax int
}

// A stop_time row with its trip and route resolved.
type StopTimeEvent struct {
	StopTime *model.StopTime
	Trip     *model.Trip
	Route    *model.Route
}
