package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/krishs7/nextride/model"
)

// SQL implementation of Store. The same code serves both SQLite
// (driver "sqlite3") and Postgres (driver "postgres"); only the
// placeholder style differs.

type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS stops (
    agency TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
    location_type INT NOT NULL,
    parent_station TEXT NOT NULL,
PRIMARY KEY (agency, id)
);

CREATE TABLE IF NOT EXISTS routes (
    agency TEXT NOT NULL,
    id TEXT NOT NULL,
    short_name TEXT NOT NULL,
    long_name TEXT NOT NULL,
PRIMARY KEY (agency, id)
);

CREATE TABLE IF NOT EXISTS trips (
    agency TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT NOT NULL,
PRIMARY KEY (agency, id)
);

CREATE TABLE IF NOT EXISTS stop_times (
    agency TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    arrival_seconds INT NOT NULL,
    departure_seconds INT NOT NULL
);

CREATE INDEX IF NOT EXISTS stop_times_by_stop
    ON stop_times (agency, stop_id, departure_seconds);

CREATE TABLE IF NOT EXISTS calendar (
    agency TEXT NOT NULL,
    service_id TEXT NOT NULL,
    weekday INT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
PRIMARY KEY (agency, service_id)
);

CREATE TABLE IF NOT EXISTS calendar_dates (
    agency TEXT NOT NULL,
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INT NOT NULL
);

CREATE INDEX IF NOT EXISTS calendar_dates_by_date
    ON calendar_dates (agency, date);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *SQLStore) StopByID(agency model.Agency, stopID string) (*model.Stop, error) {
	row := s.db.QueryRow(s.bind(`
SELECT id, name, lat, lon, location_type, parent_station
FROM stops
WHERE agency = ? AND id = ?`), string(agency), stopID)

	stop := model.Stop{Agency: agency}
	var locType int
	err := row.Scan(&stop.ID, &stop.Name, &stop.Lat, &stop.Lon, &locType, &stop.ParentStation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning stop: %w", err)
	}
	stop.LocationType = model.LocationType(locType)
	return &stop, nil
}

func (s *SQLStore) SearchStopsByName(agency model.Agency, query string, limit int) ([]*model.Stop, error) {
	if limit <= 0 {
		limit = defaultSearchCap
	}

	rows, err := s.db.Query(s.bind(`
SELECT id, name, lat, lon, location_type, parent_station
FROM stops
WHERE agency = ? AND lower(name) LIKE ?
ORDER BY name, id
LIMIT ?`), string(agency), "%"+strings.ToLower(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching stops: %w", err)
	}
	defer rows.Close()

	return s.scanStops(agency, rows)
}

func (s *SQLStore) StopsByParent(agency model.Agency, parentID string) ([]*model.Stop, error) {
	rows, err := s.db.Query(s.bind(`
SELECT id, name, lat, lon, location_type, parent_station
FROM stops
WHERE agency = ? AND parent_station = ?
ORDER BY id`), string(agency), parentID)
	if err != nil {
		return nil, fmt.Errorf("listing child stops: %w", err)
	}
	defer rows.Close()

	return s.scanStops(agency, rows)
}

func (s *SQLStore) StopsWithin(agency model.Agency, bounds Bounds) ([]*model.Stop, error) {
	rows, err := s.db.Query(s.bind(`
SELECT id, name, lat, lon, location_type, parent_station
FROM stops
WHERE agency = ?
  AND lat BETWEEN ? AND ?
  AND lon BETWEEN ? AND ?
ORDER BY id`), string(agency), bounds.MinLat, bounds.MaxLat, bounds.MinLon, bounds.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("listing stops in bounds: %w", err)
	}
	defer rows.Close()

	return s.scanStops(agency, rows)
}

func (s *SQLStore) scanStops(agency model.Agency, rows *sql.Rows) ([]*model.Stop, error) {
	stops := []*model.Stop{}
	for rows.Next() {
		stop := model.Stop{Agency: agency}
		var locType int
		err := rows.Scan(&stop.ID, &stop.Name, &stop.Lat, &stop.Lon, &locType, &stop.ParentStation)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stop.LocationType = model.LocationType(locType)
		stops = append(stops, &stop)
	}
	return stops, rows.Err()
}

func (s *SQLStore) ActiveServices(agency model.Agency, date string) ([]string, error) {
	// Calendars are small; the weekday bitmask check happens here
	// rather than in SQL so both drivers share a query.
	rows, err := s.db.Query(s.bind(`
SELECT service_id, weekday, start_date, end_date
FROM calendar
WHERE agency = ? AND start_date <= ? AND end_date >= ?`), string(agency), date, date)
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}
	defer rows.Close()

	parsed, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}

	active := map[string]bool{}
	for rows.Next() {
		var serviceID string
		var weekday int8
		var start, end string
		if err := rows.Scan(&serviceID, &weekday, &start, &end); err != nil {
			return nil, fmt.Errorf("scanning calendar: %w", err)
		}
		if weekday&(1<<parsed.Weekday()) != 0 {
			active[serviceID] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exRows, err := s.db.Query(s.bind(`
SELECT service_id, exception_type
FROM calendar_dates
WHERE agency = ? AND date = ?`), string(agency), date)
	if err != nil {
		return nil, fmt.Errorf("querying calendar_dates: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var serviceID string
		var exType int8
		if err := exRows.Scan(&serviceID, &exType); err != nil {
			return nil, fmt.Errorf("scanning calendar_date: %w", err)
		}
		switch exType {
		case model.CalendarAdded:
			active[serviceID] = true
		case model.CalendarRemoved:
			active[serviceID] = false
		}
	}
	if err := exRows.Err(); err != nil {
		return nil, err
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

func (s *SQLStore) StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error) {
	if filter.ServiceIDs != nil && len(filter.ServiceIDs) == 0 {
		return []*StopTimeEvent{}, nil
	}

	query := `
SELECT
    st.stop_id, st.trip_id, st.arrival_seconds, st.departure_seconds,
    t.route_id, t.service_id, t.headsign,
    r.short_name, r.long_name
FROM stop_times st
JOIN trips t ON t.agency = st.agency AND t.id = st.trip_id
LEFT JOIN routes r ON r.agency = t.agency AND r.id = t.route_id
WHERE st.agency = ? AND st.stop_id = ?`
	params := []interface{}{string(filter.Agency), filter.StopID}

	if filter.DepartureMin >= 0 {
		query += " AND st.departure_seconds >= ?"
		params = append(params, filter.DepartureMin)
	}
	if filter.DepartureMax >= 0 {
		query += " AND st.departure_seconds <= ?"
		params = append(params, filter.DepartureMax)
	}
	if filter.ServiceIDs != nil {
		query += " AND t.service_id IN (?" + strings.Repeat(", ?", len(filter.ServiceIDs)-1) + ")"
		for _, id := range filter.ServiceIDs {
			params = append(params, id)
		}
	}
	query += " ORDER BY st.departure_seconds"

	rows, err := s.db.Query(s.bind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("querying stop time events: %w", err)
	}
	defer rows.Close()

	events := []*StopTimeEvent{}
	for rows.Next() {
		st := model.StopTime{Agency: filter.Agency}
		trip := model.Trip{Agency: filter.Agency}
		var shortName, longName sql.NullString
		err := rows.Scan(
			&st.StopID, &st.TripID, &st.ArrivalSec, &st.DepartureSec,
			&trip.RouteID, &trip.ServiceID, &trip.Headsign,
			&shortName, &longName,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop time event: %w", err)
		}
		trip.ID = st.TripID
		ev := &StopTimeEvent{StopTime: &st, Trip: &trip}
		if shortName.Valid {
			ev.Route = &model.Route{
				Agency:    filter.Agency,
				ID:        trip.RouteID,
				ShortName: shortName.String,
				LongName:  longName.String,
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLStore) RoutesAt(agency model.Agency, stopID string, serviceIDs []string, fromSec, toSec int) ([]string, error) {
	if serviceIDs != nil && len(serviceIDs) == 0 {
		return []string{}, nil
	}

	query := `
SELECT DISTINCT r.short_name
FROM stop_times st
JOIN trips t ON t.agency = st.agency AND t.id = st.trip_id
JOIN routes r ON r.agency = t.agency AND r.id = t.route_id
WHERE st.agency = ? AND st.stop_id = ?
  AND st.departure_seconds BETWEEN ? AND ?
  AND r.short_name <> ''`
	params := []interface{}{string(agency), stopID, fromSec, toSec}

	if serviceIDs != nil {
		query += " AND t.service_id IN (?" + strings.Repeat(", ?", len(serviceIDs)-1) + ")"
		for _, id := range serviceIDs {
			params = append(params, id)
		}
	}
	query += " ORDER BY r.short_name"

	rows, err := s.db.Query(s.bind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("querying routes at stop: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning route name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Writer returns a bulk-load writer for the store. Stop time inserts
// run inside a single transaction with a prepared statement.
func (s *SQLStore) Writer() Writer {
	return &sqlWriter{store: s}
}

type sqlWriter struct {
	store          *SQLStore
	stopTimeTx     *sql.Tx
	stopTimeInsert *sql.Stmt
}

func (w *sqlWriter) WriteStop(stop *model.Stop) error {
	_, err := w.store.db.Exec(w.store.bind(`
INSERT INTO stops (agency, id, name, lat, lon, location_type, parent_station)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		string(stop.Agency), stop.ID, stop.Name, stop.Lat, stop.Lon,
		int(stop.LocationType), stop.ParentStation)
	if err != nil {
		return fmt.Errorf("writing stop %q: %w", stop.ID, err)
	}
	return nil
}

func (w *sqlWriter) WriteRoute(route *model.Route) error {
	_, err := w.store.db.Exec(w.store.bind(`
INSERT INTO routes (agency, id, short_name, long_name)
VALUES (?, ?, ?, ?)`),
		string(route.Agency), route.ID, route.ShortName, route.LongName)
	if err != nil {
		return fmt.Errorf("writing route %q: %w", route.ID, err)
	}
	return nil
}

func (w *sqlWriter) WriteTrip(trip *model.Trip) error {
	_, err := w.store.db.Exec(w.store.bind(`
INSERT INTO trips (agency, id, route_id, service_id, headsign)
VALUES (?, ?, ?, ?, ?)`),
		string(trip.Agency), trip.ID, trip.RouteID, trip.ServiceID, trip.Headsign)
	if err != nil {
		return fmt.Errorf("writing trip %q: %w", trip.ID, err)
	}
	return nil
}

func (w *sqlWriter) WriteCalendar(cal *model.Calendar) error {
	_, err := w.store.db.Exec(w.store.bind(`
INSERT INTO calendar (agency, service_id, weekday, start_date, end_date)
VALUES (?, ?, ?, ?, ?)`),
		string(cal.Agency), cal.ServiceID, cal.Weekday, cal.StartDate, cal.EndDate)
	if err != nil {
		return fmt.Errorf("writing calendar %q: %w", cal.ServiceID, err)
	}
	return nil
}

func (w *sqlWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	_, err := w.store.db.Exec(w.store.bind(`
INSERT INTO calendar_dates (agency, service_id, date, exception_type)
VALUES (?, ?, ?, ?)`),
		string(cd.Agency), cd.ServiceID, cd.Date, cd.ExceptionType)
	if err != nil {
		return fmt.Errorf("writing calendar date %q: %w", cd.ServiceID, err)
	}
	return nil
}

func (w *sqlWriter) BeginStopTimes() error {
	tx, err := w.store.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop_times transaction: %w", err)
	}
	stmt, err := tx.Prepare(w.store.bind(`
INSERT INTO stop_times (agency, trip_id, stop_id, arrival_seconds, departure_seconds)
VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing stop_times insert: %w", err)
	}
	w.stopTimeTx = tx
	w.stopTimeInsert = stmt
	return nil
}

func (w *sqlWriter) WriteStopTime(st *model.StopTime) error {
	if w.stopTimeInsert == nil {
		return fmt.Errorf("WriteStopTime outside BeginStopTimes/EndStopTimes")
	}
	_, err := w.stopTimeInsert.Exec(
		string(st.Agency), st.TripID, st.StopID, st.ArrivalSec, st.DepartureSec)
	if err != nil {
		return fmt.Errorf("writing stop time: %w", err)
	}
	return nil
}

func (w *sqlWriter) EndStopTimes() error {
	if w.stopTimeTx == nil {
		return fmt.Errorf("EndStopTimes without BeginStopTimes")
	}
	w.stopTimeInsert.Close()
	err := w.stopTimeTx.Commit()
	w.stopTimeTx = nil
	w.stopTimeInsert = nil
	if err != nil {
		return fmt.Errorf("committing stop_times: %w", err)
	}
	return nil
}

func (w *sqlWriter) Close() error {
	if w.stopTimeTx != nil {
		w.stopTimeTx.Rollback()
		w.stopTimeTx = nil
		w.stopTimeInsert = nil
	}
	return nil
}
