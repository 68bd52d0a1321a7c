package nextride

import (
	"testing"
	"time"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
	"github.com/krishs7/nextride/testutil"
)

// A small TTC-flavored timetable shared across tests. Warden Station
// has full hierarchy (station node 100 with platforms 101/102), Main
// Street Station has none and relies on proximity grouping, and the
// rest are ordinary stops.
//
// Service WK runs every day of 2020-2030, so any test date works.
func newTestStore(t testing.TB) *storage.MemoryStore {
	return testutil.LoadMemoryStore(t, model.AgencyTTC, map[string][]string{
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon,location_type,parent_station",
			"100,Warden Station,43.7110,-79.2790,1,",
			"101,Warden Station - Platform 1 (Eastbound),43.7110,-79.2790,0,100",
			"102,Warden Station - Platform 2 (Westbound),43.7112,-79.2792,0,100",
			"200,Warden Ave at St Clair,43.7000,-79.2800,0,",
			"300,King St at Bay St,43.6480,-79.3770,0,",
			"400,Main Street Station,43.6890,-79.3010,0,",
			"401,Main St at Danforth,43.6895,-79.3012,0,",
			"402,Meadowvale Loop,43.8000,-79.5000,0,",
		},
		"routes.txt": {
			"route_id,route_short_name,route_long_name",
			"R4,4,Sheppard",
			"R504,504,King",
			"R12,12,Kingston Rd",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"WK,1,1,1,1,1,1,1,20200101,20301231",
		},
		"trips.txt": {
			"trip_id,route_id,service_id,trip_headsign",
			"T1,R4,WK,Sheppard East",
			"T2,R504,WK,King West",
			"T3,R12,WK,Kingston",
		},
		"stop_times.txt": {
			"trip_id,stop_id,arrival_time,departure_time",
			"T1,101,12:05:00,12:05:00",
			"T2,101,25:00:00,25:00:00",
			"T2,102,12:10:00,12:10:00",
			"T3,300,12:15:00,12:15:00",
			"T1,200,12:30:00,12:30:00",
			"T2,400,12:45:00,12:45:00",
			"T3,401,12:50:00,12:50:00",
		},
	})
}

func newTestSchedule(t testing.TB) *Schedule {
	return NewSchedule(newTestStore(t), time.UTC)
}

// Noon on a known date, so seconds-since-midnight cutoffs are easy to
// reason about in assertions.
var testNoon = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
