package model

import (
	"strings"
	"time"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
)

// Agency is a closed enumeration of the transit agencies the engine
// knows how to talk to. Adding an agency means adding a variant here
// and a feed configuration for it, not registering anything at
// runtime.
type Agency string

const (
	AgencyTTC      Agency = "ttc"
	AgencyYRT      Agency = "yrt"
	AgencyMiWay    Agency = "miway"
	AgencyBrampton Agency = "brampton"
	AgencyDRT      Agency = "drt"
)

// Aliases riders actually type. "toronto" means the TTC, and so on.
var agencyAliases = map[string]Agency{
	"ttc":         AgencyTTC,
	"toronto":     AgencyTTC,
	"yrt":         AgencyYRT,
	"york":        AgencyYRT,
	"miway":       AgencyMiWay,
	"mississauga": AgencyMiWay,
	"brampton":    AgencyBrampton,
	"drt":         AgencyDRT,
	"durham":      AgencyDRT,
}

// ParseAgency maps a user-supplied agency reference to its variant.
func ParseAgency(s string) (Agency, bool) {
	a, ok := agencyAliases[strings.ToLower(strings.TrimSpace(s))]
	return a, ok
}

// MatchPolicy selects how a realtime feed's stop ids are compared
// against the static feed's stop ids. Most agencies use the same
// vocabulary in both feeds (strict). Some prefix or rewrite stop ids
// in the realtime feed (loose).
type MatchPolicy int

const (
	MatchStrict MatchPolicy = iota
	MatchLoose
)

func ParseMatchPolicy(s string) (MatchPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return MatchStrict, true
	case "loose":
		return MatchLoose, true
	}
	return MatchStrict, false
}

func (p MatchPolicy) String() string {
	if p == MatchLoose {
		return "loose"
	}
	return "strict"
}

type Stop struct {
	ID            string
	Agency        Agency
	Name          string
	Lat           float64
	Lon           float64
	LocationType  LocationType
	ParentStation string
}

type Route struct {
	ID        string
	Agency    Agency
	ShortName string
	LongName  string
}

type Trip struct {
	ID        string
	Agency    Agency
	RouteID   string
	ServiceID string
	Headsign  string
}

// StopTime times are seconds since local midnight. Values above 86400
// represent service that continues past midnight on the same service
// day.
type StopTime struct {
	Agency       Agency
	TripID       string
	StopID       string
	ArrivalSec   int
	DepartureSec int
}

// Calendar covers a service over a date range, with a bitmask of
// active weekdays indexed by time.Weekday. Dates are comparable
// YYYYMMDD strings.
type Calendar struct {
	Agency    Agency
	ServiceID string
	Weekday   int8
	StartDate string
	EndDate   string
}

const (
	CalendarAdded   int8 = 1
	CalendarRemoved int8 = 2
)

type CalendarDate struct {
	Agency        Agency
	ServiceID     string
	Date          string
	ExceptionType int8
}

// A vehicle departing from a stop. Built fresh for every query, never
// persisted.
type Arrival struct {
	When           time.Time
	Realtime       bool
	RouteShortName string
	Headsign       string
	VehicleID      string
}

// A service alert. Start/End of nil mean the alert is unbounded in
// that direction.
type Alert struct {
	ID          string
	Header      string
	Description string
	Cause       string
	Effect      string
	Routes      []string
	Start       *time.Time
	End         *time.Time
}

// A ranked guess at which stop the user meant.
type StopCandidate struct {
	ID    string
	Name  string
	Score float64
}
