package parse

import (
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

// parseStopTimeSeconds converts a GTFS "H:MM:SS" (or "HH:MM:SS")
// string into seconds since local midnight. Hours at or above 24 are
// legal: they encode post-midnight service on the same service day.
func parseStopTimeSeconds(s string) (int, error) {
	split := strings.Split(s, ":")
	if len(split) != 3 {
		return 0, errors.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return 0, errors.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 99 {
		return 0, errors.Errorf("bad hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return 0, errors.Errorf("bad minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return 0, errors.Errorf("bad second in '%s'", s)
	}

	return hms[0]*3600 + hms[1]*60 + hms[2], nil
}

func ParseStopTimes(
	writer storage.Writer,
	agency model.Agency,
	data io.Reader,
	trips map[string]bool,
	stops map[string]bool,
) error {
	stopTimeCsv := []*StopTimeCSV{}
	if err := gocsv.Unmarshal(data, &stopTimeCsv); err != nil {
		return errors.Wrap(err, "unmarshaling stop_times csv")
	}

	for _, st := range stopTimeCsv {
		if st.TripID == "" {
			return errors.New("empty trip_id")
		}
		if st.StopID == "" {
			return errors.New("empty stop_id")
		}
		if !trips[st.TripID] {
			return errors.Errorf("unknown trip_id '%s'", st.TripID)
		}
		if !stops[st.StopID] {
			return errors.Errorf("unknown stop_id '%s'", st.StopID)
		}

		// Some feeds leave one of the two blank; either is
		// accepted, departure preferred.
		departure := st.DepartureTime
		if departure == "" {
			departure = st.ArrivalTime
		}
		arrival := st.ArrivalTime
		if arrival == "" {
			arrival = st.DepartureTime
		}
		if departure == "" {
			return errors.Errorf("stop time for trip '%s' missing both times", st.TripID)
		}

		depSec, err := parseStopTimeSeconds(departure)
		if err != nil {
			return errors.Wrap(err, "parsing departure_time")
		}
		arrSec, err := parseStopTimeSeconds(arrival)
		if err != nil {
			return errors.Wrap(err, "parsing arrival_time")
		}

		err = writer.WriteStopTime(&model.StopTime{
			Agency:       agency,
			TripID:       st.TripID,
			StopID:       st.StopID,
			ArrivalSec:   arrSec,
			DepartureSec: depSec,
		})
		if err != nil {
			return errors.Wrap(err, "writing stop time")
		}
	}

	return nil
}
