package parse

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"github.com/krishs7/nextride/model"
)

// A single stop-time update from a trip-update entity, flattened to
// what arrival resolution needs: which trip/route is coming, where,
// and when.
type StopTimeUpdate struct {
	TripID       string
	RouteID      string
	StopID       string
	StopSequence uint32
	Headsign     string
	VehicleID    string
	Time         time.Time
}

// Realtime holds key data decoded from one or more GTFS Realtime
// feeds.
type Realtime struct {
	// Timestamp of the feed. If loaded from multiple feeds, the
	// last one wins.
	Timestamp uint64
	Updates   []*StopTimeUpdate
	Alerts    []*model.Alert
}

func ParseRealtime(feeds [][]byte) (*Realtime, error) {
	rt := &Realtime{
		Updates: []*StopTimeUpdate{},
		Alerts:  []*model.Alert{},
	}

	for _, feed := range feeds {
		f := &gtfsproto.FeedMessage{}
		if err := proto.Unmarshal(feed, f); err != nil {
			return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
		}

		header := f.GetHeader()
		version := header.GetGtfsRealtimeVersion()
		if version != "2.0" && version != "1.0" {
			return nil, fmt.Errorf("version %s not supported", version)
		}

		rt.Timestamp = header.GetTimestamp()

		for _, entity := range f.GetEntity() {
			if entity.TripUpdate != nil {
				processTripUpdate(rt, entity.TripUpdate)
			}
			if entity.Alert != nil {
				rt.Alerts = append(rt.Alerts, convertAlert(entity.GetId(), entity.Alert))
			}
		}
	}

	return rt, nil
}

func processTripUpdate(rt *Realtime, tu *gtfsproto.TripUpdate) {
	trip := tu.GetTrip()
	if trip.GetTripId() == "" && trip.GetRouteId() == "" {
		// Nothing to key the update on.
		return
	}

	// Cancelled trips carry no boardable departures.
	if trip.GetScheduleRelationship() == gtfsproto.TripDescriptor_CANCELED {
		return
	}

	vehicleID := tu.GetVehicle().GetId()

	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetScheduleRelationship() == gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED {
			continue
		}

		// Departure preferred; arrival accepted when the feed
		// only provides one of the two.
		unix := stu.GetDeparture().GetTime()
		if unix == 0 {
			unix = stu.GetArrival().GetTime()
		}
		if unix == 0 {
			continue
		}

		rt.Updates = append(rt.Updates, &StopTimeUpdate{
			TripID:       trip.GetTripId(),
			RouteID:      trip.GetRouteId(),
			StopID:       stu.GetStopId(),
			StopSequence: stu.GetStopSequence(),
			Headsign:     stu.GetStopTimeProperties().GetStopHeadsign(),
			VehicleID:    vehicleID,
			Time:         time.Unix(unix, 0).UTC(),
		})
	}
}

func convertAlert(id string, a *gtfsproto.Alert) *model.Alert {
	alert := &model.Alert{
		ID:          id,
		Header:      firstTranslation(a.GetHeaderText()),
		Description: firstTranslation(a.GetDescriptionText()),
		Cause:       a.GetCause().String(),
		Effect:      a.GetEffect().String(),
	}

	for _, entity := range a.GetInformedEntity() {
		if routeID := entity.GetRouteId(); routeID != "" {
			alert.Routes = append(alert.Routes, routeID)
		}
	}

	if periods := a.GetActivePeriod(); len(periods) > 0 {
		if start := periods[0].GetStart(); start != 0 {
			t := time.Unix(int64(start), 0).UTC()
			alert.Start = &t
		}
		if end := periods[0].GetEnd(); end != 0 {
			t := time.Unix(int64(end), 0).UTC()
			alert.End = &t
		}
	}

	return alert
}

func firstTranslation(ts *gtfsproto.TranslatedString) string {
	for _, tr := range ts.GetTranslation() {
		if text := tr.GetText(); text != "" {
			return text
		}
	}
	return ""
}
