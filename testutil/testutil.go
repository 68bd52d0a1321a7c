package testutil

// Helpers and fixtures for tests.

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"

	"github.com/krishs7/nextride/downloader"
	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/parse"
	"github.com/krishs7/nextride/storage"
)

func BuildZip(t testing.TB, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

// BuildStaticZip fills in blank dummy files so tests only spell out
// what they care about.
func BuildStaticZip(t testing.TB, files map[string][]string) []byte {
	if files["calendar.txt"] == nil && files["calendar_dates.txt"] == nil {
		files["calendar.txt"] = []string{"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date"}
	}
	if files["routes.txt"] == nil {
		files["routes.txt"] = []string{"route_id,route_short_name,route_long_name"}
	}
	if files["trips.txt"] == nil {
		files["trips.txt"] = []string{"trip_id,route_id,service_id,trip_headsign"}
	}
	if files["stops.txt"] == nil {
		files["stops.txt"] = []string{"stop_id,stop_name,stop_lat,stop_lon"}
	}
	if files["stop_times.txt"] == nil {
		files["stop_times.txt"] = []string{"trip_id,stop_id,arrival_time,departure_time"}
	}

	return BuildZip(t, files)
}

// LoadMemoryStore parses a static zip into a fresh in-memory store.
func LoadMemoryStore(t testing.TB, agency model.Agency, files map[string][]string) *storage.MemoryStore {
	store := storage.NewMemoryStore()
	require.NoError(t, parse.ParseStatic(store, agency, BuildStaticZip(t, files)))
	return store
}

// TripUpdate describes one stop-time update for feed building.
type TripUpdate struct {
	TripID    string
	RouteID   string
	StopID    string
	Headsign  string
	VehicleID string
	Time      time.Time
	Canceled  bool
	Skipped   bool
}

// BuildTripUpdateFeed encodes trip updates as a GTFS Realtime feed.
// Updates sharing a TripID land in one trip-update entity.
func BuildTripUpdateFeed(t testing.TB, timestamp time.Time, updates []TripUpdate) []byte {
	byTrip := map[string][]TripUpdate{}
	order := []string{}
	for _, u := range updates {
		if _, seen := byTrip[u.TripID]; !seen {
			order = append(order, u.TripID)
		}
		byTrip[u.TripID] = append(byTrip[u.TripID], u)
	}

	feed := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(timestamp.Unix())),
		},
	}

	for i, tripID := range order {
		group := byTrip[tripID]
		tu := &gtfsproto.TripUpdate{
			Trip: &gtfsproto.TripDescriptor{
				TripId:  proto.String(tripID),
				RouteId: proto.String(group[0].RouteID),
			},
		}
		if group[0].Canceled {
			tu.Trip.ScheduleRelationship = gtfsproto.TripDescriptor_CANCELED.Enum()
		}
		if group[0].VehicleID != "" {
			tu.Vehicle = &gtfsproto.VehicleDescriptor{
				Id: proto.String(group[0].VehicleID),
			}
		}
		for _, u := range group {
			stu := &gtfsproto.TripUpdate_StopTimeUpdate{
				StopId: proto.String(u.StopID),
				Departure: &gtfsproto.TripUpdate_StopTimeEvent{
					Time: proto.Int64(u.Time.Unix()),
				},
			}
			if u.Headsign != "" {
				stu.StopTimeProperties = &gtfsproto.TripUpdate_StopTimeUpdate_StopTimeProperties{
					StopHeadsign: proto.String(u.Headsign),
				}
			}
			if u.Skipped {
				stu.ScheduleRelationship = gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED.Enum()
			}
			tu.StopTimeUpdate = append(tu.StopTimeUpdate, stu)
		}

		feed.Entity = append(feed.Entity, &gtfsproto.FeedEntity{
			Id:         proto.String(fmt.Sprintf("t%d", i)),
			TripUpdate: tu,
		})
	}

	buf, err := proto.Marshal(feed)
	require.NoError(t, err)
	return buf
}

// Alert describes one alert entity for feed building.
type Alert struct {
	ID          string
	Header      string
	Description string
	Routes      []string
	Start       time.Time
	End         time.Time
}

func BuildAlertFeed(t testing.TB, timestamp time.Time, alerts []Alert) []byte {
	feed := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(timestamp.Unix())),
		},
	}

	for _, a := range alerts {
		entity := &gtfsproto.Alert{
			HeaderText:      translated(a.Header),
			DescriptionText: translated(a.Description),
		}
		for _, route := range a.Routes {
			entity.InformedEntity = append(entity.InformedEntity, &gtfsproto.EntitySelector{
				RouteId: proto.String(route),
			})
		}
		if !a.Start.IsZero() || !a.End.IsZero() {
			period := &gtfsproto.TimeRange{}
			if !a.Start.IsZero() {
				period.Start = proto.Uint64(uint64(a.Start.Unix()))
			}
			if !a.End.IsZero() {
				period.End = proto.Uint64(uint64(a.End.Unix()))
			}
			entity.ActivePeriod = []*gtfsproto.TimeRange{period}
		}

		feed.Entity = append(feed.Entity, &gtfsproto.FeedEntity{
			Id:    proto.String(a.ID),
			Alert: entity,
		})
	}

	buf, err := proto.Marshal(feed)
	require.NoError(t, err)
	return buf
}

func translated(text string) *gtfsproto.TranslatedString {
	if text == "" {
		return nil
	}
	return &gtfsproto.TranslatedString{
		Translation: []*gtfsproto.TranslatedString_Translation{
			{Text: proto.String(text)},
		},
	}
}

// FakeDownloader serves canned bodies by URL. URLs in Errors fail
// instead, which stands in for timeouts and upstream outages.
type FakeDownloader struct {
	Bodies map[string][]byte
	Errors map[string]error

	mu       sync.Mutex
	Requests []string
}

func (d *FakeDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options downloader.GetOptions,
) ([]byte, error) {
	d.mu.Lock()
	d.Requests = append(d.Requests, url)
	d.mu.Unlock()
	if err, found := d.Errors[url]; found {
		return nil, err
	}
	if body, found := d.Bodies[url]; found {
		return body, nil
	}
	return nil, fmt.Errorf("no response configured for %s", url)
}
