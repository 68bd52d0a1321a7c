package parse

import (
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"
)

func marshalFeed(t *testing.T, feed *gtfsproto.FeedMessage) []byte {
	buf, err := proto.Marshal(feed)
	require.NoError(t, err)
	return buf
}

func feedHeader(ts int64) *gtfsproto.FeedHeader {
	return &gtfsproto.FeedHeader{
		GtfsRealtimeVersion: proto.String("2.0"),
		Timestamp:           proto.Uint64(uint64(ts)),
	}
}

func TestParseRealtimeTripUpdates(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	feed := &gtfsproto.FeedMessage{
		Header: feedHeader(now.Unix()),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{
						TripId:  proto.String("T1"),
						RouteId: proto.String("504"),
					},
					Vehicle: &gtfsproto.VehicleDescriptor{Id: proto.String("v9")},
					StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
						{
							StopId: proto.String("S1"),
							Departure: &gtfsproto.TripUpdate_StopTimeEvent{
								Time: proto.Int64(now.Add(5 * time.Minute).Unix()),
							},
						},
						{
							// Arrival-only update still counts.
							StopId: proto.String("S2"),
							Arrival: &gtfsproto.TripUpdate_StopTimeEvent{
								Time: proto.Int64(now.Add(9 * time.Minute).Unix()),
							},
						},
						{
							// Skipped stop is dropped.
							StopId:               proto.String("S3"),
							ScheduleRelationship: gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED.Enum(),
							Departure: &gtfsproto.TripUpdate_StopTimeEvent{
								Time: proto.Int64(now.Add(12 * time.Minute).Unix()),
							},
						},
					},
				},
			},
			{
				// Cancelled trip contributes nothing.
				Id: proto.String("e2"),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{
						TripId:               proto.String("T2"),
						ScheduleRelationship: gtfsproto.TripDescriptor_CANCELED.Enum(),
					},
					StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
						{
							StopId: proto.String("S1"),
							Departure: &gtfsproto.TripUpdate_StopTimeEvent{
								Time: proto.Int64(now.Add(3 * time.Minute).Unix()),
							},
						},
					},
				},
			},
		},
	}

	rt, err := ParseRealtime([][]byte{marshalFeed(t, feed)})
	require.NoError(t, err)

	assert.Equal(t, uint64(now.Unix()), rt.Timestamp)
	require.Len(t, rt.Updates, 2)

	assert.Equal(t, "T1", rt.Updates[0].TripID)
	assert.Equal(t, "504", rt.Updates[0].RouteID)
	assert.Equal(t, "S1", rt.Updates[0].StopID)
	assert.Equal(t, "v9", rt.Updates[0].VehicleID)
	assert.Equal(t, now.Add(5*time.Minute), rt.Updates[0].Time)

	assert.Equal(t, "S2", rt.Updates[1].StopID)
	assert.Equal(t, now.Add(9*time.Minute), rt.Updates[1].Time)
}

func TestParseRealtimeAlerts(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)

	feed := &gtfsproto.FeedMessage{
		Header: feedHeader(now.Unix()),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("a1"),
				Alert: &gtfsproto.Alert{
					HeaderText: &gtfsproto.TranslatedString{
						Translation: []*gtfsproto.TranslatedString_Translation{
							{Text: proto.String("Detour on King")},
						},
					},
					Cause:  gtfsproto.Alert_CONSTRUCTION.Enum(),
					Effect: gtfsproto.Alert_DETOUR.Enum(),
					InformedEntity: []*gtfsproto.EntitySelector{
						{RouteId: proto.String("504")},
						{StopId: proto.String("S1")},
						{RouteId: proto.String("501")},
					},
					ActivePeriod: []*gtfsproto.TimeRange{
						{Start: proto.Uint64(uint64(start.Unix()))},
					},
				},
			},
		},
	}

	rt, err := ParseRealtime([][]byte{marshalFeed(t, feed)})
	require.NoError(t, err)
	require.Len(t, rt.Alerts, 1)

	alert := rt.Alerts[0]
	assert.Equal(t, "a1", alert.ID)
	assert.Equal(t, "Detour on King", alert.Header)
	assert.Equal(t, "CONSTRUCTION", alert.Cause)
	assert.Equal(t, "DETOUR", alert.Effect)
	assert.Equal(t, []string{"504", "501"}, alert.Routes)
	require.NotNil(t, alert.Start)
	assert.Equal(t, start, *alert.Start)
	assert.Nil(t, alert.End)
}

func TestParseRealtimeBadVersion(t *testing.T) {
	feed := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("3.0"),
		},
	}

	_, err := ParseRealtime([][]byte{marshalFeed(t, feed)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestParseRealtimeGarbage(t *testing.T) {
	_, err := ParseRealtime([][]byte{[]byte("definitely not protobuf")})
	require.Error(t, err)
}

func TestParseRealtimeMultipleFeeds(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	first := &gtfsproto.FeedMessage{
		Header: feedHeader(now.Unix()),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{TripId: proto.String("T1")},
					StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
						{
							StopId: proto.String("S1"),
							Departure: &gtfsproto.TripUpdate_StopTimeEvent{
								Time: proto.Int64(now.Unix()),
							},
						},
					},
				},
			},
		},
	}
	second := &gtfsproto.FeedMessage{
		Header: feedHeader(now.Add(time.Minute).Unix()),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("e2"),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{TripId: proto.String("T2")},
					StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
						{
							StopId: proto.String("S2"),
							Departure: &gtfsproto.TripUpdate_StopTimeEvent{
								Time: proto.Int64(now.Unix()),
							},
						},
					},
				},
			},
		},
	}

	rt, err := ParseRealtime([][]byte{marshalFeed(t, first), marshalFeed(t, second)})
	require.NoError(t, err)

	assert.Len(t, rt.Updates, 2)
	// Last feed's timestamp wins.
	assert.Equal(t, uint64(now.Add(time.Minute).Unix()), rt.Timestamp)
}
