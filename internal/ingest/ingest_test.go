package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucs-fleet/livemap/internal/registry"
	"github.com/ucs-fleet/livemap/pkg/core"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFormatUAVID(t *testing.T) {
	assert.Equal(t, "UAV_001", FormatUAVID(1))
	assert.Equal(t, "UAV_042", FormatUAVID(42))
	assert.Equal(t, "UAV_1234", FormatUAVID(1234))
}

func TestFromSnapshot_FullMapping(t *testing.T) {
	in := New(nil)

	samples := in.FromSnapshot([]DroneStatus{{
		UAVID:          "UAV_001",
		Lat:            39.9,
		Lng:            116.4,
		Altitude:       120,
		Battery:        80,
		HardwareStatus: "NORMAL",
		FlightStatus:   "FLYING",
		TaskStatus:     "EXECUTING",
		Model:          "M350",
		Owner:          "ops-1",
	}}, now)

	require.Len(t, samples, 1)
	s := samples[0]
	assert.Equal(t, "UAV_001", s.ID)
	assert.Equal(t, 39.9, *s.Lat)
	assert.Equal(t, 116.4, *s.Lng)
	assert.Equal(t, 120.0, *s.Altitude)
	assert.Equal(t, 80.0, *s.Battery)
	assert.Equal(t, core.FlightStatusFlying, *s.FlightStatus)
	assert.Equal(t, core.TaskStatusExecuting, *s.TaskStatus)
	assert.Equal(t, "M350", *s.Model)
	assert.Equal(t, now, s.Time)
}

func TestFromSnapshot_SwapCorrection(t *testing.T) {
	in := New(nil)

	samples := in.FromSnapshot([]DroneStatus{
		{UAVID: "UAV_001", Lat: 116.40, Lng: 39.90},
	}, now)

	require.Len(t, samples, 1)
	assert.Equal(t, 39.90, *samples[0].Lat)
	assert.Equal(t, 116.40, *samples[0].Lng)
}

func TestFromSnapshot_PartialBatch(t *testing.T) {
	in := New(nil)

	samples := in.FromSnapshot([]DroneStatus{
		{UAVID: "UAV_001", Lat: 39.9, Lng: 116.4},
		{UAVID: "UAV_002", Lat: 120, Lng: 200}, // unrecoverable coordinates
		{UAVID: "", Lat: 39.9, Lng: 116.4},     // missing id
		{UAVID: "UAV_003", Lat: 39.91, Lng: 116.41},
	}, now)

	// The record without an id vanishes; the one with broken
	// coordinates keeps its place in the batch, position withheld.
	require.Len(t, samples, 3)
	assert.Equal(t, "UAV_001", samples[0].ID)
	assert.Equal(t, "UAV_002", samples[1].ID)
	assert.Nil(t, samples[1].Lat)
	assert.Nil(t, samples[1].Lng)
	assert.Equal(t, "UAV_003", samples[2].ID)
}

func TestFromSnapshot_InvalidCoordinatesKeepMembership(t *testing.T) {
	in := New(nil)

	reg := registry.New()
	reg.ApplyBatch(in.FromSnapshot([]DroneStatus{
		{UAVID: "UAV_001", Lat: 39.9, Lng: 116.4, FlightStatus: "FLYING"},
	}, now), true)

	// The next authoritative snapshot still lists the vehicle, but
	// its coordinates are garbage. Membership must survive and the
	// last good fix must stand.
	cs, _ := reg.ApplyBatch(in.FromSnapshot([]DroneStatus{
		{UAVID: "UAV_001", Lat: 120, Lng: 200, FlightStatus: "FLYING"},
	}, now.Add(time.Second)), true)

	assert.Empty(t, cs.Removed)
	v, ok := reg.Get("UAV_001")
	require.True(t, ok)
	assert.Equal(t, 39.9, v.Lat)
	assert.Equal(t, 116.4, v.Lng)
}

func TestFromPushBatch_Mapping(t *testing.T) {
	in := New(nil)

	batch := &TelemetryBatch{
		MsgSeqNumber: 7,
		UAVs: []TelemetryData{{
			UAVID:         1,
			Timestamp:     "2025-06-01T12:00:05Z",
			Lat:           39.9,
			Lon:           116.4,
			Alt:           100,
			Heading:       45,
			GroundSpeed:   12.5,
			VerticalSpeed: -0.5,
			IsActive:      true,
		}},
	}
	samples := in.FromPushBatch(batch, now)

	require.Len(t, samples, 1)
	s := samples[0]
	assert.Equal(t, "UAV_001", s.ID)
	assert.Equal(t, core.FlightStatusFlying, *s.FlightStatus)
	assert.Equal(t, 45.0, *s.ReportedHeading)
	assert.Equal(t, 12.5, *s.GroundSpeed)
	assert.Equal(t, now.Add(5*time.Second), s.Time)
	assert.Nil(t, s.Battery, "push carries kinematics only")
	assert.Nil(t, s.TaskStatus)
}

func TestFromPushBatch_InactiveIsIdle(t *testing.T) {
	in := New(nil)

	samples := in.FromPushBatch(&TelemetryBatch{
		UAVs: []TelemetryData{{UAVID: 3, Lat: 39.9, Lon: 116.4, IsActive: false}},
	}, now)

	require.Len(t, samples, 1)
	assert.Equal(t, core.FlightStatusIdle, *samples[0].FlightStatus)
}

func TestParsePushBatch_Malformed(t *testing.T) {
	_, err := ParsePushBatch([]byte("{not json"))
	require.Error(t, err)

	batch, err := ParsePushBatch([]byte(`{"msgSeqNumber":12,"uavs":[{"uavId":2,"lat":39.9,"lon":116.4,"isActive":true}]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), batch.MsgSeqNumber)
	require.Len(t, batch.UAVs, 1)
	assert.Equal(t, 2, batch.UAVs[0].UAVID)
}

func TestHome(t *testing.T) {
	assert.Nil(t, Home(&TelemetryBatch{}))

	h := Home(&TelemetryBatch{HomeLat: 39.9, HomeLon: 116.4, HomeAlt: 50})
	require.NotNil(t, h)
	assert.Equal(t, 39.9, h.Lat)
	assert.Equal(t, 50.0, h.Alt)
}
