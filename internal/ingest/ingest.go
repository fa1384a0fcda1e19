// Package ingest normalizes the two inbound telemetry shapes - polled
// REST snapshots and push-stream batches - into the VehicleSample form
// the registry consumes.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ucs-fleet/livemap/internal/geo"
	"github.com/ucs-fleet/livemap/pkg/core"
)

// Ingestor converts raw inbound payloads into registry samples.
// Invalid records are dropped and counted, never propagated.
type Ingestor struct {
	logger *slog.Logger
}

// New creates an ingestor. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{logger: logger}
}

// FormatUAVID maps the gateway's numeric vehicle key into the fleet's
// string id space ("UAV_001" form).
func FormatUAVID(n int) string {
	return fmt.Sprintf("UAV_%03d", n)
}

// FromSnapshot maps a full REST snapshot into samples. The caller
// applies the result with membership authority: ids absent from the
// snapshot are gone from the fleet.
func (in *Ingestor) FromSnapshot(records []DroneStatus, now time.Time) []core.VehicleSample {
	samples := make([]core.VehicleSample, 0, len(records))
	dropped := 0

	for i := range records {
		r := &records[i]
		if r.UAVID == "" {
			dropped++
			continue
		}

		// A corrupt position must not cost the vehicle its snapshot
		// membership: the id still counts toward the authoritative
		// set, only the coordinates are withheld from the merge.
		var latp, lngp *float64
		lat, lng, err := geo.CorrectLatLng(r.Lat, r.Lng)
		if err != nil {
			in.logger.Debug("withholding invalid snapshot coordinates",
				"uavId", r.UAVID, "lat", r.Lat, "lng", r.Lng)
			dropped++
		} else {
			latp, lngp = &lat, &lng
		}

		flight := core.FlightStatus(r.FlightStatus)
		task := core.TaskStatus(r.TaskStatus)
		samples = append(samples, core.VehicleSample{
			ID:             r.UAVID,
			Lat:            latp,
			Lng:            lngp,
			Altitude:       &r.Altitude,
			Battery:        &r.Battery,
			HardwareStatus: &r.HardwareStatus,
			FlightStatus:   &flight,
			TaskStatus:     &task,
			Model:          &r.Model,
			Owner:          &r.Owner,
			Team:           &r.Team,
			Time:           now,
		})
	}

	if dropped > 0 {
		in.logger.Warn("snapshot records with unusable fields", "dropped", dropped, "total", len(records))
	}
	return samples
}

// FromPushBatch maps a push-stream batch into samples. Push samples
// carry kinematics only and are never membership-authoritative: a
// vehicle missing from a batch simply had no update this tick.
func (in *Ingestor) FromPushBatch(batch *TelemetryBatch, now time.Time) []core.VehicleSample {
	samples := make([]core.VehicleSample, 0, len(batch.UAVs))
	dropped := 0

	for i := range batch.UAVs {
		u := &batch.UAVs[i]
		lat, lng, err := geo.CorrectLatLng(u.Lat, u.Lon)
		if err != nil {
			dropped++
			continue
		}

		flight := core.FlightStatusIdle
		if u.IsActive {
			flight = core.FlightStatusFlying
		}
		ts := parseTimestamp(u.Timestamp, now)
		samples = append(samples, core.VehicleSample{
			ID:              FormatUAVID(u.UAVID),
			Lat:             &lat,
			Lng:             &lng,
			Altitude:        &u.Alt,
			FlightStatus:    &flight,
			ReportedHeading: &u.Heading,
			GroundSpeed:     &u.GroundSpeed,
			VerticalSpeed:   &u.VerticalSpeed,
			Time:            ts,
		})
	}

	if dropped > 0 {
		in.logger.Warn("push batch records dropped",
			"dropped", dropped, "total", len(batch.UAVs), "seq", batch.MsgSeqNumber)
	}
	return samples
}

// ParsePushBatch decodes a raw push message. A malformed payload
// yields an error the caller logs; it must never abort the stream's
// read loop or clear existing state.
func ParsePushBatch(data []byte) (*TelemetryBatch, error) {
	var batch TelemetryBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse telemetry batch: %w", err)
	}
	return &batch, nil
}

// Home extracts the fleet home position from a batch header, nil when
// the gateway did not report one.
func Home(batch *TelemetryBatch) *core.Home {
	if batch.HomeLat == 0 && batch.HomeLon == 0 {
		return nil
	}
	return &core.Home{Lat: batch.HomeLat, Lng: batch.HomeLon, Alt: batch.HomeAlt}
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}
