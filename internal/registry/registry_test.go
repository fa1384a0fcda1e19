package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucs-fleet/livemap/pkg/core"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
func fs(v core.FlightStatus) *core.FlightStatus { return &v }
func ts(v core.TaskStatus) *core.TaskStatus     { return &v }

func sample(id string, lat, lng float64) core.VehicleSample {
	return core.VehicleSample{
		ID:   id,
		Lat:  f64(lat),
		Lng:  f64(lng),
		Time: time.Now(),
	}
}

func TestApplyBatch_AddsNewVehicles(t *testing.T) {
	r := New()

	cs, moves := r.ApplyBatch([]core.VehicleSample{
		sample("UAV_002", 39.91, 116.41),
		sample("UAV_001", 39.90, 116.40),
	}, true)

	assert.Equal(t, []string{"UAV_001", "UAV_002"}, cs.Added)
	assert.Empty(t, cs.Changed)
	assert.Empty(t, cs.Removed)
	require.Len(t, moves, 2)
	assert.True(t, moves[0].FirstFix)

	v, ok := r.Get("UAV_001")
	require.True(t, ok)
	assert.Equal(t, 39.90, v.Lat)
	assert.Equal(t, 116.40, v.Lng)
}

func TestApplyBatch_SwapCorrection(t *testing.T) {
	r := New()

	// lat slot carries a longitude: must be stored swapped.
	r.ApplyBatch([]core.VehicleSample{sample("UAV_001", 116.40, 39.90)}, true)

	v, ok := r.Get("UAV_001")
	require.True(t, ok)
	assert.Equal(t, 39.90, v.Lat)
	assert.Equal(t, 116.40, v.Lng)
}

func TestApplyBatch_InvalidSampleDropped(t *testing.T) {
	r := New()
	r.ApplyBatch([]core.VehicleSample{sample("UAV_001", 39.9, 116.4)}, true)

	// Unrecoverable coordinates: sample dropped, state untouched.
	cs, moves := r.ApplyBatch([]core.VehicleSample{sample("UAV_001", 120, 200)}, true)

	assert.Empty(t, cs.Changed)
	assert.Empty(t, moves)
	v, _ := r.Get("UAV_001")
	assert.Equal(t, 39.9, v.Lat)
}

func TestApplyBatch_SnapshotMembership(t *testing.T) {
	r := New()
	r.ApplyBatch([]core.VehicleSample{
		sample("A", 39.9, 116.4),
		sample("B", 39.91, 116.41),
		sample("C", 39.92, 116.42),
	}, true)

	cs, _ := r.ApplyBatch([]core.VehicleSample{
		sample("A", 39.9, 116.4),
		sample("C", 39.92, 116.42),
	}, true)

	assert.Equal(t, []string{"B"}, cs.Removed)
	assert.Equal(t, []string{"A", "C"}, r.IDs())
}

func TestApplyBatch_StreamingNeverRemoves(t *testing.T) {
	r := New()
	r.ApplyBatch([]core.VehicleSample{
		sample("A", 39.9, 116.4),
		sample("B", 39.91, 116.41),
	}, true)

	cs, _ := r.ApplyBatch([]core.VehicleSample{sample("A", 39.95, 116.45)}, false)

	assert.Empty(t, cs.Removed)
	_, ok := r.Get("B")
	assert.True(t, ok, "streaming batch must not delete absent ids")
}

func TestApplyBatch_InvalidRecordDoesNotRemoveFromSnapshot(t *testing.T) {
	r := New()
	r.ApplyBatch([]core.VehicleSample{sample("A", 39.9, 116.4)}, true)

	// A appears in the snapshot with a corrupt position; it must not
	// be treated as absent.
	cs, _ := r.ApplyBatch([]core.VehicleSample{sample("A", 120, 200)}, true)

	assert.Empty(t, cs.Removed)
	_, ok := r.Get("A")
	assert.True(t, ok)
}

func TestApplyBatch_ChangeDedupIdempotence(t *testing.T) {
	r := New()
	s := sample("A", 39.9, 116.4)
	s.Battery = f64(80)
	s.FlightStatus = fs(core.FlightStatusFlying)

	r.ApplyBatch([]core.VehicleSample{s}, true)
	cs, _ := r.ApplyBatch([]core.VehicleSample{s}, true)

	assert.Empty(t, cs.Changed, "identical re-apply must not mark changed")
	assert.Empty(t, cs.Added)
}

func TestApplyBatch_MaterialFieldsMarkChanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.VehicleSample)
	}{
		{"position", func(s *core.VehicleSample) { s.Lat = f64(39.95); s.Lng = f64(116.45) }},
		{"altitude", func(s *core.VehicleSample) { s.Altitude = f64(120) }},
		{"flight status", func(s *core.VehicleSample) { s.FlightStatus = fs(core.FlightStatusFlying) }},
		{"task status", func(s *core.VehicleSample) { s.TaskStatus = ts(core.TaskStatusExecuting) }},
		{"battery", func(s *core.VehicleSample) { s.Battery = f64(55) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			r.ApplyBatch([]core.VehicleSample{sample("A", 39.9, 116.4)}, true)

			s := sample("A", 39.9, 116.4)
			tt.mutate(&s)
			cs, _ := r.ApplyBatch([]core.VehicleSample{s}, true)

			assert.Equal(t, []string{"A"}, cs.Changed)
		})
	}
}

func TestApplyBatch_LabelOnlyUpdateIsSilent(t *testing.T) {
	r := New()
	r.ApplyBatch([]core.VehicleSample{sample("A", 39.9, 116.4)}, true)

	s := sample("A", 39.9, 116.4)
	s.Model = str("M350")
	s.Owner = str("ops-1")
	cs, _ := r.ApplyBatch([]core.VehicleSample{s}, true)

	assert.Empty(t, cs.Changed)
	v, _ := r.Get("A")
	assert.Equal(t, "M350", v.Model, "labels still merge")
}

func TestApplyBatch_PartialMergeKeepsFields(t *testing.T) {
	r := New()
	s := sample("A", 39.9, 116.4)
	s.Battery = f64(80)
	s.Model = str("M350")
	r.ApplyBatch([]core.VehicleSample{s}, true)

	// Streaming sample carrying only kinematics.
	partial := core.VehicleSample{
		ID:       "A",
		Lat:      f64(39.95),
		Lng:      f64(116.45),
		Altitude: f64(100),
	}
	r.ApplyBatch([]core.VehicleSample{partial}, false)

	v, _ := r.Get("A")
	assert.Equal(t, 80.0, v.Battery)
	assert.Equal(t, "M350", v.Model)
	assert.Equal(t, 39.95, v.Lat)
}

func TestApplyBatch_MovementCarriesPreviousPosition(t *testing.T) {
	r := New()
	r.ApplyBatch([]core.VehicleSample{sample("A", 39.90, 116.40)}, true)

	s := sample("A", 39.91, 116.41)
	s.FlightStatus = fs(core.FlightStatusFlying)
	_, moves := r.ApplyBatch([]core.VehicleSample{s}, true)

	require.Len(t, moves, 1)
	assert.Equal(t, 39.90, moves[0].FromLat)
	assert.Equal(t, 39.91, moves[0].ToLat)
	assert.True(t, moves[0].Flying)
	assert.False(t, moves[0].FirstFix)
}

func TestStats(t *testing.T) {
	r := New()
	a := sample("A", 39.9, 116.4)
	a.Battery = f64(20)
	a.FlightStatus = fs(core.FlightStatusFlying)
	b := sample("B", 39.91, 116.41)
	b.Battery = f64(90)
	b.HardwareStatus = str("DEGRADED")
	r.ApplyBatch([]core.VehicleSample{a, b}, true)

	st := r.Stats()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Flying)
	assert.Equal(t, 1, st.LowBattery)
	assert.Equal(t, 1, st.Abnormal)
}
