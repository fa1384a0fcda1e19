// Package registry owns the canonical vehicle-id -> state mapping for
// the live map. It is the single source of truth every other component
// derives from.
package registry

import (
	"sort"
	"sync"

	"github.com/ucs-fleet/livemap/internal/geo"
	"github.com/ucs-fleet/livemap/pkg/core"
)

// Movement describes an accepted position transition for one vehicle,
// emitted so the trail store and heading estimator can consume the
// previous/current pair without re-reading the registry.
type Movement struct {
	ID       string
	FromLat  float64
	FromLng  float64
	ToLat    float64
	ToLng    float64
	Flying   bool
	FirstFix bool
}

// Registry holds the current state of every tracked vehicle.
// All mutation goes through ApplyBatch.
type Registry struct {
	mu       sync.RWMutex
	vehicles map[string]*core.VehicleState
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		vehicles: make(map[string]*core.VehicleState),
	}
}

// ApplyBatch merges a batch of samples into the registry.
//
// When authoritative is true the batch is a full snapshot: ids that do
// not appear in it are removed. When false the batch is corrective
// (push stream): absent ids are left untouched and never removed.
//
// Samples whose coordinates remain invalid after axis-swap correction
// are dropped without mutating state. A sample only lands in
// ChangeSet.Changed when a materially observable field (position,
// altitude, flight status, task status, battery) actually differs.
func (r *Registry) ApplyBatch(samples []core.VehicleSample, authoritative bool) (core.ChangeSet, []Movement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cs core.ChangeSet
	var moves []Movement
	seen := make(map[string]bool, len(samples))

	for i := range samples {
		s := &samples[i]
		if s.ID == "" {
			continue
		}
		// Membership is decided by the id appearing in the snapshot,
		// even when its sample turns out to be unusable. A corrupt
		// record must not delete a live vehicle.
		seen[s.ID] = true

		if !normalizePosition(s) {
			continue
		}

		v, ok := r.vehicles[s.ID]
		if !ok {
			v = &core.VehicleState{ID: s.ID}
			merge(v, s)
			r.vehicles[s.ID] = v
			cs.Added = append(cs.Added, s.ID)
			if s.Lat != nil {
				moves = append(moves, Movement{
					ID:      s.ID,
					FromLat: v.Lat, FromLng: v.Lng,
					ToLat: v.Lat, ToLng: v.Lng,
					Flying:   v.Flying(),
					FirstFix: true,
				})
			}
			continue
		}

		prevLat, prevLng := v.Lat, v.Lng
		hadFix := v.HasPosition()
		changed := materialChange(v, s)
		merge(v, s)
		if changed {
			cs.Changed = append(cs.Changed, s.ID)
		}
		if s.Lat != nil && (prevLat != v.Lat || prevLng != v.Lng || !hadFix) {
			moves = append(moves, Movement{
				ID:      s.ID,
				FromLat: prevLat, FromLng: prevLng,
				ToLat: v.Lat, ToLng: v.Lng,
				Flying:   v.Flying(),
				FirstFix: !hadFix,
			})
		}
	}

	if authoritative {
		for id := range r.vehicles {
			if !seen[id] {
				cs.Removed = append(cs.Removed, id)
			}
		}
		for _, id := range cs.Removed {
			delete(r.vehicles, id)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Changed)
	sort.Strings(cs.Removed)
	return cs, moves
}

// normalizePosition applies axis-swap correction in place. It reports
// false when the sample must be dropped entirely. Samples without
// position fields pass through; a sample carrying only one of the two
// coordinates is unusable.
func normalizePosition(s *core.VehicleSample) bool {
	if s.Lat == nil && s.Lng == nil {
		return true
	}
	if s.Lat == nil || s.Lng == nil {
		return false
	}
	lat, lng, err := geo.CorrectLatLng(*s.Lat, *s.Lng)
	if err != nil {
		return false
	}
	*s.Lat, *s.Lng = lat, lng
	return true
}

// materialChange reports whether the sample would alter a field the
// renderers observe. Label-only updates merge silently so a steady
// polling tick does not force marker or list re-renders.
func materialChange(v *core.VehicleState, s *core.VehicleSample) bool {
	switch {
	case s.Lat != nil && (*s.Lat != v.Lat || *s.Lng != v.Lng):
		return true
	case s.Altitude != nil && *s.Altitude != v.Altitude:
		return true
	case s.FlightStatus != nil && *s.FlightStatus != v.FlightStatus:
		return true
	case s.TaskStatus != nil && *s.TaskStatus != v.TaskStatus:
		return true
	case s.Battery != nil && *s.Battery != v.Battery:
		return true
	}
	return false
}

func merge(v *core.VehicleState, s *core.VehicleSample) {
	if s.Lat != nil {
		v.Lat, v.Lng = *s.Lat, *s.Lng
	}
	if s.Altitude != nil {
		v.Altitude = *s.Altitude
	}
	if s.Battery != nil {
		v.Battery = *s.Battery
	}
	if s.HardwareStatus != nil {
		v.HardwareStatus = *s.HardwareStatus
	}
	if s.FlightStatus != nil {
		v.FlightStatus = *s.FlightStatus
	}
	if s.TaskStatus != nil {
		v.TaskStatus = *s.TaskStatus
	}
	if s.Model != nil {
		v.Model = *s.Model
	}
	if s.Owner != nil {
		v.Owner = *s.Owner
	}
	if s.Team != nil {
		v.Team = *s.Team
	}
	if s.ReportedHeading != nil {
		v.ReportedHeading = *s.ReportedHeading
	}
	if s.GroundSpeed != nil {
		v.GroundSpeed = *s.GroundSpeed
	}
	if s.VerticalSpeed != nil {
		v.VerticalSpeed = *s.VerticalSpeed
	}
	if !s.Time.IsZero() {
		v.LastSeen = s.Time
	}
}

// Get returns a copy of one vehicle's state.
func (r *Registry) Get(id string) (core.VehicleState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.vehicles[id]; ok {
		return *v, true
	}
	return core.VehicleState{}, false
}

// IDs returns all tracked ids sorted lexicographically.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.vehicles))
	for id := range r.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns copies of every vehicle state, sorted by id.
func (r *Registry) Snapshot() []core.VehicleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.VehicleState, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked vehicles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vehicles)
}

// Stats computes the dashboard counters from current state.
func (r *Registry) Stats() core.FleetStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var st core.FleetStats
	st.Total = len(r.vehicles)
	for _, v := range r.vehicles {
		if v.Flying() {
			st.Flying++
		}
		if v.Battery < core.LowBatteryThreshold {
			st.LowBattery++
		}
		if v.HardwareStatus != "" && v.HardwareStatus != "NORMAL" {
			st.Abnormal++
		}
	}
	return st
}

// Reset drops all vehicles, e.g. on logout.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles = make(map[string]*core.VehicleState)
}
