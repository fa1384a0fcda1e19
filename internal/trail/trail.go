// Package trail keeps a bounded, time-windowed position history per
// flying vehicle, used to draw motion trails behind the markers.
package trail

import (
	"sync"
	"time"

	"github.com/ucs-fleet/livemap/internal/geo"
	"github.com/ucs-fleet/livemap/pkg/core"
)

// Defaults tuned for a ~2s position tick: a trail covers the last ten
// seconds of flight without collecting hover jitter.
const (
	DefaultMinDistanceM = 2.0
	DefaultMaxAge       = 10 * time.Second
	DefaultMaxPoints    = 50
)

// Store owns all vehicle trails, keyed by vehicle id.
type Store struct {
	mu     sync.RWMutex
	trails map[string][]core.TrailPoint

	minDistanceM float64
	maxAge       time.Duration
	maxPoints    int
}

// Option configures a Store.
type Option func(*Store)

// WithMinDistance sets the minimum distance in meters between
// consecutive trail points.
func WithMinDistance(m float64) Option {
	return func(s *Store) { s.minDistanceM = m }
}

// WithMaxAge sets the sliding time window.
func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// WithMaxPoints caps the number of points kept per trail.
func WithMaxPoints(n int) Option {
	return func(s *Store) { s.maxPoints = n }
}

// NewStore creates a trail store with the given options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		trails:       make(map[string][]core.TrailPoint),
		minDistanceM: DefaultMinDistanceM,
		maxAge:       DefaultMaxAge,
		maxPoints:    DefaultMaxPoints,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnVehicleMoved records a position transition. Idle vehicles leave no
// trail. A new point is admitted only when it is at least the minimum
// distance from the trail's last point; afterwards the trail is pruned
// to the time window and the point cap.
//
// It reports whether the trail changed (a point was admitted or old
// points were pruned).
func (s *Store) OnVehicleMoved(id string, lat, lng float64, flying bool, now time.Time) bool {
	if !flying {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr := s.trails[id]
	changed := false

	if len(tr) == 0 || s.farEnough(tr[len(tr)-1], lat, lng) {
		tr = append(tr, core.TrailPoint{Lng: lng, Lat: lat, Time: now})
		changed = true
	}

	// Prune strictly older than the window.
	cutoff := now.Add(-s.maxAge)
	drop := 0
	for drop < len(tr) && tr[drop].Time.Before(cutoff) {
		drop++
	}
	// Then enforce the cap, again from the front.
	if over := len(tr) - drop - s.maxPoints; over > 0 {
		drop += over
	}
	if drop > 0 {
		tr = append(tr[:0:0], tr[drop:]...)
		changed = true
	}

	s.trails[id] = tr
	return changed
}

func (s *Store) farEnough(last core.TrailPoint, lat, lng float64) bool {
	return geo.Haversine(last.Lat, last.Lng, lat, lng) > s.minDistanceM
}

// Trail returns a copy of the ordered trail for one vehicle. Callers
// may hold it across reconciliation passes without seeing mutation.
func (s *Store) Trail(id string) []core.TrailPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr := s.trails[id]
	if len(tr) == 0 {
		return nil
	}
	out := make([]core.TrailPoint, len(tr))
	copy(out, tr)
	return out
}

// Delete drops the trail for a removed vehicle.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trails, id)
}

// Len returns the number of vehicles with a live trail.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trails)
}

// Reset drops all trails.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trails = make(map[string][]core.TrailPoint)
}
