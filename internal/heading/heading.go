// Package heading derives a stable facing angle per vehicle from
// consecutive position samples.
package heading

import (
	"sync"

	"github.com/ucs-fleet/livemap/internal/geo"
)

// DefaultMinMovementM is the minimum movement required before the
// stored heading is recomputed. Below it the previous value is kept so
// a hovering vehicle's marker does not spin on GPS jitter.
const DefaultMinMovementM = 1.0

// Estimator stores one heading in degrees [0,360) per vehicle id.
type Estimator struct {
	mu           sync.RWMutex
	headings     map[string]float64
	minMovementM float64
}

// NewEstimator creates an estimator with the given movement threshold.
// A threshold <= 0 selects the default.
func NewEstimator(minMovementM float64) *Estimator {
	if minMovementM <= 0 {
		minMovementM = DefaultMinMovementM
	}
	return &Estimator{
		headings:     make(map[string]float64),
		minMovementM: minMovementM,
	}
}

// Update recomputes the heading for id from the previous and current
// position. The value only changes while flying and after real
// movement; otherwise the last stored heading is returned unchanged.
// A never-seen id defaults to 0.
func (e *Estimator) Update(id string, prevLat, prevLng, currLat, currLng float64, flying bool) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if flying && geo.Haversine(prevLat, prevLng, currLat, currLng) > e.minMovementM {
		e.headings[id] = geo.Bearing(prevLat, prevLng, currLat, currLng)
	}
	return e.headings[id]
}

// Heading returns the stored heading for id, 0 if never computed.
func (e *Estimator) Heading(id string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.headings[id]
}

// Delete forgets a removed vehicle.
func (e *Estimator) Delete(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.headings, id)
}

// Reset drops all stored headings.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headings = make(map[string]float64)
}
