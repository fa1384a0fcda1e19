// Package heatmap buckets current fleet positions into weighted point
// sets for the map's density layers.
package heatmap

import (
	"math"
	"sync"
	"time"

	"github.com/ucs-fleet/livemap/pkg/core"
)

// DefaultThrottle bounds recompute cost under high-frequency streams.
const DefaultThrottle = 500 * time.Millisecond

// TaskWeight is the fixed emphasis of the task layer relative to the
// per-drone weight of 1.
const TaskWeight = 2.0

// Aggregator computes the drone/task/member layers, throttled to a
// maximum update rate. Layer visibility is a multi-select set.
type Aggregator struct {
	mu       sync.Mutex
	throttle time.Duration
	last     time.Time
	cached   core.HeatLayers
	visible  map[core.HeatLayer]bool
}

// NewAggregator creates an aggregator. A throttle <= 0 selects the
// default. All layers start visible.
func NewAggregator(throttle time.Duration) *Aggregator {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Aggregator{
		throttle: throttle,
		visible: map[core.HeatLayer]bool{
			core.HeatLayerDrone:  true,
			core.HeatLayerTask:   true,
			core.HeatLayerMember: true,
		},
	}
}

// Compute returns the layer point sets for the given fleet snapshot.
// When called again within the throttle window it returns the cached
// layers and reports recomputed=false, even if the registry changed.
func (a *Aggregator) Compute(vehicles []core.VehicleState, now time.Time) (layers core.HeatLayers, recomputed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.last.IsZero() && now.Sub(a.last) < a.throttle {
		return a.cached, false
	}

	a.cached = buildLayers(vehicles)
	a.last = now
	return a.cached, true
}

func buildLayers(vehicles []core.VehicleState) core.HeatLayers {
	var out core.HeatLayers
	buckets := make(map[[2]float64]int)

	for i := range vehicles {
		v := &vehicles[i]
		if !v.HasPosition() {
			continue
		}
		out.Drone = append(out.Drone, core.WeightedPoint{Lng: v.Lng, Lat: v.Lat, Weight: 1})
		if v.TaskStatus == core.TaskStatusExecuting {
			out.Task = append(out.Task, core.WeightedPoint{Lng: v.Lng, Lat: v.Lat, Weight: TaskWeight})
		}
		// ~1.1km buckets: two decimal places.
		key := [2]float64{roundTo2(v.Lat), roundTo2(v.Lng)}
		buckets[key]++
	}

	for key, count := range buckets {
		out.Member = append(out.Member, core.WeightedPoint{
			Lat:    key[0],
			Lng:    key[1],
			Weight: float64(count),
		})
	}
	return out
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SetVisible replaces the set of visible layers.
func (a *Aggregator) SetVisible(layers ...core.HeatLayer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = make(map[core.HeatLayer]bool, len(layers))
	for _, l := range layers {
		a.visible[l] = true
	}
}

// Visible reports whether a layer is currently selected.
func (a *Aggregator) Visible(layer core.HeatLayer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visible[layer]
}

// VisibleLayers filters a layer set down to the selected layers,
// keyed by layer name for the wire payload.
func (a *Aggregator) VisibleLayers(layers core.HeatLayers) map[core.HeatLayer][]core.WeightedPoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[core.HeatLayer][]core.WeightedPoint)
	if a.visible[core.HeatLayerDrone] {
		out[core.HeatLayerDrone] = layers.Drone
	}
	if a.visible[core.HeatLayerTask] {
		out[core.HeatLayerTask] = layers.Task
	}
	if a.visible[core.HeatLayerMember] {
		out[core.HeatLayerMember] = layers.Member
	}
	return out
}
