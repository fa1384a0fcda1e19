package core

import "time"

// TrailPoint is one position in a vehicle's recent flight trail.
type TrailPoint struct {
	Lng  float64
	Lat  float64
	Time time.Time
}

// WeightedPoint is one heatmap input point.
type WeightedPoint struct {
	Lng    float64
	Lat    float64
	Weight float64
}

// HeatLayer identifies one of the selectable heatmap layers.
type HeatLayer string

const (
	HeatLayerDrone  HeatLayer = "drone"
	HeatLayerTask   HeatLayer = "task"
	HeatLayerMember HeatLayer = "member"
)

// HeatLayers holds the weighted point sets for every layer of one
// aggregation pass.
type HeatLayers struct {
	Drone  []WeightedPoint
	Task   []WeightedPoint
	Member []WeightedPoint
}
