// pkg/core/dashboard.go
package core

import "time"

// Weather is the current flight-weather report for the operating area.
type Weather struct {
	Temperature float64
	Humidity    float64
	WindSpeed   float64
	RiskLevel   string
}

// TaskSummary aggregates fleet task counts for the status panel.
type TaskSummary struct {
	Total     int
	Executing int
	Completed int
	Abnormal  int
	Pending   int
}

// TeamInfo describes one operator team.
type TeamInfo struct {
	TeamID      string
	TeamName    string
	Leader      string
	MemberCount int
}

// Event is a platform alert or notification.
type Event struct {
	EventType string
	UAVID     string
	Level     string
	Time      time.Time
	Message   string
}

// FleetStats are the live counters shown on the dashboard and
// exported to the metrics sink.
type FleetStats struct {
	Total      int
	Flying     int
	LowBattery int
	Abnormal   int
}

// LowBatteryThreshold is the battery percentage below which a vehicle
// counts toward the low-battery alarm.
const LowBatteryThreshold = 30.0

// Home is the fleet home position carried in push batch headers.
type Home struct {
	Lat float64
	Lng float64
	Alt float64
}
