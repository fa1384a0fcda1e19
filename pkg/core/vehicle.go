// pkg/core/vehicle.go
package core

import "time"

// FlightStatus is the flight state reported for a vehicle.
type FlightStatus string

const (
	FlightStatusFlying FlightStatus = "FLYING"
	FlightStatusIdle   FlightStatus = "IDLE"
)

// TaskStatus is the task assignment state reported for a vehicle.
type TaskStatus string

const (
	TaskStatusExecuting TaskStatus = "EXECUTING"
	TaskStatusIdle      TaskStatus = "IDLE"
)

// VehicleState is the canonical state for one UAV.
// ID is the stable fleet identifier (e.g. "UAV_001").
type VehicleState struct {
	ID             string
	Lat            float64
	Lng            float64
	Altitude       float64
	Battery        float64
	HardwareStatus string
	FlightStatus   FlightStatus
	TaskStatus     TaskStatus
	Model          string
	Owner          string
	Team           string

	// Kinematics carried by the push stream; zero when only the
	// polled snapshot has been seen for this vehicle.
	ReportedHeading float64
	GroundSpeed     float64
	VerticalSpeed   float64

	LastSeen time.Time
}

// HasPosition reports whether the state carries a plottable position.
// The zero position (0,0) is treated as "no fix yet" - the backend
// sends it for vehicles that have never reported.
func (v *VehicleState) HasPosition() bool {
	return v.Lat != 0 || v.Lng != 0
}

// Flying reports whether the vehicle is currently airborne.
func (v *VehicleState) Flying() bool {
	return v.FlightStatus == FlightStatusFlying
}

// VehicleSample is one inbound update for a vehicle. Nil fields were
// absent from the source payload and must not overwrite stored state.
type VehicleSample struct {
	ID             string
	Lat            *float64
	Lng            *float64
	Altitude       *float64
	Battery        *float64
	HardwareStatus *string
	FlightStatus   *FlightStatus
	TaskStatus     *TaskStatus
	Model          *string
	Owner          *string
	Team           *string

	ReportedHeading *float64
	GroundSpeed     *float64
	VerticalSpeed   *float64

	Time time.Time
}

// ChangeSet is the result of applying a batch of samples to the
// registry. All three slices are sorted lexicographically by id so
// downstream consumers never reorder on a no-op refresh.
type ChangeSet struct {
	Added   []string
	Changed []string
	Removed []string
}

// Empty reports whether the batch produced no observable change.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}
