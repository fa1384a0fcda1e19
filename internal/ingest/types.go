package ingest

// DroneStatus is one record of the polled REST snapshot
// (/api/v1/screen/uav/list).
type DroneStatus struct {
	UAVID          string  `json:"uavId"`
	DroneSN        string  `json:"droneSn"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Altitude       float64 `json:"altitude"`
	Battery        float64 `json:"battery"`
	HardwareStatus string  `json:"hardwareStatus"`
	FlightStatus   string  `json:"flightStatus"`
	TaskStatus     string  `json:"taskStatus"`
	Color          string  `json:"color"`
	Model          string  `json:"model"`
	Owner          string  `json:"owner"`
	Team           string  `json:"team"`
}

// TelemetryData is one vehicle record of a push-stream batch. The
// gateway keys vehicles numerically and reports liveness as a boolean
// instead of a flight-status enum.
type TelemetryData struct {
	UAVID         int     `json:"uavId"`
	Timestamp     string  `json:"timestamp"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Alt           float64 `json:"alt"`
	Heading       float64 `json:"heading"`
	GroundSpeed   float64 `json:"groundSpeed"`
	VerticalSpeed float64 `json:"verticalSpeed"`
	NedX          float64 `json:"nedX"`
	NedY          float64 `json:"nedY"`
	NedZ          float64 `json:"nedZ"`
	Vx            float64 `json:"vx"`
	Vy            float64 `json:"vy"`
	Vz            float64 `json:"vz"`
	DataAge       float64 `json:"dataAge"`
	MsgCount      int     `json:"msgCount"`
	IsActive      bool    `json:"isActive"`
}

// TelemetryBatch is one push-stream message on the telemetry topic.
type TelemetryBatch struct {
	Timestamp     string          `json:"timestamp"`
	MsgSeqNumber  int64           `json:"msgSeqNumber"`
	HomeLat       float64         `json:"homeLat"`
	HomeLon       float64         `json:"homeLon"`
	HomeAlt       float64         `json:"homeAlt"`
	NumUAVsTotal  int             `json:"numUavsTotal"`
	NumUAVsActive int             `json:"numUavsActive"`
	UAVs          []TelemetryData `json:"uavs"`
}
