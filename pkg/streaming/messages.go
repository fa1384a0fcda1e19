package streaming

import (
	"encoding/json"
	"time"

	"github.com/ucs-fleet/livemap/pkg/core"
)

// Message type constants for the outbound render stream.
const (
	TypeMarkerUpsert = "marker_upsert"
	TypeMarkerRemove = "marker_remove"
	TypeTrail        = "trail"
	TypeHeatmap      = "heatmap"
	TypePopupOpen    = "popup_open"
	TypePopupClose   = "popup_close"
	TypePopupRefresh = "popup_refresh"
	TypeStatus       = "status"
)

// Envelope wraps all messages sent to the map front end.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the front end's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// MarkerStyle selects the visual class for a marker.
type MarkerStyle string

const (
	StyleFlying MarkerStyle = "flying"
	StyleIdle   MarkerStyle = "idle"
)

// MarkerUpsertPayload creates or moves one marker. The front end must
// move an existing element in place; Created distinguishes the first
// appearance so it can build the element and bind its popup.
type MarkerUpsertPayload struct {
	ID      string      `json:"id"`
	Lat     float64     `json:"lat"`
	Lng     float64     `json:"lng"`
	X       float64     `json:"x"` // EPSG:3857
	Y       float64     `json:"y"` // EPSG:3857
	Heading float64     `json:"heading"`
	Style   MarkerStyle `json:"style"`
	Created bool        `json:"created"`
	Popup   string      `json:"popup,omitempty"` // refreshed popup HTML-ish text content
}

// MarkerRemovePayload removes a marker and its popup binding.
type MarkerRemovePayload struct {
	ID string `json:"id"`
}

// TrailPayload replaces the rendered trail geometry for one vehicle.
// Coords is a GeoJSON-style [lng,lat] sequence; WKT carries the same
// line for clients that consume well-known text.
type TrailPayload struct {
	ID     string       `json:"id"`
	Coords [][2]float64 `json:"coords"`
	WKT    string       `json:"wkt,omitempty"`
}

// HeatPoint is one weighted heatmap point on the wire.
type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// HeatmapPayload replaces the point sets of every visible layer.
type HeatmapPayload struct {
	Layers map[string][]HeatPoint `json:"layers"`
}

// PopupPayload opens, refreshes, or closes the detail popup.
type PopupPayload struct {
	Key     string  `json:"key"` // "<kind>:<id>"
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
	Content string  `json:"content,omitempty"`
}

// StatusPayload carries the dashboard side panels and stream health.
type StatusPayload struct {
	Time            time.Time         `json:"time"`
	Stats           core.FleetStats   `json:"stats"`
	Weather         *core.Weather     `json:"weather,omitempty"`
	Tasks           *core.TaskSummary `json:"tasks,omitempty"`
	Teams           []core.TeamInfo   `json:"teams,omitempty"`
	Events          []core.Event      `json:"events,omitempty"`
	Home            *core.Home        `json:"home,omitempty"`
	StreamConnected bool              `json:"streamConnected"`
}
