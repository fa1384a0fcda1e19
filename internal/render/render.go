// Package render streams map operations to the display front end over
// WebSocket. It is the only writer to the display; everything it sends
// is a streaming.Envelope.
package render

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ucs-fleet/livemap/internal/popup"
	"github.com/ucs-fleet/livemap/pkg/streaming"
)

// Config holds the display connection settings.
type Config struct {
	URL    string
	Secret string
}

// Broadcaster sends render operations to the map front end. It
// implements marker.Renderer.
type Broadcaster struct {
	conn   *connection
	cfg    Config
	logger *slog.Logger
}

// New creates a broadcaster for the given display endpoint.
func New(cfg Config, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		conn:   newConnection(logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Init connects to the display server.
func (b *Broadcaster) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the display server.
func (b *Broadcaster) Close() error {
	return b.conn.close()
}

// SetOnReconnect registers a hook run after every successful reconnect.
// The engine uses it to re-render full marker and trail state for the
// freshly attached front end.
func (b *Broadcaster) SetOnReconnect(hook func()) {
	b.conn.mu.Lock()
	b.conn.onReconnect = hook
	b.conn.mu.Unlock()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Broadcaster) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		b.logger.Error("Dropping unmarshalable render op", "type", msgType, "error", err)
		return
	}
	b.conn.send(data)
}

// UpsertMarker creates or moves one marker on the display.
func (b *Broadcaster) UpsertMarker(p streaming.MarkerUpsertPayload) {
	b.sendEnvelope(streaming.TypeMarkerUpsert, p)
}

// RemoveMarker removes a marker and its popup binding.
func (b *Broadcaster) RemoveMarker(id string) {
	b.sendEnvelope(streaming.TypeMarkerRemove, streaming.MarkerRemovePayload{ID: id})
}

// Trail replaces the rendered trail geometry for one vehicle.
func (b *Broadcaster) Trail(p streaming.TrailPayload) {
	b.sendEnvelope(streaming.TypeTrail, p)
}

// Heatmap replaces the point sets of every visible heat layer.
func (b *Broadcaster) Heatmap(layers map[string][]streaming.HeatPoint) {
	b.sendEnvelope(streaming.TypeHeatmap, streaming.HeatmapPayload{Layers: layers})
}

// PopupOpen opens the detail popup for a key.
func (b *Broadcaster) PopupOpen(key popup.Key, lat, lng float64, content string) {
	b.sendEnvelope(streaming.TypePopupOpen, streaming.PopupPayload{
		Key: string(key), Lat: lat, Lng: lng, Content: content,
	})
}

// PopupClose closes the popup for a key.
func (b *Broadcaster) PopupClose(key popup.Key) {
	b.sendEnvelope(streaming.TypePopupClose, streaming.PopupPayload{Key: string(key)})
}

// RefreshPopup updates an open popup's anchor and content in place.
func (b *Broadcaster) RefreshPopup(key popup.Key, lat, lng float64, content string) {
	b.sendEnvelope(streaming.TypePopupRefresh, streaming.PopupPayload{
		Key: string(key), Lat: lat, Lng: lng, Content: content,
	})
}

// Status sends the dashboard panels and stream health, and caches the
// message for replay after reconnects.
func (b *Broadcaster) Status(p streaming.StatusPayload) {
	data, err := marshalEnvelope(streaming.TypeStatus, p)
	if err != nil {
		b.logger.Error("Dropping unmarshalable status", "error", err)
		return
	}

	b.conn.mu.Lock()
	b.conn.cachedStatus = data
	b.conn.mu.Unlock()

	b.conn.send(data)
}

// StatusAndWait sends a status message and blocks until the front end
// acknowledges it. Used for the initial handshake so the engine knows
// the display is attached before streaming markers.
func (b *Broadcaster) StatusAndWait(p streaming.StatusPayload) error {
	data, err := marshalEnvelope(streaming.TypeStatus, p)
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedStatus = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStatus, ackTimeout)
}
