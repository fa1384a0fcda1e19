// Package stream maintains the push-telemetry WebSocket subscription.
// Batches arrive on a topic after a subscribe frame; the connection
// resubscribes automatically after reconnects.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/ucs-fleet/livemap/internal/ingest"
)

const writeWait = 10 * time.Second

// Config holds the push connection settings.
type Config struct {
	URL              string
	Topic            string
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	HandshakeTimeout time.Duration
}

// BatchFunc receives each telemetry batch as it arrives.
type BatchFunc func(*ingest.TelemetryBatch)

// StateFunc receives connection state transitions.
type StateFunc func(connected bool)

// subscribeFrame is sent after every (re)connect to select the topic.
type subscribeFrame struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// controlFrame covers non-batch messages from the gateway.
type controlFrame struct {
	Type string `json:"type"`
}

// Client manages the inbound telemetry WebSocket connection.
type Client struct {
	mu     sync.Mutex
	conn   *ws.Conn
	done   chan struct{} // closed on shutdown
	closed bool

	cfg    Config
	dialer *ws.Dialer

	// Cached subscribe frame for reconnect replay.
	cachedSubscribe []byte

	onBatch BatchFunc
	onState StateFunc

	logger *slog.Logger
}

// New creates a stream client. onState may be nil.
func New(cfg Config, onBatch BatchFunc, onState StateFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &Client{
		done:    make(chan struct{}),
		cfg:     cfg,
		dialer:  &ws.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		onBatch: onBatch,
		onState: onState,
		logger:  logger,
	}
}

// Connect dials the gateway, subscribes to the telemetry topic, and
// starts the read loop.
func (c *Client) Connect() error {
	frame, err := json.Marshal(subscribeFrame{Type: "subscribe", Topic: c.cfg.Topic})
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.cachedSubscribe = frame
	c.mu.Unlock()

	if err := c.writeFrame(conn, frame); err != nil {
		_ = conn.Close()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	c.setState(true)
	go c.readLoop()
	return nil
}

func (c *Client) dialOnce() (*ws.Conn, error) {
	conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *Client) writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop reads telemetry batches until the connection drops or the
// client closes. Batches that arrive after Close are discarded.
func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Telemetry read error", "error", err)
			c.setState(false)
			go c.reconnect()
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		// Control frames carry a type tag; telemetry batches do not.
		var ctrl controlFrame
		if json.Unmarshal(message, &ctrl) == nil && ctrl.Type != "" {
			c.logger.Debug("Control frame received", "type", ctrl.Type)
			continue
		}

		batch, err := ingest.ParsePushBatch(message)
		if err != nil {
			c.logger.Warn("Malformed telemetry batch dropped", "error", err)
			continue
		}

		if c.onBatch != nil {
			c.onBatch(batch)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff and
// replays the subscribe frame. It retries until it succeeds or the
// client is closed; the map keeps serving REST snapshots meanwhile.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	cached := c.cachedSubscribe
	c.mu.Unlock()

	backoff := c.cfg.ReconnectMin
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting telemetry stream", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > c.cfg.ReconnectMax {
				backoff = c.cfg.ReconnectMax
			}
			continue
		}

		if err := c.writeFrame(conn, cached); err != nil {
			c.logger.Warn("Failed to resubscribe after reconnect", "error", err)
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Telemetry stream reconnected", "attempt", attempt)
		c.setState(true)
		go c.readLoop()
		return
	}
}

func (c *Client) setState(connected bool) {
	if c.onState != nil {
		c.onState(connected)
	}
}

// Close sends a close frame and shuts down the read loop. Batches
// already in flight are dropped, not applied.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.setState(false)

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
