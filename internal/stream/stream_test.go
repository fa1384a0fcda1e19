package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucs-fleet/livemap/internal/ingest"
)

var upgrader = ws.Upgrader{}

// testGateway is a one-connection fake telemetry gateway.
type testGateway struct {
	t *testing.T

	mu        sync.Mutex
	conn      *ws.Conn
	subscribe chan subscribeFrame
}

func newTestGateway(t *testing.T) (*testGateway, *httptest.Server) {
	g := &testGateway{t: t, subscribe: make(chan subscribeFrame, 4)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame subscribeFrame
			if json.Unmarshal(msg, &frame) == nil && frame.Type == "subscribe" {
				g.subscribe <- frame
			}
		}
	}))
	t.Cleanup(server.Close)
	return g, server
}

func (g *testGateway) send(raw string) {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		g.t.Fatal("gateway has no connection")
	}
	if err := conn.WriteMessage(ws.TextMessage, []byte(raw)); err != nil {
		g.t.Fatalf("gateway write: %v", err)
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnect_Subscribes(t *testing.T) {
	g, server := newTestGateway(t)

	c := New(Config{URL: wsURL(server), Topic: "/topic/telemetry"}, nil, nil, nil)
	require.NoError(t, c.Connect())
	defer c.Close()

	select {
	case frame := <-g.subscribe:
		assert.Equal(t, "/topic/telemetry", frame.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe frame received")
	}
}

func TestBatchDelivery(t *testing.T) {
	g, server := newTestGateway(t)

	var mu sync.Mutex
	var batches []*ingest.TelemetryBatch
	onBatch := func(b *ingest.TelemetryBatch) {
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
	}

	c := New(Config{URL: wsURL(server), Topic: "/topic/telemetry"}, onBatch, nil, nil)
	require.NoError(t, c.Connect())
	defer c.Close()

	<-g.subscribe
	g.send(`{"msgSeqNumber":7,"uavs":[{"uavId":1,"lat":39.9,"lon":116.4,"isActive":true}]}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, "batch not delivered")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(7), batches[0].MsgSeqNumber)
	require.Len(t, batches[0].UAVs, 1)
	assert.Equal(t, 1, batches[0].UAVs[0].UAVID)
}

func TestControlFrameIgnored(t *testing.T) {
	g, server := newTestGateway(t)

	var mu sync.Mutex
	var count int
	onBatch := func(*ingest.TelemetryBatch) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	c := New(Config{URL: wsURL(server), Topic: "/topic/telemetry"}, onBatch, nil, nil)
	require.NoError(t, c.Connect())
	defer c.Close()

	<-g.subscribe
	g.send(`{"type":"subscribed"}`)
	g.send(`{"uavs":[{"uavId":2,"lat":1,"lon":1,"isActive":true}]}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, "expected exactly the real batch to be delivered")
}

func TestStateCallback(t *testing.T) {
	g, server := newTestGateway(t)

	var mu sync.Mutex
	var states []bool
	onState := func(connected bool) {
		mu.Lock()
		states = append(states, connected)
		mu.Unlock()
	}

	c := New(Config{
		URL:          wsURL(server),
		Topic:        "/topic/telemetry",
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 50 * time.Millisecond,
	}, nil, onState, nil)
	require.NoError(t, c.Connect())

	<-g.subscribe

	mu.Lock()
	require.Equal(t, []bool{true}, states)
	mu.Unlock()

	// Server drops the connection; the client reports down, then
	// reconnects and resubscribes.
	g.mu.Lock()
	g.conn.Close()
	g.mu.Unlock()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 3 && !states[1] && states[2]
	}, "expected down/up transitions after reconnect")

	select {
	case <-g.subscribe:
		// resubscribed
	case <-time.After(2 * time.Second):
		t.Fatal("no resubscribe after reconnect")
	}

	c.Close()
}

func TestClose_Idempotent(t *testing.T) {
	_, server := newTestGateway(t)

	c := New(Config{URL: wsURL(server), Topic: "/topic/telemetry"}, nil, nil, nil)
	require.NoError(t, c.Connect())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestConnect_DialFailure(t *testing.T) {
	c := New(Config{URL: "ws://localhost:59998/ws", Topic: "/t"}, nil, nil, nil)
	err := c.Connect()
	assert.Error(t, err)
}
