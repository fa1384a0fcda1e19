package popup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cfg    = Config{Timeout: 6 * time.Second, Interval: 3 * time.Second}
	origin = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func at(ms int) time.Time { return origin.Add(time.Duration(ms) * time.Millisecond) }

func TestKey_Parts(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")
	assert.Equal(t, Key("drone:UAV_001"), k)
	assert.Equal(t, KindDrone, k.Kind())
	assert.Equal(t, "UAV_001", k.ID())
}

func TestTransition_OpenFromClosed(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")

	s, fx := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)

	assert.True(t, s.Open)
	assert.Equal(t, k, s.Key)
	assert.Equal(t, at(6000), s.Deadline)
	assert.False(t, s.Hovered)
	require.NotNil(t, fx.Show)
	assert.Equal(t, k, *fx.Show)
	assert.Empty(t, fx.Close)
}

func TestTransition_ReopenSameKeyOnlyExtends(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")
	s, _ := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)

	s, fx := Transition(s, OpenEvent{Key: k}, at(2000), cfg)

	assert.Equal(t, at(8000), s.Deadline)
	assert.Nil(t, fx.Show, "re-click must not recreate the popup")
	assert.Empty(t, fx.Close)
}

func TestTransition_SingleActive(t *testing.T) {
	x := NewKey(KindDrone, "X")
	y := NewKey(KindDrone, "Y")
	s, _ := Transition(State{}, OpenEvent{Key: x}, at(0), cfg)

	s, fx := Transition(s, OpenEvent{Key: y}, at(1000), cfg)

	assert.Equal(t, y, s.Key)
	assert.Equal(t, []Key{x}, fx.Close, "previous popup removed first")
	require.NotNil(t, fx.Show)
	assert.Equal(t, y, *fx.Show)
	assert.False(t, s.Hovered)
}

func TestTransition_Close(t *testing.T) {
	k := NewKey(KindMember, "M1")
	s, _ := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)

	s, fx := Transition(s, CloseEvent{}, at(1000), cfg)

	assert.False(t, s.Open)
	assert.Equal(t, []Key{k}, fx.Close)
}

func TestTransition_WatchdogExpiry(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")
	s, _ := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)

	// Before the deadline: nothing happens.
	s, fx := Transition(s, TickEvent{}, at(3000), cfg)
	assert.True(t, s.Open)
	assert.Empty(t, fx.Close)

	// At the deadline: closed.
	s, fx = Transition(s, TickEvent{}, at(6000), cfg)
	assert.False(t, s.Open)
	assert.Equal(t, []Key{k}, fx.Close)
}

func TestTransition_HoverExtendsImmediately(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")
	s, _ := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)

	s, _ = Transition(s, HoverEvent{Inside: true}, at(4000), cfg)

	assert.True(t, s.Hovered)
	assert.Equal(t, at(10000), s.Deadline, "mouse-enter extends to now+timeout")

	// Leaving only clears the flag; the deadline stays.
	s, _ = Transition(s, HoverEvent{Inside: false}, at(5000), cfg)
	assert.False(t, s.Hovered)
	assert.Equal(t, at(10000), s.Deadline)
}

func TestTransition_WatchdogHoverExtensionLastWindowOnly(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")
	s, _ := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)
	s.Hovered = true

	// Deadline 6000, interval 3000. A tick at 1000 is outside the
	// last window: no extension.
	s, _ = Transition(s, TickEvent{}, at(1000), cfg)
	assert.Equal(t, at(6000), s.Deadline)

	// A tick at 3500 is within [deadline-interval, deadline): extend.
	s, _ = Transition(s, TickEvent{}, at(3500), cfg)
	assert.Equal(t, at(9500), s.Deadline)
}

func TestTransition_ClosedStaysClosedAfterExpiry(t *testing.T) {
	k := NewKey(KindDrone, "UAV_001")
	s, _ := Transition(State{}, OpenEvent{Key: k}, at(0), cfg)
	s, _ = Transition(s, TickEvent{}, at(6000), cfg)
	require.False(t, s.Open)

	// Late hover and tick events on a closed popup are no-ops; the
	// popup must not reopen.
	s, fx := Transition(s, HoverEvent{Inside: false}, at(6100), cfg)
	assert.False(t, s.Open)
	assert.Empty(t, fx.Close)

	s, fx = Transition(s, TickEvent{}, at(9000), cfg)
	assert.False(t, s.Open)
	assert.Nil(t, fx.Show)
}

func TestManager_HooksAndSingleActive(t *testing.T) {
	var shown, closed []Key
	m := NewManager(cfg, Hooks{
		OnShow:  func(k Key) { shown = append(shown, k) },
		OnClose: func(k Key) { closed = append(closed, k) },
	})
	defer m.Stop()

	x := NewKey(KindDrone, "X")
	y := NewKey(KindDrone, "Y")

	m.Open(x)
	m.Open(y)

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, y, active)
	assert.Equal(t, []Key{x, y}, shown)
	assert.Equal(t, []Key{x}, closed)

	m.Close()
	_, ok = m.Active()
	assert.False(t, ok)
	assert.Equal(t, []Key{x, y}, closed)
}

func TestManager_WatchdogIntervalClamped(t *testing.T) {
	m := NewManager(Config{Timeout: 6 * time.Second, Interval: 5 * time.Second}, Hooks{})
	assert.Equal(t, 3*time.Second, m.cfg.Interval)
}
