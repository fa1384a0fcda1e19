package popup

import (
	"sync"
	"time"
)

// Hooks are the visual callbacks invoked outside the state machine.
// Nil hooks are allowed.
type Hooks struct {
	OnShow  func(Key)
	OnClose func(Key)
}

// Manager drives the popup state machine with wall-clock time and a
// watchdog goroutine. The watchdog only runs while a popup is open and
// is cancelled on explicit close, not just on expiry.
type Manager struct {
	mu    sync.Mutex
	state State
	cfg   Config
	hooks Hooks

	watchStop chan struct{}
}

// NewManager creates a manager. Zero-valued config fields fall back to
// DefaultConfig.
func NewManager(cfg Config, hooks Hooks) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.Interval <= 0 || cfg.Interval > cfg.Timeout/2 {
		cfg.Interval = cfg.Timeout / 2
	}
	return &Manager{cfg: cfg, hooks: hooks}
}

// Open requests the popup for key, closing any other open popup first.
func (m *Manager) Open(key Key) {
	m.apply(OpenEvent{Key: key}, time.Now())
}

// Close closes the active popup and cancels the watchdog.
func (m *Manager) Close() {
	m.apply(CloseEvent{}, time.Now())
}

// SetHovered reports pointer presence inside the popup element.
func (m *Manager) SetHovered(inside bool) {
	m.apply(HoverEvent{Inside: inside}, time.Now())
}

// Active returns the open popup key, if any.
func (m *Manager) Active() (Key, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Key, m.state.Open
}

// Stop tears the manager down, closing any open popup.
func (m *Manager) Stop() {
	m.Close()
}

// apply runs one transition under the lock, manages the watchdog
// lifecycle, and fires hooks after unlocking.
func (m *Manager) apply(ev Event, now time.Time) {
	m.mu.Lock()
	wasOpen := m.state.Open
	next, fx := Transition(m.state, ev, now, m.cfg)
	m.state = next

	if next.Open && !wasOpen {
		m.startWatchdogLocked()
	}
	if !next.Open && wasOpen {
		m.stopWatchdogLocked()
	}
	m.mu.Unlock()

	for _, k := range fx.Close {
		if m.hooks.OnClose != nil {
			m.hooks.OnClose(k)
		}
	}
	if fx.Show != nil && m.hooks.OnShow != nil {
		m.hooks.OnShow(*fx.Show)
	}
}

func (m *Manager) startWatchdogLocked() {
	stop := make(chan struct{})
	m.watchStop = stop

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.apply(TickEvent{}, time.Now())
			}
		}
	}()
}

func (m *Manager) stopWatchdogLocked() {
	if m.watchStop != nil {
		close(m.watchStop)
		m.watchStop = nil
	}
}
