// Package popup enforces the single-active-detail-popup rule with a
// hover-aware expiry watchdog.
//
// The transition logic is a pure function over explicit event types;
// Manager is the thin adapter that owns the timer and the visual
// callbacks.
package popup

import (
	"strings"
	"time"
)

// Kind distinguishes the entity classes a popup can be bound to.
type Kind string

const (
	KindDrone  Kind = "drone"
	KindMember Kind = "member"
)

// Key identifies a popup as "<kind>:<id>".
type Key string

// NewKey builds a popup key for the given kind and entity id.
func NewKey(kind Kind, id string) Key {
	return Key(string(kind) + ":" + id)
}

// Kind returns the kind component of the key.
func (k Key) Kind() Kind {
	if i := strings.IndexByte(string(k), ':'); i >= 0 {
		return Kind(k[:i])
	}
	return ""
}

// ID returns the entity id component of the key.
func (k Key) ID() string {
	if i := strings.IndexByte(string(k), ':'); i >= 0 {
		return string(k[i+1:])
	}
	return string(k)
}

// Config holds the expiry timing. Interval must be <= Timeout/2 for
// the last-window hover extension to fire before the deadline.
type Config struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultConfig matches the dashboard defaults: 6s auto-close checked
// by a 3s watchdog.
var DefaultConfig = Config{
	Timeout:  6 * time.Second,
	Interval: 3 * time.Second,
}

// State is the popup state machine: CLOSED, or OPEN(key, deadline,
// hovered). The zero value is CLOSED.
type State struct {
	Open     bool
	Key      Key
	Deadline time.Time
	Hovered  bool
}

// Event is one input to the transition function.
type Event interface{ isPopupEvent() }

// OpenEvent requests the popup for Key. Re-opening the active key only
// extends its deadline.
type OpenEvent struct{ Key Key }

// CloseEvent closes the active popup, if any.
type CloseEvent struct{}

// HoverEvent reports the pointer entering (Inside=true) or leaving the
// popup element.
type HoverEvent struct{ Inside bool }

// TickEvent is the periodic watchdog check.
type TickEvent struct{}

func (OpenEvent) isPopupEvent()  {}
func (CloseEvent) isPopupEvent() {}
func (HoverEvent) isPopupEvent() {}
func (TickEvent) isPopupEvent()  {}

// Effect tells the adapter which visual changes to apply: Close lists
// popups to remove, Show names a popup to create. Both may be empty
// (e.g. a deadline extension).
type Effect struct {
	Close []Key
	Show  *Key
}

// Transition applies one event at the given time and returns the next
// state plus the visual effect.
func Transition(s State, ev Event, now time.Time, cfg Config) (State, Effect) {
	switch e := ev.(type) {
	case OpenEvent:
		if s.Open && s.Key == e.Key {
			// Re-click: extend, never recreate.
			s.Deadline = now.Add(cfg.Timeout)
			return s, Effect{}
		}
		var fx Effect
		if s.Open {
			fx.Close = append(fx.Close, s.Key)
		}
		key := e.Key
		fx.Show = &key
		return State{Open: true, Key: e.Key, Deadline: now.Add(cfg.Timeout)}, fx

	case CloseEvent:
		if !s.Open {
			return s, Effect{}
		}
		return State{}, Effect{Close: []Key{s.Key}}

	case HoverEvent:
		if !s.Open {
			return s, Effect{}
		}
		s.Hovered = e.Inside
		if e.Inside {
			// Entering the popup immediately buys a full timeout.
			s.Deadline = now.Add(cfg.Timeout)
		}
		return s, Effect{}

	case TickEvent:
		if !s.Open {
			return s, Effect{}
		}
		if !now.Before(s.Deadline) {
			return State{}, Effect{Close: []Key{s.Key}}
		}
		// Only the last window before expiry honors hover, bounding
		// the worst-case linger after the pointer leaves to one
		// interval.
		if s.Hovered && !now.Before(s.Deadline.Add(-cfg.Interval)) {
			s.Deadline = now.Add(cfg.Timeout)
		}
		return s, Effect{}
	}
	return s, Effect{}
}
