package heading

import (
	"math"
	"testing"
)

func TestUpdate_NorthboundMovement(t *testing.T) {
	e := NewEstimator(0)

	// ~5.5m due north.
	h := e.Update("A", 39.90000, 116.4, 39.90005, 116.4, true)

	if math.Abs(h) > 0.5 {
		t.Errorf("expected heading ~0 (north), got %f", h)
	}
}

func TestUpdate_EastboundMovement(t *testing.T) {
	e := NewEstimator(0)

	h := e.Update("A", 0, 116.40000, 0, 116.40005, true)

	if math.Abs(h-90) > 0.5 {
		t.Errorf("expected heading ~90 (east), got %f", h)
	}
}

func TestUpdate_NoFlickerBelowThreshold(t *testing.T) {
	e := NewEstimator(0)
	e.Update("A", 0, 116.40000, 0, 116.40005, true)

	// Sub-meter jitter while hovering: heading must not change.
	h := e.Update("A", 0, 116.40005, 0.0000001, 116.40005, true)

	if math.Abs(h-90) > 0.5 {
		t.Errorf("heading changed on jitter: %f", h)
	}
}

func TestUpdate_IdleKeepsHeading(t *testing.T) {
	e := NewEstimator(0)
	e.Update("A", 0, 116.40000, 0, 116.40005, true)

	h := e.Update("A", 0, 116.40005, 0.001, 116.40005, false)

	if math.Abs(h-90) > 0.5 {
		t.Errorf("idle update changed heading: %f", h)
	}
}

func TestUpdate_UnseenDefaultsToZero(t *testing.T) {
	e := NewEstimator(0)

	if h := e.Heading("never-seen"); h != 0 {
		t.Errorf("expected 0 for unseen id, got %f", h)
	}
	if h := e.Update("A", 39.9, 116.4, 39.9, 116.4, true); h != 0 {
		t.Errorf("expected 0 without movement, got %f", h)
	}
}

func TestUpdate_Normalized(t *testing.T) {
	e := NewEstimator(0)

	// Westbound: bearing 270, never negative.
	h := e.Update("A", 0, 116.40005, 0, 116.40000, true)

	if h < 0 || h >= 360 {
		t.Errorf("heading out of range: %f", h)
	}
	if math.Abs(h-270) > 0.5 {
		t.Errorf("expected ~270, got %f", h)
	}
}

func TestDelete(t *testing.T) {
	e := NewEstimator(0)
	e.Update("A", 0, 116.40000, 0, 116.40005, true)

	e.Delete("A")

	if h := e.Heading("A"); h != 0 {
		t.Errorf("expected reset heading, got %f", h)
	}
}
