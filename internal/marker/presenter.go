// Package marker reconciles the registry's vehicle set against the set
// of rendered map markers. It owns the rendered-marker map: no other
// component creates or destroys marker handles.
package marker

import (
	"fmt"
	"sync"

	"github.com/ucs-fleet/livemap/internal/geo"
	"github.com/ucs-fleet/livemap/internal/heading"
	"github.com/ucs-fleet/livemap/internal/popup"
	"github.com/ucs-fleet/livemap/internal/registry"
	"github.com/ucs-fleet/livemap/pkg/core"
	"github.com/ucs-fleet/livemap/pkg/streaming"
)

// Renderer receives the minimal create/update/remove operations of a
// reconciliation pass. Implementations draw into the map widget (or
// record, in tests).
type Renderer interface {
	UpsertMarker(streaming.MarkerUpsertPayload)
	RemoveMarker(id string)
	RefreshPopup(key popup.Key, lat, lng float64, content string)
}

// Filter selects which flight states are visible on the map.
type Filter struct {
	Flying bool
	Idle   bool
}

// DefaultFilter shows everything.
var DefaultFilter = Filter{Flying: true, Idle: true}

func (f Filter) passes(v *core.VehicleState) bool {
	if v.Flying() {
		return f.Flying
	}
	return f.Idle
}

// handle is the book-keeping for one rendered marker. The visual
// element it stands for lives exactly as long as the handle.
type handle struct {
	lat, lng float64
	rotation float64
	style    streaming.MarkerStyle
}

// Presenter diffs canonical state against rendered state and emits
// only the necessary operations. A marker is never destroyed and
// recreated just to move it.
type Presenter struct {
	mu       sync.Mutex
	rendered map[string]*handle

	headings *heading.Estimator
	popups   *popup.Manager
	renderer Renderer
}

// NewPresenter creates a presenter drawing through the given renderer.
func NewPresenter(headings *heading.Estimator, popups *popup.Manager, renderer Renderer) *Presenter {
	return &Presenter{
		rendered: make(map[string]*handle),
		headings: headings,
		popups:   popups,
		renderer: renderer,
	}
}

// Reconcile brings the rendered marker set in line with the registry
// under the given visibility filter.
func (p *Presenter) Reconcile(reg *registry.Registry, filter Filter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := reg.Snapshot()
	visible := make(map[string]*core.VehicleState, len(snapshot))
	for i := range snapshot {
		v := &snapshot[i]
		if v.HasPosition() && filter.passes(v) {
			visible[v.ID] = v
		}
	}

	// Drop markers whose vehicle left the visible set. A popup still
	// bound to a removed id is force-closed as part of the cleanup.
	for id := range p.rendered {
		if _, ok := visible[id]; ok {
			continue
		}
		delete(p.rendered, id)
		p.renderer.RemoveMarker(id)
		if key, open := p.popups.Active(); open && key == popup.NewKey(popup.KindDrone, id) {
			p.popups.Close()
		}
	}

	// Snapshot() is sorted by id, so create/update order is stable
	// across passes.
	for i := range snapshot {
		v := &snapshot[i]
		if _, ok := visible[v.ID]; !ok {
			continue
		}
		if h, ok := p.rendered[v.ID]; ok {
			p.updateLocked(h, v)
		} else {
			p.createLocked(v)
		}
	}
}

func (p *Presenter) createLocked(v *core.VehicleState) {
	h := &handle{
		lat:      v.Lat,
		lng:      v.Lng,
		rotation: p.rotationFor(v),
		style:    styleFor(v),
	}
	p.rendered[v.ID] = h
	p.renderer.UpsertMarker(p.payload(v.ID, h, true, PopupContent(v)))
}

func (p *Presenter) updateLocked(h *handle, v *core.VehicleState) {
	rotation := p.rotationFor(v)
	style := styleFor(v)

	dirty := h.lat != v.Lat || h.lng != v.Lng || h.rotation != rotation || h.style != style
	h.lat, h.lng = v.Lat, v.Lng
	h.rotation = rotation
	// Style writes are skipped when the flying/idle class is unchanged;
	// the payload still names the current style for the dirty cases.
	h.style = style

	if dirty {
		p.renderer.UpsertMarker(p.payload(v.ID, h, false, ""))
	}

	// An open popup anchored to this id follows the vehicle: position
	// and text refresh without disturbing its open state or deadline.
	key := popup.NewKey(popup.KindDrone, v.ID)
	if active, open := p.popups.Active(); open && active == key {
		p.renderer.RefreshPopup(key, v.Lat, v.Lng, PopupContent(v))
	}
}

func (p *Presenter) payload(id string, h *handle, created bool, popupContent string) streaming.MarkerUpsertPayload {
	x, y := geo.ToWebMercator(h.lat, h.lng)
	return streaming.MarkerUpsertPayload{
		ID:      id,
		Lat:     h.lat,
		Lng:     h.lng,
		X:       x,
		Y:       y,
		Heading: h.rotation,
		Style:   h.style,
		Created: created,
		Popup:   popupContent,
	}
}

// rotationFor prefers the heading reported by the vehicle itself (push
// stream) and falls back to the estimator's derived bearing.
func (p *Presenter) rotationFor(v *core.VehicleState) float64 {
	if v.ReportedHeading != 0 {
		return v.ReportedHeading
	}
	return p.headings.Heading(v.ID)
}

func styleFor(v *core.VehicleState) streaming.MarkerStyle {
	if v.Flying() {
		return streaming.StyleFlying
	}
	return streaming.StyleIdle
}

// HandleClick is the click handler bound to every marker. Clicking the
// vehicle whose popup is already active just resets its deadline; any
// other click closes the previous popup and opens this one.
func (p *Presenter) HandleClick(id string) {
	p.popups.Open(popup.NewKey(popup.KindDrone, id))
}

// Rendered reports whether a marker currently exists for id.
func (p *Presenter) Rendered(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rendered[id]
	return ok
}

// RenderedCount returns the number of live marker handles.
func (p *Presenter) RenderedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rendered)
}

// Reset forgets every rendered marker, e.g. on view teardown.
func (p *Presenter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.rendered {
		p.renderer.RemoveMarker(id)
	}
	p.rendered = make(map[string]*handle)
}

// PopupContent renders the detail text for a vehicle's popup from its
// current state snapshot.
func PopupContent(v *core.VehicleState) string {
	status := "Idle"
	if v.Flying() {
		status = "Flying"
	}
	return fmt.Sprintf("%s | %s | %.1f%% | %.0fm | %s | %s",
		v.ID, v.Model, v.Battery, v.Altitude, status, v.Owner)
}
