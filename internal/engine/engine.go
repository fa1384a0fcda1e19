// Package engine wires the ingest, reconciliation, and render layers
// together and owns the single goroutine that mutates live-map state.
//
// Every state change - polled snapshots, pushed batches, clicks,
// filter and layer toggles - is funneled through one buffered
// dispatcher handler, so the registry, trail store, heading estimator,
// and marker presenter are only ever touched from that goroutine.
// Reads (fleet stats for the status panel, the monitor) go through the
// registry's own lock and stay off the apply path.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ucs-fleet/livemap/internal/dispatcher"
	"github.com/ucs-fleet/livemap/internal/geo"
	"github.com/ucs-fleet/livemap/internal/heading"
	"github.com/ucs-fleet/livemap/internal/heatmap"
	"github.com/ucs-fleet/livemap/internal/ingest"
	"github.com/ucs-fleet/livemap/internal/logging"
	"github.com/ucs-fleet/livemap/internal/marker"
	"github.com/ucs-fleet/livemap/internal/popup"
	"github.com/ucs-fleet/livemap/internal/registry"
	"github.com/ucs-fleet/livemap/internal/trail"
	"github.com/ucs-fleet/livemap/pkg/core"
	"github.com/ucs-fleet/livemap/pkg/streaming"
)

const cmdApply = "state.apply"

// Apply-event kinds routed through the state goroutine.
const (
	kindSnapshot   = "snapshot"
	kindPush       = "push"
	kindClick      = "click"
	kindPopupClose = "popup_close"
	kindHover      = "hover"
	kindFilter     = "filter"
	kindLayers     = "layers"
	kindRerender   = "rerender"
)

const applyQueueSize = 1024

// ScreenAPI is the upstream REST surface the engine polls.
type ScreenAPI interface {
	UAVList(ctx context.Context) ([]ingest.DroneStatus, error)
	TaskSummary(ctx context.Context) (core.TaskSummary, error)
	TeamStatus(ctx context.Context) ([]core.TeamInfo, error)
	Weather(ctx context.Context) (core.Weather, error)
	Events(ctx context.Context, limit int) ([]core.Event, error)
}

// Display receives render operations. *render.Broadcaster satisfies
// it; tests substitute a recorder.
type Display interface {
	marker.Renderer
	Trail(p streaming.TrailPayload)
	Heatmap(layers map[string][]streaming.HeatPoint)
	PopupOpen(key popup.Key, lat, lng float64, content string)
	PopupClose(key popup.Key)
	Status(p streaming.StatusPayload)
}

// MetricsSink receives reconciliation and health measurements.
// *influx.Manager satisfies it. A nil sink disables metrics.
type MetricsSink interface {
	WriteFleetStats(ctx context.Context, stats core.FleetStats) error
	WriteStreamHealth(ctx context.Context, connected bool) error
	WriteReconcile(ctx context.Context, source string, cs core.ChangeSet, elapsed time.Duration) error
}

// Tuning holds the state-engine knobs. Zero values fall back to the
// defaults used by config.GetEngineConfig.
type Tuning struct {
	PopupTimeout     time.Duration
	PopupInterval    time.Duration
	TrailMinDistance float64
	TrailMaxAge      time.Duration
	TrailMaxPoints   int
	HeadingMinMove   float64
	HeatmapThrottle  time.Duration
}

// Polling holds the per-kind REST poll periods. A period of zero
// disables that poll loop.
type Polling struct {
	UAV        time.Duration
	Task       time.Duration
	Team       time.Duration
	Weather    time.Duration
	Event      time.Duration
	EventLimit int
}

// Engine owns the live-map state and its update pipeline.
type Engine struct {
	log     *slog.Logger
	api     ScreenAPI
	display Display
	metrics MetricsSink

	tuning  Tuning
	polling Polling

	disp      *dispatcher.Dispatcher
	reg       *registry.Registry
	trails    *trail.Store
	headings  *heading.Estimator
	popups    *popup.Manager
	presenter *marker.Presenter
	heat      *heatmap.Aggregator
	ingestor  *ingest.Ingestor

	// Dashboard side-panel cache, written by the poll loops.
	mu      sync.Mutex
	filter  marker.Filter
	weather *core.Weather
	tasks   *core.TaskSummary
	teams   []core.TeamInfo
	events  []core.Event
	home    *core.Home

	streamUp atomic.Bool
	pending  atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds an engine around the given upstream API, display, and
// optional metrics sink. logger may be nil; audit is the zerolog side
// used by the dispatcher.
func New(tuning Tuning, polling Polling, api ScreenAPI, display Display, metrics MetricsSink, logger *slog.Logger, audit zerolog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	disp, err := dispatcher.New(logging.NewDispatcherLogger(audit))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		log:      logger,
		api:      api,
		display:  display,
		metrics:  metrics,
		tuning:   tuning,
		polling:  polling,
		disp:     disp,
		reg:      registry.New(),
		trails:   trail.NewStore(trailOptions(tuning)...),
		headings: heading.NewEstimator(tuning.HeadingMinMove),
		heat:     heatmap.NewAggregator(tuning.HeatmapThrottle),
		ingestor: ingest.New(logger),
		filter:   marker.DefaultFilter,
	}

	popupCfg := popup.DefaultConfig
	if tuning.PopupTimeout > 0 {
		popupCfg.Timeout = tuning.PopupTimeout
	}
	if tuning.PopupInterval > 0 {
		popupCfg.Interval = tuning.PopupInterval
	}
	e.popups = popup.NewManager(popupCfg, popup.Hooks{
		OnShow:  e.showPopup,
		OnClose: display.PopupClose,
	})
	e.presenter = marker.NewPresenter(e.headings, e.popups, display)

	disp.Register(cmdApply, e.apply, dispatcher.Buffered(applyQueueSize), dispatcher.Blocking())

	ctx, cancel := context.WithCancel(context.Background())
	e.ctx = ctx
	e.cancel = cancel
	return e, nil
}

func trailOptions(t Tuning) []trail.Option {
	var opts []trail.Option
	if t.TrailMinDistance > 0 {
		opts = append(opts, trail.WithMinDistance(t.TrailMinDistance))
	}
	if t.TrailMaxAge > 0 {
		opts = append(opts, trail.WithMaxAge(t.TrailMaxAge))
	}
	if t.TrailMaxPoints > 0 {
		opts = append(opts, trail.WithMaxPoints(t.TrailMaxPoints))
	}
	return opts
}

// Start launches the REST poll loops. It is a no-op on a second call.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true

	e.pollLoop("uav", e.polling.UAV, e.pollUAVs)
	e.pollLoop("task", e.polling.Task, e.pollTasks)
	e.pollLoop("team", e.polling.Team, e.pollTeams)
	e.pollLoop("weather", e.polling.Weather, e.pollWeather)
	e.pollLoop("event", e.polling.Event, e.pollEvents)
}

// Stop halts the poll loops, drains the apply queue, and stops the
// popup watchdog. The engine cannot be restarted.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.disp.Close()
	e.popups.Stop()
}

// HandlePushBatch queues one pushed telemetry batch. Matches
// stream.BatchFunc.
func (e *Engine) HandlePushBatch(batch *ingest.TelemetryBatch) {
	e.dispatchApply(kindPush, batch)
}

// SetStreamConnected records a push-stream state transition. Matches
// stream.StateFunc.
func (e *Engine) SetStreamConnected(connected bool) {
	e.streamUp.Store(connected)
	e.log.Info("push stream state changed", "connected", connected)
	if e.metrics != nil {
		if err := e.metrics.WriteStreamHealth(context.Background(), connected); err != nil {
			e.log.Warn("failed to write stream health", "error", err)
		}
	}
	e.pushStatus()
}

// StreamConnected reports the last known push-stream state.
func (e *Engine) StreamConnected() bool {
	return e.streamUp.Load()
}

// PendingOps reports queued apply events not yet processed.
func (e *Engine) PendingOps() int {
	return int(e.pending.Load())
}

// Registry exposes the vehicle registry for read-side consumers such
// as the monitor. Callers must not mutate through it outside the
// apply goroutine.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Click routes a marker click. A click on an already-open popup
// extends its deadline instead of recreating it.
func (e *Engine) Click(id string) {
	e.dispatchApply(kindClick, id)
}

// ClosePopup closes the active popup, if any.
func (e *Engine) ClosePopup() {
	e.dispatchApply(kindPopupClose, nil)
}

// Hover reports whether the pointer is inside the active popup.
func (e *Engine) Hover(inside bool) {
	e.dispatchApply(kindHover, inside)
}

// SetFilter swaps the marker visibility filter and reconciles.
func (e *Engine) SetFilter(f marker.Filter) {
	e.dispatchApply(kindFilter, f)
}

// SetLayers replaces the set of visible heatmap layers and pushes a
// fresh heatmap for them.
func (e *Engine) SetLayers(layers ...core.HeatLayer) {
	e.dispatchApply(kindLayers, layers)
}

// Rerender replays the full map state to the display. Wired to the
// render connection's reconnect hook.
func (e *Engine) Rerender() {
	e.dispatchApply(kindRerender, nil)
}

func (e *Engine) dispatchApply(kind string, payload any) {
	e.pending.Add(1)
	_, err := e.disp.Dispatch(dispatcher.Event{
		Command:   cmdApply,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		e.pending.Add(-1)
		e.log.Warn("apply dispatch failed", "kind", kind, "error", err)
	}
}

// apply is the single serialized consumer of state mutations.
func (e *Engine) apply(ev dispatcher.Event) (any, error) {
	defer e.pending.Add(-1)

	switch ev.Kind {
	case kindSnapshot:
		samples, ok := ev.Payload.([]core.VehicleSample)
		if !ok {
			return nil, nil
		}
		e.applyBatch(samples, true, "snapshot")
		e.pushStatus()

	case kindPush:
		batch, ok := ev.Payload.(*ingest.TelemetryBatch)
		if !ok || batch == nil {
			return nil, nil
		}
		if home := ingest.Home(batch); home != nil {
			e.mu.Lock()
			e.home = home
			e.mu.Unlock()
		}
		samples := e.ingestor.FromPushBatch(batch, time.Now())
		e.applyBatch(samples, false, "push")

	case kindClick:
		if id, ok := ev.Payload.(string); ok {
			e.presenter.HandleClick(id)
		}

	case kindPopupClose:
		e.popups.Close()

	case kindHover:
		if inside, ok := ev.Payload.(bool); ok {
			e.popups.SetHovered(inside)
		}

	case kindFilter:
		if f, ok := ev.Payload.(marker.Filter); ok {
			e.mu.Lock()
			e.filter = f
			e.mu.Unlock()
			e.presenter.Reconcile(e.reg, f)
		}

	case kindLayers:
		if layers, ok := ev.Payload.([]core.HeatLayer); ok {
			e.heat.SetVisible(layers...)
			e.broadcastHeatmap(true)
		}

	case kindRerender:
		e.rerender()
	}
	return nil, nil
}

// applyBatch runs one reconciliation pass: registry merge, trail and
// heading updates, marker reconcile, trail and heatmap broadcasts.
func (e *Engine) applyBatch(samples []core.VehicleSample, authoritative bool, source string) {
	start := time.Now()
	cs, movements := e.reg.ApplyBatch(samples, authoritative)
	now := time.Now()

	dirtyTrails := make([]string, 0, len(movements))
	for _, mv := range movements {
		if e.trails.OnVehicleMoved(mv.ID, mv.ToLat, mv.ToLng, mv.Flying, now) {
			dirtyTrails = append(dirtyTrails, mv.ID)
		}
		if !mv.FirstFix {
			e.headings.Update(mv.ID, mv.FromLat, mv.FromLng, mv.ToLat, mv.ToLng, mv.Flying)
		}
	}
	for _, id := range cs.Removed {
		e.trails.Delete(id)
		e.headings.Delete(id)
		e.display.Trail(streaming.TrailPayload{ID: id})
	}

	e.presenter.Reconcile(e.reg, e.currentFilter())

	sort.Strings(dirtyTrails)
	for _, id := range dirtyTrails {
		e.sendTrail(id)
	}
	e.broadcastHeatmap(false)

	elapsed := time.Since(start)
	if !cs.Empty() {
		e.log.Debug("reconcile pass applied",
			"source", source,
			"added", len(cs.Added),
			"changed", len(cs.Changed),
			"removed", len(cs.Removed),
			"elapsed", elapsed)
		if e.metrics != nil {
			if err := e.metrics.WriteReconcile(context.Background(), source, cs, elapsed); err != nil {
				e.log.Warn("failed to write reconcile metrics", "error", err)
			}
		}
	}
}

func (e *Engine) sendTrail(id string) {
	pts := e.trails.Trail(id)
	p := streaming.TrailPayload{ID: id, Coords: make([][2]float64, 0, len(pts))}
	for _, tp := range pts {
		p.Coords = append(p.Coords, [2]float64{tp.Lat, tp.Lng})
	}
	if len(pts) >= 2 {
		p.WKT = geo.TrailLineString(pts).AsText()
	}
	e.display.Trail(p)
}

func (e *Engine) broadcastHeatmap(force bool) {
	layers, recomputed := e.heat.Compute(e.reg.Snapshot(), time.Now())
	if !recomputed && !force {
		return
	}
	visible := e.heat.VisibleLayers(layers)
	out := make(map[string][]streaming.HeatPoint, len(visible))
	for layer, pts := range visible {
		wire := make([]streaming.HeatPoint, 0, len(pts))
		for _, wp := range pts {
			wire = append(wire, streaming.HeatPoint{Lat: wp.Lat, Lng: wp.Lng, Weight: wp.Weight})
		}
		out[string(layer)] = wire
	}
	e.display.Heatmap(out)
}

// rerender replays every marker, trail, the heatmap, and the status
// panel. Used after the render connection is re-established.
func (e *Engine) rerender() {
	e.presenter.Reset()
	e.presenter.Reconcile(e.reg, e.currentFilter())
	ids := e.reg.IDs()
	for _, id := range ids {
		if len(e.trails.Trail(id)) >= 2 {
			e.sendTrail(id)
		}
	}
	e.broadcastHeatmap(true)
	e.pushStatus()
}

func (e *Engine) showPopup(key popup.Key) {
	var lat, lng float64
	var content string
	if key.Kind() == popup.KindDrone {
		if v, ok := e.reg.Get(key.ID()); ok {
			lat, lng = v.Lat, v.Lng
			content = marker.PopupContent(&v)
		}
	}
	e.display.PopupOpen(key, lat, lng, content)
}

func (e *Engine) currentFilter() marker.Filter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// pushStatus assembles and sends the dashboard status panel.
func (e *Engine) pushStatus() {
	e.mu.Lock()
	p := streaming.StatusPayload{
		Time:            time.Now(),
		Weather:         e.weather,
		Tasks:           e.tasks,
		Teams:           e.teams,
		Events:          e.events,
		Home:            e.home,
		StreamConnected: e.streamUp.Load(),
	}
	e.mu.Unlock()
	p.Stats = e.reg.Stats()
	e.display.Status(p)

	if e.metrics != nil {
		if err := e.metrics.WriteFleetStats(context.Background(), p.Stats); err != nil {
			e.log.Warn("failed to write fleet stats", "error", err)
		}
	}
}

// pollLoop runs fn immediately and then on every tick until Stop.
func (e *Engine) pollLoop(name string, interval time.Duration, fn func(ctx context.Context) error) {
	if interval <= 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := fn(e.ctx); err != nil && e.ctx.Err() == nil {
				e.log.Warn("poll failed", "kind", name, "error", err)
			}
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (e *Engine) pollUAVs(ctx context.Context) error {
	list, err := e.api.UAVList(ctx)
	if err != nil {
		return err
	}
	samples := e.ingestor.FromSnapshot(list, time.Now())
	e.dispatchApply(kindSnapshot, samples)
	return nil
}

func (e *Engine) pollTasks(ctx context.Context) error {
	summary, err := e.api.TaskSummary(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.tasks = &summary
	e.mu.Unlock()
	e.pushStatus()
	return nil
}

func (e *Engine) pollTeams(ctx context.Context) error {
	teams, err := e.api.TeamStatus(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.teams = teams
	e.mu.Unlock()
	e.pushStatus()
	return nil
}

func (e *Engine) pollWeather(ctx context.Context) error {
	weather, err := e.api.Weather(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.weather = &weather
	e.mu.Unlock()
	e.pushStatus()
	return nil
}

func (e *Engine) pollEvents(ctx context.Context) error {
	events, err := e.api.Events(ctx, e.polling.EventLimit)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.events = events
	e.mu.Unlock()
	e.pushStatus()
	return nil
}
