package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/panelsync/internal/buttons"
	"github.com/nerrad567/panelsync/internal/dispatch"
	"github.com/nerrad567/panelsync/internal/display"
	"github.com/nerrad567/panelsync/internal/hass"
	"github.com/nerrad567/panelsync/internal/infrastructure/config"
	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
	"github.com/nerrad567/panelsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/panelsync/internal/journal"
	"github.com/nerrad567/panelsync/internal/layout"
	"github.com/nerrad567/panelsync/internal/poller"
	"github.com/nerrad567/panelsync/internal/statecache"
)

// diagLayoutBroken is shown on the diagnostic row when the layout could
// not be loaded.
const diagLayoutBroken = "Failed to load config!"

// journalWriteTimeout bounds journal writes issued from callbacks.
const journalWriteTimeout = time.Second

// Options assembles an engine. Surface is required; Source may be nil on
// a panel without buttons. Fetcher and Invoker default to a Home Assistant
// client built from the configuration.
type Options struct {
	Config  *config.Config
	Surface display.Surface
	Source  buttons.Source
	Fetcher poller.Fetcher
	Invoker dispatch.Invoker
	Logger  *logging.Logger
}

// Engine runs the synchronization and dispatch loops for one panel.
type Engine struct {
	cfg    *config.Config
	logger *logging.Logger

	model    *layout.Model
	degraded bool

	cache      *statecache.Cache
	renderer   *display.Renderer
	dispatcher *dispatch.Dispatcher
	poll       *poller.Poller
	monitor    *buttons.Monitor
	stream     *hass.EventStream

	jrnl      *journal.Journal
	telemetry *mqtt.Client

	entitySet map[string]struct{}
}

// New loads the layout and assembles all components. It only fails on
// errors that make the panel useless (nil surface, unusable Home Assistant
// settings); a broken layout yields a degraded engine instead.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	if opts.Surface == nil {
		return nil, errors.New("engine: surface is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{cfg: opts.Config, logger: logger}
	e.model, e.degraded = e.loadModel()

	e.entitySet = make(map[string]struct{}, len(e.model.EntityIDs()))
	for _, id := range e.model.EntityIDs() {
		e.entitySet[id] = struct{}{}
	}

	e.cache = statecache.New(opts.Config.HomeAssistant.StalenessThreshold)
	e.cache.Seed(e.model.EntityIDs())
	e.renderer = display.New(display.Config{
		RefreshInterval: opts.Config.RefreshInterval(),
		ClockRow:        opts.Config.Display.ClockRow,
	}, opts.Surface, e.model, e.cache, logger)
	if e.degraded {
		e.renderer.SetDiagnostic(diagLayoutBroken)
		return e, nil
	}

	fetcher, invoker, err := e.remotes(opts)
	if err != nil {
		return nil, err
	}

	e.poll = poller.New(poller.Config{
		Entities:     e.model.EntityIDs(),
		Interval:     opts.Config.PollInterval(),
		Timeout:      opts.Config.QueryTimeout(),
		OnTransition: e.onTransition,
	}, fetcher, e.cache, e.renderer.Wake, logger)

	e.dispatcher = dispatch.New(dispatch.Config{
		QueueSize:  opts.Config.Dispatch.QueueSize,
		Timeout:    opts.Config.DispatchTimeout(),
		RetryDelay: opts.Config.RetryDelay(),
	}, invoker, e.onOutcome, logger)

	if opts.Source != nil {
		e.monitor = buttons.NewMonitor(buttons.Config{
			SampleInterval: opts.Config.SampleInterval(),
			Debounce:       opts.Config.Debounce(),
			Suppression:    opts.Config.Suppression(),
		}, opts.Source, e.handlePress, logger)
	}

	if opts.Config.HomeAssistant.EventStream.Enabled {
		stream, err := hass.NewEventStream(hass.EventStreamConfig{
			URL:            opts.Config.HomeAssistant.URL,
			Token:          opts.Config.HomeAssistant.Token,
			ReconnectDelay: opts.Config.ReconnectDelay(),
		}, e.onStreamEvent, logger)
		if err != nil {
			return nil, fmt.Errorf("engine: event stream: %w", err)
		}
		e.stream = stream
	}

	if opts.Config.Journal.Enabled {
		jrnl, err := journal.Open(journal.Config{
			Path:        opts.Config.Journal.Path,
			BusyTimeout: opts.Config.Journal.BusyTimeout,
		})
		if err != nil {
			// The journal is an aid, not a dependency.
			logger.Warn("journal unavailable", "error", err)
		} else {
			e.jrnl = jrnl
		}
	}

	return e, nil
}

// remotes builds the Home Assistant fetcher and invoker unless overrides
// were supplied.
func (e *Engine) remotes(opts Options) (poller.Fetcher, dispatch.Invoker, error) {
	fetcher := opts.Fetcher
	invoker := opts.Invoker
	if fetcher != nil && invoker != nil {
		return fetcher, invoker, nil
	}
	client, err := hass.NewClient(hass.Config{
		URL:     opts.Config.HomeAssistant.URL,
		Token:   opts.Config.HomeAssistant.Token,
		Timeout: opts.Config.QueryTimeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}
	if fetcher == nil {
		fetcher = client
	}
	if invoker == nil {
		invoker = client
	}
	return fetcher, invoker, nil
}

// loadModel resolves and validates the layout. On failure it returns the
// best static model it can still render, flagged degraded.
func (e *Engine) loadModel() (*layout.Model, bool) {
	rows := e.cfg.Display.Rows

	var directives layout.List
	var err error
	if e.cfg.Layout.File != "" {
		directives, err = layout.LoadFile(e.cfg.Layout.File)
	} else {
		var path string
		path, err = layout.ResolveFile(e.cfg.Layout.Dir, e.cfg.Device.ID)
		if err == nil {
			directives, err = layout.LoadFile(path)
		}
	}
	if err == nil {
		var m *layout.Model
		m, err = layout.NewModel(directives, rows)
		if err == nil {
			return m, false
		}
	}

	e.logger.Error("layout unusable, degrading to static labels", "error", err)
	return staticFallback(directives, rows), true
}

// staticFallback keeps whatever Text directives are still renderable.
func staticFallback(directives layout.List, rows int) *layout.Model {
	var static layout.List
	for _, d := range directives {
		if t, ok := d.(layout.Text); ok && t.Line >= 0 && t.Line < rows {
			static = append(static, t)
		}
	}
	m, err := layout.NewModel(static, rows)
	if err != nil {
		m, _ = layout.NewModel(nil, rows)
	}
	return m
}

// Run starts all component goroutines and blocks until ctx is cancelled.
// Component failures degrade behavior but never stop the engine.
func (e *Engine) Run(ctx context.Context) error {
	if e.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(e.cfg.MQTT, e.deviceID())
		if err != nil {
			e.logger.Warn("telemetry unavailable", "error", err)
		} else {
			e.telemetry = client
		}
	}

	e.logger.Info("engine starting",
		"device", e.deviceID(),
		"entities", len(e.entitySet),
		"degraded", e.degraded)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.renderer.Run(ctx) })
	if !e.degraded {
		g.Go(func() error { return e.poll.Run(ctx) })
		g.Go(func() error { return e.dispatcher.Run(ctx) })
		if e.monitor != nil {
			g.Go(func() error { return e.monitor.Run(ctx) })
		}
		if e.stream != nil {
			g.Go(func() error { return e.stream.Run(ctx) })
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the journal and telemetry connections.
func (e *Engine) Close() {
	if e.jrnl != nil {
		if err := e.jrnl.Close(); err != nil {
			e.logger.Warn("closing journal", "error", err)
		}
	}
	if e.telemetry != nil {
		e.telemetry.Close()
	}
}

func (e *Engine) deviceID() string {
	if e.cfg.Device.ID != "" {
		return e.cfg.Device.ID
	}
	return "panel"
}

// handlePress maps a confirmed press onto the action that flips the
// displayed state: action_off while the comparison matches, action_on
// otherwise. An unknown value counts as not matching.
func (e *Engine) handlePress(button int) {
	b := e.model.Button(button)
	if b == nil {
		e.logger.Debug("press on unbound button", "button", button)
		return
	}
	entry := e.cache.Get(b.HAID)
	action := b.ActionOn
	if entry.Known && b.Cmp.Matches(entry.Value) {
		action = b.ActionOff
	}
	e.dispatcher.Enqueue(button, action)
}

// onOutcome routes a dispatch result to the renderer, journal and
// telemetry.
func (e *Engine) onOutcome(o dispatch.Outcome) {
	if !o.OK() {
		e.logger.Error("action dropped",
			"button", o.Request.Button,
			"target", o.Request.Action.Target(),
			"attempts", o.Attempts, "error", o.Err)
		e.renderer.FlagFailure(o.Request.Button)
	}

	if e.jrnl != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		rec := journal.DispatchRecord{
			ID:         o.Request.ID,
			Button:     o.Request.Button,
			ActionKind: actionKind(o.Request.Action),
			Service:    o.Request.Action.Domain() + "." + o.Request.Action.Service(),
			Target:     o.Request.Action.Target(),
			Attempts:   o.Attempts,
			OK:         o.OK(),
			EnqueuedAt: o.Request.EnqueuedAt,
			FinishedAt: time.Now(),
		}
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
		if err := e.jrnl.RecordDispatch(ctx, rec); err != nil {
			e.logger.Warn("journal write failed", "error", err)
		}
		cancel()
	}

	e.publishEvent(map[string]any{
		"type":     "dispatch",
		"button":   o.Request.Button,
		"target":   o.Request.Action.Target(),
		"attempts": o.Attempts,
		"ok":       o.OK(),
	})
}

// onTransition journals and publishes entity staleness crossings.
func (e *Engine) onTransition(entityID string, stale bool) {
	event := journal.EventRecovered
	if stale {
		event = journal.EventStale
	}
	if e.jrnl != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		if err := e.jrnl.RecordEntityEvent(ctx, journal.EntityEvent{
			EntityID: entityID,
			Event:    event,
		}); err != nil {
			e.logger.Warn("journal write failed", "error", err)
		}
		cancel()
	}
	e.publishEvent(map[string]any{
		"type":   "entity",
		"entity": entityID,
		"event":  event,
	})
}

// onStreamEvent feeds pushed state changes for observed entities into the
// cache.
func (e *Engine) onStreamEvent(entityID, state string) {
	if _, ok := e.entitySet[entityID]; !ok {
		return
	}
	changed, recovered := e.cache.Set(entityID, state)
	if recovered {
		e.onTransition(entityID, false)
	}
	if changed {
		e.renderer.Wake()
	}
}

func (e *Engine) publishEvent(event map[string]any) {
	if e.telemetry == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := e.telemetry.Publish(e.telemetry.Topics().Event(), payload); err != nil {
		e.logger.Debug("telemetry publish failed", "error", err)
	}
}

func actionKind(a layout.Action) string {
	switch a.(type) {
	case layout.Scene:
		return "scene"
	default:
		return "service"
	}
}
