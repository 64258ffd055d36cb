// Package buttons turns the raw level of the panel's physical buttons into
// clean press events.
//
// A Source exposes the instantaneous pressed state of each button; the
// Monitor samples it on a fixed interval and runs one small state machine
// per button. A press must hold steady for the debounce window before it is
// confirmed, and after confirmation further presses are suppressed until
// the suppression window has elapsed and the button has been released. A
// bouncy contact therefore produces exactly one event per physical press.
package buttons

import (
	"context"
	"time"

	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
	"github.com/nerrad567/panelsync/internal/layout"
)

// Source exposes the instantaneous state of the physical buttons.
// Implementations must be safe for concurrent use.
type Source interface {
	// Levels returns the pressed state of every button.
	Levels() ([layout.ButtonCount]bool, error)
}

// Handler receives confirmed button presses.
type Handler func(button int)

// Config holds the debounce timing.
type Config struct {
	// SampleInterval is the pause between source reads.
	SampleInterval time.Duration

	// Debounce is how long a press must hold steady before it counts.
	Debounce time.Duration

	// Suppression is the minimum pause after a confirmed press before the
	// same button can fire again.
	Suppression time.Duration
}

type phase int

const (
	phaseIdle phase = iota
	phaseAsserting
	phaseSuppressed
)

type buttonState struct {
	phase phase
	since time.Time
}

// Monitor samples a Source and emits debounced press events.
type Monitor struct {
	src      Source
	handler  Handler
	logger   *logging.Logger
	sample   time.Duration
	debounce time.Duration
	suppress time.Duration
	states   [layout.ButtonCount]buttonState
}

// NewMonitor creates a monitor that forwards confirmed presses to handler.
// The handler runs on the sampling goroutine and must not block.
func NewMonitor(cfg Config, src Source, handler Handler, logger *logging.Logger) *Monitor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 20 * time.Millisecond
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.Suppression <= 0 {
		cfg.Suppression = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		src:      src,
		handler:  handler,
		logger:   logger,
		sample:   cfg.SampleInterval,
		debounce: cfg.Debounce,
		suppress: cfg.Suppression,
	}
}

// Run samples until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sample)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			levels, err := m.src.Levels()
			if err != nil {
				m.logger.Warn("button source read failed", "error", err)
				continue
			}
			now := time.Now()
			for n := 0; n < layout.ButtonCount; n++ {
				m.step(n, levels[n], now)
			}
		}
	}
}

// step advances one button's state machine by a single sample.
func (m *Monitor) step(n int, pressed bool, now time.Time) {
	s := &m.states[n]
	switch s.phase {
	case phaseIdle:
		if pressed {
			s.phase = phaseAsserting
			s.since = now
		}
	case phaseAsserting:
		if !pressed {
			s.phase = phaseIdle
			return
		}
		if now.Sub(s.since) >= m.debounce {
			s.phase = phaseSuppressed
			s.since = now
			m.logger.Debug("button press confirmed", "button", n)
			m.handler(n)
		}
	case phaseSuppressed:
		if now.Sub(s.since) >= m.suppress && !pressed {
			s.phase = phaseIdle
		}
	}
}
