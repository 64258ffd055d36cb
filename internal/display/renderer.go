package display

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
	"github.com/nerrad567/panelsync/internal/layout"
	"github.com/nerrad567/panelsync/internal/statecache"
)

const (
	// unknownValue is shown for entities that have never been fetched.
	unknownValue = "--"

	// staleMark is appended to a value whose entity has gone stale.
	staleMark = "*"
)

// cell is the rendered content of one row or button label. Redraws key on
// cell equality.
type cell struct {
	text  string
	color layout.Color
}

// Config holds renderer settings.
type Config struct {
	// RefreshInterval is the frame cadence. Change detection makes frames
	// cheap; the interval only bounds update latency.
	RefreshInterval time.Duration

	// ClockRow shows an HH:MM clock on the given row. Negative disables it.
	ClockRow int

	// FailureFlash is how long a failed dispatch tints a button label.
	FailureFlash time.Duration
}

// Renderer drives a Surface from the layout model and the state cache.
type Renderer struct {
	surface Surface
	cache   *statecache.Cache
	logger  *logging.Logger

	interval time.Duration
	clockRow int
	flash    time.Duration
	now      func() time.Time

	mu        sync.Mutex
	model     *layout.Model
	diag      string
	failUntil [layout.ButtonCount]time.Time
	lastRows  []cell
	lastBtns  [layout.ButtonCount]cell
	drawnBtns [layout.ButtonCount]bool

	wake chan struct{}
}

// New creates a renderer for the given model.
func New(cfg Config, surface Surface, model *layout.Model, cache *statecache.Cache, logger *logging.Logger) *Renderer {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 250 * time.Millisecond
	}
	if cfg.FailureFlash <= 0 {
		cfg.FailureFlash = 2 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Renderer{
		surface:  surface,
		cache:    cache,
		logger:   logger,
		interval: cfg.RefreshInterval,
		clockRow: cfg.ClockRow,
		flash:    cfg.FailureFlash,
		now:      time.Now,
		model:    model,
		lastRows: make([]cell, model.Rows()),
		wake:     make(chan struct{}, 1),
	}
}

// Wake requests a frame ahead of the next tick. Safe from any goroutine.
func (r *Renderer) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// FlagFailure tints a button label for the failure flash window.
func (r *Renderer) FlagFailure(button int) {
	if button < 0 || button >= layout.ButtonCount {
		return
	}
	r.mu.Lock()
	r.failUntil[button] = r.now().Add(r.flash)
	r.mu.Unlock()
	r.Wake()
}

// SetDiagnostic pins a message to the last display row. The empty string
// clears it.
func (r *Renderer) SetDiagnostic(msg string) {
	r.mu.Lock()
	r.diag = msg
	r.mu.Unlock()
	r.Wake()
}

// SwapModel replaces the model and forces a full redraw.
func (r *Renderer) SwapModel(m *layout.Model) {
	r.mu.Lock()
	r.model = m
	r.lastRows = make([]cell, m.Rows())
	r.lastBtns = [layout.ButtonCount]cell{}
	r.drawnBtns = [layout.ButtonCount]bool{}
	r.mu.Unlock()
	r.Wake()
}

// Run renders frames until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RenderFrame()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RenderFrame()
		case <-r.wake:
			r.RenderFrame()
		}
	}
}

// RenderFrame computes the desired cells and draws the ones that changed.
func (r *Renderer) RenderFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()

	for row := 0; row < r.model.Rows(); row++ {
		want, ok := r.desiredRow(row, now)
		if !ok {
			continue
		}
		if want == r.lastRows[row] {
			continue
		}
		var err error
		if want.text == "" {
			err = r.surface.ClearRow(row)
		} else {
			err = r.surface.DrawRow(row, want.text, want.color)
		}
		if err != nil {
			r.logger.Warn("row draw failed", "row", row, "error", err)
			continue
		}
		r.lastRows[row] = want
	}

	for n := 0; n < layout.ButtonCount; n++ {
		b := r.model.Button(n)
		if b == nil {
			continue
		}
		want := r.desiredButton(b, now)
		if r.drawnBtns[n] && want == r.lastBtns[n] {
			continue
		}
		if err := r.surface.DrawButton(n, want.text, want.color); err != nil {
			r.logger.Warn("button draw failed", "button", n, "error", err)
			continue
		}
		r.lastBtns[n] = want
		r.drawnBtns[n] = true
	}
}

// desiredRow computes what a row should show. The second return is false
// for rows with no content source, which are left untouched.
func (r *Renderer) desiredRow(row int, now time.Time) (cell, bool) {
	if r.diag != "" && row == r.model.Rows()-1 {
		return cell{text: r.diag, color: layout.ColorRed}, true
	}
	if r.clockRow >= 0 && row == r.clockRow {
		return cell{text: now.Format("15:04"), color: layout.ColorWhite}, true
	}
	ds := r.model.Row(row)
	if len(ds) == 0 {
		return cell{}, false
	}
	// Directives later in the file win the row.
	var want cell
	for _, d := range ds {
		switch v := d.(type) {
		case layout.Text:
			want = cell{text: v.Text, color: v.Color}
		case layout.Line:
			// The label carries its own spacing, the value is appended as is.
			want = cell{text: v.Text + r.lineValue(v), color: v.Color}
		}
	}
	return want, true
}

// lineValue formats the live value for a Line directive.
func (r *Renderer) lineValue(l layout.Line) string {
	e := r.cache.Get(l.HAID)
	if !e.Known {
		return unknownValue
	}
	value := e.Value
	if l.MakeInt {
		value = roundToInt(value)
	}
	if e.Stale {
		value += staleMark
	}
	return value
}

// desiredButton computes a button label: text_on while the comparison
// matches, text_off otherwise. An unknown or unparseable value never
// matches. A recent dispatch failure tints the label red.
func (r *Renderer) desiredButton(b *layout.Button, now time.Time) cell {
	e := r.cache.Get(b.HAID)
	text := b.TextOff
	if e.Known && b.Cmp.Matches(e.Value) {
		text = b.TextOn
	}
	if e.Stale {
		text += staleMark
	}
	color := b.Color
	if now.Before(r.failUntil[b.Button]) {
		color = layout.ColorRed
	}
	return cell{text: text, color: color}
}

// roundToInt renders a numeric string as its nearest integer, rounding
// half away from zero, so "21.7" becomes "22". Values that do not parse
// are passed through unchanged.
func roundToInt(raw string) string {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatInt(int64(math.Round(f)), 10)
}
