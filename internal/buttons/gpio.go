package buttons

import (
	"fmt"
	"sync/atomic"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/panelsync/internal/layout"
)

// GPIOConfig describes the hardware wiring of the panel buttons.
type GPIOConfig struct {
	// Chip is the gpiochip device name, e.g. gpiochip0.
	Chip string

	// Pins holds one line offset per button, in button order.
	Pins [layout.ButtonCount]int

	// PullUp enables the internal pull-up; buttons then read pressed when
	// the line is pulled low.
	PullUp bool
}

// GPIOSource reads button levels from kernel GPIO character devices.
// Edge events keep per-line level shadows current so Levels never touches
// the hardware on the sampling path.
type GPIOSource struct {
	chip   *gpiod.Chip
	lines  [layout.ButtonCount]*gpiod.Line
	levels [layout.ButtonCount]atomic.Bool
	pullUp bool
}

// NewGPIOSource requests the configured lines and seeds the level shadows
// with an initial read.
func NewGPIOSource(cfg GPIOConfig) (*GPIOSource, error) {
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("buttons: opening %s: %w", cfg.Chip, err)
	}

	s := &GPIOSource{chip: chip, pullUp: cfg.PullUp}
	for n, pin := range cfg.Pins {
		n := n
		opts := []gpiod.LineReqOption{
			gpiod.AsInput,
			gpiod.WithBothEdges,
			gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
				s.levels[n].Store(s.pressedFromEdge(evt.Type))
			}),
		}
		if cfg.PullUp {
			opts = append(opts, gpiod.WithPullUp)
		}
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("buttons: requesting line %d on %s: %w", pin, cfg.Chip, err)
		}
		s.lines[n] = line

		value, err := line.Value()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("buttons: reading line %d: %w", pin, err)
		}
		s.levels[n].Store(s.pressedFromValue(value))
	}
	return s, nil
}

func (s *GPIOSource) pressedFromEdge(t gpiod.LineEventType) bool {
	if s.pullUp {
		return t == gpiod.LineEventFallingEdge
	}
	return t == gpiod.LineEventRisingEdge
}

func (s *GPIOSource) pressedFromValue(v int) bool {
	if s.pullUp {
		return v == 0
	}
	return v != 0
}

// Levels implements Source.
func (s *GPIOSource) Levels() ([layout.ButtonCount]bool, error) {
	var out [layout.ButtonCount]bool
	for n := range s.levels {
		out[n] = s.levels[n].Load()
	}
	return out, nil
}

// Close releases the requested lines and the chip.
func (s *GPIOSource) Close() error {
	for _, line := range s.lines {
		if line != nil {
			_ = line.Close()
		}
	}
	if s.chip != nil {
		return s.chip.Close()
	}
	return nil
}
