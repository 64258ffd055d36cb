// Panel Sync - Home Assistant wall panel engine
//
// panelsync mirrors Home Assistant entity state onto a small fixed-row
// display and dispatches scene and service calls from the panel's three
// physical buttons, driven by a declarative per-device layout file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/panelsync/internal/buttons"
	"github.com/nerrad567/panelsync/internal/display"
	"github.com/nerrad567/panelsync/internal/engine"
	"github.com/nerrad567/panelsync/internal/infrastructure/config"
	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
	"github.com/nerrad567/panelsync/internal/layout"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting panelsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	surface := display.NewTerminalSurface(os.Stdout, cfg.Display.Rows)

	// Buttons are optional: a panel without wired GPIO lines still mirrors
	// state, it just cannot dispatch.
	var source buttons.Source
	if cfg.Buttons.Chip != "" && len(cfg.Buttons.Pins) == layout.ButtonCount {
		var pins [layout.ButtonCount]int
		copy(pins[:], cfg.Buttons.Pins)
		gpio, gpioErr := buttons.NewGPIOSource(buttons.GPIOConfig{
			Chip:   cfg.Buttons.Chip,
			Pins:   pins,
			PullUp: cfg.Buttons.PullUp,
		})
		if gpioErr != nil {
			log.Warn("buttons unavailable", "error", gpioErr)
		} else {
			defer func() {
				if closeErr := gpio.Close(); closeErr != nil {
					log.Error("error releasing GPIO lines", "error", closeErr)
				}
			}()
			source = gpio
			log.Info("buttons ready", "chip", cfg.Buttons.Chip, "pins", cfg.Buttons.Pins)
		}
	} else {
		log.Info("buttons disabled")
	}

	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Surface: surface,
		Source:  source,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("assembling engine: %w", err)
	}
	defer eng.Close()

	return eng.Run(ctx)
}

// getConfigPath returns the configuration file path.
// Uses PANELSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PANELSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
