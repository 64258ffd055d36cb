package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Panel Sync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device        DeviceConfig   `yaml:"device"`
	HomeAssistant HAConfig       `yaml:"homeassistant"`
	Layout        LayoutConfig   `yaml:"layout"`
	Display       DisplayConfig  `yaml:"display"`
	Buttons       ButtonsConfig  `yaml:"buttons"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
	Journal       JournalConfig  `yaml:"journal"`
	MQTT          MQTTConfig     `yaml:"mqtt"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies this panel.
type DeviceConfig struct {
	// ID selects the layout file (<id>.json). When empty, the shared
	// base.json layout is used.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// HAConfig contains Home Assistant server connection settings.
type HAConfig struct {
	// URL is the base URL of the Home Assistant server, e.g.
	// "http://homeassistant.local:8123".
	URL string `yaml:"url"`

	// Token is the long-lived access token used as a bearer credential.
	Token string `yaml:"token"`

	// PollInterval is the state refresh cadence in seconds.
	PollInterval int `yaml:"poll_interval"`

	// QueryTimeout bounds a single state query in seconds.
	QueryTimeout int `yaml:"query_timeout"`

	// StalenessThreshold is the number of consecutive failed polls after
	// which an entity is flagged stale.
	StalenessThreshold int `yaml:"staleness_threshold"`

	EventStream EventStreamConfig `yaml:"event_stream"`
}

// EventStreamConfig contains settings for the optional websocket event
// subscription that pushes state changes between polls.
type EventStreamConfig struct {
	Enabled        bool `yaml:"enabled"`
	ReconnectDelay int  `yaml:"reconnect_delay"` // seconds
}

// LayoutConfig locates the directive layout file.
type LayoutConfig struct {
	// Dir is the directory searched for <device-id>.json with a base.json
	// fallback.
	Dir string `yaml:"dir"`

	// File, when set, overrides directory resolution entirely.
	File string `yaml:"file"`
}

// DisplayConfig contains display surface settings.
type DisplayConfig struct {
	// Rows is the fixed row count of the display surface.
	Rows int `yaml:"rows"`

	// RefreshInterval is the render cadence in milliseconds.
	RefreshInterval int `yaml:"refresh_interval"`

	// ClockRow shows an HH:MM clock on the given row. Negative disables it.
	ClockRow int `yaml:"clock_row"`
}

// ButtonsConfig contains physical button sampling settings.
type ButtonsConfig struct {
	// Chip is the GPIO chip device name (e.g. "gpiochip0").
	Chip string `yaml:"chip"`

	// Pins are the GPIO offsets for buttons 0, 1 and 2, in order.
	Pins []int `yaml:"pins"`

	// PullUp enables the internal pull-up; lines then read active-low.
	PullUp bool `yaml:"pullup"`

	// SampleInterval is the raw-signal sampling period in milliseconds.
	SampleInterval int `yaml:"sample_interval"`

	// Debounce is the minimum stable-signal duration in milliseconds
	// before a press is confirmed.
	Debounce int `yaml:"debounce"`

	// Suppression is the minimum interval between dispatches for the same
	// button, in milliseconds.
	Suppression int `yaml:"suppression"`
}

// DispatchConfig contains remote action dispatch settings.
type DispatchConfig struct {
	// Timeout bounds a single action call in seconds.
	Timeout int `yaml:"timeout"`

	// RetryDelay is the pause before the single retry, in seconds.
	RetryDelay int `yaml:"retry_delay"`

	// QueueSize is the bounded action request queue capacity.
	QueueSize int `yaml:"queue_size"`
}

// JournalConfig contains dispatch journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds
}

// MQTTConfig contains optional telemetry broker settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PANELSYNC_SECTION_KEY
// For example: PANELSYNC_HA_TOKEN, PANELSYNC_DEVICE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "panelsync",
		},
		HomeAssistant: HAConfig{
			URL:                "http://homeassistant.local:8123",
			PollInterval:       5,
			QueryTimeout:       3,
			StalenessThreshold: 5,
			EventStream: EventStreamConfig{
				Enabled:        false,
				ReconnectDelay: 5,
			},
		},
		Layout: LayoutConfig{
			Dir: "./layouts",
		},
		Display: DisplayConfig{
			Rows:            8,
			RefreshInterval: 250,
			ClockRow:        -1,
		},
		Buttons: ButtonsConfig{
			Chip:           "gpiochip0",
			Pins:           []int{5, 6, 13},
			PullUp:         true,
			SampleInterval: 20,
			Debounce:       100,
			Suppression:    500,
		},
		Dispatch: DispatchConfig{
			Timeout:    5,
			RetryDelay: 1,
			QueueSize:  8,
		},
		Journal: JournalConfig{
			Enabled:     true,
			Path:        "./data/panelsync.db",
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "panelsync",
			},
			TopicPrefix: "panelsync",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PANELSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("PANELSYNC_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Home Assistant
	if v := os.Getenv("PANELSYNC_HA_URL"); v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v := os.Getenv("PANELSYNC_HA_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}

	// Layout
	if v := os.Getenv("PANELSYNC_LAYOUT_FILE"); v != "" {
		cfg.Layout.File = v
	}

	// Journal
	if v := os.Getenv("PANELSYNC_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// MQTT
	if v := os.Getenv("PANELSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PANELSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PANELSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// buttonCount is the fixed number of physical buttons on the panel.
const buttonCount = 3

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Home Assistant validation
	if c.HomeAssistant.URL == "" {
		errs = append(errs, "homeassistant.url is required")
	}
	if c.HomeAssistant.Token == "" {
		errs = append(errs, "homeassistant.token is required (set PANELSYNC_HA_TOKEN environment variable)")
	}
	if c.HomeAssistant.PollInterval < 1 {
		errs = append(errs, "homeassistant.poll_interval must be at least 1 second")
	}
	if c.HomeAssistant.QueryTimeout < 1 {
		errs = append(errs, "homeassistant.query_timeout must be at least 1 second")
	}
	if c.HomeAssistant.StalenessThreshold < 1 {
		errs = append(errs, "homeassistant.staleness_threshold must be at least 1")
	}

	// Layout validation
	if c.Layout.File == "" && c.Layout.Dir == "" {
		errs = append(errs, "layout.file or layout.dir is required")
	}

	// Display validation
	if c.Display.Rows < 1 {
		errs = append(errs, "display.rows must be at least 1")
	}
	if c.Display.RefreshInterval < 10 {
		errs = append(errs, "display.refresh_interval must be at least 10 milliseconds")
	}
	if c.Display.ClockRow >= c.Display.Rows {
		errs = append(errs, "display.clock_row exceeds display.rows")
	}

	// Buttons validation
	if len(c.Buttons.Pins) != buttonCount {
		errs = append(errs, fmt.Sprintf("buttons.pins must list exactly %d GPIO offsets", buttonCount))
	}
	if c.Buttons.SampleInterval < 1 {
		errs = append(errs, "buttons.sample_interval must be at least 1 millisecond")
	}
	if c.Buttons.Debounce < c.Buttons.SampleInterval {
		errs = append(errs, "buttons.debounce must be at least one sample interval")
	}

	// Dispatch validation
	if c.Dispatch.Timeout < 1 {
		errs = append(errs, "dispatch.timeout must be at least 1 second")
	}
	if c.Dispatch.QueueSize < 1 {
		errs = append(errs, "dispatch.queue_size must be at least 1")
	}

	// Journal validation
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when journal is enabled")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the state polling cadence as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.HomeAssistant.PollInterval) * time.Second
}

// QueryTimeout returns the per-query timeout as a Duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.HomeAssistant.QueryTimeout) * time.Second
}

// RefreshInterval returns the display refresh cadence as a Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Display.RefreshInterval) * time.Millisecond
}

// SampleInterval returns the button sampling period as a Duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Buttons.SampleInterval) * time.Millisecond
}

// Debounce returns the button debounce window as a Duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Buttons.Debounce) * time.Millisecond
}

// Suppression returns the per-button dispatch suppression window as a Duration.
func (c *Config) Suppression() time.Duration {
	return time.Duration(c.Buttons.Suppression) * time.Millisecond
}

// DispatchTimeout returns the action call timeout as a Duration.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Dispatch.Timeout) * time.Second
}

// RetryDelay returns the dispatch retry delay as a Duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Dispatch.RetryDelay) * time.Second
}

// ReconnectDelay returns the event stream reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.HomeAssistant.EventStream.ReconnectDelay) * time.Second
}
