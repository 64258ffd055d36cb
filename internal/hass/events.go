package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/panelsync/internal/infrastructure/logging"
)

// StateHandler receives entity state changes pushed by the event stream.
type StateHandler func(entityID, state string)

// EventStreamConfig holds the settings for the websocket subscription.
type EventStreamConfig struct {
	// URL is the instance base URL, shared with the REST client.
	URL string

	// Token is a long-lived access token.
	Token string

	// ReconnectDelay is the pause between reconnection attempts.
	ReconnectDelay time.Duration

	// HandshakeTimeout bounds the dial and auth exchange.
	HandshakeTimeout time.Duration
}

// EventStream subscribes to state_changed events over the Home Assistant
// websocket API and forwards them to a handler. It reconnects on any
// failure; polling covers the gaps.
type EventStream struct {
	wsURL     string
	token     string
	delay     time.Duration
	handshake time.Duration
	handler   StateHandler
	logger    *logging.Logger
}

// NewEventStream validates the configuration and returns a stream that
// forwards state changes to handler.
func NewEventStream(cfg EventStreamConfig, handler StateHandler, logger *logging.Logger) (*EventStream, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is required", ErrInvalidConfig)
	}
	wsURL, err := websocketURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EventStream{
		wsURL:     wsURL,
		token:     cfg.Token,
		delay:     cfg.ReconnectDelay,
		handshake: cfg.HandshakeTimeout,
		handler:   handler,
		logger:    logger,
	}, nil
}

// websocketURL maps the REST base URL onto the websocket endpoint,
// http -> ws and https -> wss.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: url %q: %v", ErrInvalidConfig, base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: url %q must be http or https", ErrInvalidConfig, base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	return u.String(), nil
}

// Run connects, authenticates and consumes events until ctx is cancelled.
// Connection failures are logged and retried after the reconnect delay.
func (s *EventStream) Run(ctx context.Context) error {
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("event stream disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
}

type wsMessage struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

type stateChangedEvent struct {
	Data struct {
		EntityID string `json:"entity_id"`
		NewState *struct {
			State string `json:"state"`
		} `json:"new_state"`
	} `json:"data"`
}

func (s *EventStream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.handshake}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("hass: dialing %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	// Close the connection when ctx is cancelled so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := s.authenticate(conn); err != nil {
		return err
	}
	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.Info("event stream connected", "url", s.wsURL)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("hass: reading event: %w", err)
		}
		if msg.Type != "event" {
			continue
		}
		var ev stateChangedEvent
		if err := json.Unmarshal(msg.Event, &ev); err != nil {
			s.logger.Warn("discarding malformed event", "error", err)
			continue
		}
		if ev.Data.EntityID == "" || ev.Data.NewState == nil {
			continue
		}
		s.handler(ev.Data.EntityID, ev.Data.NewState.State)
	}
}

// authenticate performs the auth_required / auth / auth_ok exchange.
func (s *EventStream) authenticate(conn *websocket.Conn) error {
	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("%w: reading greeting: %v", ErrAuthFailed, err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("%w: unexpected greeting %q", ErrAuthFailed, hello.Type)
	}
	if err := conn.WriteJSON(map[string]string{
		"type":         "auth",
		"access_token": s.token,
	}); err != nil {
		return fmt.Errorf("%w: sending token: %v", ErrAuthFailed, err)
	}
	var result wsMessage
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("%w: reading auth result: %v", ErrAuthFailed, err)
	}
	if result.Type != "auth_ok" {
		return fmt.Errorf("%w: got %q", ErrAuthFailed, result.Type)
	}
	return nil
}

// subscribe requests state_changed events and waits for the result frame.
func (s *EventStream) subscribe(conn *websocket.Conn) error {
	if err := conn.WriteJSON(map[string]any{
		"id":         1,
		"type":       "subscribe_events",
		"event_type": "state_changed",
	}); err != nil {
		return fmt.Errorf("%w: sending subscription: %v", ErrSubscribeFailed, err)
	}
	var result wsMessage
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("%w: reading result: %v", ErrSubscribeFailed, err)
	}
	if result.Type != "result" || result.Success == nil || !*result.Success {
		return fmt.Errorf("%w: %s", ErrSubscribeFailed, result.Type)
	}
	return nil
}
