package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/panelsync/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("", "panel-a1")
	if got := topics.Status(); got != "panelsync/panel-a1/status" {
		t.Errorf("Status() = %q", got)
	}
	if got := topics.Event(); got != "panelsync/panel-a1/event" {
		t.Errorf("Event() = %q", got)
	}

	custom := NewTopics("home/panels", "panel-a1")
	if got := custom.Event(); got != "home/panels/panel-a1/event" {
		t.Errorf("Event() with prefix = %q", got)
	}
}

func TestStatusPayload(t *testing.T) {
	var decoded struct {
		Status    string `json:"status"`
		Device    string `json:"device"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(statusPayload("online", "panel-a1")), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.Status != "online" || decoded.Device != "panel-a1" || decoded.Timestamp == "" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{topics: NewTopics("", "panel-a1")}

	if err := c.Publish("", []byte("x")); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish with empty topic: error = %v, want %v", err, ErrInvalidTopic)
	}
	if err := c.Publish(c.topics.Event(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish while disconnected: error = %v, want %v", err, ErrNotConnected)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "panelsync-a1"},
		Auth:   config.MQTTAuthConfig{Username: "panel", Password: "secret"},
	}
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || !strings.HasPrefix(opts.Servers[0].String(), "ssl://broker.local:8883") {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "panelsync-a1" || opts.Username != "panel" {
		t.Errorf("identity = %s/%s", opts.ClientID, opts.Username)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
}
