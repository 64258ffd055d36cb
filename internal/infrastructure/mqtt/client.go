package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/panelsync/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second

	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 60 * time.Second

	tlsMinVersion = tls.VersionTLS12

	defaultTopicPrefix = "panelsync"
)

// Topics builds the panel's topic names.
type Topics struct {
	Prefix   string
	DeviceID string
}

// NewTopics applies the default prefix when the configuration leaves it
// empty.
func NewTopics(prefix, deviceID string) Topics {
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return Topics{Prefix: prefix, DeviceID: deviceID}
}

// Status is the retained online/offline topic for this panel.
func (t Topics) Status() string { return t.Prefix + "/" + t.DeviceID + "/status" }

// Event is the topic for dispatch outcomes and staleness transitions.
func (t Topics) Event() string { return t.Prefix + "/" + t.DeviceID + "/event" }

// Client is a thin publisher over paho.mqtt.golang. All methods are safe
// for concurrent use.
type Client struct {
	client pahomqtt.Client
	topics Topics

	connMu    sync.RWMutex
	connected bool
}

// Connect dials the broker, registers the offline LWT on the status topic
// and announces the panel online.
func Connect(cfg config.MQTTConfig, deviceID string) (*Client, error) {
	topics := NewTopics(cfg.TopicPrefix, deviceID)
	opts := buildClientOptions(cfg)
	opts.SetWill(topics.Status(), statusPayload("offline", deviceID), 1, true)

	c := &Client{topics: topics}
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.setConnected(true)
		// Re-announce after every reconnect; the LWT may have fired.
		token := c.client.Publish(topics.Status(), 1, true, statusPayload("online", deviceID))
		token.WaitTimeout(defaultPublishTimeout)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, _ error) {
		c.setConnected(false)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.setConnected(true)
	return c, nil
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

func statusPayload(status, deviceID string) string {
	return fmt.Sprintf(`{"status":%q,"device":%q,"timestamp":%q}`,
		status, deviceID, time.Now().UTC().Format(time.RFC3339))
}

// Topics returns the panel's topic set.
func (c *Client) Topics() Topics { return c.topics }

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// Publish sends a payload to a topic at QoS 0.
func (c *Client) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close announces the panel offline and disconnects gracefully.
func (c *Client) Close() {
	if c.client == nil {
		return
	}
	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), 1, true, statusPayload("offline", c.topics.DeviceID))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
}
