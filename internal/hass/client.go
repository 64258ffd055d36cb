package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the connection settings for a Home Assistant instance.
type Config struct {
	// URL is the instance base URL, e.g. http://homeassistant.local:8123.
	URL string

	// Token is a long-lived access token.
	Token string

	// Timeout bounds each REST request.
	Timeout time.Duration
}

// Client is a minimal Home Assistant REST client. It is safe for concurrent
// use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient validates the configuration and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: url %q must be http or https", ErrInvalidConfig, cfg.URL)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type stateResponse struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// EntityState fetches the current raw state string of one entity via
// GET /api/states/{id}.
func (c *Client) EntityState(ctx context.Context, entityID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return "", fmt.Errorf("hass: building request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("hass: fetching %s: %w", entityID, err)
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("%w: fetching %s", ErrUnauthorized, entityID)
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	default:
		return "", fmt.Errorf("%w: %d fetching %s", ErrUnexpectedStatus, resp.StatusCode, entityID)
	}

	var state stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return "", fmt.Errorf("hass: decoding state of %s: %w", entityID, err)
	}
	return state.State, nil
}

// CallService invokes POST /api/services/{domain}/{service} targeting a
// single entity.
func (c *Client) CallService(ctx context.Context, domain, service, entityID string) error {
	body, err := json.Marshal(map[string]string{"entity_id": entityID})
	if err != nil {
		return fmt.Errorf("hass: encoding service call: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/services/"+url.PathEscape(domain)+"/"+url.PathEscape(service),
		bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hass: building request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hass: calling %s.%s on %s: %w", domain, service, entityID, err)
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: calling %s.%s", ErrUnauthorized, domain, service)
	default:
		return fmt.Errorf("%w: %d calling %s.%s on %s", ErrUnexpectedStatus, resp.StatusCode, domain, service, entityID)
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// drain consumes and closes a response body so the underlying connection
// can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
