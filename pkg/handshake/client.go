package handshake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ResponseError is a non-2xx answer from the companion.
type ResponseError struct {
	Code   int
	Detail string
}

func (e *ResponseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("handshake: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("handshake: status %d: %s", e.Code, e.Detail)
}

// Client sends signed handshake requests, the way the host does on shutdown and boot.
type Client struct {
	base   string
	secret string
	http   *http.Client
	now    func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default 10s client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClientClock replaces time.Now for signing.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a client for the companion at baseURL.
func NewClient(baseURL, secret string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		secret: secret,
		http:   &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GoingOffline announces a planned shutdown; snapshot is stored verbatim.
func (c *Client) GoingOffline(ctx context.Context, snapshot []byte) (OfflineAck, error) {
	if len(snapshot) == 0 {
		snapshot = []byte("{}")
	}
	var ack OfflineAck
	err := c.do(ctx, http.MethodPost, "/api/handshake/nas-going-offline", snapshot, &ack)
	return ack, err
}

// ComingOnline announces that the host finished booting.
func (c *Client) ComingOnline(ctx context.Context) (OnlineAck, error) {
	var ack OnlineAck
	err := c.do(ctx, http.MethodPost, "/api/handshake/nas-coming-online", []byte("{}"), &ack)
	return ack, err
}

// Status fetches the companion's view of the host.
func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport
	err := c.do(ctx, http.MethodGet, "/api/handshake/status", nil, &report)
	return report, err
}

// Snapshot fetches the last stored snapshot as raw JSON.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/handshake/snapshot", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	SignRequest(req, c.secret, body, c.now())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("handshake %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("handshake %s: read response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var problem struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(data, &problem)
		return &ResponseError{Code: resp.StatusCode, Detail: problem.Detail}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("handshake %s: decode response: %w", path, err)
	}
	return nil
}
