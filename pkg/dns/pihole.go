package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// PiholeClient talks to the Pi-hole v6 REST API with session (SID) authentication.
type PiholeClient struct {
	baseURL  string
	password string
	http     *http.Client

	mu  sync.Mutex
	sid string
}

// NewPiholeClient creates a client for the Pi-hole at baseURL (e.g. http://pi.hole).
func NewPiholeClient(baseURL, password string) *PiholeClient {
	return &PiholeClient{
		baseURL:  strings.TrimRight(baseURL, "/") + "/api",
		password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// StatusError is a non-2xx answer from the Pi-hole API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pihole: HTTP %d: %s", e.Code, e.Body)
}

func (c *PiholeClient) auth(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{"password": c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pihole: auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var data struct {
		Session struct {
			SID string `json:"sid"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("pihole: decode auth response: %w", err)
	}
	if data.Session.SID == "" {
		return "", fmt.Errorf("pihole: auth returned no session id")
	}

	c.mu.Lock()
	c.sid = data.Session.SID
	c.mu.Unlock()
	return data.Session.SID, nil
}

func (c *PiholeClient) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	sid := c.sid
	c.mu.Unlock()
	if sid != "" {
		return sid, nil
	}
	return c.auth(ctx)
}

func (c *PiholeClient) send(ctx context.Context, method, path, sid string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("sid", sid)
	return c.http.Do(req)
}

// do performs an authenticated request, re-authenticating once on an expired session.
func (c *PiholeClient) do(ctx context.Context, method, path string) error {
	sid, err := c.session(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, sid)
	if err != nil {
		return fmt.Errorf("pihole: %s %s: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if sid, err = c.auth(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, sid); err != nil {
			return fmt.Errorf("pihole: %s %s: %w", method, path, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func hostsPath(ip, alias string) string {
	return "/config/dns/hosts/" + url.PathEscape(ip+" "+alias)
}

// SetHost adds the local DNS record. An "already present" answer counts as success.
func (c *PiholeClient) SetHost(ctx context.Context, ip, alias string) error {
	err := c.do(ctx, http.MethodPut, hostsPath(ip, alias))
	if se, ok := err.(*StatusError); ok && se.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(se.Body), "already present") {
		return nil
	}
	return err
}

// RemoveHost deletes the local DNS record. A 404 maps to ErrRecordAbsent.
func (c *PiholeClient) RemoveHost(ctx context.Context, ip, alias string) error {
	err := c.do(ctx, http.MethodDelete, hostsPath(ip, alias))
	if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
		return ErrRecordAbsent
	}
	return err
}
