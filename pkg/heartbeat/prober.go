package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ProbeTimeout bounds one health probe.
const ProbeTimeout = 5 * time.Second

// HTTPProber checks GET {base}/api/health for a 200.
type HTTPProber struct {
	base    string
	url     string
	client  *http.Client
	devMode bool
}

// NewHTTPProber creates a prober for the host at baseURL.
// In dev mode every probe reports healthy without touching the network.
func NewHTTPProber(baseURL string, devMode bool) *HTTPProber {
	base := strings.TrimRight(baseURL, "/")
	return &HTTPProber{
		base:    base,
		url:     base + "/api/health",
		client:  &http.Client{Timeout: ProbeTimeout},
		devMode: devMode,
	}
}

// HostInfo is what the host reports about itself on its health endpoint.
type HostInfo struct {
	Online  bool   `json:"online"`
	Version string `json:"version,omitempty"`
	URL     string `json:"url"`
}

// Probe implements ports.HealthProber.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	return p.Inspect(ctx).Online
}

// Inspect probes the host and decodes the version it reports, if any.
func (p *HTTPProber) Inspect(ctx context.Context) HostInfo {
	info := HostInfo{URL: p.base}
	if p.devMode {
		info.Online = true
		return info
	}
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return info
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return info
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info
	}

	info.Online = true
	var body struct {
		Version string `json:"version"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil {
		info.Version = body.Version
	}
	return info
}
