package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"
)

// Probe gathers one group of attributes for a capture.
type Probe interface {
	// Name is the payload key the probe's value is stored under.
	Name() string

	// Probe returns a JSON-encodable value.
	Probe(ctx context.Context) (any, error)
}

// HostInfo describes the machine and environment running the collector.
type HostInfo struct {
	Hostname  string `json:"hostname"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUs      int    `json:"cpus"`
	GoVersion string `json:"goVersion"`
	Language  string `json:"language,omitempty"`
	TimeZone  string `json:"timeZone"`
}

// HostProbe reports HostInfo under the name "host".
type HostProbe struct{}

// Name returns "host".
func (HostProbe) Name() string { return "host" }

// Probe reads HostInfo from the running process and environment.
func (HostProbe) Probe(ctx context.Context) (any, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	zone, _ := time.Now().Zone()
	if name := time.Local.String(); name != "Local" {
		zone = name
	}
	return HostInfo{
		Hostname:  hostname,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		GoVersion: runtime.Version(),
		Language:  language(),
		TimeZone:  zone,
	}, nil
}

func language() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// maxProbeBody caps how much of a probe response is read.
const maxProbeBody = 1 << 20

// HTTPProbe fetches a JSON document, such as a public IP or geolocation
// lookup, and reports it under ProbeName.
type HTTPProbe struct {
	ProbeName string
	URL       string

	// Fields keeps only these top-level keys of a JSON object. Empty keeps all.
	Fields []string

	// Client performs the request. Default: http.DefaultClient.
	Client *http.Client
}

// Name returns ProbeName.
func (p *HTTPProbe) Name() string { return p.ProbeName }

// Probe GETs URL and decodes the JSON answer. Non-2xx answers are errors.
func (p *HTTPProbe) Probe(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", p.URL, resp.StatusCode)
	}

	var value any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBody)).Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p.URL, err)
	}

	obj, ok := value.(map[string]any)
	if !ok || len(p.Fields) == 0 {
		return value, nil
	}
	picked := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		if v, ok := obj[f]; ok {
			picked[f] = v
		}
	}
	return picked, nil
}

// Cached remembers the last value its probe produced and returns it when
// the probe fails.
type Cached struct {
	probe Probe

	mu    sync.Mutex
	value any
	ok    bool
}

// NewCached wraps p.
func NewCached(p Probe) *Cached {
	return &Cached{probe: p}
}

// Name returns the wrapped probe's name.
func (c *Cached) Name() string { return c.probe.Name() }

// Probe returns the wrapped probe's value, or the last good value if it
// fails. It fails only when the probe has never succeeded.
func (c *Cached) Probe(ctx context.Context) (any, error) {
	value, err := c.probe.Probe(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.value, c.ok = value, true
		return value, nil
	}
	if c.ok {
		return c.value, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNoValue, c.probe.Name(), err)
}
