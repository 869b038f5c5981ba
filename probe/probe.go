// Package probe checks whether the image registry can be reached.
//
// A probe distinguishes "network down" from "pull legitimately slow". Any
// completed HTTP exchange counts as reachable, including error statuses and
// authentication challenges; only transport failures (DNS, refused
// connections, timeouts) count as unreachable.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/dockpull/iox"
)

// Defaults for the registry probe.
const (
	DefaultURL     = "https://registry-1.docker.io/v2/"
	DefaultTimeout = 4 * time.Second
)

// Result is the outcome of one probe.
type Result struct {
	// Reachable is true when an HTTP exchange completed.
	Reachable bool
	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int
	// Err is the transport error for unreachable results.
	Err error
	// Elapsed is the time the probe took.
	Elapsed time.Duration
}

// Prober performs reachability checks.
// Implementations must honor ctx and return within their own timeout.
type Prober interface {
	Probe(ctx context.Context) Result
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) Result

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) Result { return f(ctx) }

// HTTPProber issues HEAD requests against a fixed URL.
type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPProber creates a prober for url. Empty url and non-positive
// timeout select the defaults. HTTP/2 is disabled.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		// A non-nil empty map disables HTTP/2 negotiation.
		TLSNextProto:        map[string]func(string, *tls.Conn) http.RoundTripper{},
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}

	return &HTTPProber{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Transport: transport, Timeout: timeout},
	}
}

// URL returns the probed URL.
func (p *HTTPProber) URL() string {
	return p.url
}

// Probe sends one HEAD request bounded by the probe timeout.
func (p *HTTPProber) Probe(ctx context.Context) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("create probe request: %w", err), Elapsed: time.Since(start)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{Err: err, Elapsed: time.Since(start)}
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	return Result{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Elapsed:    time.Since(start),
	}
}

// Close releases idle connections.
func (p *HTTPProber) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Verify HTTPProber implements Prober.
var _ Prober = (*HTTPProber)(nil)
