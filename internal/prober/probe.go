// Package prober performs the HTTP probe of a single resource: HEAD with
// GET fallback, per-domain gating, and failure classification, per spec
// §4.2. Modeled on the single-probe-and-classify shape of the teacher's
// internal/provider package, reworked for HEAD/GET semantics instead of
// Cloudflare-challenge detection (no such concept in this domain).
package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/httpclient"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

// Outcome classifies a probe result. Mutually exclusive per spec §4.2.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeTransport Outcome = "transport"
	Outcome4xx       Outcome = "http-4xx"
	Outcome5xx       Outcome = "http-5xx"
)

// Result is the raw outcome of one probe, before it is turned into a
// model.Check row by the caller (which also knows resource/dataset identity).
type Result struct {
	Outcome      Outcome
	Status       *int
	Timeout      bool
	Error        *string
	ResponseTime time.Duration
	Headers      map[string]string // lowercased
}

// relevantHeaders is the subset retained on every check row for change
// detection, per spec §4.2's "retaining only the subset relevant to change
// detection ... plus whatever the origin returned for traceability" —
// traceability headers beyond this set are intentionally not persisted to
// keep the checks table bounded.
var relevantHeaders = []string{"last-modified", "content-length", "content-type", "etag"}

// Prober issues HEAD/GET probes gated per domain.
type Prober struct {
	client *http.Client
	gate   *DomainGate
	cfg    *config.Config
}

func New(cfg *config.Config) *Prober {
	client := httpclient.Default()
	client.Timeout = cfg.ProbeTotalTimeout
	return &Prober{
		client: client,
		gate:   NewDomainGate(cfg.DomainConcurrency, cfg.DomainRatePerSec),
		cfg:    cfg,
	}
}

// Probe performs the HEAD-with-GET-fallback probe against url, gated by domain.
func (p *Prober) Probe(ctx context.Context, domain, url string) Result {
	release, err := p.gate.Acquire(ctx, domain)
	if err != nil {
		return Result{Outcome: OutcomeTransport, Error: strPtr(err.Error())}
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTotalTimeout)
	defer cancel()

	start := time.Now()
	resp, err := p.doHead(ctx, url)
	if err == nil && needsGETFallback(resp.StatusCode) {
		resp.Body.Close()
		resp, err = p.doGET(ctx, url)
	}
	elapsed := time.Since(start)

	if err != nil {
		return classifyError(err, elapsed)
	}
	defer resp.Body.Close()

	return classifyResponse(resp, elapsed)
}

func (p *Prober) doHead(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "hydracrawl/1.0")
	return p.client.Do(req)
}

func (p *Prober) doGET(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "hydracrawl/1.0")
	return p.client.Do(req)
}

func needsGETFallback(status int) bool {
	return status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented
}

func classifyResponse(resp *http.Response, elapsed time.Duration) Result {
	headers := normalizeHeaders(resp.Header)
	status := resp.StatusCode
	r := Result{
		Status:       &status,
		ResponseTime: elapsed,
		Headers:      headers,
	}
	switch {
	case status >= 500 && status < 600:
		r.Outcome = Outcome5xx
		r.Error = strPtr(http.StatusText(status))
	case status >= 400 && status < 500:
		r.Outcome = Outcome4xx
	default:
		r.Outcome = OutcomeOK
	}
	return r
}

func classifyError(err error, elapsed time.Duration) Result {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Result{Outcome: OutcomeTimeout, Timeout: true, ResponseTime: elapsed}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Outcome: OutcomeTimeout, Timeout: true, ResponseTime: elapsed}
	}
	return Result{
		Outcome:      OutcomeTransport,
		ResponseTime: elapsed,
		Error:        strPtr(classifyTransportError(err)),
	}
}

// classifyTransportError renders "<classname>: <msg>" for DNS/TLS/protocol
// failures, per spec §4.2.
func classifyTransportError(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("DNSError: %s", dnsErr.Err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("OpError: %s", opErr.Err)
	}
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return fmt.Sprintf("TransportError: %s", msg[idx+2:])
	}
	return fmt.Sprintf("TransportError: %s", msg)
}

func normalizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(relevantHeaders))
	for _, k := range relevantHeaders {
		if v := h.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

// ToCheck turns a probe Result into a model.Check row for the given resource.
func ToCheck(res *model.Resource, r Result, createdAt time.Time) *model.Check {
	return &model.Check{
		ResourceID:   res.ResourceID,
		DatasetID:    res.DatasetID,
		URL:          res.URL,
		Domain:       res.Domain,
		CreatedAt:    createdAt,
		Status:       r.Status,
		Timeout:      r.Timeout,
		ResponseTime: r.ResponseTime.Seconds(),
		Error:        r.Error,
		Headers:      r.Headers,
	}
}
