// Package webhook delivers change/analysis events to the upstream catalog
// service, reusing internal/httpclient's retry-with-backoff engine for
// outbound delivery (same pattern as internal/indexer/fetch/condget.go's
// use of httpclient.DoWithRetry for its own outbound calls).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opendata-ops/hydracrawl/internal/httpclient"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

// Event is the outbound payload, keyed exactly as spec §6 names them.
type Event struct {
	CheckDate                   string  `json:"check:date"`
	CheckAvailable               *bool   `json:"check:available"`
	CheckTimeout                 bool    `json:"check:timeout"`
	CheckStatus                  *int    `json:"check:status"`
	CheckHeadersContentType      *string `json:"check:headers:content-type,omitempty"`
	CheckHeadersContentLength    *int64  `json:"check:headers:content-length,omitempty"`
	AnalysisChecksum             *string `json:"analysis:checksum,omitempty"`
	AnalysisContentLength        *int64  `json:"analysis:content-length,omitempty"`
	AnalysisMimeType             *string `json:"analysis:mime-type,omitempty"`
	AnalysisLastModifiedAt       *string `json:"analysis:last-modified-at,omitempty"`
	AnalysisLastModifiedDetection *string `json:"analysis:last-modified-detection,omitempty"`
	AnalysisError                *string `json:"analysis:error,omitempty"`
}

// Available computes check:available per spec §6: null iff 429, false on
// transport failure or 5xx, true otherwise.
func Available(status *int, transportFailure bool) *bool {
	if status != nil && *status == http.StatusTooManyRequests {
		return nil
	}
	if transportFailure {
		return falsePtr()
	}
	if status != nil && *status >= 500 {
		return falsePtr()
	}
	return truePtr()
}

func truePtr() *bool  { v := true; return &v }
func falsePtr() *bool { v := false; return &v }

// EventFromCheck builds the outbound Event for a check and optional analysis
// result. analysisError is the analysis pipeline's own download/sniff
// failure text (spec §4.4 step 4/7), if any — distinct from c.Error, which
// is the prober's probe-level classification (timeout/transport/5xx) and is
// never surfaced under analysis:error.
func EventFromCheck(c *model.Check, transportFailure bool, cr *model.ChangeResult, analysisError *string) Event {
	ev := Event{
		CheckDate:    c.CreatedAt.UTC().Format(time.RFC3339),
		CheckAvailable: Available(c.Status, transportFailure),
		CheckTimeout: c.Timeout,
		CheckStatus:  c.Status,
	}
	if ct, ok := c.Headers["content-type"]; ok {
		ev.CheckHeadersContentType = &ct
	}
	if cl, ok := c.Headers["content-length"]; ok {
		if n, err := parseInt64(cl); err == nil {
			ev.CheckHeadersContentLength = &n
		}
	}
	ev.AnalysisChecksum = c.Checksum
	ev.AnalysisContentLength = c.Filesize
	ev.AnalysisMimeType = c.MimeType
	ev.AnalysisError = analysisError
	if cr != nil && cr.LastModifiedAt != nil {
		s := cr.LastModifiedAt.UTC().Format(time.RFC3339)
		ev.AnalysisLastModifiedAt = &s
		m := string(cr.DetectionMethod)
		ev.AnalysisLastModifiedDetection = &m
	}
	return ev
}

func parseInt64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// Sender delivers events to the upstream catalog.
type Sender struct {
	baseURL string
	client  *http.Client
}

func NewSender(baseURL string) *Sender {
	return &Sender{baseURL: baseURL, client: httpclient.Default()}
}

// Send PUTs ev to the upstream webhook URL, retrying through
// httpclient.DoWithRetry. Per spec §7, repeated failure is logged and
// dropped after a bounded number of attempts by the caller's queue wrapper —
// Send itself returns the final error so the caller can decide.
func (s *Sender) Send(ctx context.Context, resourceID string, ev Event) error {
	if s.baseURL == "" {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	url := s.baseURL + "/" + resourceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.DoWithRetry(ctx, s.client, req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: upstream returned %d", resp.StatusCode)
	}
	return nil
}
