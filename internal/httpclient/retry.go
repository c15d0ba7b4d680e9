package httpclient

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls when and how to retry after a response. Used by DoWithRetry.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first failure (default 1).
	MaxRetries int

	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) and retry.
	Retry429   bool
	Max429Wait time.Duration // cap on 429 wait (e.g. 60s)

	// Retry5xx: on 5xx, wait with exponential backoff and retry.
	Retry5xx   bool
	Backoff5xx time.Duration // base backoff; doubles each attempt with ±25% jitter

	// LogHeaders: when true, log diagnostic response headers (Retry-After,
	// X-RateLimit-*, X-Cache) on any non-2xx/304 response to aid debugging.
	LogHeaders bool
}

// DefaultRetryPolicy is a reasonable default: retry 429 (cap 60s) and 5xx (1s base backoff).
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 1,
	Retry429:   true,
	Max429Wait: 60 * time.Second,
	Retry5xx:   true,
	Backoff5xx: 1 * time.Second,
	LogHeaders: true,
}

// DoWithRetry performs req and on 429/5xx (when policy allows) waits with
// backoff and retries up to MaxRetries times. All requests are serialised
// through GlobalHostSem to prevent thundering-herd against a single upstream.
// 4xx other than 429 is never retried. Caller must close resp.Body when err == nil.
//
// A retried attempt resends req's original body via req.GetBody when set
// (true of any request built with http.NewRequest/NewRequestWithContext from
// a concrete body, e.g. bytes.Reader/strings.Reader/bytes.Buffer); a request
// with a body but no GetBody (a raw io.Reader the stdlib couldn't rewind)
// cannot be safely retried and is returned to the caller as-is on the first
// non-2xx response instead of resending an empty body.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	maxRetries := policy.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	if req.Body != nil && req.GetBody == nil {
		maxRetries = 0
	}

	var lastResp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			req2, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
			if err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpclient: rewind request body for retry: %w", err)
				}
				req2.Body = body
				req2.ContentLength = req.ContentLength
			}
			for k, v := range req.Header {
				req2.Header[k] = v
			}
			req = req2
		}

		release := GlobalHostSem.Acquire(req.URL.String())
		resp, err := client.Do(req)
		release()
		if err != nil {
			return nil, err
		}

		code := resp.StatusCode
		if code == http.StatusOK || code == http.StatusNotModified ||
			code == http.StatusPartialContent {
			return resp, nil
		}

		// Log diagnostic headers on any unexpected status.
		if policy.LogHeaders {
			logDiagHeaders(req.URL.String(), code, resp.Header)
		}

		// 429: wait Retry-After then retry.
		if code == http.StatusTooManyRequests && policy.Retry429 && attempt < maxRetries {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait)
			wait = jitter(wait)
			log.Printf("httpclient: %s returned 429 (attempt %d/%d); retrying in %s",
				req.URL.Host, attempt+1, maxRetries, wait.Round(time.Millisecond))
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			lastResp = nil
			continue
		}

		// 5xx: exponential backoff with jitter.
		if code >= 500 && code < 600 && policy.Retry5xx && attempt < maxRetries {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			base := policy.Backoff5xx * time.Duration(1<<uint(attempt))
			wait := jitter(base)
			log.Printf("httpclient: %s returned %d (attempt %d/%d); retrying in %s",
				req.URL.Host, code, attempt+1, maxRetries, wait.Round(time.Millisecond))
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			lastResp = nil
			continue
		}

		// Non-retryable or exhausted retries: return as-is.
		lastResp = resp
		break
	}

	if lastResp != nil {
		return lastResp, nil
	}
	// Should not be reached; defensive.
	return nil, fmt.Errorf("httpclient: exhausted retries for %s", req.URL.String())
}

// logDiagHeaders logs useful diagnostic headers when a non-2xx status is received.
func logDiagHeaders(url string, code int, h http.Header) {
	var parts []string
	for _, key := range []string{
		"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining",
		"X-RateLimit-Reset", "X-Cache", "Server",
	} {
		if v := h.Get(key); v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	if len(parts) > 0 {
		log.Printf("httpclient: %s HTTP %d headers: %s", url, code, strings.Join(parts, " "))
	}
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	// RFC 1123 date
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}

// jitter adds ±25% random jitter to d to spread retries across concurrent callers.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// ±25%
	frac := float64(d) * 0.25
	delta := time.Duration(rand.Int63n(int64(frac*2+1))) - time.Duration(frac)
	result := d + delta
	if result < 0 {
		return 0
	}
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
