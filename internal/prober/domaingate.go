package prober

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"github.com/opendata-ops/hydracrawl/internal/httpclient"
)

// DomainGate bounds concurrency and request rate per domain, created lazily
// and kept for the process lifetime, per spec §5 "Shared-resource policy".
// Concurrency reuses httpclient.HostSemaphore; rate is a token bucket from
// golang.org/x/time/rate, one per domain.
type DomainGate struct {
	sem *httpclient.HostSemaphore

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

func NewDomainGate(concurrency int, ratePerSec float64) *DomainGate {
	return &DomainGate{
		sem:      httpclient.NewHostSemaphore(concurrency),
		limiters: make(map[string]*rate.Limiter),
		rps:      ratePerSec,
	}
}

// Acquire blocks until both the rate limiter and the concurrency semaphore
// for domain admit the caller, or ctx is cancelled. Probes block at the
// gate; they never drop.
func (g *DomainGate) Acquire(ctx context.Context, domain string) (func(), error) {
	lim := g.limiterFor(domain)
	if err := lim.Wait(ctx); err != nil {
		return nil, err
	}
	acquired := make(chan func(), 1)
	go func() { acquired <- g.sem.Acquire(normalizeDomain(domain)) }()
	select {
	case release := <-acquired:
		return release, nil
	case <-ctx.Done():
		// Release the slot as soon as the abandoned wait obtains it.
		go func() { (<-acquired)() }()
		return nil, ctx.Err()
	}
}

func (g *DomainGate) limiterFor(domain string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	lim, ok := g.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(g.rps), 1)
		g.limiters[domain] = lim
	}
	return lim
}

func normalizeDomain(domain string) string {
	if u, err := url.Parse("https://" + domain); err == nil {
		return u.Scheme + "://" + u.Host
	}
	return domain
}
