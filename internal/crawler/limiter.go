package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateSettings configures token-bucket rate limiting per host.
type RateSettings struct {
	Requests int
	Window   time.Duration
}

// HostLimiter enforces politeness per host: a minimum delay between
// consecutive requests plus an optional token-bucket rate limit.
type HostLimiter struct {
	delay       time.Duration
	rate        RateSettings
	rateEnabled bool

	mu       sync.Mutex
	last     map[string]time.Time
	limiters map[string]*rate.Limiter
}

// NewHostLimiter builds a limiter. Zero delay and zero rate settings yield
// a limiter whose Wait returns immediately.
func NewHostLimiter(delay time.Duration, rateCfg RateSettings) *HostLimiter {
	hl := &HostLimiter{
		delay: delay,
		last:  make(map[string]time.Time),
	}
	if rateCfg.Requests > 0 && rateCfg.Window > 0 {
		hl.rateEnabled = true
		hl.rate = rateCfg
		hl.limiters = make(map[string]*rate.Limiter)
	}
	return hl
}

// Wait blocks until a request to host satisfies the politeness constraints,
// or the context is cancelled.
func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	if hl == nil || host == "" {
		return nil
	}
	if hl.delay <= 0 && !hl.rateEnabled {
		return nil
	}
	host = strings.ToLower(host)

	var sleep time.Duration
	var limiter *rate.Limiter

	hl.mu.Lock()
	if hl.delay > 0 {
		if last, ok := hl.last[host]; ok {
			if rest := time.Until(last.Add(hl.delay)); rest > 0 {
				sleep = rest
			}
		}
	}
	if hl.rateEnabled {
		limiter = hl.limiterLocked(host)
	}
	hl.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	hl.mu.Lock()
	hl.last[host] = time.Now()
	hl.mu.Unlock()
	return nil
}

func (hl *HostLimiter) limiterLocked(host string) *rate.Limiter {
	if limiter, ok := hl.limiters[host]; ok {
		return limiter
	}
	interval := hl.rate.Window / time.Duration(hl.rate.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	burst := hl.rate.Requests
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Every(interval), burst)
	hl.limiters[host] = limiter
	return limiter
}
