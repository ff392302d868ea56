// Package ratelimit provides per-origin sliding-window admission control for
// outbound scraping and content requests.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
)

// Limiter tracks admission timestamps per origin and blocks callers until a
// request is safe to send. State is internally synchronized; one limiter is
// shared by every in-flight session.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	defaultLimit common.OriginLimit
	limits       map[string]common.OriginLimit
	logger       arbor.ILogger

	now    func() time.Time
	jitter func() time.Duration
}

var _ interfaces.RateLimiter = (*Limiter)(nil)

// NewLimiter creates a limiter with per-origin limits and a default bucket
// for unconfigured origins.
func NewLimiter(defaultLimit common.OriginLimit, limits map[string]common.OriginLimit, logger arbor.ILogger) *Limiter {
	if limits == nil {
		limits = map[string]common.OriginLimit{}
	}
	return &Limiter{
		windows:      make(map[string][]time.Time),
		defaultLimit: defaultLimit,
		limits:       limits,
		logger:       logger,
		now:          time.Now,
		// 1-3s jitter spreads concurrent callers so they do not all retry
		// at the same instant.
		jitter: func() time.Duration {
			return time.Second + time.Duration(rand.Int63n(int64(2*time.Second)))
		},
	}
}

// Admit blocks until a request to origin is within its sliding window, or
// until ctx is cancelled. Admission order under contention is FIFO-ish; no
// fairness beyond that is guaranteed.
func (l *Limiter) Admit(ctx context.Context, origin string) error {
	limit := l.limitFor(origin)
	window := time.Duration(limit.WindowSeconds) * time.Second

	for {
		l.mu.Lock()
		now := l.now()
		timestamps := l.prune(origin, now, window)

		if len(timestamps) < limit.MaxRequests {
			l.windows[origin] = append(timestamps, now)
			l.mu.Unlock()
			return nil
		}

		oldest := timestamps[0]
		wait := window - now.Sub(oldest) + l.jitter()
		l.mu.Unlock()

		l.logger.Debug().
			Str("origin", origin).
			Dur("wait", wait).
			Int("in_window", len(timestamps)).
			Msg("Rate limit reached, waiting for admission")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *Limiter) prune(origin string, now time.Time, window time.Duration) []time.Time {
	timestamps := l.windows[origin]
	cutoff := now.Add(-window)

	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.windows[origin] = kept
	return kept
}

func (l *Limiter) limitFor(origin string) common.OriginLimit {
	if limit, ok := l.limits[origin]; ok {
		return limit
	}
	return l.defaultLimit
}
