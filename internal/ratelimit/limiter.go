// Package ratelimit bounds the outbound request rate of a mirror run.
//
// A Limiter is a token bucket shared by the page fetch and every download
// worker. Acquire never rejects; it only delays the caller until a token is
// available or the context ends.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket safe for concurrent use.
type Limiter struct {
	limiter  *rate.Limiter
	acquired atomic.Int64
}

// New returns a Limiter allowing perSecond requests per second with the given burst.
// A non-positive perSecond disables throttling; a non-positive burst is treated as 1.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Acquire blocks until a request may be issued. It returns an error only
// when ctx is done before a permit becomes available.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	l.acquired.Add(1)
	return nil
}

// Acquired returns the number of permits handed out so far.
func (l *Limiter) Acquired() int64 {
	return l.acquired.Load()
}

// Limit returns the configured rate in requests per second.
func (l *Limiter) Limit() float64 {
	return float64(l.limiter.Limit())
}

// Registry hands out one Limiter per host so concurrent runs against the
// same host share a quota.
type Registry struct {
	mu        sync.Mutex
	limiters  map[string]*Limiter
	perSecond float64
	burst     int
}

// NewRegistry returns a Registry whose limiters default to perSecond and burst.
func NewRegistry(perSecond float64, burst int) *Registry {
	return &Registry{
		limiters:  make(map[string]*Limiter),
		perSecond: perSecond,
		burst:     burst,
	}
}

// ForHost returns the limiter for host, creating it on first use.
// A positive override replaces the default rate for a newly created limiter.
func (r *Registry) ForHost(host string, override float64) *Limiter {
	key := strings.ToLower(host)

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[key]; ok {
		return l
	}

	perSecond := r.perSecond
	if override > 0 {
		perSecond = override
	}
	l := New(perSecond, r.burst)
	r.limiters[key] = l
	return l
}
