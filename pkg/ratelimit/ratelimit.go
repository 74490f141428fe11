// Package ratelimit bounds aggregate throughput toward external
// providers. One token bucket exists per provider class (the AI
// categorization endpoint, web fetches), shared by every worker in the
// process, so the sum of all concurrently running jobs stays inside the
// provider's limit.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// ClassConfig configures one provider class's token bucket.
type ClassConfig struct {
	// Rate is the sustained refill rate in permits per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

func (c ClassConfig) validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", c.Rate)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}
	return nil
}

// Limiter is a process-wide registry of per-class token buckets.
type Limiter struct {
	mu       sync.RWMutex
	classes  map[string]*rate.Limiter
	fallback *rate.Limiter
}

// New builds a limiter with one bucket per configured class plus a
// fallback bucket for classes no one configured.
func New(classes map[string]ClassConfig, fallback ClassConfig) (*Limiter, error) {
	if err := fallback.validate(); err != nil {
		return nil, fmt.Errorf("default limit: %w", err)
	}
	l := &Limiter{
		classes:  make(map[string]*rate.Limiter, len(classes)),
		fallback: rate.NewLimiter(rate.Limit(fallback.Rate), fallback.Burst),
	}
	for name, cfg := range classes {
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("limit class %q: %w", name, err)
		}
		l.classes[name] = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}
	return l, nil
}

// Acquire blocks the caller until a token for the class is available or
// ctx is done. Rate pressure is absorbed here by waiting; it is never
// surfaced to callers as an error of its own.
func (l *Limiter) Acquire(ctx context.Context, class string) error {
	return l.bucket(class).Wait(ctx)
}

func (l *Limiter) bucket(class string) *rate.Limiter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.classes[class]; ok {
		return b
	}
	return l.fallback
}
