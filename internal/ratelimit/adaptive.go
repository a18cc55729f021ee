package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	// adaptiveMinOutcomes is how many outcomes must be recorded before the
	// rate is reconsidered.
	adaptiveMinOutcomes = 10

	// adaptiveInterval is the minimum time between rate changes.
	adaptiveInterval = 10 * time.Second

	// adaptiveRaiseAbove is the success rate above which the rate grows.
	adaptiveRaiseAbove = 0.95

	// adaptiveCutBelow is the success rate below which the rate shrinks.
	adaptiveCutBelow = 0.8

	adaptiveRaiseFactor = 1.1
	adaptiveCutFactor   = 0.8

	// adaptiveMinFactor and adaptiveMaxFactor bound the rate relative to
	// the configured base rate.
	adaptiveMinFactor = 0.1
	adaptiveMaxFactor = 2.0
)

// Adaptive is a token bucket whose refill rate follows the success rate of
// the requests it admitted.
//
// Once at least ten outcomes were recorded and ten seconds passed since the
// previous evaluation, the rate grows by 10% if more than 95% succeeded or
// shrinks by 20% if fewer than 80% did. The rate always stays within
// [0.1, 2] times the base rate.
type Adaptive struct {
	bucket *TokenBucket
	base   float64

	mu          sync.Mutex
	current     float64
	outcomes    int
	successes   int
	lastEval    time.Time
	adjustments int
}

// NewAdaptive creates an Adaptive limiter starting at requestsPerSecond.
func NewAdaptive(requestsPerSecond float64, burst int, opts ...Option) (*Adaptive, error) {
	bucket, err := NewTokenBucket(requestsPerSecond, burst, opts...)
	if err != nil {
		return nil, err
	}
	return &Adaptive{
		bucket:  bucket,
		base:    requestsPerSecond,
		current: requestsPerSecond,
	}, nil
}

// Acquire takes n tokens from the underlying bucket if available.
func (a *Adaptive) Acquire(n int) bool {
	return a.bucket.Acquire(n)
}

// WaitForTokens blocks on the underlying bucket.
func (a *Adaptive) WaitForTokens(ctx context.Context, n int) error {
	return a.bucket.WaitForTokens(ctx, n)
}

// RecordOutcome counts a request result and adjusts the rate when due.
func (a *Adaptive) RecordOutcome(success bool) {
	a.bucket.RecordOutcome(success)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes++
	if success {
		a.successes++
	}

	now := a.bucket.now()
	if a.outcomes < adaptiveMinOutcomes {
		return
	}
	if !a.lastEval.IsZero() && now.Sub(a.lastEval) < adaptiveInterval {
		return
	}

	successRate := float64(a.successes) / float64(a.outcomes)
	next := a.current
	switch {
	case successRate > adaptiveRaiseAbove:
		next = a.current * adaptiveRaiseFactor
	case successRate < adaptiveCutBelow:
		next = a.current * adaptiveCutFactor
	}
	next = min(max(next, a.base*adaptiveMinFactor), a.base*adaptiveMaxFactor)

	if next != a.current {
		a.current = next
		a.adjustments++
		a.bucket.setRate(next)
	}
	a.outcomes, a.successes = 0, 0
	a.lastEval = now
}

// CurrentRate returns the effective requests per second.
func (a *Adaptive) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Stats returns the limiter counters with the adaptive rate.
func (a *Adaptive) Stats() model.LimiterStats {
	a.mu.Lock()
	current, adjustments := a.current, a.adjustments
	a.mu.Unlock()

	s := a.bucket.stats.snapshot(PolicyAdaptive, current)
	s.Adjustments = adjustments
	return s
}
