package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/deepcrawl/internal/model"
)

// TokenBucket admits requests from a bucket holding up to burst tokens that
// refills at a fixed rate. Refill happens lazily from the elapsed time on
// every call.
type TokenBucket struct {
	limiter *rate.Limiter
	now     func() time.Time
	stats   counters
}

// NewTokenBucket creates a full TokenBucket.
func NewTokenBucket(requestsPerSecond float64, burst int, opts ...Option) (*TokenBucket, error) {
	if requestsPerSecond <= 0 {
		return nil, ErrInvalidRate
	}
	if burst <= 0 {
		return nil, ErrInvalidBurst
	}
	o := buildOptions(opts)
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		now:     o.now,
	}, nil
}

// Acquire takes n tokens if they are available now.
func (b *TokenBucket) Acquire(n int) bool {
	granted := b.limiter.AllowN(b.now(), atLeastOne(n))
	b.stats.admit(granted)
	return granted
}

// WaitForTokens reserves n tokens and sleeps until the reservation matures.
// The reservation is returned to the bucket if ctx ends first.
func (b *TokenBucket) WaitForTokens(ctx context.Context, n int) error {
	n = atLeastOne(n)
	if err := ctx.Err(); err != nil {
		return err
	}

	r := b.limiter.ReserveN(b.now(), n)
	if !r.OK() {
		return fmt.Errorf("%w: %d > %d", ErrExceedsCapacity, n, b.limiter.Burst())
	}
	if err := sleep(ctx, r.DelayFrom(b.now())); err != nil {
		r.CancelAt(b.now())
		return err
	}
	b.stats.admit(true)
	return nil
}

// RecordOutcome counts a request result toward the success rate.
func (b *TokenBucket) RecordOutcome(success bool) {
	b.stats.record(success)
}

// Stats returns the bucket counters.
func (b *TokenBucket) Stats() model.LimiterStats {
	return b.stats.snapshot(PolicyTokenBucket, float64(b.limiter.Limit()))
}

// Tokens returns the number of tokens currently available.
func (b *TokenBucket) Tokens() float64 {
	return b.limiter.TokensAt(b.now())
}

// setRate changes the refill rate from now on.
func (b *TokenBucket) setRate(requestsPerSecond float64) {
	b.limiter.SetLimitAt(b.now(), rate.Limit(requestsPerSecond))
}
