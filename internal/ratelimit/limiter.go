package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Policy names a rate limiting algorithm.
type Policy string

const (
	// PolicyTokenBucket refills a bucket of Burst tokens at a fixed rate.
	PolicyTokenBucket Policy = "token_bucket"

	// PolicySlidingWindow admits at most rate*window requests in any
	// trailing window.
	PolicySlidingWindow Policy = "sliding_window"

	// PolicyAdaptive is a token bucket whose rate follows the observed
	// request success rate.
	PolicyAdaptive Policy = "adaptive"
)

const (
	// DefaultRequestsPerSecond is the default sustained request rate.
	DefaultRequestsPerSecond = 2.0

	// DefaultBurstSize is the default token bucket capacity.
	DefaultBurstSize = 5

	// DefaultWindowSize is the default sliding window length.
	DefaultWindowSize = time.Second
)

// Limiter is an admission gate for outgoing requests.
//
// A single Limiter is meant to be shared by every concurrent fetch in the
// process, so all implementations are safe for concurrent use.
type Limiter interface {
	// Acquire takes n tokens without blocking and reports whether it
	// succeeded. n below 1 is treated as 1.
	Acquire(n int) bool

	// WaitForTokens blocks until n tokens are available or ctx is done.
	WaitForTokens(ctx context.Context, n int) error

	// RecordOutcome reports whether an admitted request succeeded.
	RecordOutcome(success bool)

	// Stats returns a snapshot of the limiter counters.
	Stats() model.LimiterStats
}

// Config selects and parameterizes a Limiter.
type Config struct {
	Policy            Policy
	RequestsPerSecond float64
	BurstSize         int
	WindowSize        time.Duration
}

// DefaultConfig returns a token bucket config with the default values.
func DefaultConfig() Config {
	return Config{
		Policy:            PolicyTokenBucket,
		RequestsPerSecond: DefaultRequestsPerSecond,
		BurstSize:         DefaultBurstSize,
		WindowSize:        DefaultWindowSize,
	}
}

// Validate checks the config for the selected policy.
func (c Config) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return ErrInvalidRate
	}
	switch c.Policy {
	case PolicyTokenBucket, PolicyAdaptive:
		if c.BurstSize <= 0 {
			return ErrInvalidBurst
		}
	case PolicySlidingWindow:
		if c.WindowSize <= 0 {
			return ErrInvalidWindow
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, c.Policy)
	}
	return nil
}

// Option configures a Limiter built by New.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates the Limiter selected by cfg.Policy.
func New(cfg Config, opts ...Option) (Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Policy {
	case PolicySlidingWindow:
		return NewSlidingWindow(cfg.RequestsPerSecond, cfg.WindowSize, opts...)
	case PolicyAdaptive:
		return NewAdaptive(cfg.RequestsPerSecond, cfg.BurstSize, opts...)
	default:
		return NewTokenBucket(cfg.RequestsPerSecond, cfg.BurstSize, opts...)
	}
}

// counters tracks admission and outcome totals shared by all policies.
type counters struct {
	mu        sync.Mutex
	total     int64
	denied    int64
	outcomes  int64
	successes int64
}

func (c *counters) admit(granted bool) {
	c.mu.Lock()
	c.total++
	if !granted {
		c.denied++
	}
	c.mu.Unlock()
}

func (c *counters) record(success bool) {
	c.mu.Lock()
	c.outcomes++
	if success {
		c.successes++
	}
	c.mu.Unlock()
}

func (c *counters) snapshot(policy Policy, currentRate float64) model.LimiterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	successRate := 1.0
	if c.outcomes > 0 {
		successRate = float64(c.successes) / float64(c.outcomes)
	}
	return model.LimiterStats{
		Policy:      string(policy),
		Total:       c.total,
		Denied:      c.denied,
		SuccessRate: successRate,
		CurrentRate: currentRate,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
