package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// SlidingWindow admits a request only while fewer than rate*window requests
// were admitted in the trailing window. Expired timestamps are evicted on
// every call.
type SlidingWindow struct {
	mu       sync.Mutex
	log      []time.Time
	window   time.Duration
	capacity int
	rate     float64
	now      func() time.Time
	stats    counters
}

// NewSlidingWindow creates a SlidingWindow admitting requestsPerSecond over
// the given window. The capacity is floor(rate*window) and at least 1.
func NewSlidingWindow(requestsPerSecond float64, window time.Duration, opts ...Option) (*SlidingWindow, error) {
	if requestsPerSecond <= 0 {
		return nil, ErrInvalidRate
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	capacity := max(int(math.Floor(requestsPerSecond*window.Seconds())), 1)

	o := buildOptions(opts)
	return &SlidingWindow{
		log:      make([]time.Time, 0, capacity),
		window:   window,
		capacity: capacity,
		rate:     requestsPerSecond,
		now:      o.now,
	}, nil
}

// Acquire records n requests if they fit in the current window.
func (w *SlidingWindow) Acquire(n int) bool {
	n = atLeastOne(n)

	w.mu.Lock()
	now := w.now()
	w.evictLocked(now)
	granted := len(w.log)+n <= w.capacity
	if granted {
		w.appendLocked(now, n)
	}
	w.mu.Unlock()

	w.stats.admit(granted)
	return granted
}

// WaitForTokens blocks until n requests fit in the window.
func (w *SlidingWindow) WaitForTokens(ctx context.Context, n int) error {
	n = atLeastOne(n)
	if n > w.capacity {
		return fmt.Errorf("%w: %d > %d", ErrExceedsCapacity, n, w.capacity)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		w.mu.Lock()
		now := w.now()
		w.evictLocked(now)
		excess := len(w.log) + n - w.capacity
		if excess <= 0 {
			w.appendLocked(now, n)
			w.mu.Unlock()
			w.stats.admit(true)
			return nil
		}
		// The log is ordered, so enough room opens once the excess-th
		// oldest entry leaves the window.
		wait := w.log[excess-1].Add(w.window).Sub(now)
		w.mu.Unlock()

		if err := sleep(ctx, max(wait, time.Millisecond)); err != nil {
			return err
		}
	}
}

// RecordOutcome counts a request result toward the success rate.
func (w *SlidingWindow) RecordOutcome(success bool) {
	w.stats.record(success)
}

// Stats returns the window counters.
func (w *SlidingWindow) Stats() model.LimiterStats {
	return w.stats.snapshot(PolicySlidingWindow, w.rate)
}

// InWindow returns the number of requests admitted in the trailing window.
func (w *SlidingWindow) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked(w.now())
	return len(w.log)
}

func (w *SlidingWindow) evictLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.log) && !w.log[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.log = append(w.log[:0], w.log[i:]...)
	}
}

func (w *SlidingWindow) appendLocked(now time.Time, n int) {
	for range n {
		w.log = append(w.log, now)
	}
}
