package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	// adjustInterval is the minimum time between two bound evaluations.
	adjustInterval = 2 * time.Second

	// historySize is how many recent evaluations gate an increase, and how
	// many samples feed the rolling load averages.
	historySize = 5

	// decreaseFactor and increaseFactor scale the bound.
	decreaseFactor = 0.8
	increaseFactor = 1.2

	// headroom is the fraction of a threshold the rolling average must stay
	// below before the bound may grow.
	headroom = 0.7
)

// AdaptiveConfig parameterizes a MemoryAdaptive dispatcher.
type AdaptiveConfig struct {
	Initial         int
	Min             int
	Max             int
	MemoryThreshold float64
	CPUThreshold    float64
	MonitorInterval time.Duration
}

// Validate checks 1 <= Min <= Initial <= Max and thresholds in (0, 100].
func (c AdaptiveConfig) Validate() error {
	if c.Min < 1 || c.Initial < c.Min || c.Max < c.Initial {
		return fmt.Errorf("%w: min=%d initial=%d max=%d", ErrInvalidConcurrency, c.Min, c.Initial, c.Max)
	}
	if c.MemoryThreshold <= 0 || c.MemoryThreshold > 100 {
		return fmt.Errorf("%w: memory=%v", ErrInvalidThreshold, c.MemoryThreshold)
	}
	if c.CPUThreshold <= 0 || c.CPUThreshold > 100 {
		return fmt.Errorf("%w: cpu=%v", ErrInvalidThreshold, c.CPUThreshold)
	}
	return nil
}

// MemoryAdaptive runs tasks in batches whose size follows system load.
//
// Monitor samples memory and CPU every MonitorInterval. At most once every
// two seconds the bound is re-evaluated: a sample above either threshold
// shrinks it by 20% (at least by one, never below Min); otherwise, if none
// of the last five evaluations shrank it and the rolling averages are below
// 70% of the thresholds, it grows by 20% (at least by one, never above Max).
//
// The bound is shared by concurrent Dispatch calls: every task waits for a
// process-wide slot, and a lowered bound stops new tasks until enough
// in-flight tasks finish. On top of that Dispatch slices its tasks into
// batches sized to the bound at the time each batch starts.
type MemoryAdaptive struct {
	cfg     AdaptiveConfig
	sampler Sampler
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	current     int
	inFlight    int
	wake        chan struct{}
	deltas      []int
	memory      []float64
	cpu         []float64
	lastEval    time.Time
	adjustments int

	counters
}

// NewMemoryAdaptive creates a MemoryAdaptive dispatcher. A zero
// MonitorInterval selects DefaultMonitorInterval.
func NewMemoryAdaptive(cfg AdaptiveConfig, opts ...Option) (*MemoryAdaptive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}

	o := buildOptions(opts)
	return &MemoryAdaptive{
		cfg:     cfg,
		sampler: o.sampler,
		logger:  o.logger,
		now:     o.now,
		current: cfg.Initial,
		wake:    make(chan struct{}),
	}, nil
}

// Concurrency returns the current bound.
func (d *MemoryAdaptive) Concurrency() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Dispatch runs tasks in batches and returns their results in task order.
func (d *MemoryAdaptive) Dispatch(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	for start := 0; start < len(tasks); {
		if err := ctx.Err(); err != nil {
			fillCancelled(results, start, err)
			break
		}

		end := min(start+d.Concurrency(), len(tasks))
		if stop := d.runBatch(ctx, tasks, results, start, end); stop {
			break
		}
		start = end
	}
	return results
}

// runBatch runs tasks[start:end], each in its own slot. It reports whether
// ctx ended before every task of the batch got a slot.
func (d *MemoryAdaptive) runBatch(ctx context.Context, tasks []Task, results []Result, start, end int) bool {
	var wg sync.WaitGroup
	defer wg.Wait()

	for i := start; i < end; i++ {
		if err := d.acquire(ctx); err != nil {
			fillCancelled(results, i, err)
			return true
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.release()
			results[i] = d.run(ctx, tasks[i])
		}()
	}
	return false
}

// acquire waits for a free slot under the current bound.
func (d *MemoryAdaptive) acquire(ctx context.Context) error {
	for {
		d.mu.Lock()
		if d.inFlight < d.current {
			d.inFlight++
			d.mu.Unlock()
			return nil
		}
		wake := d.wake
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

func (d *MemoryAdaptive) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	d.wakeLocked()
}

// wakeLocked wakes every goroutine waiting in acquire.
func (d *MemoryAdaptive) wakeLocked() {
	close(d.wake)
	d.wake = make(chan struct{})
}

// Monitor samples system load until ctx is done.
func (d *MemoryAdaptive) Monitor(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := d.sampler.Sample(ctx)
			if err != nil {
				d.logger.Debug("load sample failed", "error", err)
				continue
			}
			d.Observe(s)
		}
	}
}

// Observe feeds one load sample and re-evaluates the bound when due. It
// returns the change applied to the bound.
func (d *MemoryAdaptive) Observe(s Sample) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.memory = pushWindow(d.memory, s.MemoryPercent)
	d.cpu = pushWindow(d.cpu, s.CPUPercent)

	now := d.now()
	if !d.lastEval.IsZero() && now.Sub(d.lastEval) < adjustInterval {
		return 0
	}
	d.lastEval = now

	next := d.current
	switch {
	case s.MemoryPercent > d.cfg.MemoryThreshold || s.CPUPercent > d.cfg.CPUThreshold:
		next = min(int(math.Floor(float64(d.current)*decreaseFactor)), d.current-1)
		next = max(next, d.cfg.Min)
	case d.canGrowLocked():
		next = max(int(math.Ceil(float64(d.current)*increaseFactor)), d.current+1)
		next = min(next, d.cfg.Max)
	}

	delta := next - d.current
	d.deltas = append(d.deltas, delta)
	if len(d.deltas) > historySize {
		d.deltas = d.deltas[len(d.deltas)-historySize:]
	}

	if delta != 0 {
		d.adjustments++
		d.logger.Info("dispatcher concurrency adjusted",
			"from", d.current,
			"to", next,
			"memory_percent", s.MemoryPercent,
			"cpu_percent", s.CPUPercent,
		)
		d.current = next
		d.wakeLocked()
	}
	return delta
}

func (d *MemoryAdaptive) canGrowLocked() bool {
	for _, delta := range d.deltas {
		if delta < 0 {
			return false
		}
	}
	return mean(d.memory) < headroom*d.cfg.MemoryThreshold &&
		mean(d.cpu) < headroom*d.cfg.CPUThreshold
}

// Stats returns the bound, recent load and task counters.
func (d *MemoryAdaptive) Stats() model.DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := model.DispatcherStats{
		Kind:            string(KindMemoryAdaptive),
		Concurrency:     d.current,
		MinConcurrency:  d.cfg.Min,
		MaxConcurrency:  d.cfg.Max,
		Adjustments:     d.adjustments,
		TasksDispatched: d.dispatched.Load(),
		TasksFailed:     d.failed.Load(),
	}
	if n := len(d.memory); n > 0 {
		s.LastMemory = d.memory[n-1]
		s.LastCPU = d.cpu[n-1]
	}
	return s
}

func pushWindow(window []float64, v float64) []float64 {
	window = append(window, v)
	if len(window) > historySize {
		window = window[len(window)-historySize:]
	}
	return window
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
