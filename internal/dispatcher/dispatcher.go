package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Kind names a dispatcher implementation.
type Kind string

const (
	// KindSemaphore is a fixed concurrency bound.
	KindSemaphore Kind = "semaphore"

	// KindMemoryAdaptive follows system memory and CPU load.
	KindMemoryAdaptive Kind = "memory_adaptive"
)

const (
	// DefaultMaxConcurrent is the default concurrency bound.
	DefaultMaxConcurrent = 10

	// DefaultMinConcurrent is the default floor of the adaptive bound.
	DefaultMinConcurrent = 1

	// DefaultMemoryThreshold is the memory usage percentage above which the
	// adaptive bound shrinks.
	DefaultMemoryThreshold = 85.0

	// DefaultCPUThreshold is the CPU usage percentage above which the
	// adaptive bound shrinks.
	DefaultCPUThreshold = 90.0

	// DefaultMonitorInterval is how often system load is sampled.
	DefaultMonitorInterval = time.Second
)

// Task is one unit of work. It must honor ctx.
type Task func(ctx context.Context) error

// Result is the outcome of one Task.
type Result struct {
	// Err is the task error, a wrapped ErrTaskPanic, or the context error
	// for tasks that were never started because ctx ended.
	Err error

	// Duration is how long the task ran. Zero for tasks never started.
	Duration time.Duration
}

// Dispatcher runs tasks under a concurrency bound.
//
// Dispatch runs every task at most once and returns one Result per task in
// task order. A failing or panicking task never affects the others. Once
// ctx is done no further tasks are started; in-flight tasks are awaited.
type Dispatcher interface {
	Dispatch(ctx context.Context, tasks []Task) []Result
	Stats() model.DispatcherStats
}

// Config selects and parameterizes a Dispatcher.
type Config struct {
	Kind          Kind
	MaxConcurrent int
	MinConcurrent int

	// InitialConcurrent is the starting bound of the adaptive dispatcher.
	// Zero starts halfway between MinConcurrent and MaxConcurrent.
	InitialConcurrent int

	MemoryThreshold float64
	CPUThreshold    float64
	MonitorInterval time.Duration
}

// DefaultConfig returns a semaphore config with default bounds.
func DefaultConfig() Config {
	return Config{
		Kind:            KindSemaphore,
		MaxConcurrent:   DefaultMaxConcurrent,
		MinConcurrent:   DefaultMinConcurrent,
		MemoryThreshold: DefaultMemoryThreshold,
		CPUThreshold:    DefaultCPUThreshold,
		MonitorInterval: DefaultMonitorInterval,
	}
}

// Option configures a Dispatcher built by New.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	sampler Sampler
	now     func() time.Time
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSampler replaces the system load sampler of the adaptive dispatcher.
func WithSampler(s Sampler) Option {
	return func(o *options) {
		if s != nil {
			o.sampler = s
		}
	}
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
	o := options{logger: slog.Default(), sampler: SystemSampler{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates the Dispatcher selected by cfg.Kind. The adaptive dispatcher
// starts at InitialConcurrent; call its Monitor method to let it adapt.
func New(cfg Config, opts ...Option) (Dispatcher, error) {
	switch cfg.Kind {
	case KindSemaphore, "":
		return NewSemaphore(cfg.MaxConcurrent)
	case KindMemoryAdaptive:
		return NewMemoryAdaptive(AdaptiveConfig{
			Initial:         cfg.initial(),
			Min:             cfg.MinConcurrent,
			Max:             cfg.MaxConcurrent,
			MemoryThreshold: cfg.MemoryThreshold,
			CPUThreshold:    cfg.CPUThreshold,
			MonitorInterval: cfg.MonitorInterval,
		}, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// initial returns the adaptive starting bound.
func (c Config) initial() int {
	if c.InitialConcurrent > 0 {
		return c.InitialConcurrent
	}
	return c.MinConcurrent + (c.MaxConcurrent-c.MinConcurrent)/2
}

// counters tracks task totals.
type counters struct {
	dispatched atomic.Int64
	failed     atomic.Int64
}

// run executes task, converting a panic into an error.
func (c *counters) run(ctx context.Context, task Task) (res Result) {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	c.dispatched.Add(1)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			c.failed.Add(1)
		}
	}()

	res.Err = task(ctx)
	return res
}

// fillCancelled sets err on every result from index i on.
func fillCancelled(results []Result, i int, err error) {
	for ; i < len(results); i++ {
		results[i] = Result{Err: err}
	}
}
