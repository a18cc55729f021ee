package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deepcrawl/internal/crawler"
	"github.com/nao1215/deepcrawl/internal/model"
)

// DefaultConcurrency is the number of start URLs crawled at once.
const DefaultConcurrency = 4

// StrategyFactory returns the strategy that crawls startURL. It is called
// once per start URL, so per-site configuration can be applied here.
type StrategyFactory func(startURL string) (crawler.Strategy, error)

// Outcome is the result of crawling one start URL.
type Outcome struct {
	// StartURL is the URL as given to Run.
	StartURL string

	// Run is the crawl run. It is nil when the strategy could not be
	// created or the URL was invalid, and partial when Err is a context error.
	Run *model.CrawlRun

	// Err is the factory, start URL or cancellation error.
	Err error
}

// Runner crawls start URLs concurrently with a bounded number of runs.
type Runner struct {
	factory     StrategyFactory
	concurrency int
	logger      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(factory StrategyFactory, opts ...Option) *Runner {
	r := &Runner{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run crawls every start URL and returns one Outcome per URL in input
// order. A failing run never stops the others. Once ctx is done no further
// runs start; their outcomes carry the context error.
func (r *Runner) Run(ctx context.Context, startURLs []string) []Outcome {
	outcomes := make([]Outcome, len(startURLs))
	_ = r.RunWithCallback(ctx, startURLs, func(o Outcome, i int) { //nolint:errcheck // errors are in outcomes
		outcomes[i] = o
	})
	return outcomes
}

// RunWithCallback crawls every start URL and calls callback with each
// outcome and its index as soon as the run ends. callback is called from
// several goroutines. The returned error is ctx.Err().
func (r *Runner) RunWithCallback(ctx context.Context, startURLs []string, callback func(o Outcome, index int)) error {
	r.logger.Info("starting batch crawl",
		"total", len(startURLs),
		"concurrency", r.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, startURL := range startURLs {
		g.Go(func() error {
			callback(r.crawl(ctx, startURL, i, len(startURLs)), i)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never fail

	r.logger.Info("batch crawl complete",
		"total", len(startURLs),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}

func (r *Runner) crawl(ctx context.Context, startURL string, index, total int) Outcome {
	out := Outcome{StartURL: startURL}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	r.logger.Info("crawling start URL",
		"url", startURL,
		"index", index+1,
		"total", total,
	)

	strategy, err := r.factory(startURL)
	if err != nil {
		r.logger.Warn("cannot create strategy", "url", startURL, "error", err)
		out.Err = err
		return out
	}

	out.Run, out.Err = strategy.Crawl(ctx, startURL)
	if out.Err != nil {
		r.logger.Warn("crawl ended early", "url", startURL, "error", out.Err)
	}
	return out
}
