package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/deepcrawl/internal/dispatcher"
	"github.com/nao1215/deepcrawl/internal/filter"
	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/proxy"
	"github.com/nao1215/deepcrawl/internal/ratelimit"
	"github.com/nao1215/deepcrawl/internal/scorer"
)

// ProxyRotator chooses egress proxies and learns from their outcomes.
// *proxy.Manager implements it.
type ProxyRotator interface {
	SelectProxy() (proxy.Config, bool)
	RecordUsage(addr string, success bool, latency time.Duration)
	Stats() []model.ProxyStats
}

// Option configures a strategy.
type Option func(*engine)

// WithFetcher sets the fetch backend. The default is an HTTPFetcher that
// takes proxied clients from the proxy rotator when it can provide them.
func WithFetcher(f Fetcher) Option {
	return func(e *engine) {
		e.fetcher = f
	}
}

// WithRateLimiter gates every fetch on l. A limiter is usually shared by
// all runs in the process.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(e *engine) {
		e.limiter = l
	}
}

// WithProxyRotator routes fetches through proxies chosen by r.
func WithProxyRotator(r ProxyRotator) Option {
	return func(e *engine) {
		e.proxies = r
	}
}

// WithDispatcher runs fetches on d. Without one, each strategy uses a
// semaphore sized to Config.MaxConcurrent.
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *engine) {
		e.dispatcher = d
	}
}

// WithFilter adds f to the filters derived from Config. Both must accept a
// link for it to enter the frontier.
func WithFilter(f filter.Filter) Option {
	return func(e *engine) {
		e.extra = f
	}
}

// WithScorer sets the scorer used by best-first traversal.
func WithScorer(s scorer.Scorer) Option {
	return func(e *engine) {
		e.scorer = s
	}
}

// WithTuning sets the best-first boost parameters.
func WithTuning(t Tuning) Option {
	return func(e *engine) {
		e.tuning = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// engine holds what every strategy shares: collaborators, the per-URL fetch
// operation and link admission.
type engine struct {
	cfg        Config
	name       StrategyName
	fetcher    Fetcher
	limiter    ratelimit.Limiter
	proxies    ProxyRotator
	dispatcher dispatcher.Dispatcher
	extra      filter.Filter
	scorer     scorer.Scorer
	tuning     Tuning
	logger     *slog.Logger
	base       []filter.Filter
}

func newEngine(name StrategyName, cfg Config, opts []Option) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := cfg.filters()
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:    cfg,
		name:   name,
		tuning: DefaultTuning(),
		logger: slog.Default(),
		base:   base,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.fetcher == nil {
		var fopts []HTTPFetcherOption
		if cp, ok := e.proxies.(ClientProvider); ok {
			fopts = append(fopts, WithClientProvider(cp))
		}
		e.fetcher = NewHTTPFetcher(fopts...)
	}
	if e.dispatcher == nil {
		d, err := dispatcher.NewSemaphore(cfg.MaxConcurrent)
		if err != nil {
			return nil, err
		}
		e.dispatcher = d
	}
	return e, nil
}

// item is one frontier entry.
type item struct {
	url    string
	depth  int
	parent string
	score  float64
}

// run is the state of one Crawl call.
type run struct {
	out         *model.CrawlRun
	filter      *filter.Chain
	visited     map[string]struct{}
	slots       *semaphore.Weighted
	pacer       pacer
	maxFrontier int

	// best-first only
	categories map[string]struct{}
	inversions int
}

// start validates startURL and creates the run state. The start URL is
// marked visited and is never filtered.
func (e *engine) start(startURL string) (*run, item, error) {
	norm, err := NormalizeURL(startURL)
	if err != nil {
		return nil, item{}, err
	}

	filters := append([]filter.Filter{}, e.base...)
	if len(e.cfg.AllowedDomains) == 0 {
		sameHost, err := filter.NewDomainFilter([]string{hostOf(norm)}, nil)
		if err != nil {
			return nil, item{}, fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
		}
		filters = append(filters, sameHost)
	}
	filters = append(filters, e.extra)

	r := &run{
		out: &model.CrawlRun{
			Strategy:  string(e.name),
			StartURL:  norm,
			State:     model.RunStateTraversing,
			StartedAt: time.Now(),
			Results:   make([]*model.CrawlResult, 0),
		},
		filter:     filter.NewChain(filters...),
		visited:    map[string]struct{}{norm: {}},
		slots:      semaphore.NewWeighted(int64(e.cfg.MaxConcurrent)),
		pacer:      pacer{delay: e.cfg.DelayBetweenRequests},
		categories: make(map[string]struct{}),
	}

	e.logger.Info("crawl started",
		"strategy", e.name,
		"url", norm,
		"max_depth", e.cfg.MaxDepth,
		"max_pages", e.cfg.MaxPages,
	)
	return r, item{url: norm}, nil
}

// finish seals the run. A cancelled run is aborted and returns ctx.Err()
// alongside its partial results.
func (e *engine) finish(ctx context.Context, r *run) (*model.CrawlRun, error) {
	r.out.FinishedAt = time.Now()
	r.out.State = model.RunStateCompleted
	err := ctx.Err()
	if err != nil {
		r.out.State = model.RunStateAborted
	}
	r.out.Stats = e.stats(r)

	e.logger.Info("crawl finished",
		"strategy", e.name,
		"url", r.out.StartURL,
		"state", r.out.State,
		"pages", len(r.out.Results),
		"failed", r.out.Stats.PagesFailed,
		"duration", r.out.Duration(),
	)
	return r.out, err
}

// remaining returns how many more fetches the page budget allows.
func (e *engine) remaining(r *run) int {
	return e.cfg.MaxPages - len(r.out.Results)
}

func (r *run) trackFrontier(n int) {
	if n > r.maxFrontier {
		r.maxFrontier = n
	}
}

// admit normalizes link, checks it against the visited set and the filter
// chain, and marks it visited when accepted.
func (e *engine) admit(ctx context.Context, r *run, link, parent string, depth int) (string, bool) {
	norm, err := NormalizeURL(link)
	if err != nil {
		return "", false
	}
	if _, seen := r.visited[norm]; seen {
		return "", false
	}

	fctx := filter.Context{Depth: depth, ParentURL: parent}
	if !r.filter.ShouldCrawl(norm, fctx) {
		if e.logger.Enabled(ctx, slog.LevelDebug) {
			e.logger.Debug("link filtered", "url", norm, "filter", r.filter.Rejecting(norm, fctx))
		}
		return "", false
	}

	r.visited[norm] = struct{}{}
	return norm, true
}

// fetchAll fetches items through the dispatcher. The returned slice is in
// item order; entries for items never attempted because ctx ended are nil.
func (e *engine) fetchAll(ctx context.Context, r *run, items []item) []*model.CrawlResult {
	out := make([]*model.CrawlResult, len(items))
	tasks := make([]dispatcher.Task, len(items))
	for i, it := range items {
		tasks[i] = func(ctx context.Context) error {
			res, err := e.fetchOne(ctx, r, it)
			out[i] = res
			return err
		}
	}

	for i, res := range e.dispatcher.Dispatch(ctx, tasks) {
		if out[i] == nil && errors.Is(res.Err, dispatcher.ErrTaskPanic) {
			out[i] = newResult(items[i], time.Now())
			out[i].Error = res.Err.Error()
			out[i].Duration = res.Duration
		}
	}
	return out
}

// fetchOne is the per-URL operation: run slot, request pacing, rate
// limiter, proxy selection, fetch and outcome feedback. It returns a nil
// result when ctx ends before the request is sent.
func (e *engine) fetchOne(ctx context.Context, r *run, it item) (*model.CrawlResult, error) {
	started := time.Now()

	if err := r.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.slots.Release(1)

	if err := r.pacer.wait(ctx); err != nil {
		return nil, err
	}

	res := newResult(it, started)
	if e.limiter != nil {
		if err := e.limiter.WaitForTokens(ctx, 1); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			res.Error = err.Error()
			res.Duration = time.Since(started)
			return res, nil
		}
	}

	req := FetchRequest{URL: it.url}
	if e.proxies != nil {
		if p, ok := e.proxies.SelectProxy(); ok {
			req.Proxy = &p
			res.Proxy = p.Address()
		}
	}

	res.CrawlTime = time.Now()
	resp := e.fetcher.Fetch(ctx, req)
	latency := time.Since(res.CrawlTime)

	if ctx.Err() == nil {
		if req.Proxy != nil {
			e.proxies.RecordUsage(req.Proxy.Address(), !resp.TransportFailure(), latency)
		}
		if e.limiter != nil {
			e.limiter.RecordOutcome(resp.Success)
		}
	}

	res.Success = resp.Success
	res.StatusCode = resp.StatusCode
	res.Title = resp.Title
	res.Content = model.TruncateContent(resp.Content)
	res.Links = resp.Links
	switch {
	case resp.Err != nil:
		res.Error = resp.Err.Error()
	case !resp.Success:
		res.Error = "fetch failed"
	}
	res.Duration = time.Since(started)

	e.logger.Debug("page fetched",
		"url", it.url,
		"depth", it.depth,
		"status", res.StatusCode,
		"success", res.Success,
		"links", len(res.Links),
		"duration", res.Duration,
	)
	return res, nil
}

func newResult(it item, at time.Time) *model.CrawlResult {
	return &model.CrawlResult{
		URL:       it.url,
		Depth:     it.depth,
		ParentURL: it.parent,
		Score:     it.score,
		CrawlTime: at,
	}
}

// stats summarizes the run and snapshots the shared collaborators.
func (e *engine) stats(r *run) model.RunStats {
	s := model.RunStats{
		DepthDistribution: make(map[int]int),
		MaxFrontier:       r.maxFrontier,
		ScoreInversions:   r.inversions,
	}
	if e.name == StrategyBestFirst {
		s.Categories = len(r.categories)
	}

	for _, res := range r.out.Results {
		s.DepthDistribution[res.Depth]++
		if res.Success {
			s.PagesCrawled++
		} else {
			s.PagesFailed++
		}
	}
	if total := s.PagesCrawled + s.PagesFailed; total > 0 {
		s.SuccessRate = float64(s.PagesCrawled) / float64(total)
	}

	if e.limiter != nil {
		ls := e.limiter.Stats()
		s.Limiter = &ls
	}
	ds := e.dispatcher.Stats()
	s.Dispatcher = &ds
	if e.proxies != nil {
		s.Proxies = e.proxies.Stats()
	}
	return s
}

// pacer spaces request starts of one run by a fixed delay. Each caller
// reserves the next start time, so concurrent callers queue up in order.
type pacer struct {
	mu    sync.Mutex
	delay time.Duration
	next  time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.delay)
	p.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
