package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deepcrawl/internal/model"
)

const (
	// DefaultMaxFailures is how many consecutive failures mark a proxy unhealthy.
	DefaultMaxFailures = 3

	// DefaultHealthCheckInterval is the period of the background health loop.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultRequestTimeout is the timeout of clients returned by HTTPClient.
	DefaultRequestTimeout = 30 * time.Second

	// latencyDecay is the weight kept by the previous average latency when a
	// new sample arrives.
	latencyDecay = 0.8

	// maxParallelProbes bounds concurrent health probes.
	maxParallelProbes = 8
)

// record is the mutable health record of one proxy.
type record struct {
	total               int64
	success             int64
	consecutiveFailures int
	avgLatency          time.Duration
	healthy             bool
	unhealthySince      time.Time
}

func (r *record) snapshot(addr string) model.ProxyStats {
	return model.ProxyStats{
		Address:             addr,
		Total:               r.total,
		Success:             r.success,
		ConsecutiveFailures: r.consecutiveFailures,
		AvgLatency:          r.avgLatency,
		Healthy:             r.healthy,
		UnhealthySince:      r.unhealthySince,
	}
}

// Manager tracks a pool of egress proxies and picks one per request.
//
// Health records change only through RecordUsage, which is called for real
// requests by the crawler and for synthetic requests by the health loop.
// A Manager is safe for concurrent use and is meant to be shared by every
// crawl run in the process.
type Manager struct {
	mu      sync.RWMutex
	pool    []Config
	records map[string]*record
	clients map[string]*http.Client

	strategy       RotationStrategy
	maxFailures    int
	healthInterval time.Duration
	requestTimeout time.Duration
	prober         Prober
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStrategy sets the rotation strategy. Defaults to round robin.
func WithStrategy(s RotationStrategy) Option {
	return func(m *Manager) {
		if s != nil {
			m.strategy = s
		}
	}
}

// WithMaxFailures sets how many consecutive failures mark a proxy unhealthy.
func WithMaxFailures(n int) Option {
	return func(m *Manager) {
		m.maxFailures = n
	}
}

// WithHealthCheckInterval sets the period of the health loop.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.healthInterval = d
		}
	}
}

// WithRequestTimeout sets the timeout of clients returned by HTTPClient.
func WithRequestTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.requestTimeout = d
		}
	}
}

// WithProber sets the health probe. Defaults to NewAutoProber("", 0).
func WithProber(p Prober) Option {
	return func(m *Manager) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager for pool. The pool may be empty, in which
// case SelectProxy always reports false and requests go out directly.
func NewManager(pool []Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		records:        make(map[string]*record),
		clients:        make(map[string]*http.Client),
		strategy:       NewRoundRobin(),
		maxFailures:    DefaultMaxFailures,
		healthInterval: DefaultHealthCheckInterval,
		requestTimeout: DefaultRequestTimeout,
		prober:         NewAutoProber("", 0),
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxFailures <= 0 {
		return nil, ErrInvalidMaxFailures
	}
	if f, ok := m.strategy.(*Failover); ok {
		f.now = m.now
	}

	for _, p := range pool {
		if err := m.Add(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends p to the pool as a healthy proxy.
func (m *Manager) Add(p Config) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	addr := p.Address()
	if _, exists := m.records[addr]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProxy, addr)
	}
	m.pool = append(m.pool, p)
	m.records[addr] = &record{healthy: true}
	return nil
}

// Len returns the pool size.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pool)
}

// Strategy returns the rotation strategy name.
func (m *Manager) Strategy() string {
	return m.strategy.Name()
}

// SelectProxy picks the proxy for the next request. It returns false when
// the pool is empty.
func (m *Manager) SelectProxy() (Config, bool) {
	m.mu.RLock()
	if len(m.pool) == 0 {
		m.mu.RUnlock()
		return Config{}, false
	}
	pool := make([]Config, len(m.pool))
	copy(pool, m.pool)
	stats := make(map[string]model.ProxyStats, len(m.records))
	for addr, r := range m.records {
		stats[addr] = r.snapshot(addr)
	}
	m.mu.RUnlock()

	return m.strategy.Select(pool, stats)
}

// RecordUsage updates the health record of the proxy at addr.
//
// Every call increments the request count. A success resets the
// consecutive failure count, folds latency into the decayed average and
// marks the proxy healthy again. A failure increments the consecutive
// failure count and marks the proxy unhealthy once it reaches the
// configured maximum. Unknown addresses are ignored.
func (m *Manager) RecordUsage(addr string, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[addr]
	if !ok {
		return
	}

	r.total++
	if success {
		r.success++
		r.consecutiveFailures = 0
		if latency > 0 {
			if r.avgLatency == 0 {
				r.avgLatency = latency
			} else {
				r.avgLatency = time.Duration(latencyDecay*float64(r.avgLatency) + (1-latencyDecay)*float64(latency))
			}
		}
		if !r.healthy {
			r.healthy = true
			r.unhealthySince = time.Time{}
			m.logger.Info("proxy recovered", "proxy", addr)
		}
		return
	}

	r.consecutiveFailures++
	if r.healthy && r.consecutiveFailures >= m.maxFailures {
		r.healthy = false
		r.unhealthySince = m.now()
		m.logger.Warn("proxy marked unhealthy", "proxy", addr, "consecutive_failures", r.consecutiveFailures)
	}
}

// Stats returns the health records in pool order.
func (m *Manager) Stats() []model.ProxyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]model.ProxyStats, 0, len(m.pool))
	for _, p := range m.pool {
		addr := p.Address()
		stats = append(stats, m.records[addr].snapshot(addr))
	}
	return stats
}

// HTTPClient returns a cached client whose requests go through p.
func (m *Manager) HTTPClient(p Config) (*http.Client, error) {
	addr := p.Address()

	m.mu.RLock()
	client, ok := m.clients[addr]
	m.mu.RUnlock()
	if ok {
		return client, nil
	}

	client, err := NewClient(p, m.requestTimeout)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.clients[addr]; ok {
		return existing, nil
	}
	m.clients[addr] = client
	return client, nil
}

// CheckAll probes every proxy once and records the outcomes.
func (m *Manager) CheckAll(ctx context.Context) {
	m.mu.RLock()
	pool := make([]Config, len(m.pool))
	copy(pool, m.pool)
	m.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(maxParallelProbes)
	for _, p := range pool {
		g.Go(func() error {
			start := m.now()
			err := m.prober.Probe(ctx, p)
			latency := m.now().Sub(start)
			if err != nil {
				m.logger.Debug("proxy probe failed", "proxy", p.Address(), "error", err)
			}
			m.RecordUsage(p.Address(), err == nil, latency)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // probe goroutines never return errors
}

// RunHealthChecks probes the pool every health check interval until ctx is
// done. It returns immediately for an empty pool.
func (m *Manager) RunHealthChecks(ctx context.Context) {
	if m.Len() == 0 {
		return
	}

	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// Close releases idle connections held by cached clients.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		c.CloseIdleConnections()
	}
}
