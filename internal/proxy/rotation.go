package proxy

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
)

// RotationStrategy picks the proxy for the next request.
//
// Select receives the pool in configuration order and a stats snapshot keyed
// by Config.Address. It returns false only for an empty pool.
// Implementations must be safe for concurrent use.
type RotationStrategy interface {
	Select(pool []Config, stats map[string]model.ProxyStats) (Config, bool)
	Name() string
}

// StrategyName identifies a built-in rotation strategy in configuration.
type StrategyName string

const (
	// StrategyRoundRobin cycles through healthy proxies.
	StrategyRoundRobin StrategyName = "round_robin"

	// StrategyWeighted samples proxies in proportion to their performance.
	StrategyWeighted StrategyName = "weighted"

	// StrategyFailover sticks to the first proxy while it is healthy.
	StrategyFailover StrategyName = "failover"
)

// DefaultFailoverCooldown is how long the failover strategy avoids an
// unhealthy primary before trying it again.
const DefaultFailoverCooldown = 5 * time.Minute

// NewStrategy returns the built-in strategy called name.
func NewStrategy(name StrategyName, cooldown time.Duration) (RotationStrategy, error) {
	switch name {
	case StrategyRoundRobin, "":
		return NewRoundRobin(), nil
	case StrategyWeighted:
		return NewWeighted(), nil
	case StrategyFailover:
		return NewFailover(cooldown), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// healthyOrAll returns the healthy proxies, or the whole pool if none is
// healthy. Proxies without stats count as healthy.
func healthyOrAll(pool []Config, stats map[string]model.ProxyStats) []Config {
	healthy := make([]Config, 0, len(pool))
	for _, p := range pool {
		if isHealthy(p, stats) {
			healthy = append(healthy, p)
		}
	}
	if len(healthy) == 0 {
		return pool
	}
	return healthy
}

func isHealthy(p Config, stats map[string]model.ProxyStats) bool {
	s, ok := stats[p.Address()]
	return !ok || s.Healthy
}

// RoundRobin cycles over the currently healthy proxies, falling back to the
// full pool when none is healthy.
type RoundRobin struct {
	mu   sync.Mutex
	next uint64
}

// NewRoundRobin creates a RoundRobin strategy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Select returns the next candidate in turn.
func (r *RoundRobin) Select(pool []Config, stats map[string]model.ProxyStats) (Config, bool) {
	if len(pool) == 0 {
		return Config{}, false
	}
	candidates := healthyOrAll(pool, stats)

	r.mu.Lock()
	i := r.next % uint64(len(candidates))
	r.next++
	r.mu.Unlock()

	return candidates[i], true
}

// Name returns "round_robin".
func (r *RoundRobin) Name() string {
	return string(StrategyRoundRobin)
}

// Weighted samples healthy proxies with probability proportional to
// 0.7*successRate + 0.3/avgLatencySeconds. Proxies without a latency sample
// are weighted by success rate alone.
type Weighted struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// WeightedOption configures a Weighted strategy.
type WeightedOption func(*Weighted)

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) WeightedOption {
	return func(w *Weighted) {
		w.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewWeighted creates a Weighted strategy.
func NewWeighted(opts ...WeightedOption) *Weighted {
	w := &Weighted{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Weight returns the sampling weight of a proxy with the given stats.
func Weight(s model.ProxyStats) float64 {
	secs := s.AvgLatency.Seconds()
	if secs <= 0 {
		return s.SuccessRate()
	}
	return 0.7*s.SuccessRate() + 0.3/secs
}

// Select samples one candidate.
func (w *Weighted) Select(pool []Config, stats map[string]model.ProxyStats) (Config, bool) {
	if len(pool) == 0 {
		return Config{}, false
	}
	candidates := healthyOrAll(pool, stats)

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, p := range candidates {
		s, ok := stats[p.Address()]
		if !ok {
			s = model.ProxyStats{Healthy: true}
		}
		weights[i] = Weight(s)
		total += weights[i]
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if total <= 0 {
		return candidates[w.rng.IntN(len(candidates))], true
	}
	target := w.rng.Float64() * total
	for i, weight := range weights {
		target -= weight
		if target < 0 {
			return candidates[i], true
		}
	}
	return candidates[len(candidates)-1], true
}

// Name returns "weighted".
func (w *Weighted) Name() string {
	return string(StrategyWeighted)
}

// Failover sends everything through the first proxy in the pool (the
// primary) while it is healthy. While the primary has been unhealthy for
// less than the cooldown the first healthy proxy after it is used instead;
// once the cooldown has passed the primary is tried again.
type Failover struct {
	cooldown time.Duration
	now      func() time.Time
}

// NewFailover creates a Failover strategy. A non-positive cooldown selects
// DefaultFailoverCooldown.
func NewFailover(cooldown time.Duration) *Failover {
	if cooldown <= 0 {
		cooldown = DefaultFailoverCooldown
	}
	return &Failover{cooldown: cooldown, now: time.Now}
}

// Select returns the primary or the first healthy fallback.
func (f *Failover) Select(pool []Config, stats map[string]model.ProxyStats) (Config, bool) {
	if len(pool) == 0 {
		return Config{}, false
	}

	primary := pool[0]
	if isHealthy(primary, stats) {
		return primary, true
	}
	if since := stats[primary.Address()].UnhealthySince; !since.IsZero() && f.now().Sub(since) >= f.cooldown {
		return primary, true
	}

	for _, p := range pool[1:] {
		if isHealthy(p, stats) {
			return p, true
		}
	}
	return primary, true
}

// Name returns "failover".
func (f *Failover) Name() string {
	return string(StrategyFailover)
}
