package model

import (
	"sort"
	"time"
)

// RunState is the lifecycle state of one crawl run.
type RunState string

const (
	// RunStateIdle is a run that has not started traversing.
	RunStateIdle RunState = "idle"

	// RunStateTraversing is a run whose traversal loop is active.
	RunStateTraversing RunState = "traversing"

	// RunStateCompleted is a run that stopped because the frontier emptied
	// or a depth/page budget was reached.
	RunStateCompleted RunState = "completed"

	// RunStateAborted is a run stopped by cancellation. Its results are partial
	// but valid.
	RunStateAborted RunState = "aborted"
)

// CrawlRun is one invocation of a strategy against a starting URL.
type CrawlRun struct {
	// ID is the database identifier. Zero until the run is persisted.
	ID int64 `json:"id,omitempty"`

	// Strategy is the traversal strategy name (bfs, dfs, best-first).
	Strategy string `json:"strategy"`

	// StartURL is the normalized starting URL.
	StartURL string `json:"start_url"`

	// State is the final lifecycle state.
	State RunState `json:"state"`

	// StartedAt and FinishedAt bound the traversal.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Results are in visit order for the strategy.
	Results []*CrawlResult `json:"results"`

	// Stats summarizes the run.
	Stats RunStats `json:"stats"`
}

// Duration returns the wall-clock length of the run.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunStats holds observability counters for a crawl run.
type RunStats struct {
	PagesCrawled int     `json:"pages_crawled"`
	PagesFailed  int     `json:"pages_failed"`
	SuccessRate  float64 `json:"success_rate"`

	// DepthDistribution maps depth to the number of results at that depth.
	DepthDistribution map[int]int `json:"depth_distribution"`

	// MaxFrontier is the largest the frontier (level, stack or queue) grew.
	MaxFrontier int `json:"max_frontier"`

	// ScoreInversions counts best-first visits whose score was higher than
	// the score of the page visited just before it.
	ScoreInversions int `json:"score_inversions,omitempty"`

	// Categories is the number of distinct content categories visited
	// (best-first only).
	Categories int `json:"categories,omitempty"`

	Limiter    *LimiterStats    `json:"limiter,omitempty"`
	Dispatcher *DispatcherStats `json:"dispatcher,omitempty"`
	Proxies    []ProxyStats     `json:"proxies,omitempty"`
}

// Depths returns the depths present in the distribution, ascending.
func (s RunStats) Depths() []int {
	depths := make([]int, 0, len(s.DepthDistribution))
	for d := range s.DepthDistribution {
		depths = append(depths, d)
	}
	sort.Ints(depths)
	return depths
}

// LimiterStats is a snapshot of a rate limiter's counters.
type LimiterStats struct {
	Policy      string  `json:"policy"`
	Total       int64   `json:"total"`
	Denied      int64   `json:"denied"`
	SuccessRate float64 `json:"success_rate"`
	CurrentRate float64 `json:"current_rate"`
	Adjustments int     `json:"adjustments,omitempty"`
}

// DispatcherStats is a snapshot of a dispatcher's state.
type DispatcherStats struct {
	Kind            string  `json:"kind"`
	Concurrency     int     `json:"concurrency"`
	MinConcurrency  int     `json:"min_concurrency"`
	MaxConcurrency  int     `json:"max_concurrency"`
	Adjustments     int     `json:"adjustments"`
	LastMemory      float64 `json:"last_memory_percent,omitempty"`
	LastCPU         float64 `json:"last_cpu_percent,omitempty"`
	TasksDispatched int64   `json:"tasks_dispatched"`
	TasksFailed     int64   `json:"tasks_failed"`
}

// ProxyStats is a snapshot of one proxy's health record.
type ProxyStats struct {
	Address             string        `json:"address"`
	Total               int64         `json:"total"`
	Success             int64         `json:"success"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgLatency          time.Duration `json:"avg_latency"`
	Healthy             bool          `json:"healthy"`

	// UnhealthySince is when the proxy was last marked unhealthy.
	// Zero while healthy.
	UnhealthySince time.Time `json:"unhealthy_since,omitzero"`
}

// SuccessRate returns Success/Total, or 1 when the proxy has not been used.
func (p ProxyStats) SuccessRate() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Success) / float64(p.Total)
}
