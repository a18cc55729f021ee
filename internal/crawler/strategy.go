package crawler

import (
	"context"
	"fmt"

	"github.com/nao1215/deepcrawl/internal/model"
)

// StrategyName names a traversal strategy.
type StrategyName string

const (
	// StrategyBFS visits pages level by level.
	StrategyBFS StrategyName = "bfs"

	// StrategyDFS follows each branch to max depth before backtracking.
	StrategyDFS StrategyName = "dfs"

	// StrategyBestFirst visits the highest scored URL first.
	StrategyBestFirst StrategyName = "best-first"
)

// StrategyNames lists the supported strategies.
func StrategyNames() []StrategyName {
	return []StrategyName{StrategyBFS, StrategyDFS, StrategyBestFirst}
}

// Strategy runs one traversal from a starting URL.
//
// Crawl returns the run even when ctx is cancelled; in that case the run is
// in RunStateAborted, its results are the fetches completed so far, and the
// returned error is ctx.Err(). A Strategy holds no per-run state and may be
// used for several runs, concurrently or one after another.
type Strategy interface {
	Crawl(ctx context.Context, startURL string) (*model.CrawlRun, error)
	Name() StrategyName
}

// New creates the named strategy.
func New(name StrategyName, cfg Config, opts ...Option) (Strategy, error) {
	switch name {
	case StrategyBFS:
		return NewBFS(cfg, opts...)
	case StrategyDFS:
		return NewDFS(cfg, opts...)
	case StrategyBestFirst:
		return NewBestFirst(cfg, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
