package crawler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/scorer"
)

const (
	// DefaultParentBoostThreshold is the parent score above which children
	// are boosted.
	DefaultParentBoostThreshold = 0.8

	// DefaultParentBoost multiplies the score of children of high scoring pages.
	DefaultParentBoost = 1.2

	// DefaultDiversityCategories is the number of distinct categories below
	// which the diversity boost applies.
	DefaultDiversityCategories = 3

	// DefaultDiversityBoost multiplies scores while few categories were visited.
	DefaultDiversityBoost = 1.1
)

// Tuning adjusts best-first scores after the scorer ran. Boosted scores
// are capped at 1.
type Tuning struct {
	ParentBoostThreshold float64
	ParentBoost          float64
	DiversityCategories  int
	DiversityBoost       float64
}

// DefaultTuning returns the default boosts.
func DefaultTuning() Tuning {
	return Tuning{
		ParentBoostThreshold: DefaultParentBoostThreshold,
		ParentBoost:          DefaultParentBoost,
		DiversityCategories:  DefaultDiversityCategories,
		DiversityBoost:       DefaultDiversityBoost,
	}
}

// BestFirst always visits the highest scored URL in the frontier next.
// Equal scores are visited in discovery order. Pages are fetched in
// batches of up to Config.MaxConcurrent, and the frontier is pruned to the
// best Config.MaxPages entries after each batch.
type BestFirst struct {
	e *engine
}

// NewBestFirst creates a best-first strategy. Without WithScorer, URLs are
// scored by path depth, preferring shallow pages.
func NewBestFirst(cfg Config, opts ...Option) (*BestFirst, error) {
	e, err := newEngine(StrategyBestFirst, cfg, opts)
	if err != nil {
		return nil, err
	}
	if e.scorer == nil {
		e.scorer = scorer.NewPathDepthScorer()
	}
	return &BestFirst{e: e}, nil
}

// Name returns "best-first".
func (b *BestFirst) Name() StrategyName {
	return StrategyBestFirst
}

// Crawl runs a best-first traversal from startURL.
func (b *BestFirst) Crawl(ctx context.Context, startURL string) (*model.CrawlRun, error) {
	e := b.e
	r, first, err := e.start(startURL)
	if err != nil {
		return nil, err
	}
	first.score = e.score(ctx, r, first.url, scorer.Context{}, 0)

	pq := &priorityQueue{}
	pq.add(first)
	lastScore := -1.0

	for pq.Len() > 0 && e.remaining(r) > 0 && ctx.Err() == nil {
		r.trackFrontier(pq.Len())

		n := min(e.cfg.MaxConcurrent, e.remaining(r), pq.Len())
		batch := make([]item, 0, n)
		for range n {
			batch = append(batch, pq.next())
		}

		for i, res := range e.fetchAll(ctx, r, batch) {
			if res == nil {
				continue
			}
			r.out.Results = append(r.out.Results, res)
			r.categories[category(res.URL)] = struct{}{}
			if lastScore >= 0 && res.Score > lastScore {
				r.inversions++
			}
			lastScore = res.Score

			if res.Success && res.Depth < e.cfg.MaxDepth {
				e.expand(ctx, r, pq, batch[i], res.Links)
			}
		}

		if dropped := pq.prune(e.cfg.MaxPages); dropped > 0 {
			e.logger.Debug("best-first frontier pruned", "dropped", dropped)
		}
	}

	return e.finish(ctx, r)
}

// expand scores the admitted links of parent and queues them.
func (e *engine) expand(ctx context.Context, r *run, pq *priorityQueue, parent item, links []string) {
	if observer, ok := e.scorer.(scorer.Observer); ok {
		for _, link := range links {
			if norm, err := NormalizeURL(link); err == nil {
				observer.Observe(norm, parent.url)
			}
		}
	}

	depth := parent.depth + 1
	for _, link := range links {
		norm, ok := e.admit(ctx, r, link, parent.url, depth)
		if !ok {
			continue
		}
		sctx := scorer.Context{Depth: depth, ParentURL: parent.url}
		pq.add(item{
			url:    norm,
			depth:  depth,
			parent: parent.url,
			score:  e.score(ctx, r, norm, sctx, parent.score),
		})
	}
}

// score runs the scorer and applies the tuning boosts. Scorer errors and
// panics yield scorer.Neutral.
func (e *engine) score(ctx context.Context, r *run, rawURL string, sctx scorer.Context, parentScore float64) float64 {
	s := e.rawScore(ctx, rawURL, sctx)

	t := e.tuning
	if parentScore > t.ParentBoostThreshold && t.ParentBoost > 0 {
		s *= t.ParentBoost
	}
	if len(r.categories) < t.DiversityCategories && t.DiversityBoost > 0 {
		s *= t.DiversityBoost
	}
	return scorer.Clamp(s)
}

func (e *engine) rawScore(ctx context.Context, rawURL string, sctx scorer.Context) (s float64) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("scorer panicked", "url", rawURL, "scorer", e.scorer.Name(), "panic", fmt.Sprint(rec))
			s = scorer.Neutral
		}
	}()

	v, err := e.scorer.Score(rawURL, sctx)
	if err != nil {
		if e.logger.Enabled(ctx, slog.LevelDebug) {
			e.logger.Debug("scoring failed", "url", rawURL, "scorer", e.scorer.Name(), "error", err)
		}
		return scorer.Neutral
	}
	return scorer.Clamp(v)
}

// priorityQueue is a max-heap on score; ties go to the earlier entry.
type priorityQueue struct {
	entries []pqEntry
	seq     uint64
}

type pqEntry struct {
	item
	seq uint64
}

func (q *priorityQueue) Len() int { return len(q.entries) }

func (q *priorityQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	if a.score != b.score {
		return a.score > b.score
	}
	return a.seq < b.seq
}

func (q *priorityQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

func (q *priorityQueue) Push(x any) { q.entries = append(q.entries, x.(pqEntry)) }

func (q *priorityQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	q.entries = old[:n-1]
	return e
}

func (q *priorityQueue) add(it item) {
	heap.Push(q, pqEntry{item: it, seq: q.seq})
	q.seq++
}

func (q *priorityQueue) next() item {
	return heap.Pop(q).(pqEntry).item
}

// prune keeps the best n entries and returns how many were dropped.
func (q *priorityQueue) prune(n int) int {
	if len(q.entries) <= n {
		return 0
	}
	sort.Sort(q)
	dropped := len(q.entries) - n
	q.entries = q.entries[:n]
	heap.Init(q)
	return dropped
}
