package dispatcher

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/deepcrawl/internal/model"
)

// Semaphore runs tasks under a fixed concurrency bound. The bound is shared
// by concurrent Dispatch calls, so one Semaphore limits the whole process.
type Semaphore struct {
	sem   *semaphore.Weighted
	limit int
	counters
}

// NewSemaphore creates a Semaphore allowing limit tasks at once.
func NewSemaphore(limit int) (*Semaphore, error) {
	if limit < 1 {
		return nil, ErrInvalidConcurrency
	}
	return &Semaphore{sem: semaphore.NewWeighted(int64(limit)), limit: limit}, nil
}

// Dispatch runs tasks and returns their results in task order.
func (s *Semaphore) Dispatch(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			fillCancelled(results, i, err)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sem.Release(1)
			results[i] = s.run(ctx, task)
		}()
	}
	wg.Wait()

	return results
}

// Stats returns the bound and task counters.
func (s *Semaphore) Stats() model.DispatcherStats {
	return model.DispatcherStats{
		Kind:            string(KindSemaphore),
		Concurrency:     s.limit,
		MinConcurrency:  s.limit,
		MaxConcurrency:  s.limit,
		TasksDispatched: s.dispatched.Load(),
		TasksFailed:     s.failed.Load(),
	}
}
