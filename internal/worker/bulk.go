package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"ingestengine/internal/domain/entity"
)

const defaultBulkConcurrency = 5

// BulkProcess fans urls out across a bounded group of size concurrency
// (spec §4.12), running each through a full single-URL cascade fetch, and
// returns only once every URL has terminated.
func (p *Pool) BulkProcess(ctx context.Context, urls []string, preferred []string, concurrency int) map[string]entity.FetchResult {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}

	results := make(map[string]entity.FetchResult, len(urls))
	var mu sync.Mutex

	sem := semaphore.NewWeighted(int64(concurrency))
	group, groupCtx := errgroup.WithContext(ctx)

	for _, rawURL := range urls {
		rawURL := rawURL
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			results[rawURL] = entity.Failure(rawURL, "cascade", err)
			mu.Unlock()
			continue
		}
		group.Go(func() error {
			defer sem.Release(1)
			result := p.engine.Fetch(groupCtx, rawURL, preferred)
			mu.Lock()
			results[rawURL] = result
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	return results
}
