package app

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/errgroup"
)

// partition assigns every user to a fixed worker so a user's state never moves between
// goroutines within or across ticks.
func partition(userIDs []string, workers int) [][]string {
	buckets := make([][]string, workers)
	for _, id := range userIDs {
		i := workerFor(id, workers)
		buckets[i] = append(buckets[i], id)
	}
	return buckets
}

func workerFor(userID string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(workers))
}

// pollAll polls userIDs, sequentially or across the configured workers, and returns once
// every user has been handled.
func (p *Poller) pollAll(ctx context.Context, userIDs []string, tickMs int64) {
	if p.cfg.Workers <= 1 || len(userIDs) <= 1 {
		for _, id := range userIDs {
			p.pollUser(ctx, id, tickMs)
		}
		return
	}

	var g errgroup.Group
	for _, bucket := range partition(userIDs, p.cfg.Workers) {
		if len(bucket) == 0 {
			continue
		}
		g.Go(func() error {
			for _, id := range bucket {
				p.pollUser(ctx, id, tickMs)
			}
			return nil
		})
	}
	_ = g.Wait()
}
