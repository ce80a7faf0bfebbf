package queue

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/scorebridge/pkg/metrics"
)

// Sharded spreads jobs over per-consumer queues by key. Jobs for the same key
// always land on the same shard, so one consumer per shard sees them in
// enqueue order.
type Sharded struct {
	shards   []*InMemoryQueue
	capacity int
}

// NewSharded creates n shards sharing the capacity set with WithCapacity.
func NewSharded(n int, opts ...Option) *Sharded {
	if n < 1 {
		n = 1
	}
	cfg := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(cfg)
	}
	per := (cfg.capacity + n - 1) / n

	s := &Sharded{
		shards:   make([]*InMemoryQueue, n),
		capacity: per * n,
	}
	for i := range s.shards {
		s.shards[i] = newShard(per, s.report)
	}

	metrics.UpdateQueueCapacity(s.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return s
}

// Shards returns the number of shards.
func (s *Sharded) Shards() int { return len(s.shards) }

// Shard returns shard i for its consumer.
func (s *Sharded) Shard(i int) *InMemoryQueue { return s.shards[i] }

// ShardFor returns the index of the shard that owns key.
func (s *Sharded) ShardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(s.shards)))
}

// Enqueue adds j to the shard owning its key.
func (s *Sharded) Enqueue(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam
	return s.shards[s.ShardFor(string(j.Key))].Enqueue(ctx, j)
}

// Len returns the number of pending jobs over all shards.
func (s *Sharded) Len(_ context.Context) int {
	n := 0
	for _, q := range s.shards {
		n += len(q.jobs)
	}
	return n
}

// Close closes every shard. Pending jobs are still delivered.
func (s *Sharded) Close() error {
	for _, q := range s.shards {
		if err := q.Close(); err != nil {
			return err
		}
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Sharded) IsClosed() bool { return s.shards[0].IsClosed() }

func (s *Sharded) report() {
	size := s.Len(context.Background())
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(s.capacity))
}
