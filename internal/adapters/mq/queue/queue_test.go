package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/scorebridge/internal/domain/model"
)

func job(key string) Job {
	return model.Write{Op: model.WriteSet, Key: model.Key(key), Entry: model.ScoreEntry{"score": 1}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, job("k1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Key != "k1" {
		t.Errorf("expected k1, got %v", got.Key)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.Enqueue(ctx, job("k1")) != nil || q.Enqueue(ctx, job("k2")) != nil {
		t.Fatal("expected enqueue to succeed")
	}
	if err := q.Enqueue(ctx, job("k3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, job("k1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_DequeueCancelFinishesJob(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	j := job("k1")
	j.Done = func(err error) { result <- err }
	if err := q.Enqueue(context.Background(), j); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	// Nobody reads the dequeue channel, so the pending job is handed back on cancel.
	_ = q.Dequeue(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the job to be finished on cancel")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const producers = 10
	const perProducer = 100

	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)
	for i := 0; i < 4; i++ {
		go func() {
			for range q.Dequeue(ctx) {
				consumed.Done()
			}
		}()
	}

	var produced sync.WaitGroup
	for i := 0; i < producers; i++ {
		produced.Add(1)
		go func(id int) {
			defer produced.Done()
			for j := 0; j < perProducer; j++ {
				for q.Enqueue(ctx, job(fmt.Sprintf("k%d_%d", id, j))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}
	produced.Wait()

	done := make(chan struct{})
	go func() { consumed.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for consumers")
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if q.Enqueue(ctx, job("k1")) != nil || q.Enqueue(ctx, job("k2")) != nil {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, job("k3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after closing, got %v", err)
	}

	// Pending jobs drain before the channel closes.
	var keys []model.Key
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case j, ok := <-ch:
			if !ok {
				if len(keys) != 2 {
					t.Errorf("expected 2 drained jobs, got %v", keys)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			keys = append(keys, j.Key)
		case <-timeout:
			t.Fatal("expected dequeue channel to close within timeout")
		}
	}
}

func TestSharded_SameKeySameShard(t *testing.T) {
	s := NewSharded(8, WithCapacity(80))
	ctx := context.Background()

	if got := s.Shards(); got != 8 {
		t.Fatalf("expected 8 shards, got %d", got)
	}
	want := s.ShardFor("player1")
	for i := 0; i < 5; i++ {
		if err := s.Enqueue(ctx, job("player1")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if got := s.Shard(want).Len(ctx); got != 5 {
		t.Errorf("expected all 5 jobs on shard %d, got %d", want, got)
	}
	if got := s.Len(ctx); got != 5 {
		t.Errorf("expected total length 5, got %d", got)
	}
}

func TestSharded_OrderWithinKey(t *testing.T) {
	s := NewSharded(4, WithCapacity(40))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ops := []model.WriteOp{model.WriteSet, model.WriteUpdate, model.WriteUpdate}
	for _, op := range ops {
		j := job("k1")
		j.Op = op
		if err := s.Enqueue(ctx, j); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	ch := s.Shard(s.ShardFor("k1")).Dequeue(ctx)
	for i, want := range ops {
		select {
		case got := <-ch:
			if got.Op != want {
				t.Fatalf("job %d: expected %s, got %s", i, want, got.Op)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
}

func TestSharded_Close(t *testing.T) {
	s := NewSharded(3, WithCapacity(3))
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !s.IsClosed() {
		t.Error("expected sharded queue to be closed")
	}
	for _, key := range []string{"a", "b", "c", "d"} {
		if err := s.Enqueue(ctx, job(key)); !errors.Is(err, ErrClosed) {
			t.Errorf("enqueue %q: expected ErrClosed, got %v", key, err)
		}
	}
}
