package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scorebridge/internal/adapters/repository"
	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/metrics"
)

const asyncWriteTimeout = 10 * time.Second

// asyncDispatcher runs every write on its own goroutine. It is the fallback
// when no worker pool is configured. Writes to one key are chained so they
// reach the collection in dispatch order.
type asyncDispatcher struct {
	collection repository.Collection

	mu    sync.Mutex
	tails map[model.Key]chan struct{}
}

func newAsyncDispatcher(c repository.Collection) *asyncDispatcher {
	return &asyncDispatcher{
		collection: c,
		tails:      make(map[model.Key]chan struct{}),
	}
}

func (d *asyncDispatcher) Dispatch(ctx context.Context, w model.Write) error { //nolint:gocritic // hugeParam
	// Writes outlive the session that submitted them.
	ctx = context.WithoutCancel(ctx)

	d.mu.Lock()
	prev := d.tails[w.Key]
	done := make(chan struct{})
	d.tails[w.Key] = done
	d.mu.Unlock()

	go func() {
		defer d.release(w.Key, done)
		if prev != nil {
			<-prev
		}
		d.apply(ctx, w)
	}()
	return nil
}

// release marks a write finished and forgets the key once nothing is queued
// behind it.
func (d *asyncDispatcher) release(key model.Key, done chan struct{}) {
	d.mu.Lock()
	if d.tails[key] == done {
		delete(d.tails, key)
	}
	d.mu.Unlock()
	close(done)
}

func (d *asyncDispatcher) apply(ctx context.Context, w model.Write) { //nolint:gocritic // hugeParam
	start := time.Now()
	writeCtx, cancel := context.WithTimeout(ctx, asyncWriteTimeout)
	defer cancel()

	var err error
	switch w.Op {
	case model.WriteSet:
		err = d.collection.Set(writeCtx, w.Key, w.Entry)
	case model.WriteUpdate:
		err = d.collection.Update(writeCtx, w.Key, w.Entry)
	default:
		err = fmt.Errorf("unknown write operation %q", w.Op)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RecordWrite(string(w.Op), result, float64(time.Since(start).Microseconds())/1000)
	w.Finish(err)
}
