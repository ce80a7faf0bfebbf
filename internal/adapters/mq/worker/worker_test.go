package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/scorebridge/internal/adapters/mq/queue"
	worker "github.com/okian/scorebridge/internal/adapters/mq/worker"
	"github.com/okian/scorebridge/internal/domain/model"
	logging "github.com/okian/scorebridge/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

// mockQueue feeds a worker directly.
type mockQueue struct {
	jobs chan worker.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan worker.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan worker.Job { return mq.jobs }

// mockWriter records writes and fails for configured keys.
type mockWriter struct {
	mu      sync.Mutex
	sets    []model.Key
	updates []model.Key
	errors  map[model.Key]error
}

func newMockWriter() *mockWriter {
	return &mockWriter{errors: make(map[model.Key]error)}
}

func (mw *mockWriter) Set(_ context.Context, key model.Key, _ model.ScoreEntry) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if err, ok := mw.errors[key]; ok {
		return err
	}
	mw.sets = append(mw.sets, key)
	return nil
}

func (mw *mockWriter) Update(_ context.Context, key model.Key, _ model.ScoreEntry) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if err, ok := mw.errors[key]; ok {
		return err
	}
	mw.updates = append(mw.updates, key)
	return nil
}

func (mw *mockWriter) setError(key model.Key, err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errors[key] = err
}

func (mw *mockWriter) counts() (int, int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return len(mw.sets), len(mw.updates)
}

// write builds a job whose result lands on the returned channel.
func write(op model.WriteOp, key model.Key) (model.Write, chan error) {
	result := make(chan error, 1)
	return model.Write{
		Op:    op,
		Key:   key,
		Entry: model.ScoreEntry{"score": 1},
		Done:  func(err error) { result <- err },
	}, result
}

func waitResult(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write result")
		return nil
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on a mock queue", t, func() {
		mq := newMockQueue()
		mw := newMockWriter()
		w := worker.NewInMemoryWorker(mq, mw, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a set and an update arrive", func() {
			setJob, setRes := write(model.WriteSet, "k1")
			updJob, updRes := write(model.WriteUpdate, "k2")
			mq.jobs <- setJob
			mq.jobs <- updJob

			convey.Convey("Then each is applied with the matching operation", func() {
				convey.So(waitResult(t, setRes), convey.ShouldBeNil)
				convey.So(waitResult(t, updRes), convey.ShouldBeNil)
				sets, updates := mw.counts()
				convey.So(sets, convey.ShouldEqual, 1)
				convey.So(updates, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the backend rejects a write", func() {
			boom := errors.New("permission denied")
			mw.setError("k1", boom)
			j, res := write(model.WriteSet, "k1")
			mq.jobs <- j

			convey.Convey("Then the error reaches the job owner", func() {
				err := waitResult(t, res)
				convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
			})

			convey.Convey("And the worker keeps going", func() {
				_ = waitResult(t, res)
				next, nextRes := write(model.WriteSet, "k2")
				mq.jobs <- next
				convey.So(waitResult(t, nextRes), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the operation is unknown", func() {
			j, res := write("delete", "k1")
			mq.jobs <- j

			convey.Convey("Then it fails with ErrUnknownOp", func() {
				convey.So(errors.Is(waitResult(t, res), worker.ErrUnknownOp), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops cleanly and twice is safe", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewSharded(4, queue.WithCapacity(100))
		mw := newMockWriter()
		p := worker.NewPool(q, mw)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.So(p.Size(), convey.ShouldEqual, 4)

		convey.Convey("When dispatching many writes", func() {
			const n = 50
			results := make([]chan error, 0, n)
			for i := 0; i < n; i++ {
				j, res := write(model.WriteSet, model.Key("k"+string(rune('a'+i%26))))
				convey.So(p.Dispatch(ctx, j), convey.ShouldBeNil)
				results = append(results, res)
			}

			convey.Convey("Then every write completes", func() {
				for _, res := range results {
					convey.So(waitResult(t, res), convey.ShouldBeNil)
				}
				sets, _ := mw.counts()
				convey.So(sets, convey.ShouldEqual, n)
				convey.So(p.Processed(), convey.ShouldEqual, int64(n))
			})
		})

		convey.Convey("When the pool shuts down with pending writes", func() {
			j, res := write(model.WriteUpdate, "k1")
			convey.So(p.Dispatch(ctx, j), convey.ShouldBeNil)
			convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then pending writes are drained first", func() {
				convey.So(waitResult(t, res), convey.ShouldBeNil)
			})

			convey.Convey("And further dispatches are rejected as closed", func() {
				late, _ := write(model.WriteSet, "k2")
				convey.So(errors.Is(p.Dispatch(ctx, late), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When dispatching with a cancelled context", func() {
			cancelled, cancelNow := context.WithCancel(context.Background())
			cancelNow()
			j, _ := write(model.WriteSet, "k1")

			convey.Convey("Then the context error is returned", func() {
				convey.So(errors.Is(p.Dispatch(cancelled, j), context.Canceled), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPoolDispatchFull(t *testing.T) {
	q := queue.NewSharded(1, queue.WithCapacity(1))
	p := worker.NewPool(q, newMockWriter())
	ctx := context.Background()

	// Workers are not started, so the single slot stays occupied.
	first, _ := write(model.WriteSet, "k1")
	if err := p.Dispatch(ctx, first); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, _ := write(model.WriteSet, "k2")
	if err := p.Dispatch(ctx, second); !errors.Is(err, queue.ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if got := p.Pending(ctx); got != 1 {
		t.Errorf("expected 1 pending write, got %d", got)
	}
}

// storeWriter keeps records like a backend. Sets are slow so a later write
// to the same key would overtake them if run concurrently.
type storeWriter struct {
	mu       sync.Mutex
	records  map[model.Key]model.ScoreEntry
	setDelay time.Duration
}

func (sw *storeWriter) Set(_ context.Context, key model.Key, entry model.ScoreEntry) error {
	time.Sleep(sw.setDelay)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.records[key] = entry.Clone()
	return nil
}

func (sw *storeWriter) Update(_ context.Context, key model.Key, fields model.ScoreEntry) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.records[key] = sw.records[key].Merge(fields)
	return nil
}

func TestPoolKeepsPerKeyOrder(t *testing.T) {
	convey.Convey("Given a pool over a backend with slow sets", t, func() {
		sw := &storeWriter{records: make(map[model.Key]model.ScoreEntry), setDelay: 20 * time.Millisecond}
		p := worker.NewPool(queue.NewSharded(4, queue.WithCapacity(100)), sw)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.Convey("When each new record is followed by an update to it", func() {
			const keys = 20
			var results []chan error
			for i := 0; i < keys; i++ {
				key := model.Key(fmt.Sprintf("player%02d", i))
				set, setRes := write(model.WriteSet, key)
				set.Entry = model.ScoreEntry{"name": "Ann", "score": 10}
				upd, updRes := write(model.WriteUpdate, key)
				upd.Entry = model.ScoreEntry{"score": 99}
				convey.So(p.Dispatch(ctx, set), convey.ShouldBeNil)
				convey.So(p.Dispatch(ctx, upd), convey.ShouldBeNil)
				results = append(results, setRes, updRes)
			}
			for _, res := range results {
				convey.So(waitResult(t, res), convey.ShouldBeNil)
			}

			convey.Convey("Then every update lands after its set", func() {
				sw.mu.Lock()
				defer sw.mu.Unlock()
				convey.So(sw.records, convey.ShouldHaveLength, keys)
				for _, rec := range sw.records {
					convey.So(rec, convey.ShouldResemble, model.ScoreEntry{"name": "Ann", "score": 99})
				}
			})
		})
	})
}
