package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/scorebridge/internal/adapters/repository"
	"github.com/okian/scorebridge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const waitTimeout = 2 * time.Second

// recorder collects snapshots delivered to a listener.
type recorder struct {
	mu    sync.Mutex
	snaps []model.Snapshot
	ch    chan struct{}
}

func newRecorder() *recorder { return &recorder{ch: make(chan struct{}, 100)} }

func (r *recorder) listen(s model.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

// waitFor blocks until n snapshots have arrived and returns the latest.
func (r *recorder) waitFor(n int) (model.Snapshot, bool) {
	deadline := time.After(waitTimeout)
	for {
		r.mu.Lock()
		if len(r.snaps) >= n {
			s := r.snaps[n-1]
			r.mu.Unlock()
			return s, true
		}
		r.mu.Unlock()
		select {
		case <-r.ch:
		case <-deadline:
			return nil, false
		}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestMemoryCollection_Subscribe(t *testing.T) {
	Convey("Given an empty memory collection", t, func() {
		ctx := context.Background()
		c := repository.NewMemoryCollection()
		defer func() { _ = c.Close() }()

		Convey("When subscribing", func() {
			rec := newRecorder()
			sub, err := c.Subscribe(ctx, rec.listen)
			So(err, ShouldBeNil)
			defer func() { _ = sub.Release() }()

			Convey("Then the initial snapshot is delivered and empty", func() {
				snap, ok := rec.waitFor(1)
				So(ok, ShouldBeTrue)
				So(snap, ShouldBeEmpty)
			})

			Convey("And every mutation delivers the full collection in order", func() {
				So(c.Set(ctx, "k1", model.ScoreEntry{"name": "Ann", "score": 10}), ShouldBeNil)
				So(c.Set(ctx, "k2", model.ScoreEntry{"name": "Bob", "score": 7}), ShouldBeNil)
				So(c.Update(ctx, "k1", model.ScoreEntry{"score": 12}), ShouldBeNil)

				snap, ok := rec.waitFor(4)
				So(ok, ShouldBeTrue)
				So(snap, ShouldHaveLength, 2)
				So(snap["k1"]["name"], ShouldEqual, "Ann")
				So(snap["k1"]["score"], ShouldEqual, 12)

				second, _ := rec.waitFor(2)
				So(second, ShouldHaveLength, 1)
			})

			Convey("And releasing stops delivery", func() {
				_, ok := rec.waitFor(1)
				So(ok, ShouldBeTrue)
				So(sub.Release(), ShouldBeNil)
				So(sub.Release(), ShouldBeNil)
				So(c.Set(ctx, "k3", model.ScoreEntry{"score": 1}), ShouldBeNil)
				time.Sleep(50 * time.Millisecond)
				So(rec.count(), ShouldEqual, 1)
			})
		})

		Convey("When the subscription context is cancelled", func() {
			subCtx, cancel := context.WithCancel(ctx)
			rec := newRecorder()
			_, err := c.Subscribe(subCtx, rec.listen)
			So(err, ShouldBeNil)
			_, ok := rec.waitFor(1)
			So(ok, ShouldBeTrue)

			cancel()
			time.Sleep(50 * time.Millisecond)
			So(c.Set(ctx, "k1", model.ScoreEntry{"score": 1}), ShouldBeNil)
			time.Sleep(50 * time.Millisecond)

			Convey("Then no further snapshots arrive", func() {
				So(rec.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestMemoryCollection_Writes(t *testing.T) {
	Convey("Given a memory collection", t, func() {
		ctx := context.Background()
		c := repository.NewMemoryCollection(repository.WithPath("scores"))
		defer func() { _ = c.Close() }()

		Convey("Then the path is configurable", func() {
			So(c.Path(), ShouldEqual, "scores")
		})

		Convey("When generating keys", func() {
			a, errA := c.NewKey()
			b, errB := c.NewKey()

			Convey("Then they are unique, non-empty and time ordered", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a, ShouldNotEqual, model.SentinelKey)
				So(a, ShouldNotEqual, b)
				So(string(a) < string(b), ShouldBeTrue)
			})

			Convey("And nothing is written", func() {
				So(c.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When updating a record", func() {
			So(c.Set(ctx, "k1", model.ScoreEntry{"name": "Ann", "score": 10}), ShouldBeNil)
			So(c.Update(ctx, "k1", model.ScoreEntry{"score": 11}), ShouldBeNil)
			snap, err := c.ReadOnce(ctx)

			Convey("Then only the present fields are merged", func() {
				So(err, ShouldBeNil)
				So(snap["k1"], ShouldResemble, model.ScoreEntry{"name": "Ann", "score": 11})
			})
		})

		Convey("When updating an absent key", func() {
			So(c.Update(ctx, "ghost", model.ScoreEntry{"score": 1}), ShouldBeNil)

			Convey("Then the record is created", func() {
				So(c.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When mutating the entry after Set", func() {
			entry := model.ScoreEntry{"score": 1}
			So(c.Set(ctx, "k1", entry), ShouldBeNil)
			entry["score"] = 99
			snap, _ := c.ReadOnce(ctx)

			Convey("Then the stored copy is unaffected", func() {
				So(snap["k1"]["score"], ShouldEqual, 1)
			})
		})

		Convey("When writing with invalid keys", func() {
			Convey("Then the sentinel key is rejected", func() {
				err := c.Set(ctx, model.SentinelKey, model.ScoreEntry{})
				So(errors.Is(err, repository.ErrInvalidKey), ShouldBeTrue)
			})

			Convey("Then path characters are rejected", func() {
				err := c.Update(ctx, "a/b", model.ScoreEntry{})
				So(errors.Is(err, repository.ErrInvalidKey), ShouldBeTrue)
			})
		})

		Convey("When the collection is closed", func() {
			So(c.Close(), ShouldBeNil)

			Convey("Then writes, reads and subscriptions fail", func() {
				So(errors.Is(c.Set(ctx, "k1", model.ScoreEntry{}), repository.ErrClosed), ShouldBeTrue)
				_, err := c.ReadOnce(ctx)
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				_, err = c.Subscribe(ctx, func(model.Snapshot) {})
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				So(c.Close(), ShouldBeNil)
			})
		})
	})
}

func TestMemoryCollection_KeyFunc(t *testing.T) {
	c := repository.NewMemoryCollection(repository.WithKeyFunc(func() (model.Key, error) {
		return "abc123", nil
	}))
	defer func() { _ = c.Close() }()

	key, err := c.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if key != "abc123" {
		t.Errorf("expected injected key, got %q", key)
	}
}

func TestMemoryCollection_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	c := repository.NewMemoryCollection()
	defer func() { _ = c.Close() }()

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				key, err := c.NewKey()
				if err != nil {
					t.Errorf("NewKey: %v", err)
					return
				}
				if err := c.Set(ctx, key, model.ScoreEntry{"score": j}); err != nil {
					t.Errorf("Set: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := c.Count(ctx); got != writers*perWriter {
		t.Errorf("expected %d entries, got %d", writers*perWriter, got)
	}
}
