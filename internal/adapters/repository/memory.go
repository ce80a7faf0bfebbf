package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

// invalidKeyChars mirrors the characters realtime stores reject in a path segment.
const invalidKeyChars = ".$#[]/"

// MemoryCollection is an in-process Collection. Every mutation fans a full
// snapshot out to all listeners; each listener sees snapshots in mutation
// order.
type MemoryCollection struct {
	mu        sync.RWMutex
	path      string
	records   model.Snapshot
	listeners map[uint64]*memoryListener
	nextID    uint64
	closed    bool

	newKey func() (model.Key, error)
	logger logger.Logger
}

// NewMemoryCollection creates an empty in-memory collection.
func NewMemoryCollection(opts ...Option) *MemoryCollection {
	c := &MemoryCollection{
		path:      defaultPath,
		records:   make(model.Snapshot),
		listeners: make(map[uint64]*memoryListener),
		newKey:    newUUIDKey,
	}
	for _, opt := range opts {
		opt.applyMemory(c)
	}
	return c
}

// newUUIDKey returns a time-ordered key, so key order follows creation order.
func newUUIDKey() (model.Key, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.SentinelKey, fmt.Errorf("generate key: %w", err)
	}
	return model.Key(id.String()), nil
}

// ValidateKey rejects the sentinel and keys a realtime path cannot hold.
func ValidateKey(key model.Key) error {
	if key.IsSentinel() {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.ContainsAny(string(key), invalidKeyChars) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Path returns the collection root path.
func (c *MemoryCollection) Path() string { return c.path }

// Subscribe registers fn. The current snapshot is delivered immediately.
func (c *MemoryCollection) Subscribe(ctx context.Context, fn Listener) (Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	id := c.nextID
	c.nextID++
	l := newMemoryListener(fn)
	c.listeners[id] = l
	l.push(c.records.Clone())
	c.mu.Unlock()

	go l.run()

	sub := &memorySubscription{collection: c, id: id, listener: l}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Release()
			case <-l.stopped:
			}
		}()
	}
	return sub, nil
}

// ReadOnce returns a copy of the current records.
func (c *MemoryCollection) ReadOnce(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.records.Clone(), nil
}

// NewKey returns a fresh unique key.
func (c *MemoryCollection) NewKey() (model.Key, error) {
	return c.newKey()
}

// Set stores entry under key.
func (c *MemoryCollection) Set(ctx context.Context, key model.Key, entry model.ScoreEntry) error {
	return c.mutate(ctx, key, func(model.ScoreEntry) model.ScoreEntry {
		return entry.Clone()
	})
}

// Update merges fields into the record at key.
func (c *MemoryCollection) Update(ctx context.Context, key model.Key, fields model.ScoreEntry) error {
	return c.mutate(ctx, key, func(existing model.ScoreEntry) model.ScoreEntry {
		return existing.Merge(fields)
	})
}

func (c *MemoryCollection) mutate(ctx context.Context, key model.Key, apply func(model.ScoreEntry) model.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.records[key] = apply(c.records[key])
	for _, l := range c.listeners {
		l.push(c.records.Clone())
	}
	return nil
}

// Count returns the number of stored entries.
func (c *MemoryCollection) Count(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Close stops every listener. Further calls fail with ErrClosed.
func (c *MemoryCollection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	listeners := c.listeners
	c.listeners = make(map[uint64]*memoryListener)
	c.mu.Unlock()

	for _, l := range listeners {
		l.stop()
	}
	if c.logger != nil {
		c.logger.Debug(context.Background(), "memory collection closed", logger.String("path", c.path))
	}
	return nil
}

func (c *MemoryCollection) release(id uint64) {
	c.mu.Lock()
	l, ok := c.listeners[id]
	delete(c.listeners, id)
	c.mu.Unlock()
	if ok {
		l.stop()
	}
}

// memoryListener delivers snapshots to one Listener in FIFO order on its own goroutine.
type memoryListener struct {
	fn      Listener
	mu      sync.Mutex
	pending []model.Snapshot
	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newMemoryListener(fn Listener) *memoryListener {
	return &memoryListener{
		fn:      fn,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (l *memoryListener) push(s model.Snapshot) {
	l.mu.Lock()
	l.pending = append(l.pending, s)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *memoryListener) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.mu.Unlock()
				break
			}
			next := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()

			select {
			case <-l.quit:
				return
			default:
			}
			l.fn(next)
		}
	}
}

func (l *memoryListener) stop() {
	l.once.Do(func() { close(l.quit) })
}

type memorySubscription struct {
	collection *MemoryCollection
	id         uint64
	listener   *memoryListener
}

// Release detaches the listener. A snapshot already being delivered completes.
func (s *memorySubscription) Release() error {
	s.collection.release(s.id)
	return nil
}
