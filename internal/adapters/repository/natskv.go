package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

const (
	kvHistory       = 1
	kvMaxReconnects = -1
	kvReconnectWait = 2 * time.Second
)

// validKVKey matches the key alphabet accepted by JetStream KV buckets.
var validKVKey = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

// KVCollection is a Collection backed by a NATS JetStream KeyValue bucket.
// Entries are stored as JSON objects, one KV key per leaderboard key.
type KVCollection struct {
	kv     jetstream.KeyValue
	bucket string
	conn   *nats.Conn // owned only when created by DialKV

	newKey func() (model.Key, error)
	logger logger.Logger

	mu     sync.Mutex
	subs   map[*kvSubscription]struct{}
	closed bool
}

// DialKV connects to NATS at url and opens (creating if needed) the
// collection bucket. The returned collection owns the connection.
func DialKV(ctx context.Context, url string, opts ...Option) (*KVCollection, error) {
	c := newKVCollection(opts...)
	nc, err := nats.Connect(url,
		nats.Name("scorebridge"),
		nats.MaxReconnects(kvMaxReconnects),
		nats.ReconnectWait(kvReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn(context.Background(), "NATS disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info(context.Background(), "NATS reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	if err := c.open(ctx, js); err != nil {
		nc.Close()
		return nil, err
	}
	c.conn = nc
	return c, nil
}

// NewKVCollection opens (creating if needed) the collection bucket on an
// existing JetStream context. The caller keeps ownership of the connection.
func NewKVCollection(ctx context.Context, js jetstream.JetStream, opts ...Option) (*KVCollection, error) {
	c := newKVCollection(opts...)
	if err := c.open(ctx, js); err != nil {
		return nil, err
	}
	return c, nil
}

func newKVCollection(opts ...Option) *KVCollection {
	c := &KVCollection{
		bucket: defaultPath,
		newKey: newKVKey,
		logger: logger.Get().Named("kv-collection"),
		subs:   make(map[*kvSubscription]struct{}),
	}
	for _, opt := range opts {
		opt.applyKV(c)
	}
	return c
}

func (c *KVCollection) open(ctx context.Context, js jetstream.JetStream) error {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      c.bucket,
		Description: "scorebridge leaderboard",
		History:     kvHistory,
	})
	if err != nil {
		return fmt.Errorf("open bucket %q: %w", c.bucket, err)
	}
	c.kv = kv
	return nil
}

// newKVKey returns a time-ordered UUIDv7 with dashes removed.
func newKVKey() (model.Key, error) {
	k, err := newUUIDKey()
	if err != nil {
		return model.SentinelKey, err
	}
	return model.Key(strings.ReplaceAll(string(k), "-", "")), nil
}

func validateKVKey(key model.Key) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if !validKVKey.MatchString(string(key)) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// decodeEntry decodes a stored value. Anything but a JSON object is malformed.
func decodeEntry(data []byte) (model.ScoreEntry, error) {
	var entry model.ScoreEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: null", ErrDecode)
	}
	return entry, nil
}

// applyEntry folds one KV change into state. Malformed values are dropped
// from the snapshot rather than failing it.
func (c *KVCollection) applyEntry(ctx context.Context, state model.Snapshot, e jetstream.KeyValueEntry) {
	key := model.Key(e.Key())
	switch e.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		delete(state, key)
	default:
		entry, err := decodeEntry(e.Value())
		if err != nil {
			c.logger.Warn(ctx, "skipping malformed leaderboard entry",
				logger.String("key", string(key)), logger.Error(err))
			delete(state, key)
			return
		}
		state[key] = entry
	}
}

// Subscribe watches the whole bucket. The first snapshot is emitted once
// the initial values have been replayed, then one per change.
func (c *KVCollection) Subscribe(ctx context.Context, fn Listener) (Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	w, err := c.kv.WatchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch bucket %q: %w", c.bucket, err)
	}
	sub := &kvSubscription{collection: c, watcher: w, done: make(chan struct{})}

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go func() {
		defer close(sub.done)
		state := make(model.Snapshot)
		replayed := false
		for e := range w.Updates() {
			if e == nil {
				replayed = true
				fn(state.Clone())
				continue
			}
			c.applyEntry(ctx, state, e)
			if replayed {
				fn(state.Clone())
			}
		}
	}()
	return sub, nil
}

// ReadOnce replays the bucket once and returns the resulting snapshot.
func (c *KVCollection) ReadOnce(ctx context.Context) (model.Snapshot, error) {
	w, err := c.kv.WatchAll(ctx, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("read bucket %q: %w", c.bucket, err)
	}
	defer func() { _ = w.Stop() }()

	state := make(model.Snapshot)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case e, ok := <-w.Updates():
			if !ok || e == nil {
				return state, nil
			}
			c.applyEntry(ctx, state, e)
		}
	}
}

// NewKey returns a fresh unique key.
func (c *KVCollection) NewKey() (model.Key, error) {
	return c.newKey()
}

// Set stores entry under key.
func (c *KVCollection) Set(ctx context.Context, key model.Key, entry model.ScoreEntry) error {
	if err := validateKVKey(key); err != nil {
		return err
	}
	if entry == nil {
		entry = model.ScoreEntry{}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %q: %w", key, err)
	}
	if _, err := c.kv.Put(ctx, string(key), data); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Update reads the record at key, merges fields and writes it back. No
// revision check is made: the last writer wins.
func (c *KVCollection) Update(ctx context.Context, key model.Key, fields model.ScoreEntry) error {
	if err := validateKVKey(key); err != nil {
		return err
	}
	var existing model.ScoreEntry
	e, err := c.kv.Get(ctx, string(key))
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("get %q: %w", key, err)
	default:
		if existing, err = decodeEntry(e.Value()); err != nil {
			c.logger.Warn(ctx, "overwriting malformed leaderboard entry",
				logger.String("key", string(key)), logger.Error(err))
			existing = nil
		}
	}
	return c.Set(ctx, key, existing.Merge(fields))
}

// Count returns the number of entries in the bucket, or 0 when it cannot be read.
func (c *KVCollection) Count(ctx context.Context) int {
	snap, err := c.ReadOnce(ctx)
	if err != nil {
		return 0
	}
	return len(snap)
}

// Close stops every watcher and, when owned, drains the NATS connection.
func (c *KVCollection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = make(map[*kvSubscription]struct{})
	c.mu.Unlock()

	for s := range subs {
		_ = s.stop()
	}
	if c.conn != nil {
		return c.conn.Drain()
	}
	return nil
}

type kvSubscription struct {
	collection *KVCollection
	watcher    jetstream.KeyWatcher
	done       chan struct{}
	once       sync.Once
	err        error
}

func (s *kvSubscription) stop() error {
	s.once.Do(func() {
		s.err = s.watcher.Stop()
	})
	return s.err
}

// Release stops the watcher.
func (s *kvSubscription) Release() error {
	s.collection.mu.Lock()
	delete(s.collection.subs, s)
	s.collection.mu.Unlock()
	return s.stop()
}
