// Package bridge connects one application session to the remote leaderboard
// collection. It forwards snapshots to the application and turns score
// submissions into backend writes.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scorebridge/internal/adapters/repository"
	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
	"github.com/okian/scorebridge/pkg/metrics"
)

const drainIdle = 50 * time.Millisecond

// Port is the application side of a session.
type Port interface {
	// Submissions yields score submissions until the application goes away.
	Submissions() <-chan model.Submission
	// Send delivers a message to the application. Safe for concurrent use.
	Send(ctx context.Context, msg model.Message) error
}

// Dispatcher runs backend writes asynchronously. Dispatch must not block on
// the write itself; the result is reported through Write.Done.
type Dispatcher interface {
	Dispatch(ctx context.Context, w model.Write) error
}

// Bridge owns the read and write protocols for one session.
type Bridge struct {
	collection     repository.Collection
	port           Port
	policy         ReadPolicy
	dispatcher     Dispatcher
	notifyFailures bool
	logger         logger.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	sub     repository.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a bridge between collection and port.
func New(collection repository.Collection, port Port, opts ...Option) *Bridge {
	b := &Bridge{
		collection: collection,
		port:       port,
		policy:     ReadSubscribe,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("bridge")
	}
	if b.dispatcher == nil {
		b.dispatcher = newAsyncDispatcher(collection)
	}
	return b
}

// Policy returns the read policy the bridge was built with.
func (b *Bridge) Policy() ReadPolicy { return b.policy }

// Start attaches the read side and launches the submission listener.
//
// With ReadSubscribe a failed subscription is returned and nothing is started.
// With ReadFetch a failed fetch is logged and the listener still runs.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrStopped
	}
	if b.started {
		return ErrAlreadyStarted
	}

	b.ctx, b.cancel = context.WithCancel(ctx)

	switch b.policy {
	case ReadSubscribe:
		sub, err := b.collection.Subscribe(b.ctx, func(snap model.Snapshot) {
			b.forward(b.ctx, snap)
		})
		if err != nil {
			b.cancel()
			metrics.RecordReadError(b.policy.String())
			return fmt.Errorf("%w: %w", ErrSubscribe, err)
		}
		b.sub = sub
	case ReadFetch:
		if err := b.fetch(b.ctx); err != nil {
			b.logger.Error(ctx, "initial leaderboard fetch failed", logger.Error(err))
		}
	default:
		b.cancel()
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, b.policy)
	}

	b.started = true
	b.wg.Add(1)
	go b.listen()

	b.logger.Debug(ctx, "bridge started", logger.String("read_policy", b.policy.String()))
	return nil
}

// Refresh reads the collection once and forwards the result.
func (b *Bridge) Refresh(ctx context.Context) error {
	return b.fetch(ctx)
}

func (b *Bridge) fetch(ctx context.Context) error {
	snap, err := b.collection.ReadOnce(ctx)
	if err != nil {
		metrics.RecordReadError(ReadFetch.String())
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	b.forward(ctx, snap)
	return nil
}

// forward flattens snap into keyed pairs and sends one leaderboard message.
func (b *Bridge) forward(ctx context.Context, snap model.Snapshot) {
	entries := snap.Entries()
	if err := b.port.Send(ctx, model.LeaderboardMessage(entries)); err != nil {
		b.logger.Warn(ctx, "leaderboard not delivered", logger.Error(err))
		return
	}
	metrics.RecordSnapshotForwarded(b.policy.String(), len(entries))
}

func (b *Bridge) listen() {
	defer b.wg.Done()

	// Submissions and their writes outlive the session; Stop only ends the wait
	// for new ones.
	ctx := context.WithoutCancel(b.ctx)
	subs := b.port.Submissions()
	for {
		select {
		case <-b.ctx.Done():
			b.drain(ctx, subs)
			return
		case s, ok := <-subs:
			if !ok {
				b.logger.Debug(ctx, "submission channel closed")
				return
			}
			b.handle(ctx, s)
		}
	}
}

// drain handles submissions still arriving after Stop until the port closes
// the channel or stays quiet for drainIdle.
func (b *Bridge) drain(ctx context.Context, subs <-chan model.Submission) {
	idle := time.NewTimer(drainIdle)
	defer idle.Stop()
	for {
		select {
		case s, ok := <-subs:
			if !ok {
				return
			}
			b.handle(ctx, s)
			idle.Reset(drainIdle)
		case <-idle.C:
			return
		}
	}
}

func (b *Bridge) handle(ctx context.Context, s model.Submission) { //nolint:gocritic // hugeParam
	if err := b.HandleSubmission(ctx, s); err != nil {
		b.logger.Warn(ctx, "submission dropped",
			logger.String("key", string(s.Key)),
			logger.Error(err),
		)
	}
}

// HandleSubmission applies one score submission.
//
// A submission without a key gets exactly one new key from the collection, is
// acknowledged with a score_accepted message and is then persisted in the
// background. A keyed submission is merged into the existing record in the
// background and is not acknowledged.
func (b *Bridge) HandleSubmission(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam: Submission arrives by value off a channel
	entry := s.Entry.Clone()

	if !s.Key.IsSentinel() {
		metrics.RecordSubmission("update")
		return b.dispatch(ctx, model.Write{Op: model.WriteUpdate, Key: s.Key, Entry: entry})
	}

	metrics.RecordSubmission("new")
	key, err := b.collection.NewKey()
	if err != nil {
		metrics.RecordErrorByComponent("bridge", "key_generation")
		return fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}
	metrics.RecordKeyGenerated()

	if err := b.port.Send(ctx, model.ScoreAcceptedMessage(key, entry.Clone())); err != nil {
		b.logger.Warn(ctx, "score_accepted not delivered",
			logger.String("key", string(key)),
			logger.Error(err),
		)
	}

	return b.dispatch(ctx, model.Write{Op: model.WriteSet, Key: key, Entry: entry})
}

func (b *Bridge) dispatch(ctx context.Context, w model.Write) error { //nolint:gocritic // hugeParam
	w.Done = b.writeDone(w.Op, w.Key, w.Entry)
	// The write belongs to the collection once accepted, whatever happens to
	// the session.
	if err := b.dispatcher.Dispatch(context.WithoutCancel(ctx), w); err != nil {
		err = fmt.Errorf("%w: %w", ErrDispatch, err)
		w.Done(err)
		return err
	}
	return nil
}

// writeDone builds the completion callback for one backend write.
func (b *Bridge) writeDone(op model.WriteOp, key model.Key, entry model.ScoreEntry) func(error) {
	return func(err error) {
		if err == nil {
			b.logger.Debug(context.Background(), "score persisted",
				logger.String("op", string(op)),
				logger.String("key", string(key)),
			)
			return
		}
		b.logger.Error(context.Background(), "score write failed",
			logger.String("op", string(op)),
			logger.String("key", string(key)),
			logger.Error(err),
		)
		if !b.notifyFailures {
			return
		}
		ctx := b.runContext()
		if sendErr := b.port.Send(ctx, model.ScoreRejectedMessage(key, entry.Clone())); sendErr != nil {
			b.logger.Debug(ctx, "score_rejected not delivered",
				logger.String("key", string(key)),
				logger.Error(sendErr),
			)
		}
	}
}

func (b *Bridge) runContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// Stop releases the subscription, handles the submissions the port still
// delivers and waits for the listener. Writes already dispatched still
// complete. Stop is idempotent.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	sub := b.sub
	b.sub = nil
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	var err error
	if sub != nil {
		if err = sub.Release(); err != nil {
			err = fmt.Errorf("release subscription: %w", err)
		}
	}
	b.wg.Wait()
	return err
}
