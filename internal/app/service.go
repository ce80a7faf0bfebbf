// Package service wires the collection, the write workers and the seed
// generator into bridge sessions for the transport layer.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorebridge/internal/adapters/mq/queue"
	"github.com/okian/scorebridge/internal/adapters/mq/worker"
	"github.com/okian/scorebridge/internal/adapters/port"
	"github.com/okian/scorebridge/internal/adapters/repository"
	"github.com/okian/scorebridge/internal/bridge"
	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/internal/domain/seed"
	"github.com/okian/scorebridge/pkg/logger"
	"github.com/okian/scorebridge/pkg/metrics"
)

const (
	defaultQueueSize = 10_000
	stopTimeout      = 30 * time.Second
)

// Session is one connected application.
type Session struct {
	ID        string
	Flags     model.Flags
	StartedAt time.Time

	bridge *bridge.Bridge
}

// Service owns the shared backend resources and the live sessions.
type Service struct {
	mu sync.RWMutex

	collection repository.Collection
	queue      *queue.Sharded
	pool       *worker.Pool
	seeds      *seed.Generator
	sessions   map[string]*Session

	// Configuration
	workerCount    int
	queueSize      int
	readPolicy     bridge.ReadPolicy
	notifyFailures bool

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of write workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending writes.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithReadPolicy sets the read policy for every new session.
func WithReadPolicy(p bridge.ReadPolicy) Option {
	return func(s *Service) {
		s.readPolicy = p
	}
}

// WithFailureNotify makes sessions report failed writes as score_rejected.
func WithFailureNotify(enabled bool) Option {
	return func(s *Service) {
		s.notifyFailures = enabled
	}
}

// WithSeedGenerator replaces the secure seed source.
func WithSeedGenerator(g *seed.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.seeds = g
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over collection. The service closes the
// collection on Stop.
func New(collection repository.Collection, opts ...Option) *Service {
	s := &Service{
		collection:  collection,
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		readPolicy:  bridge.ReadSubscribe,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the write queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.seeds == nil {
		s.seeds = seed.NewGenerator()
	}

	s.logger.Info(ctx, "starting scorebridge service...")

	s.queue = queue.NewSharded(s.workerCount, queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.queue, s.collection)
	// Workers run until Stop drains them, not until the caller's context ends.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "scorebridge service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("readPolicy", s.readPolicy.String()),
		logger.Bool("notifyWriteFailures", s.notifyFailures),
	)
	return nil
}

// Stop ends every session, drains pending writes and closes the collection.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping scorebridge service...", logger.Int("sessions", len(s.sessions)))

	for id, sess := range s.sessions {
		s.stopSession(ctx, sess)
		delete(s.sessions, id)
	}

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "write workers did not drain", logger.Error(err))
	}
	if err := s.collection.Close(); err != nil {
		s.logger.Error(ctx, "error closing collection", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "scorebridge service stopped")
}

// OpenSession draws a fresh seed, sends it to the application as the init
// message and starts a bridge on p.
func (s *Service) OpenSession(ctx context.Context, p port.Port) (*Session, error) {
	s.mu.RLock()
	started, seeds, pool := s.started, s.seeds, s.pool
	s.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}

	sd, err := seeds.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeed, err)
	}
	flags := sd.Flags()
	if err := p.Send(ctx, model.InitMessage(flags)); err != nil {
		return nil, fmt.Errorf("send init: %w", err)
	}

	id := uuid.NewString()
	b := bridge.New(s.collection, p,
		bridge.WithReadPolicy(s.readPolicy),
		bridge.WithDispatcher(pool),
		bridge.WithFailureNotify(s.notifyFailures),
		bridge.WithLogger(s.logger.Named("bridge").With(logger.String("session", id))),
	)
	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("start bridge: %w", err)
	}

	sess := &Session{ID: id, Flags: flags, StartedAt: time.Now(), bridge: b}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		_ = b.Stop()
		return nil, ErrNotStarted
	}
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.SessionOpened()

	s.logger.Info(ctx, "session opened",
		logger.String("session", id),
		logger.Uint32("first", flags.First),
	)
	return sess, nil
}

// CloseSession stops the bridge of session id.
func (s *Service) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.stopSession(ctx, sess)
	return nil
}

func (s *Service) stopSession(ctx context.Context, sess *Session) {
	if err := sess.bridge.Stop(); err != nil {
		s.logger.Warn(ctx, "error stopping bridge",
			logger.String("session", sess.ID),
			logger.Error(err),
		)
	}
	metrics.SessionClosed()
	s.logger.Info(ctx, "session closed",
		logger.String("session", sess.ID),
		logger.Duration("duration", time.Since(sess.StartedAt)),
	)
}

// Leaderboard reads the current collection contents once.
func (s *Service) Leaderboard(ctx context.Context) ([]model.KeyedEntry, error) {
	snap, err := s.collection.ReadOnce(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entries(), nil
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":             s.started,
		"workerCount":         s.workerCount,
		"queueSize":           s.queueSize,
		"readPolicy":          s.readPolicy.String(),
		"notifyWriteFailures": s.notifyFailures,
		"sessions":            len(s.sessions),
	}

	if s.started {
		stats["queueLength"] = s.pool.Pending(ctx)
		stats["writesProcessed"] = s.pool.Processed()
		stats["entries"] = s.collection.Count(ctx)
	}
	return stats
}
