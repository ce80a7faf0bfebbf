// Package worker runs backend writes off the bridge's hot path.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scorebridge/internal/adapters/mq/queue"
	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
	"github.com/okian/scorebridge/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.Write

// Writer applies writes to the backend.
type Writer interface {
	Set(ctx context.Context, key model.Key, entry model.ScoreEntry) error
	Update(ctx context.Context, key model.Key, fields model.ScoreEntry) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// InMemoryWorker drains the queue and applies each write.
type InMemoryWorker struct {
	queue        Queue
	writer       Writer
	name         string
	writeTimeout time.Duration
	processed    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, writer Writer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:        q,
		writer:       writer,
		name:         "worker",
		writeTimeout: defaultWriteTimeout,
		processed:    &atomic.Int64{},
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes jobs until ctx ends, Shutdown is called or the queue closes.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "backend write failed",
					logger.String("op", string(j.Op)),
					logger.String("key", string(j.Key)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for the in-flight job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process applies one write and reports its result to the job owner.
func (w *InMemoryWorker) process(ctx context.Context, j Job) (err error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	defer func() {
		latency := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordWorkerProcessingLatency(latency)
		result := "ok"
		if err != nil {
			result = "error"
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "write_error")
			metrics.RecordErrorByType("write_error", "high")
		}
		metrics.RecordWrite(string(j.Op), result, latency)
		w.processed.Add(1)
		j.Finish(err)
	}()

	writeCtx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	switch j.Op {
	case model.WriteSet:
		err = w.writer.Set(writeCtx, j.Key, j.Entry)
	case model.WriteUpdate:
		err = w.writer.Update(writeCtx, j.Key, j.Entry)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOp, j.Op)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", j.Op, j.Key, err)
	}
	return nil
}

// Pool runs one worker per queue shard. Writes to the same key share a shard
// and are applied in dispatch order.
type Pool struct {
	workers []*InMemoryWorker
	queue   *queue.Sharded
	clock   clockwork.Clock

	processed     atomic.Int64
	lastProcessed int64
	lastTick      time.Time

	shutdown chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewPool creates a pool with one worker per shard of q, writing through
// writer.
func NewPool(q *queue.Sharded, writer Writer, opts ...PoolOption) *Pool {
	workerCount := q.Shards()
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		clock:    clockwork.NewRealClock(),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	p.lastTick = p.clock.Now()

	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q.Shard(i), writer,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger.Named("worker-"+strconv.Itoa(i))),
			withCounter(&p.processed),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Pending returns the number of queued writes.
func (p *Pool) Pending(ctx context.Context) int { return p.queue.Len(ctx) }

// Processed returns the number of writes completed, successful or not.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers and the rate metrics updater.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// Dispatch queues a write on its key's shard without blocking. A rejected
// write returns queue.ErrFull, queue.ErrClosed or the context error.
func (p *Pool) Dispatch(ctx context.Context, w model.Write) error { //nolint:gocritic // hugeParam
	return p.queue.Enqueue(ctx, w)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := p.clock.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.Chan():
			p.updateMetrics()
		}
	}
}

// updateMetrics publishes the completed-writes rate since the last tick.
func (p *Pool) updateMetrics() float64 {
	now := p.clock.Now()
	total := p.processed.Load()
	elapsed := now.Sub(p.lastTick).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(total-p.lastProcessed) / elapsed
	}
	metrics.UpdateWorkerMessagesPerSecond(rate)
	p.lastProcessed = total
	p.lastTick = now
	return rate
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing write queue", logger.Error(err))
	}
	p.once.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
