package worker

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scorebridge/internal/adapters/mq/queue"
	"github.com/okian/scorebridge/pkg/logger"
)

func TestPoolUpdateMetrics(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	clock := clockwork.NewFakeClock()
	p := NewPool(queue.NewSharded(1, queue.WithCapacity(1)), nil, WithClock(clock))

	p.processed.Add(10)
	clock.Advance(5 * time.Second)
	if got := p.updateMetrics(); got != 2 {
		t.Errorf("expected 2 writes/s, got %v", got)
	}

	clock.Advance(5 * time.Second)
	if got := p.updateMetrics(); got != 0 {
		t.Errorf("expected 0 writes/s with no new writes, got %v", got)
	}
}
