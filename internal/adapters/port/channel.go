package port

import (
	"context"
	"sync"

	"github.com/okian/scorebridge/internal/domain/model"
)

const defaultChannelBuffer = 64

// ChannelPort is an in-process Port backed by buffered channels.
type ChannelPort struct {
	submissions chan model.Submission
	messages    chan model.Message
	done        chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewChannelPort creates a port whose channels hold buffer items each. A
// non-positive buffer uses the default size.
func NewChannelPort(buffer int) *ChannelPort {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	return &ChannelPort{
		submissions: make(chan model.Submission, buffer),
		messages:    make(chan model.Message, buffer),
		done:        make(chan struct{}),
	}
}

// Submissions implements Port.
func (p *ChannelPort) Submissions() <-chan model.Submission { return p.submissions }

// Send implements Port. It blocks while the message buffer is full.
func (p *ChannelPort) Send(ctx context.Context, msg model.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.messages <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages is the application end of Send.
func (p *ChannelPort) Messages() <-chan model.Message { return p.messages }

// Submit is the application end of Submissions.
func (p *ChannelPort) Submit(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.submissions <- s:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes both directions. Buffered messages can still be read.
func (p *ChannelPort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		defer p.mu.Unlock()
		p.closed = true
		close(p.submissions)
		close(p.messages)
	})
	return nil
}
