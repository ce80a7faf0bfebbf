package bridge

import "github.com/okian/scorebridge/pkg/logger"

// Option configures a Bridge.
type Option func(*Bridge)

// WithReadPolicy selects subscription or one-shot reads.
func WithReadPolicy(p ReadPolicy) Option {
	return func(b *Bridge) {
		b.policy = p
	}
}

// WithDispatcher routes backend writes through d instead of one goroutine
// per write.
func WithDispatcher(d Dispatcher) Option {
	return func(b *Bridge) {
		if d != nil {
			b.dispatcher = d
		}
	}
}

// WithFailureNotify sends a score_rejected message for every failed write.
func WithFailureNotify(enabled bool) Option {
	return func(b *Bridge) {
		b.notifyFailures = enabled
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}
