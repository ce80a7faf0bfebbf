package port

import (
	"time"

	"github.com/okian/scorebridge/pkg/logger"
)

// WSOption configures a WSPort.
type WSOption func(*WSPort)

// WithSendBuffer bounds the number of outbound messages queued per client.
func WithSendBuffer(n int) WSOption {
	return func(p *WSPort) {
		if n > 0 {
			p.sendBuffer = n
		}
	}
}

// WithMaxMessageSize limits inbound message size in bytes.
func WithMaxMessageSize(n int64) WSOption {
	return func(p *WSPort) {
		if n > 0 {
			p.maxMessageSize = n
		}
	}
}

// WithPingInterval sets the keepalive period. The peer must answer within
// twice this interval.
func WithPingInterval(d time.Duration) WSOption {
	return func(p *WSPort) {
		if d > 0 {
			p.pingInterval = d
		}
	}
}

// WithWriteWait bounds each frame write.
func WithWriteWait(d time.Duration) WSOption {
	return func(p *WSPort) {
		if d > 0 {
			p.writeWait = d
		}
	}
}

// WithLogger sets the port logger.
func WithLogger(l logger.Logger) WSOption {
	return func(p *WSPort) {
		if l != nil {
			p.logger = l
		}
	}
}
