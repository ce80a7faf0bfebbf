package seed

import (
	"io"

	"github.com/okian/scorebridge/pkg/logger"
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithReader replaces the secure random source. Only use it with another
// cryptographically secure reader, or in tests.
func WithReader(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.reader = r
		}
	}
}

// WithLogger sets the logger used to report entropy failures.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}
