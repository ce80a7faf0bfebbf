package repository

import (
	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

const defaultPath = "leaderboard"

// Option configures a collection. Options that do not apply to a given
// backend are ignored by it.
type Option interface {
	applyMemory(*MemoryCollection)
	applyKV(*KVCollection)
}

type optionFunc struct {
	memory func(*MemoryCollection)
	kv     func(*KVCollection)
}

func (o optionFunc) applyMemory(c *MemoryCollection) {
	if o.memory != nil {
		o.memory(c)
	}
}

func (o optionFunc) applyKV(c *KVCollection) {
	if o.kv != nil {
		o.kv(c)
	}
}

// WithPath sets the collection root path. For the NATS backend it names the
// KV bucket.
func WithPath(path string) Option {
	return optionFunc{
		memory: func(c *MemoryCollection) {
			if path != "" {
				c.path = path
			}
		},
		kv: func(c *KVCollection) {
			if path != "" {
				c.bucket = path
			}
		},
	}
}

// WithLogger sets the collection logger.
func WithLogger(l logger.Logger) Option {
	return optionFunc{
		memory: func(c *MemoryCollection) {
			if l != nil {
				c.logger = l
			}
		},
		kv: func(c *KVCollection) {
			if l != nil {
				c.logger = l
			}
		},
	}
}

// WithKeyFunc replaces the key generator.
func WithKeyFunc(fn func() (model.Key, error)) Option {
	return optionFunc{
		memory: func(c *MemoryCollection) {
			if fn != nil {
				c.newKey = fn
			}
		},
		kv: func(c *KVCollection) {
			if fn != nil {
				c.newKey = fn
			}
		},
	}
}
