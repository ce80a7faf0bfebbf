// Package seed produces the per-session random seed handed to the
// application at startup.
//
// Values come from the host's cryptographically secure source. There is no
// fallback to a predictable generator: if the secure source fails, Generate
// fails and the session must not start.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
	"github.com/okian/scorebridge/pkg/metrics"
)

const uint32Bytes = 4

// Generator fills session seeds from a secure random reader.
type Generator struct {
	reader io.Reader
	logger logger.Logger
}

// NewGenerator creates a generator reading from crypto/rand unless
// overridden with WithReader.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{reader: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh seed of model.SeedSize values.
func (g *Generator) Generate(ctx context.Context) (model.Seed, error) {
	var buf [model.SeedSize * uint32Bytes]byte
	if _, err := io.ReadFull(g.reader, buf[:]); err != nil {
		metrics.RecordSeedError()
		metrics.RecordErrorByComponent("seed", "entropy_unavailable")
		if g.logger != nil {
			g.logger.Error(ctx, "secure random source failed", logger.Error(err))
		}
		return model.Seed{}, fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}

	var s model.Seed
	for i := range s {
		s[i] = binary.LittleEndian.Uint32(buf[i*uint32Bytes:])
	}
	metrics.RecordSeedGenerated()
	return s, nil
}

// Generate produces a seed from crypto/rand.
func Generate(ctx context.Context) (model.Seed, error) {
	return NewGenerator().Generate(ctx)
}
