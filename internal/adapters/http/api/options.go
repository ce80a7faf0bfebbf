package api

import (
	"github.com/okian/scorebridge/internal/adapters/port"
	"github.com/okian/scorebridge/pkg/logger"
)

// ServerOption configures a Server.
type ServerOption func(s *Server, wsOpts *[]port.WSOption)

// WithAllowedOrigins restricts CORS and websocket origins. "*" allows any.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server, _ *[]port.WSOption) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithPortOptions configures the websocket port of every session.
func WithPortOptions(opts ...port.WSOption) ServerOption {
	return func(_ *Server, wsOpts *[]port.WSOption) {
		*wsOpts = append(*wsOpts, opts...)
	}
}

// WithLogger sets the HTTP layer logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server, _ *[]port.WSOption) {
		if l != nil {
			s.logger = l
		}
	}
}
