// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"github.com/okian/scorebridge/internal/adapters/port"
	service "github.com/okian/scorebridge/internal/app"
	"github.com/okian/scorebridge/internal/domain/model"
	"github.com/okian/scorebridge/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// OpenSession starts a bridge for one connected application.
	OpenSession(ctx context.Context, p port.Port) (*service.Session, error)
	// CloseSession ends the bridge started by OpenSession.
	CloseSession(ctx context.Context, id string) error

	LeaderboardDependencies
}

// Server wires HTTP routes for the bridge.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	wsHandler          *WSHandler

	origins []string
	logger  logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{origins: []string{"*"}}
	var wsOpts []port.WSOption
	for _, opt := range opts {
		opt(s, &wsOpts)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}

	s.healthHandler = NewHealthHandler()
	s.leaderboardHandler = NewLeaderboardHandler(deps, defaultMaxLeaderboardLimit, s.logger.Named("leaderboard"))
	s.wsHandler = NewWSHandler(deps, s.origins, s.logger.Named("ws"), wsOpts...)
	s.statsHandler = NewStatsHandler(statsProvider, s.wsHandler.Open)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/ws", MetricsMiddleware(s.wsHandler.HandleWS, "ws"))
}

// Handler returns mux wrapped with the CORS policy for the allowed origins.
func (s *Server) Handler(mux http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin"},
		MaxAge:         300,
	})
	return c.Handler(mux)
}

// Close ends every open websocket session.
func (s *Server) Close() {
	s.wsHandler.CloseAll()
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type leaderboardResponse struct {
	Entries []model.KeyedEntry `json:"entries"`
	Count   int                `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
