package api

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/okian/scorebridge/internal/adapters/port"
	"github.com/okian/scorebridge/pkg/logger"
)

const wsBufferSize = 1024

// WSHandler upgrades GET /ws into one bridge session per connection.
type WSHandler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	portOpts []port.WSOption
	logger   logger.Logger

	mu    sync.Mutex
	ports map[*port.WSPort]struct{}
}

// NewWSHandler creates a websocket handler accepting the given origins.
func NewWSHandler(deps Dependencies, origins []string, l logger.Logger, opts ...port.WSOption) *WSHandler {
	h := &WSHandler{
		deps:     deps,
		portOpts: append([]port.WSOption{port.WithLogger(l)}, opts...),
		logger:   l,
		ports:    make(map[*port.WSPort]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

// originChecker accepts requests without an Origin header (non-browser
// clients), any origin when the list holds "*", or an exact match.
func originChecker(origins []string) func(r *http.Request) bool {
	anyOrigin := slices.Contains(origins, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || anyOrigin || slices.Contains(origins, origin)
	}
}

// HandleWS serves one application for the lifetime of its connection.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if !h.upgrader.CheckOrigin(r) {
		writeError(w, http.StatusForbidden, "origin_rejected", ErrOriginRejected)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	// The session lives until the connection ends, not until ServeHTTP's
	// request context would normally be cancelled.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	p := port.NewWSPort(conn, h.portOpts...)
	h.track(p)
	defer h.untrack(p)
	p.Start(ctx)

	sess, err := h.deps.OpenSession(ctx, p)
	if err != nil {
		h.logger.Error(ctx, "session refused", logger.String("remote", r.RemoteAddr), logger.Error(err))
		_ = p.CloseWithCode(websocket.CloseInternalServerErr, "session unavailable")
		return
	}

	<-p.Done()
	if err := h.deps.CloseSession(ctx, sess.ID); err != nil {
		h.logger.Debug(ctx, "session already closed", logger.String("session", sess.ID), logger.Error(err))
	}
}

func (h *WSHandler) track(p *port.WSPort) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ports[p] = struct{}{}
}

func (h *WSHandler) untrack(p *port.WSPort) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.ports, p)
}

// CloseAll closes every open connection. Handlers then end their sessions.
func (h *WSHandler) CloseAll() {
	h.mu.Lock()
	ports := make([]*port.WSPort, 0, len(h.ports))
	for p := range h.ports {
		ports = append(ports, p)
	}
	h.mu.Unlock()

	for _, p := range ports {
		_ = p.Close()
	}
}

// Open returns the number of live websocket connections.
func (h *WSHandler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ports)
}
