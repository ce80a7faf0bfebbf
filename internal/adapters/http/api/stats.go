package api

import (
	"net/http"
)

// StatsProvider reports service level counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the service counters together with the transport's
// own view of live connections.
type StatsHandler struct {
	provider    StatsProvider
	connections func() int
}

// NewStatsHandler creates a stats handler. connections may be nil.
func NewStatsHandler(provider StatsProvider, connections func() int) *StatsHandler {
	return &StatsHandler{provider: provider, connections: connections}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := make(map[string]interface{})
	for k, v := range h.provider.GetStats() {
		out[k] = v
	}
	if h.connections != nil {
		out["connections"] = h.connections()
	}
	writeJSON(w, http.StatusOK, out)
}
