package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/dray/internal/logger"
)

// Response is the body of every health endpoint.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type healthHandler struct {
	deps    Deps
	timeout time.Duration
}

// Liveness reports that the process is serving HTTP.
func (h *healthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Status: "healthy", Timestamp: time.Now().UTC()})
}

// Readiness checks the object store and reports active connections per
// adapter. An unreachable store answers 503.
func (h *healthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	conns := make(map[string]int32, len(h.deps.Adapters))
	for _, a := range h.deps.Adapters {
		conns[a.Protocol()] = a.GetActiveConnections()
	}
	data := map[string]any{"active_connections": conns}

	if h.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.deps.Store.HealthCheck(ctx); err != nil {
			logger.Warn("Readiness check failed", logger.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, Response{
				Status:    "unhealthy",
				Timestamp: time.Now().UTC(),
				Data:      data,
				Error:     "object store unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data})
}

// writeJSON encodes to a buffer first so an encoding error can still
// become a 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
