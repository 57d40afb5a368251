// Package health provides the liveness and readiness probe endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds one readiness sweep across all checkers.
const checkTimeout = 5 * time.Second

// Checker reports whether one dependency is usable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Handler serves the probe endpoints. Checkers registered on it gate
// readiness only; liveness never depends on downstream state.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

// NewHandler creates a handler with no checkers registered.
func NewHandler() *Handler {
	return &Handler{}
}

// RegisterChecker adds a dependency to the readiness sweep.
func (h *Handler) RegisterChecker(c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

// HealthResponse is the probe payload. Checks is present on readiness only.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health answers the plain "is the process up" probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Live answers liveness probes. Always healthy while the process serves.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, HealthResponse{Status: "live"})
}

// Ready sweeps every registered checker and answers 503 when any fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	h.mu.RLock()
	checkers := make([]Checker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(checkers))}
	code := http.StatusOK
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			resp.Checks[c.Name()] = err.Error()
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name()] = "ok"
	}

	writeProbe(w, code, resp)
}

func writeProbe(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
