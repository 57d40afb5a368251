package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
	"github.com/blue-harvest-ops/fieldaudit/internal/storage"
	"github.com/blue-harvest-ops/fieldaudit/internal/workflow"
)

// DetectionFunc runs one detection cycle over a record batch and returns
// the tracking records for the alerts it raised.
type DetectionFunc func(ctx context.Context, rs models.RecordSet) ([]workflow.AlertTracking, error)

// AlertManager is the slice of the workflow manager the API needs.
type AlertManager interface {
	Acknowledge(ctx context.Context, id string) error
	MarkInProgress(ctx context.Context, id string) error
	Resolve(ctx context.Context, id, notes, method string) error
	CloseAlert(ctx context.Context, id, notes string) error
	Get(id string) (workflow.AlertTracking, error)
	ListTracking() []workflow.AlertTracking
	Statistics() workflow.Statistics
}

// HistoryStore reads persisted lifecycle events.
type HistoryStore interface {
	ListEvents(ctx context.Context, alertID string, limit, offset int) ([]storage.HistoryEntry, int64, error)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	OK(w, s.manager.Statistics())
}

func (s *Server) handleListTracking(w http.ResponseWriter, r *http.Request) {
	tracking := s.manager.ListTracking()

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := tracking[:0]
		for _, t := range tracking {
			if t.Status == workflow.Status(status) {
				filtered = append(filtered, t)
			}
		}
		tracking = filtered
	}

	OK(w, tracking)
}

func (s *Server) handleGetTracking(w http.ResponseWriter, r *http.Request) {
	t, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, ErrNotFound)
		return
	}
	OK(w, t)
}

// handleHistory serves both the per-alert and the global event log. The
// {id} parameter is empty on the global route.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		JSONError(w, &Error{
			Code:    ErrCodeNotFound,
			Message: "History persistence is disabled",
			Status:  http.StatusNotFound,
		})
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 1000 || offset < 0 {
		JSONError(w, BadRequest("limit must be 1..1000 and offset >= 0"))
		return
	}

	events, total, err := s.history.ListEvents(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.log.Error().Err(err).Msg("list events")
		JSONError(w, ErrInternal)
		return
	}

	OK(w, ListResponse{Items: events, Total: total, Limit: limit, Offset: offset})
}

// handleDetect accepts a record batch and runs it through the detection
// pipeline. Returns the tracking records for any alerts raised.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	fn := s.detection()
	if fn == nil {
		JSONError(w, &Error{
			Code:    ErrCodeNotFound,
			Message: "Detection is not wired on this server",
			Status:  http.StatusNotFound,
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDetectBody)
	var rs models.RecordSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		JSONError(w, BadRequest("invalid record batch"))
		return
	}

	tracked, err := fn(r.Context(), rs)
	if err != nil {
		s.log.Error().Err(err).Msg("detection run")
		JSONError(w, ErrInternal)
		return
	}

	JSON(w, http.StatusAccepted, tracked)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Acknowledge(r.Context(), id); err != nil {
		s.writeTransitionError(w, err)
		return
	}
	s.respondTracking(w, id)
}

func (s *Server) handleInProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.MarkInProgress(r.Context(), id); err != nil {
		s.writeTransitionError(w, err)
		return
	}
	s.respondTracking(w, id)
}

// resolveRequest is the optional body for resolve and close.
type resolveRequest struct {
	Notes  string `json:"notes"`
	Method string `json:"method"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.manager.Resolve(r.Context(), id, req.Notes, req.Method); err != nil {
		s.writeTransitionError(w, err)
		return
	}
	s.respondTracking(w, id)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.manager.CloseAlert(r.Context(), id, req.Notes); err != nil {
		s.writeTransitionError(w, err)
		return
	}
	s.respondTracking(w, id)
}

func (s *Server) respondTracking(w http.ResponseWriter, id string) {
	t, err := s.manager.Get(id)
	if err != nil {
		JSONError(w, ErrNotFound)
		return
	}
	OK(w, t)
}

func (s *Server) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		JSONError(w, ErrNotFound)
	case errors.Is(err, workflow.ErrInvalidTransition):
		JSONError(w, ErrConflict)
	default:
		s.log.Error().Err(err).Msg("alert transition")
		JSONError(w, ErrInternal)
	}
}

// decodeOptionalBody parses an optional JSON body. Empty bodies are fine;
// malformed ones get a 400 and a false return.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		JSONError(w, BadRequest("invalid JSON body"))
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
