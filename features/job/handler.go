package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"catalogai/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// List serves GET /jobs/failed, optionally filtered by ?tenant_id=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := r.URL.Query().Get("tenant_id")

	jobs, err := h.service.List(ctx, tenantID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	})
}

// Retry serves POST /jobs/{id}/retry. The task is back on the queue when
// this returns 202; ingestion itself has not run yet.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Retry(ctx, id); err != nil {
		code, status := classify(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "failed to retry job", "job_id", id, "error", err)
		}
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]string{"id": id, "status": "requeued"},
	})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, ErrInvalidPayload):
		return "INVALID_PAYLOAD", http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoPublisher):
		return "UNAVAILABLE", http.StatusServiceUnavailable
	case errors.Is(err, ErrPublishTimeout), errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT", http.StatusGatewayTimeout
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
