package qa

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"catalogai/internal/answer"
	"catalogai/internal/config"
	"catalogai/internal/middleware"
	"catalogai/internal/retrieval"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.TenantID != "" {
		ctx = middleware.WithTenantID(ctx, req.TenantID)
	}

	payload, err := h.service.Ask(ctx, req)
	if err != nil {
		code, status := classify(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "ask failed", "error", err, "code", code)
		}
		h.writeError(ctx, w, code, err.Error(), status)
		return
	}

	slog.InfoContext(ctx, "question answered", "doc_id", req.DocID, "retrieved", len(payload.Retrieved), "dimension", payload.Dimension != nil)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": payload}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// classify maps a pipeline error to its stage error code.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, retrieval.ErrContractViolation):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, config.ErrMissingRequired), errors.Is(err, answer.ErrInvalidTemplate):
		return "CONFIG_ERROR", http.StatusInternalServerError
	case errors.Is(err, retrieval.ErrRetrieval):
		return "RETRIEVAL_ERROR", http.StatusServiceUnavailable
	case errors.Is(err, answer.ErrGeneration):
		return "GENERATION_ERROR", http.StatusBadGateway
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
