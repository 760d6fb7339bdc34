package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"catalogai/internal/middleware"
)

// Counter is anything that can report a row or object count.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type ChunkCounter interface {
	CountChunks(ctx context.Context) (int, error)
}

type Handler struct {
	documents Counter
	jobs      Counter
	chunks    ChunkCounter
}

func NewHandler(documents, jobs Counter, chunks ChunkCounter) *Handler {
	return &Handler{documents: documents, jobs: jobs, chunks: chunks}
}

type StatsResponse struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	FailedJobs int `json:"failed_jobs"`
}

// Collect runs the three counts concurrently.
func (h *Handler) Collect(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		if resp.Documents, err = h.documents.Count(gctx); err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if resp.FailedJobs, err = h.jobs.Count(gctx); err != nil {
			return fmt.Errorf("count failed jobs: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if resp.Chunks, err = h.chunks.CountChunks(gctx); err != nil {
			return fmt.Errorf("count chunks: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.Collect(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to collect stats", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
