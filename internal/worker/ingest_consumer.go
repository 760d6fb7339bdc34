package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"catalogai/features/job"
	"catalogai/internal/middleware"
)

const (
	handlerName = "ingest-worker"

	statusFailed = "failed"

	defaultIngestTimeout = 10 * time.Minute
)

// IngestConsumer processes ingest.document messages. Failures are not
// requeued: the embedding client already retries, so a failed task is
// stored as a failed job for a manual retry.
type IngestConsumer struct {
	ingester Ingester
	jobs     job.Repository
	status   StatusUpdater
	timeout  time.Duration
}

func NewIngestConsumer(i Ingester, j job.Repository, s StatusUpdater) *IngestConsumer {
	return &IngestConsumer{ingester: i, jobs: j, status: s, timeout: defaultIngestTimeout}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task IngestTask
	err := json.Unmarshal(m.Body, &task)

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid json", "error", err)
		return nil
	}
	if task.TenantID == "" || task.DocID == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "tenant_id", task.TenantID, "doc_id", task.DocID)
		return nil
	}
	ctx = middleware.WithTenantID(ctx, task.TenantID)

	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	if err := h.ingester.Run(runCtx, task); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "doc_id", task.DocID, "error", err)
		h.recordFailure(ctx, task, m, err)
		return nil
	}

	slog.InfoContext(ctx, "document ingested", "doc_id", task.DocID, "pages", len(task.Pages), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (h *IngestConsumer) recordFailure(ctx context.Context, task IngestTask, m *nsq.Message, cause error) {
	if err := h.status.UpdateStatus(ctx, task.TenantID, task.DocID, statusFailed, cause.Error()); err != nil {
		slog.WarnContext(ctx, "failed to mark document failed", "doc_id", task.DocID, "error", err)
	}

	failed := &job.Job{
		TenantID: task.TenantID,
		DocID:    task.DocID,
		Handler:  handlerName,
		Payload:  json.RawMessage(m.Body),
		Error:    cause.Error(),
		Retries:  max(int(m.Attempts)-1, 0),
	}
	if err := h.jobs.Save(ctx, failed); err != nil {
		slog.ErrorContext(ctx, "failed to save failed job", "doc_id", task.DocID, "error", err)
	}
}
