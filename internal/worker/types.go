package worker

import (
	"context"

	"catalogai/internal/text"
)

// IngestTask is the body of an ingest.document message.
type IngestTask struct {
	TenantID      string      `json:"tenant_id"`
	DocID         string      `json:"doc_id"`
	SourcePath    string      `json:"source_path"`
	Pages         []text.Page `json:"pages"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// Ingester chunks, embeds and stores one document.
type Ingester interface {
	Run(ctx context.Context, task IngestTask) error
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}
