package document

import (
	"context"
	"errors"
	"regexp"
	"time"

	"catalogai/internal/retrieval"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrInvalidRequest = errors.New("invalid document request")
)

// ids end up in vector filters and image directories.
var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Document is the registry row for one ingested brochure.
type Document struct {
	TenantID   string    `json:"tenant_id"`
	DocID      string    `json:"doc_id"`
	SourcePath string    `json:"source_path"`
	Status     string    `json:"status"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Detail is a document plus a page of its stored chunks.
type Detail struct {
	Document
	Chunks []retrieval.Record `json:"chunks"`
}

type Repository interface {
	Upsert(ctx context.Context, doc *Document) error
	Get(ctx context.Context, tenantID, docID string) (*Document, error)
	List(ctx context.Context, tenantID string) ([]Document, error)
	UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string) error
	Complete(ctx context.Context, tenantID, docID string, pages, chunks int) error
	Delete(ctx context.Context, tenantID, docID string) error
	Count(ctx context.Context) (int, error)
}
