package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"catalogai/internal/text"
	"catalogai/internal/vector"
	"catalogai/internal/worker"
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkWriter interface {
	DeleteDocument(ctx context.Context, tenantID, docID string) error
	InsertChunks(ctx context.Context, docs []vector.Document) error
}

type StatusRecorder interface {
	UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string) error
	Complete(ctx context.Context, tenantID, docID string, pages, chunks int) error
}

// Summary reports what one ingestion stored.
type Summary struct {
	DocID    string        `json:"doc_id"`
	Pages    int           `json:"pages"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"-"`
}

// Pipeline turns extracted pages into stored, embedded chunks.
type Pipeline struct {
	chunking text.Options
	embedder BatchEmbedder
	store    ChunkWriter
	status   StatusRecorder
}

func NewPipeline(chunking text.Options, e BatchEmbedder, s ChunkWriter, r StatusRecorder) *Pipeline {
	return &Pipeline{chunking: chunking, embedder: e, store: s, status: r}
}

// Run satisfies worker.Ingester.
func (p *Pipeline) Run(ctx context.Context, task worker.IngestTask) error {
	_, err := p.Ingest(ctx, task)
	return err
}

// Ingest replaces the stored chunks of one document. All chunks are
// embedded before anything is written, so a failed embedding leaves the
// previous chunks searchable.
func (p *Pipeline) Ingest(ctx context.Context, task worker.IngestTask) (*Summary, error) {
	start := time.Now()

	if err := p.status.UpdateStatus(ctx, task.TenantID, task.DocID, StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	chunks, err := text.ChunkPages(task.Pages, p.chunking)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]vector.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vector.Document{
			TenantID:   task.TenantID,
			DocID:      task.DocID,
			PageNum:    c.PageNum,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Embedding:  vectors[i],
			ImageRef:   c.ImageRef,
			SourceRef:  task.SourcePath,
		}
	}

	if err := p.store.DeleteDocument(ctx, task.TenantID, task.DocID); err != nil {
		return nil, fmt.Errorf("delete previous chunks: %w", err)
	}
	if len(docs) > 0 {
		if err := p.store.InsertChunks(ctx, docs); err != nil {
			return nil, fmt.Errorf("insert chunks: %w", err)
		}
	}

	if err := p.status.Complete(ctx, task.TenantID, task.DocID, len(task.Pages), len(docs)); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}

	summary := &Summary{DocID: task.DocID, Pages: len(task.Pages), Chunks: len(docs), Duration: time.Since(start)}
	slog.InfoContext(ctx, "ingestion complete",
		"doc_id", task.DocID, "pages", summary.Pages, "chunks", summary.Chunks, "duration_ms", summary.Duration.Milliseconds())
	return summary, nil
}
