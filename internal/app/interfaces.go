package app

import (
	"context"

	"catalogai/internal/retrieval"
	"catalogai/internal/vector"
)

// VectorStore is the chunk index every backend provides.
type VectorStore interface {
	InsertChunks(ctx context.Context, docs []vector.Document) error
	DeleteDocument(ctx context.Context, tenantID, docID string) error
	Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Record, error)
	CountChunks(ctx context.Context) (int, error)
}

// SchemaEnsurer is implemented by backends that manage their own schema.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}
