package document_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"catalogai/features/document"
	"catalogai/internal/retrieval"
	"catalogai/internal/vector"
	"catalogai/internal/worker"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Upsert(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}
func (m *MockRepo) Get(ctx context.Context, tenantID, docID string) (*document.Document, error) {
	args := m.Called(ctx, tenantID, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}
func (m *MockRepo) List(ctx context.Context, tenantID string) ([]document.Document, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}
func (m *MockRepo) UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string) error {
	args := m.Called(ctx, tenantID, docID, status, errMsg)
	return args.Error(0)
}
func (m *MockRepo) Complete(ctx context.Context, tenantID, docID string, pages, chunks int) error {
	args := m.Called(ctx, tenantID, docID, pages, chunks)
	return args.Error(0)
}
func (m *MockRepo) Delete(ctx context.Context, tenantID, docID string) error {
	args := m.Called(ctx, tenantID, docID)
	return args.Error(0)
}
func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockIngester struct{ mock.Mock }

func (m *MockIngester) Run(ctx context.Context, task worker.IngestTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockStore writes chunks; it cannot list them.
type MockStore struct{ mock.Mock }

func (m *MockStore) DeleteDocument(ctx context.Context, tenantID, docID string) error {
	args := m.Called(ctx, tenantID, docID)
	return args.Error(0)
}
func (m *MockStore) InsertChunks(ctx context.Context, docs []vector.Document) error {
	args := m.Called(ctx, docs)
	return args.Error(0)
}

type MockListingStore struct{ MockStore }

func (m *MockListingStore) ListChunks(ctx context.Context, f retrieval.Filter, limit, offset int) ([]retrieval.Record, error) {
	args := m.Called(ctx, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Record), args.Error(1)
}
