package document_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalogai/features/document"
	"catalogai/internal/embedding"
	"catalogai/internal/text"
	"catalogai/internal/vector"
	"catalogai/internal/worker"
)

var chunking = text.Options{Size: 500, Overlap: 50, Strategy: text.StrategyWindow}

func ingestTask() worker.IngestTask {
	return worker.IngestTask{
		TenantID:   "t1",
		DocID:      "green-acres",
		SourcePath: "/data/pdfs/green-acres.pdf",
		Pages: []text.Page{
			{PageNum: 1, Text: "M.BEDROOM\n10'6\" x 12'0\"", ImageRef: "img/page_1.png"},
			{PageNum: 2, Text: "   ", ImageRef: "img/page_2.png"},
		},
	}
}

func TestPipeline_Ingest(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	repo := new(MockRepo)
	p := document.NewPipeline(chunking, embedder, store, repo)

	task := ingestTask()
	texts := []string{"M.BEDROOM\n10'6\" x 12'0\"", text.PlaceholderText(2)}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	repo.On("UpdateStatus", mock.Anything, "t1", "green-acres", document.StatusProcessing, "").Return(nil).Once()
	embedder.On("EmbedBatch", mock.Anything, texts).Return(vectors, nil).Once()
	store.On("DeleteDocument", mock.Anything, "t1", "green-acres").Return(nil).Once()
	store.On("InsertChunks", mock.Anything, []vector.Document{
		{TenantID: "t1", DocID: "green-acres", PageNum: 1, ChunkIndex: 0, Text: texts[0], Embedding: vectors[0], ImageRef: "img/page_1.png", SourceRef: "/data/pdfs/green-acres.pdf"},
		{TenantID: "t1", DocID: "green-acres", PageNum: 2, ChunkIndex: 0, Text: texts[1], Embedding: vectors[1], ImageRef: "img/page_2.png", SourceRef: "/data/pdfs/green-acres.pdf"},
	}).Return(nil).Once()
	repo.On("Complete", mock.Anything, "t1", "green-acres", 2, 2).Return(nil).Once()

	summary, err := p.Ingest(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 2, summary.Chunks)

	embedder.AssertExpectations(t)
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestPipeline_EmbeddingFailureKeepsPreviousChunks(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	repo := new(MockRepo)
	p := document.NewPipeline(chunking, embedder, store, repo)

	repo.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, embedding.ErrRetriesExhausted)

	err := p.Run(context.Background(), ingestTask())
	assert.ErrorIs(t, err, embedding.ErrRetriesExhausted)

	store.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "InsertChunks", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Errors(t *testing.T) {
	t.Run("Invalid Chunking", func(t *testing.T) {
		repo := new(MockRepo)
		embedder := new(MockEmbedder)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		p := document.NewPipeline(text.Options{Size: 10, Overlap: 10}, embedder, new(MockStore), repo)

		err := p.Run(context.Background(), ingestTask())
		assert.ErrorIs(t, err, text.ErrInvalidChunking)
		embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
	})

	t.Run("Vector Count Mismatch", func(t *testing.T) {
		repo := new(MockRepo)
		embedder := new(MockEmbedder)
		store := new(MockStore)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)
		p := document.NewPipeline(chunking, embedder, store, repo)

		err := p.Run(context.Background(), ingestTask())
		assert.Error(t, err)
		store.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Insert Failure", func(t *testing.T) {
		repo := new(MockRepo)
		embedder := new(MockEmbedder)
		store := new(MockStore)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{1}, {2}}, nil)
		store.On("DeleteDocument", mock.Anything, "t1", "green-acres").Return(nil)
		store.On("InsertChunks", mock.Anything, mock.Anything).Return(errors.New("weaviate down"))
		p := document.NewPipeline(chunking, embedder, store, repo)

		err := p.Run(context.Background(), ingestTask())
		assert.ErrorContains(t, err, "weaviate down")
		repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Status Failure", func(t *testing.T) {
		repo := new(MockRepo)
		embedder := new(MockEmbedder)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))
		p := document.NewPipeline(chunking, embedder, new(MockStore), repo)

		assert.Error(t, p.Run(context.Background(), ingestTask()))
		embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
	})
}
