package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"

	"catalogai/internal/config"
)

type Embedder struct {
	client *Client
	model  string
}

func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	em, err := e.embeddingModel(ctx, genai.TaskTypeRetrievalDocument)
	if err != nil {
		return nil, err
	}

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	slog.DebugContext(ctx, "embedding documents", "model", e.model, "count", len(texts))
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch embed: %w", err)
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		if emb == nil {
			return nil, errors.New("nil embedding in batch response")
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em, err := e.embeddingModel(ctx, genai.TaskTypeRetrievalQuery)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding query", "model", e.model, "length", len(text))
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("empty embedding received")
	}
	return res.Embedding.Values, nil
}

func (e *Embedder) embeddingModel(ctx context.Context, task genai.TaskType) (*genai.EmbeddingModel, error) {
	if e.model == "" {
		return nil, fmt.Errorf("%w: EMBED_MODEL", config.ErrMissingRequired)
	}
	client, err := e.client.get(ctx)
	if err != nil {
		return nil, err
	}
	em := client.EmbeddingModel(e.model)
	em.TaskType = task
	return em, nil
}
