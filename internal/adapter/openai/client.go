package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"catalogai/internal/config"
)

// Config addresses any OpenAI-compatible endpoint (OpenAI, Groq,
// OpenRouter, a local Ollama).
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func newLLM(cfg Config, opts ...openai.Option) (*openai.LLM, error) {
	key := strings.TrimPrefix(cfg.APIKey, "Bearer ")
	if key == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", config.ErrMissingRequired)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model", config.ErrMissingRequired)
	}

	all := []openai.Option{openai.WithToken(key)}
	if cfg.BaseURL != "" {
		all = append(all, openai.WithBaseURL(cfg.BaseURL))
	}
	all = append(all, opts...)
	return openai.New(all...)
}

// Embedder adapts langchaingo's embedder to the embedding.Provider
// boundary. The underlying client is built per call so a missing key is
// reported at first use.
type Embedder struct {
	cfg Config
}

func NewEmbedder(cfg Config) *Embedder {
	return &Embedder{cfg: cfg}
}

func (e *Embedder) impl() (*embeddings.EmbedderImpl, error) {
	llm, err := newLLM(e.cfg, openai.WithEmbeddingModel(e.cfg.Model))
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	emb, err := e.impl()
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "embedding documents", "model", e.cfg.Model, "count", len(texts))
	return emb.EmbedDocuments(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	emb, err := e.impl()
	if err != nil {
		return nil, err
	}
	return emb.EmbedQuery(ctx, text)
}

type Generator struct {
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

func (g *Generator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	llm, err := newLLM(g.cfg, openai.WithModel(g.cfg.Model))
	if err != nil {
		return "", err
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	slog.DebugContext(ctx, "generating answer", "model", g.cfg.Model, "prompt_length", len(prompt))
	res, err := llm.GenerateContent(ctx, msgs, llms.WithTemperature(float64(temperature)))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}
