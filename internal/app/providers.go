package app

import (
	"fmt"

	"catalogai/internal/adapter/gemini"
	"catalogai/internal/adapter/openai"
	"catalogai/internal/answer"
	"catalogai/internal/config"
	"catalogai/internal/embedding"
)

// newProviders selects the embedding and generative backends. Both Gemini
// roles share one lazily built client.
func newProviders(cfg *config.Config) (embedding.Provider, answer.Generator, error) {
	var gc *gemini.Client
	geminiClient := func() *gemini.Client {
		if gc == nil {
			gc = gemini.NewClient(cfg.GeminiAPIKey)
		}
		return gc
	}
	oa := func(model string) openai.Config {
		return openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: model}
	}

	var emb embedding.Provider
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		emb = gemini.NewEmbedder(geminiClient(), cfg.EmbedModel)
	case config.ProviderOpenAI:
		emb = openai.NewEmbedder(oa(cfg.EmbedModel))
	default:
		return nil, nil, fmt.Errorf("%w: EMBED_PROVIDER=%q", config.ErrInvalidValue, cfg.EmbedProvider)
	}

	var gen answer.Generator
	switch cfg.GenProvider {
	case config.ProviderGemini:
		gen = gemini.NewGenerator(geminiClient(), cfg.GenModel)
	case config.ProviderOpenAI:
		gen = openai.NewGenerator(oa(cfg.GenModel))
	default:
		return nil, nil, fmt.Errorf("%w: GEN_PROVIDER=%q", config.ErrInvalidValue, cfg.GenProvider)
	}
	return emb, gen, nil
}
