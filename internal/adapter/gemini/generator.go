package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"catalogai/internal/config"
)

type Generator struct {
	client *Client
	model  string
}

func NewGenerator(client *Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Generate runs a single-turn completion and joins the text parts of the
// first candidate.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("%w: GEN_MODEL", config.ErrMissingRequired)
	}
	client, err := g.client.get(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(g.model)
	model.SetTemperature(temperature)

	slog.DebugContext(ctx, "generating answer", "model", g.model, "prompt_length", len(prompt))
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
