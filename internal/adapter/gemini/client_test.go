package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"catalogai/internal/adapter/gemini"
	"catalogai/internal/config"
)

func newFakeGemini(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":batchEmbedContents"):
			var req struct {
				Requests []json.RawMessage `json:"requests"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			embeddings := make([]map[string]any, len(req.Requests))
			for i := range req.Requests {
				embeddings[i] = map[string]any{"values": []float32{float32(i), 0.5}}
			}
			json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
		case strings.HasSuffix(r.URL.Path, ":embedContent"):
			json.NewEncoder(w).Encode(map[string]any{
				"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
			})
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": "Matches:\n- Page 2: "}, {"text": "east facing"}},
					},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestEmbedder(t *testing.T) {
	ts := newFakeGemini(t)
	client := gemini.NewClient("test-key", option.WithEndpoint(ts.URL))
	defer client.Close()
	embedder := gemini.NewEmbedder(client, "gemini-embedding-001")
	ctx := context.Background()

	t.Run("Query", func(t *testing.T) {
		vec, err := embedder.EmbedQuery(ctx, "hello world")
		require.NoError(t, err)
		if assert.Len(t, vec, 3) {
			assert.Equal(t, float32(0.1), vec[0])
		}
	})

	t.Run("Documents Keep Order", func(t *testing.T) {
		vecs, err := embedder.EmbedDocuments(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		for i, v := range vecs {
			assert.Equal(t, float32(i), v[0])
		}
	})
}

func TestEmbedder_MissingAPIKey(t *testing.T) {
	embedder := gemini.NewEmbedder(gemini.NewClient(""), "gemini-embedding-001")

	vec, err := embedder.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, config.ErrMissingRequired)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Nil(t, vec)
}

func TestEmbedder_MissingModel(t *testing.T) {
	embedder := gemini.NewEmbedder(gemini.NewClient("key"), "")

	_, err := embedder.EmbedDocuments(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestGenerator(t *testing.T) {
	ts := newFakeGemini(t)
	client := gemini.NewClient("test-key", option.WithEndpoint(ts.URL))
	defer client.Close()

	out, err := gemini.NewGenerator(client, "gemini-1.5-flash").Generate(context.Background(), "prompt", 0)
	require.NoError(t, err)
	assert.Equal(t, "Matches:\n- Page 2: east facing", out)
}

func TestGenerator_MissingAPIKey(t *testing.T) {
	_, err := gemini.NewGenerator(gemini.NewClient(""), "gemini-1.5-flash").Generate(context.Background(), "prompt", 0)
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}
