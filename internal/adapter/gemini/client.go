package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"catalogai/internal/config"
)

// Client lazily builds one genai client shared by the embedder and the
// generator. A missing API key surfaces as a configuration error on first
// use rather than at startup.
type Client struct {
	apiKey     string
	clientOpts []option.ClientOption

	mu     sync.RWMutex
	client *genai.Client
}

func NewClient(apiKey string, opts ...option.ClientOption) *Client {
	return &Client{apiKey: apiKey, clientOpts: opts}
}

func (c *Client) get(ctx context.Context) (*genai.Client, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", config.ErrMissingRequired)
	}

	c.mu.RLock()
	if c.client != nil {
		defer c.mu.RUnlock()
		return c.client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if c.client != nil {
		return c.client, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
