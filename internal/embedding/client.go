package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"catalogai/internal/config"
)

var (
	// ErrRetriesExhausted is returned when a batch or query still fails after
	// the configured number of attempts.
	ErrRetriesExhausted = errors.New("embedding retries exhausted")

	// ErrNotConfigured marks a missing provider, credential or model. It is
	// never retried.
	ErrNotConfigured = fmt.Errorf("embedding service not configured: %w", config.ErrMissingRequired)
)

// Provider is the boundary to an external embedding service.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Concurrency is the number of batches embedded in parallel.
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		BatchSize:      8,
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		Concurrency:    1,
	}
}

// OptionsFromConfig maps the EMBED_* settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.BatchSize = cfg.EmbedBatchSize
	opts.MaxAttempts = cfg.EmbedMaxAttempts
	opts.InitialBackoff = cfg.EmbedBackoff()
	opts.Concurrency = cfg.EmbedConcurrency
	return opts
}

// Client batches texts for a Provider and retries failed calls with
// exponential backoff.
type Client struct {
	provider Provider
	opts     Options
}

func NewClient(provider Provider, opts Options) *Client {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = def.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = max(def.MaxBackoff, opts.InitialBackoff)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Client{provider: provider, opts: opts}
}

// EmbedBatch returns one vector per input text, in input order. If any
// batch exhausts its retries the whole call fails and no vectors are
// returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.provider == nil {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	size := c.opts.BatchSize
	numBatches := (len(texts) + size - 1) / size
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for b := 0; b < numBatches; b++ {
		start := b * size
		end := min(start+size, len(texts))
		g.Go(func() error {
			batch := texts[start:end]
			vecs, err := withRetry(gctx, c.policy(), func() ([][]float32, error) {
				vecs, err := c.provider.EmbedDocuments(gctx, batch)
				if err != nil {
					return nil, err
				}
				if len(vecs) != len(batch) {
					return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(batch))
				}
				return vecs, nil
			}, slog.Int("batch", b), slog.Int("size", len(batch)))
			if err != nil {
				return fmt.Errorf("batch %d: %w", b, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedded batch", "texts", len(texts), "batches", numBatches)
	return out, nil
}

// EmbedOne embeds a single query text with the same retry policy.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if c.provider == nil {
		return nil, ErrNotConfigured
	}
	return withRetry(ctx, c.policy(), func() ([]float32, error) {
		vec, err := c.provider.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, errors.New("empty embedding received")
		}
		return vec, nil
	}, slog.Int("length", len(text)))
}

func (c *Client) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(c.opts.MaxAttempts-1))
}

func withRetry[T any](ctx context.Context, policy backoff.BackOff, op func() (T, error), attrs ...any) (T, error) {
	attempt := 0
	res, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		res, err := op()
		if err != nil && errors.Is(err, config.ErrMissingRequired) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		args := append([]any{"attempt", attempt, "wait", wait, "error", err}, attrs...)
		slog.WarnContext(ctx, "embedding call failed, retrying", args...)
	})
	if err != nil {
		var zero T
		if errors.Is(err, config.ErrMissingRequired) || ctx.Err() != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
	}
	return res, nil
}
