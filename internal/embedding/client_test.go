package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalogai/internal/config"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// flakyProvider encodes each text's numeric value into its vector and fails
// the first failures[key] calls for a batch keyed by its first text.
type flakyProvider struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (p *flakyProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	key := texts[0]
	p.calls[key]++
	fail := p.calls[key] <= p.failures[key]
	p.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("rate limited on %s", key)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		n, _ := strconv.Atoi(t)
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

func (p *flakyProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func fastOptions() Options {
	return Options{
		BatchSize:      8,
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Concurrency:    1,
	}
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func TestClient_EmbedBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Partitions Into Batches", func(t *testing.T) {
		p := new(MockProvider)
		in := texts(20)
		p.On("EmbedDocuments", mock.Anything, in[0:8]).Return(make([][]float32, 8), nil).Once()
		p.On("EmbedDocuments", mock.Anything, in[8:16]).Return(make([][]float32, 8), nil).Once()
		p.On("EmbedDocuments", mock.Anything, in[16:20]).Return(make([][]float32, 4), nil).Once()

		out, err := NewClient(p, fastOptions()).EmbedBatch(ctx, in)
		require.NoError(t, err)
		assert.Len(t, out, 20)
		p.AssertExpectations(t)
	})

	t.Run("Empty Input", func(t *testing.T) {
		p := new(MockProvider)
		out, err := NewClient(p, fastOptions()).EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
		p.AssertNotCalled(t, "EmbedDocuments", mock.Anything, mock.Anything)
	})

	t.Run("Transient Failures Below Ceiling Preserve Order", func(t *testing.T) {
		for _, concurrency := range []int{1, 3} {
			p := &flakyProvider{
				failures: map[string]int{"0": 2, "8": 4, "16": 1},
				calls:    map[string]int{},
			}
			opts := fastOptions()
			opts.Concurrency = concurrency

			out, err := NewClient(p, opts).EmbedBatch(ctx, texts(21))
			require.NoError(t, err)
			require.Len(t, out, 21)
			for i, v := range out {
				assert.Equal(t, []float32{float32(i)}, v)
			}
			assert.Equal(t, 5, p.calls["8"])
		}
	})

	t.Run("Exceeding Ceiling Is Fatal With No Partial Result", func(t *testing.T) {
		p := &flakyProvider{
			failures: map[string]int{"8": 5},
			calls:    map[string]int{},
		}
		out, err := NewClient(p, fastOptions()).EmbedBatch(ctx, texts(16))
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.Contains(t, err.Error(), "batch 1")
		assert.Nil(t, out)
		assert.Equal(t, 5, p.calls["8"])
	})

	t.Run("Length Mismatch Is Retried", func(t *testing.T) {
		p := new(MockProvider)
		in := texts(2)
		p.On("EmbedDocuments", mock.Anything, in).Return([][]float32{{1}}, nil).Once()
		p.On("EmbedDocuments", mock.Anything, in).Return([][]float32{{1}, {2}}, nil).Once()

		out, err := NewClient(p, fastOptions()).EmbedBatch(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1}, {2}}, out)
		p.AssertExpectations(t)
	})

	t.Run("Configuration Error Is Not Retried", func(t *testing.T) {
		p := new(MockProvider)
		in := texts(3)
		cfgErr := fmt.Errorf("%w: GEMINI_API_KEY", config.ErrMissingRequired)
		p.On("EmbedDocuments", mock.Anything, in).Return(nil, cfgErr).Once()

		_, err := NewClient(p, fastOptions()).EmbedBatch(ctx, in)
		assert.ErrorIs(t, err, config.ErrMissingRequired)
		assert.NotErrorIs(t, err, ErrRetriesExhausted)
		p.AssertNumberOfCalls(t, "EmbedDocuments", 1)
	})

	t.Run("Nil Provider", func(t *testing.T) {
		_, err := NewClient(nil, fastOptions()).EmbedBatch(ctx, texts(1))
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.ErrorIs(t, err, config.ErrMissingRequired)
	})
}

func TestClient_EmbedOne(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns First Success", func(t *testing.T) {
		p := new(MockProvider)
		p.On("EmbedQuery", mock.Anything, "q").Return(nil, errors.New("timeout")).Twice()
		p.On("EmbedQuery", mock.Anything, "q").Return([]float32{0.1, 0.2}, nil).Once()

		vec, err := NewClient(p, fastOptions()).EmbedOne(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2}, vec)
		p.AssertNumberOfCalls(t, "EmbedQuery", 3)
	})

	t.Run("Exhausted", func(t *testing.T) {
		p := new(MockProvider)
		p.On("EmbedQuery", mock.Anything, "q").Return(nil, errors.New("503"))

		opts := fastOptions()
		opts.MaxAttempts = 3
		_, err := NewClient(p, opts).EmbedOne(ctx, "q")
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		p.AssertNumberOfCalls(t, "EmbedQuery", 3)
	})

	t.Run("Cancelled Context Stops Retrying", func(t *testing.T) {
		p := new(MockProvider)
		p.On("EmbedQuery", mock.Anything, "q").Return(nil, errors.New("503"))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		opts := fastOptions()
		opts.InitialBackoff = time.Hour
		opts.MaxBackoff = time.Hour

		_, err := NewClient(p, opts).EmbedOne(cctx, "q")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(new(MockProvider), Options{})
	assert.Equal(t, DefaultOptions(), c.opts)
}
