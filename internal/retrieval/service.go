package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"catalogai/internal/middleware"
)

var (
	// ErrContractViolation rejects a malformed query before any external call.
	ErrContractViolation = errors.New("invalid retrieval query")
	// ErrRetrieval marks a failure of the embedding or search stage.
	ErrRetrieval = errors.New("retrieval failed")
)

// DefaultNumCandidates is the ANN candidate pool used when a query leaves
// it unset.
const DefaultNumCandidates = 100

type Query struct {
	Text          string
	TenantID      string
	DocID         string
	PageNum       *int
	K             int
	NumCandidates int
}

func (q Query) Validate() error {
	if q.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrContractViolation)
	}
	if q.PageNum != nil && q.DocID == "" {
		return fmt.Errorf("%w: page_num requires doc_id", ErrContractViolation)
	}
	if q.PageNum != nil && *q.PageNum < 1 {
		return fmt.Errorf("%w: page_num must be >= 1", ErrContractViolation)
	}
	if q.K <= 0 {
		return fmt.Errorf("%w: k must be > 0, got %d", ErrContractViolation, q.K)
	}
	if q.NumCandidates != 0 && q.NumCandidates < q.K {
		return fmt.Errorf("%w: num_candidates (%d) must be >= k (%d)", ErrContractViolation, q.NumCandidates, q.K)
	}
	return nil
}

func (q Query) Filter() Filter {
	return Filter{TenantID: q.TenantID, DocID: q.DocID, PageNum: q.PageNum}
}

type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, req SearchRequest) ([]Record, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, logger: l}
}

// Retrieve embeds the query text and returns at most K records matching
// the query scope, highest score first.
func (s *Service) Retrieve(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.NumCandidates == 0 {
		q.NumCandidates = max(DefaultNumCandidates, q.K)
	}

	start := time.Now()
	var records []Record
	var err error

	defer func() {
		if s.logger != nil && err == nil {
			s.logger.Log(QueryLogEntry{
				Query:         q.Text,
				TenantID:      q.TenantID,
				DocID:         q.DocID,
				PageNum:       q.PageNum,
				K:             q.K,
				NumResults:    len(records),
				Duration:      time.Since(start),
				CorrelationID: middleware.GetCorrelationID(ctx),
			})
		}
	}()

	vec, err := s.embedder.EmbedOne(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrieval, err)
	}

	filter := q.Filter()
	found, err := s.store.Search(ctx, SearchRequest{
		Vector:        vec,
		Filter:        filter,
		Limit:         q.K,
		NumCandidates: q.NumCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrRetrieval, err)
	}

	records = make([]Record, 0, len(found))
	for _, r := range found {
		if !filter.Matches(r) {
			slog.WarnContext(ctx, "store returned record outside query scope",
				"doc_id", r.DocID, "page_num", r.PageNum, "chunk_index", r.ChunkIndex)
			continue
		}
		records = append(records, r)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
	if len(records) > q.K {
		records = records[:q.K]
	}

	return records, nil
}
