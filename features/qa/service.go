package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"catalogai/internal/answer"
	"catalogai/internal/retrieval"
	"catalogai/internal/settings"
)

var ErrInvalidRequest = errors.New("invalid question")

type Request struct {
	Question string `json:"question"`
	TenantID string `json:"tenant_id"`
	DocID    string `json:"doc_id,omitempty"`
	PageNum  *int   `json:"page_num,omitempty"`
	K        int    `json:"k,omitempty"`
}

type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.Record, error)
}

type Composer interface {
	Compose(ctx context.Context, question string, records []retrieval.Record, opts answer.Options) (*answer.Payload, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

// Defaults come from the process configuration and apply when neither the
// request nor the stored settings set a value.
type Defaults struct {
	TopK          int
	NumCandidates int
	Temperature   float32
}

type Service struct {
	retriever Retriever
	composer  Composer
	settings  SettingsService
	defaults  Defaults
}

func NewService(r Retriever, c Composer, s SettingsService, d Defaults) *Service {
	return &Service{retriever: r, composer: c, settings: s, defaults: d}
}

// Ask retrieves the records in scope for the question and composes the
// answer payload from them.
func (s *Service) Ask(ctx context.Context, req Request) (*answer.Payload, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	if req.K < 0 {
		return nil, fmt.Errorf("%w: k must not be negative", ErrInvalidRequest)
	}

	opts, k, numCandidates := s.resolve(ctx, req.K)

	records, err := s.retriever.Retrieve(ctx, retrieval.Query{
		Text:          question,
		TenantID:      req.TenantID,
		DocID:         req.DocID,
		PageNum:       req.PageNum,
		K:             k,
		NumCandidates: numCandidates,
	})
	if err != nil {
		return nil, err
	}

	return s.composer.Compose(ctx, question, records, opts)
}

func (s *Service) resolve(ctx context.Context, reqK int) (answer.Options, int, int) {
	opts := answer.Options{Policy: answer.CitationsAll, Temperature: s.defaults.Temperature}
	k, numCandidates := s.defaults.TopK, s.defaults.NumCandidates

	if s.settings != nil {
		set, err := s.settings.Get(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to load settings, using configured defaults", "error", err)
		} else if set != nil {
			if set.CitationPolicy != "" {
				opts.Policy = answer.CitationPolicy(set.CitationPolicy)
			}
			opts.Template = set.AnswerTemplate
			if set.TopK > 0 {
				k = set.TopK
			}
			if set.NumCandidates > 0 {
				numCandidates = set.NumCandidates
			}
		}
	}

	if reqK > 0 {
		k = reqK
	}
	return opts, k, max(numCandidates, k)
}
