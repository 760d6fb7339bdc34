package settings

import (
	"context"
	"errors"
	"fmt"

	"catalogai/internal/answer"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are runtime answer and retrieval defaults editable over HTTP.
// Zero values mean "use the process configuration".
type Settings struct {
	ID             int    `json:"-"`
	CitationPolicy string `json:"citation_policy"`
	AnswerTemplate string `json:"answer_template"`
	TopK           int    `json:"top_k"`
	NumCandidates  int    `json:"num_candidates"`
}

func (s *Settings) Validate() error {
	switch answer.CitationPolicy(s.CitationPolicy) {
	case "", answer.CitationsAll, answer.CitationsMatched:
	default:
		return fmt.Errorf("%w: citation_policy must be %q or %q", ErrInvalidSettings, answer.CitationsAll, answer.CitationsMatched)
	}
	if s.TopK < 0 || s.NumCandidates < 0 {
		return fmt.Errorf("%w: top_k and num_candidates must not be negative", ErrInvalidSettings)
	}
	if s.TopK > 0 && s.NumCandidates > 0 && s.NumCandidates < s.TopK {
		return fmt.Errorf("%w: num_candidates must be >= top_k", ErrInvalidSettings)
	}
	if s.AnswerTemplate != "" {
		if _, err := answer.RenderPrompt(s.AnswerTemplate, "", ""); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}
