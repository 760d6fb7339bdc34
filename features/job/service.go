package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"catalogai/internal/config"
)

var (
	ErrNotFound       = errors.New("failed job not found")
	ErrNoPublisher    = errors.New("no task publisher configured")
	ErrInvalidPayload = errors.New("job payload is not valid JSON")
	ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")
)

const defaultPublishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: defaultPublishTimeout}
}

// List returns failed jobs newest first, optionally for one tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return jobs, nil
	}
	filtered := jobs[:0]
	for _, j := range jobs {
		if j.TenantID == tenantID {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

// Retry re-publishes the original ingestion task and forgets the job.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if !json.Valid(job.Payload) {
		return fmt.Errorf("%w: job %s", ErrInvalidPayload, id)
	}
	if s.pub == nil {
		return ErrNoPublisher
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(config.TopicIngestDocument, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish retry: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.publishTimeout):
		return ErrPublishTimeout
	}
	s.logger.InfoContext(ctx, "failed job re-published", "job_id", id, "tenant_id", job.TenantID, "doc_id", job.DocID)

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
