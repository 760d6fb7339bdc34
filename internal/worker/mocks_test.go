package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"catalogai/features/job"
	"catalogai/internal/worker"
)

type MockIngester struct{ mock.Mock }

func (m *MockIngester) Run(ctx context.Context, task worker.IngestTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type MockUpdater struct{ mock.Mock }

func (m *MockUpdater) UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string) error {
	args := m.Called(ctx, tenantID, docID, status, errMsg)
	return args.Error(0)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
func (m *MockJobRepo) List(ctx context.Context) ([]job.Job, error)          { return nil, nil }
func (m *MockJobRepo) Get(ctx context.Context, id string) (*job.Job, error) { return nil, nil }
func (m *MockJobRepo) Delete(ctx context.Context, id string) error          { return nil }
func (m *MockJobRepo) Count(ctx context.Context) (int, error)               { return 0, nil }
