package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCounter struct{ mock.Mock }

func (m *MockCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockChunkCounter struct{ mock.Mock }

func (m *MockChunkCounter) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(docs, jobs *MockCounter, chunks *MockChunkCounter)
		wantStatus int
		wantError  string
	}{
		{
			name: "Success",
			setupMocks: func(docs, jobs *MockCounter, chunks *MockChunkCounter) {
				docs.On("Count", mock.Anything).Return(3, nil)
				jobs.On("Count", mock.Anything).Return(1, nil)
				chunks.On("CountChunks", mock.Anything).Return(42, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "Document Count Error",
			setupMocks: func(docs, jobs *MockCounter, chunks *MockChunkCounter) {
				docs.On("Count", mock.Anything).Return(0, errors.New("db error"))
				jobs.On("Count", mock.Anything).Return(1, nil).Maybe()
				chunks.On("CountChunks", mock.Anything).Return(42, nil).Maybe()
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "count documents",
		},
		{
			name: "Job Count Error",
			setupMocks: func(docs, jobs *MockCounter, chunks *MockChunkCounter) {
				docs.On("Count", mock.Anything).Return(3, nil).Maybe()
				jobs.On("Count", mock.Anything).Return(0, errors.New("db error"))
				chunks.On("CountChunks", mock.Anything).Return(42, nil).Maybe()
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "count failed jobs",
		},
		{
			name: "Chunk Count Error",
			setupMocks: func(docs, jobs *MockCounter, chunks *MockChunkCounter) {
				docs.On("Count", mock.Anything).Return(3, nil).Maybe()
				jobs.On("Count", mock.Anything).Return(1, nil).Maybe()
				chunks.On("CountChunks", mock.Anything).Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "count chunks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, jobs, chunks := new(MockCounter), new(MockCounter), new(MockChunkCounter)
			tt.setupMocks(docs, jobs, chunks)

			h := NewHandler(docs, jobs, chunks)
			w := httptest.NewRecorder()
			h.GetStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))

			if tt.wantError != "" {
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
				assert.Contains(t, errMap["message"], tt.wantError)
				return
			}
			data := body["data"].(map[string]interface{})
			assert.EqualValues(t, 3, data["documents"])
			assert.EqualValues(t, 42, data["chunks"])
			assert.EqualValues(t, 1, data["failed_jobs"])
		})
	}
}
