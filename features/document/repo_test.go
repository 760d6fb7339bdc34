package document_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogai/features/document"
)

var documentColumns = []string{"tenant_id", "doc_id", "source_path", "status", "page_count", "chunk_count", "error", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*document.PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return document.NewPostgresRepo(db), mock
}

func TestPostgresRepo_Upsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO documents \(tenant_id, doc_id, source_path, status\) VALUES \(\$1, \$2, \$3, \$4\) ON CONFLICT \(tenant_id, doc_id\) DO UPDATE`).
		WithArgs("t1", "green-acres", "green-acres.pdf", document.StatusQueued).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	doc := &document.Document{TenantID: "t1", DocID: "green-acres", SourcePath: "green-acres.pdf", Status: document.StatusQueued}
	require.NoError(t, repo.Upsert(context.Background(), doc))
	assert.Equal(t, now, doc.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	query := regexp.QuoteMeta("SELECT tenant_id, doc_id, source_path, status, page_count, chunk_count, error, created_at, updated_at FROM documents WHERE tenant_id = $1 AND doc_id = $2")

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()
		mock.ExpectQuery(query).
			WithArgs("t1", "green-acres").
			WillReturnRows(sqlmock.NewRows(documentColumns).AddRow("t1", "green-acres", "green-acres.pdf", "completed", 12, 30, "", now, now))

		doc, err := repo.Get(context.Background(), "t1", "green-acres")
		require.NoError(t, err)
		assert.Equal(t, 12, doc.PageCount)
		assert.Equal(t, 30, doc.ChunkCount)
		assert.Equal(t, document.StatusCompleted, doc.Status)
	})

	t.Run("Not Found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(query).WithArgs("t1", "nope").WillReturnRows(sqlmock.NewRows(documentColumns))

		_, err := repo.Get(context.Background(), "t1", "nope")
		assert.ErrorIs(t, err, document.ErrNotFound)
	})

	t.Run("DB Error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(query).WillReturnError(errors.New("conn reset"))

		_, err := repo.Get(context.Background(), "t1", "x")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, document.ErrNotFound)
	})
}

func TestPostgresRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE tenant_id = $1 ORDER BY updated_at DESC")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("t1", "b", "b.pdf", "queued", 0, 0, "", now, now).
			AddRow("t1", "a", "a.pdf", "completed", 3, 4, "", now, now))

	docs, err := repo.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].DocID)
}

func TestPostgresRepo_StatusUpdates(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1, error = $2, updated_at = NOW() WHERE tenant_id = $3 AND doc_id = $4")).
		WithArgs("failed", "boom", "t1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1, page_count = $2, chunk_count = $3, error = '', updated_at = NOW() WHERE tenant_id = $4 AND doc_id = $5")).
		WithArgs("completed", 4, 9, "t1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "t1", "d1", "failed", "boom"))
	require.NoError(t, repo.Complete(context.Background(), "t1", "d1", 4, 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Delete(t *testing.T) {
	query := regexp.QuoteMeta("DELETE FROM documents WHERE tenant_id = $1 AND doc_id = $2")

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(query).WithArgs("t1", "d1").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Delete(context.Background(), "t1", "d1"))
	})

	t.Run("Not Found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(query).WithArgs("t1", "d1").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.Delete(context.Background(), "t1", "d1"), document.ErrNotFound)
	})
}

func TestPostgresRepo_Count(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
