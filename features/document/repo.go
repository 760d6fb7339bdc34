package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const documentColumns = `tenant_id, doc_id, source_path, status, page_count, chunk_count, error, created_at, updated_at`

// Upsert registers a document, resetting an existing row to the new status.
func (r *PostgresRepo) Upsert(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (tenant_id, doc_id, source_path, status) VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, doc_id) DO UPDATE SET source_path = EXCLUDED.source_path, status = EXCLUDED.status, error = '', updated_at = NOW()
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, doc.TenantID, doc.DocID, doc.SourcePath, doc.Status).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, docID string) (*Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE tenant_id = $1 AND doc_id = $2`
	d := &Document{}
	err := r.db.QueryRowContext(ctx, query, tenantID, docID).Scan(
		&d.TenantID, &d.DocID, &d.SourcePath, &d.Status, &d.PageCount, &d.ChunkCount, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, docID)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE tenant_id = $1 ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.TenantID, &d.DocID, &d.SourcePath, &d.Status, &d.PageCount, &d.ChunkCount, &d.Error, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string) error {
	query := `UPDATE documents SET status = $1, error = $2, updated_at = NOW() WHERE tenant_id = $3 AND doc_id = $4`
	_, err := r.db.ExecContext(ctx, query, status, errMsg, tenantID, docID)
	return err
}

func (r *PostgresRepo) Complete(ctx context.Context, tenantID, docID string, pages, chunks int) error {
	query := `UPDATE documents SET status = $1, page_count = $2, chunk_count = $3, error = '', updated_at = NOW() WHERE tenant_id = $4 AND doc_id = $5`
	_, err := r.db.ExecContext(ctx, query, StatusCompleted, pages, chunks, tenantID, docID)
	return err
}

// Delete removes the registry row. Failed jobs for the document go with it
// through the foreign key.
func (r *PostgresRepo) Delete(ctx context.Context, tenantID, docID string) error {
	query := `DELETE FROM documents WHERE tenant_id = $1 AND doc_id = $2`
	res, err := r.db.ExecContext(ctx, query, tenantID, docID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tenantID, docID)
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}
