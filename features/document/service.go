package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"catalogai/internal/config"
	"catalogai/internal/middleware"
	"catalogai/internal/pdfpages"
	"catalogai/internal/retrieval"
	"catalogai/internal/text"
	"catalogai/internal/worker"
)

const defaultChunkLimit = 100

type ChunkStore interface {
	DeleteDocument(ctx context.Context, tenantID, docID string) error
}

// ChunkLister is implemented by stores that can page through chunks
// without a query vector.
type ChunkLister interface {
	ListChunks(ctx context.Context, f retrieval.Filter, limit, offset int) ([]retrieval.Record, error)
}

type Options struct {
	// PDFRoot confines server-side PDF paths.
	PDFRoot string
	// ImageRoot holds page renders as <ImageRoot>/<doc_id>/page_<n>.png.
	ImageRoot string
}

type RegisterRequest struct {
	TenantID   string      `json:"tenant_id"`
	DocID      string      `json:"doc_id"`
	SourcePath string      `json:"source_path"`
	Pages      []text.Page `json:"pages"`
}

func (r RegisterRequest) Validate() error {
	if err := validateIDs(r.TenantID, r.DocID); err != nil {
		return err
	}
	if len(r.Pages) == 0 {
		return fmt.Errorf("%w: at least one page is required", ErrInvalidRequest)
	}
	seen := make(map[int]bool, len(r.Pages))
	for _, p := range r.Pages {
		if p.PageNum < 1 {
			return fmt.Errorf("%w: page_num must be >= 1, got %d", ErrInvalidRequest, p.PageNum)
		}
		if seen[p.PageNum] {
			return fmt.Errorf("%w: duplicate page_num %d", ErrInvalidRequest, p.PageNum)
		}
		seen[p.PageNum] = true
	}
	return nil
}

type PDFRequest struct {
	TenantID string `json:"tenant_id"`
	DocID    string `json:"doc_id"`
	Path     string `json:"path"`
}

func validateIDs(tenantID, docID string) error {
	if !validID.MatchString(tenantID) {
		return fmt.Errorf("%w: invalid tenant_id %q", ErrInvalidRequest, tenantID)
	}
	if !validID.MatchString(docID) {
		return fmt.Errorf("%w: invalid doc_id %q", ErrInvalidRequest, docID)
	}
	return nil
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo     Repository
	pub      EventPublisher
	ingester worker.Ingester
	store    ChunkStore
	opts     Options
}

// NewService wires the registry. With a nil publisher documents are
// ingested inline by the ingester.
func NewService(repo Repository, pub EventPublisher, ingester worker.Ingester, store ChunkStore, opts Options) *Service {
	return &Service{repo: repo, pub: pub, ingester: ingester, store: store, opts: opts}
}

// Register records the document as queued and hands its pages to the
// ingestion worker.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := &Document{
		TenantID:   req.TenantID,
		DocID:      req.DocID,
		SourcePath: req.SourcePath,
		Status:     StatusQueued,
	}
	if err := s.repo.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}

	task := worker.IngestTask{
		TenantID:      req.TenantID,
		DocID:         req.DocID,
		SourcePath:    req.SourcePath,
		Pages:         req.Pages,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}

	if s.pub == nil {
		return s.ingestInline(ctx, task)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	if err := s.pub.Publish(config.TopicIngestDocument, payload); err != nil {
		s.markFailed(ctx, doc, err)
		return nil, fmt.Errorf("publish %s: %w", config.TopicIngestDocument, err)
	}
	slog.InfoContext(ctx, "published ingest task", "doc_id", doc.DocID, "pages", len(req.Pages))
	return doc, nil
}

func (s *Service) ingestInline(ctx context.Context, task worker.IngestTask) (*Document, error) {
	if s.ingester == nil {
		return nil, errors.New("no ingester configured")
	}
	if err := s.ingester.Run(ctx, task); err != nil {
		s.markFailed(ctx, &Document{TenantID: task.TenantID, DocID: task.DocID}, err)
		return nil, err
	}
	return s.repo.Get(ctx, task.TenantID, task.DocID)
}

func (s *Service) markFailed(ctx context.Context, doc *Document, cause error) {
	if err := s.repo.UpdateStatus(ctx, doc.TenantID, doc.DocID, StatusFailed, cause.Error()); err != nil {
		slog.WarnContext(ctx, "failed to mark document failed", "doc_id", doc.DocID, "error", err)
	}
}

// RegisterPDF reads the text layer of a PDF under the configured root and
// registers its pages.
func (s *Service) RegisterPDF(ctx context.Context, req PDFRequest) (*Document, error) {
	if err := validateIDs(req.TenantID, req.DocID); err != nil {
		return nil, err
	}
	full, err := s.resolvePDF(req.Path)
	if err != nil {
		return nil, err
	}

	var imageDir string
	if s.opts.ImageRoot != "" {
		imageDir = filepath.Join(s.opts.ImageRoot, req.DocID)
	}
	pages, err := pdfpages.Load(full, pdfpages.Options{ImageDir: imageDir})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	slog.InfoContext(ctx, "pdf text layer loaded", "doc_id", req.DocID, "pages", len(pages))

	return s.Register(ctx, RegisterRequest{
		TenantID:   req.TenantID,
		DocID:      req.DocID,
		SourcePath: full,
		Pages:      pages,
	})
}

// UploadPDF stores an uploaded brochure as <tenant>/<doc>.pdf under the
// PDF directory, replacing any previous upload, and registers it.
func (s *Service) UploadPDF(ctx context.Context, tenantID, docID string, src io.Reader) (*Document, error) {
	if err := validateIDs(tenantID, docID); err != nil {
		return nil, err
	}
	rel := filepath.Join(tenantID, docID+".pdf")
	full, err := s.resolvePDF(rel)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	head := &prefixWriter{max: len(pdfMagic)}
	n, err := io.Copy(io.MultiWriter(tmp, hash, head), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if !bytes.Equal(head.buf, pdfMagic) {
		return nil, fmt.Errorf("%w: uploaded file is not a pdf", ErrInvalidRequest)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	slog.InfoContext(ctx, "pdf uploaded", "doc_id", docID, "bytes", n, "sha256", fmt.Sprintf("%x", hash.Sum(nil)))

	return s.RegisterPDF(ctx, PDFRequest{TenantID: tenantID, DocID: docID, Path: rel})
}

var pdfMagic = []byte("%PDF-")

// prefixWriter keeps the first max bytes written to it.
type prefixWriter struct {
	max int
	buf []byte
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	if need := w.max - len(w.buf); need > 0 {
		w.buf = append(w.buf, p[:min(need, len(p))]...)
	}
	return len(p), nil
}

func (s *Service) resolvePDF(p string) (string, error) {
	if s.opts.PDFRoot == "" {
		return "", fmt.Errorf("%w: pdf ingestion is disabled", ErrInvalidRequest)
	}
	rel := filepath.Clean(p)
	if p == "" || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path must be relative to the pdf directory", ErrInvalidRequest)
	}
	if !strings.EqualFold(filepath.Ext(rel), ".pdf") {
		return "", fmt.Errorf("%w: not a pdf: %s", ErrInvalidRequest, rel)
	}
	return filepath.Join(s.opts.PDFRoot, rel), nil
}

func (s *Service) List(ctx context.Context, tenantID string) ([]Document, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidRequest)
	}
	return s.repo.List(ctx, tenantID)
}

// Get returns the registry row and, when the store supports it, a page of
// the document's chunks.
func (s *Service) Get(ctx context.Context, tenantID, docID string, limit, offset int) (*Detail, error) {
	doc, err := s.repo.Get(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	detail := &Detail{Document: *doc, Chunks: []retrieval.Record{}}

	lister, ok := s.store.(ChunkLister)
	if !ok {
		return detail, nil
	}
	if limit <= 0 {
		limit = defaultChunkLimit
	}
	chunks, err := lister.ListChunks(ctx, retrieval.Filter{TenantID: tenantID, DocID: docID}, limit, max(offset, 0))
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "doc_id", docID)
		return detail, nil
	}
	if chunks != nil {
		detail.Chunks = chunks
	}
	return detail, nil
}

// Delete removes the document's vectors, then its registry row.
func (s *Service) Delete(ctx context.Context, tenantID, docID string) error {
	if err := s.store.DeleteDocument(ctx, tenantID, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return s.repo.Delete(ctx, tenantID, docID)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
