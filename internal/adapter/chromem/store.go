package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"catalogai/internal/retrieval"
	"catalogai/internal/vector"
)

// chunkNamespace seeds deterministic chunk IDs so re-ingesting a page
// overwrites its previous vectors.
var chunkNamespace = uuid.MustParse("6f1d8a52-3c0e-4b8e-9a57-0b7f3f6a9c21")

var errNoEmbeddingFunc = errors.New("chromem store only accepts precomputed embeddings")

// Store is an embedded, exhaustive-search vector store for local runs and
// tests.
type Store struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// NewStore opens a persistent DB at path, or an in-memory one when path
// is empty.
func NewStore(path string, compress bool, collection string) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	coll, err := db.GetOrCreateCollection(collection, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	return &Store{db: db, coll: coll}, nil
}

func chunkID(d vector.Document) string {
	key := fmt.Sprintf("%s/%s/%d/%d", d.TenantID, d.DocID, d.PageNum, d.ChunkIndex)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// where renders the equality filter as chromem metadata, which is all
// strings.
func where(f retrieval.Filter) map[string]string {
	eq := f.Equality()
	w := make(map[string]string, len(eq))
	for k, v := range eq {
		w[k] = fmt.Sprint(v)
	}
	return w
}

func (s *Store) InsertChunks(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, chromem.Document{
			ID: chunkID(d),
			Metadata: map[string]string{
				"tenant_id":   d.TenantID,
				"doc_id":      d.DocID,
				"page_num":    strconv.Itoa(d.PageNum),
				"chunk_index": strconv.Itoa(d.ChunkIndex),
				"image_ref":   d.ImageRef,
				"source_ref":  d.SourceRef,
			},
			Embedding: d.Embedding,
			Content:   d.Text,
		})
	}
	return s.coll.AddDocuments(ctx, batch, runtime.NumCPU())
}

func (s *Store) DeleteDocument(ctx context.Context, tenantID, docID string) error {
	return s.coll.Delete(ctx, where(retrieval.Filter{TenantID: tenantID, DocID: docID}), nil)
}

// Search is exact cosine search. chromem rejects a result count larger
// than the collection, so the limit is clamped first.
func (s *Store) Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Record, error) {
	n := min(req.Limit, s.coll.Count())
	if n <= 0 {
		return []retrieval.Record{}, nil
	}

	results, err := s.coll.QueryEmbedding(ctx, req.Vector, n, where(req.Filter), nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	records := make([]retrieval.Record, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata["page_num"])
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		records = append(records, retrieval.Record{
			TenantID:   r.Metadata["tenant_id"],
			DocID:      r.Metadata["doc_id"],
			PageNum:    page,
			ChunkIndex: idx,
			Text:       r.Content,
			ImageRef:   r.Metadata["image_ref"],
			SourceRef:  r.Metadata["source_ref"],
			Score:      r.Similarity,
		})
	}
	return records, nil
}

func (s *Store) CountChunks(context.Context) (int, error) {
	return s.coll.Count(), nil
}
