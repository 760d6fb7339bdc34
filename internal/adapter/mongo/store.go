package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"catalogai/internal/retrieval"
	"catalogai/internal/vector"
)

// EmbeddingPath is the document field the Atlas vector index covers.
const EmbeddingPath = "embedding"

// chunkDoc is the stored shape of one chunk. Field names match the Atlas
// index definition, so filters use the same keys as retrieval.Filter.
type chunkDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	TenantID   string             `bson:"tenant_id"`
	DocID      string             `bson:"doc_id"`
	PageNum    int                `bson:"page_num"`
	ChunkIndex int                `bson:"chunk_index"`
	Text       string             `bson:"text"`
	Embedding  []float32          `bson:"embedding,omitempty"`
	ImagePath  string             `bson:"image_path,omitempty"`
	SourcePDF  string             `bson:"source_pdf,omitempty"`
	Score      float64            `bson:"score,omitempty"`
}

func (d chunkDoc) record() retrieval.Record {
	return retrieval.Record{
		TenantID:   d.TenantID,
		DocID:      d.DocID,
		PageNum:    d.PageNum,
		ChunkIndex: d.ChunkIndex,
		Text:       d.Text,
		ImageRef:   d.ImagePath,
		SourceRef:  d.SourcePDF,
		Score:      float32(d.Score),
	}
}

type Store struct {
	coll  *mongo.Collection
	index string
}

func NewStore(coll *mongo.Collection, index string) *Store {
	return &Store{coll: coll, index: index}
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func filterDoc(f retrieval.Filter) bson.M {
	return bson.M(f.Equality())
}

// Search runs an Atlas $vectorSearch stage with the equality filter and
// projects the similarity score into the result.
func (s *Store) Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Record, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.index},
			{Key: "path", Value: EmbeddingPath},
			{Key: "queryVector", Value: req.Vector},
			{Key: "numCandidates", Value: req.NumCandidates},
			{Key: "limit", Value: req.Limit},
			{Key: "filter", Value: filterDoc(req.Filter)},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "tenant_id", Value: 1},
			{Key: "doc_id", Value: 1},
			{Key: "page_num", Value: 1},
			{Key: "chunk_index", Value: 1},
			{Key: "text", Value: 1},
			{Key: "image_path", Value: 1},
			{Key: "source_pdf", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cur.Close(ctx)

	var docs []chunkDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	records := make([]retrieval.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

func (s *Store) InsertChunks(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, chunkDoc{
			TenantID:   d.TenantID,
			DocID:      d.DocID,
			PageNum:    d.PageNum,
			ChunkIndex: d.ChunkIndex,
			Text:       d.Text,
			Embedding:  d.Embedding,
			ImagePath:  d.ImageRef,
			SourcePDF:  d.SourceRef,
		})
	}
	_, err := s.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	return err
}

func (s *Store) DeleteDocument(ctx context.Context, tenantID, docID string) error {
	_, err := s.coll.DeleteMany(ctx, filterDoc(retrieval.Filter{TenantID: tenantID, DocID: docID}))
	return err
}

// ListChunks returns stored chunks matching the filter in page and chunk
// order.
func (s *Store) ListChunks(ctx context.Context, f retrieval.Filter, limit, offset int) ([]retrieval.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "page_num", Value: 1}, {Key: "chunk_index", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetProjection(bson.D{{Key: EmbeddingPath, Value: 0}})

	cur, err := s.coll.Find(ctx, filterDoc(f), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []chunkDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]retrieval.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return int(n), err
}
