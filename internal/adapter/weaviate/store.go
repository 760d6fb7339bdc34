package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"catalogai/internal/retrieval"
	"catalogai/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// InsertChunks writes all documents in one batch request.
func (s *Store) InsertChunks(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(docs))
	for _, d := range docs {
		objects = append(objects, &models.Object{
			Class: vector.ClassName,
			Properties: map[string]interface{}{
				"text":       d.Text,
				"tenantId":   d.TenantID,
				"docId":      d.DocID,
				"pageNum":    d.PageNum,
				"chunkIndex": d.ChunkIndex,
				"imageRef":   d.ImageRef,
				"sourceRef":  d.SourceRef,
			},
			Vector: d.Embedding,
		})
	}

	res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range res {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, tenantID, docID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(whereFilter(retrieval.Filter{TenantID: tenantID, DocID: docID})).
		Do(ctx)
	return err
}

// whereFilter converts the equality constraints into an And of Equal
// operands.
func whereFilter(f retrieval.Filter) *filters.WhereBuilder {
	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{"tenantId"}).
			WithOperator(filters.Equal).
			WithValueText(f.TenantID),
	}
	if f.DocID != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"docId"}).
			WithOperator(filters.Equal).
			WithValueText(f.DocID))
	}
	if f.PageNum != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"pageNum"}).
			WithOperator(filters.Equal).
			WithValueInt(int64(*f.PageNum)))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

var chunkFields = []graphql.Field{
	{Name: "text"},
	{Name: "tenantId"},
	{Name: "docId"},
	{Name: "pageNum"},
	{Name: "chunkIndex"},
	{Name: "imageRef"},
	{Name: "sourceRef"},
}

// Search runs a nearVector query. NumCandidates has no Weaviate
// counterpart; HNSW ef is a class setting.
func (s *Store) Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.Record, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(req.Vector)

	fields := append(append([]graphql.Field{}, chunkFields...), graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "certainty"}, {Name: "distance"}},
	})

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(whereFilter(req.Filter)).
		WithLimit(req.Limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	var records []retrieval.Record
	for _, props := range getObjects(res.Data) {
		r := toRecord(props)
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			r.Score = score(additional)
		}
		records = append(records, r)
	}
	return records, nil
}

// ListChunks returns stored chunks matching the filter, unordered.
func (s *Store) ListChunks(ctx context.Context, f retrieval.Filter, limit, offset int) ([]retrieval.Record, error) {
	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(whereFilter(f)).
		WithLimit(limit).
		WithOffset(offset).
		WithFields(chunkFields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	records := []retrieval.Record{}
	for _, props := range getObjects(res.Data) {
		records = append(records, toRecord(props))
	}
	return records, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	list, ok := agg[vector.ClassName].([]interface{})
	if !ok || len(list) == 0 {
		return 0, nil
	}
	first, _ := list[0].(map[string]interface{})
	meta, _ := first["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func getObjects(data map[string]models.JSONObject) []map[string]interface{} {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[vector.ClassName].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, c := range raw {
		if props, ok := c.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func toRecord(props map[string]interface{}) retrieval.Record {
	var r retrieval.Record
	r.Text, _ = props["text"].(string)
	r.TenantID, _ = props["tenantId"].(string)
	r.DocID, _ = props["docId"].(string)
	r.ImageRef, _ = props["imageRef"].(string)
	r.SourceRef, _ = props["sourceRef"].(string)
	if v, ok := props["pageNum"].(float64); ok {
		r.PageNum = int(v)
	}
	if v, ok := props["chunkIndex"].(float64); ok {
		r.ChunkIndex = int(v)
	}
	return r
}

// score prefers certainty and falls back to 1 - distance. Numbers may be
// encoded as strings depending on the server version.
func score(additional map[string]interface{}) float32 {
	if c, ok := number(additional["certainty"]); ok {
		return float32(c)
	}
	if d, ok := number(additional["distance"]); ok {
		return float32(1 - d)
	}
	return 0
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func (s *Store) ClassExists(ctx context.Context, className string) (bool, error) {
	return s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (s *Store) CreateClass(ctx context.Context, class *models.Class) error {
	return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (s *Store) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return s.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (s *Store) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return s.client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

// EnsureSchema creates or upgrades the chunk class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, s)
}
