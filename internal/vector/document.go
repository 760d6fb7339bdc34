package vector

// ClassName is the Weaviate class (and default collection name) holding
// brochure chunks.
const ClassName = "BrochureChunk"

// Document is one embedded chunk as written to a vector store.
type Document struct {
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	DocID      string    `json:"doc_id" bson:"doc_id"`
	PageNum    int       `json:"page_num" bson:"page_num"`
	ChunkIndex int       `json:"chunk_index" bson:"chunk_index"`
	Text       string    `json:"text" bson:"text"`
	Embedding  []float32 `json:"embedding" bson:"embedding"`
	ImageRef   string    `json:"image_ref" bson:"image_path"`
	SourceRef  string    `json:"source_ref" bson:"source_pdf"`
}
