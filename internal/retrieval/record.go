package retrieval

// Record is one chunk returned by a similarity search. Higher Score means
// more relevant.
type Record struct {
	TenantID   string  `json:"tenant_id"`
	DocID      string  `json:"doc_id"`
	PageNum    int     `json:"page_num"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	ImageRef   string  `json:"image_ref,omitempty"`
	SourceRef  string  `json:"source_ref,omitempty"`
	Score      float32 `json:"score"`
}

// Filter restricts a search. TenantID is mandatory; PageNum requires DocID.
type Filter struct {
	TenantID string
	DocID    string
	PageNum  *int
}

// Equality returns the filter as field/value equality constraints keyed by
// the stored field names.
func (f Filter) Equality() map[string]any {
	eq := map[string]any{"tenant_id": f.TenantID}
	if f.DocID != "" {
		eq["doc_id"] = f.DocID
	}
	if f.PageNum != nil {
		eq["page_num"] = *f.PageNum
	}
	return eq
}

func (f Filter) Matches(r Record) bool {
	if r.TenantID != f.TenantID {
		return false
	}
	if f.DocID != "" && r.DocID != f.DocID {
		return false
	}
	if f.PageNum != nil && r.PageNum != *f.PageNum {
		return false
	}
	return true
}

// SearchRequest is what the engine sends to a vector store.
type SearchRequest struct {
	Vector        []float32
	Filter        Filter
	Limit         int
	NumCandidates int
}
