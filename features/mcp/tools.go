package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"catalogai/features/document"
	"catalogai/features/qa"
	"catalogai/internal/answer"
	"catalogai/internal/retrieval"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
	pageChunkLimit     = 100
)

type Asker interface {
	Ask(ctx context.Context, req qa.Request) (*answer.Payload, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.Record, error)
}

type DocumentLister interface {
	List(ctx context.Context, tenantID string) ([]document.Document, error)
}

type PageReader interface {
	ListChunks(ctx context.Context, f retrieval.Filter, limit, offset int) ([]retrieval.Record, error)
}

// Dependencies of the tool set. A nil PageReader hides brochure_read_page.
type Dependencies struct {
	Asker     Asker
	Retriever Retriever
	Documents DocumentLister
	Pages     PageReader
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// errInvalidArgs turns into a JSON-RPC invalid params error instead of a
// tool error result.
var errInvalidArgs = errors.New("invalid arguments")

type toolFunc func(ctx context.Context, args json.RawMessage) (string, error)

type toolbox struct {
	deps  Dependencies
	tools []Tool
	funcs map[string]toolFunc
}

func newToolbox(deps Dependencies) *toolbox {
	tb := &toolbox{deps: deps, funcs: make(map[string]toolFunc)}

	tb.register(Tool{
		Name: "brochure_ask",
		Description: `Answers a question about an ingested real-estate brochure. Room dimension questions are answered from the extracted page text with the page cited; other questions are answered from the retrieved pages. Returns the full answer payload as JSON, including citations and source links.

USAGE EXAMPLE:
brochure_ask(question="master bedroom size of flat no 2", tenant_id="acme", doc_id="green-acres")`,
		InputSchema: objectSchema([]string{"question", "tenant_id"}, map[string]interface{}{
			"question":  prop("string", "The question to answer"),
			"tenant_id": prop("string", "Tenant that owns the brochure"),
			"doc_id":    prop("string", "Restrict to one brochure"),
			"page_num":  prop("integer", "Restrict to one page; requires doc_id"),
			"k":         prop("integer", "Number of chunks to retrieve"),
		}),
	}, tb.ask)

	tb.register(Tool{
		Name: "brochure_search",
		Description: `Similarity search over brochure chunks within a tenant, optionally narrowed to a brochure or a single page. Use it to see the raw text behind an answer.

USAGE EXAMPLE:
brochure_search(query="clubhouse amenities", tenant_id="acme", limit=5)`,
		InputSchema: objectSchema([]string{"query", "tenant_id"}, map[string]interface{}{
			"query":     prop("string", "The search query"),
			"tenant_id": prop("string", "Tenant to search"),
			"doc_id":    prop("string", "Restrict to one brochure"),
			"page_num":  prop("integer", "Restrict to one page; requires doc_id"),
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Max results to return (default 5).",
				"minimum":     1,
				"maximum":     maxSearchLimit,
			},
		}),
	}, tb.search)

	tb.register(Tool{
		Name: "brochure_list_documents",
		Description: `Lists the brochures ingested for a tenant with their status and page counts. Use it first to find doc_id values.

USAGE EXAMPLE:
brochure_list_documents(tenant_id="acme")`,
		InputSchema: objectSchema([]string{"tenant_id"}, map[string]interface{}{
			"tenant_id": prop("string", "Tenant to list"),
		}),
	}, tb.listDocuments)

	if deps.Pages != nil {
		tb.register(Tool{
			Name: "brochure_read_page",
			Description: `Returns every stored chunk of one brochure page in order. Use it when a search snippet is not enough.

USAGE EXAMPLE:
brochure_read_page(tenant_id="acme", doc_id="green-acres", page_num=5)`,
			InputSchema: objectSchema([]string{"tenant_id", "doc_id", "page_num"}, map[string]interface{}{
				"tenant_id": prop("string", "Tenant that owns the brochure"),
				"doc_id":    prop("string", "The brochure"),
				"page_num":  prop("integer", "1-based page number"),
			}),
		}, tb.readPage)
	}

	return tb
}

func (tb *toolbox) register(t Tool, fn toolFunc) {
	tb.tools = append(tb.tools, t)
	tb.funcs[t.Name] = fn
}

func (tb *toolbox) list() []Tool {
	return tb.tools
}

func (tb *toolbox) call(ctx context.Context, id interface{}, params CallParams) *JSONRPCResponse {
	fn, ok := tb.funcs[params.Name]
	if !ok {
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		return errorResponse(id, ErrMethodNotFound, "Method not found: "+params.Name)
	}

	text, err := fn(ctx, params.Arguments)
	if errors.Is(err, errInvalidArgs) {
		return errorResponse(id, ErrInvalidParams, err.Error())
	}
	if err != nil {
		slog.ErrorContext(ctx, "tool execution failed", "tool", params.Name, "error", err)
		return result(id, ToolResult{
			Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		})
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", params.Name)
	return result(id, ToolResult{Content: []ToolContent{{Type: "text", Text: text}}})
}

type scopeArgs struct {
	TenantID string `json:"tenant_id"`
	DocID    string `json:"doc_id,omitempty"`
	PageNum  *int   `json:"page_num,omitempty"`
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

// invalidIfContract reclassifies scope and request errors as bad arguments.
func invalidIfContract(err error) error {
	if errors.Is(err, retrieval.ErrContractViolation) || errors.Is(err, qa.ErrInvalidRequest) {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return err
}

func (tb *toolbox) ask(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Question string `json:"question"`
		scopeArgs
		K int `json:"k,omitempty"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}

	payload, err := tb.deps.Asker.Ask(ctx, qa.Request{
		Question: args.Question,
		TenantID: args.TenantID,
		DocID:    args.DocID,
		PageNum:  args.PageNum,
		K:        args.K,
	})
	if err != nil {
		return "", invalidIfContract(err)
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (tb *toolbox) search(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		scopeArgs
		Limit *int `json:"limit,omitempty"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("%w: query is required", errInvalidArgs)
	}
	limit := defaultSearchLimit
	if args.Limit != nil {
		if *args.Limit < 1 || *args.Limit > maxSearchLimit {
			return "", fmt.Errorf("%w: limit must be between 1 and %d", errInvalidArgs, maxSearchLimit)
		}
		limit = *args.Limit
	}

	records, err := tb.deps.Retriever.Retrieve(ctx, retrieval.Query{
		Text:     args.Query,
		TenantID: args.TenantID,
		DocID:    args.DocID,
		PageNum:  args.PageNum,
		K:        limit,
	})
	if err != nil {
		return "", invalidIfContract(err)
	}
	if len(records) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "Result %d (Score: %.2f):\n", i+1, r.Score)
		fmt.Fprintf(&b, "Document: %s | Page %d | Chunk %d\n", r.DocID, r.PageNum, r.ChunkIndex)
		if r.ImageRef != "" {
			fmt.Fprintf(&b, "Image: %s\n", r.ImageRef)
		}
		fmt.Fprintf(&b, "Content:\n%s\n\n---\n", r.Text)
	}
	if tb.deps.Pages != nil {
		b.WriteString("\nUse brochure_read_page(tenant_id, doc_id, page_num) to read a whole page.\n")
	}
	return b.String(), nil
}

func (tb *toolbox) listDocuments(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		TenantID string `json:"tenant_id"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.TenantID == "" {
		return "", fmt.Errorf("%w: tenant_id is required", errInvalidArgs)
	}

	docs, err := tb.deps.Documents.List(ctx, args.TenantID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "No documents found.", nil
	}

	type summary struct {
		DocID  string `json:"doc_id"`
		Status string `json:"status"`
		Pages  int    `json:"pages"`
		Chunks int    `json:"chunks"`
	}
	out := make([]summary, len(docs))
	for i, d := range docs {
		out[i] = summary{DocID: d.DocID, Status: d.Status, Pages: d.PageCount, Chunks: d.ChunkCount}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (tb *toolbox) readPage(ctx context.Context, raw json.RawMessage) (string, error) {
	var args scopeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.TenantID == "" || args.DocID == "" || args.PageNum == nil || *args.PageNum < 1 {
		return "", fmt.Errorf("%w: tenant_id, doc_id and a page_num >= 1 are required", errInvalidArgs)
	}

	chunks, err := tb.deps.Pages.ListChunks(ctx, retrieval.Filter{
		TenantID: args.TenantID,
		DocID:    args.DocID,
		PageNum:  args.PageNum,
	}, pageChunkLimit, 0)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "No content found for page.", nil
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })

	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\nPage: %d\n\n", args.DocID, *args.PageNum)
	for _, c := range chunks {
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, description string) map[string]string {
	return map[string]string{"type": typ, "description": description}
}
