package answer

import (
	"fmt"
	"path"
	"strings"

	"catalogai/internal/retrieval"
)

// SourceLink builds a URL to one page of a statically served source file:
// <base>/<file name>#page=<n>. It returns "" when source is empty.
func SourceLink(baseURL, source string, page int) string {
	source = strings.TrimSpace(strings.ReplaceAll(source, `\`, "/"))
	if source == "" {
		return ""
	}
	name := path.Base(source)
	link := strings.TrimRight(baseURL, "/") + "/" + name
	if page > 0 {
		link += fmt.Sprintf("#page=%d", page)
	}
	return link
}

// recordLink links a record to its page, falling back to the document id
// when the record carries no source reference.
func recordLink(baseURL string, r retrieval.Record) string {
	source := r.SourceRef
	if source == "" {
		source = r.DocID
	}
	return SourceLink(baseURL, source, r.PageNum)
}
