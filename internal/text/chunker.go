package text

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Page is the text extracted from one page of a source document.
type Page struct {
	PageNum  int    `json:"page_num"`
	Text     string `json:"text"`
	ImageRef string `json:"image_ref"`
}

// Chunk is a slice of a single page's text. ChunkIndex is 0-based and
// sequential within the page.
type Chunk struct {
	PageNum    int    `json:"page_num"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	ImageRef   string `json:"image_ref"`
}

type Strategy string

const (
	// StrategyWindow slides a fixed-size rune window over the page text.
	StrategyWindow Strategy = "window"
	// StrategyRecursive splits on paragraph, line, sentence, space and
	// finally character boundaries so words are not cut in half.
	StrategyRecursive Strategy = "recursive"
)

var ErrInvalidChunking = errors.New("invalid chunking configuration")

// recursiveSeparators is the boundary priority used by StrategyRecursive.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type Options struct {
	Size       int
	Overlap    int
	Strategy   Strategy
	PagePrefix bool
}

func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be > 0, got %d", ErrInvalidChunking, o.Size)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return fmt.Errorf("%w: overlap must be >= 0 and < chunk size (%d), got %d", ErrInvalidChunking, o.Size, o.Overlap)
	}
	switch o.Strategy {
	case StrategyWindow, StrategyRecursive, "":
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidChunking, o.Strategy)
	}
	return nil
}

// PlaceholderText is stored for pages with no extractable text so the page
// can still be matched by page-scoped retrieval.
func PlaceholderText(pageNum int) string {
	return fmt.Sprintf("[Page %d] (no extractable text on this page)", pageNum)
}

// ChunkPages splits every page into chunks. Chunks never span two pages.
func ChunkPages(pages []Page, opts Options) ([]Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, page := range pages {
		content := strings.TrimSpace(page.Text)
		if content == "" {
			chunks = append(chunks, Chunk{
				PageNum:    page.PageNum,
				ChunkIndex: 0,
				Text:       PlaceholderText(page.PageNum),
				ImageRef:   page.ImageRef,
			})
			continue
		}

		var parts []string
		if opts.Strategy == StrategyRecursive {
			var err error
			parts, err = splitRecursive(content, opts.Size, opts.Overlap)
			if err != nil {
				return nil, fmt.Errorf("split page %d: %w", page.PageNum, err)
			}
		} else {
			parts = splitWindow(content, opts.Size, opts.Overlap)
		}

		for i, part := range parts {
			if opts.PagePrefix {
				part = fmt.Sprintf("[Page %d] %s", page.PageNum, part)
			}
			chunks = append(chunks, Chunk{
				PageNum:    page.PageNum,
				ChunkIndex: i,
				Text:       part,
				ImageRef:   page.ImageRef,
			})
		}
	}

	return chunks, nil
}

// splitWindow cuts content into windows of size runes, each starting
// size-overlap runes after the previous one. The last window ends exactly
// at the end of content.
func splitWindow(content string, size, overlap int) []string {
	runes := []rune(content)
	step := size - overlap

	var parts []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		parts = append(parts, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return parts
}

func splitRecursive(content string, size, overlap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(recursiveSeparators),
	)
	parts, err := splitter.SplitText(content)
	if err != nil {
		return nil, err
	}

	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return splitWindow(content, size, overlap), nil
	}
	return out, nil
}
