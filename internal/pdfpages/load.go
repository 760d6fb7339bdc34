// Package pdfpages reads the embedded text layer of a PDF one page at a
// time. Scanned brochures without a text layer yield empty pages; OCR is
// done elsewhere.
package pdfpages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"catalogai/internal/text"
)

type Options struct {
	// ImageDir, when set, is where page renders live as page_<n>.png.
	ImageDir string
}

// Load returns one text.Page per PDF page, 1-based, in page order.
func Load(path string, opts Options) ([]text.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	n := reader.NumPage()
	pages := make([]text.Page, 0, n)
	for i := 1; i <= n; i++ {
		content, err := pageText(reader.Page(i))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text.Page{
			PageNum:  i,
			Text:     strings.TrimSpace(content),
			ImageRef: ImageRef(opts.ImageDir, i),
		})
	}
	return pages, nil
}

// ImageRef is the conventional render path for a page, or "" without a
// directory.
func ImageRef(dir string, page int) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, fmt.Sprintf("page_%d.png", page))
}

func pageText(p pdf.Page) (string, error) {
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
