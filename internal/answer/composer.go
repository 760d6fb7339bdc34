package answer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"catalogai/internal/dimension"
	"catalogai/internal/retrieval"
)

var (
	// ErrGeneration marks a failed call to the generative service.
	ErrGeneration = errors.New("answer generation failed")
	// ErrInvalidTemplate rejects an answer template that does not parse or
	// render.
	ErrInvalidTemplate = errors.New("invalid answer template")
)

type CitationPolicy string

const (
	// CitationsAll cites every retrieved record.
	CitationsAll CitationPolicy = "all"
	// CitationsMatched cites only the record a measurement came from.
	CitationsMatched CitationPolicy = "matched"
)

const notFoundAnswer = "Room dimensions are not available in extracted OCR text. Please refer to the floor-plan image."

// DefaultTemplate is the brochure answer style. It receives .Context (one
// "[Page N] text" block per record) and .Question.
const DefaultTemplate = `You are answering questions about a real-estate brochure using text extracted from its pages by OCR.

Rules:
- Use ONLY the CONTEXT below.
- The brochure contains floor plans, flat numbers, BHK types, facing directions and areas.
- OCR may split information across lines; read it conservatively.
- Do not guess or infer details that are missing.
- If several flats or plans match the question, list all of them.
- Always cite page numbers as (Page X).
- Do not answer "Not found" when relevant plan information exists.

Style: factual and concise, structured lists over prose.

Return format:
Matches:
- <Flat No if present> | <BHK type> | <Facing> | <Area if present> (Page X)

Summary:
<one or two lines on what the matches represent>

CONTEXT:
{{.Context}}

QUESTION:
{{.Question}}

ANSWER:`

type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Citation points at one retrieved chunk.
type Citation struct {
	PageNum    int     `json:"page_num"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
	ImageRef   string  `json:"image_ref,omitempty"`
	SourceLink string  `json:"source_link,omitempty"`
}

// Payload is the answer returned to callers.
type Payload struct {
	Answer            string             `json:"answer"`
	Citations         []Citation         `json:"citations"`
	ImagePaths        []string           `json:"image_paths"`
	PrimarySourceLink string             `json:"primary_source_link,omitempty"`
	Retrieved         []retrieval.Record `json:"retrieved"`
	ShowImages        bool               `json:"show_images"`
	Dimension         *dimension.Match   `json:"dimension,omitempty"`
}

type Options struct {
	Policy      CitationPolicy
	Template    string
	Temperature float32
}

type Composer struct {
	extractor *dimension.Extractor
	generator Generator
	baseURL   string
}

func NewComposer(extractor *dimension.Extractor, generator Generator, baseURL string) *Composer {
	return &Composer{extractor: extractor, generator: generator, baseURL: baseURL}
}

// Compose turns retrieved records into an answer. Dimension questions are
// answered from the records' text only, never by the generator.
func (c *Composer) Compose(ctx context.Context, question string, records []retrieval.Record, opts Options) (*Payload, error) {
	p := &Payload{
		Citations:  make([]Citation, 0, len(records)),
		ImagePaths: []string{},
		Retrieved:  records,
		ShowImages: c.extractor.WantsImages(question),
	}
	if p.Retrieved == nil {
		p.Retrieved = []retrieval.Record{}
	}

	blocks := make([]string, 0, len(records))
	for _, r := range records {
		blocks = append(blocks, fmt.Sprintf("[Page %d] %s", r.PageNum, strings.TrimSpace(r.Text)))
		p.Citations = append(p.Citations, c.cite(r))
		p.ImagePaths = appendUnique(p.ImagePaths, r.ImageRef)
	}
	for _, cit := range p.Citations {
		if cit.SourceLink != "" {
			p.PrimarySourceLink = cit.SourceLink
			break
		}
	}

	if c.extractor.IsDimensionQuestion(question) {
		c.composeDimension(ctx, p, question, records, opts.Policy)
		return p, nil
	}

	answer, err := c.generate(ctx, question, strings.Join(blocks, "\n\n"), opts)
	if err != nil {
		return nil, err
	}
	p.Answer = answer
	return p, nil
}

func (c *Composer) composeDimension(ctx context.Context, p *Payload, question string, records []retrieval.Record, policy CitationPolicy) {
	match, rec, ok := c.extractor.BestFromRecords(question, records)
	if !ok {
		slog.InfoContext(ctx, "dimension not found in extracted text", "records", len(records))
		p.Answer = notFoundAnswer
		p.ShowImages = true
		if len(records) > 0 {
			p.Answer += fmt.Sprintf(" (Page %d)", records[0].PageNum)
			if link := recordLink(c.baseURL, records[0]); link != "" {
				p.PrimarySourceLink = link
			}
		}
		return
	}

	slog.InfoContext(ctx, "dimension extracted", "room", match.Room, "unit", match.Unit, "page", rec.PageNum)
	p.Answer = fmt.Sprintf("%s: %s (Page %d)", match.Room, match.Value, rec.PageNum)
	p.Dimension = &match
	if link := recordLink(c.baseURL, rec); link != "" {
		p.PrimarySourceLink = link
	}
	if policy == CitationsMatched {
		p.Citations = []Citation{c.cite(rec)}
		p.ImagePaths = appendUnique([]string{}, rec.ImageRef)
	}
}

func (c *Composer) generate(ctx context.Context, question, blocks string, opts Options) (string, error) {
	if c.generator == nil {
		return "", fmt.Errorf("%w: no generator configured", ErrGeneration)
	}

	prompt, err := RenderPrompt(opts.Template, blocks, question)
	if err != nil {
		return "", err
	}

	out, err := c.generator.Generate(ctx, prompt, opts.Temperature)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return strings.TrimSpace(out), nil
}

// RenderPrompt executes tmpl, or DefaultTemplate when tmpl is blank.
func RenderPrompt(tmpl, blocks, question string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	t, err := template.New("answer").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	var buf bytes.Buffer
	data := struct{ Context, Question string }{blocks, question}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (c *Composer) cite(r retrieval.Record) Citation {
	return Citation{
		PageNum:    r.PageNum,
		ChunkIndex: r.ChunkIndex,
		Score:      r.Score,
		ImageRef:   r.ImageRef,
		SourceLink: recordLink(c.baseURL, r),
	}
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
