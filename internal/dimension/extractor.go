package dimension

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"catalogai/internal/retrieval"
)

type Unit string

const (
	UnitFeetInches Unit = "ft+in"
	UnitInches     Unit = "in"
)

// Match is a room measurement recovered from chunk text. Raw is the
// substring the measurement was parsed from.
type Match struct {
	Room  string `json:"room"`
	Value string `json:"value"`
	Unit  Unit   `json:"unit"`
	Raw   string `json:"raw"`
}

// quotes folds OCR prime and quote variants into ' and ".
var quotes = strings.NewReplacer(
	"’", "'", "‘", "'", "′", "'", "°", "'",
	"”", `"`, "“", `"`, "″", `"`,
)

// measurement parses one notation. Patterns are tried in slice order and
// the first hit wins.
type measurement struct {
	unit   Unit
	re     *regexp.Regexp
	format func(groups []int) (string, bool)
}

var measurements = []measurement{
	{
		unit: UnitFeetInches,
		re:   regexp.MustCompile(`(\d+)\s*'\s*(\d+)\s*"?\s*[xX×*]\s*(\d+)\s*'\s*(\d+)\s*"?`),
		format: func(n []int) (string, bool) {
			return fmt.Sprintf("%d ft %d in × %d ft %d in", n[0], n[1], n[2], n[3]), true
		},
	},
	{
		// A must not continue a feet value such as the 6 in 10'6".
		unit: UnitInches,
		re:   regexp.MustCompile(`(?:^|[^'"\d])(\d+)\s*[xX×*]\s*(\d+)\s*"?`),
		format: func(n []int) (string, bool) {
			if n[0] <= 0 || n[1] <= 0 {
				return "", false
			}
			return fmt.Sprintf("%d in × %d in", n[0], n[1]), true
		},
	},
}

var flatInQuestion = regexp.MustCompile(`(?i)FLAT\s*NO\.?\s*(\d+)`)

// Extractor recovers room measurements from OCR text without any model
// call. It is safe for concurrent use.
type Extractor struct {
	vocab    Vocabulary
	patterns []*regexp.Regexp
}

func NewExtractor(v Vocabulary) (*Extractor, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{vocab: v}
	for _, p := range v.RoomPatterns {
		e.patterns = append(e.patterns, regexp.MustCompile(p))
	}
	return e, nil
}

// IsDimensionQuestion is a keyword union over the lower-cased question:
// any measurement keyword, synonym phrase or room token counts.
func (e *Extractor) IsDimensionQuestion(question string) bool {
	q := strings.ToLower(question)
	if containsAny(q, e.vocab.Keywords) || containsAny(q, e.vocab.RoomTokens) {
		return true
	}
	for _, s := range e.vocab.Synonyms {
		if strings.Contains(q, s.Phrase) {
			return true
		}
	}
	return false
}

// WantsImages reports whether the question asks to see page images.
func (e *Extractor) WantsImages(question string) bool {
	return containsAny(strings.ToLower(question), e.vocab.ImageKeywords)
}

// NormalizeRoom maps the question to a canonical room label, or "" when
// no room is named. Synonyms win over room patterns.
func (e *Extractor) NormalizeRoom(question string) string {
	q := strings.ToLower(question)
	for _, s := range e.vocab.Synonyms {
		if strings.Contains(q, s.Phrase) {
			return s.Room
		}
	}
	for _, re := range e.patterns {
		if m := re.FindString(q); m != "" {
			return strings.ToUpper(m)
		}
	}
	return ""
}

// ExtractFromText finds the first line naming room and parses a
// measurement from that line or the following Window lines.
func (e *Extractor) ExtractFromText(text, room string) (Match, bool) {
	room = strings.ToUpper(strings.TrimSpace(room))
	if room == "" {
		return Match{}, false
	}
	bare := strings.ReplaceAll(room, ".", "")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = normalizeLine(lines[i])
	}

	for i, line := range lines {
		if !e.lineNames(strings.ToUpper(line), room, bare) {
			continue
		}
		end := min(i+e.vocab.Window+1, len(lines))
		for _, candidate := range lines[i:end] {
			if m, ok := parseMeasurement(candidate); ok {
				m.Room = room
				return m, true
			}
		}
	}
	return Match{}, false
}

func (e *Extractor) lineNames(line, room, bare string) bool {
	if e.vocab.Strictness == StrictnessExact {
		line = strings.TrimSpace(line)
		return line == room || line == bare
	}
	return strings.Contains(line, room) || strings.Contains(line, bare)
}

// BestFromRecords scans records in order and returns the first match with
// the record it came from. A "flat no N" in the question first limits the
// scan to records mentioning that flat. Only when the question also names
// a room is the scan repeated over all records, which may attribute a
// measurement to another flat.
func (e *Extractor) BestFromRecords(question string, records []retrieval.Record) (Match, retrieval.Record, bool) {
	rooms := e.vocab.DefaultRooms
	room := e.NormalizeRoom(question)
	if room != "" {
		rooms = []string{room}
	}

	if m := flatInQuestion.FindStringSubmatch(question); m != nil {
		flat := regexp.MustCompile(`(?i)FLAT\s*NO\.?\s*0*` + strconv.Itoa(atoi(m[1])) + `\b`)
		scoped := make([]retrieval.Record, 0, len(records))
		for _, r := range records {
			if flat.MatchString(r.Text) {
				scoped = append(scoped, r)
			}
		}
		if match, rec, ok := e.scan(scoped, rooms); ok || room == "" {
			return match, rec, ok
		}
	}
	return e.scan(records, rooms)
}

func (e *Extractor) scan(records []retrieval.Record, rooms []string) (Match, retrieval.Record, bool) {
	for _, r := range records {
		for _, room := range rooms {
			if m, ok := e.ExtractFromText(r.Text, room); ok {
				return m, r, true
			}
		}
	}
	return Match{}, retrieval.Record{}, false
}

func parseMeasurement(line string) (Match, bool) {
	for _, p := range measurements {
		loc := p.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		groups := make([]int, 0, len(loc)/2-1)
		for g := 1; g < len(loc)/2; g++ {
			groups = append(groups, atoi(line[loc[2*g]:loc[2*g+1]]))
		}
		value, ok := p.format(groups)
		if !ok {
			continue
		}
		return Match{
			Value: value,
			Unit:  p.unit,
			Raw:   strings.TrimSpace(line[loc[2]:loc[1]]),
		}, true
	}
	return Match{}, false
}

func normalizeLine(line string) string {
	line = quotes.Replace(line)
	return strings.TrimSpace(strings.ReplaceAll(line, "''", `"`))
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// atoi parses a run of ASCII digits; overflow saturates.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
