package dimension

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var ErrInvalidVocabulary = errors.New("invalid vocabulary")

// Strictness controls how a text line is matched against a room label.
type Strictness string

const (
	// StrictnessContains matches any line containing the label.
	StrictnessContains Strictness = "contains"
	// StrictnessExact matches a line whose trimmed content is the label.
	StrictnessExact Strictness = "exact"
)

// Synonym maps a lower-case phrase found in a question to a room label.
type Synonym struct {
	Phrase string `yaml:"phrase"`
	Room   string `yaml:"room"`
}

// Vocabulary holds the brochure-specific word tables used by the
// Extractor. Synonyms are checked in order, so longer phrases must come
// before their prefixes ("master bedroom" before "bedroom").
type Vocabulary struct {
	Keywords      []string   `yaml:"keywords"`
	RoomTokens    []string   `yaml:"room_tokens"`
	Synonyms      []Synonym  `yaml:"synonyms"`
	RoomPatterns  []string   `yaml:"room_patterns"`
	DefaultRooms  []string   `yaml:"default_rooms"`
	ImageKeywords []string   `yaml:"image_keywords"`
	Strictness    Strictness `yaml:"strictness"`
	Window        int        `yaml:"window"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Keywords: []string{
			"dimension", "dimensions", "size", "length", "breadth",
			"lxb", "l x b", "how big", "area", "measurement",
		},
		RoomTokens: []string{"bedroom", "toilet", "drawing", "kitchen", "dining", "flat"},
		Synonyms: []Synonym{
			{Phrase: "master bedroom", Room: "M.BEDROOM"},
			{Phrase: "m.bedroom", Room: "M.BEDROOM"},
			{Phrase: "mbedroom", Room: "M.BEDROOM"},
			{Phrase: "drawing room", Room: "DRAWING"},
			{Phrase: "drawing", Room: "DRAWING"},
			{Phrase: "living", Room: "LIVING & DINING"},
			{Phrase: "living & dining", Room: "LIVING & DINING"},
			{Phrase: "kitchen", Room: "KITCHEN"},
			{Phrase: "dining", Room: "DINING"},
			{Phrase: "toilet", Room: "TOILET"},
			{Phrase: "bathroom", Room: "TOILET"},
		},
		RoomPatterns: []string{`bedroom\s*\d+`},
		DefaultRooms: []string{"M.BEDROOM", "DRAWING", "KITCHEN", "LIVING & DINING"},
		ImageKeywords: []string{
			"plan", "layout", "floor", "image", "show", "see",
			"design", "dimensions", "size", "drawing", "bedroom",
		},
		Strictness: StrictnessContains,
		Window:     3,
	}
}

// LoadVocabulary reads a YAML file over the defaults. Keys missing from
// the file keep their default value; present lists replace the default
// list entirely.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("%w: %v", ErrInvalidVocabulary, err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

func (v Vocabulary) Validate() error {
	switch v.Strictness {
	case StrictnessContains, StrictnessExact:
	default:
		return fmt.Errorf("%w: strictness %q", ErrInvalidVocabulary, v.Strictness)
	}
	if v.Window < 0 {
		return fmt.Errorf("%w: window must be >= 0, got %d", ErrInvalidVocabulary, v.Window)
	}
	for _, s := range v.Synonyms {
		if s.Phrase == "" || s.Room == "" {
			return fmt.Errorf("%w: synonym needs phrase and room", ErrInvalidVocabulary)
		}
	}
	for _, p := range v.RoomPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: room pattern %q: %v", ErrInvalidVocabulary, p, err)
		}
	}
	return nil
}
