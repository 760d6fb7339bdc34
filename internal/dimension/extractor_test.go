package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogai/internal/retrieval"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultVocabulary())
	require.NoError(t, err)
	return e
}

func TestIsDimensionQuestion(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		question string
		want     bool
	}{
		{"What are the master bedroom dimensions?", true},
		{"What floor is this on?", false},
		{"How big is the kitchen", true},
		{"Give me the L x B of the hall", true},
		{"Which flats face east?", true},
		{"Who is the builder?", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsDimensionQuestion(tt.question))
		})
	}
}

func TestNormalizeRoom(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		question string
		want     string
	}{
		{"Master bedroom dimensions for flat no 2", "M.BEDROOM"},
		{"size of m.bedroom", "M.BEDROOM"},
		{"Drawing room size?", "DRAWING"},
		{"living & dining area", "LIVING & DINING"},
		{"bathroom length", "TOILET"},
		{"How big is bedroom 2", "BEDROOM 2"},
		{"bedroom2 size", "BEDROOM2"},
		{"What is the price?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, e.NormalizeRoom(tt.question))
		})
	}
}

func TestExtractFromText(t *testing.T) {
	e := newTestExtractor(t)

	t.Run("Feet And Inches Within Window", func(t *testing.T) {
		text := "TYPE A\nM.BEDROOM\nsome noise\n10' 6\" x 12' 0\"\nKITCHEN"
		m, ok := e.ExtractFromText(text, "M.BEDROOM")
		require.True(t, ok)
		assert.Equal(t, "M.BEDROOM", m.Room)
		assert.Equal(t, "10 ft 6 in × 12 ft 0 in", m.Value)
		assert.Equal(t, UnitFeetInches, m.Unit)
		assert.Equal(t, "10' 6\" x 12' 0\"", m.Raw)
	})

	t.Run("Curly Quotes And Degree Signs", func(t *testing.T) {
		text := "KITCHEN 8°6” X 10’0”"
		m, ok := e.ExtractFromText(text, "kitchen")
		require.True(t, ok)
		assert.Equal(t, "KITCHEN", m.Room)
		assert.Equal(t, "8 ft 6 in × 10 ft 0 in", m.Value)
	})

	t.Run("Doubled Single Quotes As Inches", func(t *testing.T) {
		m, ok := e.ExtractFromText("DRAWING\n11'3'' × 14'9''", "DRAWING")
		require.True(t, ok)
		assert.Equal(t, "11 ft 3 in × 14 ft 9 in", m.Value)
	})

	t.Run("Inch Only", func(t *testing.T) {
		m, ok := e.ExtractFromText("TOILET\n54 x 96\"", "TOILET")
		require.True(t, ok)
		assert.Equal(t, "54 in × 96 in", m.Value)
		assert.Equal(t, UnitInches, m.Unit)
	})

	t.Run("Inch Only Ignores Feet Tails", func(t *testing.T) {
		for _, text := range []string{
			"M.BEDROOM\n10'6\" x 12'",
			"M.BEDROOM 10'6\"x12'-0\"",
			"M.BEDROOM\n10'6 x 12'",
		} {
			m, ok := e.ExtractFromText(text, "M.BEDROOM")
			assert.False(t, ok, "%q parsed as %q", text, m.Value)
		}
	})

	t.Run("Inch Only After Label On Same Line", func(t *testing.T) {
		m, ok := e.ExtractFromText("TOILET 54x96\"", "TOILET")
		require.True(t, ok)
		assert.Equal(t, "54 in × 96 in", m.Value)
		assert.Equal(t, "54x96\"", m.Raw)
	})

	t.Run("Inch Only Rejects Zero", func(t *testing.T) {
		_, ok := e.ExtractFromText("TOILET\n0 x 96\"", "TOILET")
		assert.False(t, ok)
	})

	t.Run("Label Without Dots", func(t *testing.T) {
		m, ok := e.ExtractFromText("MBEDROOM 10'0\" x 11'0\"", "M.BEDROOM")
		require.True(t, ok)
		assert.Equal(t, "10 ft 0 in × 11 ft 0 in", m.Value)
	})

	t.Run("Measurement Outside Window", func(t *testing.T) {
		text := "M.BEDROOM\na\nb\nc\n10' 6\" x 12' 0\""
		_, ok := e.ExtractFromText(text, "M.BEDROOM")
		assert.False(t, ok)
	})

	t.Run("No Room Or Measurement", func(t *testing.T) {
		_, ok := e.ExtractFromText("Luxury living in the heart of the city", "M.BEDROOM")
		assert.False(t, ok)
	})

	t.Run("Empty Room", func(t *testing.T) {
		_, ok := e.ExtractFromText("M.BEDROOM 10'6\" x 12'0\"", " ")
		assert.False(t, ok)
	})
}

func TestExtractFromText_ExactStrictness(t *testing.T) {
	v := DefaultVocabulary()
	v.Strictness = StrictnessExact
	e, err := NewExtractor(v)
	require.NoError(t, err)

	_, ok := e.ExtractFromText("MASTER M.BEDROOM SUITE\n10'6\" x 12'0\"", "M.BEDROOM")
	assert.False(t, ok)

	m, ok := e.ExtractFromText("  M.BEDROOM  \n10'6\" x 12'0\"", "M.BEDROOM")
	require.True(t, ok)
	assert.Equal(t, "10 ft 6 in × 12 ft 0 in", m.Value)
}

func TestBestFromRecords(t *testing.T) {
	e := newTestExtractor(t)

	flat1 := retrieval.Record{PageNum: 3, Text: "FLAT NO 1\nM.BEDROOM\n11'0\" x 13'0\""}
	flat2 := retrieval.Record{PageNum: 4, Text: "FLAT NO 2\nM.BEDROOM\n10'6\" x 12'0\""}
	flat21 := retrieval.Record{PageNum: 9, Text: "FLAT NO 21\nM.BEDROOM\n9'0\" x 9'0\""}
	unrelated := retrieval.Record{PageNum: 1, Text: "Welcome to Green Acres"}

	t.Run("Flat Scoped", func(t *testing.T) {
		m, rec, ok := e.BestFromRecords("Master bedroom dimensions for flat no 2", []retrieval.Record{unrelated, flat1, flat2})
		require.True(t, ok)
		assert.Equal(t, "10 ft 6 in × 12 ft 0 in", m.Value)
		assert.Equal(t, 4, rec.PageNum)
	})

	t.Run("Flat Number Word Boundary", func(t *testing.T) {
		_, rec, ok := e.BestFromRecords("master bedroom size flat no. 2", []retrieval.Record{flat21, flat2})
		require.True(t, ok)
		assert.Equal(t, 4, rec.PageNum)
	})

	t.Run("Relaxed When Flat Has No Match", func(t *testing.T) {
		m, rec, ok := e.BestFromRecords("master bedroom size flat no 7", []retrieval.Record{unrelated, flat1})
		require.True(t, ok)
		assert.Equal(t, "11 ft 0 in × 13 ft 0 in", m.Value)
		assert.Equal(t, 3, rec.PageNum)
	})

	t.Run("Flat Without Room Stays Scoped", func(t *testing.T) {
		kitchen1 := retrieval.Record{PageNum: 3, Text: "FLAT NO 1\nKITCHEN\n7'6\" x 9'0\""}
		_, _, ok := e.BestFromRecords("dimensions of flat no 2", []retrieval.Record{unrelated, kitchen1})
		assert.False(t, ok)
	})

	t.Run("Flat Without Room Uses Default Rooms In Scope", func(t *testing.T) {
		kitchen1 := retrieval.Record{PageNum: 3, Text: "FLAT NO 1\nKITCHEN\n7'6\" x 9'0\""}
		kitchen2 := retrieval.Record{PageNum: 5, Text: "FLAT NO 2\nKITCHEN\n8'0\" x 10'0\""}
		m, rec, ok := e.BestFromRecords("dimensions of flat no 2", []retrieval.Record{kitchen1, kitchen2})
		require.True(t, ok)
		assert.Equal(t, "8 ft 0 in × 10 ft 0 in", m.Value)
		assert.Equal(t, 5, rec.PageNum)
	})

	t.Run("Score Order Wins Without Flat", func(t *testing.T) {
		_, rec, ok := e.BestFromRecords("master bedroom size", []retrieval.Record{flat2, flat1})
		require.True(t, ok)
		assert.Equal(t, 4, rec.PageNum)
	})

	t.Run("Default Rooms When None Named", func(t *testing.T) {
		kitchen := retrieval.Record{PageNum: 6, Text: "KITCHEN\n7'6\" x 9'0\""}
		m, rec, ok := e.BestFromRecords("what are the dimensions?", []retrieval.Record{unrelated, kitchen})
		require.True(t, ok)
		assert.Equal(t, "KITCHEN", m.Room)
		assert.Equal(t, 6, rec.PageNum)
	})

	t.Run("None", func(t *testing.T) {
		_, _, ok := e.BestFromRecords("kitchen size", []retrieval.Record{unrelated, flat1})
		assert.False(t, ok)
	})

	t.Run("No Records", func(t *testing.T) {
		_, _, ok := e.BestFromRecords("kitchen size", nil)
		assert.False(t, ok)
	})
}

func TestWantsImages(t *testing.T) {
	e := newTestExtractor(t)
	assert.True(t, e.WantsImages("Show me the floor plan"))
	assert.False(t, e.WantsImages("Who is the builder?"))
}
