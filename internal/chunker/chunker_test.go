package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildParagraphs(count int) string {
	paragraphs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		filler := strings.TrimSpace(strings.Repeat("This is filler sentence number one. ", 2))
		paragraphs = append(paragraphs, fmt.Sprintf("Paragraph %d. %s", i+1, filler))
	}
	return strings.Join(paragraphs, "\n\n")
}

func TestSplit_BlankInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n", "\t\t"} {
		assert.Empty(t, Split(input, DefaultChunkSize, DefaultChunkOverlap), "input %q", input)
	}
}

func TestSplit_ShortText(t *testing.T) {
	pieces := Split("Hello world.", 100, DefaultChunkOverlap)

	require.Len(t, pieces, 1)
	assert.Equal(t, "Hello world.", pieces[0].Content)
	assert.Equal(t, 3, pieces[0].TokenEstimate)
}

func TestSplit_ExactlyChunkSize(t *testing.T) {
	text := strings.Repeat("x", 500)
	pieces := Split(text, 500, DefaultChunkOverlap)

	require.Len(t, pieces, 1)
	assert.Equal(t, text, pieces[0].Content)
}

func TestSplit_OversizedLeaf(t *testing.T) {
	t.Run("default size", func(t *testing.T) {
		text := strings.Repeat("a", 1200)
		pieces := New().Split(text)

		require.Len(t, pieces, 1)
		assert.Equal(t, text, pieces[0].Content)
		assert.Equal(t, 300, pieces[0].TokenEstimate)
	})

	t.Run("custom size", func(t *testing.T) {
		text := strings.Repeat("a", 800)
		pieces := Split(text, 300, 0)

		require.Len(t, pieces, 1)
		assert.Equal(t, text, pieces[0].Content)
	})
}

func TestSplit_Separators(t *testing.T) {
	t.Run("paragraphs produce several chunks", func(t *testing.T) {
		pieces := Split(buildParagraphs(10), 300, 0)

		assert.Greater(t, len(pieces), 1)
		for _, p := range pieces {
			assert.NotEmpty(t, p.Content)
		}
	})

	t.Run("sentences when there are no paragraph breaks", func(t *testing.T) {
		text := strings.Repeat("First sentence here. Second sentence here. Third sentence here. ", 10)
		pieces := Split(text, 150, 0)

		assert.Greater(t, len(pieces), 1)
	})

	t.Run("small fragments merge", func(t *testing.T) {
		lines := make([]string, 20)
		for i := range lines {
			lines[i] = fmt.Sprintf("Line %d.", i)
		}
		pieces := Split(strings.Join(lines, "\n\n"), 200, 0)

		assert.Len(t, pieces, 1)
	})

	t.Run("sentence terminators", func(t *testing.T) {
		pieces := Split("A. B. C.", 2, 0)

		require.Len(t, pieces, 3)
		assert.Equal(t, "A", pieces[0].Content)
		assert.Equal(t, "B", pieces[1].Content)
		assert.Equal(t, "C.", pieces[2].Content)
	})
}

func TestSplit_Overlap(t *testing.T) {
	text := buildParagraphs(10)

	t.Run("first chunk does not depend on overlap", func(t *testing.T) {
		for _, k := range []int{10, 40, 50, 120} {
			with := Split(text, 300, k)
			without := Split(text, 300, 0)
			require.NotEmpty(t, with)
			assert.Equal(t, without[0].Content, with[0].Content, "overlap %d", k)
		}
	})

	t.Run("overlap comes from the previous merged chunk", func(t *testing.T) {
		base := Split(text, 250, 0)
		require.Greater(t, len(base), 1)
		for _, k := range []int{1, 40, 50, 200} {
			pieces := Split(text, 250, k)
			require.Len(t, pieces, len(base), "overlap %d", k)
			for i := 1; i < len(pieces); i++ {
				want := tail(base[i-1].Content, k) + " " + base[i].Content
				assert.Equal(t, want, pieces[i].Content, "overlap %d chunk %d", k, i)
			}
		}
	})

	t.Run("each chunk contains the tail of the previous one", func(t *testing.T) {
		for _, k := range []int{1, 40, 50} {
			pieces := Split(text, 250, k)
			require.Greater(t, len(pieces), 1)
			for i := 1; i < len(pieces); i++ {
				assert.Contains(t, pieces[i].Content, tail(pieces[i-1].Content, k), "overlap %d chunk %d", k, i)
			}
		}
	})

	t.Run("chunks shorter than the overlap", func(t *testing.T) {
		pieces := Split("A. B. C.", 2, 50)

		require.Len(t, pieces, 3)
		assert.Equal(t, "A", pieces[0].Content)
		assert.Equal(t, "A B", pieces[1].Content)
		assert.Equal(t, "B C.", pieces[2].Content)
	})

	t.Run("zero overlap shares nothing", func(t *testing.T) {
		sentences := make([]string, 20)
		for i := range sentences {
			sentences[i] = fmt.Sprintf("Sentence number %d with some padding text.", i)
		}
		pieces := Split(strings.Join(sentences, " "), 200, 0)
		require.Greater(t, len(pieces), 1)

		for i := 1; i < len(pieces); i++ {
			assert.False(t, strings.HasPrefix(pieces[i].Content, tail(pieces[i-1].Content, 30)))
		}
	})
}

func TestSplit_LengthBound(t *testing.T) {
	texts := []string{
		buildParagraphs(25),
		strings.Repeat("Words without much punctuation keep flowing along ", 60),
		strings.Repeat("Short line.\n", 200),
		strings.Repeat("héllo wörld, ", 150),
	}
	for _, text := range texts {
		for _, size := range []int{50, 120, 300, 500} {
			for _, k := range []int{0, 10, 50} {
				limit := size
				if k > 0 {
					limit = size + k + 1
				}
				for _, p := range Split(text, size, k) {
					assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), limit, "size %d overlap %d", size, k)
				}
			}
		}
	}

	t.Run("piece of exactly chunk size", func(t *testing.T) {
		pieces := Split("aaaa\n\nbbbbb", 5, 2)

		require.Len(t, pieces, 2)
		assert.Equal(t, "aaaa", pieces[0].Content)
		assert.Equal(t, "aa bbbbb", pieces[1].Content)
		assert.Equal(t, 5+2+1, utf8.RuneCountInString(pieces[1].Content))
	})
}

func TestSplit_MergeFillsChunkSize(t *testing.T) {
	t.Run("later chunks use the full budget", func(t *testing.T) {
		pieces := Split("aaaa bbbb cccc dddd", 9, 2)

		require.Len(t, pieces, 2)
		assert.Equal(t, "aaaa bbbb", pieces[0].Content)
		assert.Equal(t, "bb cccc dddd", pieces[1].Content)
	})

	t.Run("defaults", func(t *testing.T) {
		pieces := New().Split(strings.Repeat("word ", 400))

		require.Len(t, pieces, 4)
		assert.Equal(t, 499, utf8.RuneCountInString(pieces[0].Content))
		for _, p := range pieces[1:] {
			assert.Equal(t, 50+1+499, utf8.RuneCountInString(p.Content))
		}
	})
}

func TestSplit_TokenEstimate(t *testing.T) {
	for _, p := range Split(buildParagraphs(5), 200, DefaultChunkOverlap) {
		assert.Equal(t, (utf8.RuneCountInString(p.Content)+3)/4, p.TokenEstimate)
		assert.Greater(t, p.TokenEstimate, 0)
	}
}

func TestSplit_NoInventedContent(t *testing.T) {
	text := "Alpha bravo charlie. Delta echo foxtrot."
	for _, p := range Split(text, 30, 0) {
		for _, word := range strings.Fields(p.Content) {
			cleaned := strings.Trim(word, ".,!?")
			if cleaned != "" {
				assert.Contains(t, text, cleaned)
			}
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"日本語テキスト", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.in), tt.in)
	}
}

func TestNew_Options(t *testing.T) {
	s := New(WithChunkSize(-1), WithOverlap(-5))
	assert.Equal(t, DefaultChunkSize, s.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, s.Overlap())

	s = New(WithChunkSize(120), WithOverlap(0))
	assert.Equal(t, 120, s.ChunkSize())
	assert.Equal(t, 0, s.Overlap())
}
