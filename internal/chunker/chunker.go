// Package chunker splits document text into bounded, overlapping pieces
// ready for embedding.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default target chunk length in characters.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of characters repeated from the
// previous chunk.
const DefaultChunkOverlap = 50

// separators are tried in order, coarsest first.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " "}

// Piece is one chunk of text with its rough token count.
type Piece struct {
	Content       string
	TokenEstimate int
}

// Splitter splits text on paragraph, line, sentence and word boundaries.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between neighbouring chunks in characters.
// Zero disables overlap.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split is shorthand for New(WithChunkSize(chunkSize), WithOverlap(overlap)).Split(text).
func Split(text string, chunkSize, overlap int) []Piece {
	return New(WithChunkSize(chunkSize), WithOverlap(overlap)).Split(text)
}

// ChunkSize returns the configured chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split breaks text into ordered chunks. Blank input yields no chunks.
//
// Pieces are merged into chunks of at most chunkSize characters, and every
// chunk after the first is prefixed with the last overlap characters of the
// previous merged chunk plus a joining space. A chunk is therefore at most
// chunkSize+overlap+1 characters long unless it holds a single piece that no
// separator could break up. Chunk 0 does not depend on the overlap setting.
func (s *Splitter) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	merged := s.merge(splitRecursive(text, separators, s.chunkSize))

	pieces := make([]Piece, 0, len(merged))
	for i, body := range merged {
		content := body
		if i > 0 && s.overlap > 0 {
			content = tail(merged[i-1], s.overlap) + " " + body
		}
		pieces = append(pieces, Piece{
			Content:       content,
			TokenEstimate: EstimateTokens(content),
		})
	}
	return pieces
}

// merge joins split pieces with single spaces, flushing whenever the next
// piece would push the buffer past chunkSize.
func (s *Splitter) merge(raw []string) []string {
	var (
		merged []string
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		merged = append(merged, buf.String())
		buf.Reset()
		bufLen = 0
	}

	for _, piece := range raw {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		n := utf8.RuneCountInString(piece)
		if bufLen > 0 && bufLen+n+1 > s.chunkSize {
			flush()
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(piece)
		bufLen += n
	}
	if bufLen > 0 {
		flush()
	}
	return merged
}

// splitRecursive splits text on the first separator it contains and recurses
// into oversized parts with the finer separators that remain.
func splitRecursive(text string, seps []string, size int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	idx := -1
	for i, sep := range seps {
		if strings.Contains(text, sep) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return []string{text}
	}

	remaining := seps[idx+1:]
	var out []string
	for _, part := range strings.Split(text, seps[idx]) {
		if utf8.RuneCountInString(part) <= size {
			out = append(out, part)
			continue
		}
		out = append(out, splitRecursive(part, remaining, size)...)
	}
	return out
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// EstimateTokens approximates the token count of s at four characters per token.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}
