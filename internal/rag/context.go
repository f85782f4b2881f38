package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rag-lab/server/internal/domain"
)

// ExcerptLength is the number of characters of a chunk quoted in a source.
const ExcerptLength = 120

const systemPreamble = `You are a helpful research assistant. Answer the user's question using ONLY the context provided below. If the context does not contain enough information to answer, say so honestly and do not make things up.

When referencing information, mention which source it came from using the document name in parentheses, e.g. "(report.pdf)".

Keep your answers clear, concise, and well-structured.`

// BuildSystemPrompt grounds the model in the retrieved chunks. Blocks are
// numbered from 1 in retrieval order.
func BuildSystemPrompt(hits []domain.SearchHit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[%d] (%s)\n%s", i+1, h.DocumentName, h.Content)
	}

	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n--- CONTEXT ---\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n--- END CONTEXT ---\n")
	return b.String()
}

// Sources lists each cited document once, in first-seen order, quoting the
// first hit from it.
func Sources(hits []domain.SearchHit) []domain.Source {
	seen := make(map[string]bool)
	sources := make([]domain.Source, 0)
	for _, h := range hits {
		if seen[h.DocumentID] {
			continue
		}
		seen[h.DocumentID] = true
		sources = append(sources, domain.Source{
			DocumentName: h.DocumentName,
			Excerpt:      Excerpt(h.Content),
		})
	}
	return sources
}

// Excerpt truncates content to ExcerptLength characters, marking the cut
// with an ellipsis.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) <= ExcerptLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:ExcerptLength]) + "…"
}
