// Package extract recovers plain text from uploaded documents.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rag-lab/server/internal/domain"
)

// Extractor resolves a document's stored file under the uploads directory
// and parses it by file type.
type Extractor struct {
	uploadsDir string
	parsers    map[string]Parser
	fallback   Parser
}

// New creates an Extractor for files stored under uploadsDir.
func New(uploadsDir string) *Extractor {
	html := HTMLParser{}
	return &Extractor{
		uploadsDir: uploadsDir,
		parsers: map[string]Parser{
			".pdf":   PDFParser{},
			".epub":  EPUBParser{},
			".html":  html,
			".htm":   html,
			".xhtml": html,
		},
		fallback: TextParser{},
	}
}

// Path returns where a document's file is stored.
func (e *Extractor) Path(doc *domain.Document) string {
	return filepath.Join(e.uploadsDir, doc.CollectionID, doc.FileName)
}

// Extract returns the full text of a document.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := e.parserFor(doc).Parse(ctx, e.Path(doc))
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", doc.OriginalName, err)
	}
	return text, nil
}

func (e *Extractor) parserFor(doc *domain.Document) Parser {
	if p, ok := e.parsers[strings.ToLower(filepath.Ext(doc.FileName))]; ok {
		return p
	}
	switch {
	case strings.Contains(doc.MimeType, "pdf"):
		return e.parsers[".pdf"]
	case strings.Contains(doc.MimeType, "epub"):
		return e.parsers[".epub"]
	case strings.Contains(doc.MimeType, "html"):
		return e.parsers[".html"]
	}
	return e.fallback
}
