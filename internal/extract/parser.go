package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gen2brain/go-fitz"
)

// Parser turns a file on disk into plain text.
type Parser interface {
	Parse(ctx context.Context, filePath string) (string, error)
}

// PDFParser extracts page text from PDF files
type PDFParser struct{}

// Parse extracts the text of every page, pages separated by blank lines.
func (PDFParser) Parse(ctx context.Context, filePath string) (string, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	return pageText(ctx, doc)
}

// EPUBParser extracts text from EPUB files with go-fitz, falling back to
// reading the XHTML documents in the archive.
type EPUBParser struct{}

// Parse extracts the book text.
func (EPUBParser) Parse(ctx context.Context, filePath string) (string, error) {
	doc, err := fitz.New(filePath)
	if err == nil {
		defer doc.Close()
		text, err := pageText(ctx, doc)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return parseEPUBArchive(filePath)
}

func pageText(ctx context.Context, doc *fitz.Document) (string, error) {
	var parts []string
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// parseEPUBArchive reads the (X)HTML files of an EPUB zip in name order.
func parseEPUBArchive(filePath string) (string, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open EPUB as zip: %w", err)
	}
	defer r.Close()

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		name := strings.ToLower(f.Name)
		if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".htm") {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var parts []string
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			continue
		}
		text, err := htmlText(rc)
		rc.Close()
		if err == nil && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// HTMLParser extracts visible text from HTML files
type HTMLParser struct{}

// Parse returns the body text with scripts and styles removed.
func (HTMLParser) Parse(_ context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open HTML: %w", err)
	}
	defer f.Close()

	return htmlText(f)
}

func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, head").Remove()

	var blocks []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return collapseSpaces(doc.Find("body").Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TextParser reads files as UTF-8 text
type TextParser struct{}

// Parse returns the file contents.
func (TextParser) Parse(_ context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
