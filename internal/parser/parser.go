package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrPageOutOfRange is returned for a page index outside the document.
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrUnsupported is returned for file types with no extractor.
	ErrUnsupported = errors.New("unsupported file type")
)

// Document yields the page count and per-page text of a paginated file.
// Page indices are 0-based. Calls may come in any order.
type Document interface {
	PageCount() (int, error)
	// PageText returns the trimmed text of a page, or "" when the page
	// has no extractable text.
	PageText(index int) (string, error)
	Close() error
}

// Options tunes extraction.
type Options struct {
	// FallbackPdftotext retries a failed PDF page with the pdftotext binary.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this tool can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
}

// Open returns the Document implementation for a file, chosen by extension.
func Open(path string, opts Options) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return OpenPDF(path, opts)
	case ".docx":
		return OpenDOCX(path)
	case ".md", ".markdown":
		return OpenMarkdown(path)
	case ".html", ".htm":
		return OpenHTML(path)
	case ".txt":
		return OpenText(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// pagedDocument serves formats that are split into pages once, at open time.
type pagedDocument struct {
	pages []string
}

func newPagedDocument(pages []string) *pagedDocument {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strings.TrimSpace(p)
	}
	return &pagedDocument{pages: out}
}

func (d *pagedDocument) PageCount() (int, error) {
	return len(d.pages), nil
}

func (d *pagedDocument) PageText(index int) (string, error) {
	if index < 0 || index >= len(d.pages) {
		return "", fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, index, len(d.pages))
	}
	return d.pages[index], nil
}

func (d *pagedDocument) Close() error {
	return nil
}
