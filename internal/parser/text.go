package parser

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseText splits plain text into pages at form feeds, the separator
// pdftotext and most print pipelines emit.
func ParseText(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	pages := strings.Split(text, "\f")
	// A trailing form feed closes the last page rather than opening a new one.
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return newPagedDocument(pages), nil
}

// OpenText reads a .txt file.
func OpenText(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text: %w", err)
	}
	defer f.Close()
	return ParseText(f)
}
