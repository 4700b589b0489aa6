package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ParseMarkdown splits a Markdown document into pages at thematic breaks
// (---, ***, ___).
func ParseMarkdown(r io.Reader) (Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var pages []string
	var current bytes.Buffer

	flushPage := func() {
		pages = append(pages, current.String())
		current.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindThematicBreak {
			flushPage()
			continue
		}
		t := extractText(n, src)
		if t == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(t)
	}
	flushPage()

	return newPagedDocument(pages), nil
}

// OpenMarkdown reads a .md file.
func OpenMarkdown(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open markdown: %w", err)
	}
	defer f.Close()
	return ParseMarkdown(f)
}

// extractText gets the text content of a goldmark AST node. Inline
// markup is dropped; nested blocks are separated by newlines.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeNodeText(&buf, n, src)
	return strings.TrimSpace(buf.String())
}

func writeNodeText(buf *bytes.Buffer, n ast.Node, src []byte) {
	switch v := n.(type) {
	case *ast.Text:
		buf.Write(v.Segment.Value(src))
		if v.HardLineBreak() || v.SoftLineBreak() {
			buf.WriteByte('\n')
		}
		return
	case *ast.String:
		buf.Write(v.Value)
		return
	}

	// Code blocks and raw HTML keep their content in Lines, not children.
	if n.ChildCount() == 0 && n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		writeNodeText(buf, c, src)
	}
}
