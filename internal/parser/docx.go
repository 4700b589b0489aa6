package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// OpenDOCX parses a .docx file and splits it into pages at explicit
// page breaks (<w:br w:type="page"/>). Rendered pagination is not
// available without a layout engine.
func OpenDOCX(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat docx: %w", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return newPagedDocument(docxPages(doc)), nil
}

// docxPages walks the body paragraphs. A page break inside a run ends
// the current page; text after it in the same paragraph starts the next.
func docxPages(doc *docx.Docx) []string {
	var pages []string
	var page strings.Builder
	var para strings.Builder

	flushPara := func() {
		t := strings.TrimSpace(para.String())
		para.Reset()
		if t == "" {
			return
		}
		if page.Len() > 0 {
			page.WriteString("\n\n")
		}
		page.WriteString(t)
	}
	flushPage := func() {
		flushPara()
		pages = append(pages, page.String())
		page.Reset()
	}

	for _, item := range doc.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		for _, child := range p.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			for _, rc := range run.Children {
				switch v := rc.(type) {
				case *docx.Text:
					para.WriteString(v.Text)
				case *docx.Tab:
					para.WriteByte('\t')
				case *docx.BarterRabbet:
					if v.Type == "page" {
						flushPage()
					} else {
						para.WriteByte('\n')
					}
				}
			}
		}
		flushPara()
	}
	flushPage()
	return pages
}
