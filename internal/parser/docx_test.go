package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
)

func TestDocxPages_SplitsAtPageBreaks(t *testing.T) {
	doc := docx.New()
	doc.AddParagraph().AddText("Primera página.")
	doc.AddParagraph().AddText("Sigue la primera.")
	doc.AddParagraph().AddPageBreaks()
	doc.AddParagraph().AddText("Segunda página.")

	p := doc.AddParagraph()
	p.AddText("Antes del salto.")
	p.AddPageBreaks()
	p.AddText("Tercera página.")

	got := newPagedDocument(docxPages(doc))
	texts := pageTexts(t, got)
	want := []string{
		"Primera página.\n\nSigue la primera.",
		"Segunda página.\n\nAntes del salto.",
		"Tercera página.",
	}
	if len(texts) != len(want) {
		t.Fatalf("expected %d pages, got %d: %q", len(want), len(texts), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("page %d: expected %q, got %q", i, want[i], texts[i])
		}
	}
}

func TestDocxPages_NoBreaks(t *testing.T) {
	doc := docx.New()
	doc.AddParagraph().AddText("Único párrafo.")

	texts := pageTexts(t, newPagedDocument(docxPages(doc)))
	if len(texts) != 1 || texts[0] != "Único párrafo." {
		t.Errorf("expected a single page, got %q", texts)
	}
}

func TestOpenDOCX_RoundTrip(t *testing.T) {
	doc := docx.New()
	doc.AddParagraph().AddText("uno")
	doc.AddParagraph().AddPageBreaks()
	doc.AddParagraph().AddText("dos")

	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		t.Fatalf("write docx: %v", err)
	}
	f.Close()

	parsed, err := OpenDOCX(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	texts := pageTexts(t, parsed)
	if len(texts) != 2 || texts[0] != "uno" || texts[1] != "dos" {
		t.Errorf("expected [uno dos], got %q", texts)
	}
}

func TestOpenDOCX_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.docx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDOCX(path); err == nil {
		t.Fatal("expected error for invalid docx")
	}
}
