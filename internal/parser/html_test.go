package parser

import (
	"strings"
	"testing"
)

func TestParseHTML_SplitsAtHR(t *testing.T) {
	input := `<html><head><title>Doc</title><style>p{}</style></head>
<body>
<h1>Título</h1>
<p>Primer párrafo.</p>
<script>var x = 1;</script>
<hr>
<ul><li>Elemento uno</li><li>Elemento dos</li></ul>
<hr/>
<div>Texto suelto</div>
</body></html>`

	doc, err := ParseHTML(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := pageTexts(t, doc)
	want := []string{
		"Título\n\nPrimer párrafo.",
		"Elemento uno\n\nElemento dos",
		"Texto suelto",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d pages, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	for _, page := range got {
		if strings.Contains(page, "var x") || strings.Contains(page, "p{}") {
			t.Errorf("script or style leaked into page text: %q", page)
		}
	}
}

func TestParseHTML_NoHR(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader("<p>Solo una página.</p>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := pageTexts(t, doc)
	if len(got) != 1 || got[0] != "Solo una página." {
		t.Errorf("expected single page, got %q", got)
	}
}
