package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// NoErrorsMessage is rendered instead of page blocks when no page has findings.
const NoErrorsMessage = "No se encontraron errores.\n"

const (
	noSuggestions   = "sin sugerencias"
	manualReview    = "revisar manualmente"
	unknownCategory = "Desconocido"
)

// Format selects an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format: %q", s)
	}
}

// Render dispatches to the renderer for format.
func Render(agg *Aggregate, format Format) ([]byte, error) {
	switch format {
	case "", FormatText:
		return []byte(RenderText(agg)), nil
	case FormatMarkdown:
		return []byte(RenderMarkdown(agg)), nil
	case FormatHTML:
		return RenderHTML(agg)
	case FormatJSON:
		return RenderJSON(agg)
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}

// RenderText renders the human-readable plain text report.
func RenderText(agg *Aggregate) string {
	if agg == nil || len(agg.Pages) == 0 {
		return NoErrorsMessage
	}

	rule := strings.Repeat("=", 80)
	var out []string
	for _, page := range agg.Pages {
		det := page.Findings[Deterministic]
		adv := page.Findings[Advisory]
		if len(det) == 0 && len(adv) == 0 {
			continue
		}

		out = append(out, rule, fmt.Sprintf("Página %d", page.Number()), rule)

		if len(det) > 0 {
			out = append(out, fmt.Sprintf("\n📝 Errores detectados por LanguageTool (%d):", len(det)))
			for _, f := range det {
				out = append(out,
					"  ❌ \""+f.Word+"\"",
					"     Tipo: "+category(f),
					fmt.Sprintf("     Posición: %d", f.Offset),
					"     Sugerencia: "+joinSuggestions(f.Suggestions, "|", noSuggestions),
					"",
				)
			}
		}

		if len(adv) > 0 {
			out = append(out, fmt.Sprintf("\n🤖 Errores de redacción detectados por LLM (%d):", len(adv)))
			for _, f := range adv {
				out = append(out,
					"  ❌ \""+f.Word+"\"",
					"     Tipo: "+category(f),
					"     Sugerencia: "+joinSuggestions(f.Suggestions, " | ", manualReview),
				)
				if f.Reason != "" {
					out = append(out, "     Razón: "+f.Reason)
				}
				out = append(out, "")
			}
		}

		out = append(out, "")
	}
	if len(out) == 0 {
		return NoErrorsMessage
	}
	return strings.Join(out, "\n")
}

// RenderMarkdown renders the report as a Markdown document.
func RenderMarkdown(agg *Aggregate) string {
	var sb strings.Builder
	sb.WriteString("# Informe de errores\n\n")
	if agg == nil || len(agg.Pages) == 0 {
		sb.WriteString(NoErrorsMessage)
		return sb.String()
	}

	fmt.Fprintf(&sb, "LanguageTool: %d · LLM: %d · Páginas con errores: %d\n\n",
		agg.Totals[Deterministic], agg.Totals[Advisory], len(agg.Pages))

	for _, page := range agg.Pages {
		fmt.Fprintf(&sb, "## Página %d\n\n", page.Number())
		if det := page.Findings[Deterministic]; len(det) > 0 {
			fmt.Fprintf(&sb, "### Errores detectados por LanguageTool (%d)\n\n", len(det))
			for _, f := range det {
				fmt.Fprintf(&sb, "- **%s**\n", escapeMarkdown(f.Word))
				fmt.Fprintf(&sb, "  - Tipo: %s\n", escapeMarkdown(category(f)))
				fmt.Fprintf(&sb, "  - Posición: %d\n", f.Offset)
				fmt.Fprintf(&sb, "  - Sugerencia: %s\n", escapeMarkdown(joinSuggestions(f.Suggestions, "|", noSuggestions)))
			}
			sb.WriteString("\n")
		}
		if adv := page.Findings[Advisory]; len(adv) > 0 {
			fmt.Fprintf(&sb, "### Errores de redacción detectados por LLM (%d)\n\n", len(adv))
			for _, f := range adv {
				fmt.Fprintf(&sb, "- **%s**\n", escapeMarkdown(f.Word))
				fmt.Fprintf(&sb, "  - Tipo: %s\n", escapeMarkdown(category(f)))
				fmt.Fprintf(&sb, "  - Sugerencia: %s\n", escapeMarkdown(joinSuggestions(f.Suggestions, " | ", manualReview)))
				if f.Reason != "" {
					fmt.Fprintf(&sb, "  - Razón: %s\n", escapeMarkdown(f.Reason))
				}
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// RenderHTML converts the Markdown report into a standalone HTML page.
func RenderHTML(agg *Aggregate) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(RenderMarkdown(agg)), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html lang=\"es\">\n<head>\n<meta charset=\"utf-8\">\n<title>Informe de errores</title>\n</head>\n<body>\n")
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// RenderJSON renders the aggregate as indented JSON.
func RenderJSON(agg *Aggregate) ([]byte, error) {
	if agg == nil {
		agg = NewAggregate()
	}
	out := *agg
	if out.Pages == nil {
		out.Pages = []PageReport{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

func category(f Finding) string {
	if f.Category == "" {
		return unknownCategory
	}
	return f.Category
}

func joinSuggestions(s []string, sep, fallback string) string {
	if len(s) == 0 {
		return fallback
	}
	return strings.Join(s, sep)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
	"#", `\#`, "|", `\|`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
