package check

import "strings"

// DefaultMaxInputChars caps how much of a page is sent to the model.
const DefaultMaxInputChars = 2000

const ReviewPrompt = `Eres un corrector profesional de textos en español. Analiza el siguiente texto y encuentra TODOS los errores de:
1. Redacción (construcción de frases, claridad)
2. Coherencia (ideas que no fluyen bien)
3. Concordancia (género, número, tiempo verbal)
4. Estilo (repeticiones innecesarias, redundancias)
5. Puntuación incorrecta o faltante

IMPORTANTE: Solo reporta errores REALES. No inventes errores que no existen.

Formato de respuesta (un error por línea):
LÍNEA [número aproximado] | TIPO: [tipo de error] | ERROR: "[texto erróneo]" | SUGERENCIA: "[corrección]" | RAZÓN: [breve explicación]

Si no hay errores, responde: "NO_ERRORS"`

// BuildReviewPrompt appends the first maxChars characters of text to the
// review instructions. maxChars counts runes, not bytes.
func BuildReviewPrompt(text string, maxChars int) string {
	var sb strings.Builder
	sb.WriteString(ReviewPrompt)
	sb.WriteString("\n\nTexto a analizar:\n")
	sb.WriteString(truncateRunes(text, maxChars))
	sb.WriteString("\n")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
