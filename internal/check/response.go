package check

import (
	"strings"

	"github.com/dgallion1/docproof/internal/report"
)

// NoErrorsMarker is the model's reply for a clean text.
const NoErrorsMarker = "NO_ERRORS"

const (
	defaultAdvisoryType = "Redacción"
	manualReview        = "revisar manualmente"
	advisoryPrefix      = "LLM-"
)

// LineStatus is the outcome of parsing one response line.
type LineStatus int

const (
	// LineIgnored lines lack a '|' or the ERROR: field and are not findings.
	LineIgnored LineStatus = iota
	LineParsed
	// LineMalformed lines looked like findings but could not be read.
	LineMalformed
)

func (s LineStatus) String() string {
	switch s {
	case LineParsed:
		return "parsed"
	case LineMalformed:
		return "malformed"
	default:
		return "ignored"
	}
}

// LineResult records what happened to a single line of a model response.
type LineResult struct {
	Line    int // 1-based
	Status  LineStatus
	Finding report.Finding // set when Status is LineParsed
	Problem string         // set when Status is LineMalformed
}

// ParseResponse reads a model reply in the
// `LÍNEA n | TIPO: t | ERROR: "x" | SUGERENCIA: "y" | RAZÓN: r` grammar.
// Every line is evaluated independently; a malformed line never affects
// its siblings. A reply containing NO_ERRORS in any case has no findings.
func ParseResponse(response string) ([]report.Finding, []LineResult) {
	response = strings.TrimSpace(response)
	if strings.Contains(strings.ToUpper(response), NoErrorsMarker) {
		return nil, nil
	}

	var findings []report.Finding
	var results []LineResult
	for i, line := range strings.Split(response, "\n") {
		res := parseLine(line)
		res.Line = i + 1
		if res.Status == LineParsed {
			findings = append(findings, res.Finding)
		}
		results = append(results, res)
	}
	return findings, results
}

func parseLine(line string) LineResult {
	if !strings.Contains(line, "|") || !strings.Contains(line, "ERROR:") {
		return LineResult{Status: LineIgnored}
	}

	parts := strings.Split(line, "|")
	errPart, ok := firstField(parts, "ERROR:")
	if !ok {
		return LineResult{Status: LineMalformed, Problem: "no ERROR: field"}
	}
	word, ok := quotedPayload(errPart)
	if !ok {
		return LineResult{Status: LineMalformed, Problem: "unbalanced quotes in ERROR: field"}
	}
	if word == "" {
		return LineResult{Status: LineMalformed, Problem: "empty ERROR: field"}
	}

	suggestion := manualReview
	if s, ok := firstField(parts, "SUGERENCIA:"); ok {
		suggestion = strings.Trim(strings.TrimSpace(s), `"`)
	}

	kind := defaultAdvisoryType
	if s, ok := firstField(parts, "TIPO:"); ok {
		kind = strings.TrimSpace(s)
	}

	var reason string
	if s, ok := firstField(parts, "RAZÓN:", "RAZON:"); ok {
		reason = strings.TrimSpace(s)
	}

	f := report.Finding{
		Method:   report.Advisory,
		Word:     word,
		Offset:   report.UnknownOffset,
		Category: advisoryPrefix + kind,
		Context:  "..." + word + "...",
		Reason:   reason,
	}
	if suggestion != "" {
		f.Suggestions = []string{suggestion}
	}
	return LineResult{Status: LineParsed, Finding: f}
}

// firstField finds the first segment containing any of the labels and
// returns the text after the label.
func firstField(parts []string, labels ...string) (string, bool) {
	for _, p := range parts {
		for _, label := range labels {
			if _, after, ok := strings.Cut(p, label); ok {
				return after, true
			}
		}
	}
	return "", false
}

// quotedPayload strips surrounding quotes. An opening quote without a
// closing one is rejected.
func quotedPayload(s string) (string, bool) {
	s = strings.TrimSpace(s)
	opens := strings.HasPrefix(s, `"`)
	closes := len(s) > 1 && strings.HasSuffix(s, `"`)
	if opens != closes {
		return "", false
	}
	return strings.TrimSpace(strings.Trim(s, `"`)), true
}
