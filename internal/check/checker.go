// Package check holds the two error detectors run against every page: a
// LanguageTool server for spelling and grammar, and an Ollama-served model
// for style and coherence.
package check

import (
	"context"
	"errors"

	"github.com/dgallion1/docproof/internal/report"
)

// ErrUnavailable is returned by Initialize when a checker's backing service
// can't be reached or started.
var ErrUnavailable = errors.New("checker unavailable")

// Checker is one error-detection method.
type Checker interface {
	Method() report.Method
	// Initialize acquires the checker's resources. It must succeed before
	// Check is called.
	Initialize(ctx context.Context) error
	// Check returns the findings for a page, in source order. Blank text
	// yields no findings and no backend call.
	Check(ctx context.Context, text string) ([]report.Finding, error)
	// Cleanup releases resources. Safe to call more than once, and before
	// Initialize.
	Cleanup() error
}
