package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docproof/internal/check"
	"github.com/dgallion1/docproof/internal/metrics"
	"github.com/dgallion1/docproof/internal/parser"
)

// Worker analyzes one uploaded document per job.
type Worker struct {
	deterministic check.Checker
	advisory      check.Checker
	log           *slog.Logger
	metrics       *metrics.Metrics
	parserOpts    parser.Options
	tmpDir        string
}

// NewWorker takes initialized checkers. tmpDir holds uploads while they
// are analyzed; empty means os.TempDir.
func NewWorker(deterministic, advisory check.Checker, log *slog.Logger, m *metrics.Metrics, opts parser.Options, tmpDir string) *Worker {
	return &Worker{
		deterministic: deterministic,
		advisory:      advisory,
		log:           log,
		metrics:       m,
		parserOpts:    opts,
		tmpDir:        tmpDir,
	}
}

// Process runs the page loop for a job and stores the report on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	job.SetStatus(StatusAnalyzing, "opening")
	path, err := w.spool(job)
	if err != nil {
		w.fail(log, job, "opening", err)
		return
	}
	defer os.Remove(path)

	doc, err := parser.Open(path, w.parserOpts)
	if err != nil {
		w.fail(log, job, "opening", err)
		return
	}
	defer doc.Close()

	n, err := doc.PageCount()
	if err != nil {
		w.fail(log, job, "opening", err)
		return
	}
	r, err := ResolveRange(job.StartPage, job.EndPage, n)
	if err != nil {
		w.fail(log, job, "range", err)
		return
	}

	job.SetStatus(StatusAnalyzing, "checking")
	log.Info("analysis started", "pages", n, "start", r.Start, "end", r.End)

	orch := NewOrchestrator(w.deterministic, w.advisory, log, Options{Progress: job, Metrics: w.metrics})
	agg, err := orch.Run(ctx, doc, r)
	if errors.Is(err, ErrInterrupted) {
		job.SetResult(nil)
		job.SetStatus(StatusInterrupted, "checking")
		return
	}
	if err != nil {
		w.fail(log, job, "checking", err)
		return
	}

	job.SetResult(agg)
	job.SetStatus(StatusCompleted, "done")
	log.Info("analysis completed",
		"pages_analyzed", agg.PagesAnalyzed,
		"pages_skipped", agg.PagesSkipped,
		"pages_failed", agg.PagesFailed,
		"findings", agg.Total(),
	)
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("analysis failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
	w.metrics.Run("error")
}

// spool writes the upload to a temp file that keeps its extension, since
// extractors are chosen by extension and the PDF reader needs a path.
func (w *Worker) spool(job *Job) (string, error) {
	ext := strings.ToLower(filepath.Ext(job.Filename))
	f, err := os.CreateTemp(w.tmpDir, "docproof-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(job.FileData()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}
