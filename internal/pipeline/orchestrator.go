package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docproof/internal/check"
	"github.com/dgallion1/docproof/internal/metrics"
	"github.com/dgallion1/docproof/internal/parser"
	"github.com/dgallion1/docproof/internal/report"
)

// ErrInterrupted is returned when the run is cancelled. Partial results
// are discarded.
var ErrInterrupted = errors.New("analysis interrupted")

// Outcome is what happened to a single page.
type Outcome int

const (
	OutcomeAnalyzed Outcome = iota
	// OutcomeSkipped pages had no text; no checker ran.
	OutcomeSkipped
	// OutcomeFailed pages could not be extracted or processed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnalyzed:
		return metrics.StatusAnalyzed
	case OutcomeSkipped:
		return metrics.StatusSkipped
	default:
		return metrics.StatusFailed
	}
}

// PageResult is the explicit per-page value consumed by aggregation.
type PageResult struct {
	Index    int
	Outcome  Outcome
	Findings map[report.Method][]report.Finding
	Err      error
}

// Options carries the optional collaborators of a run.
type Options struct {
	Debug    DebugSink
	Progress Progress
	Metrics  *metrics.Metrics
}

// Orchestrator runs every checker over every page of a range, strictly
// one page and one checker at a time.
type Orchestrator struct {
	checkers []check.Checker
	log      *slog.Logger
	opts     Options
}

// NewOrchestrator takes the deterministic and advisory checkers; they run
// in that order on every page.
func NewOrchestrator(deterministic, advisory check.Checker, log *slog.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		checkers: []check.Checker{deterministic, advisory},
		log:      log,
		opts:     opts,
	}
}

// Run analyzes pages r.Start..r.End of doc. Cancellation of ctx is
// observed between pages only; it yields ErrInterrupted and no report.
func (o *Orchestrator) Run(ctx context.Context, doc parser.Document, r PageRange) (*report.Aggregate, error) {
	n, err := doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if err := r.Validate(n); err != nil {
		return nil, err
	}

	agg := report.NewAggregate()
	if o.opts.Progress != nil {
		o.opts.Progress.Start(r.Len())
		defer o.opts.Progress.Finish()
	}

	for index := r.Start - 1; index < r.End; index++ {
		if ctx.Err() != nil {
			return nil, o.interrupted(index)
		}

		res := o.processPage(ctx, doc, index)
		switch res.Outcome {
		case OutcomeAnalyzed:
			agg.PagesAnalyzed++
			agg.Add(res.Index, res.Findings)
			for method, fs := range res.Findings {
				o.opts.Metrics.Findings(string(method), len(fs))
			}
		case OutcomeSkipped:
			agg.PagesSkipped++
		case OutcomeFailed:
			agg.PagesFailed++
			o.log.Warn("page failed", "page", index+1, "error", res.Err)
		}
		o.opts.Metrics.Page(res.Outcome.String())

		if o.opts.Progress != nil {
			o.opts.Progress.PageDone(index+1, res.Outcome)
		}
	}

	if ctx.Err() != nil {
		return nil, o.interrupted(r.End)
	}
	o.opts.Metrics.Run("ok")
	return agg, nil
}

func (o *Orchestrator) interrupted(index int) error {
	o.log.Warn("analysis interrupted, discarding results", "next_page", index+1)
	o.opts.Metrics.Run("interrupted")
	return ErrInterrupted
}

// processPage never panics; extraction failures become OutcomeFailed.
func (o *Orchestrator) processPage(ctx context.Context, doc parser.Document, index int) (res PageResult) {
	res.Index = index
	defer func() {
		if p := recover(); p != nil {
			res = PageResult{Index: index, Outcome: OutcomeFailed, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	text, err := doc.PageText(index)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	if o.opts.Debug != nil {
		if err := o.opts.Debug.WritePage(index, text); err != nil {
			o.log.Warn("debug write failed", "page", index+1, "error", err)
		}
	}

	if strings.TrimSpace(text) == "" {
		res.Outcome = OutcomeSkipped
		return res
	}

	// A checker call in flight is never interrupted.
	callCtx := context.WithoutCancel(ctx)
	res.Findings = make(map[report.Method][]report.Finding, len(o.checkers))
	for _, c := range o.checkers {
		start := time.Now()
		fs, err := safeCheck(callCtx, c, text)
		o.opts.Metrics.CheckerCall(string(c.Method()), time.Since(start), err)
		if err != nil {
			o.log.Warn("checker failed, counting no findings", "page", index+1, "method", c.Method(), "error", err)
			continue
		}
		res.Findings[c.Method()] = fs
	}
	res.Outcome = OutcomeAnalyzed
	return res
}

// safeCheck turns a checker panic into an error so the other checker
// still runs on the page.
func safeCheck(ctx context.Context, c check.Checker, text string) (fs []report.Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			fs, err = nil, fmt.Errorf("checker panic: %v", p)
		}
	}()
	return c.Check(ctx, text)
}
