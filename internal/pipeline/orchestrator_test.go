package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/docproof/internal/report"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDoc struct {
	pages    []string
	failAt   map[int]bool
	panicAt  map[int]bool
	countErr error
}

func (d *fakeDoc) PageCount() (int, error) {
	if d.countErr != nil {
		return 0, d.countErr
	}
	return len(d.pages), nil
}

func (d *fakeDoc) PageText(index int) (string, error) {
	if d.panicAt[index] {
		panic("corrupt page")
	}
	if d.failAt[index] {
		return "", errors.New("extraction failed")
	}
	return d.pages[index], nil
}

func (d *fakeDoc) Close() error { return nil }

type fakeChecker struct {
	method  report.Method
	results map[string][]report.Finding // keyed by page text
	errOn   map[string]bool
	panicOn map[string]bool
	calls   []string
	onCall  func()
}

func (c *fakeChecker) Method() report.Method                { return c.method }
func (c *fakeChecker) Initialize(ctx context.Context) error { return nil }
func (c *fakeChecker) Cleanup() error                       { return nil }

func (c *fakeChecker) Check(ctx context.Context, text string) ([]report.Finding, error) {
	c.calls = append(c.calls, text)
	if c.onCall != nil {
		c.onCall()
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("checker saw cancelled context: %w", ctx.Err())
	}
	if c.panicOn[text] {
		panic("checker bug")
	}
	if c.errOn[text] {
		return nil, errors.New("backend down")
	}
	return c.results[text], nil
}

func det(word string, offset int) report.Finding {
	return report.Finding{Method: report.Deterministic, Word: word, Offset: offset, Category: "TYPOS"}
}

func adv(word string) report.Finding {
	return report.Finding{Method: report.Advisory, Word: word, Offset: report.UnknownOffset, Category: "LLM-Estilo"}
}

func newFakes() (*fakeChecker, *fakeChecker) {
	return &fakeChecker{method: report.Deterministic, results: map[string][]report.Finding{}, errOn: map[string]bool{}},
		&fakeChecker{method: report.Advisory, results: map[string][]report.Finding{}, errOn: map[string]bool{}}
}

func TestRun_BlankPagesInvokeNoChecker(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{pages: []string{"", "   \n\t", "Hola."}}

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), doc, PageRange{1, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.calls) != 1 || len(a.calls) != 1 {
		t.Fatalf("expected one call per checker, got %d and %d", len(d.calls), len(a.calls))
	}
	if agg.PagesSkipped != 2 || agg.PagesAnalyzed != 1 {
		t.Errorf("expected 2 skipped / 1 analyzed, got %d / %d", agg.PagesSkipped, agg.PagesAnalyzed)
	}
	if len(agg.Pages) != 0 {
		t.Errorf("expected no pages with findings, got %d", len(agg.Pages))
	}
}

func TestRun_ScenarioA(t *testing.T) {
	d, a := newFakes()
	text := "Este es un texo con eror."
	d.results[text] = []report.Finding{{Method: report.Deterministic, Word: "texo", Offset: 11, Suggestions: []string{"texto"}, Category: "TYPOS"}}

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), &fakeDoc{pages: []string{text}}, PageRange{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := report.RenderText(agg)
	if strings.Count(out, "Errores detectados por LanguageTool (1)") != 1 {
		t.Errorf("expected one deterministic block, got:\n%s", out)
	}
	if strings.Contains(out, "LLM") {
		t.Errorf("expected no advisory block, got:\n%s", out)
	}
	if !strings.Contains(out, `❌ "texo"`) || !strings.Contains(out, "Posición: 11") {
		t.Errorf("unexpected render:\n%s", out)
	}
}

func TestRun_PrunesAndOrders(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{pages: []string{"p1", "p2", "p3", "p4"}}
	d.results["p3"] = []report.Finding{det("x", 0)}
	a.results["p1"] = []report.Finding{adv("y")}
	a.results["p3"] = []report.Finding{adv("z"), adv("w")}

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), doc, PageRange{1, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg.Pages) != 2 || agg.Pages[0].Index != 0 || agg.Pages[1].Index != 2 {
		t.Fatalf("expected pages 0 and 2, got %+v", agg.Pages)
	}
	if _, ok := agg.Pages[0].Findings[report.Deterministic]; ok {
		t.Error("expected no deterministic key on page 0")
	}
	if agg.Totals[report.Deterministic] != 1 || agg.Totals[report.Advisory] != 3 {
		t.Errorf("unexpected totals: %v", agg.Totals)
	}
	if agg.PagesAnalyzed != 4 {
		t.Errorf("expected 4 analyzed pages, got %d", agg.PagesAnalyzed)
	}
}

func TestRun_CheckerOrderIsFixed(t *testing.T) {
	var order []report.Method
	d, a := newFakes()
	d.onCall = func() { order = append(order, report.Deterministic) }
	a.onCall = func() { order = append(order, report.Advisory) }

	_, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), &fakeDoc{pages: []string{"a", "b"}}, PageRange{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []report.Method{report.Deterministic, report.Advisory, report.Deterministic, report.Advisory}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("expected order %v, got %v", want, order)
	}
}

func TestRun_CheckerErrorCountsAsNoFindings(t *testing.T) {
	d, a := newFakes()
	d.errOn["p1"] = true
	a.results["p1"] = []report.Finding{adv("y")}

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), &fakeDoc{pages: []string{"p1"}}, PageRange{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg.Pages) != 1 || len(agg.Pages[0].Findings[report.Advisory]) != 1 {
		t.Fatalf("expected advisory findings to survive, got %+v", agg.Pages)
	}
	if len(a.calls) != 1 {
		t.Error("expected advisory checker to still run")
	}
}

func TestRun_CheckerPanicKeepsOtherMethod(t *testing.T) {
	d, a := newFakes()
	d.panicOn = map[string]bool{"p1": true}
	a.results["p1"] = []report.Finding{adv("y")}
	d.results["p2"] = []report.Finding{det("x", 0)}

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), &fakeDoc{pages: []string{"p1", "p2"}}, PageRange{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.PagesFailed != 0 || agg.PagesAnalyzed != 2 {
		t.Fatalf("expected 2 analyzed / 0 failed, got %d / %d", agg.PagesAnalyzed, agg.PagesFailed)
	}
	if len(a.calls) != 2 {
		t.Fatalf("expected advisory checker on both pages, got %d calls", len(a.calls))
	}
	if len(agg.Pages) != 2 || len(agg.Pages[0].Findings[report.Advisory]) != 1 {
		t.Fatalf("expected advisory finding on page 1, got %+v", agg.Pages)
	}
	if len(agg.Pages[0].Findings[report.Deterministic]) != 0 {
		t.Errorf("expected no deterministic findings after panic, got %+v", agg.Pages[0].Findings)
	}
	if len(agg.Pages[1].Findings[report.Deterministic]) != 1 {
		t.Errorf("expected deterministic finding on page 2, got %+v", agg.Pages[1].Findings)
	}
}

func TestRun_PageFailureIsIsolated(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{
		pages:   []string{"p1", "p2", "p3"},
		failAt:  map[int]bool{0: true},
		panicAt: map[int]bool{1: true},
	}
	d.results["p3"] = []report.Finding{det("x", 1)}

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), doc, PageRange{1, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.PagesFailed != 2 {
		t.Errorf("expected 2 failed pages, got %d", agg.PagesFailed)
	}
	if len(agg.Pages) != 1 || agg.Pages[0].Index != 2 {
		t.Errorf("expected page 2 to be reported, got %+v", agg.Pages)
	}
}

func TestRun_CancellationDiscardsResults(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{pages: []string{"p1", "p2", "p3"}}
	d.results["p1"] = []report.Finding{det("x", 0)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancel while page 1 is being checked; the call in flight completes.
	d.onCall = cancel

	agg, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(ctx, doc, PageRange{1, 3})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if agg != nil {
		t.Error("expected no aggregate on interruption")
	}
	if len(d.calls) != 1 || len(a.calls) != 1 {
		t.Errorf("expected page 1 to finish and no more pages, got %d/%d calls", len(d.calls), len(a.calls))
	}
}

func TestRun_RangeRejected(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{pages: make([]string, 20)}

	_, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), doc, PageRange{10, 5})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if len(d.calls)+len(a.calls) != 0 {
		t.Error("expected no checker calls")
	}
}

func TestRun_SubRange(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{pages: []string{"p1", "p2", "p3", "p4"}}

	_, err := NewOrchestrator(d, a, testLogger(), Options{}).Run(context.Background(), doc, PageRange{2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(d.calls) != "[p2 p3]" {
		t.Errorf("expected pages p2 and p3, got %v", d.calls)
	}
}

type recordingSink struct {
	pages map[int]string
	err   error
}

func (s *recordingSink) WritePage(index int, text string) error {
	if s.pages == nil {
		s.pages = map[int]string{}
	}
	s.pages[index] = text
	return s.err
}

type recordingProgress struct {
	total    int
	done     []int
	finished bool
}

func (p *recordingProgress) Start(total int)                { p.total = total }
func (p *recordingProgress) PageDone(number int, _ Outcome) { p.done = append(p.done, number) }
func (p *recordingProgress) Finish()                        { p.finished = true }

func TestRun_DebugSinkAndProgress(t *testing.T) {
	d, a := newFakes()
	doc := &fakeDoc{pages: []string{"", "p2"}}
	sink := &recordingSink{err: errors.New("disk full")}
	prog := &recordingProgress{}

	_, err := NewOrchestrator(d, a, testLogger(), Options{Debug: sink, Progress: prog}).Run(context.Background(), doc, PageRange{1, 2})
	if err != nil {
		t.Fatalf("sink errors must not fail the run: %v", err)
	}
	if len(sink.pages) != 2 || sink.pages[1] != "p2" {
		t.Errorf("expected both pages persisted, got %v", sink.pages)
	}
	if prog.total != 2 || fmt.Sprint(prog.done) != "[1 2]" || !prog.finished {
		t.Errorf("unexpected progress: %+v", prog)
	}
}
