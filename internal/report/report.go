package report

// Method identifies the checker that produced a finding.
type Method string

const (
	Deterministic Method = "languagetool"
	Advisory      Method = "ollama"
)

// Methods lists every method in rendering order.
var Methods = []Method{Deterministic, Advisory}

// UnknownOffset marks findings whose position in the page text is not known.
const UnknownOffset = -1

// Finding is one issue reported by a checker.
type Finding struct {
	Method      Method   `json:"method"`
	Word        string   `json:"word"`
	Offset      int      `json:"offset"`
	Suggestions []string `json:"suggestions"`
	Category    string   `json:"category"`
	Context     string   `json:"context,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// PageReport holds the findings for one page, keyed by method.
// Only methods with at least one finding have a key.
type PageReport struct {
	Index    int                  `json:"index"` // 0-based
	Findings map[Method][]Finding `json:"findings"`
}

// Number returns the 1-based page number.
func (p PageReport) Number() int {
	return p.Index + 1
}

// Empty reports whether the page has no findings at all.
func (p PageReport) Empty() bool {
	for _, fs := range p.Findings {
		if len(fs) > 0 {
			return false
		}
	}
	return true
}

// Aggregate is the page-ordered collection of non-empty page reports.
type Aggregate struct {
	Pages         []PageReport   `json:"pages"`
	Totals        map[Method]int `json:"totals"`
	PagesAnalyzed int            `json:"pages_analyzed"`
	PagesSkipped  int            `json:"pages_skipped"`
	PagesFailed   int            `json:"pages_failed"`
}

func NewAggregate() *Aggregate {
	return &Aggregate{
		Totals: make(map[Method]int, len(Methods)),
	}
}

// Add merges the per-method results for a page. Empty lists are dropped,
// and a page left with no findings is not stored. Pages must be added in
// ascending index order.
func (a *Aggregate) Add(index int, results map[Method][]Finding) {
	page := PageReport{Index: index, Findings: make(map[Method][]Finding, len(results))}
	for method, fs := range results {
		if len(fs) == 0 {
			continue
		}
		page.Findings[method] = fs
		a.Totals[method] += len(fs)
	}
	if page.Empty() {
		return
	}
	a.Pages = append(a.Pages, page)
}

// Total returns the number of findings across all methods.
func (a *Aggregate) Total() int {
	n := 0
	for _, c := range a.Totals {
		n += c
	}
	return n
}
