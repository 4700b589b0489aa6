package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Progress is told when each page finishes. Implementations must not block.
type Progress interface {
	Start(total int)
	PageDone(number int, outcome Outcome)
	Finish()
}

// TerminalProgress draws a single self-overwriting line on a terminal and
// falls back to one line per page otherwise.
type TerminalProgress struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	total int
	done  int
}

func NewTerminalProgress(w io.Writer) *TerminalProgress {
	return &TerminalProgress{w: w, tty: isTerminal(w)}
}

func (p *TerminalProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
}

func (p *TerminalProgress) PageDone(number int, outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++

	if !p.tty {
		fmt.Fprintf(p.w, "Progreso: %d/%d pág (página %d: %s)\n", p.done, p.total, number, outcome)
		return
	}
	width := 30
	filled := 0
	if p.total > 0 {
		filled = p.done * width / p.total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", width-filled)
	fmt.Fprintf(p.w, "\rProgreso: |%s| %d/%d pág", bar, p.done, p.total)
}

func (p *TerminalProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprintln(p.w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
