package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// DebugSink receives the raw extracted text of every processed page.
type DebugSink interface {
	WritePage(index int, text string) error
}

// DirSink writes one pagina_<n>.txt file per page into a directory.
type DirSink struct {
	Dir string
}

// NewDirSink creates debug_<stem>_<timestamp> under baseDir for the
// document at docPath.
func NewDirSink(baseDir, docPath string, now time.Time) (*DirSink, error) {
	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	name := fmt.Sprintf("debug_%s_%s", stem, now.Format("2006-01-02_15-04-05"))
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug directory: %w", err)
	}
	return &DirSink{Dir: dir}, nil
}

func (s *DirSink) WritePage(index int, text string) error {
	n := index + 1
	var sb strings.Builder
	fmt.Fprintf(&sb, "========== PÁGINA %d ==========\n", n)
	fmt.Fprintf(&sb, "Longitud del texto: %d caracteres\n", utf8.RuneCountInString(text))
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n\n")
	sb.WriteString(text)

	path := filepath.Join(s.Dir, fmt.Sprintf("pagina_%d.txt", n))
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write debug page %d: %w", n, err)
	}
	return nil
}
