package parser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
)

// pdftotextTimeout bounds a single fallback extraction.
const pdftotextTimeout = 30 * time.Second

// pdfDocument re-opens the file on every call so that a malformed page
// can't leave shared reader state behind for the next one.
type pdfDocument struct {
	path string
	opts Options
}

// OpenPDF validates that path is a readable PDF and returns a Document
// over it. The Go library is tried first; pdftotext is used per page
// when FallbackPdftotext is set and the library fails.
func OpenPDF(path string, opts Options) (Document, error) {
	d := &pdfDocument{path: path, opts: opts}
	if _, err := d.PageCount(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *pdfDocument) PageCount() (n int, err error) {
	err = d.withReader(func(r *pdflib.Reader) error {
		n = r.NumPage()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

func (d *pdfDocument) PageText(index int) (string, error) {
	n, err := d.PageCount()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= n {
		return "", fmt.Errorf("%w: %d (document has %d pages)", ErrPageOutOfRange, index, n)
	}

	text, err := d.libraryPageText(index + 1)
	if err != nil && d.opts.FallbackPdftotext {
		text, err = pdftotextPage(d.path, index+1)
	}
	if err != nil {
		return "", fmt.Errorf("extract pdf page %d: %w", index+1, err)
	}
	return strings.TrimSpace(text), nil
}

func (d *pdfDocument) Close() error {
	return nil
}

func (d *pdfDocument) libraryPageText(num int) (text string, err error) {
	err = d.withReader(func(r *pdflib.Reader) error {
		page := r.Page(num)
		if page.V.IsNull() {
			return nil
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	return text, err
}

// withReader opens the file and runs fn, turning library panics on
// malformed input into errors.
func (d *pdfDocument) withReader(fn func(*pdflib.Reader) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	if _, statErr := os.Stat(d.path); statErr != nil {
		return statErr
	}
	f, r, err := pdflib.Open(d.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(r)
}

func pdftotextPage(path string, num int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pdftotextTimeout)
	defer cancel()

	page := strconv.Itoa(num)
	cmd := exec.CommandContext(ctx, "pdftotext", "-f", page, "-l", page, "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return strings.TrimRight(string(out), "\f"), nil
}
