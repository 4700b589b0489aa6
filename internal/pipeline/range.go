package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned for a page range outside 1 <= start <= end <= pages.
var ErrInvalidRange = errors.New("invalid page range")

// PageRange is an inclusive, 1-based page range.
type PageRange struct {
	Start int
	End   int
}

// Len is the number of pages in the range.
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Validate checks r against a document of pageCount pages.
func (r PageRange) Validate(pageCount int) error {
	if r.Start < 1 || r.Start > r.End || r.End > pageCount {
		return fmt.Errorf("%w: %d-%d (document has %d pages)", ErrInvalidRange, r.Start, r.End, pageCount)
	}
	return nil
}

// ValidateRequested rejects bounds that can never be valid, before the
// document is opened. Nil bounds are open.
func ValidateRequested(start, end *int) error {
	if start != nil && *start < 1 {
		return fmt.Errorf("%w: start page %d", ErrInvalidRange, *start)
	}
	if end != nil && *end < 1 {
		return fmt.Errorf("%w: end page %d", ErrInvalidRange, *end)
	}
	if start != nil && end != nil && *start > *end {
		return fmt.Errorf("%w: start page %d is after end page %d", ErrInvalidRange, *start, *end)
	}
	return nil
}

// ResolveRange fills open bounds with the first and last page and
// validates the result.
func ResolveRange(start, end *int, pageCount int) (PageRange, error) {
	r := PageRange{Start: 1, End: pageCount}
	if start != nil {
		r.Start = *start
	}
	if end != nil {
		r.End = *end
	}
	if err := r.Validate(pageCount); err != nil {
		return PageRange{}, err
	}
	return r, nil
}
