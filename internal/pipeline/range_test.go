package pipeline

import (
	"errors"
	"testing"
)

func intp(n int) *int { return &n }

func TestValidateRequested(t *testing.T) {
	tests := []struct {
		name       string
		start, end *int
		wantErr    bool
	}{
		{"open", nil, nil, false},
		{"start only", intp(3), nil, false},
		{"end only", nil, intp(3), false},
		{"single page", intp(4), intp(4), false},
		{"reversed", intp(10), intp(5), true},
		{"zero start", intp(0), nil, true},
		{"negative end", nil, intp(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequested(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRange) {
				t.Errorf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestResolveRange(t *testing.T) {
	r, err := ResolveRange(nil, nil, 20)
	if err != nil || r != (PageRange{1, 20}) {
		t.Fatalf("expected 1-20, got %v, %v", r, err)
	}
	if r.Len() != 20 {
		t.Errorf("expected len 20, got %d", r.Len())
	}

	r, err = ResolveRange(intp(5), nil, 20)
	if err != nil || r != (PageRange{5, 20}) {
		t.Errorf("expected 5-20, got %v, %v", r, err)
	}

	if _, err := ResolveRange(intp(10), intp(5), 20); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for 10-5, got %v", err)
	}
	if _, err := ResolveRange(nil, intp(21), 20); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange past the last page, got %v", err)
	}
	if _, err := ResolveRange(nil, nil, 0); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for an empty document, got %v", err)
	}
}
