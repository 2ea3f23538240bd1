package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every fatal error returned by Run matches exactly one of them,
// or schema.ErrMissingColumn, with errors.Is.
var (
	// ErrNoHeader means the input held no line at all.
	ErrNoHeader = errors.New("pipeline: input has no header line")
	// ErrMalformedRow is a data row with fewer fields than the header requires.
	ErrMalformedRow = errors.New("malformed row")
	// ErrMalformedNumber is an empty, non-digit or out-of-range quantity.
	ErrMalformedNumber = errors.New("malformed number")
	// ErrIO wraps a failure of the underlying reader.
	ErrIO = errors.New("read failure")
	// ErrUnstableBorrow is returned when borrowed keys are requested over a
	// line source that reuses its storage.
	ErrUnstableBorrow = errors.New("pipeline: borrowed keys need a stable line source")
)

// RowError locates a fatal data error.
type RowError struct {
	Line   int    // 1-based, the header is line 1
	Column string // header name, empty when no single column is at fault
	Kind   error  // ErrMalformedRow or ErrMalformedNumber
	Err    error  // cause
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v: %v", e.Line, e.Kind, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: %v: %v", e.Line, e.Column, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *RowError) Unwrap() []error { return []error{e.Kind, e.Err} }
