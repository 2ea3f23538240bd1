// Package fields splits a delimited line into field views without copying.
//
// Two tokenizers implement the same interface and must agree byte for byte:
//
//   - Splitter materializes a [][]byte with one view per field.
//   - Offsets records only delimiter positions and slices a field on demand.
//     It keeps one int per field instead of a slice header, which pays off when
//     a row has many columns and only a few are read.
//
// Fields are never trimmed. Quoting is not supported; the delimiter always
// separates.
package fields

import (
	"bytes"
	"fmt"
)

// Tokenizer splits one line at a time. Views returned by Field alias the line
// passed to Reset and are only valid while that line is.
type Tokenizer interface {
	// Reset tokenizes line and returns its field count (at least 1).
	Reset(line []byte) int
	// Field returns the i-th field of the current line. It panics when i is
	// outside [0, count); callers check the count returned by Reset first.
	Field(i int) []byte
}

// Kind selects a Tokenizer implementation.
type Kind int

const (
	// SplitKind selects Splitter.
	SplitKind Kind = iota
	// OffsetKind selects Offsets.
	OffsetKind
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case SplitKind:
		return "split"
	case OffsetKind:
		return "offsets"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a config value to a Kind. The empty string selects SplitKind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "split":
		return SplitKind, nil
	case "offsets", "offset", "memchr":
		return OffsetKind, nil
	default:
		return 0, fmt.Errorf("fields: unknown tokenizer %q", s)
	}
}

// New returns a Tokenizer of the given kind. hint pre-sizes internal storage
// (typically the header's field count).
func New(kind Kind, sep byte, hint int) Tokenizer {
	if kind == OffsetKind {
		return NewOffsets(sep, hint)
	}
	return NewSplitter(sep, hint)
}

// Splitter is the materializing tokenizer.
type Splitter struct {
	sep    byte
	fields [][]byte
}

// NewSplitter returns a Splitter for the given delimiter.
func NewSplitter(sep byte, hint int) *Splitter {
	return &Splitter{sep: sep, fields: make([][]byte, 0, max(hint, 1))}
}

// Reset implements Tokenizer.
func (s *Splitter) Reset(line []byte) int {
	s.fields = s.fields[:0]
	for {
		i := bytes.IndexByte(line, s.sep)
		if i < 0 {
			s.fields = append(s.fields, line[:len(line):len(line)])
			return len(s.fields)
		}
		s.fields = append(s.fields, line[:i:i])
		line = line[i+1:]
	}
}

// Field implements Tokenizer.
func (s *Splitter) Field(i int) []byte { return s.fields[i] }

// Fields returns the views of the current line. The slice is reused by the
// next Reset.
func (s *Splitter) Fields() [][]byte { return s.fields }

// Offsets is the offset-based tokenizer. pos holds -1, then the index of every
// delimiter, then len(line); field i spans (pos[i], pos[i+1]).
type Offsets struct {
	sep  byte
	line []byte
	pos  []int
}

// NewOffsets returns an Offsets tokenizer for the given delimiter.
func NewOffsets(sep byte, hint int) *Offsets {
	return &Offsets{sep: sep, pos: make([]int, 0, max(hint, 1)+1)}
}

// Reset implements Tokenizer.
func (o *Offsets) Reset(line []byte) int {
	o.line = line
	o.pos = append(o.pos[:0], -1)
	for off := 0; ; {
		i := bytes.IndexByte(line[off:], o.sep)
		if i < 0 {
			break
		}
		off += i
		o.pos = append(o.pos, off)
		off++
	}
	o.pos = append(o.pos, len(line))
	return len(o.pos) - 1
}

// Field implements Tokenizer.
func (o *Offsets) Field(i int) []byte {
	lo, hi := o.pos[i]+1, o.pos[i+1]
	return o.line[lo:hi:hi]
}

// Split is a convenience that tokenizes line once into freshly allocated
// views. It is meant for the header and for tests, not the row loop.
func Split(line []byte, sep byte) [][]byte {
	s := NewSplitter(sep, bytes.Count(line, []byte{sep})+1)
	s.Reset(line)
	return s.fields
}
