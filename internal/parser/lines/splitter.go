package lines

import (
	"bytes"
	"io"
)

// Splitter yields lines from an immutable in-memory buffer. Every returned
// slice is a capacity-clipped view into data, so callers may keep it for the
// lifetime of data (this is what makes borrowed aggregation keys safe).
type Splitter struct {
	data []byte
	off  int
	line int
}

// NewSplitter returns a Splitter over data. data must not be modified while
// the Splitter or any slice it returned is in use.
func NewSplitter(data []byte) *Splitter { return &Splitter{data: data} }

// Next returns the next line without its trailing '\n', or io.EOF once the
// buffer is exhausted. A trailing newline does not produce an extra empty
// record.
func (s *Splitter) Next() ([]byte, error) {
	if s.off >= len(s.data) {
		return nil, io.EOF
	}
	rest := s.data[s.off:]
	s.line++
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		s.off += i + 1
		return rest[:i:i], nil
	}
	s.off = len(s.data)
	return rest[:len(rest):len(rest)], nil
}

// Line reports the 1-based number of the line most recently returned.
func (s *Splitter) Line() int { return s.line }

// Stable reports that returned slices remain valid across calls.
func (s *Splitter) Stable() bool { return true }
