package lines

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// BufferedReader is the bufio-backed counterpart of Reader. It delegates
// buffering to bufio.Reader.ReadSlice and only copies when a line is longer
// than the bufio buffer. It exists as a second, independently implemented
// line source so the two can be cross-checked and benchmarked.
type BufferedReader struct {
	br      *bufio.Reader
	pending []byte
	line    int
	err     error
}

// NewBufferedReader wraps r in a bufio.Reader of the given size (bufio
// enforces a minimum of 16 bytes).
func NewBufferedReader(r io.Reader, size int) *BufferedReader {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &BufferedReader{br: bufio.NewReaderSize(r, size)}
}

// Next follows the Reader.Next contract.
func (b *BufferedReader) Next() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.pending = b.pending[:0]
	for {
		chunk, err := b.br.ReadSlice('\n')
		switch {
		case err == nil:
			b.line++
			chunk = chunk[:len(chunk)-1]
			if len(b.pending) == 0 {
				return chunk, nil
			}
			b.pending = append(b.pending, chunk...)
			return b.pending, nil
		case errors.Is(err, bufio.ErrBufferFull):
			b.pending = append(b.pending, chunk...)
		case err == io.EOF:
			b.err = io.EOF
			b.pending = append(b.pending, chunk...)
			if len(b.pending) == 0 {
				return nil, io.EOF
			}
			b.line++
			return b.pending, nil
		default:
			b.err = fmt.Errorf("lines: read: %w", err)
			return nil, b.err
		}
	}
}

// Line reports the 1-based number of the line most recently returned.
func (b *BufferedReader) Line() int { return b.line }

// Stable reports that returned slices do not survive later calls.
func (b *BufferedReader) Stable() bool { return false }
