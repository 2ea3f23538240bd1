// Package lines yields newline-delimited records from a byte source.
//
// Two implementations share the same Next contract:
//
//   - Reader pulls from an io.Reader through a fixed-size buffer and stitches
//     together lines that straddle refills. The returned slice aliases
//     reader-owned memory and is only valid until the next call.
//   - Splitter walks an immutable in-memory buffer (a whole-file read or a
//     memory map). Returned slices point into that buffer and stay valid for
//     as long as the buffer does.
//
// Neither strips '\r'; the input format is '\n' only.
package lines

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultBufferSize is the refill size used by NewReader.
const DefaultBufferSize = 32 * 1024

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// Reader reassembles logical lines from an io.Reader.
//
// Zero-copy is the common case: a line that lies entirely inside the current
// buffer is returned as a sub-slice of it. Only lines that span a refill are
// copied into the pending accumulator.
type Reader struct {
	src  io.Reader
	buf  []byte
	cur  int // next unread byte in buf
	end  int // bytes of buf holding data
	line int

	// pending collects the head of a line whose delimiter has not been seen
	// yet. It is cleared at the start of every Next call.
	pending []byte

	readErr error // deferred error returned alongside data by src
	err     error // sticky terminal state (io.EOF or a wrapped read error)
}

// NewReader returns a Reader with a DefaultBufferSize buffer.
func NewReader(r io.Reader) *Reader { return NewReaderSize(r, DefaultBufferSize) }

// NewReaderSize returns a Reader whose refill buffer holds size bytes. Sizes
// below 1 fall back to DefaultBufferSize. Tiny sizes are legal and useful for
// exercising boundary handling.
func NewReaderSize(r io.Reader, size int) *Reader {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &Reader{
		src:     r,
		buf:     make([]byte, size),
		pending: make([]byte, 0, 1024),
	}
}

// Next returns the next line without its trailing '\n'.
//
// At end of input Next returns (nil, io.EOF), and keeps doing so. A final
// line that lacks a trailing newline is still returned as a record first.
// Read failures are returned wrapped and are sticky; any partially assembled
// line is dropped.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.pending = r.pending[:0]
	for {
		if r.cur < r.end {
			window := r.buf[r.cur:r.end]
			if i := bytes.IndexByte(window, '\n'); i >= 0 {
				r.cur += i + 1
				r.line++
				if len(r.pending) == 0 {
					return window[:i:i], nil
				}
				r.pending = append(r.pending, window[:i]...)
				return r.pending, nil
			}
			r.pending = append(r.pending, window...)
			r.cur = r.end
		}

		if err := r.fill(); err != nil {
			if err == io.EOF {
				r.err = io.EOF
				if len(r.pending) > 0 {
					r.line++
					return r.pending, nil
				}
				return nil, io.EOF
			}
			r.err = fmt.Errorf("lines: read: %w", err)
			return nil, r.err
		}
	}
}

// fill refills buf from the source. It returns nil only when at least one
// byte is available.
func (r *Reader) fill() error {
	if r.readErr != nil {
		return r.readErr
	}
	for i := 0; i < maxEmptyReads; i++ {
		n, err := r.src.Read(r.buf)
		if n < 0 || n > len(r.buf) {
			return errors.New("lines: reader returned invalid count")
		}
		r.cur, r.end = 0, n
		if n > 0 {
			// Serve the bytes first; surface err on the next refill.
			r.readErr = err
			return nil
		}
		if err != nil {
			return err
		}
	}
	return io.ErrNoProgress
}

// Line reports the 1-based number of the line most recently returned.
func (r *Reader) Line() int { return r.line }

// Stable reports whether returned slices survive later calls. They do not.
func (r *Reader) Stable() bool { return false }

// BufferSize reports the refill buffer capacity.
func (r *Reader) BufferSize() int { return len(r.buf) }
