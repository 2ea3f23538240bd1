// Package datasource defines where input bytes come from.
//
// Two shapes exist. A Source is opened once and streamed; a Buffer is the
// whole input held in memory (read fully or memory-mapped) and stays
// unchanged until closed, which is what borrowed aggregation keys need.
package datasource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source is a streamed input.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Buffer is an immutable, fully resident input. Bytes must not be used after
// Close.
type Buffer interface {
	Bytes() []byte
	Close() error
}

// Bytes is a Buffer over a heap slice.
type Bytes []byte

func (b Bytes) Bytes() []byte { return b }
func (Bytes) Close() error    { return nil }

// ReadAll drains src into memory.
func ReadAll(ctx context.Context, src Source) (Buffer, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read all: %w", err)
	}
	return Bytes(data), nil
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// HasBOM reports whether b starts with a UTF-8 or UTF-16 byte order mark.
func HasBOM(b []byte) bool {
	return bytes.HasPrefix(b, bomUTF8) || bytes.HasPrefix(b, bomUTF16BE) || bytes.HasPrefix(b, bomUTF16LE)
}

// StripBOM returns a reader that drops a leading byte order mark. UTF-16
// input is transcoded to UTF-8 on the way. Input without a BOM passes through
// untouched, with no transcoding.
func StripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(bomUTF8))
	if !HasBOM(head) {
		return br
	}
	return transform.NewReader(br, unicode.BOMOverride(encoding.Nop.NewDecoder()))
}

// TrimBOM drops a leading UTF-8 BOM from an in-memory input.
func TrimBOM(b []byte) []byte { return bytes.TrimPrefix(b, bomUTF8) }
