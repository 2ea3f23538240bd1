// Package compress picks a decompressor from an input's file extension.
// Compressed inputs can only be streamed; they are never memory-mapped.
package compress

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"prodstats/internal/datasource"
)

// Type is a compression format.
type Type int

const (
	None Type = iota
	GZ
	BZ2
	XZ
	ZSTD
	LZ4
)

var extensions = []struct {
	ext string
	typ Type
}{
	{".gz", GZ},
	{".bz2", BZ2},
	{".xz", XZ},
	{".zst", ZSTD},
	{".lz4", LZ4},
}

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case GZ:
		return "gzip"
	case BZ2:
		return "bzip2"
	case XZ:
		return "xz"
	case ZSTD:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Extension returns the file suffix of t, or "" for None.
func (t Type) Extension() string {
	for _, e := range extensions {
		if e.typ == t {
			return e.ext
		}
	}
	return ""
}

// ParseType accepts a format name ("gzip", "none") or its extension without
// the dot ("gz", "zst").
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t := None; t <= LZ4; t++ {
		if s == t.String() || (t != None && s == strings.TrimPrefix(t.Extension(), ".")) {
			return t, nil
		}
	}
	return None, fmt.Errorf("compress: unknown format %q", s)
}

// Detect returns the compression of name by extension, case-insensitively.
// Query strings and fragments are ignored so URLs work too.
func Detect(name string) Type {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range extensions {
		if e.ext == ext {
			return e.typ
		}
	}
	return None
}

// NewReader wraps r with the decompressor for t. The returned closer releases
// decoder resources only; it does not close r.
func NewReader(r io.Reader, t Type) (io.Reader, func() error, error) {
	nop := func() error { return nil }
	switch t {
	case None:
		return r, nop, nil
	case GZ:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, zr.Close, nil
	case BZ2:
		return bzip2.NewReader(r), nop, nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xr, nop, nil
	case ZSTD:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return d, func() error { d.Close(); return nil }, nil
	case LZ4:
		return lz4.NewReader(r), nop, nil
	default:
		return nil, nil, fmt.Errorf("compress: unsupported type %v", t)
	}
}

// Source decompresses another Source on the fly.
type Source struct {
	inner datasource.Source
	typ   Type
}

// Wrap returns src unchanged for None and a decompressing Source otherwise.
func Wrap(src datasource.Source, t Type) datasource.Source {
	if t == None {
		return src
	}
	return &Source{inner: src, typ: t}
}

// Open implements datasource.Source.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	r, closeFn, err := NewReader(rc, s.typ)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return &readCloser{Reader: r, closeFn: closeFn, inner: rc}, nil
}

type readCloser struct {
	io.Reader
	closeFn func() error
	inner   io.Closer
}

func (rc *readCloser) Close() error {
	err := rc.closeFn()
	if cerr := rc.inner.Close(); err == nil {
		err = cerr
	}
	return err
}
