// Package file implements local filesystem inputs: a streamed Source and the
// two resident forms, a whole-file read and a read-only memory map.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"prodstats/internal/datasource"
)

// Local streams a file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open returns the file as an io.ReadCloser. A context that is already done
// short-circuits before the filesystem is touched. Errors keep the path and
// still satisfy errors.Is(err, os.ErrNotExist) and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// ReadAll reads the whole file into memory.
func ReadAll(ctx context.Context, path string) (datasource.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return datasource.Bytes(data), nil
}
