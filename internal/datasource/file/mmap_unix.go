//go:build linux || darwin || freebsd

package file

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"prodstats/internal/datasource"
)

// mapping is a read-only, shared memory map of a whole file.
type mapping struct {
	data []byte
}

func (m *mapping) Bytes() []byte { return m.data }

func (m *mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Mmap maps path read-only. The mapping must not be used after Close, and the
// file must not be truncated while it is mapped. An empty file yields an
// empty buffer without calling mmap.
func Mmap(ctx context.Context, path string) (datasource.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := fi.Size()
	if size == 0 {
		return datasource.Bytes(nil), nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("mmap %s: file too large (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	// Sequential scan; the hint failing is harmless.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return &mapping{data: data}, nil
}
