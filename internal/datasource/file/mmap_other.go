//go:build !(linux || darwin || freebsd)

package file

import (
	"context"

	"prodstats/internal/datasource"
)

// Mmap falls back to a whole-file read where memory maps are unavailable.
func Mmap(ctx context.Context, path string) (datasource.Buffer, error) {
	return ReadAll(ctx, path)
}
