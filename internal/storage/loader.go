package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// CopyFn is a backend's bulk insert, usually Repository.CopyFrom.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches writes rows in batches of batchSize through copyFn and returns
// the number of rows copyFn reported. It stops at the first error. Each
// successful flush is logged at debug level when log is non-nil.
func LoadBatches(
	ctx context.Context,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
	log *logrus.Entry,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("storage: batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("storage: copyFn must not be nil")
	}

	var (
		total   int64
		batches int
		start   = time.Now()
	)
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))
		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			return total, fmt.Errorf("storage: batch %d (rows %d-%d): %w", batches+1, lo, hi-1, err)
		}
		batches++
		if log != nil {
			log.WithFields(logrus.Fields{
				"batch":    batches,
				"inserted": n,
				"total":    total,
				"elapsed":  time.Since(start).Truncate(time.Millisecond).String(),
			}).Debug("batch flushed")
		}
	}
	return total, nil
}
