// Package pipeline runs the single-pass parse and aggregate loop: the first
// line is resolved as the header, every later non-empty line is tokenized,
// filtered on its Source field and folded into the aggregation table.
//
// The loop is strictly sequential and stops at the first fatal error. No
// partial result is returned alongside an error.
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"prodstats/internal/aggregate"
	"prodstats/internal/parser/fields"
	"prodstats/internal/parser/ints"
	"prodstats/internal/schema"
)

// DefaultFilterValue is the Source value that marks a qualifying row.
const DefaultFilterValue = "ToClnt"

// LineSource yields one line per call without its '\n' and io.EOF once the
// input is exhausted. A returned slice may be overwritten by the next call
// unless the source also implements Stable and reports true.
type LineSource interface {
	Next() ([]byte, error)
}

// stableSource is implemented by sources whose lines stay valid for their
// whole lifetime (lines.Splitter over a full read or a memory map).
type stableSource interface {
	Stable() bool
}

// IsStable reports whether lines from src may be retained.
func IsStable(src LineSource) bool {
	s, ok := src.(stableSource)
	return ok && s.Stable()
}

// Options configure Run. The zero value aggregates the default feed with the
// splitting tokenizer and owned keys.
type Options struct {
	Delimiter   byte // 0 means ','
	Names       schema.Names
	Tokenizer   fields.Kind
	KeyMode     aggregate.KeyMode
	FilterValue string // "" means DefaultFilterValue
	SizeHint    int    // expected distinct products

	// Heartbeat, when > 0, logs progress at debug level every Heartbeat lines.
	Heartbeat int
	Logger    *logrus.Entry
}

// Stats counts lines by outcome. Lines includes the header.
type Stats struct {
	Lines      int64
	Empty      int64
	Filtered   int64
	Qualifying int64
}

// Result is the outcome of a successful run. With borrowed keys the table
// references the source's storage; copy it out with Table.Entries before
// releasing the source.
type Result struct {
	Table        *aggregate.Table
	Schema       schema.Schema
	HeaderFields int
	Stats        Stats
}

// Run consumes src to the end and aggregates every qualifying row.
func Run(src LineSource, opt Options) (*Result, error) {
	if opt.KeyMode == aggregate.Borrowed && !IsStable(src) {
		return nil, ErrUnstableBorrow
	}
	sep := opt.Delimiter
	if sep == 0 {
		sep = ','
	}
	names := opt.Names
	if names == (schema.Names{}) {
		names = schema.DefaultNames
	}
	filter := opt.FilterValue
	if filter == "" {
		filter = DefaultFilterValue
	}

	header, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: line 1: %w", ErrIO, err)
	}
	sch, width, err := schema.Resolver{Names: names, Delimiter: sep}.Resolve(header)
	if err != nil {
		return nil, err
	}

	var (
		tok    = fields.New(opt.Tokenizer, sep, width)
		table  = aggregate.NewTable(opt.KeyMode, opt.SizeHint)
		stats  = Stats{Lines: 1}
		need   = sch.MaxIndex() + 1
		srcIdx = sch.Index(schema.Source)
		dirIdx = sch.Index(schema.Direction)
		prdIdx = sch.Index(schema.Product)
		qtyIdx = [3]int{
			sch.Index(schema.OrderedQty),
			sch.Index(schema.WorkingQty),
			sch.Index(schema.ExecutedQty),
		}
	)

	for {
		line, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: line %d: %w", ErrIO, stats.Lines+1, err)
		}
		stats.Lines++
		if opt.Heartbeat > 0 && opt.Logger != nil && stats.Lines%int64(opt.Heartbeat) == 0 {
			opt.Logger.WithFields(logrus.Fields{
				"lines":      stats.Lines,
				"qualifying": stats.Qualifying,
				"products":   table.Len(),
			}).Debug("progress")
		}

		if len(line) == 0 {
			stats.Empty++
			continue
		}
		if n := tok.Reset(line); n < need {
			return nil, &RowError{
				Line: int(stats.Lines),
				Kind: ErrMalformedRow,
				Err:  fmt.Errorf("%d fields, need at least %d", n, need),
			}
		}
		if string(tok.Field(srcIdx)) != filter {
			stats.Filtered++
			continue
		}

		qty, bad, err := ints.MaxOf(tok.Field(qtyIdx[0]), tok.Field(qtyIdx[1]), tok.Field(qtyIdx[2]))
		if err != nil {
			return nil, &RowError{
				Line:   int(stats.Lines),
				Column: names.Of(schema.Quantities[bad]),
				Kind:   ErrMalformedNumber,
				Err:    err,
			}
		}
		if err := table.Get(tok.Field(prdIdx)).Observe(tok.Field(dirIdx), qty); err != nil {
			return nil, &RowError{
				Line: int(stats.Lines),
				Kind: ErrMalformedNumber,
				Err:  fmt.Errorf("product %q: %w", tok.Field(prdIdx), err),
			}
		}
		stats.Qualifying++
	}

	return &Result{Table: table, Schema: sch, HeaderFields: width, Stats: stats}, nil
}
