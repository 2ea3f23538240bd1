// Package schema resolves the event-log header into the positions of the
// columns the aggregator reads.
//
// Resolution is by name, never by position: the header may list the required
// columns in any order and may carry any number of extra columns, which are
// ignored.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Column identifies one of the required columns.
type Column int

const (
	Source Column = iota
	Direction
	OrderedQty
	WorkingQty
	ExecutedQty
	Product

	// NumColumns is the number of required columns.
	NumColumns
)

var canonical = [NumColumns]string{
	Source:      "source",
	Direction:   "direction",
	OrderedQty:  "ordered_qty",
	WorkingQty:  "working_qty",
	ExecutedQty: "executed_qty",
	Product:     "product",
}

// String returns the canonical (config) name of c.
func (c Column) String() string {
	if c < 0 || c >= NumColumns {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return canonical[c]
}

// Quantities lists the numeric columns whose maximum feeds the total.
var Quantities = [3]Column{OrderedQty, WorkingQty, ExecutedQty}

// Names holds the header text expected for each required column.
type Names [NumColumns]string

// DefaultNames are the header names of the order event feed.
var DefaultNames = Names{
	Source:      "Source",
	Direction:   "B/S",
	OrderedQty:  "OrdQty",
	WorkingQty:  "WrkQty",
	ExecutedQty: "ExcQty",
	Product:     "Prod",
}

// Of returns the header name configured for c.
func (n Names) Of(c Column) string { return n[c] }

// NamesFromMap overlays a canonical-name → header-text map (the config
// header_map) onto DefaultNames. Unknown canonical names are an error so that
// typos do not silently fall back to defaults.
func NamesFromMap(m map[string]string) (Names, error) {
	names := DefaultNames
	var unknown []string
	for k, v := range m {
		c, ok := lookupCanonical(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if strings.TrimSpace(v) == "" {
			return names, fmt.Errorf("schema: header_map.%s must not be empty", k)
		}
		names[c] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return names, fmt.Errorf("schema: unknown header_map keys: %s", strings.Join(unknown, ", "))
	}
	return names, nil
}

func lookupCanonical(s string) (Column, bool) {
	for c, name := range canonical {
		if name == s {
			return Column(c), true
		}
	}
	return 0, false
}

// Schema holds the resolved position of every required column.
type Schema struct {
	idx [NumColumns]int
}

// Index returns the zero-based field position of c.
func (s Schema) Index(c Column) int { return s.idx[c] }

// MaxIndex returns the highest required position. A data row needs more than
// MaxIndex fields.
func (s Schema) MaxIndex() int {
	m := 0
	for _, i := range s.idx {
		m = max(m, i)
	}
	return m
}

// ErrMissingColumn matches every *MissingColumnError.
var ErrMissingColumn = errors.New("missing required column")

// MissingColumnError names the first required column absent from a header.
type MissingColumnError struct {
	Column Column
	Name   string // header text that was searched for
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("header: missing required column %q (%s)", e.Name, e.Column)
}

// Is reports whether target is ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }
