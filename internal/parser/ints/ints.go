// Package ints parses unsigned decimal integers directly from raw bytes.
//
// The hot path of the aggregator reads three quantity columns per qualifying
// row. Going through strconv would require a string conversion (and, for
// strconv.ParseUint, accept forms like "0x1F" or "1_000" that the feed never
// carries). ParseUint only ever looks at ASCII digits, never allocates and
// never decodes UTF-8.
package ints

import (
	"errors"
	"math"
)

var (
	// ErrEmpty is returned for a zero-length field.
	ErrEmpty = errors.New("ints: empty number")
	// ErrSyntax is returned when a byte outside '0'..'9' is found.
	ErrSyntax = errors.New("ints: invalid digit")
	// ErrRange is returned when the value does not fit in 64 bits.
	ErrRange = errors.New("ints: value out of range")
)

// ParseUint parses b as an unsigned base-10 integer.
//
// Signs, whitespace, underscores and base prefixes are all rejected with
// ErrSyntax. Leading zeros are accepted.
func ParseUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, ErrEmpty
	}
	var n uint64
	for _, c := range b {
		d := c - '0'
		if d > 9 {
			return 0, ErrSyntax
		}
		if n > (math.MaxUint64-uint64(d))/10 {
			return 0, ErrRange
		}
		n = n*10 + uint64(d)
	}
	return n, nil
}

// ParseUint32 is ParseUint bounded to 32 bits.
func ParseUint32(b []byte) (uint32, error) {
	n, err := ParseUint(b)
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint32 {
		return 0, ErrRange
	}
	return uint32(n), nil
}

// MaxOf parses every field and returns the largest value. It stops at the
// first field that fails to parse and reports its position.
func MaxOf(fields ...[]byte) (max uint64, failed int, err error) {
	for i, f := range fields {
		v, err := ParseUint(f)
		if err != nil {
			return 0, i, err
		}
		if v > max {
			max = v
		}
	}
	return max, -1, nil
}
