// Package aggregate holds the per-product statistics and the table that maps
// a product key to them.
package aggregate

import (
	"errors"
	"math/bits"
)

// Direction values recognised in the B/S column. Anything else counts toward
// the total but neither side.
const (
	BuyValue  = "Buy"
	SellValue = "Sell"
)

// ErrOverflow is returned when a counter would wrap.
var ErrOverflow = errors.New("aggregate: counter overflow")

// Accumulator is the running statistics of one product. A zero Accumulator
// is ready to use.
type Accumulator struct {
	Count    uint64
	Buy      uint64
	Sell     uint64
	TotalQty uint64
}

// Observe records one qualifying row with direction dir and quantity qty.
// On overflow the accumulator is left unchanged.
func (a *Accumulator) Observe(dir []byte, qty uint64) error {
	total, carry := bits.Add64(a.TotalQty, qty, 0)
	if carry != 0 || a.Count == ^uint64(0) {
		return ErrOverflow
	}
	a.TotalQty = total
	a.Count++
	switch string(dir) {
	case BuyValue:
		a.Buy++
	case SellValue:
		a.Sell++
	}
	return nil
}

// AverageQty is TotalQty / Count, or 0 for an empty accumulator.
func (a Accumulator) AverageQty() float64 {
	if a.Count == 0 {
		return 0
	}
	return float64(a.TotalQty) / float64(a.Count)
}
