// Package report renders aggregation results, one line per product:
//
//	<product> <count> buy=<buys> sell=<sells> avg qty=<average>
//
// The average is printed with %6.2f. A JSON-lines variant and a conversion
// to storage rows are provided for machine consumers.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"prodstats/internal/aggregate"
)

// Format selects the output encoding.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
)

// ParseFormat maps a config or flag value to a Format. "" selects Text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", Text:
		return Text, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("report: unknown format %q (want text or json)", s)
}

const textLine = "%s %d buy=%d sell=%d avg qty=%6.2f"

// Line renders the text form of one entry without a trailing newline.
func Line(e aggregate.Entry) string {
	return fmt.Sprintf(textLine, e.Key, e.Count, e.Buy, e.Sell, e.AverageQty())
}

type jsonLine struct {
	Product  string  `json:"product"`
	Count    uint64  `json:"count"`
	Buy      uint64  `json:"buy"`
	Sell     uint64  `json:"sell"`
	TotalQty uint64  `json:"total_qty"`
	AvgQty   float64 `json:"avg_qty"`
}

// Write renders entries in order.
func Write(w io.Writer, entries []aggregate.Entry, f Format) error {
	bw := bufio.NewWriter(w)
	switch f {
	case Text, "":
		for _, e := range entries {
			if _, err := fmt.Fprintf(bw, textLine+"\n", e.Key, e.Count, e.Buy, e.Sell, e.AverageQty()); err != nil {
				return err
			}
		}
	case JSON:
		enc := json.NewEncoder(bw)
		for _, e := range entries {
			if err := enc.Encode(jsonLine{
				Product:  e.Key,
				Count:    e.Count,
				Buy:      e.Buy,
				Sell:     e.Sell,
				TotalQty: e.TotalQty,
				AvgQty:   math.Round(e.AverageQty()*100) / 100,
			}); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("report: unknown format %q", f)
	}
	return bw.Flush()
}

// Rows converts entries to storage rows aligned with storage.ReportColumns.
// Counters above math.MaxInt64 cannot be stored and are an error.
func Rows(job string, entries []aggregate.Entry, loadedAt time.Time) ([][]any, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		var vals [4]int64
		for i, v := range [4]uint64{e.Count, e.Buy, e.Sell, e.TotalQty} {
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("report: product %q: value %d exceeds BIGINT", e.Key, v)
			}
			vals[i] = int64(v)
		}
		rows = append(rows, []any{job, e.Key, vals[0], vals[1], vals[2], vals[3], e.AverageQty(), loadedAt})
	}
	return rows, nil
}
