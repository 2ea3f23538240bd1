// Package probe inspects the first bytes of an event log before a full run:
// which required columns the header provides, how well the quantity columns
// parse, and which Source values occur. It can also emit a starter
// configuration with a header_map for headers that only match loosely.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"prodstats/internal/datasource"
	"prodstats/internal/parser/fields"
	"prodstats/internal/parser/ints"
	"prodstats/internal/parser/lines"
	"prodstats/internal/pipeline"
	"prodstats/internal/schema"
)

// DefaultMaxBytes is the sample size used when Options.MaxBytes is zero.
const DefaultMaxBytes = 64 << 10

// Options control sampling and analysis.
type Options struct {
	// MaxBytes to sample from the start of the input.
	MaxBytes int
	// Delimiter separates fields. Zero means ','.
	Delimiter byte
	// Names are the expected header texts. The zero value means
	// schema.DefaultNames.
	Names schema.Names
	// FilterValue marks a qualifying row. Empty means ToClnt.
	FilterValue string
}

// Column describes how one required column was found in the header.
type Column struct {
	Role     string `json:"role" yaml:"role"`
	Expected string `json:"expected" yaml:"expected"`
	// Header is the header text that matched, empty when missing.
	Header string `json:"header,omitempty" yaml:"header,omitempty"`
	Index  int    `json:"index" yaml:"index"`
	// Loose is set when Header matched only after normalisation
	// (case, accents, punctuation) and needs a header_map entry.
	Loose bool `json:"loose,omitempty" yaml:"loose,omitempty"`

	// Parsed and Failed count numeric parses; quantity columns only.
	Parsed int `json:"parsed,omitempty" yaml:"parsed,omitempty"`
	Failed int `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Found reports whether the column is present, exactly or loosely.
func (c Column) Found() bool { return c.Index >= 0 }

// SourceValue is one distinct Source value and its frequency in the sample.
type SourceValue struct {
	Value string `json:"value" yaml:"value"`
	Rows  int    `json:"rows" yaml:"rows"`
}

// Report is the outcome of Analyze.
type Report struct {
	SampleBytes int      `json:"sample_bytes" yaml:"sample_bytes"`
	Truncated   bool     `json:"truncated" yaml:"truncated"`
	Header      []string `json:"header" yaml:"header"`
	Columns     []Column `json:"columns" yaml:"columns"`

	Rows       int           `json:"rows" yaml:"rows"`
	EmptyRows  int           `json:"empty_rows" yaml:"empty_rows"`
	ShortRows  int           `json:"short_rows" yaml:"short_rows"`
	Qualifying int           `json:"qualifying" yaml:"qualifying"`
	Products   int           `json:"products" yaml:"products"`
	Sources    []SourceValue `json:"sources" yaml:"sources"`
}

// Missing lists the roles that could not be located at all.
func (r *Report) Missing() []string {
	var out []string
	for _, c := range r.Columns {
		if !c.Found() {
			out = append(out, c.Role)
		}
	}
	return out
}

// Ready reports whether a run would resolve the header as is.
func (r *Report) Ready() bool {
	for _, c := range r.Columns {
		if !c.Found() || c.Loose {
			return false
		}
	}
	return true
}

// firstBytesFetcher is implemented by sources that can ask the server for a
// prefix only (httpds.Source).
type firstBytesFetcher interface {
	FetchFirstBytes(ctx context.Context, n int) ([]byte, error)
}

// Peek returns at most n bytes from the start of src.
func Peek(ctx context.Context, src datasource.Source, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("probe: n must be > 0")
	}
	if f, ok := src.(firstBytesFetcher); ok {
		return f.FetchFirstBytes(ctx, n)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("probe: read sample: %w", err)
	}
	return data, nil
}

// Sample peeks at src and analyses what it got.
func Sample(ctx context.Context, src datasource.Source, opt Options) (*Report, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}
	data, err := Peek(ctx, src, opt.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch sample: %w", err)
	}
	rep, err := Analyze(data, opt)
	if err != nil {
		return nil, err
	}
	rep.Truncated = len(data) >= opt.MaxBytes
	return rep, nil
}

// Analyze inspects sample. A trailing partial line is dropped when the sample
// holds at least one complete line.
func Analyze(sample []byte, opt Options) (*Report, error) {
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
		filter = pipeline.DefaultFilterValue
	}

	sample = datasource.TrimBOM(sample)
	if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
		sample = sample[:i+1]
	}
	rep := &Report{SampleBytes: len(sample)}

	src := lines.NewSplitter(sample)
	header, err := src.Next()
	if err == io.EOF {
		return nil, pipeline.ErrNoHeader
	}
	for _, h := range fields.Split(header, sep) {
		rep.Header = append(rep.Header, string(h))
	}
	rep.Columns = locate(rep.Header, names)

	width := 0
	for _, c := range rep.Columns {
		if c.Index+1 > width {
			width = c.Index + 1
		}
	}
	col := func(c schema.Column) *Column { return &rep.Columns[c] }

	sources := map[string]int{}
	var order []string
	products := map[string]struct{}{}
	for {
		line, err := src.Next()
		if err == io.EOF {
			break
		}
		if len(line) == 0 {
			rep.EmptyRows++
			continue
		}
		rep.Rows++
		fs := fields.Split(line, sep)
		if len(fs) < width {
			rep.ShortRows++
			continue
		}
		for _, q := range schema.Quantities {
			c := col(q)
			if !c.Found() {
				continue
			}
			if _, err := ints.ParseUint(fs[c.Index]); err != nil {
				c.Failed++
			} else {
				c.Parsed++
			}
		}
		s := col(schema.Source)
		if !s.Found() {
			continue
		}
		v := string(fs[s.Index])
		if _, seen := sources[v]; !seen {
			order = append(order, v)
		}
		sources[v]++
		if v != filter {
			continue
		}
		rep.Qualifying++
		if p := col(schema.Product); p.Found() {
			products[string(fs[p.Index])] = struct{}{}
		}
	}

	for _, v := range order {
		rep.Sources = append(rep.Sources, SourceValue{Value: v, Rows: sources[v]})
	}
	sort.SliceStable(rep.Sources, func(i, j int) bool { return rep.Sources[i].Rows > rep.Sources[j].Rows })
	rep.Products = len(products)
	return rep, nil
}

// locate maps every required column to a header position: exact matches
// first (last duplicate wins, as in a run), then normalised matches.
func locate(header []string, names schema.Names) []Column {
	cols := make([]Column, schema.NumColumns)
	for c := schema.Column(0); c < schema.NumColumns; c++ {
		cols[c] = Column{Role: c.String(), Expected: names.Of(c), Index: -1}
		for i, h := range header {
			if h == names.Of(c) {
				cols[c].Index, cols[c].Header = i, h
			}
		}
		if cols[c].Found() {
			continue
		}
		want := normalizeFieldName(names.Of(c))
		for i, h := range header {
			if normalizeFieldName(h) == want {
				cols[c].Index, cols[c].Header, cols[c].Loose = i, h, true
			}
		}
	}
	return cols
}
