package pipeline

import (
	"fmt"
	"strings"

	"prodstats/internal/aggregate"
	"prodstats/internal/parser/fields"
)

// SourceMode says how input bytes are delivered to the line source.
type SourceMode string

const (
	// FullRead loads the whole input into memory.
	FullRead SourceMode = "fulltext"
	// Mmap maps a local file read-only.
	Mmap SourceMode = "mmap"
	// Stream reads through a fixed buffer.
	Stream SourceMode = "stream"
	// StreamMmap maps a local file and streams it through a buffered reader.
	StreamMmap SourceMode = "stream-mmap"
)

// Stable reports whether lines from this mode can back borrowed keys.
func (m SourceMode) Stable() bool { return m == FullRead || m == Mmap }

// ParseSourceMode accepts the SourceMode values.
func ParseSourceMode(s string) (SourceMode, error) {
	switch m := SourceMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FullRead, Mmap, Stream, StreamMmap:
		return m, nil
	}
	return "", fmt.Errorf("unknown source mode %q (want fulltext, mmap, stream or stream-mmap)", s)
}

// LineMode selects the line source implementation used in streaming modes.
type LineMode string

const (
	// SplitLines walks a stable buffer (lines.Splitter).
	SplitLines LineMode = "split"
	// BufferedLines uses bufio (lines.BufferedReader).
	BufferedLines LineMode = "bufio"
	// CustomLines uses the fixed-buffer lines.Reader.
	CustomLines LineMode = "custom"
)

// Strategy is a named preset of delivery, line source, tokenizer and key
// ownership.
type Strategy struct {
	Name      string
	Source    SourceMode
	Lines     LineMode
	Tokenizer fields.Kind
	KeyMode   aggregate.KeyMode
}

// DefaultStrategy is used when none is named.
const DefaultStrategy = "custom-read"

var strategies = []Strategy{
	{Name: "fulltext", Source: FullRead, Lines: SplitLines, Tokenizer: fields.SplitKind, KeyMode: aggregate.Borrowed},
	{Name: "memmap-ref", Source: Mmap, Lines: SplitLines, Tokenizer: fields.SplitKind, KeyMode: aggregate.Borrowed},
	{Name: "memmap-clone", Source: Mmap, Lines: SplitLines, Tokenizer: fields.SplitKind, KeyMode: aggregate.Owned},
	{Name: "read", Source: Stream, Lines: BufferedLines, Tokenizer: fields.SplitKind, KeyMode: aggregate.Owned},
	{Name: "read-memmap", Source: StreamMmap, Lines: BufferedLines, Tokenizer: fields.SplitKind, KeyMode: aggregate.Owned},
	{Name: "read-memchr", Source: Stream, Lines: BufferedLines, Tokenizer: fields.OffsetKind, KeyMode: aggregate.Owned},
	{Name: "custom-read", Source: Stream, Lines: CustomLines, Tokenizer: fields.SplitKind, KeyMode: aggregate.Owned},
}

// Strategies returns the presets in display order.
func Strategies() []Strategy {
	return append([]Strategy(nil), strategies...)
}

// StrategyNames returns the preset names in display order.
func StrategyNames() []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = s.Name
	}
	return out
}

// LookupStrategy finds a preset by name. An empty name yields DefaultStrategy.
func LookupStrategy(name string) (Strategy, error) {
	if name == "" {
		name = DefaultStrategy
	}
	for _, s := range strategies {
		if s.Name == name {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("unknown strategy %q (want one of %s)", name, strings.Join(StrategyNames(), ", "))
}

// Validate rejects combinations that cannot run, such as borrowed keys over
// a reused line buffer.
func (s Strategy) Validate() error {
	if s.KeyMode == aggregate.Borrowed && !s.Source.Stable() {
		return fmt.Errorf("strategy %s: %w", s.Name, ErrUnstableBorrow)
	}
	if s.Lines == SplitLines && !s.Source.Stable() {
		return fmt.Errorf("strategy %s: split lines need fulltext or mmap delivery", s.Name)
	}
	if s.Lines != SplitLines && s.Source.Stable() {
		return fmt.Errorf("strategy %s: %s delivery needs split lines", s.Name, s.Source)
	}
	return nil
}
