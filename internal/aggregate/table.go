package aggregate

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"
)

// KeyMode decides how the table holds the key bytes it is given.
type KeyMode int

const (
	// Owned copies each new key into table-owned storage. Safe with any
	// line source.
	Owned KeyMode = iota
	// Borrowed stores the caller's slice as is. The bytes behind every key
	// must stay unchanged for the life of the table.
	Borrowed
)

func (m KeyMode) String() string {
	switch m {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return fmt.Sprintf("KeyMode(%d)", int(m))
	}
}

// ParseKeyMode maps a config value to a KeyMode. The empty string selects
// Owned.
func ParseKeyMode(s string) (KeyMode, error) {
	switch s {
	case "", "owned", "clone":
		return Owned, nil
	case "borrowed", "ref":
		return Borrowed, nil
	default:
		return 0, fmt.Errorf("aggregate: unknown key mode %q", s)
	}
}

// keyStore turns a lookup key into the slice kept in the table.
type keyStore interface {
	keep(key []byte) []byte
}

type borrowedKeys struct{}

func (borrowedKeys) keep(key []byte) []byte { return key[:len(key):len(key)] }

// ownedKeys packs copies into fixed chunks. A chunk is never reallocated, so
// earlier keys stay put while later ones are appended.
type ownedKeys struct {
	chunk []byte
}

const arenaChunk = 64 << 10

func (o *ownedKeys) keep(key []byte) []byte {
	n := len(key)
	if cap(o.chunk)-len(o.chunk) < n {
		o.chunk = make([]byte, 0, max(arenaChunk, n))
	}
	start := len(o.chunk)
	o.chunk = append(o.chunk, key...)
	return o.chunk[start : start+n : start+n]
}

type entry struct {
	hash uint64
	key  []byte
	acc  Accumulator
}

// Table maps product keys to accumulators. It is an open-addressing hash
// table over xxh3 with linear probing; slots index into a dense entry slice,
// so iteration order is insertion order.
//
// A Table is not safe for concurrent use.
type Table struct {
	mode    KeyMode
	keys    keyStore
	slots   []uint32 // entry index + 1; 0 marks a free slot
	mask    uint64
	entries []entry
}

// NewTable returns an empty table. hint is the expected number of distinct
// keys.
func NewTable(mode KeyMode, hint int) *Table {
	t := &Table{mode: mode}
	if mode == Borrowed {
		t.keys = borrowedKeys{}
	} else {
		t.keys = &ownedKeys{}
	}
	size := 16
	for size*3/4 < hint {
		size <<= 1
	}
	t.slots = make([]uint32, size)
	t.mask = uint64(size - 1)
	t.entries = make([]entry, 0, max(hint, 0))
	return t
}

// Mode reports how keys are held.
func (t *Table) Mode() KeyMode { return t.mode }

// Len returns the number of distinct keys.
func (t *Table) Len() int { return len(t.entries) }

// Get returns the accumulator for key, inserting a zero one if the key is
// new. The pointer is valid until the next call to Get.
func (t *Table) Get(key []byte) *Accumulator {
	h := xxh3.Hash(key)
	i := h & t.mask
	for {
		s := t.slots[i]
		if s == 0 {
			break
		}
		e := &t.entries[s-1]
		if e.hash == h && bytes.Equal(e.key, key) {
			return &e.acc
		}
		i = (i + 1) & t.mask
	}

	t.entries = append(t.entries, entry{hash: h, key: t.keys.keep(key)})
	t.slots[i] = uint32(len(t.entries))
	if uint64(len(t.entries))*4 > uint64(len(t.slots))*3 {
		t.grow()
	}
	return &t.entries[len(t.entries)-1].acc
}

// Lookup returns the accumulator for key without inserting.
func (t *Table) Lookup(key []byte) (*Accumulator, bool) {
	h := xxh3.Hash(key)
	for i := h & t.mask; ; i = (i + 1) & t.mask {
		s := t.slots[i]
		if s == 0 {
			return nil, false
		}
		if e := &t.entries[s-1]; e.hash == h && bytes.Equal(e.key, key) {
			return &e.acc, true
		}
	}
}

func (t *Table) grow() {
	size := len(t.slots) * 2
	t.slots = make([]uint32, size)
	t.mask = uint64(size - 1)
	for idx := range t.entries {
		i := t.entries[idx].hash & t.mask
		for t.slots[i] != 0 {
			i = (i + 1) & t.mask
		}
		t.slots[i] = uint32(idx + 1)
	}
}

// Each calls fn for every entry in insertion order until fn returns false.
// key aliases table storage and must not be retained past the call.
func (t *Table) Each(fn func(key []byte, acc *Accumulator) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if !fn(e.key, &e.acc) {
			return
		}
	}
}

// Entry is a detached copy of one table row.
type Entry struct {
	Key string
	Accumulator
}

// Entries copies the table out. The result does not reference the table or
// the bytes behind borrowed keys.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{Key: string(e.key), Accumulator: e.acc}
	}
	return out
}

// SortEntries orders entries by key, bytewise.
func SortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Key < es[j].Key })
}
