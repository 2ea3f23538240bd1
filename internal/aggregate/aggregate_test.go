package aggregate

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_Observe(t *testing.T) {
	t.Parallel()

	var a Accumulator
	require.NoError(t, a.Observe([]byte("Buy"), 10))
	require.NoError(t, a.Observe([]byte("Sell"), 9))
	require.NoError(t, a.Observe([]byte("Hold"), 5))
	require.NoError(t, a.Observe([]byte("buy"), 0))

	assert.Equal(t, Accumulator{Count: 4, Buy: 1, Sell: 1, TotalQty: 24}, a)
	assert.InDelta(t, 6.0, a.AverageQty(), 1e-12)
	assert.LessOrEqual(t, a.Buy+a.Sell, a.Count)
}

func TestAccumulator_Overflow(t *testing.T) {
	t.Parallel()

	a := Accumulator{Count: 1, TotalQty: math.MaxUint64 - 1}
	require.NoError(t, a.Observe([]byte("Buy"), 1))
	err := a.Observe([]byte("Buy"), 1)
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(2), a.Count, "failed observe must not mutate")
	assert.Equal(t, uint64(1), a.Buy)
}

func TestAccumulator_AverageOfEmpty(t *testing.T) {
	t.Parallel()
	assert.Zero(t, Accumulator{}.AverageQty())
}

func TestParseKeyMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]KeyMode{"": Owned, "owned": Owned, "clone": Owned, "borrowed": Borrowed, "ref": Borrowed} {
		got, err := ParseKeyMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKeyMode("shared")
	assert.Error(t, err)
	assert.Equal(t, "borrowed", Borrowed.String())
}

func TestTable_GetInsertsOnce(t *testing.T) {
	t.Parallel()

	for _, mode := range []KeyMode{Owned, Borrowed} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			tab := NewTable(mode, 0)
			require.NoError(t, tab.Get([]byte("AAA")).Observe([]byte("Buy"), 10))
			require.NoError(t, tab.Get([]byte("BBB")).Observe([]byte("Sell"), 1))
			require.NoError(t, tab.Get([]byte("AAA")).Observe([]byte("Sell"), 9))

			assert.Equal(t, 2, tab.Len())
			acc, ok := tab.Lookup([]byte("AAA"))
			require.True(t, ok)
			assert.Equal(t, Accumulator{Count: 2, Buy: 1, Sell: 1, TotalQty: 19}, *acc)

			_, ok = tab.Lookup([]byte("CCC"))
			assert.False(t, ok)
			assert.Equal(t, 2, tab.Len(), "lookup must not insert")
		})
	}
}

// TestTable_OwnedSurvivesBufferReuse overwrites the caller's buffer after
// every insert, the way a line reader does.
func TestTable_OwnedSurvivesBufferReuse(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 3)
	tab := NewTable(Owned, 0)
	for _, k := range []string{"AAA", "BBB", "CCC", "AAA"} {
		copy(buf, k)
		tab.Get(buf).Count++
	}
	copy(buf, "ZZZ")

	es := tab.Entries()
	require.Len(t, es, 3)
	assert.Equal(t, "AAA", es[0].Key)
	assert.Equal(t, uint64(2), es[0].Count)
	assert.Equal(t, "BBB", es[1].Key)
	assert.Equal(t, "CCC", es[2].Key)
}

// TestTable_ModesAgree feeds identical keys to both modes; only the storage
// of keys may differ.
func TestTable_ModesAgree(t *testing.T) {
	t.Parallel()

	owned, borrowed := NewTable(Owned, 4), NewTable(Borrowed, 4)
	for i := 0; i < 5000; i++ {
		k := []byte(fmt.Sprintf("P%04d", i%777))
		owned.Get(k).TotalQty += uint64(i)
		borrowed.Get(k).TotalQty += uint64(i)
	}
	assert.Equal(t, 777, owned.Len())
	assert.Equal(t, owned.Entries(), borrowed.Entries())
}

func TestTable_GrowKeepsEntries(t *testing.T) {
	t.Parallel()

	tab := NewTable(Owned, 0)
	const n = 10_000
	for i := 0; i < n; i++ {
		tab.Get([]byte(fmt.Sprint(i))).Count = uint64(i)
	}
	require.Equal(t, n, tab.Len())
	for i := 0; i < n; i += 97 {
		acc, ok := tab.Lookup([]byte(fmt.Sprint(i)))
		require.True(t, ok, i)
		assert.Equal(t, uint64(i), acc.Count)
	}
}

func TestTable_EmptyKey(t *testing.T) {
	t.Parallel()

	tab := NewTable(Owned, 0)
	tab.Get(nil).Count++
	tab.Get([]byte{}).Count++
	require.Equal(t, 1, tab.Len())
	assert.Equal(t, "", tab.Entries()[0].Key)
}

func TestTable_EachStops(t *testing.T) {
	t.Parallel()

	tab := NewTable(Borrowed, 0)
	for _, k := range []string{"a", "b", "c"} {
		tab.Get([]byte(k))
	}
	var seen []string
	tab.Each(func(key []byte, _ *Accumulator) bool {
		seen = append(seen, string(key))
		return len(seen) < 2
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestSortEntries(t *testing.T) {
	t.Parallel()

	es := []Entry{{Key: "b"}, {Key: "B"}, {Key: "a"}}
	SortEntries(es)
	assert.Equal(t, []string{"B", "a", "b"}, []string{es[0].Key, es[1].Key, es[2].Key})
}

func TestTable_LookupDoesNotAllocate(t *testing.T) {
	tab := NewTable(Owned, 16)
	key := []byte("AAA")
	tab.Get(key)
	allocs := testing.AllocsPerRun(100, func() {
		tab.Get(key).Count++
	})
	assert.Zero(t, allocs)
}

func benchTable(b *testing.B, mode KeyMode) {
	keys := make([][]byte, 512)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("PROD-%05d", i))
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tab := NewTable(mode, 0)
		for j := 0; j < 8192; j++ {
			_ = tab.Get(keys[j%len(keys)]).Observe([]byte("Buy"), 1)
		}
	}
}

func BenchmarkTable_Owned(b *testing.B)    { benchTable(b, Owned) }
func BenchmarkTable_Borrowed(b *testing.B) { benchTable(b, Borrowed) }
