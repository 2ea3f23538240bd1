package lines

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// source is the shared contract of Reader, BufferedReader and Splitter.
type source interface {
	Next() ([]byte, error)
	Line() int
}

// drain copies every line out of src (copies are required because Reader
// reuses its storage) and returns the terminating error.
func drain(t *testing.T, src source) ([]string, error) {
	t.Helper()
	var out []string
	for {
		line, err := src.Next()
		if err != nil {
			return out, err
		}
		out = append(out, string(line))
		require.Less(t, len(out), 1_000_000, "runaway reader")
	}
}

var lineCases = []struct {
	name string
	in   string
	want []string
}{
	{name: "empty input", in: "", want: nil},
	{name: "single newline", in: "\n", want: []string{""}},
	{name: "one line no newline", in: "abc", want: []string{"abc"}},
	{name: "one line with newline", in: "abc\n", want: []string{"abc"}},
	{name: "two lines", in: "a,b\nc,d\n", want: []string{"a,b", "c,d"}},
	{name: "trailing record without newline", in: "h\nx,y", want: []string{"h", "x,y"}},
	{name: "empty lines preserved", in: "h\n\n\nx\n\n", want: []string{"h", "", "", "x", ""}},
	{name: "cr is data", in: "a\r\nb\r\n", want: []string{"a\r", "b\r"}},
	{
		name: "long line",
		in:   strings.Repeat("x", 5000) + "\nshort\n",
		want: []string{strings.Repeat("x", 5000), "short"},
	},
}

func TestReader_Lines(t *testing.T) {
	t.Parallel()

	for _, tc := range lineCases {
		for _, size := range []int{1, 2, 3, 7, 16, 4096, DefaultBufferSize} {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				got, err := drain(t, NewReaderSize(strings.NewReader(tc.in), size))
				require.ErrorIs(t, err, io.EOF)
				assert.Equal(t, tc.want, got, "buffer size %d", size)
			})
		}
	}
}

func TestBufferedReader_Lines(t *testing.T) {
	t.Parallel()

	for _, tc := range lineCases {
		for _, size := range []int{16, 64, DefaultBufferSize} {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				got, err := drain(t, NewBufferedReader(strings.NewReader(tc.in), size))
				require.ErrorIs(t, err, io.EOF)
				assert.Equal(t, tc.want, got, "buffer size %d", size)
			})
		}
	}
}

// TestReader_ReaderShapes feeds the same bytes through io.Readers that
// deliver them in awkward ways.
func TestReader_ReaderShapes(t *testing.T) {
	t.Parallel()

	const in = "Source,Prod\nToClnt,AAA\n\nToClnt,BBB"
	want := []string{"Source,Prod", "ToClnt,AAA", "", "ToClnt,BBB"}

	shapes := map[string]func(io.Reader) io.Reader{
		"one byte":   iotest.OneByteReader,
		"half":       iotest.HalfReader,
		"data + eof": iotest.DataErrReader,
	}
	for name, wrap := range shapes {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := drain(t, NewReaderSize(wrap(strings.NewReader(in)), 5))
			require.ErrorIs(t, err, io.EOF)
			assert.Equal(t, want, got)
		})
	}
}

func TestReader_EOFIsSticky(t *testing.T) {
	t.Parallel()

	r := NewReader(strings.NewReader("a"))
	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", string(line))

	for i := 0; i < 3; i++ {
		line, err = r.Next()
		assert.Nil(t, line)
		assert.ErrorIs(t, err, io.EOF)
	}
}

func TestReader_ErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk gone")
	src := io.MultiReader(strings.NewReader("a\nbroken-"), iotest.ErrReader(boom))
	r := NewReaderSize(src, 4)

	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", string(line))

	_, err = r.Next()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "lines: read")

	// Sticky: the partial "broken-" line is never surfaced.
	_, err = r.Next()
	assert.ErrorIs(t, err, boom)
}

func TestReader_NoProgress(t *testing.T) {
	t.Parallel()

	r := NewReader(zeroReader{})
	_, err := r.Next()
	assert.ErrorIs(t, err, io.ErrNoProgress)
}

type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error) { return 0, nil }

func TestReader_LineNumbers(t *testing.T) {
	t.Parallel()

	r := NewReaderSize(strings.NewReader("h\n\nx\ny"), 2)
	for want := 1; want <= 4; want++ {
		_, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, r.Line())
	}
	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, r.Line())
}

// TestReader_ZeroCopyWithinBuffer checks that a line fully inside the buffer
// is handed out as a view, not a copy.
func TestReader_ZeroCopyWithinBuffer(t *testing.T) {
	t.Parallel()

	r := NewReaderSize(strings.NewReader("abc\ndef\n"), 64)
	line, err := r.Next()
	require.NoError(t, err)
	assert.Same(t, &r.buf[0], &line[0])
	assert.Equal(t, 3, cap(line), "returned line must be capacity clipped")
}

func TestSplitter_Lines(t *testing.T) {
	t.Parallel()

	for _, tc := range lineCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := NewSplitter([]byte(tc.in))
			got, err := drain(t, s)
			require.ErrorIs(t, err, io.EOF)
			// A final "\n" never yields a trailing empty record.
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestSplitter_SlicesStayValid is the property borrowed keys depend on.
func TestSplitter_SlicesStayValid(t *testing.T) {
	t.Parallel()

	data := []byte("one\ntwo\nthree")
	s := NewSplitter(data)

	var kept [][]byte
	for {
		line, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kept = append(kept, line)
	}
	require.Len(t, kept, 3)
	assert.Equal(t, "one", string(kept[0]))
	assert.Equal(t, "two", string(kept[1]))
	assert.Equal(t, "three", string(kept[2]))

	// Appending to a returned slice must not clobber the next line.
	_ = append(kept[0], 'X')
	assert.Equal(t, "one\ntwo\nthree", string(data))
	assert.True(t, s.Stable())
}

func TestReaders_AgreeOnRandomChunking(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	for i := 0; i < 300; i++ {
		b.WriteString(strings.Repeat("f", i%37))
		if i%11 == 0 {
			b.WriteByte('\n')
		}
		b.WriteString(",x\n")
	}
	in := b.Bytes()

	want, err := drain(t, NewSplitter(in))
	require.ErrorIs(t, err, io.EOF)

	for size := 1; size <= 70; size += 3 {
		got, err := drain(t, NewReaderSize(bytes.NewReader(in), size))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, want, got, "Reader size %d", size)

		got, err = drain(t, NewBufferedReader(bytes.NewReader(in), size))
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, want, got, "BufferedReader size %d", size)
	}
}

func BenchmarkReader(b *testing.B) {
	data := bytes.Repeat([]byte("ToClnt,Buy,10,5,8,AAA,extra,columns,here\n"), 10_000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := NewReader(bytes.NewReader(data))
		for {
			if _, err := r.Next(); err != nil {
				break
			}
		}
	}
}

func BenchmarkSplitter(b *testing.B) {
	data := bytes.Repeat([]byte("ToClnt,Buy,10,5,8,AAA,extra,columns,here\n"), 10_000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := NewSplitter(data)
		for {
			if _, err := s.Next(); err != nil {
				break
			}
		}
	}
}
