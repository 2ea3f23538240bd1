package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "job": "nightly",
  "strategy": "memmap-ref",
  "source": { "kind": "file", "file": { "path": "data/events.csv" } },
  "parser": { "options": { "delimiter": ";", "buffer_size": 65536, "header_map": { "product": "Symbol" } } },
  "aggregate": { "filter_value": "ToExch", "size_hint": 128 },
  "report": { "format": "json", "sort": true },
  "storage": { "kind": "sqlite", "db": { "dsn": "stats.db", "table": "product_stats", "auto_create_table": true } },
  "runtime": { "batch_size": 500 }
}`

const sampleYAML = `
job: nightly
strategy: memmap-ref
source:
  kind: file
  file:
    path: data/events.csv
parser:
  options:
    delimiter: ";"
    buffer_size: 65536
    header_map:
      product: Symbol
aggregate:
  filter_value: ToExch
  size_hint: 128
report:
  format: json
  sort: true
storage:
  kind: sqlite
  db:
    dsn: stats.db
    table: product_stats
    auto_create_table: true
runtime:
  batch_size: 500
`

func assertSample(t *testing.T, p Pipeline) {
	t.Helper()
	assert.Equal(t, "nightly", p.Job)
	assert.Equal(t, "memmap-ref", p.Strategy)
	assert.Equal(t, "data/events.csv", p.Source.File.Path)
	assert.Equal(t, ";", p.Parser.Options.String("delimiter", ","))
	assert.Equal(t, 65536, p.Parser.Options.Int("buffer_size", 0))
	assert.Equal(t, map[string]string{"product": "Symbol"}, p.Parser.Options.StringMap("header_map"))
	assert.Equal(t, Aggregate{FilterValue: "ToExch", SizeHint: 128}, p.Aggregate)
	assert.Equal(t, Report{Format: "json", Sort: true}, p.Report)
	assert.Equal(t, Storage{Kind: "sqlite", DB: DBConfig{DSN: "stats.db", Table: "product_stats", AutoCreateTable: true}}, p.Storage)
	assert.Equal(t, 500, p.Runtime.BatchSize)
}

func TestDecode_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	pj, err := Decode(strings.NewReader(sampleJSON), "json")
	require.NoError(t, err)
	assertSample(t, pj)

	py, err := Decode(strings.NewReader(sampleYAML), "yaml")
	require.NoError(t, err)
	assertSample(t, py)
}

func TestOptions_StringMapNestedYAML(t *testing.T) {
	t.Parallel()

	p, err := Decode(strings.NewReader("parser:\n  options:\n    header_map:\n      product: Symbol\n      direction: Side\n      ignored: 3\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"product": "Symbol", "direction": "Side"}, p.Parser.Options.StringMap("header_map"))

	o := Options{"plain": map[string]string{"source": "Origin"}, "scalar": "x"}
	assert.Equal(t, map[string]string{"source": "Origin"}, o.StringMap("plain"))
	assert.Empty(t, o.StringMap("scalar"))
	assert.Empty(t, o.StringMap("missing"))
}

func TestDecode_HTTPMaxRetries(t *testing.T) {
	t.Parallel()

	p, err := Decode(strings.NewReader("source:\n  kind: http\n  http: { url: \"http://x/y.csv\" }\n"), "yaml")
	require.NoError(t, err)
	assert.Nil(t, p.Source.HTTP.MaxRetries)

	p, err = Decode(strings.NewReader(`{"source":{"kind":"http","http":{"url":"http://x/y.csv","max_retries":0}}}`), "json")
	require.NoError(t, err)
	require.NotNil(t, p.Source.HTTP.MaxRetries)
	assert.Zero(t, *p.Source.HTTP.MaxRetries)
}

func TestDecode_DefaultsSurvive(t *testing.T) {
	t.Parallel()

	p, err := Decode(strings.NewReader(`{"source":{"kind":"file","file":{"path":"x.csv"}}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, "prodstats", p.Job)
	assert.Equal(t, "text", p.Report.Format)
	assert.Equal(t, 1000, p.Runtime.BatchSize)
	assert.NotNil(t, p.Parser.Options)

	p, err = Decode(strings.NewReader(""), "yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestDecode_UnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"jbo":"typo"}`), "json")
	assert.Error(t, err)
	_, err = Decode(strings.NewReader("jbo: typo\n"), "yaml")
	assert.Error(t, err)
	_, err = Decode(strings.NewReader("{}"), "toml")
	assert.Error(t, err)
}

func TestLoad_ByExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for name, body := range map[string]string{"p.json": sampleJSON, "p.yaml": sampleYAML, "p.YML": sampleYAML} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		p, err := Load(path)
		require.NoError(t, err, name)
		assertSample(t, p)
	}

	bad := filepath.Join(dir, "p.toml")
	require.NoError(t, os.WriteFile(bad, []byte("job = 1"), 0o600))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "unsupported extension")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PRODSTATS_TEST_A=from-file\nPRODSTATS_TEST_B=from-file\n"), 0o600))

	t.Setenv("PRODSTATS_TEST_A", "preset")
	t.Setenv("PRODSTATS_TEST_B", "")
	require.NoError(t, os.Unsetenv("PRODSTATS_TEST_B"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), path))
	assert.Equal(t, "preset", os.Getenv("PRODSTATS_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("PRODSTATS_TEST_B"))
}

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":    "x",
		"b":    true,
		"f":    float64(3),
		"i":    7,
		"m":    map[string]any{"a": "1", "b": 2},
		"bad":  []int{1},
		"none": nil,
	}
	assert.Equal(t, "x", o.String("s", "d"))
	assert.Equal(t, "d", o.String("b", "d"))
	assert.True(t, o.Bool("b", false))
	assert.False(t, o.Bool("s", false))
	assert.Equal(t, 3, o.Int("f", 0))
	assert.Equal(t, 7, o.Int("i", 0))
	assert.Equal(t, 9, o.Int("s", 9))
	assert.Equal(t, map[string]string{"a": "1"}, o.StringMap("m"))
	assert.Empty(t, o.StringMap("bad"))
	assert.Nil(t, o.Any("missing"))
	assert.Equal(t, []int{1}, o.Any("bad"))

	var nilOpts Options
	assert.Equal(t, "d", nilOpts.String("s", "d"))
}

func TestOptions_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var p Parser
	require.NoError(t, json.Unmarshal([]byte(`{"options":null}`), &p))
	assert.NotNil(t, p.Options)
	assert.Empty(t, p.Options)

	require.NoError(t, json.Unmarshal([]byte(`{"options":{"delimiter":"|"}}`), &p))
	assert.Equal(t, "|", p.Options.String("delimiter", ","))

	assert.Error(t, json.Unmarshal([]byte(`{"options":[1]}`), &p))
}
