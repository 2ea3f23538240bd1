package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodstats/internal/aggregate"
	"prodstats/internal/parser/fields"
	"prodstats/internal/pipeline"
)

func hasIssue(issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validFile() Pipeline {
	p := Default()
	p.Source.File.Path = "events.csv"
	return p
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ValidatePipeline(validFile()))
}

func TestValidatePipeline_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"empty job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "must not be empty"},
		{"unknown strategy", func(p *Pipeline) { p.Strategy = "turbo" }, SeverityError, "strategy", "unknown strategy"},
		{"no source kind", func(p *Pipeline) { p.Source.Kind = "" }, SeverityError, "source.kind", "must not be empty"},
		{"unknown source kind", func(p *Pipeline) { p.Source.Kind = "ftp" }, SeverityError, "source.kind", "unknown source kind"},
		{"file without path", func(p *Pipeline) { p.Source.File.Path = "" }, SeverityError, "source.file.path", "non-empty path"},
		{"http bad url", func(p *Pipeline) { p.Source.Kind = "http"; p.Source.HTTP.URL = "ftp://x" }, SeverityError, "source.http.url", "http(s) URL"},
		{"http bad timeout", func(p *Pipeline) {
			p.Source.Kind = "http"
			p.Source.HTTP.URL = "https://x/y.csv"
			p.Source.HTTP.Timeout = "soon"
		}, SeverityError, "source.http.timeout", ""},
		{"http insecure", func(p *Pipeline) {
			p.Source.Kind = "http"
			p.Source.HTTP.URL = "https://x/y.csv"
			p.Source.HTTP.Insecure = true
		}, SeverityWarning, "source.http.insecure_skip_verify", "disabled"},
		{"s3 missing key", func(p *Pipeline) { p.Source.Kind = "s3"; p.Source.S3.Bucket = "b" }, SeverityError, "source.s3", "bucket and key"},
		{"s3 half credentials", func(p *Pipeline) {
			p.Source.Kind = "s3"
			p.Source.S3 = SourceS3{Bucket: "b", Key: "k", AccessKeyID: "AK"}
		}, SeverityError, "source.s3", "together"},
		{"http with mmap strategy", func(p *Pipeline) {
			p.Source.Kind = "http"
			p.Source.HTTP.URL = "https://x/y.csv"
			p.Strategy = "memmap-clone"
		}, SeverityError, "source.mode", "only support stream"},
		{"bad mode", func(p *Pipeline) { p.Source.Mode = "carrier-pigeon" }, SeverityError, "source.mode", "unknown source mode"},
		{"bad compression", func(p *Pipeline) { p.Source.Compression = "rar" }, SeverityError, "source.compression", "unknown format"},
		{"long delimiter", func(p *Pipeline) { p.Parser.Options["delimiter"] = ",," }, SeverityError, "parser.options.delimiter", "single byte"},
		{"newline delimiter", func(p *Pipeline) { p.Parser.Options["delimiter"] = "\n" }, SeverityError, "parser.options.delimiter", "single byte"},
		{"negative buffer", func(p *Pipeline) { p.Parser.Options["buffer_size"] = -1 }, SeverityError, "parser.options.buffer_size", "negative"},
		{"negative heartbeat", func(p *Pipeline) { p.Parser.Options["heartbeat"] = float64(-5) }, SeverityError, "parser.options.heartbeat", "negative"},
		{"bad tokenizer", func(p *Pipeline) { p.Parser.Options["tokenizer"] = "regex" }, SeverityError, "parser.options.tokenizer", "unknown tokenizer"},
		{"bad header map", func(p *Pipeline) {
			p.Parser.Options["header_map"] = map[string]any{"colour": "X"}
		}, SeverityError, "parser.options.header_map", "colour"},
		{"bad key mode", func(p *Pipeline) { p.Aggregate.KeyMode = "leased" }, SeverityError, "aggregate.key_mode", "unknown key mode"},
		{"negative size hint", func(p *Pipeline) { p.Aggregate.SizeHint = -1 }, SeverityError, "aggregate.size_hint", "negative"},
		{"borrowed over stream", func(p *Pipeline) { p.Strategy = "read"; p.Aggregate.KeyMode = "borrowed" }, SeverityError, "strategy", "stable line source"},
		{"bad report format", func(p *Pipeline) { p.Report.Format = "xml" }, SeverityError, "report.format", "unknown report format"},
		{"storage without dsn", func(p *Pipeline) { p.Storage = Storage{Kind: "sqlite", DB: DBConfig{Table: "t"}} }, SeverityError, "storage.db.dsn", "must not be empty"},
		{"storage without table", func(p *Pipeline) { p.Storage = Storage{Kind: "sqlite", DB: DBConfig{DSN: "x.db"}} }, SeverityError, "storage.db.table", "must not be empty"},
		{"unknown storage", func(p *Pipeline) { p.Storage = Storage{Kind: "oracle", DB: DBConfig{DSN: "x", Table: "t"}} }, SeverityWarning, "storage.kind", "unknown storage kind"},
		{"zero batch", func(p *Pipeline) {
			p.Storage = Storage{Kind: "sqlite", DB: DBConfig{DSN: "x", Table: "t"}}
			p.Runtime.BatchSize = 0
		}, SeverityWarning, "runtime.batch_size", "one batch"},
		{"bad log level", func(p *Pipeline) { p.Logging.Level = "loud" }, SeverityWarning, "logging.level", "info is used"},
		{"bad log format", func(p *Pipeline) { p.Logging.Format = "xml" }, SeverityWarning, "logging.format", "text is used"},
		{"bad metrics backend", func(p *Pipeline) { p.Metrics.Backend = "graphite" }, SeverityError, "metrics.backend", "unknown metrics backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validFile()
			p.Parser.Options = Options{}
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			assert.True(t, hasIssue(issues, tt.sev, tt.path, tt.msg), "issues: %+v", issues)
		})
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()
	assert.False(t, HasErrors(nil))
	assert.False(t, HasErrors([]Issue{{Severity: SeverityWarning}}))
	assert.True(t, HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}))
	assert.Equal(t, "error at job: x", Issue{SeverityError, "job", "x"}.Error())
}

func TestEffective(t *testing.T) {
	t.Parallel()

	p := validFile()
	s, err := Effective(p)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultStrategy, s.Name)

	p.Strategy = "fulltext"
	p.Source.Mode = "stream"
	p.Aggregate.KeyMode = "owned"
	p.Parser.Options["tokenizer"] = "offsets"
	s, err = Effective(p)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Stream, s.Source)
	assert.Equal(t, pipeline.CustomLines, s.Lines)
	assert.Equal(t, fields.OffsetKind, s.Tokenizer)
	assert.Equal(t, aggregate.Owned, s.KeyMode)
	assert.Equal(t, "fulltext+stream", s.Name)
	assert.NoError(t, s.Validate())

	p = validFile()
	p.Strategy = "read"
	p.Source.Mode = "mmap"
	s, err = Effective(p)
	require.NoError(t, err)
	assert.Equal(t, pipeline.SplitLines, s.Lines)
	assert.NoError(t, s.Validate())
}
