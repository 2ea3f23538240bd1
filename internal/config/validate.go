package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"prodstats/internal/aggregate"
	"prodstats/internal/datasource/compress"
	"prodstats/internal/parser/fields"
	"prodstats/internal/pipeline"
	"prodstats/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config, e.g. "source.file.path" or "parser.options.header_map".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static checks over p without touching the
// network or the filesystem.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityError, "job", "job must not be empty; it labels metrics and stored rows")
	}

	strat, err := pipeline.LookupStrategy(p.Strategy)
	if err != nil {
		add(SeverityError, "strategy", "%v", err)
	}
	validateSource(p.Source, add)
	validateParser(p.Parser, add)
	validateAggregate(p.Aggregate, add)

	// Cross-field: the effective strategy must be runnable.
	if err == nil {
		if eff, err := Effective(p); err != nil {
			add(SeverityError, "strategy", "%v", err)
		} else if err := eff.Validate(); err != nil {
			add(SeverityError, "strategy", "%v", err)
		} else if p.Source.Kind != "" && p.Source.Kind != "file" && eff.Source != pipeline.Stream {
			add(SeverityError, "source.mode", "%s sources only support stream delivery, strategy %s uses %s",
				p.Source.Kind, strat.Name, eff.Source)
		}
	}

	switch p.Report.Format {
	case "", "text", "json":
	default:
		add(SeverityError, "report.format", "unknown report format %q (want text or json)", p.Report.Format)
	}
	validateStorage(p.Storage, p.Runtime, add)

	if p.Logging.Level != "" {
		if _, err := logrus.ParseLevel(p.Logging.Level); err != nil {
			add(SeverityWarning, "logging.level", "%v; info is used", err)
		}
	}
	switch p.Logging.Format {
	case "", "text", "json":
	default:
		add(SeverityWarning, "logging.format", "unknown log format %q; text is used", p.Logging.Format)
	}
	switch p.Metrics.Backend {
	case "", "none", "prom", "datadog":
	default:
		add(SeverityError, "metrics.backend", "unknown metrics backend %q (want none, prom or datadog)", p.Metrics.Backend)
	}
	return issues
}

type addFn func(sev IssueSeverity, path, format string, args ...any)

func validateSource(s Source, add addFn) {
	switch s.Kind {
	case "":
		add(SeverityError, "source.kind", "source.kind must not be empty")
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			add(SeverityError, "source.file.path", "file source requires a non-empty path")
		}
	case "http":
		u := strings.TrimSpace(s.HTTP.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			add(SeverityError, "source.http.url", "http source requires an http(s) URL, got %q", s.HTTP.URL)
		}
		if s.HTTP.Timeout != "" {
			if _, err := time.ParseDuration(s.HTTP.Timeout); err != nil {
				add(SeverityError, "source.http.timeout", "%v", err)
			}
		}
		if s.HTTP.Insecure {
			add(SeverityWarning, "source.http.insecure_skip_verify", "TLS verification is disabled")
		}
	case "s3":
		if s.S3.Bucket == "" || s.S3.Key == "" {
			add(SeverityError, "source.s3", "s3 source requires bucket and key")
		}
		if (s.S3.AccessKeyID == "") != (s.S3.SecretAccessKey == "") {
			add(SeverityError, "source.s3", "access_key_id and secret_access_key must be set together")
		}
	default:
		add(SeverityError, "source.kind", "unknown source kind %q (want file, http or s3)", s.Kind)
	}
	if s.Mode != "" {
		if _, err := pipeline.ParseSourceMode(s.Mode); err != nil {
			add(SeverityError, "source.mode", "%v", err)
		}
	}
	if c := strings.ToLower(s.Compression); c != "" && c != "auto" {
		if _, err := compress.ParseType(c); err != nil {
			add(SeverityError, "source.compression", "%v", err)
		}
	}
}

func validateParser(p Parser, add addFn) {
	o := p.Options
	if d := o.String("delimiter", ","); len(d) != 1 || d == "\n" {
		add(SeverityError, "parser.options.delimiter", "delimiter must be a single byte other than newline, got %q", d)
	}
	if n := o.Int("buffer_size", 0); n < 0 {
		add(SeverityError, "parser.options.buffer_size", "buffer_size must not be negative")
	}
	if n := o.Int("heartbeat", 0); n < 0 {
		add(SeverityError, "parser.options.heartbeat", "heartbeat must not be negative")
	}
	if t := o.String("tokenizer", ""); t != "" {
		if _, err := fields.ParseKind(t); err != nil {
			add(SeverityError, "parser.options.tokenizer", "%v", err)
		}
	}
	if o.Any("header_map") != nil {
		if _, err := schema.NamesFromMap(o.StringMap("header_map")); err != nil {
			add(SeverityError, "parser.options.header_map", "%v", err)
		}
	}
}

func validateAggregate(a Aggregate, add addFn) {
	if _, err := aggregate.ParseKeyMode(a.KeyMode); err != nil {
		add(SeverityError, "aggregate.key_mode", "%v", err)
	}
	if a.SizeHint < 0 {
		add(SeverityError, "aggregate.size_hint", "size_hint must not be negative")
	}
}

func validateStorage(s Storage, r RuntimeConfig, add addFn) {
	if s.Kind == "" {
		return
	}
	switch s.Kind {
	case "sqlite", "postgres", "mssql", "mysql":
	default:
		add(SeverityWarning, "storage.kind", "unknown storage kind %q; ensure a matching backend is registered", s.Kind)
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		add(SeverityError, "storage.db.dsn", "storage.db.dsn must not be empty")
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		add(SeverityError, "storage.db.table", "storage.db.table must not be empty")
	}
	if r.BatchSize <= 0 {
		add(SeverityWarning, "runtime.batch_size", "batch_size=%d; all rows are sent in one batch", r.BatchSize)
	}
}

// Effective resolves the strategy named by p and applies the explicit
// overrides from source.mode, parser.options.tokenizer and aggregate.key_mode.
func Effective(p Pipeline) (pipeline.Strategy, error) {
	s, err := pipeline.LookupStrategy(p.Strategy)
	if err != nil {
		return pipeline.Strategy{}, err
	}
	if p.Source.Mode != "" {
		m, err := pipeline.ParseSourceMode(p.Source.Mode)
		if err != nil {
			return pipeline.Strategy{}, err
		}
		if m != s.Source {
			s.Source = m
			s.Name += "+" + string(m)
			// Keep the line source compatible with the new delivery.
			switch {
			case m.Stable():
				s.Lines = pipeline.SplitLines
			case s.Lines == pipeline.SplitLines:
				s.Lines = pipeline.CustomLines
			}
		}
	}
	if t := p.Parser.Options.String("tokenizer", ""); t != "" {
		k, err := fields.ParseKind(t)
		if err != nil {
			return pipeline.Strategy{}, err
		}
		s.Tokenizer = k
	}
	if p.Aggregate.KeyMode != "" {
		k, err := aggregate.ParseKeyMode(p.Aggregate.KeyMode)
		if err != nil {
			return pipeline.Strategy{}, err
		}
		s.KeyMode = k
	}
	return s, nil
}
