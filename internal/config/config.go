// Package config defines the serializable configuration model for a
// prodstats run. Files are JSON or YAML, chosen by extension, and map one to
// one onto Pipeline.
//
// Example (YAML, trimmed):
//
//	job: nightly
//	strategy: memmap-ref
//	source:
//	  kind: file
//	  file: { path: data/events.csv }
//	parser:
//	  options: { delimiter: ",", header_map: { product: Symbol } }
//	report: { format: text, sort: true }
//	storage:
//	  kind: sqlite
//	  db: { dsn: stats.db, table: product_stats, auto_create_table: true }
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level configuration object.
type Pipeline struct {
	// Job labels metrics and stored report rows.
	Job string `json:"job" yaml:"job"`
	// Strategy names a delivery preset (see pipeline.Strategies). Explicit
	// source.mode, parser tokenizer and aggregate.key_mode values override it.
	Strategy string `json:"strategy" yaml:"strategy"`

	Source    Source        `json:"source" yaml:"source"`
	Parser    Parser        `json:"parser" yaml:"parser"`
	Aggregate Aggregate     `json:"aggregate" yaml:"aggregate"`
	Report    Report        `json:"report" yaml:"report"`
	Storage   Storage       `json:"storage" yaml:"storage"`
	Logging   Logging       `json:"logging" yaml:"logging"`
	Metrics   Metrics       `json:"metrics" yaml:"metrics"`
	Runtime   RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Source identifies the input.
type Source struct {
	// Kind is "file", "http" or "s3".
	Kind string `json:"kind" yaml:"kind"`
	// Mode overrides the strategy's delivery: fulltext, mmap, stream or
	// stream-mmap. Only "stream" applies to http and s3.
	Mode string `json:"mode" yaml:"mode"`
	// Compression is "auto" (by extension, the default), "none", or one of
	// gz, bz2, xz, zst, lz4.
	Compression string `json:"compression" yaml:"compression"`

	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
	S3   SourceS3   `json:"s3" yaml:"s3"`
}

// SourceFile holds options for the "file" kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds options for the "http" kind.
type SourceHTTP struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers" yaml:"headers"`
	// MaxRetries counts attempts after the first one. Absent means the
	// client default; 0 disables retries.
	MaxRetries *int `json:"max_retries" yaml:"max_retries"`
	// Timeout is a Go duration string such as "30s"; empty means none.
	Timeout  string `json:"timeout" yaml:"timeout"`
	Insecure bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// SourceS3 holds options for the "s3" kind. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type SourceS3 struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Key             string `json:"key" yaml:"key"`
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	PathStyle       bool   `json:"path_style" yaml:"path_style"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// Parser configures line and field splitting. Recognised options:
//
//	delimiter   (string, one byte, default ",")
//	buffer_size (int, line reader buffer in bytes)
//	tokenizer   ("split" or "offsets")
//	header_map  (object, canonical column -> header text)
//	heartbeat   (int, log progress every N lines)
type Parser struct {
	Options Options `json:"options" yaml:"options"`
}

// Aggregate configures the aggregation table and row filter.
type Aggregate struct {
	// KeyMode is "owned" or "borrowed"; empty keeps the strategy's choice.
	KeyMode string `json:"key_mode" yaml:"key_mode"`
	// FilterValue is the Source value that qualifies a row (default ToClnt).
	FilterValue string `json:"filter_value" yaml:"filter_value"`
	// SizeHint pre-sizes the table for the expected number of products.
	SizeHint int `json:"size_hint" yaml:"size_hint"`
}

// Report configures output.
type Report struct {
	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
	// Sort orders products by key instead of first appearance.
	Sort bool `json:"sort" yaml:"sort"`
}

// Storage selects the optional sink for report rows. An empty Kind disables it.
type Storage struct {
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	DSN             string `json:"dsn" yaml:"dsn"`
	Table           string `json:"table" yaml:"table"`
	AutoCreateTable bool   `json:"auto_create_table" yaml:"auto_create_table"`
}

// Logging mirrors logging.Config.
type Logging struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
}

// Metrics selects the metrics backend. Flags and environment variables
// override these values.
type Metrics struct {
	// Backend is "none", "prom" or "datadog".
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// RuntimeConfig controls the storage stage.
type RuntimeConfig struct {
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Default returns the configuration used when no file is given.
func Default() Pipeline {
	return Pipeline{
		Job:     "prodstats",
		Source:  Source{Kind: "file"},
		Parser:  Parser{Options: Options{}},
		Report:  Report{Format: "text"},
		Runtime: RuntimeConfig{BatchSize: 1000},
	}
}

// Load reads path and decodes it over Default. The format follows the
// extension: .json, .yaml or .yml.
func Load(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return Decode(bytes.NewReader(data), "json")
	case ".yaml", ".yml":
		return Decode(bytes.NewReader(data), "yaml")
	default:
		return Pipeline{}, fmt.Errorf("config: unsupported extension %q (want .json, .yaml or .yml)", ext)
	}
}

// Decode reads one document in format ("json" or "yaml") over Default.
// Unknown JSON fields are rejected; YAML rejects unknown keys as well.
func Decode(r io.Reader, format string) (Pipeline, error) {
	p := Default()
	switch format {
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("config: decode json: %w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Pipeline{}, fmt.Errorf("config: decode yaml: %w", err)
		}
	default:
		return Pipeline{}, fmt.Errorf("config: unknown format %q", format)
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return p, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Options is a free-form map with typed getters. Getters return def when a
// key is absent or of an unexpected type. Numbers are accepted as float64
// (JSON) or int (YAML).
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringMap returns the string-valued entries of the object at key. Non-string
// values are skipped. Returns an empty map when the key is missing.
//
// JSON decodes nested objects as map[string]any; yaml.v3 decodes them into
// the enclosing named type, Options.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	var m map[string]any
	switch v := o[key].(type) {
	case map[string]any:
		m = v
	case Options:
		m = v
	case map[string]string:
		for k, s := range v {
			res[k] = s
		}
		return res
	}
	for k, vv := range m {
		if s, ok := vv.(string); ok {
			res[k] = s
		}
	}
	return res
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON makes a null or missing "options" object decode to an empty
// map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
