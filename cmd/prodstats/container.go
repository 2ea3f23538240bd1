// Package main wires a prodstats run end to end: open the input the way the
// effective strategy asks for, aggregate it, print the report and optionally
// load the report rows into a database.
//
// The CLI layer depends only on storage-agnostic interfaces; backends are
// linked in through the blank import of internal/storage/all.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"prodstats/internal/aggregate"
	"prodstats/internal/config"
	"prodstats/internal/datasource"
	"prodstats/internal/datasource/compress"
	"prodstats/internal/datasource/file"
	"prodstats/internal/datasource/httpds"
	"prodstats/internal/datasource/s3ds"
	"prodstats/internal/logging"
	"prodstats/internal/metrics"
	"prodstats/internal/parser/lines"
	"prodstats/internal/pipeline"
	"prodstats/internal/report"
	"prodstats/internal/schema"
	"prodstats/internal/storage"
)

type Repository = storage.Repository

// Function variables used as test seams.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (Repository, error) {
		return storage.New(ctx, cfg)
	}

	openSourceFn = openSource

	mmapFn     = file.Mmap
	readFileFn = file.ReadAll

	nowFn = time.Now
)

// runSummary is what a successful run reports back to main.
type runSummary struct {
	Strategy string
	Stats    pipeline.Stats
	Products int
	Inserted int64
}

// input is an opened line source and the release of whatever backs it.
type input struct {
	lines pipeline.LineSource
	close func() error
}

// runJob executes one aggregation run for p using the resolved strategy and
// writes the report to out.
func runJob(ctx context.Context, p config.Pipeline, strat pipeline.Strategy, out io.Writer) (runSummary, error) {
	sum := runSummary{Strategy: strat.Name}
	log := logging.Component("runner").WithFields(logrus.Fields{
		"job":      p.Job,
		"strategy": strat.Name,
	})

	opt, err := pipelineOptions(p, strat, log)
	if err != nil {
		return sum, err
	}

	start := time.Now()
	in, err := openInput(ctx, p, strat)
	metrics.RecordStep(p.Job, "open", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cerr := in.close(); cerr != nil {
			log.WithError(cerr).Warn("release input")
		}
	}()

	start = time.Now()
	res, err := pipeline.Run(in.lines, opt)
	metrics.RecordStep(p.Job, "aggregate", err, time.Since(start))
	if err != nil {
		return sum, err
	}
	sum.Stats = res.Stats
	metrics.RecordRow(p.Job, "lines", res.Stats.Lines)
	metrics.RecordRow(p.Job, "empty", res.Stats.Empty)
	metrics.RecordRow(p.Job, "filtered", res.Stats.Filtered)
	metrics.RecordRow(p.Job, "qualifying", res.Stats.Qualifying)

	// Entries copies keys out, so borrowed keys do not outlive the input.
	entries := res.Table.Entries()
	if p.Report.Sort {
		aggregate.SortEntries(entries)
	}
	sum.Products = len(entries)
	metrics.RecordProducts(p.Job, len(entries))
	log.WithFields(logrus.Fields{
		"lines":      res.Stats.Lines,
		"filtered":   res.Stats.Filtered,
		"qualifying": res.Stats.Qualifying,
		"products":   len(entries),
	}).Debug("aggregated")

	format, err := report.ParseFormat(p.Report.Format)
	if err != nil {
		return sum, err
	}
	start = time.Now()
	err = report.Write(out, entries, format)
	metrics.RecordStep(p.Job, "report", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("write report: %w", err)
	}

	if p.Storage.Kind == "" {
		return sum, nil
	}
	start = time.Now()
	sum.Inserted, err = storeReport(ctx, p, entries, log)
	metrics.RecordStep(p.Job, "store", err, time.Since(start))
	if err != nil {
		return sum, err
	}
	metrics.RecordRow(p.Job, "inserted", sum.Inserted)
	return sum, nil
}

// pipelineOptions translates the parser and aggregate sections.
func pipelineOptions(p config.Pipeline, strat pipeline.Strategy, log *logrus.Entry) (pipeline.Options, error) {
	opt := pipeline.Options{
		Tokenizer:   strat.Tokenizer,
		KeyMode:     strat.KeyMode,
		FilterValue: p.Aggregate.FilterValue,
		SizeHint:    p.Aggregate.SizeHint,
		Heartbeat:   p.Parser.Options.Int("heartbeat", 0),
		Logger:      log,
	}
	if d := p.Parser.Options.String("delimiter", ""); d != "" {
		if len(d) != 1 {
			return opt, fmt.Errorf("parser.options.delimiter must be a single byte, got %q", d)
		}
		opt.Delimiter = d[0]
	}
	names, err := schema.NamesFromMap(p.Parser.Options.StringMap("header_map"))
	if err != nil {
		return opt, err
	}
	opt.Names = names
	return opt, nil
}

// initRepository opens the configured backend.
func initRepository(ctx context.Context, s config.Storage) (Repository, error) {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:  s.Kind,
		DSN:   s.DB.DSN,
		Table: s.DB.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

// ensureTableExists creates the report table when auto_create_table is set.
func ensureTableExists(ctx context.Context, s config.Storage, repo Repository) error {
	if !s.DB.AutoCreateTable {
		return nil
	}
	if err := storage.EnsureReportTable(ctx, s.Kind, repo, s.DB.Table); err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}
	return nil
}

// storeReport loads one row per product in batches of runtime.batch_size.
func storeReport(ctx context.Context, p config.Pipeline, entries []aggregate.Entry, log *logrus.Entry) (int64, error) {
	rows, err := report.Rows(p.Job, entries, nowFn().UTC())
	if err != nil {
		return 0, err
	}
	repo, err := initRepository(ctx, p.Storage)
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if err := ensureTableExists(ctx, p.Storage, repo); err != nil {
		return 0, err
	}

	batch := p.Runtime.BatchSize
	if batch <= 0 {
		batch = len(rows) + 1
	}
	var batches int64
	copyFn := func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
		n, err := repo.CopyFrom(ctx, cols, chunk)
		if err == nil {
			batches++
		}
		return n, err
	}
	n, err := storage.LoadBatches(ctx, storage.ReportColumns, rows, batch, copyFn, log)
	metrics.RecordBatches(p.Job, batches)
	if err != nil {
		return n, fmt.Errorf("store %s: %w", p.Storage.DB.Table, err)
	}
	log.WithFields(logrus.Fields{"rows": n, "table": p.Storage.DB.Table}).Info("report stored")
	return n, nil
}

// openSource builds the streamed Source for s.Kind.
func openSource(ctx context.Context, s config.Source) (datasource.Source, error) {
	switch s.Kind {
	case "file":
		return file.NewLocal(s.File.Path), nil
	case "http":
		var timeout time.Duration
		if s.HTTP.Timeout != "" {
			d, err := time.ParseDuration(s.HTTP.Timeout)
			if err != nil {
				return nil, fmt.Errorf("source.http.timeout: %w", err)
			}
			timeout = d
		}
		headers := make(http.Header, len(s.HTTP.Headers))
		for k, v := range s.HTTP.Headers {
			headers.Set(k, v)
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:            timeout,
			MaxRetries:         httpRetries(s.HTTP.MaxRetries),
			InsecureSkipVerify: s.HTTP.Insecure,
			BaseHeaders:        headers,
		})
		return httpds.NewSource(client, s.HTTP.URL), nil
	case "s3":
		src, err := s3ds.New(ctx, s3ds.Config{
			Bucket:          s.S3.Bucket,
			Key:             s.S3.Key,
			Region:          s.S3.Region,
			Endpoint:        s.S3.Endpoint,
			PathStyle:       s.S3.PathStyle,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source kind %q", s.Kind)
	}
}

// httpRetries maps source.http.max_retries onto httpds.Config: absent keeps
// the client default, an explicit 0 turns retries off.
func httpRetries(n *int) int {
	switch {
	case n == nil:
		return 0
	case *n <= 0:
		return httpds.NoRetries
	}
	return *n
}

// sourceName is the path, URL or object key compression is detected from.
func sourceName(s config.Source) string {
	switch s.Kind {
	case "http":
		return s.HTTP.URL
	case "s3":
		return s.S3.Key
	}
	return s.File.Path
}

// compressionFor resolves source.compression; "auto" and "" go by extension.
func compressionFor(s config.Source) (compress.Type, error) {
	switch c := strings.ToLower(strings.TrimSpace(s.Compression)); c {
	case "", "auto":
		return compress.Detect(sourceName(s)), nil
	default:
		return compress.ParseType(c)
	}
}

// openInput delivers the input as strat.Source prescribes and puts the
// strategy's line source on top.
func openInput(ctx context.Context, p config.Pipeline, strat pipeline.Strategy) (*input, error) {
	ct, err := compressionFor(p.Source)
	if err != nil {
		return nil, err
	}
	size := p.Parser.Options.Int("buffer_size", lines.DefaultBufferSize)

	switch strat.Source {
	case pipeline.FullRead:
		var buf datasource.Buffer
		if p.Source.Kind == "file" && ct == compress.None {
			buf, err = readFileFn(ctx, p.Source.File.Path)
		} else {
			var src datasource.Source
			if src, err = openSourceFn(ctx, p.Source); err == nil {
				buf, err = datasource.ReadAll(ctx, compress.Wrap(src, ct))
			}
		}
		if err != nil {
			return nil, err
		}
		return &input{lines: lines.NewSplitter(datasource.TrimBOM(buf.Bytes())), close: buf.Close}, nil

	case pipeline.Mmap, pipeline.StreamMmap:
		if p.Source.Kind != "file" {
			return nil, fmt.Errorf("%s needs a local file, got source kind %q", strat.Source, p.Source.Kind)
		}
		if ct != compress.None {
			return nil, fmt.Errorf("%s cannot serve %s-compressed input", strat.Source, ct)
		}
		buf, err := mmapFn(ctx, p.Source.File.Path)
		if err != nil {
			return nil, err
		}
		data := datasource.TrimBOM(buf.Bytes())
		if strat.Source == pipeline.Mmap {
			return &input{lines: lines.NewSplitter(data), close: buf.Close}, nil
		}
		ls, err := newLineReader(bytes.NewReader(data), strat.Lines, size)
		if err != nil {
			_ = buf.Close()
			return nil, err
		}
		return &input{lines: ls, close: buf.Close}, nil

	case pipeline.Stream:
		src, err := openSourceFn(ctx, p.Source)
		if err != nil {
			return nil, err
		}
		rc, err := compress.Wrap(src, ct).Open(ctx)
		if err != nil {
			return nil, err
		}
		ls, err := newLineReader(datasource.StripBOM(rc), strat.Lines, size)
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		return &input{lines: ls, close: rc.Close}, nil
	}
	return nil, fmt.Errorf("unsupported source mode %q", strat.Source)
}

func newLineReader(r io.Reader, mode pipeline.LineMode, size int) (pipeline.LineSource, error) {
	switch mode {
	case pipeline.BufferedLines:
		return lines.NewBufferedReader(r, size), nil
	case pipeline.CustomLines:
		return lines.NewReaderSize(r, size), nil
	}
	return nil, fmt.Errorf("line mode %q needs a resident input", mode)
}
