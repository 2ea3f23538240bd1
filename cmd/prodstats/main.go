package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"prodstats/internal/config"
	"prodstats/internal/datasource/compress"
	"prodstats/internal/logging"
	"prodstats/internal/metrics"
	"prodstats/internal/metrics/datadog"
	"prodstats/internal/metrics/prompush"
	"prodstats/internal/pipeline"
	"prodstats/internal/probe"

	// register all backends with the storage factory.
	_ "prodstats/internal/storage/all"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2

	defaultPushgatewayURL = "http://localhost:9091"
	defaultDatadogAddr    = "127.0.0.1:8125"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cliFlags are the parsed command line.
type cliFlags struct {
	cfgPath        string
	strategy       string
	format         string
	sort           bool
	metricsBackend string
	pushgatewayURL string
	validate       bool
	verbose        bool
	probeBytes     int
	probeConfig    string
	args           []string
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("prodstats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.cfgPath, "config", "", "pipeline config path (.json, .yaml, .yml)")
	fs.StringVar(&f.strategy, "strategy", "", "delivery strategy (see list below)")
	fs.StringVar(&f.format, "format", "", "report format: text or json")
	fs.BoolVar(&f.sort, "sort", false, "order products by name instead of first appearance")
	fs.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none, prom or datadog (overrides env METRICS_BACKEND)")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&f.verbose, "v", false, "enable debug logs")
	fs.IntVar(&f.probeBytes, "probe", 0, "sample the first N bytes of the input, describe them and exit")
	fs.StringVar(&f.probeConfig, "probe-config", "", "with -probe, print a starter config instead: json or yaml")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: prodstats [flags] <data> [strategy]\n\nStrategies:\n")
		for _, name := range pipeline.StrategyNames() {
			fmt.Fprintf(stderr, "    %s\n", name)
		}
		fmt.Fprintf(stderr, "\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.args = fs.Args()
	return f, nil
}

// run is main without the process exit, for tests.
func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	p, err := resolvePipeline(f)
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "prodstats: %v\n", err)
			fmt.Fprintf(stderr, "Usage: prodstats [flags] <data> [strategy]\nStrategies: %s\n", strings.Join(pipeline.StrategyNames(), ", "))
			return exitUsage
		}
		fmt.Fprintf(stderr, "prodstats: %v\n", err)
		return exitFatal
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return exitFatal
	}
	if f.validate {
		fmt.Fprintln(stderr, "configuration is valid")
		return exitOK
	}

	closer, err := logging.Configure(logging.Config{
		Level:      p.Logging.Level,
		Format:     p.Logging.Format,
		Output:     p.Logging.Output,
		MaxAgeDays: p.Logging.MaxAgeDays,
		MaxSizeMB:  p.Logging.MaxSizeMB,
	})
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: logging: %v\n", err)
		return exitFatal
	}
	defer closer.Close()
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.probeBytes > 0 {
		return runProbe(ctx, p, f, stdout, stderr)
	}

	strat, err := config.Effective(p)
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: %v\n", err)
		return exitFatal
	}

	flush := setupMetrics(p, f, log)
	defer flush()

	log.WithFields(logrus.Fields{
		"source":   p.Source.Kind,
		"strategy": strat.Name,
		"storage":  p.Storage.Kind,
	}).Debug("pipeline")

	start := time.Now()
	if _, err := runJob(ctx, p, strat, stdout); err != nil {
		fmt.Fprintf(stderr, "prodstats: %v\n", err)
		return exitFatal
	}
	fmt.Fprintf(stderr, "Elapsed: %s\n", time.Since(start))
	return exitOK
}

// usageError marks command line mistakes, which exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// resolvePipeline loads the config file, if any, and layers the command line
// on top: positional <data> becomes a file source and [strategy] or
// -strategy picks the preset.
func resolvePipeline(f cliFlags) (config.Pipeline, error) {
	p := config.Default()
	if f.cfgPath != "" {
		var err error
		if p, err = config.Load(f.cfgPath); err != nil {
			return p, err
		}
	}

	switch len(f.args) {
	case 0:
		if f.cfgPath == "" {
			return p, usageError{"missing <data> argument"}
		}
	case 1, 2:
		p.Source.Kind = "file"
		p.Source.File.Path = f.args[0]
		if len(f.args) == 2 {
			if f.strategy != "" && f.strategy != f.args[1] {
				return p, usageError{fmt.Sprintf("strategy given twice: %q and %q", f.strategy, f.args[1])}
			}
			p.Strategy = f.args[1]
		}
	default:
		return p, usageError{fmt.Sprintf("too many arguments: %q", f.args)}
	}
	if f.strategy != "" {
		p.Strategy = f.strategy
	}
	if _, err := pipeline.LookupStrategy(p.Strategy); err != nil {
		return p, usageError{err.Error()}
	}

	if f.format != "" {
		p.Report.Format = f.format
	}
	if f.sort {
		p.Report.Sort = true
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" && p.Logging.Level == "" {
		p.Logging.Level = lvl
	}
	if f.verbose {
		p.Logging.Level = "debug"
	}
	return p, nil
}

// setupMetrics installs the backend chosen by flag, then env, then config,
// and returns the deferred flush.
func setupMetrics(p config.Pipeline, f cliFlags, log *logrus.Entry) func() {
	nop := func() {}

	name := firstNonEmpty(f.metricsBackend, os.Getenv("METRICS_BACKEND"), p.Metrics.Backend)
	var (
		b   metrics.Backend
		err error
	)
	switch name {
	case "", "none":
		log.Debugf("metrics: disabled (backend=%q)", name)
		return nop
	case "prom", "pushgateway":
		url := firstNonEmpty(f.pushgatewayURL, os.Getenv("PUSHGATEWAY_URL"), p.Metrics.PushgatewayURL, defaultPushgatewayURL)
		b, err = prompush.NewBackend(p.Job, url)
		log = log.WithField("url", url)
	case "datadog":
		addr := firstNonEmpty(os.Getenv("DD_AGENT_ADDR"), p.Metrics.DatadogAddr, defaultDatadogAddr)
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "prodstats.",
			GlobalTags: []string{"job:" + p.Job},
		})
		log = log.WithField("addr", addr)
	default:
		log.Warnf("metrics: unknown backend %q; metrics disabled", name)
		return nop
	}
	if err != nil {
		log.WithError(err).Warnf("metrics: failed to init %s backend; using nop", name)
		return nop
	}

	log.Debugf("metrics: backend=%s job=%s", name, p.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics: flush")
		}
	}
}

// runProbe samples the configured source and prints either a summary or a
// starter configuration.
func runProbe(ctx context.Context, p config.Pipeline, f cliFlags, stdout, stderr io.Writer) int {
	ct, err := compressionFor(p.Source)
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: %v\n", err)
		return exitFatal
	}
	src, err := openSourceFn(ctx, p.Source)
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: %v\n", err)
		return exitFatal
	}

	opt, err := pipelineOptions(p, pipeline.Strategy{}, nil)
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: %v\n", err)
		return exitFatal
	}
	rep, err := probe.Sample(ctx, compress.Wrap(src, ct), probe.Options{
		MaxBytes:    f.probeBytes,
		Delimiter:   opt.Delimiter,
		Names:       opt.Names,
		FilterValue: opt.FilterValue,
	})
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: probe: %v\n", err)
		return exitFatal
	}

	if f.probeConfig != "" {
		err = probe.EncodeConfig(stdout, probe.Skeleton(rep, p), f.probeConfig)
	} else {
		err = probe.WriteText(stdout, rep)
	}
	if err != nil {
		fmt.Fprintf(stderr, "prodstats: probe: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
