// Package logging configures the process-wide logrus logger.
//
// Report output goes to stdout; logs default to stderr so the two never mix.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and destination.
type Config struct {
	Level  string // trace..panic; "" means info
	Format string // "text" (default) or "json"
	// Output is "stderr" (default), "stdout", or a file path. File output
	// rotates through lumberjack when MaxAgeDays or MaxSizeMB is set.
	Output     string
	MaxAgeDays int
	MaxSizeMB  int
	// Caller adds file:line to every entry.
	Caller bool
}

var std = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return l
}

// Logger returns the shared logger.
func Logger() *logrus.Logger { return std }

// Component returns an entry tagged with component=name.
func Component(name string) *logrus.Entry { return std.WithField("component", name) }

// Configure applies cfg to the shared logger. The returned closer releases a
// log file, if one was opened.
func Configure(cfg Config) (io.Closer, error) {
	return apply(std, cfg)
}

func apply(l *logrus.Logger, cfg Config) (io.Closer, error) {
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q", cfg.Level)
	}

	prettyCaller := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}
	var formatter logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: prettyCaller,
		}
	case "json":
		formatter = &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
			CallerPrettyfier: prettyCaller,
		}
	default:
		return nil, fmt.Errorf("logging: invalid format %q", cfg.Format)
	}

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		if cfg.MaxAgeDays > 0 || cfg.MaxSizeMB > 0 {
			lj := &lumberjack.Logger{
				Filename: cfg.Output,
				MaxAge:   cfg.MaxAgeDays,
				MaxSize:  cfg.MaxSizeMB,
				Compress: true,
			}
			out, closer = lj, lj
		} else {
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("logging: open %s: %w", cfg.Output, err)
			}
			out, closer = f, f
		}
	}

	l.SetLevel(lvl)
	l.SetFormatter(formatter)
	l.SetReportCaller(cfg.Caller)
	l.SetOutput(out)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
