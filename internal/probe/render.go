package probe

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"prodstats/internal/config"
)

// WriteText renders rep for a terminal.
func WriteText(w io.Writer, rep *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "sample\t%d bytes", rep.SampleBytes)
	if rep.Truncated {
		fmt.Fprint(tw, " (truncated)")
	}
	fmt.Fprintf(tw, "\nheader\t%d fields\n\n", len(rep.Header))

	fmt.Fprintln(tw, "ROLE\tEXPECTED\tFOUND\tINDEX\tNUMERIC")
	for _, c := range rep.Columns {
		found, index := "-", "-"
		if c.Found() {
			found, index = c.Header, fmt.Sprint(c.Index)
			if c.Loose {
				found += " (loose)"
			}
		}
		numeric := ""
		if c.Parsed+c.Failed > 0 {
			numeric = fmt.Sprintf("%d/%d", c.Parsed, c.Parsed+c.Failed)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Role, c.Expected, found, index, numeric)
	}

	fmt.Fprintf(tw, "\nrows\t%d (empty %d, short %d)\n", rep.Rows, rep.EmptyRows, rep.ShortRows)
	fmt.Fprintf(tw, "qualifying\t%d across %d products\n", rep.Qualifying, rep.Products)
	vals := make([]string, 0, len(rep.Sources))
	for _, s := range rep.Sources {
		vals = append(vals, fmt.Sprintf("%s=%d", s.Value, s.Rows))
	}
	fmt.Fprintf(tw, "sources\t%s\n", strings.Join(vals, " "))
	if m := rep.Missing(); len(m) > 0 {
		fmt.Fprintf(tw, "missing\t%s\n", strings.Join(m, ", "))
	}
	return tw.Flush()
}

// Skeleton returns a starter configuration for base with a header_map entry
// for every loosely matched column. base supplies job, source and storage.
func Skeleton(rep *Report, base config.Pipeline) config.Pipeline {
	p := base
	if p.Job == "" {
		p.Job = "prodstats"
	}
	p.Job = normalizeFieldName(p.Job)
	opts := make(config.Options, len(base.Parser.Options)+1)
	for k, v := range base.Parser.Options {
		opts[k] = v
	}
	p.Parser.Options = opts
	hm := map[string]any{}
	for _, c := range rep.Columns {
		if c.Loose {
			hm[c.Role] = c.Header
		}
	}
	if len(hm) > 0 {
		p.Parser.Options["header_map"] = hm
	}
	if p.Storage.Kind != "" && p.Storage.DB.Table == "" {
		p.Storage.DB.Table = p.Job + "_stats"
	}
	return p
}

// EncodeConfig writes p as "json" (indented) or "yaml".
func EncodeConfig(w io.Writer, p config.Pipeline, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("probe: unknown config format %q", format)
}
