// Package ddl is a small, backend-agnostic model of a table definition and a
// CREATE TABLE renderer parameterised by SQL dialect.
//
// Backends describe their dialect once (quoting, type mapping, how to make
// creation idempotent); the column loop is shared.
package ddl

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect holds the backend-specific parts of CREATE TABLE.
type Dialect struct {
	Name string
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent func(string) string
	// MapType turns a logical type into a SQL type.
	MapType func(string) string
	// Wrap makes the statement idempotent. It receives the quoted table name
	// and the rendered "CREATE TABLE ... (...)" text.
	Wrap func(quotedFQN, create string) string
}

// QuoteFQN quotes each dotted segment of fqn. Empty segments are dropped.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, d.QuoteIdent(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders t for dialect d:
//
//	<wrap>CREATE TABLE <fqn> (
//	  <col> <type> [NOT NULL] [DEFAULT expr],
//	  PRIMARY KEY (<pk>, ...)
//	)</wrap>
//
// Primary-key columns are always NOT NULL and listed in sorted order.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" && c.Type != "" && d.MapType != nil {
			typ = d.MapType(c.Type)
		}
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s has no type", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}
	if len(pks) > 0 {
		sort.Strings(pks)
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := d.QuoteFQN(fqn)
	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quoted, strings.Join(cols, ",\n  "))
	if d.Wrap != nil {
		return d.Wrap(quoted, create), nil
	}
	return create + ";", nil
}

// DoubleQuote quotes an identifier ANSI-style: "a""b".
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// IfNotExists is the Wrap used by dialects that support
// CREATE TABLE IF NOT EXISTS.
func IfNotExists(_ string, create string) string {
	return strings.Replace(create, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1) + ";"
}
