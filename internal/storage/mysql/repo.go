// Package mysql implements a MySQL/MariaDB storage.Repository with
// database/sql and go-sql-driver/mysql. Rows are sent as multi-row INSERT
// statements inside one transaction per batch.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"prodstats/internal/ddl"
)

// maxPlaceholders is the server limit on bind parameters per statement.
const maxPlaceholders = 65535

// Dialect renders MySQL DDL.
var Dialect = ddl.Dialect{
	Name:       "mysql",
	QuoteIdent: quoteIdent,
	MapType:    mapType,
	Wrap:       ddl.IfNotExists,
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func mapType(t string) string {
	switch t {
	case ddl.BigInt:
		return "BIGINT"
	case ddl.Float:
		return "DOUBLE"
	case ddl.Timestamp:
		return "DATETIME(6)"
	case ddl.Text:
		return "VARCHAR(255)"
	default:
		return ""
	}
}

// Config holds MySQL repository configuration.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(db:3306)/stats".
	// parseTime is forced on.
	DSN   string
	Table string // e.g. "stats.product_stats"
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// parseDSN validates dsn and switches on parseTime so DATETIME columns scan
// into time.Time.
func parseDSN(dsn string) (*driver.Config, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	mc, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse DSN: %w", err)
	}
	mc.ParseTime = true
	return mc, nil
}

// NewRepository opens a pool and pings the server.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	mc, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	conn, err := driver.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", describe(err))
	}
	return &Repository{db: db, cfg: cfg}, nil
}

// insertSQL renders one INSERT with n value tuples.
func insertSQL(table string, columns []string, n int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", Dialect.QuoteFQN(table), strings.Join(quoted, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}

// CopyFrom inserts rows in one transaction, as few statements as the
// placeholder limit allows.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mysql: row %d has %d values, want %d", i, len(row), len(columns))
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", describe(err))
	}
	per := maxPlaceholders / len(columns)
	for lo := 0; lo < len(rows); lo += per {
		hi := min(lo+per, len(rows))
		args := make([]any, 0, (hi-lo)*len(columns))
		for _, row := range rows[lo:hi] {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, insertSQL(r.cfg.Table, columns, hi-lo), args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert rows %d-%d: %w", lo, hi-1, describe(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", describe(err))
	}
	return int64(len(rows)), nil
}

// Exec runs a single statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mysql: exec: %w", describe(err))
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

// describe adds the server error number and SQLSTATE when available.
func describe(err error) error {
	var me *driver.MySQLError
	if errors.As(err, &me) {
		return fmt.Errorf("%w (error %d, sqlstate %s)", err, me.Number, string(me.SQLState[:]))
	}
	return err
}
