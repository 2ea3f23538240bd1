package storage

import (
	"context"
	"fmt"

	"prodstats/internal/ddl"
)

// ReportColumns is the column order of every row handed to CopyFrom.
var ReportColumns = []string{"job", "product", "count", "buy", "sell", "total_qty", "avg_qty", "loaded_at"}

// ReportTable describes the per-product report table.
func ReportTable(fqn string) ddl.TableDef {
	return ddl.TableDef{
		FQN: fqn,
		Columns: []ddl.ColumnDef{
			{Name: "job", Type: ddl.Text},
			{Name: "product", Type: ddl.Text},
			{Name: "count", Type: ddl.BigInt},
			{Name: "buy", Type: ddl.BigInt},
			{Name: "sell", Type: ddl.BigInt},
			{Name: "total_qty", Type: ddl.BigInt},
			{Name: "avg_qty", Type: ddl.Float},
			{Name: "loaded_at", Type: ddl.Timestamp},
		},
	}
}

// EnsureReportTable creates the report table with the dialect registered for
// kind, if it does not exist yet.
func EnsureReportTable(ctx context.Context, kind string, repo Repository, fqn string) error {
	d, ok := DialectFor(kind)
	if !ok {
		return fmt.Errorf("storage: no DDL dialect registered for kind %q", kind)
	}
	stmt, err := ddl.BuildCreateTableSQL(d, ReportTable(fqn))
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage: create %s: %w", fqn, err)
	}
	return nil
}
