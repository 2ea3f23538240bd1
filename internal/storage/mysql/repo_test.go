package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodstats/internal/ddl"
	"prodstats/internal/storage"
)

func TestQuoteIdent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "`stats`", quoteIdent("stats"))
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
	assert.Equal(t, "`db`.`stats`", Dialect.QuoteFQN("db.stats"))
}

func TestDialect_ReportTable(t *testing.T) {
	t.Parallel()
	sql, err := ddl.BuildCreateTableSQL(Dialect, storage.ReportTable("db.stats"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS `db`.`stats` ("), sql)
	assert.Contains(t, sql, "`product` VARCHAR(255) NOT NULL")
	assert.Contains(t, sql, "`count` BIGINT NOT NULL")
	assert.Contains(t, sql, "`avg_qty` DOUBLE NOT NULL")
	assert.Contains(t, sql, "`loaded_at` DATETIME(6) NOT NULL")
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"INSERT INTO `stats` (`product`, `count`) VALUES (?, ?), (?, ?), (?, ?)",
		insertSQL("stats", []string{"product", "count"}, 3))
}

func TestParseDSN(t *testing.T) {
	t.Parallel()

	_, err := parseDSN(" ")
	assert.ErrorContains(t, err, "must not be empty")

	_, err = parseDSN("user:pass@tcp(db:3306")
	assert.ErrorContains(t, err, "parse DSN")

	mc, err := parseDSN("user:pass@tcp(db:3306)/stats")
	require.NoError(t, err)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, "stats", mc.DBName)
	assert.Equal(t, "db:3306", mc.Addr)
}

func TestRegisteredWithHook(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var got Config
	newRepository = func(_ context.Context, cfg Config) (*Repository, error) {
		got = cfg
		return &Repository{cfg: cfg}, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u@tcp(x)/db", Table: "db.stats"})
	require.NoError(t, err)
	assert.NotNil(t, repo)
	assert.Equal(t, Config{DSN: "u@tcp(x)/db", Table: "db.stats"}, got)

	d, ok := storage.DialectFor("mysql")
	require.True(t, ok)
	assert.Equal(t, "mysql", d.Name)
}

func TestRegistered_FactoryError(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })
	newRepository = func(context.Context, Config) (*Repository, error) { return nil, errors.New("refused") }

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "x", Table: "t"})
	assert.ErrorContains(t, err, "refused")
	assert.Nil(t, repo)
}

func TestCopyFrom_ValidatesBeforeTouchingTheServer(t *testing.T) {
	t.Parallel()
	r := &Repository{cfg: Config{Table: "t"}}

	_, err := r.CopyFrom(context.Background(), nil, [][]any{{1}})
	assert.Error(t, err)

	n, err := r.CopyFrom(context.Background(), []string{"a"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.CopyFrom(context.Background(), []string{"a", "b"}, [][]any{{1}})
	assert.ErrorContains(t, err, "row 0 has 1 values, want 2")
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	err := describe(&driver.MySQLError{Number: 1146, SQLState: [5]byte{'4', '2', 'S', '0', '2'}, Message: "Table 'db.t' doesn't exist"})
	assert.Contains(t, err.Error(), "error 1146")
	assert.Contains(t, err.Error(), "sqlstate 42S02")

	plain := errors.New("x")
	assert.Equal(t, plain, describe(plain))
}
