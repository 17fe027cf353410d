package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/engine"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/gateway"
	"github.com/kyleking/sqlassist/internal/logging"
	"github.com/kyleking/sqlassist/internal/query"
	"github.com/kyleking/sqlassist/internal/session"
)

func countRows(t *testing.T, driver, dsn, table string) int {
	t.Helper()

	db, err := sql.Open(driver, dsn)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))

	return n
}

func TestSeed(t *testing.T) {
	for _, driver := range []string{"duckdb", "sqlite3"} {
		t.Run(driver, func(t *testing.T) {
			dsn := filepath.Join(t.TempDir(), "demo.db")
			cat := catalog.Default()

			n, err := seed(context.Background(), cat, seedOptions{Driver: driver, DSN: dsn, Rows: 450, Seed: 7}, logging.NewNop())
			require.NoError(t, err)
			assert.Equal(t, 450, n)
			assert.Equal(t, 450, countRows(t, driver, dsn, "ccod_bal"))

			_, err = seed(context.Background(), cat, seedOptions{Driver: driver, DSN: dsn, Rows: 1, Seed: 7}, logging.NewNop())
			require.Error(t, err, "table already exists")
			assert.NotEmpty(t, errors.Suggestions(err))

			n, err = seed(context.Background(), cat, seedOptions{Driver: driver, DSN: dsn, Rows: 10, Seed: 7, Replace: true}, logging.NewNop())
			require.NoError(t, err)
			assert.Equal(t, 10, n)
			assert.Equal(t, 10, countRows(t, driver, dsn, "ccod_bal"))
		})
	}
}

func TestSeed_Validation(t *testing.T) {
	_, err := seed(context.Background(), catalog.Default(), seedOptions{Driver: "pgx", DSN: "x"}, logging.NewNop())
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = seed(context.Background(), catalog.Default(), seedOptions{Driver: "duckdb", Rows: -1}, logging.NewNop())
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRowGenerator_Deterministic(t *testing.T) {
	cat := catalog.Default()

	a := newRowGenerator(cat, 99)
	b := newRowGenerator(cat, 99)

	for i := range 5 {
		if diff := cmp.Diff(a.row(i), b.row(i)); diff != "" {
			t.Fatalf("row %d differs (-a +b):\n%s", i, diff)
		}
	}

	row := newRowGenerator(cat, 1).row(3)
	require.Len(t, row, len(cat.Columns()))
	assert.Equal(t, int64(100000000000+3*7919), row[0], "account numbers follow the row index")
}

func TestCreateTableSQL(t *testing.T) {
	assert.Equal(t,
		"CREATE TABLE ccod_bal (accountno BIGINT, cust_name VARCHAR, currentbalance DOUBLE, intrate DOUBLE, branchno BIGINT, branch_name VARCHAR)",
		createTableSQL(catalog.Default()))
}

func TestSeededDatabaseAnswersQuestions(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "demo.duckdb")
	cat := catalog.Default()

	_, err := seed(context.Background(), cat, seedOptions{Driver: "duckdb", DSN: dsn, Rows: 50, Seed: 3}, logging.NewNop())
	require.NoError(t, err)

	gw, err := gateway.Open(context.Background(), gateway.Options{Driver: "duckdb", DSN: dsn, RowCap: 1000}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	eng := engine.New(cat, query.DefaultLimits, gw, session.NewMemoryStore())

	resp := eng.Ask(context.Background(), engine.Request{Prompt: "count accounts"})
	require.True(t, resp.Success(), "response: %+v", resp)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, int64(50), resp.Rows[0]["row_count"])
}
