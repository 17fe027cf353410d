// Package gateway runs approved statements against the read-only database
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/logging"
	"github.com/kyleking/sqlassist/internal/policy"
)

// Result is the outcome of a successful execution
type Result struct {
	Columns   []string
	Rows      []map[string]any
	Truncated bool
	Duration  time.Duration
}

// Gateway owns the connection pool. It holds no lock across requests: each
// execution borrows one pooled connection for the life of its transaction.
type Gateway struct {
	db     *sql.DB
	opts   Options
	logger *logging.Logger
}

// Open creates the pool for opts.Driver and verifies connectivity
func Open(ctx context.Context, opts Options, logger *logging.Logger) (*Gateway, error) {
	switch opts.Driver {
	case "pgx", "duckdb", "sqlite3":
	default:
		return nil, errors.Newf(errors.ErrTypeDatabase, "unsupported driver %q", opts.Driver)
	}

	if opts.DSN == "" {
		return nil, errors.New(errors.ErrTypeDatabase, "database dsn is not set").
			WithSuggestion("Set SQLASSIST_DATABASE_URL or database.dsn in the config file")
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database")
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	g := New(db, opts, logger)

	if err := g.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return g, nil
}

// New wraps an existing pool. The gateway takes ownership of db.
func New(db *sql.DB, opts Options, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Gateway{
		db:     db,
		opts:   opts,
		logger: logger.WithField("component", "gateway"),
	}
}

// Ping checks that the database is reachable
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to ping database")
	}

	return nil
}

// Close releases the pool
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Execute runs an approved statement read-only under the query timeout and
// returns at most the configured row cap.
func (g *Gateway) Execute(ctx context.Context, approved policy.Approved) (*Result, error) {
	if !approved.Valid() {
		return nil, errors.New(errors.ErrTypePolicyViolation, "statement was not approved")
	}

	if g.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, g.opts.QueryTimeout)
		defer cancel()
	}

	params := approved.Params()
	stmt := approved.SQL()

	if g.opts.Driver == "pgx" {
		stmt = rebindDollar(stmt)
	}

	g.logger.WithFields(map[string]any{
		"sql":    stmt,
		"params": describeParams(params),
	}).Debug("executing statement")

	start := time.Now()

	result, err := g.run(ctx, stmt, params, approved.Limit())
	if err != nil {
		ee := classify(ctx, err)
		g.logger.WithFields(ee.logFields()).Warn("statement failed")

		return nil, wrapExecution(ee)
	}

	result.Duration = time.Since(start)

	g.logger.WithFields(map[string]any{
		"rows":        len(result.Rows),
		"truncated":   result.Truncated,
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("statement executed")

	return result, nil
}

func (g *Gateway) run(ctx context.Context, stmt string, params []any, limit int) (*Result, error) {
	tx, err := g.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: g.opts.ReadOnlyTx})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Nothing is ever written, so the transaction is always rolled back.
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to run statement: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	rowCap := limit
	if g.opts.RowCap > 0 && g.opts.RowCap < rowCap {
		rowCap = g.opts.RowCap
	}

	result := &Result{Columns: columns, Rows: make([]map[string]any, 0)}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) == rowCap {
			result.Truncated = true
			break
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// convertValue normalizes driver values to plain Go types
func convertValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float32:
		return float64(v)
	case duckdb.Decimal:
		return v.Float64()
	default:
		return v
	}
}

// rebindDollar rewrites ? placeholders as $1, $2, ... Approved statements
// contain no quoted text, so every ? is a placeholder.
func rebindDollar(stmt string) string {
	var b strings.Builder

	n := 0

	for _, r := range stmt {
		if r != '?' {
			b.WriteRune(r)
			continue
		}

		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}

	return b.String()
}

// describeParams reports parameters by position and type only
func describeParams(params []any) string {
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = fmt.Sprintf("%T", p)
	}

	return fmt.Sprintf("%d [%s]", len(params), strings.Join(types, ","))
}
