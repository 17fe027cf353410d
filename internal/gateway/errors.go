package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marcboeker/go-duckdb"
	"github.com/mattn/go-sqlite3"

	"github.com/kyleking/sqlassist/internal/errors"
)

// ErrorKind classifies a failed execution
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindConstraint ErrorKind = "constraint"
	KindCanceled   ErrorKind = "canceled"
	KindUnknown    ErrorKind = "unknown"
)

var kindMessages = map[ErrorKind]string{
	KindTimeout:    "the query took too long and was stopped",
	KindConnection: "the database is not reachable right now",
	KindConstraint: "the database refused the query",
	KindCanceled:   "the request was canceled",
	KindUnknown:    "the database could not run the query",
}

// ExecutionError is a sanitized execution failure. Message never contains
// driver output or parameter values; the cause is kept for logging only.
type ExecutionError struct {
	Kind    ErrorKind
	Message string

	cause error
}

func (e *ExecutionError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.cause
}

// Retryable reports whether running the same statement again may succeed
func (e *ExecutionError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnection
}

func newExecutionError(kind ErrorKind, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: kindMessages[kind], cause: cause}
}

// logFields describes the failure by kind and driver code. Driver messages
// can quote bound values and are never logged.
func (e *ExecutionError) logFields() map[string]any {
	fields := map[string]any{"kind": string(e.Kind)}

	var (
		pgErr     *pgconn.PgError
		sqliteErr sqlite3.Error
		duckErr   *duckdb.Error
	)

	switch {
	case errors.As(e.cause, &pgErr):
		fields["sqlstate"] = pgErr.Code
	case errors.As(e.cause, &sqliteErr):
		fields["sqlite_code"] = int(sqliteErr.Code)
	case errors.As(e.cause, &duckErr):
		fields["duckdb_error_type"] = int(duckErr.Type)
	}

	return fields
}

// wrapExecution returns the structured error handed to callers
func wrapExecution(ee *ExecutionError) error {
	return errors.Wrap(ee, errors.ErrTypeExecution, "query execution failed")
}

// classify maps a driver or context error to a kind. The context is checked
// first since drivers report interrupted statements in their own words.
func classify(ctx context.Context, err error) *ExecutionError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return newExecutionError(KindTimeout, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return newExecutionError(KindCanceled, err)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return newExecutionError(KindConnection, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return newExecutionError(classifySQLState(pgErr.Code), err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return newExecutionError(KindConnection, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrReadonly, sqlite3.ErrPerm, sqlite3.ErrAuth:
			return newExecutionError(KindConstraint, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return newExecutionError(KindTimeout, err)
		case sqlite3.ErrInterrupt:
			return newExecutionError(KindCanceled, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return newExecutionError(KindConnection, err)
		}

		return newExecutionError(KindUnknown, err)
	}

	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		switch duckErr.Type {
		case duckdb.ErrorTypeConstraint, duckdb.ErrorTypePermission:
			return newExecutionError(KindConstraint, err)
		case duckdb.ErrorTypeInterrupt:
			return newExecutionError(KindCanceled, err)
		case duckdb.ErrorTypeConnection, duckdb.ErrorTypeIO:
			return newExecutionError(KindConnection, err)
		}

		return newExecutionError(KindUnknown, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newExecutionError(KindTimeout, err)
		}

		return newExecutionError(KindConnection, err)
	}

	return newExecutionError(KindUnknown, err)
}

// classifySQLState maps PostgreSQL error codes
func classifySQLState(code string) ErrorKind {
	switch {
	case code == "57014": // query_canceled, raised by statement_timeout
		return KindTimeout
	case code == "25006" || code == "42501": // read_only_sql_transaction, insufficient_privilege
		return KindConstraint
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"):
		return KindConnection
	case strings.HasPrefix(code, "23"):
		return KindConstraint
	default:
		return KindUnknown
	}
}
