// Package policy is the last gate before execution. It re-derives the
// safety properties of a compiled statement from its text alone and issues
// the only token the gateway will execute.
package policy

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/query"
)

// Violation is the reason a statement was refused
type Violation struct {
	Reason string
}

func (v *Violation) Error() string {
	return "policy violation: " + v.Reason
}

func violation(format string, args ...any) error {
	v := &Violation{Reason: fmt.Sprintf(format, args...)}
	return errors.Wrap(v, errors.ErrTypePolicyViolation, "statement rejected")
}

// Approved is a statement that passed validation. The zero value is not
// approved, and the only way to obtain a non-zero value is Validate.
type Approved struct {
	stmt query.Statement
}

// Valid reports whether a was issued by Validate
func (a Approved) Valid() bool {
	return a.stmt.SQL != ""
}

// SQL is the approved statement text
func (a Approved) SQL() string {
	return a.stmt.SQL
}

// Params returns a copy of the bound parameters in placeholder order
func (a Approved) Params() []any {
	return slices.Clone(a.stmt.Params)
}

// Table is the single table the statement reads
func (a Approved) Table() string {
	return a.stmt.Table
}

// Limit is the approved row limit
func (a Approved) Limit() int {
	return a.stmt.Limit
}

var allowedFunctions = map[string]bool{"count": true, "sum": true, "avg": true, "min": true, "max": true}

// forbiddenText never appears in compiled SQL. Quotes rule out string,
// hex-string and bit literals; the rest are comment and statement
// separators.
var forbiddenText = []string{"'", `"`, "`", "--", "/*", "*/", "#", ";", "\\"}

// Validator checks statements against a fixed table and row cap. It holds
// no mutable state and is safe for concurrent use.
type Validator struct {
	table   string
	maxRows int
}

// NewValidator creates a validator that only approves single-table reads of
// table returning at most maxRows rows.
func NewValidator(table string, maxRows int) *Validator {
	return &Validator{table: table, maxRows: maxRows}
}

// Validate approves stmt or explains why not. It fails closed: anything it
// cannot positively establish as a bounded read of the allowed table is
// rejected.
func (v *Validator) Validate(stmt query.Statement) (Approved, error) {
	if v.table == "" || v.maxRows <= 0 {
		return Approved{}, violation("validator is not configured")
	}

	if !strings.EqualFold(stmt.Table, v.table) {
		return Approved{}, violation("statement targets table %q, only %q is allowed", stmt.Table, v.table)
	}

	if strings.TrimSpace(stmt.SQL) == "" {
		return Approved{}, violation("empty statement")
	}

	for _, s := range forbiddenText {
		if strings.Contains(stmt.SQL, s) {
			return Approved{}, violation("statement contains %q", s)
		}
	}

	if err := checkParams(stmt.Params); err != nil {
		return Approved{}, err
	}

	if err := v.checkTokens(stmt); err != nil {
		return Approved{}, err
	}

	if err := v.checkTree(stmt); err != nil {
		return Approved{}, err
	}

	approved := stmt
	approved.Params = slices.Clone(stmt.Params)

	return Approved{stmt: approved}, nil
}

func checkParams(params []any) error {
	for i, p := range params {
		switch p.(type) {
		case string, int64, float64, bool, time.Time:
		default:
			return violation("parameter %d has unsupported type %T", i+1, p)
		}
	}

	return nil
}

// checkTokens scans the raw text: one SELECT, no literals, no comments and
// one placeholder per parameter.
func (v *Validator) checkTokens(stmt query.Statement) error {
	tokenizer := sqlparser.NewStringTokenizer(stmt.SQL)

	placeholders := 0

	for i := 0; ; i++ {
		typ, val := tokenizer.Scan()

		switch typ {
		case 0:
			if placeholders != len(stmt.Params) {
				return violation("%d placeholders but %d parameters", placeholders, len(stmt.Params))
			}

			return nil
		case sqlparser.LEX_ERROR:
			return violation("unreadable token %q", val)
		case sqlparser.COMMENT:
			return violation("comments are not allowed")
		case sqlparser.STRING, sqlparser.INTEGRAL, sqlparser.FLOAT, sqlparser.HEXNUM, sqlparser.HEX:
			return violation("literal %q must be a parameter", val)
		case sqlparser.VALUE_ARG:
			placeholders++
		case sqlparser.LIST_ARG:
			return violation("list arguments are not allowed")
		case ';':
			return violation("multiple statements are not allowed")
		}

		if i == 0 && typ != sqlparser.SELECT {
			return violation("only SELECT statements are allowed")
		}
	}
}

// checkTree parses the statement and walks every node
func (v *Validator) checkTree(stmt query.Statement) error {
	parsed, err := sqlparser.Parse(stmt.SQL)
	if err != nil {
		return violation("statement does not parse")
	}

	sel, ok := parsed.(*sqlparser.Select)
	if !ok {
		return violation("statement is not a simple SELECT")
	}

	if sel.Lock != "" {
		return violation("locking reads are not allowed")
	}

	if len(sel.From) != 1 {
		return violation("exactly one table must be read")
	}

	aliased, ok := sel.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return violation("joins are not allowed")
	}

	name, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return violation("subqueries are not allowed")
	}

	if !name.Qualifier.IsEmpty() || !strings.EqualFold(name.Name.String(), v.table) {
		return violation("statement reads %q, only %q is allowed", sqlparser.String(name), v.table)
	}

	if err := v.checkLimit(sel.Limit, stmt); err != nil {
		return err
	}

	var walkErr error

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.Subquery:
			walkErr = violation("subqueries are not allowed")
		case *sqlparser.Union:
			walkErr = violation("unions are not allowed")
		case *sqlparser.JoinTableExpr, *sqlparser.ParenTableExpr:
			walkErr = violation("joins are not allowed")
		case *sqlparser.FuncExpr:
			if !allowedFunctions[n.Name.Lowered()] || !n.Qualifier.IsEmpty() {
				walkErr = violation("function %s is not allowed", n.Name.String())
			}
		case *sqlparser.ColName:
			if !n.Qualifier.IsEmpty() && !strings.EqualFold(n.Qualifier.Name.String(), v.table) {
				walkErr = violation("column %s refers to another table", sqlparser.String(n))
			}
		}

		if walkErr != nil {
			return false, walkErr
		}

		return true, nil
	}, sel)

	return walkErr
}

// checkLimit requires LIMIT ? bound to an integer within the row cap that
// matches the statement's declared limit.
func (v *Validator) checkLimit(limit *sqlparser.Limit, stmt query.Statement) error {
	if limit == nil || limit.Rowcount == nil {
		return violation("a row limit is required")
	}

	if limit.Offset != nil {
		return violation("offsets are not allowed")
	}

	arg, ok := limit.Rowcount.(*sqlparser.SQLVal)
	if !ok || arg.Type != sqlparser.ValArg {
		return violation("row limit must be a parameter")
	}

	idx, err := strconv.Atoi(strings.TrimPrefix(string(arg.Val), ":v"))
	if err != nil || idx < 1 || idx > len(stmt.Params) {
		return violation("row limit parameter %s is not bound", arg.Val)
	}

	n, ok := stmt.Params[idx-1].(int64)
	if !ok {
		return violation("row limit must be an integer")
	}

	if n < 1 || n > int64(v.maxRows) {
		return violation("row limit %d is outside 1..%d", n, v.maxRows)
	}

	if n != int64(stmt.Limit) {
		return violation("row limit %d does not match declared limit %d", n, stmt.Limit)
	}

	return nil
}
