package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/errors"
)

// likeEscape is bound as the ESCAPE parameter of every LIKE predicate
const likeEscape = `\`

// Statement is a compiled, parameterized SELECT. SQL holds only ?
// placeholders; Params are in placeholder order and end with the row limit.
type Statement struct {
	SQL    string
	Params []any
	Table  string
	Limit  int
}

// SQLCache stores compiled SQL text by plan shape
type SQLCache interface {
	Get(shape string) (string, bool)
	Add(shape, sql string)
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithSQLCache serves SQL text for previously seen plan shapes from cache.
// Parameters are always bound from the plan being compiled.
func WithSQLCache(cache SQLCache) CompilerOption {
	return func(c *Compiler) {
		c.cache = cache
	}
}

// Compiler renders plans as SQL for the catalog's table
type Compiler struct {
	catalog *catalog.Catalog
	cache   SQLCache
}

// NewCompiler creates a compiler for c
func NewCompiler(c *catalog.Catalog, opts ...CompilerOption) *Compiler {
	compiler := &Compiler{catalog: c}
	for _, opt := range opts {
		opt(compiler)
	}

	return compiler
}

var comparatorSQL = map[Comparator]string{
	CmpEq:  "=",
	CmpNeq: "<>",
	CmpGt:  ">",
	CmpGte: ">=",
	CmpLt:  "<",
	CmpLte: "<=",
}

// Compile renders plan. Identifiers come only from the catalog and every
// literal is bound as a parameter, so the output for a given plan is always
// the same.
func (c *Compiler) Compile(plan Plan) (Statement, error) {
	if plan.Limit <= 0 {
		return Statement{}, errors.Newf(errors.ErrTypeValidation, "plan limit must be positive, got %d", plan.Limit)
	}

	params, err := c.bind(plan)
	if err != nil {
		return Statement{}, err
	}

	shape := plan.Shape()

	sql, ok := "", false
	if c.cache != nil {
		sql, ok = c.cache.Get(shape)
	}

	if !ok {
		sql, err = c.render(plan)
		if err != nil {
			return Statement{}, err
		}

		if c.cache != nil {
			c.cache.Add(shape, sql)
		}
	}

	return Statement{
		SQL:    sql,
		Params: params,
		Table:  c.catalog.TableName(),
		Limit:  plan.Limit,
	}, nil
}

func (c *Compiler) column(name string) (catalog.Column, error) {
	col, ok := c.catalog.Column(name)
	if !ok || !catalog.ValidIdentifier(col.Name) {
		return catalog.Column{}, errors.Newf(errors.ErrTypeValidation, "unknown column %q", name)
	}

	return col, nil
}

func (c *Compiler) render(plan Plan) (string, error) {
	var b strings.Builder

	b.WriteString("SELECT ")

	selectList := make([]string, 0, len(plan.Columns)+1)

	for _, name := range plan.Columns {
		col, err := c.column(name)
		if err != nil {
			return "", err
		}

		selectList = append(selectList, col.Name)
	}

	if agg := plan.Aggregate; agg != nil {
		expr, err := c.aggregateSQL(*agg)
		if err != nil {
			return "", err
		}

		selectList = append(selectList, expr)
	}

	if len(selectList) == 0 {
		return "", errors.New(errors.ErrTypeValidation, "plan selects no columns")
	}

	b.WriteString(strings.Join(selectList, ", "))
	b.WriteString(" FROM ")
	b.WriteString(c.catalog.TableName())

	for i, pr := range plan.Predicates {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}

		cond, err := c.predicateSQL(pr)
		if err != nil {
			return "", err
		}

		b.WriteString(cond)
	}

	if plan.GroupBy != "" {
		col, err := c.column(plan.GroupBy)
		if err != nil {
			return "", err
		}

		b.WriteString(" GROUP BY " + col.Name)
	}

	if ob := plan.OrderBy; ob != nil {
		col, err := c.column(ob.Column)
		if err != nil {
			return "", err
		}

		dir := "ASC"
		switch ob.Direction {
		case Desc:
			dir = "DESC"
		case Asc, "":
		default:
			return "", errors.Newf(errors.ErrTypeValidation, "invalid sort direction %q", ob.Direction)
		}

		b.WriteString(" ORDER BY " + col.Name + " " + dir)
	}

	b.WriteString(" LIMIT ?")

	return b.String(), nil
}

func (c *Compiler) aggregateSQL(agg Aggregate) (string, error) {
	if !catalog.ValidIdentifier(agg.Alias) {
		return "", errors.Newf(errors.ErrTypeValidation, "invalid aggregate alias %q", agg.Alias)
	}

	if agg.Fn == AggCount && agg.Column == "" {
		return "COUNT(*) AS " + agg.Alias, nil
	}

	col, err := c.column(agg.Column)
	if err != nil {
		return "", err
	}

	switch agg.Fn {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
	default:
		return "", errors.Newf(errors.ErrTypeValidation, "unsupported aggregate %q", agg.Fn)
	}

	return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(string(agg.Fn)), col.Name, agg.Alias), nil
}

func (c *Compiler) predicateSQL(pr Predicate) (string, error) {
	col, err := c.column(pr.Column)
	if err != nil {
		return "", err
	}

	switch pr.Comparator {
	case CmpIn:
		if len(pr.Values) == 0 {
			return "", errors.Newf(errors.ErrTypeValidation, "in on %s has no values", col.Name)
		}

		return col.Name + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(pr.Values)), ", ") + ")", nil
	case CmpLike:
		return col.Name + " LIKE ? ESCAPE ?", nil
	default:
		op, ok := comparatorSQL[pr.Comparator]
		if !ok {
			return "", errors.Newf(errors.ErrTypeValidation, "unsupported comparator %q", pr.Comparator)
		}

		return col.Name + " " + op + " ?", nil
	}
}

// bind collects parameters in placeholder order, checking each value
// against its column's logical type.
func (c *Compiler) bind(plan Plan) ([]any, error) {
	var params []any

	for _, pr := range plan.Predicates {
		col, err := c.column(pr.Column)
		if err != nil {
			return nil, err
		}

		if pr.Comparator != CmpIn && len(pr.Values) != 1 {
			return nil, errors.Newf(errors.ErrTypeValidation,
				"%s on %s takes one value, got %d", pr.Comparator, col.Name, len(pr.Values))
		}

		for _, v := range pr.Values {
			bound, err := bindValue(col, v)
			if err != nil {
				return nil, err
			}

			if pr.Comparator == CmpLike {
				s, ok := bound.(string)
				if !ok {
					return nil, errors.Newf(errors.ErrTypeValidation, "like on %s needs a text value", col.Name)
				}

				params = append(params, "%"+EscapeLike(s)+"%", likeEscape)

				continue
			}

			params = append(params, bound)
		}
	}

	return append(params, int64(plan.Limit)), nil
}

func bindValue(col catalog.Column, v any) (any, error) {
	ok := false

	switch col.Type {
	case catalog.TypeText:
		_, ok = v.(string)
	case catalog.TypeInteger:
		_, ok = v.(int64)
	case catalog.TypeDecimal:
		switch x := v.(type) {
		case float64:
			ok = true
		case int64:
			return float64(x), nil
		}
	case catalog.TypeTimestamp:
		_, ok = v.(time.Time)
	case catalog.TypeBoolean:
		_, ok = v.(bool)
	}

	if !ok {
		return nil, errors.Newf(errors.ErrTypeValidation, "value of type %T does not fit %s column %s", v, col.Type, col.Name)
	}

	return v, nil
}

// EscapeLike escapes the LIKE wildcards in s so it matches literally
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
