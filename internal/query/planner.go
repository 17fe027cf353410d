package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kyleking/sqlassist/internal/catalog"
)

// Limits bounds the row count of every plan
type Limits struct {
	DefaultRows int
	MaxRows     int
}

// DefaultLimits are used when configuration leaves a limit unset
var DefaultLimits = Limits{DefaultRows: 100, MaxRows: 1000}

// Aggregate is the single aggregate expression of a plan
type Aggregate struct {
	Fn     AggregateFn `json:"fn"`
	Column string      `json:"column,omitempty"` // empty for count(*)
	Alias  string      `json:"alias"`
}

// Plan is a fully resolved query against the catalog table. Predicates are
// combined with AND.
type Plan struct {
	Columns    []string    `json:"columns,omitempty"`
	Predicates []Predicate `json:"predicates,omitempty"`
	Aggregate  *Aggregate  `json:"aggregate,omitempty"`
	GroupBy    string      `json:"group_by,omitempty"`
	OrderBy    *OrderBy    `json:"order_by,omitempty"`
	Limit      int         `json:"limit"`
}

// Shape identifies the plan's SQL text without its parameter values. Two
// plans with the same shape compile to the same SQL.
func (p Plan) Shape() string {
	var b strings.Builder

	b.WriteString("cols=")
	b.WriteString(strings.Join(p.Columns, ","))

	b.WriteString("|where=")

	for i, pr := range p.Predicates {
		if i > 0 {
			b.WriteByte(',')
		}

		fmt.Fprintf(&b, "%s:%s:%d", pr.Column, pr.Comparator, len(pr.Values))
	}

	if p.Aggregate != nil {
		fmt.Fprintf(&b, "|agg=%s(%s)", p.Aggregate.Fn, p.Aggregate.Column)
	}

	if p.GroupBy != "" {
		b.WriteString("|group=" + p.GroupBy)
	}

	if p.OrderBy != nil {
		fmt.Fprintf(&b, "|order=%s:%s", p.OrderBy.Column, p.OrderBy.Direction)
	}

	return b.String()
}

// Planner resolves intents into plans. It is pure and safe for concurrent
// use.
type Planner struct {
	catalog *catalog.Catalog
	limits  Limits
}

// NewPlanner creates a planner. Non-positive limits fall back to
// DefaultLimits and the default never exceeds the maximum.
func NewPlanner(c *catalog.Catalog, limits Limits) *Planner {
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultLimits.MaxRows
	}

	if limits.DefaultRows <= 0 {
		limits.DefaultRows = DefaultLimits.DefaultRows
	}

	limits.DefaultRows = min(limits.DefaultRows, limits.MaxRows)

	return &Planner{catalog: c, limits: limits}
}

// Limits returns the effective row limits
func (p *Planner) Limits() Limits {
	return p.limits
}

// Plan resolves in against the catalog. It never fails; anything the
// compiler cannot express is rejected there.
func (p *Planner) Plan(in Intent) Plan {
	plan := Plan{Limit: p.limit(in.Limit)}

	for _, f := range in.Filters {
		plan.Predicates = append(plan.Predicates, f.Clone())
	}

	switch in.Operation {
	case OpCount, OpAggregate:
		plan.Aggregate = p.aggregate(in)
		plan.GroupBy = in.GroupBy

		if in.GroupBy != "" {
			plan.Columns = []string{in.GroupBy}

			if in.OrderBy != nil && in.OrderBy.Column == in.GroupBy {
				ob := *in.OrderBy
				plan.OrderBy = &ob
			}
		}
	default:
		plan.Columns = slices.Clone(in.TargetColumns)
		if len(plan.Columns) == 0 {
			plan.Columns = p.catalog.DefaultColumns()
		}

		if in.OrderBy != nil {
			ob := *in.OrderBy
			plan.OrderBy = &ob
		} else if po, ok := p.catalog.PrimaryOrder(); ok {
			plan.OrderBy = &OrderBy{Column: po.Column, Direction: Direction(po.Direction)}
		}
	}

	return plan
}

func (p *Planner) limit(requested int) int {
	switch {
	case requested <= 0:
		return p.limits.DefaultRows
	case requested > p.limits.MaxRows:
		return p.limits.MaxRows
	default:
		return requested
	}
}

func (p *Planner) aggregate(in Intent) *Aggregate {
	if in.Operation == OpCount || in.AggregateFn == AggCount || in.AggregateFn == "" {
		return &Aggregate{Fn: AggCount, Alias: "row_count"}
	}

	return &Aggregate{
		Fn:     in.AggregateFn,
		Column: in.AggregateColumn,
		Alias:  string(in.AggregateFn) + "_" + in.AggregateColumn,
	}
}
