// Package query turns an utterance into a parameterized SELECT: extraction
// of a structured intent, planning against the catalog, and compilation.
package query

import (
	"slices"
	"time"
)

// Operation is what the user wants done with the matching rows
type Operation string

const (
	OpSelect    Operation = "select"
	OpCount     Operation = "count"
	OpAggregate Operation = "aggregate"
)

// Comparator relates a column to one or more literal values
type Comparator string

const (
	CmpEq   Comparator = "eq"
	CmpNeq  Comparator = "neq"
	CmpGt   Comparator = "gt"
	CmpGte  Comparator = "gte"
	CmpLt   Comparator = "lt"
	CmpLte  Comparator = "lte"
	CmpLike Comparator = "like"
	CmpIn   Comparator = "in"
)

// AggregateFn is a supported aggregate function
type AggregateFn string

const (
	AggSum   AggregateFn = "sum"
	AggAvg   AggregateFn = "avg"
	AggMin   AggregateFn = "min"
	AggMax   AggregateFn = "max"
	AggCount AggregateFn = "count"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Predicate is one filter condition. Values hold string, int64, float64,
// bool or time.Time according to the column's logical type; every
// comparator except in carries exactly one value.
type Predicate struct {
	Column     string     `json:"column"`
	Comparator Comparator `json:"comparator"`
	Values     []any      `json:"values"`
}

// OrderBy is an explicit ordering request
type OrderBy struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// Intent is the structured reading of one utterance. It is built fresh for
// every turn; follow-ups produce a merged copy and never mutate the prior
// intent.
type Intent struct {
	Operation           Operation   `json:"operation"`
	TargetColumns       []string    `json:"target_columns,omitempty"`
	Filters             []Predicate `json:"filters,omitempty"`
	AggregateFn         AggregateFn `json:"aggregate_fn,omitempty"`
	AggregateColumn     string      `json:"aggregate_column,omitempty"`
	GroupBy             string      `json:"group_by,omitempty"`
	OrderBy             *OrderBy    `json:"order_by,omitempty"`
	Limit               int         `json:"limit,omitempty"`
	UnresolvedReference string      `json:"unresolved_reference,omitempty"`
}

// Clone returns a deep copy of the intent
func (in Intent) Clone() Intent {
	out := in
	out.TargetColumns = slices.Clone(in.TargetColumns)

	if in.Filters != nil {
		out.Filters = make([]Predicate, len(in.Filters))
		for i, p := range in.Filters {
			out.Filters[i] = p.Clone()
		}
	}

	if in.OrderBy != nil {
		ob := *in.OrderBy
		out.OrderBy = &ob
	}

	return out
}

// Clone returns a copy of the predicate with its own value slice
func (p Predicate) Clone() Predicate {
	p.Values = slices.Clone(p.Values)
	return p
}

// Turn is one completed exchange in a conversation
type Turn struct {
	Intent    Intent    `json:"intent"`
	Timestamp time.Time `json:"timestamp"`
}
