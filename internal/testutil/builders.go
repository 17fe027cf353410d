package testutil

import (
	"github.com/kyleking/sqlassist/internal/query"
)

// IntentOption is a functional option for configuring test intents
type IntentOption func(*query.Intent)

// WithTargets sets the requested columns
func WithTargets(columns ...string) IntentOption {
	return func(in *query.Intent) {
		in.TargetColumns = columns
	}
}

// WithFilter appends a predicate
func WithFilter(column string, cmp query.Comparator, values ...any) IntentOption {
	return func(in *query.Intent) {
		in.Filters = append(in.Filters, query.Predicate{Column: column, Comparator: cmp, Values: values})
	}
}

// WithOrder sets an explicit ordering
func WithOrder(column string, dir query.Direction) IntentOption {
	return func(in *query.Intent) {
		in.OrderBy = &query.OrderBy{Column: column, Direction: dir}
	}
}

// WithLimit sets the requested row limit
func WithLimit(n int) IntentOption {
	return func(in *query.Intent) {
		in.Limit = n
	}
}

// WithCount turns the intent into a row count
func WithCount() IntentOption {
	return func(in *query.Intent) {
		in.Operation = query.OpCount
		in.AggregateFn = query.AggCount
	}
}

// WithAggregate turns the intent into an aggregate over column
func WithAggregate(fn query.AggregateFn, column string) IntentOption {
	return func(in *query.Intent) {
		in.Operation = query.OpAggregate
		in.AggregateFn = fn
		in.AggregateColumn = column
	}
}

// WithGroupBy groups a count or aggregate
func WithGroupBy(column string) IntentOption {
	return func(in *query.Intent) {
		in.GroupBy = column
	}
}

// NewIntent creates a select intent and applies any provided options
func NewIntent(opts ...IntentOption) query.Intent {
	in := query.Intent{Operation: query.OpSelect}

	for _, opt := range opts {
		opt(&in)
	}

	return in
}
