package query

import "slices"

// followUpHints carries what the parser saw beyond the intent itself
type followUpHints struct {
	opExplicit bool
	groupBy    string
}

// mergeFollowUp applies a follow-up on top of the prior intent. Fields the
// follow-up does not mention are inherited; filters are replaced per column.
func mergeFollowUp(prior, current Intent, hints followUpHints) Intent {
	out := prior.Clone()
	out.UnresolvedReference = ""

	switch {
	case hints.opExplicit:
		out.Operation = current.Operation
		out.AggregateFn = current.AggregateFn
		out.AggregateColumn = current.AggregateColumn
		out.GroupBy = current.GroupBy
	case len(current.TargetColumns) > 0:
		out.Operation = OpSelect
		out.AggregateFn = ""
		out.AggregateColumn = ""
		out.GroupBy = ""
	case hints.groupBy != "" && prior.Operation != OpSelect:
		out.GroupBy = hints.groupBy
	}

	if len(current.TargetColumns) > 0 {
		out.TargetColumns = slices.Clone(current.TargetColumns)
	}

	if len(current.Filters) > 0 {
		replaced := make(map[string]bool, len(current.Filters))
		for _, f := range current.Filters {
			replaced[f.Column] = true
		}

		kept := make([]Predicate, 0, len(out.Filters)+len(current.Filters))
		for _, f := range out.Filters {
			if !replaced[f.Column] {
				kept = append(kept, f)
			}
		}

		for _, f := range current.Filters {
			kept = append(kept, f.Clone())
		}

		out.Filters = kept
	}

	if current.OrderBy != nil {
		ob := *current.OrderBy
		out.OrderBy = &ob
	}

	if current.Limit > 0 {
		out.Limit = current.Limit
	}

	return out
}
