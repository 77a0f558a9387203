package optimizer

import "github.com/tuannm99/relcore/internal/sql/plan"

// PredicatePushdown fuses a Filter into the Scan directly beneath it when
// that scan has no filter yet. Pass-through nodes are rebuilt around their
// rewritten child with their own parameters intact; joins are rewritten on
// the left side only.
func PredicatePushdown(n plan.Node) plan.Node {
	switch x := n.(type) {
	case *plan.Filter:
		if scan, ok := x.Source.(*plan.Scan); ok && scan.Filter == nil {
			return &plan.Scan{Table: scan.Table, Alias: scan.Alias, Filter: x.Condition}
		}
		return &plan.Filter{Source: PredicatePushdown(x.Source), Condition: x.Condition}
	case *plan.Limit:
		return &plan.Limit{Source: PredicatePushdown(x.Source), Limit: x.Limit}
	case *plan.Offset:
		return &plan.Offset{Source: PredicatePushdown(x.Source), Offset: x.Offset}
	case *plan.Projection:
		return &plan.Projection{Source: PredicatePushdown(x.Source), Columns: x.Columns}
	case *plan.GroupBy:
		return &plan.GroupBy{Source: PredicatePushdown(x.Source), Values: x.Values}
	case *plan.Having:
		return &plan.Having{Source: PredicatePushdown(x.Source), Condition: x.Condition}
	case *plan.Sort:
		return &plan.Sort{Source: PredicatePushdown(x.Source), Order: x.Order}
	case *plan.NestedLoopJoin:
		return &plan.NestedLoopJoin{Left: PredicatePushdown(x.Left), Right: x.Right, Condition: x.Condition}
	case *plan.HashJoin:
		return &plan.HashJoin{Left: PredicatePushdown(x.Left), Right: x.Right, Condition: x.Condition}
	default:
		return n
	}
}
