package plan

import (
	"fmt"
	"strings"

	"github.com/golang-collections/collections/queue"

	"github.com/tuannm99/relcore/internal/catalog"
)

// Node is a logical plan node. A tree has exactly one root and every
// non-leaf node owns its children outright.
type Node interface {
	planNode()
}

// Plan wraps a logical plan tree.
type Plan struct {
	Root Node
}

func (p *Plan) String() string { return Explain(p.Root) }

// ----- DDL / DML roots -----

type CreateTable struct {
	Schema catalog.Table
}

type DropTable struct {
	Table string
}

// AlterOp is one ALTER TABLE operation.
type AlterOp interface {
	alterOp()
	String() string
}

type AddColumn struct{ Column catalog.Column }
type DropColumn struct{ Name string }
type ModifyColumn struct{ Column catalog.Column }

func (*AddColumn) alterOp()    {}
func (*DropColumn) alterOp()   {}
func (*ModifyColumn) alterOp() {}

func (o *AddColumn) String() string    { return "ADD " + o.Column.Name + " " + o.Column.Type.String() }
func (o *DropColumn) String() string   { return "DROP " + o.Name }
func (o *ModifyColumn) String() string { return "MODIFY " + o.Column.Name + " " + o.Column.Type.String() }

type AlterTable struct {
	Table string
	Ops   []AlterOp
}

type Insert struct {
	Table  string
	Values []Assignment
}

type Update struct {
	Table  string
	Values []Assignment
}

type Delete struct {
	Table string
}

// ----- Query pipeline -----

type Scan struct {
	Table  string
	Alias  string
	Filter Expression
}

type Filter struct {
	Source    Node
	Condition Expression
}

type Limit struct {
	Source Node
	Limit  Expression
}

type Offset struct {
	Source Node
	Offset Expression
}

type Projection struct {
	Source  Node
	Columns []Expression
}

type GroupBy struct {
	Source Node
	Values []Expression
}

type Having struct {
	Source    Node
	Condition Expression
}

type Sort struct {
	Source Node
	Order  []SortKey
}

// IndexLookup is reserved; nothing produces it yet.
type IndexLookup struct {
	Table string
	Alias string
	Index string
}

type NestedLoopJoin struct {
	Left      Node
	Right     Node
	Condition Expression
}

type HashJoin struct {
	Left      Node
	Right     Node
	Condition Expression
}

func (*CreateTable) planNode()    {}
func (*DropTable) planNode()      {}
func (*AlterTable) planNode()     {}
func (*Insert) planNode()         {}
func (*Update) planNode()         {}
func (*Delete) planNode()         {}
func (*Scan) planNode()           {}
func (*Filter) planNode()         {}
func (*Limit) planNode()          {}
func (*Offset) planNode()         {}
func (*Projection) planNode()     {}
func (*GroupBy) planNode()        {}
func (*Having) planNode()         {}
func (*Sort) planNode()           {}
func (*IndexLookup) planNode()    {}
func (*NestedLoopJoin) planNode() {}
func (*HashJoin) planNode()       {}

// Children returns the direct children of n, left before right.
func Children(n Node) []Node {
	switch x := n.(type) {
	case *Filter:
		return []Node{x.Source}
	case *Limit:
		return []Node{x.Source}
	case *Offset:
		return []Node{x.Source}
	case *Projection:
		return []Node{x.Source}
	case *GroupBy:
		return []Node{x.Source}
	case *Having:
		return []Node{x.Source}
	case *Sort:
		return []Node{x.Source}
	case *NestedLoopJoin:
		return []Node{x.Left, x.Right}
	case *HashJoin:
		return []Node{x.Left, x.Right}
	default:
		return nil
	}
}

// Traverse lists every node of the tree breadth-first.
func Traverse(root Node) []Node {
	if root == nil {
		return nil
	}
	var out []Node
	q := queue.New()
	q.Enqueue(root)
	for q.Len() > 0 {
		n := q.Dequeue().(Node)
		out = append(out, n)
		for _, c := range Children(n) {
			if c != nil {
				q.Enqueue(c)
			}
		}
	}
	return out
}

// TableOf returns the table a plan reads or writes. For joins it is the
// left-most table.
func TableOf(n Node) (string, bool) {
	switch x := n.(type) {
	case *CreateTable:
		return x.Schema.Name, true
	case *DropTable:
		return x.Table, true
	case *AlterTable:
		return x.Table, true
	case *Insert:
		return x.Table, true
	case *Update:
		return x.Table, true
	case *Delete:
		return x.Table, true
	case *Scan:
		return x.Table, true
	case *IndexLookup:
		return x.Table, true
	}
	if cs := Children(n); len(cs) > 0 && cs[0] != nil {
		return TableOf(cs[0])
	}
	return "", false
}

// Label is the one-line description of n used by Explain.
func Label(n Node) string {
	switch x := n.(type) {
	case *CreateTable:
		return fmt.Sprintf("CreateTable %s [%s]", x.Schema.Name, strings.Join(x.Schema.ColumnNames(), ", "))
	case *DropTable:
		return "DropTable " + x.Table
	case *AlterTable:
		ops := make([]string, len(x.Ops))
		for i, o := range x.Ops {
			ops[i] = o.String()
		}
		return fmt.Sprintf("AlterTable %s [%s]", x.Table, strings.Join(ops, ", "))
	case *Insert:
		return fmt.Sprintf("Insert %s [%s]", x.Table, assignments(x.Values))
	case *Update:
		return fmt.Sprintf("Update %s [%s]", x.Table, assignments(x.Values))
	case *Delete:
		return "Delete " + x.Table
	case *Scan:
		s := "Scan " + x.Table
		if x.Alias != "" {
			s += " AS " + x.Alias
		}
		if x.Filter != nil {
			s += " filter=" + x.Filter.String()
		}
		return s
	case *Filter:
		return "Filter " + x.Condition.String()
	case *Limit:
		return "Limit " + x.Limit.String()
	case *Offset:
		return "Offset " + x.Offset.String()
	case *Projection:
		return "Projection [" + joinExprs(x.Columns) + "]"
	case *GroupBy:
		return "GroupBy [" + joinExprs(x.Values) + "]"
	case *Having:
		return "Having " + x.Condition.String()
	case *Sort:
		keys := make([]string, len(x.Order))
		for i, k := range x.Order {
			keys[i] = k.First.String()
			if k.Second {
				keys[i] += " DESC"
			}
		}
		return "Sort [" + strings.Join(keys, ", ") + "]"
	case *IndexLookup:
		return "IndexLookup " + x.Table + " using " + x.Index
	case *NestedLoopJoin:
		return "NestedLoopJoin " + condString(x.Condition)
	case *HashJoin:
		return "HashJoin " + condString(x.Condition)
	default:
		return fmt.Sprintf("%T", n)
	}
}

func assignments(as []Assignment) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.First.String() + "=" + a.Second.String()
	}
	return strings.Join(parts, ", ")
}

func condString(e Expression) string {
	if e == nil {
		return "<none>"
	}
	return e.String()
}

// Explain renders the tree, one node per line, children indented.
func Explain(root Node) string {
	var b strings.Builder
	var rec func(n Node, depth int)
	rec = func(n Node, depth int) {
		if n == nil {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(Label(n))
		b.WriteByte('\n')
		for _, c := range Children(n) {
			rec(c, depth+1)
		}
	}
	rec(root, 0)
	return b.String()
}
