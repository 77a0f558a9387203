package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

// Row maps column names to values for one tuple.
type Row map[string]catalog.Value

// Op is a physical operator.
type Op interface {
	opNode()
	String() string
}

type TableScanOp struct {
	DataSource string
	Alias      string
	Filter     plan.Expression
}

// IndexScanOp is reserved; the optimizer never emits it.
type IndexScanOp struct {
	DataSource string
	Alias      string
	Index      string
}

type ProjectionOp struct {
	Columns []plan.Expression
}

type CreateTableOp struct {
	Table catalog.Table
}

type DropTableOp struct {
	TableName string
}

type AlterTableOp struct {
	TableName string
	Ops       []plan.AlterOp
}

type InsertOp struct {
	DataSource string
	Rows       []Row
}

func (*TableScanOp) opNode()   {}
func (*IndexScanOp) opNode()   {}
func (*ProjectionOp) opNode()  {}
func (*CreateTableOp) opNode() {}
func (*DropTableOp) opNode()   {}
func (*AlterTableOp) opNode()  {}
func (*InsertOp) opNode()      {}

func (o *TableScanOp) String() string {
	s := "TableScan " + o.DataSource
	if o.Alias != "" {
		s += " AS " + o.Alias
	}
	if o.Filter != nil {
		s += " filter=" + o.Filter.String()
	}
	return s
}

func (o *IndexScanOp) String() string { return "IndexScan " + o.DataSource + " using " + o.Index }

func (o *ProjectionOp) String() string {
	cols := make([]string, len(o.Columns))
	for i, c := range o.Columns {
		cols[i] = c.String()
	}
	return "Projection [" + strings.Join(cols, ", ") + "]"
}

func (o *CreateTableOp) String() string {
	return fmt.Sprintf("CreateTable %s [%s]", o.Table.Name, strings.Join(o.Table.ColumnNames(), ", "))
}

func (o *DropTableOp) String() string { return "DropTable " + o.TableName }

func (o *AlterTableOp) String() string {
	ops := make([]string, len(o.Ops))
	for i, op := range o.Ops {
		ops[i] = op.String()
	}
	return fmt.Sprintf("AlterTable %s [%s]", o.TableName, strings.Join(ops, ", "))
}

func (o *InsertOp) String() string {
	rows := make([]string, len(o.Rows))
	for i, r := range o.Rows {
		rows[i] = r.String()
	}
	return fmt.Sprintf("Insert %s %s", o.DataSource, strings.Join(rows, " "))
}

func (r Row) String() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + r[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PhysicalPlan is a node of the lowered tree. Cost is unset until a
// cost model exists.
type PhysicalPlan struct {
	Node     Op
	Cost     *float64
	Children []*PhysicalPlan
}

func (p *PhysicalPlan) String() string {
	var b strings.Builder
	var rec func(n *PhysicalPlan, depth int)
	rec = func(n *PhysicalPlan, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Node.String())
		if n.Cost != nil {
			fmt.Fprintf(&b, " (cost=%.2f)", *n.Cost)
		}
		b.WriteByte('\n')
		for _, c := range n.Children {
			rec(c, depth+1)
		}
	}
	rec(p, 0)
	return b.String()
}
