package optimizer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

var (
	ErrNotSupported   = errors.New("optimizer: not supported")
	ErrTableNotFound  = errors.New("optimizer: table not found")
	ErrTableExists    = errors.New("optimizer: table already exists")
	ErrColumnNotFound = errors.New("optimizer: column not found")
	ErrColumnExists   = errors.New("optimizer: column already exists")
	ErrInvalidInsert  = errors.New("optimizer: invalid insert")
	ErrInvalidAlter   = errors.New("optimizer: invalid alter table")
)

// Optimizer rewrites and lowers one plan against a borrowed catalog. It
// must not outlive the call that created it.
type Optimizer struct {
	cat *catalog.Catalog
	log *slog.Logger
}

func New(cat *catalog.Catalog) *Optimizer {
	if cat == nil {
		cat = catalog.Empty()
	}
	return &Optimizer{cat: cat, log: slog.Default()}
}

// Optimize runs predicate pushdown and then lowers the result.
func (o *Optimizer) Optimize(p *plan.Plan) (*PhysicalPlan, error) {
	if p == nil || p.Root == nil {
		return nil, fmt.Errorf("%w: empty plan", ErrNotSupported)
	}
	root := PredicatePushdown(p.Root)
	o.log.Debug("optimizer: pushdown done", "plan", plan.Explain(root))
	return o.Lower(root)
}

// Lower turns a logical tree into a physical one.
func (o *Optimizer) Lower(n plan.Node) (*PhysicalPlan, error) {
	switch x := n.(type) {
	case *plan.CreateTable:
		return o.lowerCreateTable(x)
	case *plan.DropTable:
		if !o.cat.HasTable(x.Table) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, x.Table)
		}
		return &PhysicalPlan{Node: &DropTableOp{TableName: x.Table}}, nil
	case *plan.AlterTable:
		return o.lowerAlterTable(x)
	case *plan.Insert:
		return o.lowerInsert(x)
	case *plan.Projection:
		return o.lowerProjection(x)
	case *plan.Scan:
		return o.lowerScan(x)
	default:
		return nil, notSupported(n)
	}
}

func notSupported(n plan.Node) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, plan.Label(n))
}

func (o *Optimizer) lowerCreateTable(x *plan.CreateTable) (*PhysicalPlan, error) {
	if o.cat.HasTable(x.Schema.Name) {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, x.Schema.Name)
	}
	for _, col := range x.Schema.Columns {
		if col.References == nil {
			continue
		}
		if _, ok := o.cat.GetColumn(col.References.Table, col.References.Column); !ok {
			return nil, fmt.Errorf("%w: %s.%s referenced by %s", ErrColumnNotFound,
				col.References.Table, col.References.Column, col.Name)
		}
	}
	return &PhysicalPlan{Node: &CreateTableOp{Table: x.Schema.Clone()}}, nil
}

// lowerAlterTable replays the operations on a copy of the table so that a
// later operation sees the effect of an earlier one.
func (o *Optimizer) lowerAlterTable(x *plan.AlterTable) (*PhysicalPlan, error) {
	table, ok := o.cat.GetTable(x.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, x.Table)
	}
	if len(x.Ops) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidAlter)
	}
	work := table.Clone()
	for _, op := range x.Ops {
		switch a := op.(type) {
		case *plan.AddColumn:
			if _, exists := work.GetColumn(a.Column.Name); exists {
				return nil, fmt.Errorf("%w: %s.%s", ErrColumnExists, x.Table, a.Column.Name)
			}
			if !a.Column.Nullable && a.Column.Default == nil && table.OriginPage != 0 {
				return nil, fmt.Errorf("%w: NOT NULL column %s needs a default on a non-empty table",
					ErrInvalidAlter, a.Column.Name)
			}
			work.AddColumn(a.Column)
		case *plan.DropColumn:
			if _, ok := work.RemoveColumn(a.Name); !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, x.Table, a.Name)
			}
		case *plan.ModifyColumn:
			if _, ok := work.GetColumn(a.Column.Name); !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, x.Table, a.Column.Name)
			}
			work.AddColumn(a.Column)
		default:
			return nil, fmt.Errorf("%w: alter operation %T", ErrNotSupported, op)
		}
	}
	if len(work.Columns) == 0 {
		return nil, fmt.Errorf("%w: cannot drop every column of %s", ErrInvalidAlter, x.Table)
	}
	return &PhysicalPlan{Node: &AlterTableOp{TableName: x.Table, Ops: x.Ops}}, nil
}

// lowerInsert merges every (column, constant) pair of the statement into a
// single row.
func (o *Optimizer) lowerInsert(x *plan.Insert) (*PhysicalPlan, error) {
	table, ok := o.cat.GetTable(x.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, x.Table)
	}
	if len(x.Values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrInvalidInsert)
	}

	row := make(Row, len(x.Values))
	for _, a := range x.Values {
		id, ok := a.First.(*plan.Identifier)
		if !ok {
			return nil, fmt.Errorf("%w: target %s is not a column", ErrInvalidInsert, a.First)
		}
		if _, ok := table.GetColumn(id.Name); !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, x.Table, id.Name)
		}
		c, ok := a.Second.(*plan.Constant)
		if !ok {
			return nil, fmt.Errorf("%w: value for %s must be a constant, got %s", ErrInvalidInsert, id.Name, a.Second)
		}
		if _, dup := row[id.Name]; dup {
			return nil, fmt.Errorf("%w: column %s assigned twice", ErrInvalidInsert, id.Name)
		}
		row[id.Name] = c.Value
	}

	return &PhysicalPlan{Node: &InsertOp{DataSource: x.Table, Rows: []Row{row}}}, nil
}

func (o *Optimizer) lowerScan(x *plan.Scan) (*PhysicalPlan, error) {
	table, ok := o.cat.GetTable(x.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, x.Table)
	}
	if err := checkColumns(table, x.Filter); err != nil {
		return nil, err
	}
	return &PhysicalPlan{Node: &TableScanOp{DataSource: x.Table, Alias: x.Alias, Filter: x.Filter}}, nil
}

func (o *Optimizer) lowerProjection(x *plan.Projection) (*PhysicalPlan, error) {
	scan, ok := x.Source.(*plan.Scan)
	if !ok {
		return nil, notSupported(x.Source)
	}
	child, err := o.lowerScan(scan)
	if err != nil {
		return nil, err
	}
	table, _ := o.cat.GetTable(scan.Table)
	for _, c := range x.Columns {
		if err := checkColumns(table, c); err != nil {
			return nil, err
		}
	}
	return &PhysicalPlan{
		Node:     &ProjectionOp{Columns: x.Columns},
		Children: []*PhysicalPlan{child},
	}, nil
}

func checkColumns(table catalog.Table, e plan.Expression) error {
	for _, name := range plan.Identifiers(e) {
		if _, ok := table.GetColumn(name); !ok {
			return fmt.Errorf("%w: %s.%s", ErrColumnNotFound, table.Name, name)
		}
	}
	return nil
}
