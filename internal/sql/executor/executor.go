package executor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/relcore/internal/bufferpool"
	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/record"
	"github.com/tuannm99/relcore/internal/sql/optimizer"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

var (
	ErrNotSupported     = errors.New("executor: not supported")
	ErrTableNotFound    = errors.New("executor: table not found")
	ErrNotNull          = errors.New("executor: NOT NULL constraint failed")
	ErrTypeMismatch     = errors.New("executor: type mismatch")
	ErrUniqueViolation  = errors.New("executor: UNIQUE constraint failed")
	ErrForeignKey       = errors.New("executor: FOREIGN KEY constraint failed")
	ErrDivisionByZero   = errors.New("executor: division by zero")
	ErrInvalidOperation = errors.New("executor: invalid operation")
)

// Store is what the executor needs from the buffer pool.
type Store interface {
	Catalog() *catalog.Catalog
	AddTableToCatalog(t catalog.Table) error
	RemoveTableFromCatalog(name string) (catalog.Table, error)
	UpdateTableInCatalog(name string, t catalog.Table) error
	InsertTuple(table string, data []byte) (bufferpool.TupleID, error)
	GetAllDataForOrigin(origin uint32) ([][]byte, error)
	FreeChain(origin uint32) error
}

var _ Store = (*bufferpool.Pool)(nil)

// Executor runs physical plans against a Store.
type Executor struct {
	store Store
	log   *slog.Logger
}

func New(store Store) *Executor {
	return &Executor{store: store, log: slog.Default()}
}

// Execute runs the plan to completion.
func (e *Executor) Execute(p *optimizer.PhysicalPlan) (*Result, error) {
	if p == nil || p.Node == nil {
		return nil, fmt.Errorf("%w: empty plan", ErrNotSupported)
	}
	switch op := p.Node.(type) {
	case *optimizer.CreateTableOp:
		return e.execCreateTable(op)
	case *optimizer.DropTableOp:
		return e.execDropTable(op)
	case *optimizer.AlterTableOp:
		return e.execAlterTable(op)
	case *optimizer.InsertOp:
		return e.execInsert(op)
	case *optimizer.TableScanOp:
		return e.execScan(op, nil)
	case *optimizer.ProjectionOp:
		if len(p.Children) != 1 {
			return nil, fmt.Errorf("%w: projection needs exactly one input", ErrNotSupported)
		}
		scan, ok := p.Children[0].Node.(*optimizer.TableScanOp)
		if !ok {
			return nil, fmt.Errorf("%w: projection over %s", ErrNotSupported, p.Children[0].Node)
		}
		return e.execScan(scan, op.Columns)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotSupported, p.Node)
	}
}

func (e *Executor) table(name string) (catalog.Table, error) {
	t, ok := e.store.Catalog().GetTable(name)
	if !ok {
		return catalog.Table{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// ---- DDL ----

func (e *Executor) execCreateTable(op *optimizer.CreateTableOp) (*Result, error) {
	t := op.Table.Clone()
	t.OriginPage = 0
	if err := e.store.AddTableToCatalog(t); err != nil {
		return nil, err
	}
	e.log.Info("executor: table created", "table", t.Name, "columns", len(t.Columns))
	return &Result{}, nil
}

func (e *Executor) execDropTable(op *optimizer.DropTableOp) (*Result, error) {
	t, err := e.store.RemoveTableFromCatalog(op.TableName)
	if err != nil {
		return nil, err
	}
	if t.OriginPage != 0 {
		if err := e.store.FreeChain(t.OriginPage); err != nil {
			e.log.Warn("executor: could not release pages of dropped table",
				"table", t.Name, "origin", t.OriginPage, "err", err)
		}
	}
	e.log.Info("executor: table dropped", "table", t.Name)
	return &Result{}, nil
}

// execAlterTable applies the operations to the schema and to every stored
// row. Dropping a column or changing a column's type rewrites the table's
// chain, so a later column with the same name never sees the old values.
func (e *Executor) execAlterTable(op *optimizer.AlterTableOp) (*Result, error) {
	t, err := e.table(op.TableName)
	if err != nil {
		return nil, err
	}
	rows, err := e.scanRows(t)
	if err != nil {
		return nil, err
	}

	rewrite := false
	for _, o := range op.Ops {
		switch a := o.(type) {
		case *plan.AddColumn:
			for _, row := range rows {
				row[a.Column.Name] = defaultOf(a.Column)
			}
			t.AddColumn(a.Column)
		case *plan.DropColumn:
			for _, row := range rows {
				delete(row, a.Name)
			}
			t.RemoveColumn(a.Name)
			rewrite = true
		case *plan.ModifyColumn:
			old, _ := t.GetColumn(a.Column.Name)
			if err := modifyRows(t.Name, old, a.Column, rows); err != nil {
				return nil, err
			}
			if old.Type != a.Column.Type {
				rewrite = true
			}
			t.AddColumn(a.Column)
		default:
			return nil, fmt.Errorf("%w: alter operation %s", ErrNotSupported, o)
		}
	}

	if !rewrite || t.OriginPage == 0 {
		if err := e.store.UpdateTableInCatalog(op.TableName, t); err != nil {
			return nil, err
		}
		e.log.Info("executor: table altered", "table", t.Name, "ops", len(op.Ops))
		return &Result{}, nil
	}

	if err := e.rewriteTable(op.TableName, t, rows); err != nil {
		return nil, err
	}
	e.log.Info("executor: table altered", "table", t.Name, "ops", len(op.Ops), "rewritten_rows", len(rows))
	return &Result{}, nil
}

// modifyRows converts the values of one column to its new definition in
// place. Nothing is written when any row fails.
func modifyRows(table string, old, col catalog.Column, rows []optimizer.Row) error {
	converted := make([]catalog.Value, len(rows))
	for i, row := range rows {
		v := row[col.Name]
		if v.IsNull() {
			if !col.Nullable {
				return fmt.Errorf("%w: %s.%s has NULL rows", ErrNotNull, table, col.Name)
			}
			converted[i] = v
			continue
		}
		cv, err := coerce(col, v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", table, col.Name, err)
		}
		converted[i] = cv
	}
	if col.Unique && !old.Unique {
		for i := range converted {
			for j := i + 1; j < len(converted); j++ {
				if converted[i].IsNull() {
					break
				}
				if eq, _ := equalValues(converted[i], converted[j]); eq {
					return fmt.Errorf("%w: %s.%s = %s", ErrUniqueViolation, table, col.Name, converted[i])
				}
			}
		}
	}
	for i, row := range rows {
		row[col.Name] = converted[i]
	}
	return nil
}

// rewriteTable stores t with an empty chain, releases the old pages and
// inserts rows again under the new schema.
func (e *Executor) rewriteTable(name string, t catalog.Table, rows []optimizer.Row) error {
	payloads := make([][]byte, 0, len(rows))
	for _, row := range rows {
		data, err := record.EncodeRow(record.Row(row))
		if err != nil {
			return err
		}
		payloads = append(payloads, data)
	}

	origin := t.OriginPage
	t.OriginPage = 0
	if err := e.store.UpdateTableInCatalog(name, t); err != nil {
		return err
	}
	if err := e.store.FreeChain(origin); err != nil {
		return fmt.Errorf("executor: rewrite %s: %w", t.Name, err)
	}
	for _, data := range payloads {
		if _, err := e.store.InsertTuple(t.Name, data); err != nil {
			return fmt.Errorf("executor: rewrite %s: %w", t.Name, err)
		}
	}
	return nil
}

// ---- DML ----

func (e *Executor) execInsert(op *optimizer.InsertOp) (*Result, error) {
	t, err := e.table(op.DataSource)
	if err != nil {
		return nil, err
	}

	var affected int64
	for _, in := range op.Rows {
		row, err := completeInsertRow(t, in)
		if err != nil {
			return nil, err
		}
		if err := e.checkUnique(t, row); err != nil {
			return nil, err
		}
		if err := e.checkReferences(t, row); err != nil {
			return nil, err
		}
		data, err := record.EncodeRow(record.Row(row))
		if err != nil {
			return nil, err
		}
		tid, err := e.store.InsertTuple(t.Name, data)
		if err != nil {
			return nil, err
		}
		// later rows of the same statement must see the origin page
		if t.OriginPage == 0 {
			t.OriginPage = tid.PageID
		}
		e.log.Debug("executor: row inserted", "table", t.Name, "page", tid.PageID, "tuple", tid.ID)
		affected++
	}
	return &Result{AffectedRows: affected}, nil
}

// completeInsertRow fills defaults and coerces every value to its column type.
func completeInsertRow(t catalog.Table, in optimizer.Row) (optimizer.Row, error) {
	out := make(optimizer.Row, len(t.Columns))
	for _, name := range t.ColumnNames() {
		col := t.Columns[name]
		v, given := in[name]
		if !given {
			v = defaultOf(col)
		}
		if v.IsNull() {
			if !col.Nullable {
				return nil, fmt.Errorf("%w: %s.%s", ErrNotNull, t.Name, name)
			}
			out[name] = catalog.NullValue()
			continue
		}
		cv, err := coerce(col, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, name, err)
		}
		out[name] = cv
	}
	for name := range in {
		if _, ok := t.Columns[name]; !ok {
			return nil, fmt.Errorf("%w: unknown column %s.%s", ErrInvalidOperation, t.Name, name)
		}
	}
	return out, nil
}

func defaultOf(col catalog.Column) catalog.Value {
	if col.Default != nil {
		return *col.Default
	}
	return catalog.NullValue()
}

func (e *Executor) checkUnique(t catalog.Table, row optimizer.Row) error {
	var unique []string
	for _, name := range t.ColumnNames() {
		if t.Columns[name].Unique && !row[name].IsNull() {
			unique = append(unique, name)
		}
	}
	if len(unique) == 0 || t.OriginPage == 0 {
		return nil
	}
	rows, err := e.scanRows(t)
	if err != nil {
		return err
	}
	for _, existing := range rows {
		for _, name := range unique {
			if eq, _ := equalValues(existing[name], row[name]); eq {
				return fmt.Errorf("%w: %s.%s = %s", ErrUniqueViolation, t.Name, name, row[name])
			}
		}
	}
	return nil
}

func (e *Executor) checkReferences(t catalog.Table, row optimizer.Row) error {
	for _, name := range t.ColumnNames() {
		ref := t.Columns[name].References
		v := row[name]
		if ref == nil || v.IsNull() {
			continue
		}
		parent, err := e.table(ref.Table)
		if err != nil {
			return fmt.Errorf("%w: %s.%s references missing table %s", ErrForeignKey, t.Name, name, ref.Table)
		}
		rows, err := e.scanRows(parent)
		if err != nil {
			return err
		}
		found := false
		for _, r := range rows {
			if eq, _ := equalValues(r[ref.Column], v); eq {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s.%s = %s not in %s.%s",
				ErrForeignKey, t.Name, name, v, ref.Table, ref.Column)
		}
	}
	return nil
}

// ---- scans ----

// scanRows decodes every tuple of t and shapes it to the current schema.
func (e *Executor) scanRows(t catalog.Table) ([]optimizer.Row, error) {
	payloads, err := e.store.GetAllDataForOrigin(t.OriginPage)
	if err != nil {
		return nil, err
	}
	rows := make([]optimizer.Row, 0, len(payloads))
	for _, data := range payloads {
		stored, err := record.DecodeRow(data)
		if err != nil {
			return nil, fmt.Errorf("executor: decode %s: %w", t.Name, err)
		}
		row := make(optimizer.Row, len(t.Columns))
		for name, col := range t.Columns {
			if v, ok := stored[name]; ok {
				row[name] = v
			} else {
				row[name] = defaultOf(col)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *Executor) execScan(op *optimizer.TableScanOp, columns []plan.Expression) (*Result, error) {
	t, err := e.table(op.DataSource)
	if err != nil {
		return nil, err
	}
	rows, err := e.scanRows(t)
	if err != nil {
		return nil, err
	}

	outCols, outExprs := outputColumns(t, columns)
	res := &Result{Columns: outCols, Rows: make([][]any, 0, len(rows))}
	for _, row := range rows {
		if op.Filter != nil {
			ok, err := matches(op.Filter, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out := make([]any, len(outExprs))
		for i, ex := range outExprs {
			v, err := eval(ex, row)
			if err != nil {
				return nil, err
			}
			out[i] = v.Any()
		}
		res.Rows = append(res.Rows, out)
	}
	res.AffectedRows = int64(len(res.Rows))
	return res, nil
}

// outputColumns expands "*" into every column in name order. No projection
// means "*".
func outputColumns(t catalog.Table, columns []plan.Expression) ([]string, []plan.Expression) {
	if len(columns) == 0 {
		columns = []plan.Expression{&plan.Wildcard{}}
	}
	var names []string
	var exprs []plan.Expression
	for _, c := range columns {
		switch x := c.(type) {
		case *plan.Wildcard:
			for _, n := range t.ColumnNames() {
				names = append(names, n)
				exprs = append(exprs, &plan.Identifier{Name: n})
			}
		case *plan.Identifier:
			names = append(names, x.Name)
			exprs = append(exprs, x)
		default:
			names = append(names, c.String())
			exprs = append(exprs, c)
		}
	}
	return names, exprs
}
