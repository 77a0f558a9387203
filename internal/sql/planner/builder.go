package planner

import (
	"fmt"
	"math"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/parser"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

// BuildPlan builds the logical plan tree for one statement.
func BuildPlan(stmt parser.Statement) (plan.Node, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return buildCreateTable(s)
	case *parser.DropTableStmt:
		return &plan.DropTable{Table: s.TableName}, nil
	case *parser.AlterTableStmt:
		return buildAlterTable(s)
	case *parser.InsertStmt:
		return buildInsert(s)
	case *parser.UpdateStmt:
		return buildUpdate(s)
	case *parser.DeleteStmt:
		return buildDelete(s)
	case *parser.SelectStmt:
		return buildSelect(s)
	case *parser.BeginStmt, *parser.CommitStmt, *parser.RollbackStmt:
		return nil, ErrTransactionNotSupported
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStatement, stmt)
	}
}

func buildCreateTable(s *parser.CreateTableStmt) (plan.Node, error) {
	table := catalog.NewTable(s.TableName, nil)
	for _, def := range s.Columns {
		if _, dup := table.Columns[def.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, s.TableName, def.Name)
		}
		col, err := buildColumn(def)
		if err != nil {
			return nil, err
		}
		table.AddColumn(col)
	}
	return &plan.CreateTable{Schema: table}, nil
}

// buildColumn projects column constraints into catalog flags. Columns are
// nullable unless NOT NULL or PRIMARY KEY says otherwise; CHECK is carried
// by the grammar but not enforced.
func buildColumn(def parser.ColumnDef) (catalog.Column, error) {
	dt, err := mapDataType(def.Type)
	if err != nil {
		return catalog.Column{}, err
	}
	col := catalog.Column{Name: def.Name, Type: dt, Nullable: true}

	for _, c := range def.Constraints {
		switch cc := c.(type) {
		case *parser.PrimaryKeyConstraint:
			col.Nullable = false
			col.Unique = true
		case *parser.NotNullConstraint:
			col.Nullable = false
		case *parser.UniqueConstraint:
			col.Unique = true
		case *parser.DefaultConstraint:
			lit, ok := cc.Value.(*parser.LiteralExpr)
			if !ok {
				return catalog.Column{}, fmt.Errorf("%w: default for %s must be a literal", ErrUnsupportedExpression, def.Name)
			}
			v := literalValue(lit)
			col.Default = &v
		case *parser.ForeignKeyConstraint:
			col.References = &catalog.Reference{Table: cc.Table, Column: cc.Column}
		case *parser.CheckConstraint:
		default:
			return catalog.Column{}, fmt.Errorf("%w: constraint %T", ErrUnsupportedStatement, c)
		}
	}
	return col, nil
}

func buildAlterTable(s *parser.AlterTableStmt) (plan.Node, error) {
	node := &plan.AlterTable{Table: s.TableName}
	for _, op := range s.Operations {
		switch o := op.(type) {
		case *parser.AddColumnOp:
			col, err := buildColumn(o.Column)
			if err != nil {
				return nil, err
			}
			node.Ops = append(node.Ops, &plan.AddColumn{Column: col})
		case *parser.DropColumnOp:
			node.Ops = append(node.Ops, &plan.DropColumn{Name: o.Name})
		case *parser.ModifyColumnOp:
			col, err := buildColumn(o.Column)
			if err != nil {
				return nil, err
			}
			node.Ops = append(node.Ops, &plan.ModifyColumn{Column: col})
		default:
			return nil, fmt.Errorf("%w: alter operation %T", ErrUnsupportedStatement, op)
		}
	}
	return node, nil
}

func buildAssignments(entries []parser.Assignment) ([]plan.Assignment, error) {
	out := make([]plan.Assignment, 0, len(entries))
	for _, e := range entries {
		v, err := buildExpr(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, plan.NewAssignment(e.Column, v))
	}
	return out, nil
}

func buildInsert(s *parser.InsertStmt) (plan.Node, error) {
	values, err := buildAssignments(s.Entries)
	if err != nil {
		return nil, err
	}
	return &plan.Insert{Table: s.Table.Name, Values: values}, nil
}

func withFilter(n plan.Node, where parser.Expr) (plan.Node, error) {
	if where == nil {
		return n, nil
	}
	cond, err := buildExpr(where)
	if err != nil {
		return nil, err
	}
	return &plan.Filter{Source: n, Condition: cond}, nil
}

func buildUpdate(s *parser.UpdateStmt) (plan.Node, error) {
	values, err := buildAssignments(s.Entries)
	if err != nil {
		return nil, err
	}
	return withFilter(&plan.Update{Table: s.Table.Name, Values: values}, s.Where)
}

func buildDelete(s *parser.DeleteStmt) (plan.Node, error) {
	return withFilter(&plan.Delete{Table: s.Table.Name}, s.Where)
}

// buildSelect wraps the scan in Filter, Limit, Offset and finally
// Projection. GROUP BY, HAVING and ORDER BY are parsed but not planned.
func buildSelect(s *parser.SelectStmt) (plan.Node, error) {
	node, err := withFilter(&plan.Scan{Table: s.From.Name, Alias: s.From.Alias}, s.Where)
	if err != nil {
		return nil, err
	}

	if s.Limit != nil {
		lim, err := buildExpr(s.Limit)
		if err != nil {
			return nil, err
		}
		node = &plan.Limit{Source: node, Limit: lim}
	}
	if s.Offset != nil {
		off, err := buildExpr(s.Offset)
		if err != nil {
			return nil, err
		}
		node = &plan.Offset{Source: node, Offset: off}
	}

	cols := make([]plan.Expression, 0, len(s.Fields))
	for _, f := range s.Fields {
		e, err := buildExpr(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, e)
	}
	return &plan.Projection{Source: node, Columns: cols}, nil
}

var binaryOps = map[parser.BinaryOp]plan.BinaryOp{
	parser.OpEq:    plan.Equal,
	parser.OpNotEq: plan.NotEqual,
	parser.OpGt:    plan.GreaterThan,
	parser.OpGtEq:  plan.GreaterThanOrEqual,
	parser.OpLt:    plan.LessThan,
	parser.OpLtEq:  plan.LessThanOrEqual,
	parser.OpPlus:  plan.Add,
	parser.OpMinus: plan.Subtract,
	parser.OpMul:   plan.Multiply,
	parser.OpDiv:   plan.Divide,
	parser.OpAnd:   plan.And,
	parser.OpOr:    plan.Or,
}

func buildExpr(e parser.Expr) (plan.Expression, error) {
	switch x := e.(type) {
	case *parser.LiteralExpr:
		return &plan.Constant{Value: literalValue(x)}, nil
	case *parser.IdentExpr:
		return &plan.Identifier{Name: x.Name}, nil
	case *parser.StarExpr:
		return &plan.Wildcard{}, nil
	case *parser.BinaryExpr:
		op, ok := binaryOps[x.Op]
		if !ok {
			return nil, fmt.Errorf("%w: operator %d", ErrUnsupportedExpression, x.Op)
		}
		l, err := buildExpr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := buildExpr(x.Right)
		if err != nil {
			return nil, err
		}
		return &plan.Binary{Op: op, Left: l, Right: r}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedExpression, e)
	}
}

// literalValue maps integral numbers to Int so that "1" and "1.0" bind the
// same way.
func literalValue(l *parser.LiteralExpr) catalog.Value {
	switch l.Kind {
	case parser.LitInt:
		return catalog.IntValue(l.Int)
	case parser.LitNumber:
		if l.Number == math.Trunc(l.Number) && math.Abs(l.Number) < 1<<63 {
			return catalog.IntValue(int64(l.Number))
		}
		return catalog.FloatValue(l.Number)
	case parser.LitString, parser.LitDate, parser.LitDateTime:
		return catalog.TextValue(l.Str)
	case parser.LitBool:
		return catalog.BoolValue(l.Bool)
	default:
		return catalog.NullValue()
	}
}

func mapDataType(t parser.DataType) (catalog.DataType, error) {
	switch t {
	case parser.TypeInt:
		return catalog.Int, nil
	case parser.TypeText:
		return catalog.Text, nil
	case parser.TypeBoolean:
		return catalog.Boolean, nil
	case parser.TypeFloat:
		return catalog.Float, nil
	case parser.TypeDate:
		return catalog.Date, nil
	case parser.TypeDateTime, parser.TypeTimestamp:
		return catalog.DateTime, nil
	default:
		return 0, fmt.Errorf("%w: column type %d", ErrUnsupportedStatement, t)
	}
}
