package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pcparser "github.com/pingcap/parser"
	pcast "github.com/pingcap/parser/ast"
	"github.com/pingcap/parser/mysql"
	"github.com/pingcap/parser/opcode"
	_ "github.com/pingcap/tidb/types/parser_driver"
)

var (
	ErrEmptyStatement    = errors.New("parser: empty statement")
	ErrUnsupportedSyntax = errors.New("parser: unsupported syntax")
)

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedSyntax, fmt.Sprintf(format, args...))
}

// Parse parses exactly one SQL statement. A trailing ';' is optional.
func Parse(sql string) (Statement, error) {
	stmts, err := ParseAll(sql)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("parser: expected one statement, got %d", len(stmts))
	}
	return stmts[0], nil
}

// ParseAll parses a ';'-separated script.
func ParseAll(sql string) ([]Statement, error) {
	if strings.TrimSpace(strings.Trim(strings.TrimSpace(sql), ";")) == "" {
		return nil, ErrEmptyStatement
	}

	p := pcparser.New()
	nodes, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}

	out := make([]Statement, 0, len(nodes))
	for _, n := range nodes {
		stmt, err := convertStmt(n)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func convertStmt(node pcast.StmtNode) (Statement, error) {
	switch n := node.(type) {
	case *pcast.BeginStmt:
		return &BeginStmt{}, nil
	case *pcast.CommitStmt:
		return &CommitStmt{}, nil
	case *pcast.RollbackStmt:
		return &RollbackStmt{}, nil
	case *pcast.SelectStmt:
		return convertSelect(n)
	case *pcast.InsertStmt:
		return convertInsert(n)
	case *pcast.UpdateStmt:
		return convertUpdate(n)
	case *pcast.DeleteStmt:
		return convertDelete(n)
	case *pcast.CreateTableStmt:
		return convertCreateTable(n)
	case *pcast.DropTableStmt:
		if len(n.Tables) != 1 {
			return nil, unsupported("DROP TABLE with %d tables", len(n.Tables))
		}
		return &DropTableStmt{TableName: n.Tables[0].Name.O}, nil
	case *pcast.AlterTableStmt:
		return convertAlterTable(n)
	default:
		return nil, unsupported("statement %T", node)
	}
}

func tableRef(clause *pcast.TableRefsClause) (TableRef, error) {
	if clause == nil || clause.TableRefs == nil {
		return TableRef{}, unsupported("missing table reference")
	}
	join := clause.TableRefs
	if join.Right != nil {
		return TableRef{}, unsupported("joins")
	}
	ts, ok := join.Left.(*pcast.TableSource)
	if !ok {
		return TableRef{}, unsupported("table source %T", join.Left)
	}
	tn, ok := ts.Source.(*pcast.TableName)
	if !ok {
		return TableRef{}, unsupported("subquery in FROM")
	}
	return TableRef{Name: tn.Name.O, Alias: ts.AsName.O}, nil
}

func optExpr(e pcast.ExprNode) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	return convertExpr(e)
}

func convertSelect(s *pcast.SelectStmt) (Statement, error) {
	from, err := tableRef(s.From)
	if err != nil {
		return nil, err
	}
	out := &SelectStmt{From: from}

	if s.Fields != nil {
		for _, f := range s.Fields.Fields {
			if f.WildCard != nil {
				out.Fields = append(out.Fields, &StarExpr{})
				continue
			}
			e, err := convertExpr(f.Expr)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, e)
		}
	}

	if out.Where, err = optExpr(s.Where); err != nil {
		return nil, err
	}
	if s.GroupBy != nil {
		for _, it := range s.GroupBy.Items {
			e, err := convertExpr(it.Expr)
			if err != nil {
				return nil, err
			}
			out.GroupBy = append(out.GroupBy, e)
		}
	}
	if s.Having != nil {
		if out.Having, err = optExpr(s.Having.Expr); err != nil {
			return nil, err
		}
	}
	if s.OrderBy != nil {
		for _, it := range s.OrderBy.Items {
			e, err := convertExpr(it.Expr)
			if err != nil {
				return nil, err
			}
			out.OrderBy = append(out.OrderBy, OrderItem{Expr: e, Desc: it.Desc})
		}
	}
	if s.Limit != nil {
		if out.Limit, err = optExpr(s.Limit.Count); err != nil {
			return nil, err
		}
		if out.Offset, err = optExpr(s.Limit.Offset); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func convertInsert(s *pcast.InsertStmt) (Statement, error) {
	table, err := tableRef(s.Table)
	if err != nil {
		return nil, err
	}
	out := &InsertStmt{Table: table}

	// INSERT ... SET a = 1, b = 2
	if len(s.Setlist) > 0 {
		for _, a := range s.Setlist {
			e, err := convertExpr(a.Expr)
			if err != nil {
				return nil, err
			}
			out.Entries = append(out.Entries, Assignment{Column: a.Column.Name.O, Value: e})
		}
		return out, nil
	}

	if len(s.Lists) != 1 {
		return nil, unsupported("INSERT with %d value lists", len(s.Lists))
	}
	if len(s.Columns) == 0 {
		return nil, unsupported("INSERT without a column list")
	}
	values := s.Lists[0]
	if len(values) != len(s.Columns) {
		return nil, fmt.Errorf("parser: %d columns but %d values", len(s.Columns), len(values))
	}
	for i, col := range s.Columns {
		e, err := convertExpr(values[i])
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, Assignment{Column: col.Name.O, Value: e})
	}
	return out, nil
}

func convertUpdate(s *pcast.UpdateStmt) (Statement, error) {
	table, err := tableRef(s.TableRefs)
	if err != nil {
		return nil, err
	}
	out := &UpdateStmt{Table: table}
	for _, a := range s.List {
		e, err := convertExpr(a.Expr)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, Assignment{Column: a.Column.Name.O, Value: e})
	}
	if out.Where, err = optExpr(s.Where); err != nil {
		return nil, err
	}
	return out, nil
}

func convertDelete(s *pcast.DeleteStmt) (Statement, error) {
	if s.IsMultiTable {
		return nil, unsupported("multi-table DELETE")
	}
	table, err := tableRef(s.TableRefs)
	if err != nil {
		return nil, err
	}
	out := &DeleteStmt{Table: table}
	if out.Where, err = optExpr(s.Where); err != nil {
		return nil, err
	}
	return out, nil
}

func convertCreateTable(s *pcast.CreateTableStmt) (Statement, error) {
	if len(s.Constraints) > 0 {
		return nil, unsupported("table-level constraints")
	}
	out := &CreateTableStmt{TableName: s.Table.Name.O}
	for _, c := range s.Cols {
		def, err := convertColumnDef(c)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, def)
	}
	return out, nil
}

func convertColumnDef(c *pcast.ColumnDef) (ColumnDef, error) {
	dt, err := convertType(c)
	if err != nil {
		return ColumnDef{}, err
	}
	def := ColumnDef{Name: c.Name.Name.O, Type: dt}

	for _, o := range c.Options {
		switch o.Tp {
		case pcast.ColumnOptionPrimaryKey:
			def.Constraints = append(def.Constraints, &PrimaryKeyConstraint{})
		case pcast.ColumnOptionNotNull:
			def.Constraints = append(def.Constraints, &NotNullConstraint{})
		case pcast.ColumnOptionUniqKey:
			def.Constraints = append(def.Constraints, &UniqueConstraint{})
		case pcast.ColumnOptionDefaultValue:
			e, err := convertExpr(o.Expr)
			if err != nil {
				return ColumnDef{}, err
			}
			def.Constraints = append(def.Constraints, &DefaultConstraint{Value: e})
		case pcast.ColumnOptionCheck:
			e, err := convertExpr(o.Expr)
			if err != nil {
				return ColumnDef{}, err
			}
			def.Constraints = append(def.Constraints, &CheckConstraint{Expr: e})
		}
	}
	return def, nil
}

func convertType(c *pcast.ColumnDef) (DataType, error) {
	if c.Tp == nil {
		return 0, unsupported("column %s without a type", c.Name.Name.O)
	}
	switch c.Tp.Tp {
	case mysql.TypeTiny:
		// BOOLEAN is an alias for TINYINT(1).
		if c.Tp.Flen == 1 {
			return TypeBoolean, nil
		}
		return TypeInt, nil
	case mysql.TypeShort, mysql.TypeInt24, mysql.TypeLong, mysql.TypeLonglong:
		return TypeInt, nil
	case mysql.TypeFloat, mysql.TypeDouble, mysql.TypeNewDecimal:
		return TypeFloat, nil
	case mysql.TypeVarchar, mysql.TypeString, mysql.TypeVarString,
		mysql.TypeBlob, mysql.TypeTinyBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob:
		return TypeText, nil
	case mysql.TypeDate:
		return TypeDate, nil
	case mysql.TypeDatetime:
		return TypeDateTime, nil
	case mysql.TypeTimestamp:
		return TypeTimestamp, nil
	default:
		return 0, unsupported("column type %d for %s", c.Tp.Tp, c.Name.Name.O)
	}
}

func convertAlterTable(s *pcast.AlterTableStmt) (Statement, error) {
	out := &AlterTableStmt{TableName: s.Table.Name.O}
	for _, spec := range s.Specs {
		switch spec.Tp {
		case pcast.AlterTableAddColumns:
			for _, nc := range spec.NewColumns {
				def, err := convertColumnDef(nc)
				if err != nil {
					return nil, err
				}
				out.Operations = append(out.Operations, &AddColumnOp{Column: def})
			}
		case pcast.AlterTableDropColumn:
			out.Operations = append(out.Operations, &DropColumnOp{Name: spec.OldColumnName.Name.O})
		case pcast.AlterTableModifyColumn:
			if len(spec.NewColumns) != 1 {
				return nil, unsupported("MODIFY COLUMN with %d columns", len(spec.NewColumns))
			}
			def, err := convertColumnDef(spec.NewColumns[0])
			if err != nil {
				return nil, err
			}
			out.Operations = append(out.Operations, &ModifyColumnOp{Column: def})
		default:
			return nil, unsupported("ALTER TABLE operation %d", spec.Tp)
		}
	}
	return out, nil
}

var binaryOps = map[opcode.Op]BinaryOp{
	opcode.EQ:       OpEq,
	opcode.NE:       OpNotEq,
	opcode.GT:       OpGt,
	opcode.GE:       OpGtEq,
	opcode.LT:       OpLt,
	opcode.LE:       OpLtEq,
	opcode.Plus:     OpPlus,
	opcode.Minus:    OpMinus,
	opcode.Mul:      OpMul,
	opcode.Div:      OpDiv,
	opcode.LogicAnd: OpAnd,
	opcode.LogicOr:  OpOr,
}

func convertExpr(e pcast.ExprNode) (Expr, error) {
	switch n := e.(type) {
	case *pcast.BinaryOperationExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, unsupported("operator %s", n.Op)
		}
		l, err := convertExpr(n.L)
		if err != nil {
			return nil, err
		}
		r, err := convertExpr(n.R)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: l, Op: op, Right: r}, nil
	case *pcast.PatternLikeExpr:
		if n.Not {
			return nil, unsupported("NOT LIKE")
		}
		l, err := convertExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		r, err := convertExpr(n.Pattern)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: l, Op: OpLike, Right: r}, nil
	case *pcast.ParenthesesExpr:
		return convertExpr(n.Expr)
	case *pcast.ColumnNameExpr:
		return &IdentExpr{Name: n.Name.Name.O}, nil
	case *pcast.UnaryOperationExpr:
		if n.Op != opcode.Minus {
			return nil, unsupported("unary operator %s", n.Op)
		}
		inner, err := convertExpr(n.V)
		if err != nil {
			return nil, err
		}
		lit, ok := inner.(*LiteralExpr)
		if !ok {
			return nil, unsupported("negation of a non-literal")
		}
		switch lit.Kind {
		case LitInt:
			lit.Int = -lit.Int
		case LitNumber:
			lit.Number = -lit.Number
		default:
			return nil, unsupported("negation of a non-numeric literal")
		}
		return lit, nil
	case pcast.ValueExpr:
		return convertValue(n.GetValue())
	default:
		return nil, unsupported("expression %T", e)
	}
}

func convertValue(v any) (Expr, error) {
	switch x := v.(type) {
	case nil:
		return &LiteralExpr{Kind: LitNull}, nil
	case int64:
		return &LiteralExpr{Kind: LitInt, Int: x}, nil
	case uint64:
		return &LiteralExpr{Kind: LitInt, Int: int64(x)}, nil
	case float64:
		return &LiteralExpr{Kind: LitNumber, Number: x}, nil
	case float32:
		return &LiteralExpr{Kind: LitNumber, Number: float64(x)}, nil
	case string:
		return &LiteralExpr{Kind: LitString, Str: x}, nil
	case []byte:
		return &LiteralExpr{Kind: LitString, Str: string(x)}, nil
	case fmt.Stringer:
		// decimal literals such as 1.5
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil, unsupported("literal %s", x.String())
		}
		return &LiteralExpr{Kind: LitNumber, Number: f}, nil
	default:
		return nil, unsupported("literal of type %T", v)
	}
}
