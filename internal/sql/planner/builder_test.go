package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/parser"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

func lit(i int64) *parser.LiteralExpr { return &parser.LiteralExpr{Kind: parser.LitInt, Int: i} }

func TestBuildPlan_CreateTable_ProjectsConstraints(t *testing.T) {
	stmt := &parser.CreateTableStmt{
		TableName: "users",
		Columns: []parser.ColumnDef{
			{Name: "id", Type: parser.TypeInt, Constraints: []parser.Constraint{&parser.PrimaryKeyConstraint{}}},
			{Name: "name", Type: parser.TypeText, Constraints: []parser.Constraint{&parser.NotNullConstraint{}}},
			{Name: "email", Type: parser.TypeText, Constraints: []parser.Constraint{&parser.UniqueConstraint{}}},
			{Name: "score", Type: parser.TypeFloat, Constraints: []parser.Constraint{
				&parser.DefaultConstraint{Value: &parser.LiteralExpr{Kind: parser.LitNumber, Number: 1.5}},
			}},
			{Name: "org_id", Type: parser.TypeInt, Constraints: []parser.Constraint{
				&parser.ForeignKeyConstraint{Table: "orgs", Column: "id"},
			}},
			{Name: "at", Type: parser.TypeTimestamp},
		},
	}

	p, err := BuildPlan(stmt)
	require.NoError(t, err)

	ct, ok := p.(*plan.CreateTable)
	require.True(t, ok)
	require.Equal(t, "users", ct.Schema.Name)
	require.Len(t, ct.Schema.Columns, 6)

	id := ct.Schema.Columns["id"]
	require.Equal(t, catalog.Int, id.Type)
	require.False(t, id.Nullable)
	require.True(t, id.Unique)

	name := ct.Schema.Columns["name"]
	require.False(t, name.Nullable)
	require.False(t, name.Unique)

	email := ct.Schema.Columns["email"]
	require.True(t, email.Nullable)
	require.True(t, email.Unique)

	score := ct.Schema.Columns["score"]
	require.NotNil(t, score.Default)
	require.Equal(t, catalog.FloatValue(1.5), *score.Default)

	org := ct.Schema.Columns["org_id"]
	require.Equal(t, &catalog.Reference{Table: "orgs", Column: "id"}, org.References)

	require.Equal(t, catalog.DateTime, ct.Schema.Columns["at"].Type)
}

func TestBuildPlan_CreateTable_DuplicateColumn(t *testing.T) {
	stmt := &parser.CreateTableStmt{
		TableName: "t",
		Columns: []parser.ColumnDef{
			{Name: "a", Type: parser.TypeInt},
			{Name: "a", Type: parser.TypeText},
		},
	}
	_, err := BuildPlan(stmt)
	require.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestBuildPlan_CreateTable_NonLiteralDefault(t *testing.T) {
	stmt := &parser.CreateTableStmt{
		TableName: "t",
		Columns: []parser.ColumnDef{{
			Name: "a", Type: parser.TypeInt,
			Constraints: []parser.Constraint{&parser.DefaultConstraint{Value: &parser.IdentExpr{Name: "b"}}},
		}},
	}
	_, err := BuildPlan(stmt)
	require.ErrorIs(t, err, ErrUnsupportedExpression)
}

func TestBuildPlan_DropTable(t *testing.T) {
	p, err := BuildPlan(&parser.DropTableStmt{TableName: "users"})
	require.NoError(t, err)
	require.Equal(t, &plan.DropTable{Table: "users"}, p)
}

func TestBuildPlan_AlterTable_TaggedOps(t *testing.T) {
	stmt := &parser.AlterTableStmt{
		TableName: "users",
		Operations: []parser.AlterOperation{
			&parser.AddColumnOp{Column: parser.ColumnDef{Name: "age", Type: parser.TypeInt}},
			&parser.DropColumnOp{Name: "nick"},
			&parser.ModifyColumnOp{Column: parser.ColumnDef{Name: "name", Type: parser.TypeText,
				Constraints: []parser.Constraint{&parser.NotNullConstraint{}}}},
		},
	}

	p, err := BuildPlan(stmt)
	require.NoError(t, err)

	alter, ok := p.(*plan.AlterTable)
	require.True(t, ok)
	require.Equal(t, "users", alter.Table)
	require.Equal(t, []plan.AlterOp{
		&plan.AddColumn{Column: catalog.Column{Name: "age", Type: catalog.Int, Nullable: true}},
		&plan.DropColumn{Name: "nick"},
		&plan.ModifyColumn{Column: catalog.Column{Name: "name", Type: catalog.Text}},
	}, alter.Ops)
}

func TestBuildPlan_Insert(t *testing.T) {
	stmt := &parser.InsertStmt{
		Table: parser.TableRef{Name: "users"},
		Entries: []parser.Assignment{
			{Column: "id", Value: lit(1)},
			{Column: "name", Value: &parser.LiteralExpr{Kind: parser.LitString, Str: "Alice"}},
		},
	}

	p, err := BuildPlan(stmt)
	require.NoError(t, err)

	ins, ok := p.(*plan.Insert)
	require.True(t, ok)
	require.Equal(t, "users", ins.Table)
	require.Len(t, ins.Values, 2)
	require.Equal(t, &plan.Identifier{Name: "id"}, ins.Values[0].First)
	require.Equal(t, &plan.Constant{Value: catalog.IntValue(1)}, ins.Values[0].Second)
	require.Equal(t, &plan.Constant{Value: catalog.TextValue("Alice")}, ins.Values[1].Second)
}

func TestBuildPlan_UpdateDelete_WrapFilter(t *testing.T) {
	where := &parser.BinaryExpr{Left: &parser.IdentExpr{Name: "id"}, Op: parser.OpEq, Right: lit(2)}

	p, err := BuildPlan(&parser.UpdateStmt{
		Table:   parser.TableRef{Name: "users"},
		Entries: []parser.Assignment{{Column: "name", Value: &parser.LiteralExpr{Kind: parser.LitString, Str: "Bob"}}},
		Where:   where,
	})
	require.NoError(t, err)
	f, ok := p.(*plan.Filter)
	require.True(t, ok)
	_, ok = f.Source.(*plan.Update)
	require.True(t, ok)

	p, err = BuildPlan(&parser.DeleteStmt{Table: parser.TableRef{Name: "users"}})
	require.NoError(t, err)
	require.Equal(t, &plan.Delete{Table: "users"}, p)
}

func TestBuildPlan_Select_WrapOrder(t *testing.T) {
	stmt := &parser.SelectStmt{
		From:   parser.TableRef{Name: "users", Alias: "u"},
		Fields: []parser.Expr{&parser.IdentExpr{Name: "id"}, &parser.StarExpr{}},
		Where:  &parser.BinaryExpr{Left: &parser.IdentExpr{Name: "id"}, Op: parser.OpGt, Right: lit(3)},
		Limit:  lit(10),
		Offset: lit(5),
		// accepted but not planned
		OrderBy: []parser.OrderItem{{Expr: &parser.IdentExpr{Name: "id"}, Desc: true}},
		GroupBy: []parser.Expr{&parser.IdentExpr{Name: "id"}},
	}

	p, err := BuildPlan(stmt)
	require.NoError(t, err)

	proj, ok := p.(*plan.Projection)
	require.True(t, ok)
	require.Equal(t, []plan.Expression{&plan.Identifier{Name: "id"}, &plan.Wildcard{}}, proj.Columns)

	off, ok := proj.Source.(*plan.Offset)
	require.True(t, ok)
	require.Equal(t, &plan.Constant{Value: catalog.IntValue(5)}, off.Offset)

	lim, ok := off.Source.(*plan.Limit)
	require.True(t, ok)
	require.Equal(t, &plan.Constant{Value: catalog.IntValue(10)}, lim.Limit)

	filter, ok := lim.Source.(*plan.Filter)
	require.True(t, ok)
	require.Equal(t, "(id > Int(3))", filter.Condition.String())

	require.Equal(t, &plan.Scan{Table: "users", Alias: "u"}, filter.Source)
}

func TestBuildPlan_Select_Bare(t *testing.T) {
	p, err := BuildPlan(&parser.SelectStmt{
		From:   parser.TableRef{Name: "users"},
		Fields: []parser.Expr{&parser.StarExpr{}},
	})
	require.NoError(t, err)
	require.Equal(t, &plan.Projection{
		Source:  &plan.Scan{Table: "users"},
		Columns: []plan.Expression{&plan.Wildcard{}},
	}, p)
}

func TestBuildPlan_TransactionsRejected(t *testing.T) {
	for _, stmt := range []parser.Statement{&parser.BeginStmt{}, &parser.CommitStmt{}, &parser.RollbackStmt{}} {
		_, err := BuildPlan(stmt)
		require.ErrorIs(t, err, ErrTransactionNotSupported)
		require.ErrorIs(t, err, ErrUnsupportedStatement)
	}
}

func TestBuildPlan_UnsupportedExpression(t *testing.T) {
	_, err := BuildPlan(&parser.SelectStmt{
		From:   parser.TableRef{Name: "users"},
		Fields: []parser.Expr{&parser.StarExpr{}},
		Where: &parser.BinaryExpr{
			Left: &parser.IdentExpr{Name: "name"}, Op: parser.OpLike,
			Right: &parser.LiteralExpr{Kind: parser.LitString, Str: "A%"},
		},
	})
	require.ErrorIs(t, err, ErrUnsupportedExpression)
}

func TestLiteralValue_IntegralNumbers(t *testing.T) {
	require.Equal(t, catalog.IntValue(2), literalValue(&parser.LiteralExpr{Kind: parser.LitNumber, Number: 2}))
	require.Equal(t, catalog.FloatValue(2.5), literalValue(&parser.LiteralExpr{Kind: parser.LitNumber, Number: 2.5}))
	require.Equal(t, catalog.NullValue(), literalValue(&parser.LiteralExpr{Kind: parser.LitNull}))
	require.Equal(t, catalog.TextValue("2024-01-02"), literalValue(&parser.LiteralExpr{Kind: parser.LitDate, Str: "2024-01-02"}))
}

func TestPlanner_Build(t *testing.T) {
	p, err := New().Build(&parser.DropTableStmt{TableName: "x"})
	require.NoError(t, err)
	require.Equal(t, "DropTable x\n", p.String())

	_, err = New().Build(&parser.BeginStmt{})
	require.Error(t, err)
}
