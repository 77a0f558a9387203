package parser

// Statement is the root interface for all SQL statements.
type Statement interface {
	stmtNode()
}

// ----- Transaction control -----

type BeginStmt struct{}
type CommitStmt struct{}
type RollbackStmt struct{}

func (*BeginStmt) stmtNode()    {}
func (*CommitStmt) stmtNode()   {}
func (*RollbackStmt) stmtNode() {}

// ----- Table references -----

type TableRef struct {
	Name  string
	Alias string
}

// ----- SELECT -----

type OrderItem struct {
	Expr Expr
	Desc bool
}

type SelectStmt struct {
	From    TableRef
	Fields  []Expr // *StarExpr for "*"
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []OrderItem
	Limit   Expr
	Offset  Expr
}

func (*SelectStmt) stmtNode() {}

// ----- INSERT / UPDATE / DELETE -----

// Assignment is one "column = value" pair of INSERT or UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

type InsertStmt struct {
	Table   TableRef
	Entries []Assignment
}

func (*InsertStmt) stmtNode() {}

type UpdateStmt struct {
	Table   TableRef
	Entries []Assignment
	Where   Expr
}

func (*UpdateStmt) stmtNode() {}

type DeleteStmt struct {
	Table TableRef
	Where Expr
}

func (*DeleteStmt) stmtNode() {}

// ----- DDL -----

type DataType uint8

const (
	TypeInt DataType = iota + 1
	TypeText
	TypeBoolean
	TypeFloat
	TypeDate
	TypeDateTime
	TypeTimestamp
)

type Constraint interface {
	constraintNode()
}

type PrimaryKeyConstraint struct{}
type NotNullConstraint struct{}
type UniqueConstraint struct{}
type DefaultConstraint struct{ Value Expr }
type CheckConstraint struct{ Expr Expr }
type ForeignKeyConstraint struct {
	Table  string
	Column string
}

func (*PrimaryKeyConstraint) constraintNode() {}
func (*NotNullConstraint) constraintNode()    {}
func (*UniqueConstraint) constraintNode()     {}
func (*DefaultConstraint) constraintNode()    {}
func (*CheckConstraint) constraintNode()      {}
func (*ForeignKeyConstraint) constraintNode() {}

type ColumnDef struct {
	Name        string
	Type        DataType
	Constraints []Constraint
}

type CreateTableStmt struct {
	TableName string
	Columns   []ColumnDef
}

func (*CreateTableStmt) stmtNode() {}

type DropTableStmt struct {
	TableName string
}

func (*DropTableStmt) stmtNode() {}

type AlterOperation interface {
	alterNode()
}

type AddColumnOp struct{ Column ColumnDef }
type DropColumnOp struct{ Name string }
type ModifyColumnOp struct{ Column ColumnDef }

func (*AddColumnOp) alterNode()    {}
func (*DropColumnOp) alterNode()   {}
func (*ModifyColumnOp) alterNode() {}

type AlterTableStmt struct {
	TableName  string
	Operations []AlterOperation
}

func (*AlterTableStmt) stmtNode() {}

// ----- Expressions -----

type Expr interface {
	exprNode()
}

type LiteralKind uint8

const (
	LitNull LiteralKind = iota
	LitInt
	LitNumber
	LitString
	LitBool
	LitDate
	LitDateTime
)

// LiteralExpr holds a constant. Date and DateTime literals carry their ISO
// text in Str.
type LiteralExpr struct {
	Kind   LiteralKind
	Int    int64
	Number float64
	Str    string
	Bool   bool
}

func (*LiteralExpr) exprNode() {}

type IdentExpr struct {
	Name string
}

func (*IdentExpr) exprNode() {}

type BinaryOp uint8

const (
	OpEq BinaryOp = iota + 1
	OpNotEq
	OpGt
	OpGtEq
	OpLt
	OpLtEq
	OpPlus
	OpMinus
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpLike
)

type BinaryExpr struct {
	Left  Expr
	Op    BinaryOp
	Right Expr
}

func (*BinaryExpr) exprNode() {}

type StarExpr struct{}

func (*StarExpr) exprNode() {}
