package plan

import (
	"strings"

	"github.com/golang-collections/collections/stack"
	pair "github.com/notEpsilon/go-pair"

	"github.com/tuannm99/relcore/internal/catalog"
)

// Expression is the logical expression IR. Every node owns its children.
type Expression interface {
	exprNode()
	String() string
}

type Identifier struct {
	Name string
}

type Constant struct {
	Value catalog.Value
}

// DataTypeExpr only appears inside ALTER payloads.
type DataTypeExpr struct {
	Type catalog.DataType
}

// Wildcard is the "*" of a select list.
type Wildcard struct{}

type BinaryOp uint8

const (
	Equal BinaryOp = iota + 1
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	Add
	Subtract
	Multiply
	Divide
	And
	Or
)

var binaryOpNames = [...]string{
	Equal:              "=",
	NotEqual:           "!=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	Add:                "+",
	Subtract:           "-",
	Multiply:           "*",
	Divide:             "/",
	And:                "AND",
	Or:                 "OR",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) && binaryOpNames[op] != "" {
		return binaryOpNames[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean from two scalars.
func (op BinaryOp) IsComparison() bool {
	return op >= Equal && op <= LessThanOrEqual
}

type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (*Identifier) exprNode()   {}
func (*Constant) exprNode()     {}
func (*DataTypeExpr) exprNode() {}
func (*Wildcard) exprNode()     {}
func (*Binary) exprNode()       {}

func (e *Identifier) String() string   { return e.Name }
func (e *Constant) String() string     { return e.Value.String() }
func (e *DataTypeExpr) String() string { return e.Type.String() }
func (*Wildcard) String() string       { return "*" }
func (e *Binary) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

// Assignment is a (column, value) pair of INSERT or UPDATE.
type Assignment = pair.Pair[Expression, Expression]

// SortKey pairs an order expression with its descending flag.
type SortKey = pair.Pair[Expression, bool]

func NewAssignment(column string, value Expression) Assignment {
	return Assignment{First: &Identifier{Name: column}, Second: value}
}

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the visited expression.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil {
		return
	}
	st := stack.New()
	st.Push(e)
	for st.Len() > 0 {
		cur := st.Pop().(Expression)
		if !fn(cur) {
			continue
		}
		if b, ok := cur.(*Binary); ok {
			// right first so left is visited first
			st.Push(b.Right)
			st.Push(b.Left)
		}
	}
}

// Identifiers returns the column names referenced by e, in visit order.
func Identifiers(e Expression) []string {
	var out []string
	Walk(e, func(x Expression) bool {
		if id, ok := x.(*Identifier); ok {
			out = append(out, id.Name)
		}
		return true
	})
	return out
}

func joinExprs(es []Expression) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
