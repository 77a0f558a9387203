package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/optimizer"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// matches evaluates a filter. Anything but a true boolean, NULL included,
// rejects the row.
func matches(filter plan.Expression, row optimizer.Row) (bool, error) {
	v, err := eval(filter, row)
	if err != nil {
		return false, err
	}
	b, ok := truth(v)
	return ok && b, nil
}

func eval(e plan.Expression, row optimizer.Row) (catalog.Value, error) {
	switch x := e.(type) {
	case *plan.Constant:
		return x.Value, nil
	case *plan.Identifier:
		v, ok := row[x.Name]
		if !ok {
			return catalog.Value{}, fmt.Errorf("%w: unknown column %s", ErrInvalidOperation, x.Name)
		}
		return v, nil
	case *plan.Binary:
		l, err := eval(x.Left, row)
		if err != nil {
			return catalog.Value{}, err
		}
		r, err := eval(x.Right, row)
		if err != nil {
			return catalog.Value{}, err
		}
		return evalBinary(x.Op, l, r)
	default:
		return catalog.Value{}, fmt.Errorf("%w: cannot evaluate %s", ErrNotSupported, e)
	}
}

func evalBinary(op plan.BinaryOp, l, r catalog.Value) (catalog.Value, error) {
	switch {
	case op == plan.And || op == plan.Or:
		return logical(op, l, r)
	case op.IsComparison():
		if l.IsNull() || r.IsNull() {
			return catalog.NullValue(), nil
		}
		c, err := compareValues(l, r)
		if err != nil {
			return catalog.Value{}, err
		}
		return catalog.BoolValue(holds(op, c)), nil
	default:
		return arithmetic(op, l, r)
	}
}

func holds(op plan.BinaryOp, c int) bool {
	switch op {
	case plan.Equal:
		return c == 0
	case plan.NotEqual:
		return c != 0
	case plan.GreaterThan:
		return c > 0
	case plan.GreaterThanOrEqual:
		return c >= 0
	case plan.LessThan:
		return c < 0
	case plan.LessThanOrEqual:
		return c <= 0
	}
	return false
}

// truth reads a value as a boolean. ok is false for NULL.
func truth(v catalog.Value) (b bool, ok bool) {
	switch v.Kind {
	case catalog.KindBool:
		return v.Bool, true
	case catalog.KindInt:
		return v.Int != 0, true
	default:
		return false, false
	}
}

// logical is three-valued AND / OR.
func logical(op plan.BinaryOp, l, r catalog.Value) (catalog.Value, error) {
	for _, v := range []catalog.Value{l, r} {
		if !v.IsNull() && v.Kind != catalog.KindBool && v.Kind != catalog.KindInt {
			return catalog.Value{}, fmt.Errorf("%w: %s operand %s", ErrTypeMismatch, op, v)
		}
	}
	lb, lok := truth(l)
	rb, rok := truth(r)
	if op == plan.And {
		if (lok && !lb) || (rok && !rb) {
			return catalog.BoolValue(false), nil
		}
	} else {
		if (lok && lb) || (rok && rb) {
			return catalog.BoolValue(true), nil
		}
	}
	if !lok || !rok {
		return catalog.NullValue(), nil
	}
	return catalog.BoolValue(op == plan.And), nil
}

func arithmetic(op plan.BinaryOp, l, r catalog.Value) (catalog.Value, error) {
	if l.IsNull() || r.IsNull() {
		return catalog.NullValue(), nil
	}
	if l.Kind == catalog.KindInt && r.Kind == catalog.KindInt {
		a, b := l.Int, r.Int
		switch op {
		case plan.Add:
			return catalog.IntValue(a + b), nil
		case plan.Subtract:
			return catalog.IntValue(a - b), nil
		case plan.Multiply:
			return catalog.IntValue(a * b), nil
		case plan.Divide:
			if b == 0 {
				return catalog.Value{}, ErrDivisionByZero
			}
			return catalog.IntValue(a / b), nil
		}
	}
	a, aok := asFloat(l)
	b, bok := asFloat(r)
	if !aok || !bok {
		return catalog.Value{}, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, l, op, r)
	}
	switch op {
	case plan.Add:
		return catalog.FloatValue(a + b), nil
	case plan.Subtract:
		return catalog.FloatValue(a - b), nil
	case plan.Multiply:
		return catalog.FloatValue(a * b), nil
	case plan.Divide:
		if b == 0 {
			return catalog.Value{}, ErrDivisionByZero
		}
		return catalog.FloatValue(a / b), nil
	}
	return catalog.Value{}, fmt.Errorf("%w: operator %s", ErrNotSupported, op)
}

func asFloat(v catalog.Value) (float64, bool) {
	switch v.Kind {
	case catalog.KindInt:
		return float64(v.Int), true
	case catalog.KindFloat:
		return v.Float, true
	}
	return 0, false
}

// compareValues orders two non-null values. Int and Float compare
// numerically; a boolean compares against an integer as 0/1.
func compareValues(l, r catalog.Value) (int, error) {
	if l.Kind == catalog.KindBool && r.Kind == catalog.KindInt {
		l = boolAsInt(l)
	}
	if r.Kind == catalog.KindBool && l.Kind == catalog.KindInt {
		r = boolAsInt(r)
	}
	switch {
	case l.Kind == catalog.KindInt && r.Kind == catalog.KindInt:
		return cmp3(l.Int < r.Int, l.Int > r.Int), nil
	case l.Kind == catalog.KindText && r.Kind == catalog.KindText:
		return strings.Compare(l.Text, r.Text), nil
	case l.Kind == catalog.KindBool && r.Kind == catalog.KindBool:
		return cmp3(!l.Bool && r.Bool, l.Bool && !r.Bool), nil
	}
	a, aok := asFloat(l)
	b, bok := asFloat(r)
	if aok && bok {
		return cmp3(a < b, a > b), nil
	}
	return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, l, r)
}

func equalValues(l, r catalog.Value) (bool, error) {
	if l.IsNull() || r.IsNull() {
		return false, nil
	}
	c, err := compareValues(l, r)
	return err == nil && c == 0, err
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func boolAsInt(v catalog.Value) catalog.Value {
	if v.Bool {
		return catalog.IntValue(1)
	}
	return catalog.IntValue(0)
}

// coerce converts a non-null value to the column's type.
func coerce(col catalog.Column, v catalog.Value) (catalog.Value, error) {
	mismatch := func() (catalog.Value, error) {
		return catalog.Value{}, fmt.Errorf("%w: %s column got %s", ErrTypeMismatch, col.Type, v)
	}
	switch col.Type {
	case catalog.Int:
		if v.Kind == catalog.KindInt {
			return v, nil
		}
	case catalog.Float:
		if f, ok := asFloat(v); ok {
			return catalog.FloatValue(f), nil
		}
	case catalog.Text:
		if v.Kind == catalog.KindText {
			return v, nil
		}
	case catalog.Boolean:
		switch {
		case v.Kind == catalog.KindBool:
			return v, nil
		case v.Kind == catalog.KindInt && (v.Int == 0 || v.Int == 1):
			return catalog.BoolValue(v.Int == 1), nil
		}
	case catalog.Date, catalog.DateTime:
		if v.Kind != catalog.KindText {
			return mismatch()
		}
		layout := dateLayout
		if col.Type == catalog.DateTime {
			layout = dateTimeLayout
		}
		if _, err := time.Parse(layout, v.Text); err != nil {
			return catalog.Value{}, fmt.Errorf("%w: %q is not a %s", ErrTypeMismatch, v.Text, col.Type)
		}
		return v, nil
	}
	return mismatch()
}
