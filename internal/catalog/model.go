package catalog

import (
	"fmt"
	"sort"
	"strconv"
)

type DataType uint8

const (
	Int DataType = iota + 1
	Text
	Boolean
	Float
	Date
	DateTime
	Null
)

var dataTypeNames = map[DataType]string{
	Int:      "INT",
	Text:     "TEXT",
	Boolean:  "BOOLEAN",
	Float:    "FLOAT",
	Date:     "DATE",
	DateTime: "DATETIME",
	Null:     "NULL",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

func (t DataType) MarshalText() ([]byte, error) {
	if _, ok := dataTypeNames[t]; !ok {
		return nil, fmt.Errorf("catalog: unknown data type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *DataType) UnmarshalText(b []byte) error {
	for k, v := range dataTypeNames {
		if v == string(b) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("catalog: unknown data type %q", string(b))
}

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindText
	KindBool
)

// Value is a stored column value. Only the field selected by Kind is meaningful.
type Value struct {
	Kind  ValueKind `json:"kind"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
	Text  string    `json:"text,omitempty"`
	Bool  bool      `json:"bool,omitempty"`
}

func IntValue(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func TextValue(v string) Value   { return Value{Kind: KindText, Text: v} }
func BoolValue(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func NullValue() Value           { return Value{Kind: KindNull} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Any unwraps the value for result rows.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindText:
		return v.Text
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return "Int(" + strconv.FormatInt(v.Int, 10) + ")"
	case KindFloat:
		return "Float(" + strconv.FormatFloat(v.Float, 'g', -1, 64) + ")"
	case KindText:
		return "Text(" + strconv.Quote(v.Text) + ")"
	case KindBool:
		return "Boolean(" + strconv.FormatBool(v.Bool) + ")"
	default:
		return "Null"
	}
}

// Reference is a foreign key target.
type Reference struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

type Column struct {
	Name       string     `json:"name"`
	Type       DataType   `json:"type"`
	Unique     bool       `json:"unique"`
	Nullable   bool       `json:"nullable"`
	Default    *Value     `json:"default,omitempty"`
	References *Reference `json:"references,omitempty"`
}

type Table struct {
	Name    string            `json:"name"`
	Columns map[string]Column `json:"columns"`
	// OriginPage is the head of the table's page chain; 0 until the first insert.
	OriginPage uint32 `json:"origin_page,omitempty"`
}

func NewTable(name string, columns map[string]Column) Table {
	if columns == nil {
		columns = make(map[string]Column)
	}
	return Table{Name: name, Columns: columns}
}

func (t *Table) AddColumn(c Column) {
	if t.Columns == nil {
		t.Columns = make(map[string]Column)
	}
	t.Columns[c.Name] = c
}

func (t *Table) RemoveColumn(name string) (Column, bool) {
	c, ok := t.Columns[name]
	if ok {
		delete(t.Columns, name)
	}
	return c, ok
}

func (t Table) GetColumn(name string) (Column, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// ColumnNames returns column names in sorted order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for n := range t.Columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies the column map so callers can mutate freely.
func (t Table) Clone() Table {
	cols := make(map[string]Column, len(t.Columns))
	for k, v := range t.Columns {
		cols[k] = v
	}
	t.Columns = cols
	return t
}
