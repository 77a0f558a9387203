package record

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tuannm99/relcore/internal/alias/bx"
	"github.com/tuannm99/relcore/internal/catalog"
)

var (
	ErrBadBuffer       = errors.New("rowcodec: buffer underflow/overflow")
	ErrVarTooLong      = errors.New("rowcodec: variable length exceeds u16")
	ErrUnsupportedKind = errors.New("rowcodec: unsupported value kind")
)

// Row is one decoded tuple keyed by column name.
type Row map[string]catalog.Value

// EncodeRow writes a self-describing row so tuples stay readable after the
// table's columns change:
//
//	[u16 count] { [u16 nameLen][name][u8 kind][payload] }*
//
// Payloads: i64 and f64 are 8 bytes LE, text is u16 length + bytes, bool is
// one byte, null has none. Columns are written in name order.
func EncodeRow(row Row) ([]byte, error) {
	if len(row) > math.MaxUint16 {
		return nil, ErrVarTooLong
	}
	names := make([]string, 0, len(row))
	for n := range row {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]byte, 2, 2+len(row)*12)
	bx.PutU16(out, uint16(len(row)))

	for _, name := range names {
		var err error
		if out, err = appendVar(out, []byte(name)); err != nil {
			return nil, fmt.Errorf("%w: column name %q", err, name)
		}
		v := row[name]
		out = append(out, byte(v.Kind))

		switch v.Kind {
		case catalog.KindNull:
		case catalog.KindInt:
			var b [8]byte
			bx.PutU64(b[:], uint64(v.Int))
			out = append(out, b[:]...)
		case catalog.KindFloat:
			var b [8]byte
			bx.PutU64(b[:], math.Float64bits(v.Float))
			out = append(out, b[:]...)
		case catalog.KindText:
			if out, err = appendVar(out, []byte(v.Text)); err != nil {
				return nil, fmt.Errorf("%w: column %q", err, name)
			}
		case catalog.KindBool:
			if v.Bool {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedKind, v.Kind)
		}
	}
	return out, nil
}

func appendVar(out, bs []byte) ([]byte, error) {
	if len(bs) > math.MaxUint16 {
		return nil, ErrVarTooLong
	}
	var l [2]byte
	bx.PutU16(l[:], uint16(len(bs)))
	out = append(out, l[:]...)
	return append(out, bs...), nil
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(buf []byte) (Row, error) {
	if len(buf) < 2 {
		return nil, ErrBadBuffer
	}
	n := int(bx.U16(buf))
	i := 2
	row := make(Row, n)

	readVar := func() ([]byte, error) {
		if i+2 > len(buf) {
			return nil, ErrBadBuffer
		}
		l := int(bx.U16At(buf, i))
		i += 2
		if i+l > len(buf) {
			return nil, ErrBadBuffer
		}
		bs := buf[i : i+l]
		i += l
		return bs, nil
	}

	for c := 0; c < n; c++ {
		name, err := readVar()
		if err != nil {
			return nil, err
		}
		if i >= len(buf) {
			return nil, ErrBadBuffer
		}
		kind := catalog.ValueKind(buf[i])
		i++

		var v catalog.Value
		switch kind {
		case catalog.KindNull:
			v = catalog.NullValue()
		case catalog.KindInt, catalog.KindFloat:
			if i+8 > len(buf) {
				return nil, ErrBadBuffer
			}
			raw := bx.U64At(buf, i)
			i += 8
			if kind == catalog.KindInt {
				v = catalog.IntValue(int64(raw))
			} else {
				v = catalog.FloatValue(math.Float64frombits(raw))
			}
		case catalog.KindText:
			bs, err := readVar()
			if err != nil {
				return nil, err
			}
			v = catalog.TextValue(string(bs))
		case catalog.KindBool:
			if i >= len(buf) {
				return nil, ErrBadBuffer
			}
			v = catalog.BoolValue(buf[i] != 0)
			i++
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedKind, kind)
		}
		row[string(name)] = v
	}

	if i != len(buf) {
		return nil, ErrBadBuffer
	}
	return row, nil
}
