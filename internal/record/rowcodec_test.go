package record

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/relcore/internal/catalog"
)

func TestEncodeDecodeRow_RoundTrip(t *testing.T) {
	row := Row{
		"id":     catalog.IntValue(-42),
		"score":  catalog.FloatValue(3.14159),
		"active": catalog.BoolValue(true),
		"name":   catalog.TextValue("hello"),
		"note":   catalog.NullValue(),
		"empty":  catalog.TextValue(""),
	}

	buf, err := EncodeRow(row)
	require.NoError(t, err)
	require.NotEmpty(t, buf)

	got, err := DecodeRow(buf)
	require.NoError(t, err)
	require.Equal(t, row, got)
}

func TestEncodeRow_Deterministic(t *testing.T) {
	row := Row{"b": catalog.IntValue(1), "a": catalog.IntValue(2), "c": catalog.IntValue(3)}
	first, err := EncodeRow(row)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := EncodeRow(row)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEncodeRow_EmptyRow(t *testing.T) {
	buf, err := EncodeRow(Row{})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0}, buf)

	got, err := DecodeRow(buf)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEncodeRow_VarTooLong(t *testing.T) {
	_, err := EncodeRow(Row{"name": catalog.TextValue(strings.Repeat("x", math.MaxUint16+1))})
	require.ErrorIs(t, err, ErrVarTooLong)
}

func TestEncodeRow_UnknownKind(t *testing.T) {
	_, err := EncodeRow(Row{"x": {Kind: catalog.ValueKind(99)}})
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestDecodeRow_BadBuffer(t *testing.T) {
	_, err := DecodeRow(nil)
	require.ErrorIs(t, err, ErrBadBuffer)

	buf, err := EncodeRow(Row{"id": catalog.IntValue(7), "name": catalog.TextValue("abc")})
	require.NoError(t, err)

	// every strict prefix is rejected
	for n := 2; n < len(buf); n++ {
		_, err := DecodeRow(buf[:n])
		require.ErrorIs(t, err, ErrBadBuffer, "prefix %d", n)
	}

	// trailing garbage
	_, err = DecodeRow(append(append([]byte{}, buf...), 0xFF))
	require.ErrorIs(t, err, ErrBadBuffer)
}
