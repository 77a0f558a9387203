package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	slot1Data = []byte("data string of slot 1")
	slot2Data = []byte("data string of slot 2")
	longData  = bytes.Repeat([]byte("long longggggggggg "), 40)
)

func newPage(t *testing.T) *Page {
	t.Helper()
	buf := make([]byte, DefaultPageSize)

	p, err := NewPage(buf, 7)
	require.NoError(t, err)

	// default after init page
	assert.Equal(t, uint16(DefaultPageSize), p.Upper())
	assert.Equal(t, uint16(HeaderSize), p.Lower())
	assert.Equal(t, 0, p.NumTuples())
	assert.Equal(t, uint32(7), p.PageID())
	assert.Equal(t, InvalidPageID, p.Next())
	assert.Equal(t, InvalidPageID, p.Prev())

	id, err := p.InsertTuple(slot1Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	id, err = p.InsertTuple(slot2Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), id)

	// after inserting two tuples
	assert.Equal(t, uint16(DefaultPageSize-len(slot1Data)-len(slot2Data)), p.Upper())
	assert.Equal(t, uint16(HeaderSize+2*SlotSize), p.Lower())
	assert.Equal(t, 2, p.NumTuples())

	require.NotEmpty(t, p.DumpString())
	return p
}

func TestNewPage_WrongSize(t *testing.T) {
	_, err := NewPage(make([]byte, MinPageSize-1), 1)
	require.ErrorIs(t, err, ErrWrongSize)

	_, err = NewPage(make([]byte, MaxPageSize+1), 1)
	require.ErrorIs(t, err, ErrWrongSize)

	p, err := NewPage(make([]byte, MaxPageSize), 1)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize-HeaderSize, p.FreeSpace())
}

func TestPage_ReadTuple(t *testing.T) {
	p := newPage(t)

	got, err := p.ReadTuple(1)
	require.NoError(t, err)
	assert.Equal(t, slot1Data, got)

	got, err = p.ReadTuple(2)
	require.NoError(t, err)
	assert.Equal(t, slot2Data, got)

	_, err = p.ReadTuple(99)
	require.ErrorIs(t, err, ErrTupleNotFound)
}

func TestPage_InsertConsumesPayloadPlusSlot(t *testing.T) {
	p, err := NewPage(make([]byte, MinPageSize), 1)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xAB}, 37)
	inserted := 0
	for {
		before := p.FreeSpace()
		n := p.NumTuples()
		_, err := p.InsertTuple(payload)
		if err != nil {
			require.ErrorIs(t, err, ErrPageFull)
			assert.Equal(t, before, p.FreeSpace())
			assert.Equal(t, n, p.NumTuples())
			assert.Less(t, before, len(payload)+SlotSize)
			break
		}
		inserted++
		assert.Equal(t, before-len(payload)-SlotSize, p.FreeSpace())
		assert.Equal(t, n+1, p.NumTuples())
	}
	assert.Equal(t, (MinPageSize-HeaderSize)/(len(payload)+SlotSize), inserted)
}

func TestPage_InsertRejects(t *testing.T) {
	p := newPage(t)

	_, err := p.InsertTuple(nil)
	require.ErrorIs(t, err, ErrEmptyTuple)

	_, err = p.InsertTuple(make([]byte, p.MaxTupleSize()+1))
	require.ErrorIs(t, err, ErrTupleTooLarge)
	require.ErrorIs(t, err, ErrPageFull)

	empty, err := NewPage(make([]byte, MinPageSize), 1)
	require.NoError(t, err)
	_, err = empty.InsertTuple(make([]byte, empty.MaxTupleSize()))
	require.NoError(t, err)
	assert.True(t, empty.IsFull())
	assert.Equal(t, 0, empty.FreeSpace())
}

func TestPage_IsFull(t *testing.T) {
	p, err := NewPage(make([]byte, MinPageSize), 1)
	require.NoError(t, err)
	assert.False(t, p.IsFull())

	_, err = p.InsertTuple(make([]byte, p.FreeSpace()-SlotSize-1))
	require.NoError(t, err)
	assert.False(t, p.IsFull())
	assert.Equal(t, 1, p.FreeSpace())

	_, err = p.InsertTuple([]byte{1})
	require.ErrorIs(t, err, ErrPageFull)
	assert.False(t, p.IsFull())
}

func TestPage_TuplesInInsertionOrder(t *testing.T) {
	p := newPage(t)
	_, err := p.InsertTuple(longData)
	require.NoError(t, err)

	assert.Equal(t, [][]byte{slot1Data, slot2Data, longData}, p.Payloads())

	ts := p.Tuples()
	require.Len(t, ts, 3)
	for i, tup := range ts {
		assert.Equal(t, uint32(i+1), tup.ID)
		assert.Equal(t, int(tup.Length), len(tup.Data))
	}

	// returned data is a copy
	ts[0].Data[0] = 'X'
	got, err := p.ReadTuple(1)
	require.NoError(t, err)
	assert.Equal(t, slot1Data, got)
}

func TestPage_RemoveReclaimsSpace(t *testing.T) {
	p := newPage(t)
	_, err := p.InsertTuple(longData)
	require.NoError(t, err)

	before := p.FreeSpace()
	require.NoError(t, p.RemoveTupleByID(2))
	assert.Equal(t, before+len(slot2Data)+SlotSize, p.FreeSpace())
	assert.Equal(t, 2, p.NumTuples())
	assert.Equal(t, [][]byte{slot1Data, longData}, p.Payloads())

	require.ErrorIs(t, p.RemoveTupleByID(2), ErrTupleNotFound)

	// ids are never reused
	id, err := p.InsertTuple(slot2Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), id)
	assert.Equal(t, [][]byte{slot1Data, longData, slot2Data}, p.Payloads())

	require.NoError(t, p.RemoveTupleByID(1))
	require.NoError(t, p.RemoveTupleByID(3))
	require.NoError(t, p.RemoveTupleByID(4))
	assert.Equal(t, DefaultPageSize-HeaderSize, p.FreeSpace())
	assert.Equal(t, 0, p.NumTuples())
}

func TestPage_Update(t *testing.T) {
	p := newPage(t)

	// shrink
	before := p.FreeSpace()
	require.NoError(t, p.UpdateTupleByID(1, []byte("short")))
	assert.Equal(t, before+len(slot1Data)-len("short"), p.FreeSpace())

	// grow
	require.NoError(t, p.UpdateTupleByID(2, longData))
	assert.Equal(t, [][]byte{[]byte("short"), longData}, p.Payloads())

	got, err := p.ReadTuple(2)
	require.NoError(t, err)
	assert.Equal(t, longData, got)

	require.ErrorIs(t, p.UpdateTupleByID(9, []byte("x")), ErrTupleNotFound)
	require.ErrorIs(t, p.UpdateTupleByID(1, nil), ErrEmptyTuple)
}

func TestPage_UpdateNotEnoughSpaceLeavesPage(t *testing.T) {
	p, err := NewPage(make([]byte, MinPageSize), 1)
	require.NoError(t, err)

	_, err = p.InsertTuple([]byte("abc"))
	require.NoError(t, err)
	_, err = p.InsertTuple(make([]byte, p.FreeSpace()-SlotSize-4))
	require.NoError(t, err)

	snapshot := append([]byte(nil), p.Buf...)
	err = p.UpdateTupleByID(1, make([]byte, 3+p.FreeSpace()+1))
	require.ErrorIs(t, err, ErrNotEnoughSpace)
	assert.Equal(t, snapshot, p.Buf)

	// exactly fits
	require.NoError(t, p.UpdateTupleByID(1, make([]byte, 3+p.FreeSpace())))
	assert.Equal(t, 0, p.FreeSpace())
}

func TestPage_Links(t *testing.T) {
	p := newPage(t)
	p.SetPrev(3)
	p.SetNext(11)

	q, err := FromBytes(p.Buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), q.Prev())
	assert.Equal(t, uint32(11), q.Next())
}

func TestPage_Checksum(t *testing.T) {
	p := newPage(t)
	assert.True(t, p.VerifyChecksum(), "zero checksum means disabled")

	p.StampChecksum()
	assert.NotZero(t, p.Checksum())
	assert.True(t, p.VerifyChecksum())

	p.Buf[len(p.Buf)-1] ^= 0xFF
	assert.False(t, p.VerifyChecksum())
}

func TestFromBytes(t *testing.T) {
	p := newPage(t)

	q, err := FromBytes(p.Buf)
	require.NoError(t, err)
	assert.Equal(t, p.Payloads(), q.Payloads())

	fresh, err := FromBytes(make([]byte, DefaultPageSize))
	require.NoError(t, err)
	assert.True(t, fresh.IsUninitialized())

	bad := append([]byte(nil), p.Buf...)
	bad[offLower] = 0xFF
	bad[offLower+1] = 0xFF
	_, err = FromBytes(bad)
	require.ErrorIs(t, err, ErrCorruption)

	bad = append([]byte(nil), p.Buf...)
	bad[offLower] = byte(HeaderSize + 3)
	bad[offLower+1] = 0
	_, err = FromBytes(bad)
	require.ErrorIs(t, err, ErrCorruption)

	_, err = FromBytes(make([]byte, 10))
	require.ErrorIs(t, err, ErrWrongSize)
}

func TestPage_Dump(t *testing.T) {
	p := newPage(t)
	var buf bytes.Buffer
	require.NoError(t, p.Dump(&buf))
	out := buf.String()
	assert.Contains(t, out, "page 7  prev=0 next=0")
	assert.Contains(t, out, "tuples=2 next_tuple_id=3")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "|data string of slot 1|")

	empty, err := NewPage(make([]byte, MinPageSize), 9)
	require.NoError(t, err)
	assert.Contains(t, empty.DumpString(), "(no tuples)")
	assert.Equal(t, "ab.x.é.", printable([]byte("ab\nx\xffé\t")))
}
