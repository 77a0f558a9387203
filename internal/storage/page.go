package storage

import (
	"github.com/spaolacci/murmur3"

	"github.com/tuannm99/relcore/internal/alias/bx"
)

// Header offsets (little-endian)
const (
	offFlags       = 0  // u16
	offLower       = 2  // u16
	offUpper       = 4  // u16
	offReserved    = 6  // u16
	offPageID      = 8  // u32
	offChecksum    = 12 // u32, 0 = disabled
	offPrev        = 16 // u32
	offNext        = 20 // u32
	offNextTupleID = 24 // u32
)

// Slot is one line pointer. Length 0 never appears in a live slot.
type Slot struct {
	TupleID uint32
	Offset  uint16
	Length  uint16
}

// Tuple is a copy of one stored payload.
type Tuple struct {
	ID     uint32
	Offset uint16
	Length uint16
	Data   []byte
}

// +------------------+ 0
// | Header (28B)     |
// | Slots[]          | <-- lower
// +------------------+
// |   Free space     |
// +------------------+ <-- upper
// |  Tuple data      |
// |  (grows down)    |
// +------------------+ len(Buf)
//
// Slots are kept in insertion order.
type Page struct {
	Buf []byte
}

func validSize(n int) bool {
	return n >= MinPageSize && n <= MaxPageSize
}

// NewPage formats buf as an empty page.
func NewPage(buf []byte, pageID uint32) (*Page, error) {
	if !validSize(len(buf)) {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	p.init(pageID)
	return p, nil
}

// FromBytes wraps an existing page image after checking its header bounds.
func FromBytes(buf []byte) (*Page, error) {
	if !validSize(len(buf)) {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	if p.IsUninitialized() {
		return p, nil
	}
	lo, up := int(p.Lower()), int(p.Upper())
	if lo < HeaderSize || lo > up || up > len(buf) || (lo-HeaderSize)%SlotSize != 0 {
		return nil, ErrCorruption
	}
	return p, nil
}

func (p *Page) init(pageID uint32) {
	clear(p.Buf)
	p.setLower(HeaderSize)
	p.setUpper(uint16(len(p.Buf)))
	bx.PutU32At(p.Buf, offPageID, pageID)
	bx.PutU32At(p.Buf, offNextTupleID, 1)
}

// ---- header ----

func (p *Page) Size() int           { return len(p.Buf) }
func (p *Page) Flags() uint16       { return bx.U16At(p.Buf, offFlags) }
func (p *Page) Lower() uint16       { return bx.U16At(p.Buf, offLower) }
func (p *Page) Upper() uint16       { return bx.U16At(p.Buf, offUpper) }
func (p *Page) PageID() uint32      { return bx.U32At(p.Buf, offPageID) }
func (p *Page) Checksum() uint32    { return bx.U32At(p.Buf, offChecksum) }
func (p *Page) Prev() uint32        { return bx.U32At(p.Buf, offPrev) }
func (p *Page) Next() uint32        { return bx.U32At(p.Buf, offNext) }
func (p *Page) nextTupleID() uint32 { return bx.U32At(p.Buf, offNextTupleID) }

func (p *Page) setLower(v uint16)       { bx.PutU16At(p.Buf, offLower, v) }
func (p *Page) setUpper(v uint16)       { bx.PutU16At(p.Buf, offUpper, v) }
func (p *Page) SetFlags(v uint16)       { bx.PutU16At(p.Buf, offFlags, v) }
func (p *Page) SetChecksum(v uint32)    { bx.PutU32At(p.Buf, offChecksum, v) }
func (p *Page) SetPrev(id uint32)       { bx.PutU32At(p.Buf, offPrev, id) }
func (p *Page) SetNext(id uint32)       { bx.PutU32At(p.Buf, offNext, id) }
func (p *Page) setNextTupleID(v uint32) { bx.PutU32At(p.Buf, offNextTupleID, v) }

func (p *Page) FreeSpace() int {
	return int(p.Upper()) - int(p.Lower())
}

func (p *Page) NumTuples() int {
	return (int(p.Lower()) - HeaderSize) / SlotSize
}

// IsFull is true exactly when the slot array has reached the tuple data.
func (p *Page) IsFull() bool {
	return p.Lower() >= p.Upper()
}

func (p *Page) IsUninitialized() bool {
	return p.Lower() == 0 && p.Upper() == 0
}

// MaxTupleSize is the largest payload an empty page of this size accepts.
func (p *Page) MaxTupleSize() int {
	return len(p.Buf) - HeaderSize - SlotSize
}

// ---- slots ----

func slotOff(i int) int { return HeaderSize + i*SlotSize }

func (p *Page) slot(i int) Slot {
	o := slotOff(i)
	return Slot{
		TupleID: bx.U32At(p.Buf, o),
		Offset:  bx.U16At(p.Buf, o+4),
		Length:  bx.U16At(p.Buf, o+6),
	}
}

func (p *Page) putSlot(i int, s Slot) {
	o := slotOff(i)
	bx.PutU32At(p.Buf, o, s.TupleID)
	bx.PutU16At(p.Buf, o+4, s.Offset)
	bx.PutU16At(p.Buf, o+6, s.Length)
}

func (p *Page) findSlot(id uint32) (int, Slot, error) {
	for i := 0; i < p.NumTuples(); i++ {
		s := p.slot(i)
		if s.TupleID != id {
			continue
		}
		end := int(s.Offset) + int(s.Length)
		if s.Length == 0 || int(s.Offset) < int(p.Upper()) || end > len(p.Buf) {
			return -1, Slot{}, ErrCorruption
		}
		return i, s, nil
	}
	return -1, Slot{}, ErrTupleNotFound
}

// ---- tuples ----

// InsertTuple stores data and returns its tuple id. The page is left
// untouched when the payload and its slot do not fit.
func (p *Page) InsertTuple(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, ErrEmptyTuple
	}
	if len(data) > p.MaxTupleSize() {
		return 0, ErrTupleTooLarge
	}
	if len(data)+SlotSize > p.FreeSpace() {
		return 0, ErrPageFull
	}

	id := p.nextTupleID()
	u := int(p.Upper()) - len(data)
	copy(p.Buf[u:], data)
	p.putSlot(p.NumTuples(), Slot{TupleID: id, Offset: uint16(u), Length: uint16(len(data))})
	p.setUpper(uint16(u))
	p.setLower(p.Lower() + SlotSize)
	p.setNextTupleID(id + 1)
	return id, nil
}

// ReadTuple returns the payload of tuple id. The slice aliases the page.
func (p *Page) ReadTuple(id uint32) ([]byte, error) {
	_, s, err := p.findSlot(id)
	if err != nil {
		return nil, err
	}
	return p.Buf[s.Offset : int(s.Offset)+int(s.Length)], nil
}

// Tuples returns copies of every live tuple in insertion order.
func (p *Page) Tuples() []Tuple {
	n := p.NumTuples()
	out := make([]Tuple, 0, n)
	for i := 0; i < n; i++ {
		s := p.slot(i)
		data := make([]byte, s.Length)
		copy(data, p.Buf[s.Offset:int(s.Offset)+int(s.Length)])
		out = append(out, Tuple{ID: s.TupleID, Offset: s.Offset, Length: s.Length, Data: data})
	}
	return out
}

// Payloads is Tuples without the slot metadata.
func (p *Page) Payloads() [][]byte {
	ts := p.Tuples()
	out := make([][]byte, len(ts))
	for i, t := range ts {
		out[i] = t.Data
	}
	return out
}

// compactOut closes the gap left by the payload at [off, off+length):
// everything stored below it moves up by length and upper follows.
func (p *Page) compactOut(off, length uint16) {
	up := p.Upper()
	copy(p.Buf[up+length:off+length], p.Buf[up:off])
	clear(p.Buf[up : up+length])
	for i := 0; i < p.NumTuples(); i++ {
		s := p.slot(i)
		if s.Offset < off {
			s.Offset += length
			p.putSlot(i, s)
		}
	}
	p.setUpper(up + length)
}

// RemoveTupleByID deletes the tuple and reclaims both its slot and its bytes.
func (p *Page) RemoveTupleByID(id uint32) error {
	i, s, err := p.findSlot(id)
	if err != nil {
		return err
	}
	p.compactOut(s.Offset, s.Length)

	n := p.NumTuples()
	copy(p.Buf[slotOff(i):slotOff(n-1)], p.Buf[slotOff(i+1):slotOff(n)])
	clear(p.Buf[slotOff(n-1):slotOff(n)])
	p.setLower(p.Lower() - SlotSize)
	return nil
}

// UpdateTupleByID replaces the payload of id in place, keeping the id and
// slot position. It fails without touching the page when the new payload
// does not fit in the free space plus the old payload's bytes.
func (p *Page) UpdateTupleByID(id uint32, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyTuple
	}
	i, s, err := p.findSlot(id)
	if err != nil {
		return err
	}
	if len(data) > int(s.Length)+p.FreeSpace() {
		return ErrNotEnoughSpace
	}

	p.compactOut(s.Offset, s.Length)
	u := int(p.Upper()) - len(data)
	copy(p.Buf[u:], data)
	p.putSlot(i, Slot{TupleID: id, Offset: uint16(u), Length: uint16(len(data))})
	p.setUpper(uint16(u))
	return nil
}

// ---- checksum ----

var zeroChecksum [4]byte

// ComputeChecksum hashes the page with the checksum field treated as zero.
// 0 is reserved for "disabled" so it is mapped to 1.
func (p *Page) ComputeChecksum() uint32 {
	h := murmur3.New32()
	_, _ = h.Write(p.Buf[:offChecksum])
	_, _ = h.Write(zeroChecksum[:])
	_, _ = h.Write(p.Buf[offChecksum+4:])
	sum := h.Sum32()
	if sum == 0 {
		sum = 1
	}
	return sum
}

func (p *Page) StampChecksum() {
	p.SetChecksum(p.ComputeChecksum())
}

// VerifyChecksum reports whether the stored checksum matches. Pages written
// with checksums disabled always verify.
func (p *Page) VerifyChecksum() bool {
	c := p.Checksum()
	return c == 0 || c == p.ComputeChecksum()
}
