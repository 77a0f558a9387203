package storage

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

const dumpPreviewBytes = 24

// Dump writes the header, the free range and one line per live tuple.
func (p *Page) Dump(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "page %d  prev=%d next=%d  checksum=%08x flags=%04x\n",
		p.PageID(), p.Prev(), p.Next(), p.Checksum(), p.Flags())
	fmt.Fprintf(&b, "size=%d free=[%d,%d) %d bytes  tuples=%d next_tuple_id=%d full=%t\n",
		p.Size(), p.Lower(), p.Upper(), p.FreeSpace(), p.NumTuples(), p.nextTupleID(), p.IsFull())

	tuples := p.Tuples()
	if len(tuples) == 0 {
		b.WriteString("  (no tuples)\n")
	}
	for _, t := range tuples {
		data := t.Data
		cut := ""
		if len(data) > dumpPreviewBytes {
			data, cut = data[:dumpPreviewBytes], "..."
		}
		fmt.Fprintf(&b, "  #%-4d off=%-5d len=%-5d %s%s  |%s|\n",
			t.ID, t.Offset, t.Length, hex.EncodeToString(data), cut, printable(data))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// DumpString is Dump into a string.
func (p *Page) DumpString() string {
	var b strings.Builder
	_ = p.Dump(&b)
	return b.String()
}

// printable keeps printable runes and replaces everything else with '.'.
// Invalid UTF-8 is read byte by byte.
func printable(data []byte) string {
	var b strings.Builder
	for len(data) > 0 {
		r, n := utf8.DecodeRune(data)
		if unicode.IsPrint(r) && (n > 1 || r < utf8.RuneSelf) {
			b.WriteRune(r)
		} else {
			b.WriteByte('.')
		}
		data = data[n:]
	}
	return b.String()
}
