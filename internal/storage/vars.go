package storage

import (
	"errors"
	"fmt"
)

const (
	OneKB = 1 << 10
	OneMB = 1 << 20
	OneGB = 1 << 30

	SegmentSize     = OneGB // 1 GiB per segment file
	DefaultPageSize = 4 * OneKB
	MinPageSize     = 512
	MaxPageSize     = 32 * OneKB // slot offsets are u16

	HeaderSize = 28 // see page.go for the field layout
	SlotSize   = 8  // tupleID u32, offset u16, length u16

	// InvalidPageID terminates a page chain; real ids start at 1.
	InvalidPageID uint32 = 0
)

const (
	FileMode0644 = 0o644 // rw-r--r--
	FileMode0755 = 0o755 // rwxr-xr-x
)

var (
	ErrWrongSize        = errors.New("page: buffer size out of range")
	ErrCorruption       = errors.New("page: corrupt header or slot bounds")
	ErrPageFull         = errors.New("page: page is full")
	ErrTupleTooLarge    = fmt.Errorf("%w: tuple larger than an empty page", ErrPageFull)
	ErrEmptyTuple       = errors.New("page: empty tuple")
	ErrTupleNotFound    = errors.New("page: tuple not found")
	ErrNotEnoughSpace   = errors.New("page: not enough space for update")
	ErrChecksumMismatch = errors.New("page: checksum mismatch")

	ErrPageNotFound   = errors.New("storage_manager: page not found")
	ErrCatalogCorrupt = errors.New("storage_manager: catalog is corrupt")
)
