package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tuannm99/relcore/internal/alias/bx"
	"github.com/tuannm99/relcore/internal/alias/util"
	"github.com/tuannm99/relcore/internal/catalog"
)

// StorageManager performs durable I/O for the catalog blob and for pages.
// It holds configuration only; pages and the catalog live in the buffer pool.
type StorageManager struct {
	fs       afero.Fs
	pageSize int
	checksum bool
	log      *slog.Logger
}

// NewStorageManager uses fsys for the catalog file. A nil fsys means the OS
// filesystem.
func NewStorageManager(fsys afero.Fs, pageSize int, checksum bool) (*StorageManager, error) {
	if !validSize(pageSize) {
		return nil, fmt.Errorf("%w: %d", ErrWrongSize, pageSize)
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &StorageManager{
		fs:       fsys,
		pageSize: pageSize,
		checksum: checksum,
		log:      slog.Default(),
	}, nil
}

func (sm *StorageManager) PageSize() int { return sm.pageSize }

// ---- catalog ----

// ReadCatalog loads the catalog at path. A missing file yields an empty
// catalog which is written back immediately; anything unreadable is fatal.
func (sm *StorageManager) ReadCatalog(path string) (*catalog.Catalog, error) {
	data, err := afero.ReadFile(sm.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		sm.log.Info("storage_manager: catalog not found, creating empty", "path", path)
		c := catalog.Empty()
		if err := sm.WriteCatalog(path, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage_manager: read catalog %s: %w", path, err)
	}

	var tables map[string]*catalog.Table
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalogCorrupt, path, err)
	}
	if tables == nil {
		return nil, fmt.Errorf("%w: %s: not a table map", ErrCatalogCorrupt, path)
	}
	for name, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("%w: %s: table %q is null", ErrCatalogCorrupt, path, name)
		}
		if t.Name != name {
			return nil, fmt.Errorf("%w: %s: key %q holds table %q", ErrCatalogCorrupt, path, name, t.Name)
		}
		if t.Columns == nil {
			t.Columns = make(map[string]catalog.Column)
		}
	}
	sm.log.Debug("storage_manager: catalog loaded", "path", path, "tables", len(tables))
	return catalog.New(tables), nil
}

// WriteCatalog serializes the whole table map and replaces the file.
func (sm *StorageManager) WriteCatalog(path string, c *catalog.Catalog) error {
	data, err := json.MarshalIndent(c.Tables, "", "  ")
	if err != nil {
		return fmt.Errorf("storage_manager: encode catalog: %w", err)
	}
	if err := sm.fs.MkdirAll(filepath.Dir(path), FileMode0755); err != nil {
		return fmt.Errorf("storage_manager: write catalog %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(sm.fs, tmp, data, FileMode0644); err != nil {
		return fmt.Errorf("storage_manager: write catalog %s: %w", path, err)
	}
	if err := sm.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage_manager: write catalog %s: %w", path, err)
	}
	sm.log.Debug("storage_manager: catalog written", "path", path, "tables", len(c.Tables))
	return nil
}

// ---- pages ----

func (sm *StorageManager) pagesPerSegment() int64 {
	return SegmentSize / int64(sm.pageSize)
}

func (sm *StorageManager) locate(pageID uint32) (segNo int32, offset int64) {
	pps := sm.pagesPerSegment()
	segNo = int32(int64(pageID) / pps)
	offset = (int64(pageID) % pps) * int64(sm.pageSize)
	return segNo, offset
}

// ReadPage reads exactly one page into dst. Bytes past the end of the
// segment read as zero.
func (sm *StorageManager) ReadPage(fset FileSet, pageID uint32, dst []byte) error {
	if len(dst) != sm.pageSize {
		return fmt.Errorf("%w: dst is %d bytes, want %d", ErrWrongSize, len(dst), sm.pageSize)
	}
	segNo, off := sm.locate(pageID)
	seg, err := fset.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer util.CloseQuietly(seg, "segment")

	n, err := seg.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("storage_manager: read page %d: %w", pageID, err)
	}
	clear(dst[n:])
	return nil
}

// WritePage writes exactly one page from src.
func (sm *StorageManager) WritePage(fset FileSet, pageID uint32, src []byte) error {
	if len(src) != sm.pageSize {
		return fmt.Errorf("%w: src is %d bytes, want %d", ErrWrongSize, len(src), sm.pageSize)
	}
	segNo, off := sm.locate(pageID)
	seg, err := fset.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer util.CloseQuietly(seg, "segment")

	n, err := seg.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("storage_manager: write page %d: %w", pageID, err)
	}
	if n != len(src) {
		return io.ErrShortWrite
	}
	return nil
}

// LoadPage reads and validates a page. A page that was never written (or
// was zeroed by ZeroPage) is reported as ErrPageNotFound.
func (sm *StorageManager) LoadPage(fset FileSet, pageID uint32) (*Page, error) {
	if pageID == InvalidPageID {
		return nil, fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}
	buf := make([]byte, sm.pageSize)
	if err := sm.ReadPage(fset, pageID, buf); err != nil {
		return nil, err
	}
	if bx.AllZero(buf) {
		return nil, fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}

	p, err := FromBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("storage_manager: page %d: %w", pageID, err)
	}
	if p.PageID() != pageID {
		return nil, fmt.Errorf("storage_manager: page %d: %w: header says %d", pageID, ErrCorruption, p.PageID())
	}
	if !p.VerifyChecksum() {
		return nil, fmt.Errorf("storage_manager: page %d: %w", pageID, ErrChecksumMismatch)
	}
	return p, nil
}

// SavePage writes p at its own page id, stamping the checksum when enabled.
func (sm *StorageManager) SavePage(fset FileSet, p *Page) error {
	if p.PageID() == InvalidPageID {
		return fmt.Errorf("storage_manager: refusing to write page id %d", InvalidPageID)
	}
	if sm.checksum {
		p.StampChecksum()
	} else {
		p.SetChecksum(0)
	}
	return sm.WritePage(fset, p.PageID(), p.Buf)
}

// ZeroPage overwrites a page with zeros so later loads report it missing.
func (sm *StorageManager) ZeroPage(fset FileSet, pageID uint32) error {
	return sm.WritePage(fset, pageID, make([]byte, sm.pageSize))
}

// CountPages returns one past the highest page slot present in fset.
func (sm *StorageManager) CountPages(fset FileSet) (uint32, error) {
	segs, err := fset.Segments()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, segNo := range segs {
		seg, err := fset.OpenSegment(segNo)
		if err != nil {
			return 0, err
		}
		size, err := seg.Size()
		util.CloseQuietly(seg, "segment")
		if err != nil {
			return 0, err
		}
		if size <= 0 {
			continue
		}
		pages := (size + int64(sm.pageSize) - 1) / int64(sm.pageSize)
		if n := int64(segNo)*sm.pagesPerSegment() + pages; n > total {
			total = n
		}
	}
	return uint32(total), nil
}
