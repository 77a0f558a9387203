package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sasha-s/go-deadlock"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/storage"
)

const DefaultCapacity = 64

var (
	ErrNoFreeFrame  = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPagePinned   = errors.New("bufferpool: page is pinned")
	ErrUnknownTable = errors.New("bufferpool: table not in catalog")
)

// Options configures a Pool.
type Options struct {
	Capacity    int
	Replacer    string // clock | lru
	CatalogPath string
}

// Frame holds one resident page. Dirtiness is tracked in Pool.dirtyPages.
type Frame struct {
	PageID uint32
	Page   *storage.Page
	Pin    int32
}

// TupleID locates a stored tuple: its page and the page-local tuple id.
type TupleID struct {
	PageID uint32
	ID     uint32
}

// Pool caches pages of a single FileSet and owns the catalog.
//
// Two critical sections: catMu guards the catalog and originPages, mu guards
// frames, pageTable, dirtyPages, the replacer and nextPageID. When both are
// needed catMu is taken first.
type Pool struct {
	sm          *storage.StorageManager
	fs          storage.FileSet
	catalogPath string
	log         *slog.Logger

	catMu       deadlock.Mutex
	catalog     *catalog.Catalog
	originPages map[string]uint32 // table -> head of its page chain

	mu         deadlock.Mutex
	frames     []*Frame       // len == capacity, nil == free slot
	pageTable  map[uint32]int // PageID -> frame index
	dirtyPages mapset.Set[int]
	replacer   Replacer
	nextPageID uint32
}

// NewPool loads the catalog through sm and sizes the page id space from fs.
func NewPool(sm *storage.StorageManager, fs storage.FileSet, opts Options) (*Pool, error) {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	repl, err := NewReplacer(opts.Replacer, capacity)
	if err != nil {
		return nil, err
	}

	cat, err := sm.ReadCatalog(opts.CatalogPath)
	if err != nil {
		return nil, err
	}
	count, err := sm.CountPages(fs)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		sm:          sm,
		fs:          fs,
		catalogPath: opts.CatalogPath,
		log:         slog.Default(),
		catalog:     cat,
		originPages: make(map[string]uint32),
		frames:      make([]*Frame, capacity),
		pageTable:   make(map[uint32]int),
		dirtyPages:  mapset.NewThreadUnsafeSet[int](),
		replacer:    repl,
		nextPageID:  max(count, 1),
	}
	for name, t := range cat.Tables {
		if t.OriginPage != storage.InvalidPageID {
			p.originPages[name] = t.OriginPage
		}
	}
	p.log.Debug("bufferpool: open",
		"capacity", capacity, "replacer", opts.Replacer,
		"tables", len(cat.Tables), "next_page", p.nextPageID)
	return p, nil
}

func (p *Pool) Capacity() int { return len(p.frames) }

// ---- pages ----

// GetPage pins and returns pageID, faulting it in on a miss.
func (p *Pool) GetPage(pageID uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		f.Pin++
		p.replacer.RecordAccess(idx)
		if f.Pin == 1 {
			p.replacer.SetEvictable(idx, false)
		}
		return f.Page, nil
	}

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	page, err := p.sm.LoadPage(p.fs, pageID)
	if err != nil {
		return nil, err
	}
	p.install(idx, page)
	return page, nil
}

// NewPage allocates a fresh page id and returns it pinned and dirty.
func (p *Pool) NewPage() (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	id := p.nextPageID
	page, err := storage.NewPage(make([]byte, p.sm.PageSize()), id)
	if err != nil {
		return nil, err
	}
	p.nextPageID++
	p.install(idx, page)
	p.dirtyPages.Add(idx)
	p.log.Debug("bufferpool: new page", "page", id, "frame", idx)
	return page, nil
}

// acquireFrame returns a free frame index, evicting an unpinned frame when
// the pool is full. The returned frame is empty. Caller holds mu.
func (p *Pool) acquireFrame() (int, error) {
	for i, f := range p.frames {
		if f == nil {
			return i, nil
		}
	}

	idx, ok := p.replacer.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}
	victim := p.frames[idx]
	if victim.Pin != 0 {
		p.replacer.RecordAccess(idx)
		return -1, ErrNoFreeFrame
	}
	if p.dirtyPages.Contains(idx) {
		if err := p.sm.SavePage(p.fs, victim.Page); err != nil {
			p.replacer.RecordAccess(idx)
			p.replacer.SetEvictable(idx, true)
			return -1, err
		}
		p.dirtyPages.Remove(idx)
	}
	p.log.Debug("bufferpool: evict", "page", victim.PageID, "frame", idx)
	delete(p.pageTable, victim.PageID)
	p.frames[idx] = nil
	return idx, nil
}

func (p *Pool) install(idx int, page *storage.Page) {
	p.frames[idx] = &Frame{PageID: page.PageID(), Page: page, Pin: 1}
	p.pageTable[page.PageID()] = idx
	p.replacer.RecordAccess(idx)
	p.replacer.SetEvictable(idx, false)
}

// Unpin drops one pin; dirty marks the frame for flushing. Unknown or
// already unpinned pages are ignored.
func (p *Pool) Unpin(pageID uint32, dirty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return
	}
	f := p.frames[idx]
	if dirty {
		p.dirtyPages.Add(idx)
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			p.replacer.SetEvictable(idx, true)
		}
	}
}

// IsDirty reports whether pageID is resident with unflushed writes.
func (p *Pool) IsDirty(pageID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.pageTable[pageID]
	return ok && p.dirtyPages.Contains(idx)
}

// PinCount of a resident page, 0 when not resident.
func (p *Pool) PinCount(pageID uint32) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.pageTable[pageID]; ok {
		return p.frames[idx].Pin
	}
	return 0
}

// FlushPage writes pageID if it is resident and dirty.
func (p *Pool) FlushPage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return nil
	}
	return p.flushFrame(idx)
}

func (p *Pool) flushFrame(idx int) error {
	if !p.dirtyPages.Contains(idx) {
		return nil
	}
	if err := p.sm.SavePage(p.fs, p.frames[idx].Page); err != nil {
		return err
	}
	p.dirtyPages.Remove(idx)
	return nil
}

func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, idx := range p.dirtyPages.ToSlice() {
		if err := p.flushFrame(idx); err != nil {
			return err
		}
	}
	return nil
}

// DeallocatePage drops pageID from the pool and zeroes it on disk, so later
// reads report storage.ErrPageNotFound. Pinned pages are refused.
func (p *Pool) DeallocatePage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		if p.frames[idx].Pin != 0 {
			return fmt.Errorf("%w: page %d", ErrPagePinned, pageID)
		}
		delete(p.pageTable, pageID)
		p.frames[idx] = nil
		p.dirtyPages.Remove(idx)
		p.replacer.Remove(idx)
	}
	return p.sm.ZeroPage(p.fs, pageID)
}

// Close flushes every dirty frame.
func (p *Pool) Close() error {
	if err := p.FlushAll(); err != nil {
		return err
	}
	p.log.Debug("bufferpool: closed")
	return nil
}
