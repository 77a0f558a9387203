package bufferpool

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tuannm99/relcore/internal/storage"
)

// OriginPage returns the head of table's page chain, or
// storage.InvalidPageID when nothing was inserted yet.
func (p *Pool) OriginPage(table string) uint32 {
	p.catMu.Lock()
	defer p.catMu.Unlock()
	return p.originPages[table]
}

// InsertTuple appends data to table's chain. A full tail page gets a new
// successor linked both ways; the very first insert creates the origin page
// and records it in the catalog.
func (p *Pool) InsertTuple(table string, data []byte) (TupleID, error) {
	p.catMu.Lock()
	defer p.catMu.Unlock()

	t, ok := p.catalog.GetTable(table)
	if !ok {
		return TupleID{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	origin := p.originPages[table]
	if origin == storage.InvalidPageID {
		page, err := p.NewPage()
		if err != nil {
			return TupleID{}, err
		}
		slot, err := page.InsertTuple(data)
		if err != nil {
			p.Unpin(page.PageID(), false)
			_ = p.DeallocatePage(page.PageID())
			return TupleID{}, err
		}
		p.Unpin(page.PageID(), true)

		t.OriginPage = page.PageID()
		p.catalog.UpdateTable(table, t)
		p.originPages[table] = t.OriginPage
		p.log.Debug("bufferpool: origin page created", "table", table, "page", t.OriginPage)
		if err := p.persistCatalog(); err != nil {
			return TupleID{}, err
		}
		return TupleID{PageID: t.OriginPage, ID: slot}, nil
	}

	tail, err := p.tailOf(origin)
	if err != nil {
		return TupleID{}, err
	}
	slot, err := tail.InsertTuple(data)
	if err == nil {
		p.Unpin(tail.PageID(), true)
		return TupleID{PageID: tail.PageID(), ID: slot}, nil
	}
	if !errors.Is(err, storage.ErrPageFull) || errors.Is(err, storage.ErrTupleTooLarge) {
		p.Unpin(tail.PageID(), false)
		return TupleID{}, err
	}

	// tail stays unpinned across NewPage: a one-frame pool has no other frame.
	tailID := tail.PageID()
	p.Unpin(tailID, false)

	next, err := p.NewPage()
	if err != nil {
		return TupleID{}, err
	}
	nextID := next.PageID()
	slot, err = next.InsertTuple(data)
	if err != nil {
		p.Unpin(nextID, false)
		_ = p.DeallocatePage(nextID)
		return TupleID{}, err
	}
	next.SetPrev(tailID)
	p.Unpin(nextID, true)

	tail, err = p.GetPage(tailID)
	if err != nil {
		_ = p.DeallocatePage(nextID)
		return TupleID{}, fmt.Errorf("bufferpool: relink tail %d: %w", tailID, err)
	}
	tail.SetNext(nextID)
	p.Unpin(tailID, true)
	p.log.Debug("bufferpool: chain extended", "table", table, "from", tailID, "to", nextID)
	return TupleID{PageID: nextID, ID: slot}, nil
}

// chainWalk remembers the pages seen while following next links so that a
// corrupt link back into the chain ends the walk.
type chainWalk struct {
	origin uint32
	seen   mapset.Set[uint32]
}

func newChainWalk(origin uint32) *chainWalk {
	return &chainWalk{origin: origin, seen: mapset.NewThreadUnsafeSet[uint32]()}
}

func (w *chainWalk) visit(id uint32) error {
	if !w.seen.Add(id) {
		return fmt.Errorf("%w: chain from %d revisits page %d", storage.ErrCorruption, w.origin, id)
	}
	return nil
}

// tailOf walks the chain from origin and returns its last page, pinned.
func (p *Pool) tailOf(origin uint32) (*storage.Page, error) {
	walk := newChainWalk(origin)
	id := origin
	for {
		if err := walk.visit(id); err != nil {
			return nil, err
		}
		page, err := p.GetPage(id)
		if err != nil {
			return nil, err
		}
		next := page.Next()
		if next == storage.InvalidPageID {
			return page, nil
		}
		p.Unpin(id, false)
		id = next
	}
}

// GetAllDataForOrigin collects every payload along the chain starting at
// origin, page by page in tuple order. A missing page anywhere in the chain
// is storage.ErrPageNotFound, a cycle is storage.ErrCorruption.
func (p *Pool) GetAllDataForOrigin(origin uint32) ([][]byte, error) {
	out := make([][]byte, 0)
	if origin == storage.InvalidPageID {
		return out, nil
	}
	walk := newChainWalk(origin)
	id := origin
	for id != storage.InvalidPageID {
		if err := walk.visit(id); err != nil {
			return nil, err
		}
		page, err := p.GetPage(id)
		if err != nil {
			return nil, fmt.Errorf("bufferpool: chain from %d: %w", origin, err)
		}
		out = append(out, page.Payloads()...)
		next := page.Next()
		p.Unpin(id, false)
		id = next
	}
	return out, nil
}

// FreeChain deallocates every page reachable from origin.
func (p *Pool) FreeChain(origin uint32) error {
	walk := newChainWalk(origin)
	id := origin
	for id != storage.InvalidPageID {
		if err := walk.visit(id); err != nil {
			return err
		}
		page, err := p.GetPage(id)
		if err != nil {
			return err
		}
		next := page.Next()
		p.Unpin(id, false)
		if err := p.DeallocatePage(id); err != nil {
			return err
		}
		id = next
	}
	return nil
}
