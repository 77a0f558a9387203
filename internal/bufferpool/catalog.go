package bufferpool

import (
	"fmt"

	"github.com/tuannm99/relcore/internal/catalog"
)

// Catalog returns a snapshot of the catalog.
func (p *Pool) Catalog() *catalog.Catalog {
	p.catMu.Lock()
	defer p.catMu.Unlock()
	return p.catalog.Clone()
}

// WithCatalog lends the live catalog to fn under the catalog lock.
// fn must not mutate it and must not call back into the pool's catalog API.
func (p *Pool) WithCatalog(fn func(*catalog.Catalog) error) error {
	p.catMu.Lock()
	defer p.catMu.Unlock()
	return fn(p.catalog)
}

// AddTableToCatalog stores t (replacing a same-named table) and writes the
// catalog through.
func (p *Pool) AddTableToCatalog(t catalog.Table) error {
	p.catMu.Lock()
	defer p.catMu.Unlock()

	p.catalog.AddTable(t)
	if t.OriginPage != 0 {
		p.originPages[t.Name] = t.OriginPage
	} else {
		delete(p.originPages, t.Name)
	}
	return p.persistCatalog()
}

// RemoveTableFromCatalog drops name and writes the catalog through. The
// removed table is returned so callers can release its pages.
func (p *Pool) RemoveTableFromCatalog(name string) (catalog.Table, error) {
	p.catMu.Lock()
	defer p.catMu.Unlock()

	t, ok := p.catalog.RemoveTable(name)
	if !ok {
		return catalog.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	delete(p.originPages, name)
	return t, p.persistCatalog()
}

// UpdateTableInCatalog replaces name with t (t.Name may differ, which
// renames) and writes the catalog through.
func (p *Pool) UpdateTableInCatalog(name string, t catalog.Table) error {
	p.catMu.Lock()
	defer p.catMu.Unlock()

	if !p.catalog.HasTable(name) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	p.catalog.UpdateTable(name, t)
	delete(p.originPages, name)
	if t.OriginPage != 0 {
		p.originPages[t.Name] = t.OriginPage
	}
	return p.persistCatalog()
}

// persistCatalog writes the whole catalog. Caller holds catMu.
func (p *Pool) persistCatalog() error {
	if err := p.sm.WriteCatalog(p.catalogPath, p.catalog); err != nil {
		p.log.Error("bufferpool: catalog write-through failed", "err", err)
		return err
	}
	return nil
}
