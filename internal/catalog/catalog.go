package catalog

import "sort"

// Catalog is the in-memory schema registry. Lookups never fail loudly:
// absence is reported through the bool result and callers decide.
type Catalog struct {
	Tables map[string]*Table
}

func New(tables map[string]*Table) *Catalog {
	if tables == nil {
		tables = make(map[string]*Table)
	}
	return &Catalog{Tables: tables}
}

func Empty() *Catalog { return New(nil) }

// AddTable inserts or overwrites by name. The catalog keeps its own copy.
func (c *Catalog) AddTable(t Table) {
	t = t.Clone()
	c.Tables[t.Name] = &t
}

// GetTable returns a copy; edits to it do not reach the catalog.
func (c *Catalog) GetTable(name string) (Table, bool) {
	t, ok := c.Tables[name]
	if !ok {
		return Table{}, false
	}
	return t.Clone(), true
}

// GetTableMut returns the stored table itself. Every edit through it,
// scalar fields and columns alike, is visible to later lookups.
// Renaming through the handle is not supported; use UpdateTable.
func (c *Catalog) GetTableMut(name string) (*Table, bool) {
	t, ok := c.Tables[name]
	return t, ok
}

func (c *Catalog) RemoveTable(name string) (Table, bool) {
	t, ok := c.Tables[name]
	if !ok {
		return Table{}, false
	}
	delete(c.Tables, name)
	return *t, true
}

// UpdateTable replaces an existing table; unknown names are ignored.
func (c *Catalog) UpdateTable(name string, t Table) {
	if _, ok := c.Tables[name]; !ok {
		return
	}
	if t.Name != name {
		delete(c.Tables, name)
	}
	t = t.Clone()
	c.Tables[t.Name] = &t
}

func (c *Catalog) HasTable(name string) bool {
	_, ok := c.Tables[name]
	return ok
}

func (c *Catalog) GetColumn(table, column string) (Column, bool) {
	t, ok := c.Tables[table]
	if !ok {
		return Column{}, false
	}
	return t.GetColumn(column)
}

func (c *Catalog) AddColumn(table string, col Column) {
	if t, ok := c.Tables[table]; ok {
		t.AddColumn(col)
	}
}

func (c *Catalog) RemoveColumn(table, column string) (Column, bool) {
	t, ok := c.Tables[table]
	if !ok {
		return Column{}, false
	}
	return t.RemoveColumn(column)
}

// UpdateColumn replaces column `column` of `table` with col. A rename is
// allowed: the old key is dropped.
func (c *Catalog) UpdateColumn(table, column string, col Column) {
	t, ok := c.Tables[table]
	if !ok {
		return
	}
	if _, ok := t.Columns[column]; !ok {
		return
	}
	delete(t.Columns, column)
	t.Columns[col.Name] = col
}

func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for n := range c.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies the catalog.
func (c *Catalog) Clone() *Catalog {
	out := make(map[string]*Table, len(c.Tables))
	for k, v := range c.Tables {
		t := v.Clone()
		out[k] = &t
	}
	return New(out)
}
