package schema

import (
	"context"
	"fmt"
	"strings"
)

// Table owns ordered columns and indexes plus engine-specific options.
type Table struct {
	lifecycle
	schema         *Schema
	columns        collection[*Column]
	indexes        collection[*Index]
	options        []TableOption
	optionsChanged bool
	indexesStale   bool
}

// NewTable creates an empty table in StateCreate.
func NewTable(name string) *Table {
	t := &Table{}
	t.init(name, t)
	return t
}

// Schema returns the owning schema, or nil while detached.
func (t *Table) Schema() *Schema { return t.schema }

// AddColumn attaches c to the table. See AddColumnContext.
func (t *Table) AddColumn(c *Column) error {
	return t.AddColumnContext(context.Background(), c)
}

// AddColumnContext attaches c to the table. A live column with the same name
// is a conflict; a column of that name still pending deletion is flushed away
// first. Adding a serial column to a table without a primary key creates the
// PRIMARY index.
func (t *Table) AddColumnContext(ctx context.Context, c *Column) error {
	if c == nil {
		return &ConfigurationError{Entity: "table", Name: t.name, Message: "column is nil"}
	}
	if strings.TrimSpace(c.Name()) == "" {
		return c.configErr("name must not be empty")
	}
	if err := c.validate(); err != nil {
		return err
	}
	if !t.live() {
		return &ConflictError{Entity: "table", Name: t.name, Message: "cannot add a column to a table pending deletion"}
	}
	if c.table != nil {
		return &ConflictError{Entity: "column", Name: c.Name(), Message: fmt.Sprintf("already belongs to table %q", c.table.Name())}
	}
	if !c.ShouldCreate() {
		return &ConflictError{Entity: "column", Name: c.Name(), Message: fmt.Sprintf("cannot attach a column in state %s", c.State())}
	}

	if existing, ok := t.columns.find(c.Name(), t.caseSensitive()); ok {
		if existing.live() {
			return &ConflictError{Entity: "column", Name: c.Name(), Message: fmt.Sprintf("already exists in table %q", t.name)}
		}
		if err := t.flushPending(ctx); err != nil {
			return err
		}
	}

	c.sink = t
	c.table = t
	t.columns.add(c)

	if c.typ == TypeSerial && t.PrimaryKey() == nil {
		pk := NewIndex(PrimaryKeyName, c)
		pk.typ = IndexPrimary
		t.attachIndex(pk)
	}
	t.markForAlter()
	return nil
}

// Column returns the live column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	return t.columns.lookup(name, t.caseSensitive())
}

// HasColumn reports whether a live column has the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Columns returns the live columns in order.
func (t *Table) Columns() []*Column { return t.columns.live() }

// AllColumns also returns columns pending deletion.
func (t *Table) AllColumns() []*Column { return t.columns.all() }

// CountColumns returns the number of live columns.
func (t *Table) CountColumns() int { return len(t.columns.live()) }

// DropColumn marks a column for deletion together with every index that
// covers it.
func (t *Table) DropColumn(name string) error {
	c, ok := t.Column(name)
	if !ok {
		return &NotFoundError{Entity: "column", Name: name, Parent: t.name}
	}
	for _, idx := range t.indexes.live() {
		if idx.covers(c) {
			idx.markForDeletion()
		}
	}
	c.markForDeletion()
	return nil
}

// AddIndex attaches idx to the table. See AddIndexContext.
func (t *Table) AddIndex(idx *Index) error {
	return t.AddIndexContext(context.Background(), idx)
}

// AddIndexContext attaches idx. A second primary key replaces the first in
// memory. An index with the same name replaces the old one; when the old one
// is live it is dropped by a forced flush before idx takes its name.
func (t *Table) AddIndexContext(ctx context.Context, idx *Index) error {
	if idx == nil {
		return &ConfigurationError{Entity: "table", Name: t.name, Message: "index is nil"}
	}
	if strings.TrimSpace(idx.Name()) == "" {
		return &ConfigurationError{Entity: "index", Name: idx.Name(), Message: "name must not be empty"}
	}
	if len(idx.columns) == 0 {
		return &ConflictError{Entity: "index", Name: idx.Name(), Message: "an index needs at least one column"}
	}
	if !t.live() {
		return &ConflictError{Entity: "table", Name: t.name, Message: "cannot add an index to a table pending deletion"}
	}
	if idx.table != nil || !idx.ShouldCreate() {
		return &ConflictError{Entity: "index", Name: idx.Name(), Message: "index is already attached"}
	}
	for _, c := range idx.columns {
		if c.table != t || !c.live() {
			return &ConflictError{Entity: "index", Name: idx.Name(), Message: fmt.Sprintf("column %q is not a live column of table %q", c.Name(), t.name)}
		}
	}

	if idx.typ == IndexPrimary {
		if pk := t.PrimaryKey(); pk != nil {
			switch {
			case !pk.ShouldCreate():
				idx.supersedes = pk.Name()
			case pk.supersedes != "":
				idx.supersedes = pk.supersedes
			}
			pk.forceState(StateDeleted)
			t.indexes.remove(pk)
		}
	}

	if existing, ok := t.indexes.find(idx.Name(), t.caseSensitive()); ok {
		existing.markForDeletion()
		if existing.ShouldDelete() {
			if err := t.flushPending(ctx); err != nil {
				return err
			}
		}
	}

	t.attachIndex(idx)
	t.markForAlter()
	return nil
}

func (t *Table) attachIndex(idx *Index) {
	idx.sink = t
	idx.table = t
	t.indexes.add(idx)
}

// Index returns the live index with the given name.
func (t *Table) Index(name string) (*Index, bool) {
	return t.indexes.lookup(name, t.caseSensitive())
}

// HasIndex reports whether a live index has the given name.
func (t *Table) HasIndex(name string) bool {
	_, ok := t.Index(name)
	return ok
}

// Indexes returns the live indexes in order.
func (t *Table) Indexes() []*Index { return t.indexes.live() }

// AllIndexes also returns indexes pending deletion.
func (t *Table) AllIndexes() []*Index { return t.indexes.all() }

// CountIndexes returns the number of live indexes.
func (t *Table) CountIndexes() int { return len(t.indexes.live()) }

// DropIndex marks an index for deletion.
func (t *Table) DropIndex(name string) error {
	idx, ok := t.Index(name)
	if !ok {
		return &NotFoundError{Entity: "index", Name: name, Parent: t.name}
	}
	idx.markForDeletion()
	return nil
}

// PrimaryKey returns the live primary key, or nil.
func (t *Table) PrimaryKey() *Index {
	for _, idx := range t.indexes.live() {
		if idx.typ == IndexPrimary {
			return idx
		}
	}
	return nil
}

// AddOption sets an engine-specific option, replacing one with the same key.
func (t *Table) AddOption(opt TableOption) {
	for i, existing := range t.options {
		if strings.EqualFold(existing.Key, opt.Key) {
			if existing.Value == opt.Value {
				return
			}
			t.options[i] = opt
			t.optionsChanged = true
			t.markForAlter()
			return
		}
	}
	t.options = append(t.options, opt)
	t.optionsChanged = true
	t.markForAlter()
}

// Option returns the value of an option.
func (t *Table) Option(key string) (string, bool) {
	for _, opt := range t.options {
		if strings.EqualFold(opt.Key, key) {
			return opt.Value, true
		}
	}
	return "", false
}

// Options returns a copy of the options.
func (t *Table) Options() []TableOption {
	return append([]TableOption(nil), t.options...)
}

// Drop marks the table for deletion.
func (t *Table) Drop() error {
	if t.schema != nil {
		return t.schema.DropTable(t.name)
	}
	t.markForDeletion()
	return nil
}

func (t *Table) flushPending(ctx context.Context) error {
	if t.schema == nil || t.schema.manager == nil {
		return &ConflictError{Entity: "table", Name: t.name, Message: "not attached to a managed schema"}
	}
	return t.schema.manager.flushTableNow(ctx, t.schema, t)
}

// refreshIndexes replaces the local indexes with what the database reports.
func (t *Table) refreshIndexes(defs []IndexDefinition) {
	cs := t.caseSensitive()
	keep := make(map[*Index]bool, len(defs))
	for _, def := range defs {
		var cols []*Column
		for _, name := range def.Columns {
			if c, ok := t.columns.lookup(name, cs); ok {
				cols = append(cols, c)
			}
		}
		if len(cols) == 0 {
			continue
		}
		idx, ok := t.indexes.lookup(def.Name, cs)
		if !ok && def.Type == IndexPrimary {
			idx = t.PrimaryKey()
			ok = idx != nil
		}
		if !ok {
			idx = NewIndex(def.Name)
			t.attachIndex(idx)
		}
		idx.typ = def.Type
		idx.liveType = def.Type
		idx.columns = cols
		idx.supersedes = ""
		idx.forceState(StateSynced)
		keep[idx] = true
	}
	for _, idx := range t.indexes.all() {
		if !keep[idx] {
			idx.forceState(StateDeleted)
			t.indexes.remove(idx)
		}
	}
}

// persisted settles every child after a successful CREATE or ALTER.
func (t *Table) persisted() {
	for _, c := range t.columns.all() {
		if c.ShouldDelete() {
			c.markDeleted()
			c.destroy()
			continue
		}
		for _, r := range append([]*Reference(nil), c.retired...) {
			r.markDeleted()
			r.destroy()
		}
		if c.ref != nil {
			c.ref.markSynced()
		}
		c.markSynced()
	}
	for _, idx := range t.indexes.all() {
		if idx.ShouldDelete() {
			idx.markDeleted()
			idx.destroy()
			continue
		}
		idx.supersedes = ""
		idx.liveType = idx.typ
		idx.markSynced()
	}
	t.optionsChanged = false
	t.markSynced()
}

func (t *Table) notifyChanged() {
	t.markForAlter()
}

func (t *Table) notifySynced() {
	for _, c := range t.columns.items {
		if !c.IsSynced() || (c.ref != nil && !c.ref.IsSynced()) || len(c.retired) > 0 {
			t.markForAlter()
			return
		}
	}
	for _, idx := range t.indexes.items {
		if !idx.IsSynced() {
			t.markForAlter()
			return
		}
	}
}

func (t *Table) notifyDeleted(child any) {
	switch v := child.(type) {
	case *Column:
		t.columns.remove(v)
	case *Index:
		t.indexes.remove(v)
	}
}

func (t *Table) caseSensitive() bool {
	return t.sink != nil && t.sink.caseSensitive()
}

func (t *Table) onDelete() {
	for _, idx := range t.indexes.live() {
		idx.markForDeletion()
	}
	for _, c := range t.columns.live() {
		c.markForDeletion()
	}
}

func (t *Table) onDestroy() {
	for _, c := range t.columns.all() {
		c.onDestroy()
		c.forceState(StateDeleted)
	}
	for _, idx := range t.indexes.all() {
		idx.forceState(StateDeleted)
	}
}
