package schema

import (
	"context"
	"fmt"
	"strings"
)

// Schema is a namespace holding tables. An ignored schema is tracked so its
// name stays reserved, but its tables are never loaded nor flushed.
type Schema struct {
	lifecycle
	manager      *Manager
	tables       collection[*Table]
	ignored      bool
	caseOverride *bool
}

// NewSchema creates a detached schema in StateCreate.
func NewSchema(name string) *Schema {
	s := &Schema{}
	s.init(name, s)
	return s
}

// Manager returns the owning manager, or nil while detached.
func (s *Schema) Manager() *Manager { return s.manager }

// AddTable attaches t. See AddTableContext.
func (s *Schema) AddTable(t *Table, replace bool) error {
	return s.AddTableContext(context.Background(), t, replace)
}

// AddTableContext attaches t to the schema. The schema must belong to a
// Manager and t needs at least one column. A live table with the same name is
// a conflict unless replace is set, in which case the old table is dropped
// right away, before t takes the name.
func (s *Schema) AddTableContext(ctx context.Context, t *Table, replace bool) error {
	if t == nil {
		return &ConfigurationError{Entity: "schema", Name: s.name, Message: "table is nil"}
	}
	if s.manager == nil {
		return &ConflictError{Entity: "schema", Name: s.name, Message: "not attached to a manager"}
	}
	if strings.TrimSpace(t.Name()) == "" {
		return &ConfigurationError{Entity: "table", Name: t.Name(), Message: "name must not be empty"}
	}
	if t.CountColumns() == 0 {
		return &ConflictError{Entity: "table", Name: t.Name(), Message: "a table needs at least one column"}
	}
	if !s.live() {
		return &ConflictError{Entity: "schema", Name: s.name, Message: "cannot add a table to a schema pending deletion"}
	}
	if t.schema != nil || !t.ShouldCreate() {
		return &ConflictError{Entity: "table", Name: t.Name(), Message: "table is already attached"}
	}

	if existing, ok := s.tables.find(t.Name(), s.caseSensitive()); ok {
		if existing.live() && !replace {
			return &ConflictError{Entity: "table", Name: t.Name(), Message: fmt.Sprintf("already exists in schema %q", s.name)}
		}
		existing.markForDeletion()
		if existing.ShouldDelete() {
			if err := s.manager.flushTableNow(ctx, s, existing); err != nil {
				return err
			}
		}
	}

	t.sink = s
	t.schema = s
	s.tables.add(t)
	s.markForAlter()
	return nil
}

// Table returns the live table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	return s.tables.lookup(name, s.caseSensitive())
}

// HasTable reports whether a live table has the given name.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.Table(name)
	return ok
}

// Tables returns the live tables in insertion order.
func (s *Schema) Tables() []*Table { return s.tables.live() }

// AllTables also returns tables pending deletion.
func (s *Schema) AllTables() []*Table { return s.tables.all() }

// CountTables returns the number of live tables.
func (s *Schema) CountTables() int { return len(s.tables.live()) }

// DropTable marks a table for deletion.
func (s *Schema) DropTable(name string) error {
	t, ok := s.Table(name)
	if !ok {
		return &NotFoundError{Entity: "table", Name: name, Parent: s.name}
	}
	t.markForDeletion()
	return nil
}

// Drop marks the schema for deletion.
func (s *Schema) Drop() error {
	if s.manager != nil {
		return s.manager.DropSchema(s.name)
	}
	s.markForDeletion()
	return nil
}

// Ignore excludes the schema from loading and flushing.
func (s *Schema) Ignore() { s.ignored = true }

// Regard undoes Ignore.
func (s *Schema) Regard() { s.ignored = false }

// ShouldBeIgnored reports whether flush and load skip this schema. When the
// manager has an exclusive schema, that decides alone.
func (s *Schema) ShouldBeIgnored() bool {
	if s.manager != nil && s.manager.exclusive != "" {
		return !nameEqual(s.manager.exclusive, s.name, s.manager.caseSensitive())
	}
	return s.ignored
}

// SetCaseSensitive overrides the manager's naming rule for this schema.
func (s *Schema) SetCaseSensitive(on bool) {
	s.caseOverride = &on
}

// Rename is not supported by any driver.
func (s *Schema) Rename(string) error {
	return &UnsupportedError{Operation: "rename", Entity: "schema", Name: s.name}
}

// Flush reconciles only this schema with the database.
func (s *Schema) Flush(ctx context.Context) error {
	if s.manager == nil {
		return &ConflictError{Entity: "schema", Name: s.name, Message: "not attached to a manager"}
	}
	return s.manager.flushSchema(ctx, s)
}

func (s *Schema) notifyChanged() {
	s.markForAlter()
}

func (s *Schema) notifySynced() {
	for _, t := range s.tables.items {
		if !t.IsSynced() {
			s.markForAlter()
			return
		}
	}
}

func (s *Schema) notifyDeleted(child any) {
	if t, ok := child.(*Table); ok {
		s.tables.remove(t)
	}
}

func (s *Schema) caseSensitive() bool {
	if s.caseOverride != nil {
		return *s.caseOverride
	}
	return s.sink != nil && s.sink.caseSensitive()
}

func (s *Schema) onDelete() {
	for _, t := range s.tables.live() {
		t.markForDeletion()
	}
}

func (s *Schema) onDestroy() {
	for _, t := range s.tables.all() {
		t.onDestroy()
		t.forceState(StateDeleted)
	}
}
