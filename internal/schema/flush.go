package schema

import (
	"context"
	"errors"
	"fmt"
)

// Flush reconciles every schema with the database, in insertion order. The
// first failure aborts the flush; entities that were applied stay synced, so
// calling Flush again resumes where it stopped.
func (m *Manager) Flush(ctx context.Context) error {
	for _, s := range m.schemas.all() {
		if err := m.flushSchema(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) flushSchema(ctx context.Context, s *Schema) error {
	if s.ShouldBeIgnored() {
		s.markSynced()
		return nil
	}

	switch s.State() {
	case StateCreate:
		err := m.driver.CreateNamespace(ctx, s.Name())
		if err != nil && !errors.Is(err, ErrAlreadyExists) {
			return driverFailure("create schema "+s.Name(), err)
		}
	case StateAlter, StateSynced:
		// Schema-level alter only records dirty tables.
	case StateDelete:
		if err := m.driver.DropNamespace(ctx, s.Name()); err != nil {
			return driverFailure("drop schema "+s.Name(), err)
		}
		s.markDeleted()
		s.destroy()
		return nil
	case StateDeleted:
		return nil
	default:
		return &UnsupportedError{Operation: "flush in state " + s.State().String(), Entity: "schema", Name: s.Name()}
	}
	s.markSynced()

	if err := m.driver.SelectNamespace(ctx, s.Name()); err != nil {
		return driverFailure("select schema "+s.Name(), err)
	}
	for _, t := range orderTables(s.tables.all()) {
		if err := m.flushTable(ctx, s, t); err != nil {
			return err
		}
	}
	s.markSynced()
	return nil
}

// flushTableNow flushes a single table out of band, used when a name has to
// be freed before a new entity takes it.
func (m *Manager) flushTableNow(ctx context.Context, s *Schema, t *Table) error {
	if err := m.driver.SelectNamespace(ctx, s.Name()); err != nil {
		return driverFailure("select schema "+s.Name(), err)
	}
	return m.flushTable(ctx, s, t)
}

func (m *Manager) flushTable(ctx context.Context, s *Schema, t *Table) error {
	if t.indexesStale && (t.IsSynced() || t.ShouldAlter()) {
		if err := m.refreshIndexes(ctx, s, t); err != nil {
			return err
		}
	}

	switch t.State() {
	case StateSynced, StateDeleted:
		return nil
	case StateAlter:
		plan, err := m.alterPlan(ctx, s, t)
		if err != nil {
			return err
		}
		if !plan.Empty() {
			if err := m.driver.AlterTable(ctx, plan); err != nil {
				return driverFailure("alter table "+t.Name(), err)
			}
		}
		t.persisted()
	case StateCreate:
		plan, err := createPlan(s, t)
		if err != nil {
			return err
		}
		if err := m.driver.CreateTable(ctx, plan); err != nil {
			return driverFailure("create table "+t.Name(), err)
		}
		// The table exists from here on; index names the engine picked are
		// read back now or on the next flush.
		t.persisted()
		t.indexesStale = true
		return m.refreshIndexes(ctx, s, t)
	case StateDelete:
		if err := m.driver.DropTable(ctx, s.Name(), t.Name()); err != nil {
			return driverFailure("drop table "+t.Name(), err)
		}
		t.markDeleted()
		t.destroy()
	default:
		return &UnsupportedError{Operation: "flush in state " + t.State().String(), Entity: "table", Name: t.Name()}
	}
	return nil
}

// refreshIndexes re-reads the indexes of a freshly created table.
func (m *Manager) refreshIndexes(ctx context.Context, s *Schema, t *Table) error {
	defs, err := m.driver.IntrospectIndexes(ctx, s.Name(), t.Name())
	if err != nil {
		return driverFailure("introspect indexes of "+t.Name(), err)
	}
	t.refreshIndexes(defs)
	t.indexesStale = false
	return nil
}

func createPlan(s *Schema, t *Table) (*TablePlan, error) {
	plan := &TablePlan{Namespace: s.Name(), Table: t.Name(), Options: t.Options()}
	var refs []*Reference
	for _, c := range t.columns.live() {
		if err := c.validate(); err != nil {
			return nil, err
		}
		plan.Columns = append(plan.Columns, ColumnChange{Kind: ChangeAdd, Column: c.Definition()})
		if c.ref != nil && c.ref.live() {
			refs = append(refs, c.ref)
		}
	}
	for _, idx := range t.indexes.live() {
		plan.Indexes = append(plan.Indexes, IndexChange{Kind: ChangeAdd, Index: idx.Definition()})
	}
	groups, err := foreignKeyGroups(t, refs)
	if err != nil {
		return nil, err
	}
	plan.ForeignKeys = groups
	return plan, nil
}

// alterPlan collects the pending changes of t. An altered index cannot be
// changed in place: it is dropped here, immediately, and re-added by the plan.
func (m *Manager) alterPlan(ctx context.Context, s *Schema, t *Table) (*TablePlan, error) {
	plan := &TablePlan{Namespace: s.Name(), Table: t.Name()}

	dropped := make(map[string]bool)
	dropConstraint := func(name string) {
		if name == "" || dropped[name] {
			return
		}
		dropped[name] = true
		plan.DroppedForeignKeys = append(plan.DroppedForeignKeys, name)
	}
	columns := t.columns.all()
	for _, c := range columns {
		for _, r := range c.retired {
			dropConstraint(r.constraint)
		}
		if c.ref != nil && c.ref.ShouldAlter() {
			dropConstraint(c.ref.constraint)
		}
	}
	// Dropping a grouped constraint takes its untouched siblings with it.
	var refs []*Reference
	for _, c := range columns {
		if !c.live() || c.ref == nil {
			continue
		}
		r := c.ref
		if r.IsSynced() && dropped[r.constraint] {
			r.forceCreate()
		}
		if r.ShouldCreate() || r.ShouldAlter() {
			refs = append(refs, r)
		}
	}

	for _, c := range columns {
		switch c.State() {
		case StateDelete:
			plan.Columns = append(plan.Columns, ColumnChange{Kind: ChangeDrop, Column: c.Definition()})
		case StateCreate:
			if err := c.validate(); err != nil {
				return nil, err
			}
			plan.Columns = append(plan.Columns, ColumnChange{Kind: ChangeAdd, Column: c.Definition()})
		case StateAlter:
			if err := c.validate(); err != nil {
				return nil, err
			}
			plan.Columns = append(plan.Columns, ColumnChange{Kind: ChangeModify, Column: c.Definition()})
		}
	}

	for _, idx := range t.indexes.all() {
		switch idx.State() {
		case StateDelete:
			plan.Indexes = append(plan.Indexes, IndexChange{Kind: ChangeDrop, Index: idx.liveDefinition()})
		case StateAlter:
			if err := m.driver.DropIndex(ctx, s.Name(), t.Name(), idx.liveDefinition()); err != nil {
				return nil, driverFailure(fmt.Sprintf("drop index %s on %s", idx.Name(), t.Name()), err)
			}
			idx.forceCreate()
			plan.Indexes = append(plan.Indexes, IndexChange{Kind: ChangeAdd, Index: idx.Definition()})
		case StateCreate:
			if idx.supersedes != "" {
				plan.Indexes = append(plan.Indexes, IndexChange{
					Kind:  ChangeDrop,
					Index: IndexDefinition{Name: idx.supersedes, Type: IndexPrimary},
				})
			}
			plan.Indexes = append(plan.Indexes, IndexChange{Kind: ChangeAdd, Index: idx.Definition()})
		}
	}

	groups, err := foreignKeyGroups(t, refs)
	if err != nil {
		return nil, err
	}
	plan.ForeignKeys = groups
	if t.optionsChanged {
		plan.Options = t.Options()
	}
	return plan, nil
}

func (i *Index) liveDefinition() IndexDefinition {
	return IndexDefinition{Name: i.name, Type: i.liveType, Columns: i.ColumnNames()}
}

type groupKey struct {
	namespace string
	table     string
	onUpdate  Action
	onDelete  Action
}

// foreignKeyGroups batches references into one constraint per referenced
// table and action pair, and names each new constraint.
func foreignKeyGroups(t *Table, refs []*Reference) ([]ForeignKeyGroup, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	used := make(map[string]bool)
	for _, c := range t.columns.items {
		if c.ref != nil && c.ref.IsSynced() && c.ref.constraint != "" {
			used[c.ref.constraint] = true
		}
	}

	var groups []ForeignKeyGroup
	byKey := make(map[groupKey]int)
	for _, r := range refs {
		target := r.target
		tt := target.table
		if tt == nil || tt.schema == nil || !target.live() || !tt.live() {
			return nil, &ConflictError{
				Entity:  "reference",
				Name:    t.Name() + "." + r.column.Name(),
				Message: fmt.Sprintf("referenced column %q is not part of a live table", target.Name()),
			}
		}
		key := groupKey{namespace: tt.schema.Name(), table: tt.Name(), onUpdate: r.updateAction, onDelete: r.deleteAction}
		i, ok := byKey[key]
		if !ok {
			name := constraintName(t.Name(), tt.Name(), used)
			used[name] = true
			groups = append(groups, ForeignKeyGroup{
				Name:         name,
				RefNamespace: key.namespace,
				RefTable:     key.table,
				OnUpdate:     key.onUpdate,
				OnDelete:     key.onDelete,
			})
			i = len(groups) - 1
			byKey[key] = i
		}
		groups[i].Columns = append(groups[i].Columns, r.column.Name())
		groups[i].RefColumns = append(groups[i].RefColumns, target.Name())
		r.constraint = groups[i].Name
	}
	return groups, nil
}

func constraintName(table, refTable string, used map[string]bool) string {
	base := fmt.Sprintf("fk_%s_%s", table, refTable)
	name := base
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	return name
}

// orderTables keeps insertion order, except that a table is moved after the
// not yet created tables it references.
func orderTables(tables []*Table) []*Table {
	out := make([]*Table, 0, len(tables))
	visited := make(map[*Table]bool, len(tables))
	var visit func(t *Table)
	visit = func(t *Table) {
		if visited[t] {
			return
		}
		visited[t] = true
		for _, c := range t.columns.items {
			r := c.ref
			if r == nil || !(r.ShouldCreate() || r.ShouldAlter()) || r.target.table == nil {
				continue
			}
			dep := r.target.table
			if dep != t && dep.schema == t.schema && dep.ShouldCreate() {
				visit(dep)
			}
		}
		out = append(out, t)
	}
	for _, t := range tables {
		visit(t)
	}
	return out
}
