package schema

type pendingReference struct {
	column *Column
	schema *Schema
	def    ForeignKeyDefinition
}

// load binds introspected tables into s and marks everything synced. Foreign
// keys are returned unresolved because their targets may live in a schema
// that is not loaded yet.
func (s *Schema) load(defs []TableDefinition) []pendingReference {
	cs := s.caseSensitive()
	var refs []pendingReference
	for _, def := range defs {
		if _, ok := s.tables.find(def.Name, cs); ok {
			continue
		}
		t := NewTable(def.Name)
		t.sink = s
		t.schema = s

		for _, cd := range def.Columns {
			c := columnFromDefinition(cd)
			c.sink = t
			c.table = t
			c.forceState(StateSynced)
			t.columns.add(c)
		}
		for _, id := range def.Indexes {
			var cols []*Column
			for _, name := range id.Columns {
				if c, ok := t.columns.find(name, cs); ok {
					cols = append(cols, c)
				}
			}
			if len(cols) == 0 {
				continue
			}
			idx := NewIndex(id.Name, cols...)
			idx.typ = id.Type
			idx.liveType = id.Type
			idx.forceState(StateSynced)
			t.attachIndex(idx)
		}
		t.options = append(t.options, def.Options...)
		for _, fk := range def.ForeignKeys {
			if c, ok := t.columns.find(fk.Column, cs); ok {
				refs = append(refs, pendingReference{column: c, schema: s, def: fk})
			}
		}

		t.forceState(StateSynced)
		s.tables.add(t)
	}
	s.forceState(StateSynced)
	return refs
}

// resolveReferences links loaded foreign keys to their target columns.
// Targets in ignored or unknown schemas are left unresolved.
func (m *Manager) resolveReferences(refs []pendingReference) {
	for _, p := range refs {
		schemaName := p.def.RefSchema
		if schemaName == "" {
			schemaName = p.schema.Name()
		}
		target := m.findColumn(schemaName, p.def.RefTable, p.def.RefColumn)
		if target == nil {
			continue
		}
		r := newReference(p.column, target)
		r.updateAction = p.def.OnUpdate
		r.deleteAction = p.def.OnDelete
		r.constraint = p.def.Name
		r.forceState(StateSynced)
		p.column.ref = r
	}
}
