package document

import (
	"github.com/tordrt/schemasync/internal/schema"
)

// FromManager exports every live schema of m that is not ignored.
func FromManager(m *schema.Manager) *Document {
	doc := &Document{}
	for _, s := range m.Schemas() {
		if s.ShouldBeIgnored() {
			continue
		}
		doc.Schemas = append(doc.Schemas, FromSchema(s))
	}
	return doc
}

// FromSchema exports the live tables of s in collection order.
func FromSchema(s *schema.Schema) Schema {
	out := Schema{Name: s.Name()}
	for _, t := range s.Tables() {
		out.Tables = append(out.Tables, FromTable(t))
	}
	return out
}

// FromTable exports the live columns and indexes of t.
func FromTable(t *schema.Table) Table {
	out := Table{Name: t.Name()}
	for _, c := range t.Columns() {
		out.Columns = append(out.Columns, Column{
			Name:      c.Name(),
			Type:      string(c.Type()),
			Size:      c.Size(),
			AllowNull: c.Nullable(),
			Default:   defaultValue(c.Default()),
		})
	}
	for _, idx := range t.Indexes() {
		out.Keys = append(out.Keys, Key{
			Name:    idx.Name(),
			Type:    idx.Type().String(),
			Columns: idx.ColumnNames(),
		})
	}
	return out
}

func defaultValue(d schema.Default) string {
	switch d.Kind {
	case schema.DefaultNull:
		return defaultNull
	case schema.DefaultValue, schema.DefaultExpression:
		return d.Value
	}
	return ""
}
