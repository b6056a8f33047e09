package document

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// Apply adds every schema in doc to m as new objects, ready to be flushed.
// A schema that m already knows is a conflict; the check runs before anything
// is added.
func Apply(m *schema.Manager, doc *Document) error {
	for _, ds := range doc.Schemas {
		if m.HasSchema(ds.Name) {
			return &schema.ConflictError{Entity: "schema", Name: ds.Name, Message: "already exists"}
		}
	}

	for _, ds := range doc.Schemas {
		s := schema.NewSchema(ds.Name)
		if err := m.AddSchema(s); err != nil {
			return err
		}
		for _, dt := range ds.Tables {
			t, err := newTable(dt)
			if err != nil {
				return fmt.Errorf("failed to import table %q of schema %q: %w", dt.Name, ds.Name, err)
			}
			if err := s.AddTable(t, false); err != nil {
				return fmt.Errorf("failed to import table %q of schema %q: %w", dt.Name, ds.Name, err)
			}
		}
	}
	return nil
}

func newTable(dt Table) (*schema.Table, error) {
	t := schema.NewTable(dt.Name)
	for _, dc := range dt.Columns {
		c, err := newColumn(dc)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	for _, dk := range dt.Keys {
		idx, err := newIndex(t, dk)
		if err != nil {
			return nil, err
		}
		if err := t.AddIndex(idx); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// newColumn applies the attributes in a fixed order (type, size,
// nullability, default) whatever order the document used.
func newColumn(dc Column) (*schema.Column, error) {
	c := schema.NewColumn(dc.Name)
	if err := c.SetTypeName(dc.Type); err != nil {
		return nil, err
	}
	if dc.Size != "" {
		if err := c.SetSize(dc.Size); err != nil {
			return nil, err
		}
	}
	if dc.AllowNull {
		if err := c.AllowNull(); err != nil {
			return nil, err
		}
	} else {
		c.ForbidNull()
	}

	switch {
	case dc.Default == "":
		c.ClearDefault()
	case strings.EqualFold(dc.Default, defaultNull):
		return c, c.SetDefaultNull()
	case isExpression(dc.Default):
		return c, c.SetDefaultExpression(dc.Default)
	default:
		return c, c.SetDefault(dc.Default)
	}
	return c, nil
}

func newIndex(t *schema.Table, dk Key) (*schema.Index, error) {
	typ := schema.IndexRegular
	if dk.Type != "" {
		parsed, err := schema.ParseIndexType(dk.Type)
		if err != nil {
			return nil, &schema.ConfigurationError{Entity: "index", Name: dk.Name, Message: err.Error()}
		}
		typ = parsed
	}

	cols := make([]*schema.Column, 0, len(dk.Columns))
	for _, name := range dk.Columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, &schema.ConflictError{Entity: "index", Name: dk.Name, Message: fmt.Sprintf("column %q is not defined in table %q", name, t.Name())}
		}
		cols = append(cols, c)
	}

	idx := schema.NewIndex(dk.Name, cols...)
	if err := idx.SetType(typ); err != nil {
		return nil, err
	}
	return idx, nil
}

var expressions = map[string]bool{
	"CURRENT_TIMESTAMP":   true,
	"CURRENT_TIMESTAMP()": true,
	"CURRENT_DATE":        true,
	"CURRENT_TIME":        true,
	"LOCALTIMESTAMP":      true,
	"NOW()":               true,
}

// isExpression reports whether a default names a SQL function rather than
// a literal value.
func isExpression(v string) bool {
	return expressions[strings.ToUpper(strings.TrimSpace(v))]
}
