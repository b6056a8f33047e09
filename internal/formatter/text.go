package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// TextFormatter writes the model as plain text, tagging every object with
// its lifecycle state. Objects pending deletion are included.
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatManager writes every schema that is not ignored.
func (f *TextFormatter) FormatManager(m *schema.Manager) error {
	for _, s := range visibleSchemas(m) {
		if err := f.Format(s); err != nil {
			return err
		}
	}
	return nil
}

// Format writes one schema
func (f *TextFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintf(f.writer, "Tables from %s (%d tables found) [%s]\n", s.Name(), s.CountTables(), s.State())
	for _, table := range s.AllTables() {
		if err := f.FormatTable(table); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable writes one table with its columns, indexes and options.
func (f *TextFormatter) FormatTable(table *schema.Table) error {
	_, _ = fmt.Fprintf(f.writer, "%s [%s]\n", table.Name(), table.State())

	for _, col := range table.AllColumns() {
		_, _ = fmt.Fprintf(f.writer, "  %s [%s]\n", formatColumn(col), col.State())
	}

	_, _ = fmt.Fprintf(f.writer, "  %s\n", strings.Repeat(".", 28))
	indexes := table.AllIndexes()
	if len(indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "  indexes")
		for _, idx := range indexes {
			_, _ = fmt.Fprintf(f.writer, "    %s: %s (%s) [%s]\n",
				idx.Name(), idx.Type(), strings.Join(idx.ColumnNames(), ", "), idx.State())
		}
	} else {
		_, _ = fmt.Fprintln(f.writer, "  no indexes")
	}

	_, _ = fmt.Fprintf(f.writer, "  %s\n", strings.Repeat(".", 28))
	options := table.Options()
	if len(options) > 0 {
		_, _ = fmt.Fprintln(f.writer, "  specifics")
		for _, opt := range options {
			_, _ = fmt.Fprintf(f.writer, "    %s=%s\n", opt.Key, opt.Value)
		}
	} else {
		_, _ = fmt.Fprintln(f.writer, "  no specifics")
	}

	_, _ = fmt.Fprintf(f.writer, "%s\n\n", strings.Repeat("-", 30))
	return nil
}

// formatColumn renders "name: type(size), NULL|NOT NULL" followed by the
// default, signedness and reference when present.
func formatColumn(col *schema.Column) string {
	var b strings.Builder
	b.WriteString(col.Name())
	b.WriteString(": ")
	b.WriteString(typeName(col))

	if col.Nullable() {
		b.WriteString(", NULL")
	} else {
		b.WriteString(", NOT NULL")
	}
	if d := col.Default(); d.Kind != schema.DefaultNone {
		b.WriteString(", default ")
		b.WriteString(d.String())
	}
	if col.IsUnsigned() && col.Type() != schema.TypeSerial {
		b.WriteString(", unsigned")
	}
	if target := col.ReferencedColumn(); target != nil {
		fmt.Fprintf(&b, ", references %s", qualified(target))
	}
	return b.String()
}

func typeName(col *schema.Column) string {
	if col.Size() == "" {
		return string(col.Type())
	}
	return fmt.Sprintf("%s(%s)", col.Type(), col.Size())
}

func qualified(c *schema.Column) string {
	t := c.Table()
	if t == nil {
		return c.Name()
	}
	return t.Name() + "." + c.Name()
}

// visibleSchemas returns the schemas of m that are not ignored, including
// those pending deletion.
func visibleSchemas(m *schema.Manager) []*schema.Schema {
	var out []*schema.Schema
	for _, s := range m.AllSchemas() {
		if !s.ShouldBeIgnored() {
			out = append(out, s)
		}
	}
	return out
}
