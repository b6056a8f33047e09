package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// MarkdownFormatter formats the live model as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatManager writes every schema that is not ignored.
func (f *MarkdownFormatter) FormatManager(m *schema.Manager) error {
	for _, s := range m.Schemas() {
		if s.ShouldBeIgnored() {
			continue
		}
		if err := f.Format(s); err != nil {
			return err
		}
	}
	return nil
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	_, _ = fmt.Fprintf(f.writer, "# Database Schema: %s\n\n", s.Name())

	for _, table := range s.Tables() {
		if err := f.FormatTable(table); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(table *schema.Table) error {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name())
	f.FormatColumns(table)
	f.FormatReferences(table)
	f.FormatIndexes(table)
	f.FormatOptions(table)
	return nil
}

// FormatColumns writes the column list. Primary key columns are tagged PK.
func (f *MarkdownFormatter) FormatColumns(table *schema.Table) {
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range table.Columns() {
		constraintStr := f.formatConstraints(col, table.PrimaryKey())
		if constraintStr != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name(), typeName(col), constraintStr)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name(), typeName(col))
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

// FormatReferences writes the outgoing foreign keys, if any.
func (f *MarkdownFormatter) FormatReferences(table *schema.Table) {
	var refs []*schema.Column
	for _, col := range table.Columns() {
		if col.IsFK() {
			refs = append(refs, col)
		}
	}
	if len(refs) == 0 {
		return
	}

	_, _ = fmt.Fprintln(f.writer, "### References")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range refs {
		ref := col.Reference()
		_, _ = fmt.Fprintf(f.writer, "- %s → %s (ON DELETE %s, ON UPDATE %s)\n",
			col.Name(),
			qualified(ref.Target()),
			ref.OnDelete().SQL(),
			ref.OnUpdate().SQL())
	}
	_, _ = fmt.Fprintln(f.writer)
}

// FormatIndexes writes the secondary indexes; the primary key shows up in
// the column list instead.
func (f *MarkdownFormatter) FormatIndexes(table *schema.Table) {
	var indexes []*schema.Index
	for _, idx := range table.Indexes() {
		if !idx.IsPrimaryKey() {
			indexes = append(indexes, idx)
		}
	}
	if len(indexes) == 0 {
		return
	}

	_, _ = fmt.Fprintln(f.writer, "### Indexes")
	_, _ = fmt.Fprintln(f.writer)
	for _, idx := range indexes {
		if idx.IsUniqueKey() {
			_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n", idx.Name(), strings.Join(idx.ColumnNames(), ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", idx.Name(), strings.Join(idx.ColumnNames(), ", "))
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

// FormatOptions writes engine-specific table options, if any.
func (f *MarkdownFormatter) FormatOptions(table *schema.Table) {
	options := table.Options()
	if len(options) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "### Options")
	_, _ = fmt.Fprintln(f.writer)
	for _, opt := range options {
		_, _ = fmt.Fprintf(f.writer, "- %s=%s\n", opt.Key, opt.Value)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatConstraints(col *schema.Column, pk *schema.Index) string {
	var constraints []string

	if pk != nil {
		for _, c := range pk.Columns() {
			if c == col {
				constraints = append(constraints, "PK")
				break
			}
		}
	}

	if !col.Nullable() {
		constraints = append(constraints, "NOT NULL")
	}

	if col.IsUnsigned() && col.Type() != schema.TypeSerial {
		constraints = append(constraints, "UNSIGNED")
	}

	if d := col.Default(); d.Kind != schema.DefaultNone {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", d))
	}

	return strings.Join(constraints, ", ")
}
