package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// MultiFileFormatter writes schema to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// FormatManager writes each schema that is not ignored into its own
// subdirectory of OutputDir.
func (f *MultiFileFormatter) FormatManager(m *schema.Manager) error {
	for _, s := range m.Schemas() {
		if s.ShouldBeIgnored() {
			continue
		}
		sub := &MultiFileFormatter{
			OutputDir:    filepath.Join(f.OutputDir, s.Name()),
			OutputFormat: f.OutputFormat,
		}
		if err := sub.Format(s); err != nil {
			return fmt.Errorf("failed to write schema %s: %w", s.Name(), err)
		}
	}
	return nil
}

// Format writes the schema to multiple files
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(s); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range s.Tables() {
		if err := f.writeTableFile(table, s); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name(), err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(s *schema.Schema) error {
	ext := f.getFileExtension()
	filename := filepath.Join(f.OutputDir, "_overview"+ext)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	// Sort tables alphabetically
	tables := s.Tables()
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Name() < tables[j].Name()
	})

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview: %s\n\n", s.Name())
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<table_name>%s`\n\n", ext)
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
		for _, table := range tables {
			_, _ = fmt.Fprintf(file, "- **%s**", table.Name())
			if targets := referencedTables(table); len(targets) > 0 {
				_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ", "))
			}
			_, _ = fmt.Fprintf(file, "\n")
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW %s\n", s.Name())
	_, _ = fmt.Fprintf(file, "Each table has a file: <table_name>%s\n\n", ext)
	for _, table := range tables {
		_, _ = fmt.Fprintf(file, "%s", table.Name())
		if targets := referencedTables(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ","))
		}
		_, _ = fmt.Fprintf(file, "\n")
	}
	return nil
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table *schema.Table, s *schema.Schema) error {
	filename := filepath.Join(f.OutputDir, table.Name()+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat != FormatMarkdown {
		return NewTextFormatter(file).FormatTable(table)
	}

	if err := NewMarkdownFormatter(file).FormatTable(table); err != nil {
		return err
	}

	incoming := findIncomingReferences(table, s)
	if len(incoming) > 0 {
		_, _ = fmt.Fprintf(file, "### Referenced by\n\n")
		for _, col := range incoming {
			_, _ = fmt.Fprintf(file, "- %s → %s\n", qualified(col), col.ReferencedColumn().Name())
		}
		_, _ = fmt.Fprintln(file)
	}
	return nil
}

// findIncomingReferences returns the columns of s whose foreign key points
// at table.
func findIncomingReferences(table *schema.Table, s *schema.Schema) []*schema.Column {
	var incoming []*schema.Column
	for _, t := range s.Tables() {
		for _, col := range t.Columns() {
			if target := col.ReferencedColumn(); target != nil && target.Table() == table {
				incoming = append(incoming, col)
			}
		}
	}
	return incoming
}

// referencedTables lists the distinct tables table points at, in column
// order.
func referencedTables(table *schema.Table) []string {
	var targets []string
	seen := make(map[string]bool)
	for _, col := range table.Columns() {
		target := col.ReferencedColumn()
		if target == nil || target.Table() == nil {
			continue
		}
		name := target.Table().Name()
		if !seen[name] {
			seen[name] = true
			targets = append(targets, name)
		}
	}
	return targets
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
