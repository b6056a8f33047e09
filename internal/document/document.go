// Package document reads and writes the schema document format: a nested
// mapping of schema name to tables, each table holding its columns and keys.
//
//	{"library": {"book": {
//	    "columns": {"id": {"type": "serial", "size": "10", "allowNull": "no", "defaultValue": ""}},
//	    "keys": {"PRIMARY": {"type": "pk", "columns": ["id"]}}
//	}}}
//
// Documents keep the order their keys appear in, both when decoded and when
// encoded.
package document

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported document format %q (expected json or yaml)", name)
}

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Document is an ordered set of schemas.
type Document struct {
	Schemas []Schema
}

// Schema is a named, ordered set of tables.
type Schema struct {
	Name   string
	Tables []Table
}

// Table holds the columns and keys of one table.
type Table struct {
	Name    string
	Columns []Column
	Keys    []Key
}

// Column mirrors the four column attributes of the format. An empty Default
// means no default; "NULL" means the column defaults to NULL.
type Column struct {
	Name      string
	Type      string
	Size      string
	AllowNull bool
	Default   string
}

// Key is an index: its type (regular, unique or pk) and covered columns.
type Key struct {
	Name    string
	Type    string
	Columns []string
}

// Schema returns the schema with the given name.
func (d *Document) Schema(name string) (*Schema, bool) {
	for i := range d.Schemas {
		if strings.EqualFold(d.Schemas[i].Name, name) {
			return &d.Schemas[i], true
		}
	}
	return nil, false
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Decode reads a document in the given format.
func Decode(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Unmarshal(data, format)
}

// Unmarshal parses a document held in memory.
func Unmarshal(data []byte, format Format) (*Document, error) {
	var (
		root *node
		err  error
	)
	switch format {
	case FormatJSON:
		root, err = parseJSON(data)
	case FormatYAML:
		root, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return build(root)
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatYAML:
		return writeYAML(w, doc)
	}
	return fmt.Errorf("unsupported document format %q", format)
}

// defaultNull is how a NULL default is spelled in documents.
const defaultNull = "NULL"

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// columnField maps a column attribute key to its canonical name. Keys match
// case-insensitively and ignore spaces and underscores, so "allowNull",
// "allow_null" and "null allowed" are all accepted.
func columnField(key string) (string, bool) {
	switch squash(key) {
	case "type":
		return "type", true
	case "size":
		return "size", true
	case "allownull", "nullallowed":
		return "allowNull", true
	case "defaultvalue", "default":
		return "defaultValue", true
	}
	return "", false
}

func keyField(key string) (string, bool) {
	switch squash(key) {
	case "type":
		return "type", true
	case "columns":
		return "columns", true
	}
	return "", false
}

func tableField(key string) (string, bool) {
	switch squash(key) {
	case "columns":
		return "columns", true
	case "keys", "indexes":
		return "keys", true
	}
	return "", false
}

func squash(key string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(key)))
}

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	KindSyntax ErrorKind = iota
	KindEncoding
	KindDepth
	KindStructure
	KindUnknownKey
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindEncoding:
		return "encoding error"
	case KindDepth:
		return "maximum depth exceeded"
	case KindStructure:
		return "unexpected structure"
	case KindUnknownKey:
		return "unknown key"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseError reports why a document could not be read. Path locates the
// offending element (schema/table/columns/col) when it is known. Every
// ParseError also matches schema.ErrConfiguration.
type ParseError struct {
	Kind    ErrorKind
	Path    string
	Key     string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("malformed document: ")
	b.WriteString(e.Kind.String())
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{schema.ErrConfiguration, e.Err}
	}
	return []error{schema.ErrConfiguration}
}

// IsKind reports whether err is a ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}
