package document_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/schema"
)

const libraryJSON = `{
  "library": {
    "book": {
      "columns": {
        "id": {"type": "serial", "size": "10", "allowNull": "no", "defaultValue": ""},
        "title": {"type": "varchar", "size": "100", "allowNull": "yes", "defaultValue": "NULL"},
        "pages": {"type": "int", "size": "5", "allowNull": "no", "defaultValue": "0"}
      },
      "keys": {
        "PRIMARY": {"type": "pk", "columns": ["id"]},
        "idx_title": {"type": "regular", "columns": ["title"]}
      }
    }
  }
}`

const libraryYAML = `
library:
  book:
    columns:
      id: {type: serial, size: "10", allowNull: "no", defaultValue: ""}
      title: {type: varchar, size: "100", allowNull: "yes", defaultValue: "NULL"}
      pages: {type: int, size: "5", allowNull: "no", defaultValue: "0"}
    keys:
      PRIMARY: {type: pk, columns: [id]}
      idx_title: {type: regular, columns: [title]}
`

func libraryDocument() *document.Document {
	return &document.Document{Schemas: []document.Schema{{
		Name: "library",
		Tables: []document.Table{{
			Name: "book",
			Columns: []document.Column{
				{Name: "id", Type: "serial", Size: "10"},
				{Name: "title", Type: "varchar", Size: "100", AllowNull: true, Default: "NULL"},
				{Name: "pages", Type: "int", Size: "5", Default: "0"},
			},
			Keys: []document.Key{
				{Name: "PRIMARY", Type: "pk", Columns: []string{"id"}},
				{Name: "idx_title", Type: "regular", Columns: []string{"title"}},
			},
		}},
	}}}
}

func connected(t *testing.T, d *db.MemoryDriver) *schema.Manager {
	t.Helper()
	m := schema.NewManager(d)
	require.NoError(t, m.Connect(context.Background()))
	return m
}

func TestDecodeJSON(t *testing.T) {
	doc, err := document.Decode(strings.NewReader(libraryJSON), document.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, libraryDocument(), doc)
}

func TestDecodeYAML(t *testing.T) {
	doc, err := document.Decode(strings.NewReader(libraryYAML), document.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, libraryDocument(), doc)
}

func TestDecodeKeepsKeyOrder(t *testing.T) {
	doc, err := document.Unmarshal([]byte(`{"b": {"z": {"columns": {"y": {"type": "text"}, "x": {"type": "text"}}}, "a": {"columns": {"c": {"type": "text"}}}}, "a": {}}`), document.FormatJSON)
	require.NoError(t, err)

	require.Len(t, doc.Schemas, 2)
	assert.Equal(t, "b", doc.Schemas[0].Name)
	assert.Equal(t, "a", doc.Schemas[1].Name)
	require.Len(t, doc.Schemas[0].Tables, 2)
	assert.Equal(t, "z", doc.Schemas[0].Tables[0].Name)
	assert.Equal(t, "y", doc.Schemas[0].Tables[0].Columns[0].Name)
	assert.Equal(t, "x", doc.Schemas[0].Tables[0].Columns[1].Name)
}

func TestAttributeKeysIgnoreCase(t *testing.T) {
	doc, err := document.Unmarshal([]byte(`{"s": {"t": {"Columns": {"c": {
		"TYPE": "varchar", "Size": "20", "null allowed": "yes", "Default Value": "abc"
	}}, "KEYS": {"k": {"Type": "unique", "COLUMNS": "c"}}}}}`), document.FormatJSON)
	require.NoError(t, err)

	table := doc.Schemas[0].Tables[0]
	assert.Equal(t, document.Column{Name: "c", Type: "varchar", Size: "20", AllowNull: true, Default: "abc"}, table.Columns[0])
	assert.Equal(t, document.Key{Name: "k", Type: "unique", Columns: []string{"c"}}, table.Keys[0])
}

func TestJSONNullAndBooleans(t *testing.T) {
	doc, err := document.Unmarshal([]byte(`{"s": {"t": {"columns": {"c": {"type": "int", "allowNull": true, "defaultValue": null}}}}}`), document.FormatJSON)
	require.NoError(t, err)
	c := doc.Schemas[0].Tables[0].Columns[0]
	assert.True(t, c.AllowNull)
	assert.Equal(t, "NULL", c.Default)
}

func TestParseErrors(t *testing.T) {
	deepJSON := strings.Repeat("[", 40) + strings.Repeat("]", 40)
	deepYAML := strings.Repeat("[", 40) + strings.Repeat("]", 40)

	tests := []struct {
		name   string
		format document.Format
		input  []byte
		kind   document.ErrorKind
	}{
		{"json syntax", document.FormatJSON, []byte(`{"s": }`), document.KindSyntax},
		{"json truncated", document.FormatJSON, []byte(`{"s": {"t": {`), document.KindSyntax},
		{"json trailing data", document.FormatJSON, []byte(`{} {}`), document.KindSyntax},
		{"json empty", document.FormatJSON, []byte("  "), document.KindSyntax},
		{"json encoding", document.FormatJSON, []byte{'{', '"', 0xff, '"', ':', '{', '}', '}'}, document.KindEncoding},
		{"json depth", document.FormatJSON, []byte(deepJSON), document.KindDepth},
		{"root is a list", document.FormatJSON, []byte(`["s"]`), document.KindStructure},
		{"columns is a list", document.FormatJSON, []byte(`{"s": {"t": {"columns": []}}}`), document.KindStructure},
		{"bad allowNull", document.FormatJSON, []byte(`{"s": {"t": {"columns": {"c": {"allowNull": "maybe"}}}}}`), document.KindStructure},
		{"duplicate column", document.FormatJSON, []byte(`{"s": {"t": {"columns": {"c": {}, "c": {}}}}}`), document.KindStructure},
		{"unknown column key", document.FormatJSON, []byte(`{"s": {"t": {"columns": {"c": {"type": "int", "colour": "red"}}}}}`), document.KindUnknownKey},
		{"unknown table key", document.FormatJSON, []byte(`{"s": {"t": {"triggers": {}}}}`), document.KindUnknownKey},
		{"unknown index key", document.FormatJSON, []byte(`{"s": {"t": {"keys": {"k": {"using": "btree"}}}}}`), document.KindUnknownKey},
		{"yaml syntax", document.FormatYAML, []byte("s: [\n"), document.KindSyntax},
		{"yaml encoding", document.FormatYAML, []byte{'s', ':', ' ', 0xfe}, document.KindEncoding},
		{"yaml depth", document.FormatYAML, []byte(deepYAML), document.KindDepth},
		{"yaml structure", document.FormatYAML, []byte("s:\n  t: plain\n"), document.KindStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := document.Unmarshal(tt.input, tt.format)
			require.Error(t, err)

			var pe *document.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.kind, pe.Kind, "got %v", err)
			assert.True(t, document.IsKind(err, tt.kind))
			assert.True(t, errors.Is(err, schema.ErrConfiguration))
		})
	}
}

func TestUnknownKeyIsNamed(t *testing.T) {
	_, err := document.Unmarshal([]byte(`{"s": {"t": {"columns": {"c": {"colour": "red"}}}}}`), document.FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "colour"`)
	assert.Contains(t, err.Error(), "s/t/columns/c")
}

func TestEmptyYAMLIsAnEmptyDocument(t *testing.T) {
	doc, err := document.Unmarshal([]byte("\n"), document.FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, doc.Schemas)
}

func TestEncodeDecodeKeepsDocument(t *testing.T) {
	for _, format := range []document.Format{document.FormatJSON, document.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, document.Encode(&buf, libraryDocument(), format))

			doc, err := document.Decode(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, libraryDocument(), doc)
		})
	}
}

func TestEncodeJSONLayout(t *testing.T) {
	doc := &document.Document{Schemas: []document.Schema{{
		Name: "s",
		Tables: []document.Table{{
			Name:    "t",
			Columns: []document.Column{{Name: "a", Type: "text", AllowNull: true, Default: "NULL"}},
		}},
	}}}

	var buf bytes.Buffer
	require.NoError(t, document.Encode(&buf, doc, document.FormatJSON))
	assert.Equal(t, `{
  "s": {
    "t": {
      "columns": {
        "a": {
          "type": "text",
          "size": "",
          "allowNull": "yes",
          "defaultValue": "NULL"
        }
      },
      "keys": {}
    }
  }
}
`, buf.String())
}

func TestApplyBuildsUnflushedObjects(t *testing.T) {
	m := connected(t, db.NewMemoryDriver())
	require.NoError(t, document.Apply(m, libraryDocument()))

	s, ok := m.Schema("library")
	require.True(t, ok)
	assert.True(t, s.ShouldCreate())

	book, ok := s.Table("book")
	require.True(t, ok)
	assert.True(t, book.ShouldCreate())
	assert.Equal(t, 3, book.CountColumns())
	assert.Equal(t, 2, book.CountIndexes())

	id, _ := book.Column("id")
	assert.Equal(t, schema.TypeSerial, id.Type())
	assert.False(t, id.Nullable())

	title, _ := book.Column("title")
	assert.True(t, title.Nullable())
	assert.Equal(t, schema.DefaultNull, title.Default().Kind)

	pages, _ := book.Column("pages")
	assert.False(t, pages.Nullable())
	assert.Equal(t, schema.Default{Kind: schema.DefaultValue, Value: "0"}, pages.Default())

	require.NotNil(t, book.PrimaryKey())
	assert.Equal(t, []string{"id"}, book.PrimaryKey().ColumnNames())
}

func TestApplyThenExportRoundTrips(t *testing.T) {
	m := connected(t, db.NewMemoryDriver())
	require.NoError(t, document.Apply(m, libraryDocument()))
	assert.Equal(t, libraryDocument(), document.FromManager(m))
}

func TestRoundTripThroughDatabase(t *testing.T) {
	ctx := context.Background()
	d := db.NewMemoryDriver()

	m := connected(t, d)
	require.NoError(t, document.Apply(m, libraryDocument()))
	require.NoError(t, m.Flush(ctx))

	fresh := connected(t, d)
	assert.Equal(t, libraryDocument(), document.FromManager(fresh))
}

func TestApplyRejectsExistingSchema(t *testing.T) {
	ctx := context.Background()
	d := db.NewMemoryDriver()
	m := connected(t, d)
	require.NoError(t, document.Apply(m, libraryDocument()))
	require.NoError(t, m.Flush(ctx))

	fresh := connected(t, d)
	err := document.Apply(fresh, libraryDocument())
	assert.True(t, schema.IsConflict(err))
}

func TestApplyValidation(t *testing.T) {
	tests := []struct {
		name  string
		table document.Table
		check func(error) bool
	}{
		{
			name:  "table without columns",
			table: document.Table{Name: "empty"},
			check: schema.IsConflict,
		},
		{
			name:  "unknown type",
			table: document.Table{Name: "t", Columns: []document.Column{{Name: "c", Type: "geometry"}}},
			check: func(err error) bool { return errors.Is(err, schema.ErrConfiguration) },
		},
		{
			name:  "missing type",
			table: document.Table{Name: "t", Columns: []document.Column{{Name: "c"}}},
			check: func(err error) bool { return errors.Is(err, schema.ErrConfiguration) },
		},
		{
			name:  "default too long",
			table: document.Table{Name: "t", Columns: []document.Column{{Name: "c", Type: "varchar", Size: "2", Default: "abc"}}},
			check: func(err error) bool { return errors.Is(err, schema.ErrConfiguration) },
		},
		{
			name: "key on unknown column",
			table: document.Table{
				Name:    "t",
				Columns: []document.Column{{Name: "c", Type: "text"}},
				Keys:    []document.Key{{Name: "k", Type: "regular", Columns: []string{"missing"}}},
			},
			check: schema.IsConflict,
		},
		{
			name: "bad key type",
			table: document.Table{
				Name:    "t",
				Columns: []document.Column{{Name: "c", Type: "text"}},
				Keys:    []document.Key{{Name: "k", Type: "fulltext", Columns: []string{"c"}}},
			},
			check: func(err error) bool { return errors.Is(err, schema.ErrConfiguration) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := connected(t, db.NewMemoryDriver())
			doc := &document.Document{Schemas: []document.Schema{{Name: "s", Tables: []document.Table{tt.table}}}}
			err := document.Apply(m, doc)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestDefaultExpressions(t *testing.T) {
	m := connected(t, db.NewMemoryDriver())
	doc := &document.Document{Schemas: []document.Schema{{Name: "s", Tables: []document.Table{{
		Name: "t",
		Columns: []document.Column{
			{Name: "created", Type: "timestamp", Default: "CURRENT_TIMESTAMP"},
			{Name: "note", Type: "text", AllowNull: true},
		},
	}}}}}
	require.NoError(t, document.Apply(m, doc))

	s, _ := m.Schema("s")
	table, _ := s.Table("t")
	created, _ := table.Column("created")
	assert.Equal(t, schema.Default{Kind: schema.DefaultExpression, Value: "CURRENT_TIMESTAMP"}, created.Default())
	note, _ := table.Column("note")
	assert.Equal(t, schema.DefaultNone, note.Default().Kind)

	assert.Equal(t, doc, document.FromManager(m))
}

func TestFromManagerSkipsIgnoredSchemas(t *testing.T) {
	m := connected(t, db.NewMemoryDriver())
	require.NoError(t, document.Apply(m, libraryDocument()))
	m.SetIgnoredSchemas("library")
	assert.Empty(t, document.FromManager(m).Schemas)
}

func TestFormats(t *testing.T) {
	f, err := document.ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, document.FormatYAML, f)
	_, err = document.ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, document.FormatYAML, document.FormatForPath("dump.yaml"))
	assert.Equal(t, document.FormatJSON, document.FormatForPath("dump.json"))
	assert.Equal(t, document.FormatJSON, document.FormatForPath("dump"))
}
