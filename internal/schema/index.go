package schema

import "fmt"

// PrimaryKeyName is the name given to the primary key created for a serial
// column.
const PrimaryKeyName = "PRIMARY"

// Index is an ordered set of columns of one table.
type Index struct {
	lifecycle
	table   *Table
	typ     IndexType
	columns []*Column

	// liveType is the type the database knows, used to drop the index.
	liveType IndexType

	// supersedes names a persisted primary key this index replaced in
	// memory. It is dropped before this index is added.
	supersedes string
}

// NewIndex creates a regular index in StateCreate.
func NewIndex(name string, columns ...*Column) *Index {
	idx := &Index{}
	idx.init(name, idx)
	for _, c := range columns {
		if c != nil {
			idx.columns = append(idx.columns, c)
		}
	}
	return idx
}

func (i *Index) Type() IndexType    { return i.typ }
func (i *Index) Table() *Table      { return i.table }
func (i *Index) IsPrimaryKey() bool { return i.typ == IndexPrimary }
func (i *Index) IsUniqueKey() bool  { return i.typ == IndexUnique }
func (i *Index) IsRegularKey() bool { return i.typ == IndexRegular }

// Columns returns the indexed columns in key order.
func (i *Index) Columns() []*Column {
	out := make([]*Column, len(i.columns))
	copy(out, i.columns)
	return out
}

// CountColumns returns the number of indexed columns.
func (i *Index) CountColumns() int { return len(i.columns) }

// ColumnNames returns the indexed column names in key order.
func (i *Index) ColumnNames() []string {
	names := make([]string, len(i.columns))
	for n, c := range i.columns {
		names[n] = c.Name()
	}
	return names
}

// AddColumn appends a column to the key.
func (i *Index) AddColumn(c *Column) error {
	if c == nil {
		return &ConfigurationError{Entity: "index", Name: i.name, Message: "column is nil"}
	}
	for _, existing := range i.columns {
		if existing == c {
			return &ConflictError{Entity: "index", Name: i.name, Message: fmt.Sprintf("column %q is already part of the key", c.Name())}
		}
	}
	if i.table != nil && c.table != i.table {
		return &ConflictError{Entity: "index", Name: i.name, Message: fmt.Sprintf("column %q does not belong to table %q", c.Name(), i.table.Name())}
	}
	i.columns = append(i.columns, c)
	i.markForAlter()
	return nil
}

// SetColumns replaces the key columns.
func (i *Index) SetColumns(columns ...*Column) error {
	if len(columns) == 0 {
		return &ConflictError{Entity: "index", Name: i.name, Message: "an index needs at least one column"}
	}
	if sameColumns(i.columns, columns) {
		return nil
	}
	for _, c := range columns {
		if c == nil {
			return &ConfigurationError{Entity: "index", Name: i.name, Message: "column is nil"}
		}
		if i.table != nil && c.table != i.table {
			return &ConflictError{Entity: "index", Name: i.name, Message: fmt.Sprintf("column %q does not belong to table %q", c.Name(), i.table.Name())}
		}
	}
	i.columns = append([]*Column(nil), columns...)
	i.markForAlter()
	return nil
}

// SetType changes the key type. An attached index can only become the
// primary key when its table has no other one.
func (i *Index) SetType(t IndexType) error {
	if t == i.typ {
		return nil
	}
	if t == IndexPrimary && i.table != nil {
		if pk := i.table.PrimaryKey(); pk != nil && pk != i {
			return &ConflictError{Entity: "index", Name: i.name, Message: fmt.Sprintf("table %q already has primary key %q", i.table.Name(), pk.Name())}
		}
	}
	i.typ = t
	i.markForAlter()
	return nil
}

func (i *Index) SetAsPrimaryKey() error { return i.SetType(IndexPrimary) }
func (i *Index) SetAsUniqueKey() error  { return i.SetType(IndexUnique) }
func (i *Index) SetAsRegularKey() error { return i.SetType(IndexRegular) }

// Drop marks the index for deletion.
func (i *Index) Drop() error {
	if i.table != nil {
		return i.table.DropIndex(i.name)
	}
	i.markForDeletion()
	return nil
}

// Definition returns the index as driver-facing data.
func (i *Index) Definition() IndexDefinition {
	return IndexDefinition{Name: i.name, Type: i.typ, Columns: i.ColumnNames()}
}

func (i *Index) covers(c *Column) bool {
	for _, col := range i.columns {
		if col == c {
			return true
		}
	}
	return false
}

func (i *Index) onDelete() {}

func (i *Index) onDestroy() {
	i.supersedes = ""
}

func sameColumns(a, b []*Column) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}
