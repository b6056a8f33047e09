package schema

import "context"

// Driver is the engine-specific collaborator the Manager drives. It owns the
// connection and all statement text; the core only sequences operations.
type Driver interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	EngineVersion(ctx context.Context) (string, error)
	CaseInsensitiveNaming(ctx context.Context) (bool, error)

	// Execute runs a raw statement and buffers its rows.
	Execute(ctx context.Context, statement string) (*ResultSet, error)
	SelectNamespace(ctx context.Context, name string) error

	Namespaces(ctx context.Context) ([]string, error)
	IntrospectTables(ctx context.Context, namespace string) ([]TableDefinition, error)
	IntrospectIndexes(ctx context.Context, namespace, table string) ([]IndexDefinition, error)

	// CreateNamespace returns an error matching ErrAlreadyExists when the
	// namespace is already there.
	CreateNamespace(ctx context.Context, name string) error
	DropNamespace(ctx context.Context, name string) error
	CreateTable(ctx context.Context, plan *TablePlan) error
	AlterTable(ctx context.Context, plan *TablePlan) error
	DropIndex(ctx context.Context, namespace, table string, index IndexDefinition) error
	DropTable(ctx context.Context, namespace, table string) error
}

// Row maps column names to values; nil is SQL NULL.
type Row map[string]*string

// ResultSet holds the buffered rows of a statement.
type ResultSet struct {
	Columns      []string
	RowsAffected int64
	rows         []Row
	pos          int
}

// NewResultSet wraps rows that a driver has already read.
func NewResultSet(columns []string, rows []Row, affected int64) *ResultSet {
	return &ResultSet{Columns: columns, rows: rows, RowsAffected: affected}
}

// FetchRow returns the next row, or false at the end.
func (r *ResultSet) FetchRow() (Row, bool) {
	if r == nil || r.pos >= len(r.rows) {
		return nil, false
	}
	row := r.rows[r.pos]
	r.pos++
	return row, true
}

// Len returns the number of buffered rows.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// ChangeKind says what happens to a column or index in a plan.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeModify
	ChangeDrop
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeModify:
		return "modify"
	case ChangeDrop:
		return "drop"
	default:
		return "add"
	}
}

// ColumnChange is one column clause of a CREATE or ALTER.
type ColumnChange struct {
	Kind   ChangeKind
	Column ColumnDefinition
}

// IndexChange is one index clause of a CREATE or ALTER.
type IndexChange struct {
	Kind  ChangeKind
	Index IndexDefinition
}

// ForeignKeyGroup is a single constraint covering every column of a table
// that points at the same referenced table with the same actions.
type ForeignKeyGroup struct {
	Name         string
	Columns      []string
	RefNamespace string
	RefTable     string
	RefColumns   []string
	OnUpdate     Action
	OnDelete     Action
}

// TablePlan is the ordered set of changes for one table. For CREATE every
// change is an add. For ALTER the order is foreign key drops, column
// changes, index changes, foreign key additions, options.
type TablePlan struct {
	Namespace          string
	Table              string
	DroppedForeignKeys []string
	Columns            []ColumnChange
	Indexes            []IndexChange
	ForeignKeys        []ForeignKeyGroup
	Options            []TableOption
}

// Empty reports whether the plan carries no change.
func (p *TablePlan) Empty() bool {
	return len(p.DroppedForeignKeys) == 0 && len(p.Columns) == 0 && len(p.Indexes) == 0 &&
		len(p.ForeignKeys) == 0 && len(p.Options) == 0
}

// PrimaryKey returns the added primary key, if the plan has one.
func (p *TablePlan) PrimaryKey() (IndexDefinition, bool) {
	for _, ic := range p.Indexes {
		if ic.Kind == ChangeAdd && ic.Index.Type == IndexPrimary {
			return ic.Index, true
		}
	}
	return IndexDefinition{}, false
}
