package schema

import (
	"fmt"
	"strings"
)

// ColumnType is the engine-neutral column type. Drivers map it to and from
// their own type names.
type ColumnType string

const (
	TypeVarchar    ColumnType = "varchar"
	TypeChar       ColumnType = "char"
	TypeTinyText   ColumnType = "tinytext"
	TypeText       ColumnType = "text"
	TypeMediumText ColumnType = "mediumtext"
	TypeLongText   ColumnType = "longtext"
	TypeBlob       ColumnType = "blob"
	TypeMediumBlob ColumnType = "mediumblob"
	TypeLongBlob   ColumnType = "longblob"
	TypeInt        ColumnType = "int"
	TypeSerial     ColumnType = "serial"
	TypeFloat      ColumnType = "float"
	TypeDecimal    ColumnType = "decimal"
	TypeDatetime   ColumnType = "datetime"
	TypeTimestamp  ColumnType = "timestamp"
)

// ColumnTypes lists every supported column type.
var ColumnTypes = []ColumnType{
	TypeVarchar, TypeChar, TypeTinyText, TypeText, TypeMediumText, TypeLongText,
	TypeBlob, TypeMediumBlob, TypeLongBlob, TypeInt, TypeSerial, TypeFloat,
	TypeDecimal, TypeDatetime, TypeTimestamp,
}

// ParseColumnType resolves a type name, ignoring case.
func ParseColumnType(name string) (ColumnType, error) {
	for _, t := range ColumnTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported column type %q", name)
}

// Numeric reports whether the type holds numbers.
func (t ColumnType) Numeric() bool {
	switch t {
	case TypeInt, TypeSerial, TypeFloat, TypeDecimal:
		return true
	}
	return false
}

// Sized reports whether the type carries a size.
func (t ColumnType) Sized() bool {
	switch t {
	case TypeVarchar, TypeChar, TypeInt, TypeSerial, TypeFloat, TypeDecimal:
		return true
	}
	return false
}

// Scaled reports whether the size is a precision,scale pair.
func (t ColumnType) Scaled() bool {
	return t == TypeFloat || t == TypeDecimal
}

// IndexType distinguishes regular, unique and primary keys.
type IndexType int

const (
	IndexRegular IndexType = iota
	IndexUnique
	IndexPrimary
)

func (t IndexType) String() string {
	switch t {
	case IndexUnique:
		return "unique"
	case IndexPrimary:
		return "pk"
	default:
		return "regular"
	}
}

// ParseIndexType accepts regular, unique, pk and primary.
func ParseIndexType(name string) (IndexType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "regular", "index", "key":
		return IndexRegular, nil
	case "unique":
		return IndexUnique, nil
	case "pk", "primary":
		return IndexPrimary, nil
	}
	return 0, fmt.Errorf("unsupported index type %q", name)
}

// Action is a foreign key referential action.
type Action int

const (
	ActionCascade Action = iota
	ActionRestrict
	ActionSetNull
	ActionNoAction
)

// SQL returns the action as it appears in DDL.
func (a Action) SQL() string {
	switch a {
	case ActionRestrict:
		return "RESTRICT"
	case ActionSetNull:
		return "SET NULL"
	case ActionNoAction:
		return "NO ACTION"
	default:
		return "CASCADE"
	}
}

func (a Action) String() string {
	switch a {
	case ActionRestrict:
		return "restrict"
	case ActionSetNull:
		return "setnull"
	case ActionNoAction:
		return "noaction"
	default:
		return "cascade"
	}
}

// ParseAction accepts both the short names and the DDL spelling.
func ParseAction(name string) (Action, error) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	switch n {
	case "cascade":
		return ActionCascade, nil
	case "restrict":
		return ActionRestrict, nil
	case "setnull":
		return ActionSetNull, nil
	case "noaction":
		return ActionNoAction, nil
	}
	return 0, &ConfigurationError{Entity: "reference action", Name: name, Message: "expected cascade, restrict, setnull or noaction"}
}

// DefaultKind says how a column default is expressed.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultNull
	DefaultValue
	DefaultExpression
)

// Default is a column default. Value is set for DefaultValue and
// DefaultExpression.
type Default struct {
	Kind  DefaultKind
	Value string
}

func (d Default) String() string {
	switch d.Kind {
	case DefaultNull:
		return "NULL"
	case DefaultValue:
		return fmt.Sprintf("'%s'", d.Value)
	case DefaultExpression:
		return d.Value
	default:
		return ""
	}
}

// TableOption is an engine-specific table setting such as the storage engine.
// The core stores and forwards options without interpreting them.
type TableOption struct {
	Key   string
	Value string
}

// ColumnDefinition is the neutral description of a column exchanged with
// drivers.
type ColumnDefinition struct {
	Name     string
	Type     ColumnType
	Size     string
	Nullable bool
	Default  Default
	Unsigned bool
}

// IndexDefinition describes an index as seen by a driver.
type IndexDefinition struct {
	Name    string
	Type    IndexType
	Columns []string
}

// ForeignKeyDefinition is one referencing/referenced column pair of a live
// foreign key constraint.
type ForeignKeyDefinition struct {
	Name      string
	Column    string
	RefSchema string
	RefTable  string
	RefColumn string
	OnUpdate  Action
	OnDelete  Action
}

// TableDefinition is a table as returned by driver introspection.
type TableDefinition struct {
	Name        string
	Columns     []ColumnDefinition
	Indexes     []IndexDefinition
	ForeignKeys []ForeignKeyDefinition
	Options     []TableOption
}
