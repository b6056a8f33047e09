package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var scaledSize = regexp.MustCompile(`^(\d+)(?:,(\d+))?$`)

const serialSize = "10"

// Column is a table column. A new column is nullable, signed and defaults
// to NULL.
type Column struct {
	lifecycle
	table    *Table
	typ      ColumnType
	size     string
	nullable bool
	def      Default
	unsigned bool
	ref      *Reference
	retired  []*Reference
}

// NewColumn creates a column in StateCreate.
func NewColumn(name string) *Column {
	c := &Column{nullable: true, def: Default{Kind: DefaultNull}}
	c.init(name, c)
	return c
}

func (c *Column) Type() ColumnType      { return c.typ }
func (c *Column) Size() string          { return c.size }
func (c *Column) Nullable() bool        { return c.nullable }
func (c *Column) Default() Default      { return c.def }
func (c *Column) IsUnsigned() bool      { return c.unsigned }
func (c *Column) Table() *Table         { return c.table }
func (c *Column) Reference() *Reference { return c.ref }

// SetType changes the generic type. Switching to TypeSerial forces the
// column to NOT NULL, unsigned, size 10 and no default.
func (c *Column) SetType(t ColumnType) error {
	if t == "" {
		return c.configErr("type must not be empty")
	}
	if _, err := ParseColumnType(string(t)); err != nil {
		return c.configErr(err.Error())
	}
	if t == c.typ {
		return nil
	}

	size := c.size
	switch {
	case t == TypeSerial:
		size = serialSize
	case !t.Sized():
		size = ""
	case size != "":
		normalized, err := normalizeSize(t, size)
		if err != nil {
			return c.configErr(err.Error())
		}
		size = normalized
	}

	c.typ = t
	c.size = size
	if t == TypeSerial {
		c.nullable = false
		c.unsigned = true
		c.def = Default{}
	}
	c.markForAlter()
	return nil
}

// SetTypeName is SetType for a type given by name.
func (c *Column) SetTypeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return c.configErr("type must not be empty")
	}
	t, err := ParseColumnType(name)
	if err != nil {
		return c.configErr(err.Error())
	}
	return c.SetType(t)
}

// SetSize sets the size. Float and decimal accept "precision" or
// "precision,scale"; a bare precision gets scale 0.
func (c *Column) SetSize(size string) error {
	if c.typ == "" {
		return c.configErr("set a type before the size")
	}
	normalized, err := normalizeSize(c.typ, size)
	if err != nil {
		return c.configErr(err.Error())
	}
	if c.def.Kind == DefaultValue {
		if err := checkDefaultLength(c.typ, normalized, c.def.Value); err != nil {
			return c.configErr(err.Error())
		}
	}
	if normalized == c.size {
		return nil
	}
	c.size = normalized
	c.markForAlter()
	return nil
}

// SetLength is SetSize for a plain integer size.
func (c *Column) SetLength(n int) error {
	return c.SetSize(strconv.Itoa(n))
}

// AllowNull makes the column nullable.
func (c *Column) AllowNull() error {
	if c.typ == TypeSerial {
		return c.configErr("serial columns cannot be nullable")
	}
	if c.nullable {
		return nil
	}
	c.nullable = true
	c.markForAlter()
	return nil
}

// ForbidNull makes the column NOT NULL. A NULL default is dropped.
func (c *Column) ForbidNull() {
	if !c.nullable {
		return
	}
	c.nullable = false
	if c.def.Kind == DefaultNull {
		c.def = Default{}
	}
	c.markForAlter()
}

// SetDefault sets a literal default value.
func (c *Column) SetDefault(value string) error {
	if c.typ == TypeSerial {
		return c.configErr("serial columns have no default")
	}
	if err := checkDefaultLength(c.typ, c.size, value); err != nil {
		return c.configErr(err.Error())
	}
	c.setDefault(Default{Kind: DefaultValue, Value: value})
	return nil
}

// SetDefaultNull makes NULL the default.
func (c *Column) SetDefaultNull() error {
	if !c.nullable {
		return c.configErr("NOT NULL columns cannot default to NULL")
	}
	c.setDefault(Default{Kind: DefaultNull})
	return nil
}

// SetDefaultExpression sets a default that is emitted verbatim, such as
// CURRENT_TIMESTAMP.
func (c *Column) SetDefaultExpression(expr string) error {
	if c.typ == TypeSerial {
		return c.configErr("serial columns have no default")
	}
	if strings.TrimSpace(expr) == "" {
		return c.configErr("default expression must not be empty")
	}
	c.setDefault(Default{Kind: DefaultExpression, Value: expr})
	return nil
}

// ClearDefault removes the default.
func (c *Column) ClearDefault() {
	c.setDefault(Default{})
}

func (c *Column) setDefault(d Default) {
	if d == c.def {
		return
	}
	c.def = d
	c.markForAlter()
}

// Signed marks a numeric column as signed.
func (c *Column) Signed() error {
	if c.typ == TypeSerial {
		return c.configErr("serial columns are always unsigned")
	}
	if !c.unsigned {
		return nil
	}
	c.unsigned = false
	c.markForAlter()
	return nil
}

// Unsigned marks a numeric column as unsigned.
func (c *Column) Unsigned() {
	if c.unsigned {
		return
	}
	c.unsigned = true
	c.markForAlter()
}

// References makes c a foreign key to target. Both columns must have the same
// type, size and signedness; an int column may reference a serial one.
func (c *Column) References(target *Column) (*Reference, error) {
	if target == nil {
		return nil, c.configErr("referenced column is nil")
	}
	if target == c {
		return nil, c.configErr("a column cannot reference itself")
	}
	if err := compatible(c, target); err != nil {
		return nil, c.configErr(err.Error())
	}
	if c.ref != nil && c.ref.target == target {
		return c.ref, nil
	}
	if c.ref != nil {
		c.retire(c.ref)
	}
	r := newReference(c, target)
	c.ref = r
	c.notifyChanged()
	return r, nil
}

// DropReference removes the outgoing foreign key.
func (c *Column) DropReference() error {
	if c.ref == nil {
		return &NotFoundError{Entity: "reference", Name: c.name}
	}
	c.retire(c.ref)
	return nil
}

func (c *Column) retire(r *Reference) {
	if c.ref == r {
		c.ref = nil
	}
	r.markForDeletion()
	if r.State() == StateDelete {
		c.retired = append(c.retired, r)
	}
}

// IsFK reports whether the column carries a live foreign key.
func (c *Column) IsFK() bool {
	return c.ref != nil && c.ref.live()
}

// ReferencedColumn returns the column this one points at, or nil.
func (c *Column) ReferencedColumn() *Column {
	if !c.IsFK() {
		return nil
	}
	return c.ref.target
}

// CarbonCopy returns a new column that can reference c: same type, size,
// signedness, nullability and default. A serial source yields an int.
func (c *Column) CarbonCopy(name string) *Column {
	cp := NewColumn(name)
	cp.typ = c.typ
	cp.size = c.size
	cp.nullable = c.nullable
	cp.def = c.def
	cp.unsigned = c.unsigned
	if c.typ == TypeSerial {
		cp.typ = TypeInt
	}
	return cp
}

// Drop marks the column for deletion.
func (c *Column) Drop() error {
	if c.table != nil {
		return c.table.DropColumn(c.name)
	}
	c.markForDeletion()
	return nil
}

// Definition returns the column as driver-facing data.
func (c *Column) Definition() ColumnDefinition {
	return ColumnDefinition{
		Name:     c.name,
		Type:     c.typ,
		Size:     c.size,
		Nullable: c.nullable,
		Default:  c.def,
		Unsigned: c.unsigned,
	}
}

func (c *Column) validate() error {
	if c.typ == "" {
		return c.configErr("type must not be empty")
	}
	if (c.typ == TypeVarchar || c.typ == TypeChar) && c.size == "" {
		return c.configErr(fmt.Sprintf("%s columns need a size", c.typ))
	}
	return nil
}

func (c *Column) configErr(msg string) error {
	return &ConfigurationError{Entity: "column", Name: c.name, Message: msg}
}

func (c *Column) notifyChanged() {
	if c.sink != nil {
		c.sink.notifyChanged()
	}
}

func (c *Column) notifySynced() {
	if c.sink != nil {
		c.sink.notifySynced()
	}
}

func (c *Column) notifyDeleted(child any) {
	r, ok := child.(*Reference)
	if !ok {
		return
	}
	if c.ref == r {
		c.ref = nil
	}
	for i, old := range c.retired {
		if old == r {
			c.retired = append(c.retired[:i], c.retired[i+1:]...)
			break
		}
	}
}

func (c *Column) caseSensitive() bool {
	return c.sink != nil && c.sink.caseSensitive()
}

func (c *Column) onDelete() {
	if c.ref != nil {
		c.retire(c.ref)
	}
}

func (c *Column) onDestroy() {
	if c.ref != nil {
		c.ref.forceState(StateDeleted)
		c.ref = nil
	}
	for _, r := range c.retired {
		r.forceState(StateDeleted)
	}
	c.retired = nil
}

func normalizeSize(t ColumnType, size string) (string, error) {
	size = strings.ReplaceAll(strings.TrimSpace(size), " ", "")
	switch {
	case t == TypeSerial:
		if size != "" && size != serialSize {
			return "", fmt.Errorf("serial columns are always size %s", serialSize)
		}
		return serialSize, nil
	case !t.Sized():
		if size != "" {
			return "", fmt.Errorf("type %s takes no size", t)
		}
		return "", nil
	case size == "":
		return "", nil
	case t.Scaled():
		m := scaledSize.FindStringSubmatch(size)
		if m == nil {
			return "", fmt.Errorf("size %q is not precision[,scale]", size)
		}
		precision, _ := strconv.Atoi(m[1])
		scale := 0
		if m[2] != "" {
			scale, _ = strconv.Atoi(m[2])
		}
		if precision == 0 || scale > precision {
			return "", fmt.Errorf("size %q is out of range", size)
		}
		return fmt.Sprintf("%d,%d", precision, scale), nil
	default:
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("size %q is not a positive integer", size)
		}
		return strconv.Itoa(n), nil
	}
}

func checkDefaultLength(t ColumnType, size, value string) error {
	if !t.Sized() || size == "" {
		return nil
	}
	limit, err := strconv.Atoi(strings.SplitN(size, ",", 2)[0])
	if err != nil {
		return nil
	}
	length := utf8.RuneCountInString(value)
	if t.Numeric() {
		length = 0
		for _, r := range value {
			if r >= '0' && r <= '9' {
				length++
			}
		}
	}
	if length > limit {
		return fmt.Errorf("default %q is longer than size %s", value, size)
	}
	return nil
}

func compatible(c, target *Column) error {
	sameType := c.typ == target.typ || (c.typ == TypeInt && target.typ == TypeSerial)
	if !sameType || c.size != target.size || c.unsigned != target.unsigned {
		return fmt.Errorf("cannot reference %q: %s is not compatible with %s",
			target.name, describe(c), describe(target))
	}
	return nil
}

func describe(c *Column) string {
	s := string(c.typ)
	if s == "" {
		s = "untyped"
	}
	if c.size != "" {
		s += "(" + c.size + ")"
	}
	if c.unsigned {
		s += " unsigned"
	}
	return s
}

func columnFromDefinition(def ColumnDefinition) *Column {
	c := NewColumn(def.Name)
	c.typ = def.Type
	c.size = def.Size
	c.nullable = def.Nullable
	c.def = def.Default
	c.unsigned = def.Unsigned
	return c
}
