package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/schema"
)

func TestSetSizeNormalization(t *testing.T) {
	tests := []struct {
		name    string
		typ     schema.ColumnType
		size    string
		want    string
		wantErr bool
	}{
		{"varchar", schema.TypeVarchar, "100", "100", false},
		{"varchar trims", schema.TypeVarchar, " 64 ", "64", false},
		{"varchar zero", schema.TypeVarchar, "0", "", true},
		{"varchar not a number", schema.TypeVarchar, "abc", "", true},
		{"decimal precision only", schema.TypeDecimal, "10", "10,0", false},
		{"decimal with scale", schema.TypeDecimal, "10, 2", "10,2", false},
		{"decimal scale above precision", schema.TypeDecimal, "2,5", "", true},
		{"float precision only", schema.TypeFloat, "7", "7,0", false},
		{"text takes no size", schema.TypeText, "10", "", true},
		{"serial is always 10", schema.TypeSerial, "10", "10", false},
		{"serial rejects other sizes", schema.TypeSerial, "11", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := schema.NewColumn("c")
			require.NoError(t, c.SetType(tt.typ))
			err := c.SetSize(tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, schema.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Size())
		})
	}
}

func TestSetSizeNeedsType(t *testing.T) {
	c := schema.NewColumn("c")
	err := c.SetSize("10")
	assert.True(t, errors.Is(err, schema.ErrConfiguration))
}

func TestSetTypeName(t *testing.T) {
	c := schema.NewColumn("c")
	require.NoError(t, c.SetTypeName("VARCHAR"))
	assert.Equal(t, schema.TypeVarchar, c.Type())

	assert.True(t, errors.Is(c.SetTypeName("geometry"), schema.ErrConfiguration))
	assert.True(t, errors.Is(c.SetTypeName(" "), schema.ErrConfiguration))
	assert.True(t, errors.Is(c.SetType(""), schema.ErrConfiguration))
}

func TestSerialForcesConstraints(t *testing.T) {
	c := schema.NewColumn("id")
	require.NoError(t, c.SetType(schema.TypeSerial))

	assert.Equal(t, "10", c.Size())
	assert.False(t, c.Nullable())
	assert.True(t, c.IsUnsigned())
	assert.Equal(t, schema.DefaultNone, c.Default().Kind)

	assert.Error(t, c.AllowNull())
	assert.Error(t, c.SetDefault("1"))
	assert.Error(t, c.SetDefaultExpression("CURRENT_TIMESTAMP"))
	assert.Error(t, c.Signed())
}

func TestSwitchingToUnsizedTypeClearsSize(t *testing.T) {
	c := schema.NewColumn("c")
	require.NoError(t, c.SetType(schema.TypeVarchar))
	require.NoError(t, c.SetLength(20))
	require.NoError(t, c.SetType(schema.TypeText))
	assert.Empty(t, c.Size())

	d := schema.NewColumn("d")
	require.NoError(t, d.SetType(schema.TypeInt))
	require.NoError(t, d.SetLength(5))
	require.NoError(t, d.SetType(schema.TypeDecimal))
	assert.Equal(t, "5,0", d.Size())
}

func TestDefaults(t *testing.T) {
	c := schema.NewColumn("status")
	require.NoError(t, c.SetType(schema.TypeVarchar))
	require.NoError(t, c.SetLength(5))

	assert.Equal(t, schema.DefaultNull, c.Default().Kind)

	require.NoError(t, c.SetDefault("draft"))
	assert.Equal(t, schema.Default{Kind: schema.DefaultValue, Value: "draft"}, c.Default())

	err := c.SetDefault("published")
	assert.True(t, errors.Is(err, schema.ErrConfiguration), "longer than the size")

	err = c.SetSize("3")
	assert.True(t, errors.Is(err, schema.ErrConfiguration), "shrinking below the default")

	c.ForbidNull()
	assert.Error(t, c.SetDefaultNull())
	require.NoError(t, c.AllowNull())
	require.NoError(t, c.SetDefaultNull())

	c.ForbidNull()
	assert.Equal(t, schema.DefaultNone, c.Default().Kind, "NOT NULL drops a NULL default")

	c.ClearDefault()
	assert.Equal(t, schema.DefaultNone, c.Default().Kind)
	assert.Error(t, c.SetDefaultExpression("  "))
}

func TestDefaultChangesMarkAlterOnlyWhenDifferent(t *testing.T) {
	d, m, _, book := library(t)
	title, ok := book.Column("title")
	require.True(t, ok)

	require.NoError(t, title.SetDefaultNull())
	assert.True(t, title.IsSynced(), "same default")

	title.ClearDefault()
	assert.True(t, title.ShouldAlter())
	require.NoError(t, m.Flush(context.Background()))

	title.ClearDefault()
	assert.True(t, title.IsSynced(), "already without default")

	reloaded, ok := reloadTable(t, d, "library", "book").Column("title")
	require.True(t, ok)
	assert.Equal(t, schema.DefaultNone, reloaded.Default().Kind)
}

func TestNumericDefaultCountsDigits(t *testing.T) {
	c := schema.NewColumn("price")
	require.NoError(t, c.SetType(schema.TypeDecimal))
	require.NoError(t, c.SetSize("4,2"))
	require.NoError(t, c.SetDefault("-12.50"))
	assert.Error(t, c.SetDefault("123.45"))
}

func TestReferenceCompatibility(t *testing.T) {
	id := schema.NewColumn("id")
	require.NoError(t, id.SetType(schema.TypeSerial))

	ok := id.CarbonCopy("author_id")
	_, err := ok.References(id)
	require.NoError(t, err)
	assert.True(t, ok.IsFK())
	assert.Same(t, id, ok.ReferencedColumn())

	signed := schema.NewColumn("signed_id")
	require.NoError(t, signed.SetType(schema.TypeInt))
	require.NoError(t, signed.SetLength(10))
	_, err = signed.References(id)
	assert.True(t, errors.Is(err, schema.ErrConfiguration))

	_, err = id.References(id)
	assert.True(t, errors.Is(err, schema.ErrConfiguration))
	_, err = ok.References(nil)
	assert.True(t, errors.Is(err, schema.ErrConfiguration))
}

func TestReferenceDefaultsAndActions(t *testing.T) {
	id := schema.NewColumn("id")
	require.NoError(t, id.SetType(schema.TypeSerial))
	fk := id.CarbonCopy("parent_id")

	ref, err := fk.References(id)
	require.NoError(t, err)
	assert.Equal(t, schema.ActionCascade, ref.OnUpdate())
	assert.Equal(t, schema.ActionCascade, ref.OnDelete())

	ref.SetOnUpdate(schema.ActionNoAction).SetOnDelete(schema.ActionSetNull)
	assert.Equal(t, "NO ACTION", ref.OnUpdate().SQL())
	assert.Equal(t, "SET NULL", ref.OnDelete().SQL())

	same, err := fk.References(id)
	require.NoError(t, err)
	assert.Same(t, ref, same)

	require.NoError(t, fk.DropReference())
	assert.False(t, fk.IsFK())
	assert.Nil(t, fk.ReferencedColumn())
	assert.True(t, schema.IsNotFound(fk.DropReference()))
}

func TestCarbonCopy(t *testing.T) {
	src := schema.NewColumn("code")
	require.NoError(t, src.SetType(schema.TypeChar))
	require.NoError(t, src.SetLength(3))
	src.ForbidNull()
	require.NoError(t, src.SetDefault("EUR"))

	cp := src.CarbonCopy("currency")
	assert.Equal(t, "currency", cp.Name())
	assert.Equal(t, schema.TypeChar, cp.Type())
	assert.Equal(t, "3", cp.Size())
	assert.False(t, cp.Nullable())
	assert.Equal(t, src.Default(), cp.Default())
	assert.True(t, cp.ShouldCreate())
	assert.False(t, cp.IsFK())
}

func TestActionAndIndexTypeParsing(t *testing.T) {
	for in, want := range map[string]schema.Action{
		"cascade":   schema.ActionCascade,
		"RESTRICT":  schema.ActionRestrict,
		"SET NULL":  schema.ActionSetNull,
		"noaction":  schema.ActionNoAction,
		"No Action": schema.ActionNoAction,
	} {
		got, err := schema.ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := schema.ParseAction("explode")
	assert.True(t, errors.Is(err, schema.ErrConfiguration))

	for in, want := range map[string]schema.IndexType{
		"regular": schema.IndexRegular,
		"unique":  schema.IndexUnique,
		"pk":      schema.IndexPrimary,
		"PRIMARY": schema.IndexPrimary,
	} {
		got, err := schema.ParseIndexType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err = schema.ParseIndexType("fulltext")
	assert.Error(t, err)
}
