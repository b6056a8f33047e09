package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/schema"
)

func connectedMemory(t *testing.T) *MemoryDriver {
	t.Helper()
	d := NewMemoryDriver()
	require.NoError(t, d.Connect(context.Background()))
	return d
}

func usersPlan() *schema.TablePlan {
	return &schema.TablePlan{
		Namespace: "app",
		Table:     "users",
		Columns: []schema.ColumnChange{
			{Column: schema.ColumnDefinition{Name: "id", Type: schema.TypeSerial, Size: "10", Unsigned: true}},
			{Column: schema.ColumnDefinition{Name: "email", Type: schema.TypeVarchar, Size: "100"}},
		},
		Indexes: []schema.IndexChange{
			{Index: schema.IndexDefinition{Name: "uq_email", Type: schema.IndexUnique, Columns: []string{"email"}}},
			{Index: schema.IndexDefinition{Name: "pk", Type: schema.IndexPrimary, Columns: []string{"id"}}},
		},
	}
}

func TestMemoryRequiresConnection(t *testing.T) {
	d := NewMemoryDriver()
	_, err := d.Namespaces(context.Background())
	assert.ErrorIs(t, err, errNotConnected)

	err = d.CreateNamespace(context.Background(), "app")
	assert.ErrorIs(t, err, errNotConnected)
	assert.ErrorIs(t, err, schema.ErrDriver)
}

func TestMemoryNamespaces(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)

	require.NoError(t, d.CreateNamespace(ctx, "app"))
	err := d.CreateNamespace(ctx, "APP")
	assert.ErrorIs(t, err, schema.ErrAlreadyExists)

	names, err := d.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, names)

	require.NoError(t, d.SelectNamespace(ctx, "app"))
	assert.Error(t, d.SelectNamespace(ctx, "missing"))

	require.NoError(t, d.DropNamespace(ctx, "app"))
	names, _ = d.Namespaces(ctx)
	assert.Empty(t, names)
	assert.Equal(t, []string{"CREATE DATABASE `app`", "DROP DATABASE `app`"}, d.Statements())
}

func TestMemoryCreateTableStoresPrimaryKeyFirst(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)
	require.NoError(t, d.CreateNamespace(ctx, "app"))
	require.NoError(t, d.CreateTable(ctx, usersPlan()))

	indexes, err := d.IntrospectIndexes(ctx, "app", "users")
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.Equal(t, schema.IndexDefinition{Name: schema.PrimaryKeyName, Type: schema.IndexPrimary, Columns: []string{"id"}}, indexes[0])
	assert.Equal(t, "uq_email", indexes[1].Name)

	err = d.CreateTable(ctx, usersPlan())
	assert.ErrorIs(t, err, schema.ErrDriver)

	tables, err := d.IntrospectTables(ctx, "app")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	tables[0].Columns[0].Name = "changed"

	again, _ := d.IntrospectTables(ctx, "app")
	assert.Equal(t, "id", again[0].Columns[0].Name, "introspection returns copies")
}

func TestMemoryAlterIsAtomic(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)
	require.NoError(t, d.CreateNamespace(ctx, "app"))
	require.NoError(t, d.CreateTable(ctx, usersPlan()))

	bad := &schema.TablePlan{
		Namespace: "app",
		Table:     "users",
		Columns: []schema.ColumnChange{
			{Kind: schema.ChangeAdd, Column: schema.ColumnDefinition{Name: "name", Type: schema.TypeVarchar, Size: "10"}},
			{Kind: schema.ChangeDrop, Column: schema.ColumnDefinition{Name: "missing"}},
		},
	}
	assert.ErrorIs(t, d.AlterTable(ctx, bad), schema.ErrDriver)

	tables, _ := d.IntrospectTables(ctx, "app")
	assert.Len(t, tables[0].Columns, 2, "a failed alter leaves the table untouched")
}

func TestMemoryDropColumnPrunesIndexes(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)
	require.NoError(t, d.CreateNamespace(ctx, "app"))
	require.NoError(t, d.CreateTable(ctx, usersPlan()))

	require.NoError(t, d.AlterTable(ctx, &schema.TablePlan{
		Namespace: "app",
		Table:     "users",
		Columns: []schema.ColumnChange{
			{Kind: schema.ChangeDrop, Column: schema.ColumnDefinition{Name: "email"}},
		},
	}))
	indexes, _ := d.IntrospectIndexes(ctx, "app", "users")
	require.Len(t, indexes, 1)
	assert.Equal(t, schema.IndexPrimary, indexes[0].Type)
}

func TestMemoryForeignKeys(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)
	require.NoError(t, d.CreateNamespace(ctx, "app"))
	require.NoError(t, d.CreateTable(ctx, usersPlan()))

	posts := &schema.TablePlan{
		Namespace: "app",
		Table:     "posts",
		Columns: []schema.ColumnChange{
			{Column: schema.ColumnDefinition{Name: "id", Type: schema.TypeSerial, Size: "10", Unsigned: true}},
			{Column: schema.ColumnDefinition{Name: "user_id", Type: schema.TypeInt, Size: "10", Unsigned: true}},
		},
		ForeignKeys: []schema.ForeignKeyGroup{{
			Name: "fk_posts_users", Columns: []string{"user_id"},
			RefNamespace: "app", RefTable: "users", RefColumns: []string{"id"},
			OnDelete: schema.ActionSetNull,
		}},
	}
	require.NoError(t, d.CreateTable(ctx, posts))

	tables, _ := d.IntrospectTables(ctx, "app")
	require.Len(t, tables, 2)
	assert.Equal(t, "posts", tables[0].Name)
	assert.Equal(t, []schema.ForeignKeyDefinition{{
		Name: "fk_posts_users", Column: "user_id",
		RefSchema: "app", RefTable: "users", RefColumn: "id",
		OnDelete: schema.ActionSetNull,
	}}, tables[0].ForeignKeys)

	err := d.AlterTable(ctx, &schema.TablePlan{
		Namespace: "app",
		Table:     "posts",
		Columns:   []schema.ColumnChange{{Kind: schema.ChangeDrop, Column: schema.ColumnDefinition{Name: "user_id"}}},
	})
	assert.ErrorIs(t, err, schema.ErrDriver, "a column used by a foreign key cannot be dropped")

	orphan := &schema.TablePlan{
		Namespace: "app",
		Table:     "comments",
		Columns:   []schema.ColumnChange{{Column: schema.ColumnDefinition{Name: "post_id", Type: schema.TypeInt}}},
		ForeignKeys: []schema.ForeignKeyGroup{{
			Name: "fk_comments_missing", Columns: []string{"post_id"},
			RefNamespace: "app", RefTable: "missing", RefColumns: []string{"id"},
		}},
	}
	assert.ErrorIs(t, d.CreateTable(ctx, orphan), schema.ErrDriver)
}

func TestMemoryFailOn(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)
	require.NoError(t, d.CreateNamespace(ctx, "app"))

	d.FailOn("create table", errBoom)
	err := d.CreateTable(ctx, usersPlan())
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, schema.ErrDriver)

	d.ClearFailures()
	d.FailOn("`users`", errBoom)
	assert.ErrorIs(t, d.CreateTable(ctx, usersPlan()), errBoom)
	assert.NoError(t, d.DropNamespace(ctx, "app"))

	d.ClearFailures()
	d.FailOn("connect", errBoom)
	assert.ErrorIs(t, d.Connect(ctx), errBoom)
	assert.Equal(t, 1, d.Connections())
}

func TestMemoryExecute(t *testing.T) {
	ctx := context.Background()
	d := connectedMemory(t)
	require.NoError(t, d.CreateNamespace(ctx, "app"))
	require.NoError(t, d.CreateTable(ctx, usersPlan()))

	rs, err := d.Execute(ctx, "SHOW DATABASES;")
	require.NoError(t, err)
	row, ok := rs.FetchRow()
	require.True(t, ok)
	assert.Equal(t, "app", *row["Database"])
	_, ok = rs.FetchRow()
	assert.False(t, ok)

	require.NoError(t, d.SelectNamespace(ctx, "app"))
	rs, err = d.Execute(ctx, "show tables")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tables_in_app"}, rs.Columns)
	assert.Equal(t, 1, rs.Len())

	_, err = d.Execute(ctx, "SELECT 1")
	assert.True(t, schema.IsUnsupported(err))
}

func TestMemoryCaseSensitiveCatalog(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDriver()
	d.SetCaseInsensitiveNaming(false)
	require.NoError(t, d.Connect(ctx))

	insensitive, err := d.CaseInsensitiveNaming(ctx)
	require.NoError(t, err)
	assert.False(t, insensitive)

	require.NoError(t, d.CreateNamespace(ctx, "app"))
	require.NoError(t, d.CreateNamespace(ctx, "APP"))
	names, _ := d.Namespaces(ctx)
	assert.Equal(t, []string{"APP", "app"}, names)
}
