package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/schema"
)

func TestMySQLColumnType(t *testing.T) {
	tests := []struct {
		name    string
		def     schema.ColumnDefinition
		want    string
		wantErr bool
	}{
		{"varchar", schema.ColumnDefinition{Type: schema.TypeVarchar, Size: "100"}, "VARCHAR(100)", false},
		{"char", schema.ColumnDefinition{Type: schema.TypeChar, Size: "3"}, "CHAR(3)", false},
		{"text", schema.ColumnDefinition{Type: schema.TypeMediumText}, "MEDIUMTEXT", false},
		{"tinyint", schema.ColumnDefinition{Type: schema.TypeInt, Size: "1"}, "TINYINT(1)", false},
		{"smallint", schema.ColumnDefinition{Type: schema.TypeInt, Size: "5"}, "SMALLINT(5)", false},
		{"int", schema.ColumnDefinition{Type: schema.TypeInt, Size: "8"}, "INT(8)", false},
		{"bigint unsigned", schema.ColumnDefinition{Type: schema.TypeInt, Size: "10", Unsigned: true}, "BIGINT(10) UNSIGNED", false},
		{"int without size", schema.ColumnDefinition{Type: schema.TypeInt}, "INT", false},
		{"int too wide", schema.ColumnDefinition{Type: schema.TypeInt, Size: "20"}, "", true},
		{"serial", schema.ColumnDefinition{Type: schema.TypeSerial, Size: "10", Unsigned: true}, "BIGINT(10) UNSIGNED", false},
		{"float", schema.ColumnDefinition{Type: schema.TypeFloat, Size: "7,2"}, "FLOAT(7,2)", false},
		{"double", schema.ColumnDefinition{Type: schema.TypeFloat, Size: "30,5"}, "DOUBLE(30,5)", false},
		{"decimal", schema.ColumnDefinition{Type: schema.TypeDecimal, Size: "10,2"}, "DECIMAL(10,2)", false},
		{"decimal too wide", schema.ColumnDefinition{Type: schema.TypeDecimal, Size: "70,2"}, "", true},
		{"unsigned text ignored", schema.ColumnDefinition{Type: schema.TypeText, Unsigned: true}, "TEXT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mysqlColumnType(tt.def)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMySQLColumnClause(t *testing.T) {
	tests := []struct {
		name string
		def  schema.ColumnDefinition
		want string
	}{
		{
			"nullable with null default",
			schema.ColumnDefinition{Name: "title", Type: schema.TypeVarchar, Size: "10", Nullable: true, Default: schema.Default{Kind: schema.DefaultNull}},
			"`title` VARCHAR(10) NULL DEFAULT NULL",
		},
		{
			"literal default is quoted",
			schema.ColumnDefinition{Name: "note", Type: schema.TypeVarchar, Size: "10", Default: schema.Default{Kind: schema.DefaultValue, Value: "it's"}},
			"`note` VARCHAR(10) NOT NULL DEFAULT 'it''s'",
		},
		{
			"expression default is verbatim",
			schema.ColumnDefinition{Name: "created", Type: schema.TypeTimestamp, Default: schema.Default{Kind: schema.DefaultExpression, Value: "CURRENT_TIMESTAMP"}},
			"`created` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP",
		},
		{
			"serial",
			schema.ColumnDefinition{Name: "id", Type: schema.TypeSerial, Size: "10", Unsigned: true},
			"`id` BIGINT(10) UNSIGNED NOT NULL AUTO_INCREMENT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mysqlColumnClause(tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMySQLCreateTable(t *testing.T) {
	plan := &schema.TablePlan{
		Namespace: "shop",
		Table:     "order",
		Columns: []schema.ColumnChange{
			{Column: schema.ColumnDefinition{Name: "id", Type: schema.TypeSerial, Size: "10", Unsigned: true}},
			{Column: schema.ColumnDefinition{Name: "user_id", Type: schema.TypeInt, Size: "10", Unsigned: true}},
		},
		Indexes: []schema.IndexChange{
			{Index: schema.IndexDefinition{Name: schema.PrimaryKeyName, Type: schema.IndexPrimary, Columns: []string{"id"}}},
			{Index: schema.IndexDefinition{Name: "idx_user", Type: schema.IndexRegular, Columns: []string{"user_id"}}},
		},
		ForeignKeys: []schema.ForeignKeyGroup{{
			Name: "fk_order_user", Columns: []string{"user_id"},
			RefNamespace: "shop", RefTable: "user", RefColumns: []string{"id"},
			OnUpdate: schema.ActionCascade, OnDelete: schema.ActionRestrict,
		}},
		Options: []schema.TableOption{{Key: "engine", Value: "InnoDB"}},
	}

	got, err := mysqlCreateTable(plan)
	require.NoError(t, err)
	want := "CREATE TABLE `shop`.`order` (\n" +
		"  `id` BIGINT(10) UNSIGNED NOT NULL AUTO_INCREMENT,\n" +
		"  `user_id` BIGINT(10) UNSIGNED NOT NULL,\n" +
		"  PRIMARY KEY (`id`),\n" +
		"  KEY `idx_user` (`user_id`),\n" +
		"  CONSTRAINT `fk_order_user` FOREIGN KEY (`user_id`) REFERENCES `shop`.`user` (`id`) ON DELETE RESTRICT ON UPDATE CASCADE\n" +
		") ENGINE=InnoDB"
	assert.Equal(t, want, got)
}

func TestMySQLAlterTable(t *testing.T) {
	plan := &schema.TablePlan{
		Namespace:          "shop",
		Table:              "order",
		DroppedForeignKeys: []string{"fk_order_user"},
		Columns: []schema.ColumnChange{
			{Kind: schema.ChangeDrop, Column: schema.ColumnDefinition{Name: "legacy"}},
			{Kind: schema.ChangeModify, Column: schema.ColumnDefinition{Name: "note", Type: schema.TypeText, Nullable: true, Default: schema.Default{Kind: schema.DefaultNull}}},
			{Kind: schema.ChangeAdd, Column: schema.ColumnDefinition{Name: "total", Type: schema.TypeDecimal, Size: "10,2"}},
		},
		Indexes: []schema.IndexChange{
			{Kind: schema.ChangeDrop, Index: schema.IndexDefinition{Name: schema.PrimaryKeyName, Type: schema.IndexPrimary}},
			{Kind: schema.ChangeAdd, Index: schema.IndexDefinition{Name: "pk", Type: schema.IndexPrimary, Columns: []string{"id", "total"}}},
			{Kind: schema.ChangeAdd, Index: schema.IndexDefinition{Name: "uq_note", Type: schema.IndexUnique, Columns: []string{"note"}}},
		},
	}

	got, err := mysqlAlterTable(plan)
	require.NoError(t, err)
	want := "ALTER TABLE `shop`.`order` DROP FOREIGN KEY `fk_order_user`, DROP COLUMN `legacy`, " +
		"MODIFY COLUMN `note` TEXT NULL DEFAULT NULL, ADD COLUMN `total` DECIMAL(10,2) NOT NULL, " +
		"DROP PRIMARY KEY, ADD PRIMARY KEY (`id`, `total`), ADD UNIQUE KEY `uq_note` (`note`)"
	assert.Equal(t, want, got)

	empty, err := mysqlAlterTable(&schema.TablePlan{Namespace: "shop", Table: "order"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMySQLDropIndex(t *testing.T) {
	assert.Equal(t, "ALTER TABLE `s`.`t` DROP PRIMARY KEY",
		mysqlDropIndex("s", "t", schema.IndexDefinition{Name: "PRIMARY", Type: schema.IndexPrimary}))
	assert.Equal(t, "ALTER TABLE `s`.`t` DROP INDEX `idx`",
		mysqlDropIndex("s", "t", schema.IndexDefinition{Name: "idx", Type: schema.IndexUnique}))
}

func TestMySQLGenericColumn(t *testing.T) {
	ptr := func(s string) *string { return &s }

	tests := []struct {
		name       string
		dataType   string
		columnType string
		nullable   bool
		def        *string
		extra      string
		want       schema.ColumnDefinition
		known      bool
	}{
		{
			name: "varchar", dataType: "varchar", columnType: "varchar(255)", nullable: true,
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeVarchar, Size: "255", Nullable: true, Default: schema.Default{Kind: schema.DefaultNull}},
			known: true,
		},
		{
			name: "auto increment", dataType: "int", columnType: "int unsigned", extra: "auto_increment",
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeSerial, Size: "10", Unsigned: true},
			known: true,
		},
		{
			name: "int without display width", dataType: "bigint", columnType: "bigint", def: ptr("0"),
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeInt, Size: "10", Default: schema.Default{Kind: schema.DefaultValue, Value: "0"}},
			known: true,
		},
		{
			name: "decimal", dataType: "decimal", columnType: "decimal(8,2)",
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeDecimal, Size: "8,2"},
			known: true,
		},
		{
			name: "double without scale", dataType: "double", columnType: "double(12)",
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeFloat, Size: "12,0"},
			known: true,
		},
		{
			name: "timestamp expression", dataType: "timestamp", columnType: "timestamp", def: ptr("CURRENT_TIMESTAMP"), extra: "DEFAULT_GENERATED",
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeTimestamp, Default: schema.Default{Kind: schema.DefaultExpression, Value: "CURRENT_TIMESTAMP"}},
			known: true,
		},
		{
			name: "unknown type", dataType: "json", columnType: "json", nullable: true,
			want:  schema.ColumnDefinition{Name: "c", Type: schema.TypeText, Nullable: true, Default: schema.Default{Kind: schema.DefaultNull}},
			known: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := mysqlGenericColumn("c", tt.dataType, tt.columnType, tt.nullable, tt.def, tt.extra)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMySQLEngine(t *testing.T) {
	opt, err := MySQLEngine("innodb")
	require.NoError(t, err)
	assert.Equal(t, schema.TableOption{Key: "engine", Value: "InnoDB"}, opt)

	_, err = MySQLEngine("rocksdb")
	assert.Error(t, err)
}

func TestParseTypeArgs(t *testing.T) {
	tests := []struct {
		in, base, args string
	}{
		{"varchar(255)", "varchar", "255"},
		{"decimal(10, 2) unsigned", "decimal", "10,2"},
		{"int unsigned", "int", ""},
		{"TEXT", "text", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		base, args := parseTypeArgs(tt.in)
		assert.Equal(t, tt.base, base, tt.in)
		assert.Equal(t, tt.args, args, tt.in)
	}
}
