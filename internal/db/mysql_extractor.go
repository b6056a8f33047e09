package db

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tordrt/schemasync/internal/schema"
)

var mysqlSystemSchemas = []string{"information_schema", "mysql", "performance_schema", "sys"}

// Namespaces lists the user databases.
func (d *MySQLDriver) Namespaces(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("schema_name").
		From("information_schema.schemata").
		Where(sq.NotEq{"schema_name": mysqlSystemSchemas}).
		OrderBy("schema_name").
		ToSql()
	if err != nil {
		return nil, err
	}
	return d.queryStrings(ctx, query, args...)
}

// IntrospectTables reads every base table of a database with its columns,
// indexes, foreign keys and storage engine.
func (d *MySQLDriver) IntrospectTables(ctx context.Context, namespace string) ([]schema.TableDefinition, error) {
	query, args, err := sq.Select("table_name", "COALESCE(engine, '')").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": namespace, "table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var tables []schema.TableDefinition
	for rows.Next() {
		var t schema.TableDefinition
		var engine string
		if err := rows.Scan(&t.Name, &engine); err != nil {
			rows.Close()
			return nil, err
		}
		if engine != "" {
			t.Options = []schema.TableOption{{Key: "engine", Value: engine}}
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		t := &tables[i]
		if t.Columns, err = d.extractColumns(ctx, namespace, t.Name); err != nil {
			return nil, fmt.Errorf("failed to extract columns of %s: %w", t.Name, err)
		}
		if t.Indexes, err = d.IntrospectIndexes(ctx, namespace, t.Name); err != nil {
			return nil, fmt.Errorf("failed to extract indexes of %s: %w", t.Name, err)
		}
		if t.ForeignKeys, err = d.extractForeignKeys(ctx, namespace, t.Name); err != nil {
			return nil, fmt.Errorf("failed to extract foreign keys of %s: %w", t.Name, err)
		}
	}
	return tables, nil
}

func (d *MySQLDriver) extractColumns(ctx context.Context, namespace, table string) ([]schema.ColumnDefinition, error) {
	query, args, err := sq.Select("column_name", "data_type", "column_type", "is_nullable", "column_default", "extra").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": namespace, "table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnDefinition
	for rows.Next() {
		var name, dataType, columnType, nullable, extra string
		var defaultVal sql.NullString
		if err := rows.Scan(&name, &dataType, &columnType, &nullable, &defaultVal, &extra); err != nil {
			return nil, err
		}
		var def *string
		if defaultVal.Valid {
			def = &defaultVal.String
		}
		col, known := mysqlGenericColumn(name, dataType, columnType, nullable == "YES", def, extra)
		if !known {
			d.logger.WarnContext(ctx, "unmapped column type, treating as text",
				"table", table, "column", name, "type", columnType)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// IntrospectIndexes reads the keys of one table, primary key included.
func (d *MySQLDriver) IntrospectIndexes(ctx context.Context, namespace, table string) ([]schema.IndexDefinition, error) {
	if defs, ok := d.recall(namespace, table); ok {
		return defs, nil
	}

	query, args, err := sq.Select("index_name", "non_unique", "column_name").
		From("information_schema.statistics").
		Where(sq.Eq{"table_schema": namespace, "table_name": table}).
		OrderBy("index_name = 'PRIMARY' DESC", "index_name", "seq_in_index").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexDefinition
	for rows.Next() {
		var name, column string
		var nonUnique int
		if err := rows.Scan(&name, &nonUnique, &column); err != nil {
			return nil, err
		}
		n := len(indexes)
		if n == 0 || indexes[n-1].Name != name {
			idx := schema.IndexDefinition{Name: name, Type: schema.IndexRegular}
			switch {
			case name == schema.PrimaryKeyName:
				idx.Type = schema.IndexPrimary
			case nonUnique == 0:
				idx.Type = schema.IndexUnique
			}
			indexes = append(indexes, idx)
			n++
		}
		indexes[n-1].Columns = append(indexes[n-1].Columns, column)
	}
	return indexes, rows.Err()
}

func (d *MySQLDriver) extractForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyDefinition, error) {
	query, args, err := sq.Select(
		"kcu.constraint_name", "kcu.column_name",
		"kcu.referenced_table_schema", "kcu.referenced_table_name", "kcu.referenced_column_name",
		"rc.update_rule", "rc.delete_rule").
		From("information_schema.key_column_usage kcu").
		Join("information_schema.referential_constraints rc ON rc.constraint_schema = kcu.constraint_schema AND rc.constraint_name = kcu.constraint_name").
		Where(sq.Eq{"kcu.table_schema": namespace, "kcu.table_name": table}).
		Where("kcu.referenced_table_name IS NOT NULL").
		OrderBy("kcu.constraint_name", "kcu.ordinal_position").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKeyDefinition
	for rows.Next() {
		var fk schema.ForeignKeyDefinition
		var onUpdate, onDelete string
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn, &onUpdate, &onDelete); err != nil {
			return nil, err
		}
		fk.OnUpdate = actionOrDefault(onUpdate)
		fk.OnDelete = actionOrDefault(onDelete)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (d *MySQLDriver) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func actionOrDefault(rule string) schema.Action {
	a, err := schema.ParseAction(rule)
	if err != nil {
		return schema.ActionNoAction
	}
	return a
}
