package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tordrt/schemasync/internal/schema"
)

var pg = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Namespaces lists the user schemas.
func (d *PostgresDriver) Namespaces(ctx context.Context) ([]string, error) {
	query, args, err := pg.Select("schema_name").
		From("information_schema.schemata").
		Where(sq.And{
			sq.NotEq{"schema_name": "information_schema"},
			sq.NotLike{"schema_name": "pg_%"},
		}).
		OrderBy("schema_name").
		ToSql()
	if err != nil {
		return nil, err
	}
	return d.queryStrings(ctx, query, args...)
}

// IntrospectTables reads every base table of a schema with its columns,
// indexes and foreign keys.
func (d *PostgresDriver) IntrospectTables(ctx context.Context, namespace string) ([]schema.TableDefinition, error) {
	query, args, err := pg.Select("table_name").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": namespace, "table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, err
	}
	names, err := d.queryStrings(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	tables := make([]schema.TableDefinition, 0, len(names))
	for _, name := range names {
		t := schema.TableDefinition{Name: name}
		if t.Columns, err = d.extractColumns(ctx, namespace, name); err != nil {
			return nil, fmt.Errorf("failed to extract columns of %s: %w", name, err)
		}
		if t.Indexes, err = d.IntrospectIndexes(ctx, namespace, name); err != nil {
			return nil, fmt.Errorf("failed to extract indexes of %s: %w", name, err)
		}
		if t.ForeignKeys, err = d.extractForeignKeys(ctx, namespace, name); err != nil {
			return nil, fmt.Errorf("failed to extract foreign keys of %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (d *PostgresDriver) extractColumns(ctx context.Context, namespace, table string) ([]schema.ColumnDefinition, error) {
	query, args, err := pg.Select(
		"column_name", "data_type", "is_nullable", "column_default",
		"character_maximum_length", "numeric_precision", "numeric_scale", "is_identity").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": namespace, "table_name": table}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnDefinition
	for rows.Next() {
		var name, dataType, nullable, identity string
		var defaultVal *string
		var charMaxLength, precision, scale *int

		if err := rows.Scan(&name, &dataType, &nullable, &defaultVal, &charMaxLength, &precision, &scale, &identity); err != nil {
			return nil, err
		}

		col, known := postgresGenericColumn(name, dataType, nullable == "YES", defaultVal, charMaxLength, precision, scale, identity == "YES")
		if !known {
			d.logger.WarnContext(ctx, "unmapped column type, treating as text",
				"table", table, "column", name, "type", dataType)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// IntrospectIndexes reads the indexes of one table. The primary key is
// reported under the generic name PRIMARY.
func (d *PostgresDriver) IntrospectIndexes(ctx context.Context, namespace, table string) ([]schema.IndexDefinition, error) {
	if defs, ok := d.recall(namespace, table); ok {
		return defs, nil
	}

	query := `
		SELECT
			i.relname AS index_name,
			ix.indisprimary AS is_primary,
			ix.indisunique AS is_unique,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
		GROUP BY i.relname, ix.indisprimary, ix.indisunique
		ORDER BY ix.indisprimary DESC, i.relname
	`

	rows, err := d.conn.Query(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexDefinition
	for rows.Next() {
		var idx schema.IndexDefinition
		var primary, unique bool
		if err := rows.Scan(&idx.Name, &primary, &unique, &idx.Columns); err != nil {
			return nil, err
		}
		switch {
		case primary:
			idx.Name = schema.PrimaryKeyName
			idx.Type = schema.IndexPrimary
		case unique:
			idx.Type = schema.IndexUnique
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

func (d *PostgresDriver) extractForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyDefinition, error) {
	query := `
		SELECT
			con.conname,
			a.attname,
			rn.nspname,
			rc.relname,
			ra.attname,
			con.confupdtype::text,
			con.confdeltype::text
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class rc ON rc.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := d.conn.Query(ctx, query, namespace, table)
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
		fk.OnUpdate = postgresAction(onUpdate)
		fk.OnDelete = postgresAction(onDelete)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (d *PostgresDriver) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.conn.Query(ctx, query, args...)
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
