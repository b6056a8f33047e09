package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/tordrt/schemasync/internal/schema"
)

// Namespaces lists main and the attached databases.
func (d *SQLiteDriver) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var seq int
		var name string
		var file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		if name == "temp" {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// IntrospectTables reads every table of a database with its columns,
// indexes and foreign keys.
func (d *SQLiteDriver) IntrospectTables(ctx context.Context, namespace string) ([]schema.TableDefinition, error) {
	query, args, err := sq.Select("name", "sql").
		From(quoteSQLite(namespace) + ".sqlite_master").
		Where(sq.Eq{"type": "table"}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	type entry struct{ name, ddl string }
	var entries []entry
	for rows.Next() {
		var e entry
		var ddl sql.NullString
		if err := rows.Scan(&e.name, &ddl); err != nil {
			rows.Close()
			return nil, err
		}
		e.ddl = ddl.String
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]schema.TableDefinition, 0, len(entries))
	for _, e := range entries {
		t := schema.TableDefinition{Name: e.name}
		autoIncrement := strings.Contains(strings.ToUpper(e.ddl), "AUTOINCREMENT")
		if t.Columns, err = d.extractColumns(ctx, namespace, e.name, autoIncrement); err != nil {
			return nil, fmt.Errorf("failed to extract columns of %s: %w", e.name, err)
		}
		if t.Indexes, err = d.IntrospectIndexes(ctx, namespace, e.name); err != nil {
			return nil, fmt.Errorf("failed to extract indexes of %s: %w", e.name, err)
		}
		if t.ForeignKeys, err = d.extractForeignKeys(ctx, namespace, e.name); err != nil {
			return nil, fmt.Errorf("failed to extract foreign keys of %s: %w", e.name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

type sqliteColumnInfo struct {
	name     string
	declared string
	notNull  bool
	def      *string
	pk       int
}

func (d *SQLiteDriver) tableInfo(ctx context.Context, namespace, table string) ([]sqliteColumnInfo, error) {
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", quoteSQLite(namespace), quoteSQLite(table))

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []sqliteColumnInfo
	for rows.Next() {
		var cid, notNull, pk int
		var info sqliteColumnInfo
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &info.name, &info.declared, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		info.notNull = notNull != 0
		info.pk = pk
		if defaultValue.Valid {
			info.def = &defaultValue.String
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (d *SQLiteDriver) extractColumns(ctx context.Context, namespace, table string, autoIncrement bool) ([]schema.ColumnDefinition, error) {
	infos, err := d.tableInfo(ctx, namespace, table)
	if err != nil {
		return nil, err
	}

	pkColumns := 0
	for _, info := range infos {
		if info.pk > 0 {
			pkColumns++
		}
	}

	columns := make([]schema.ColumnDefinition, 0, len(infos))
	for _, info := range infos {
		if autoIncrement && pkColumns == 1 && info.pk == 1 && strings.EqualFold(info.declared, "INTEGER") {
			columns = append(columns, schema.ColumnDefinition{
				Name:     info.name,
				Type:     schema.TypeSerial,
				Size:     "10",
				Unsigned: true,
			})
			continue
		}
		col, known := sqliteGenericColumn(info.name, info.declared, info.notNull, info.def)
		if !known {
			d.logger.WarnContext(ctx, "unmapped column type, treating as text",
				"table", table, "column", info.name, "type", info.declared)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// IntrospectIndexes reads the indexes of one table. The primary key comes
// from table_info since a rowid key has no index of its own.
func (d *SQLiteDriver) IntrospectIndexes(ctx context.Context, namespace, table string) ([]schema.IndexDefinition, error) {
	if defs, ok := d.recall(namespace, table); ok {
		return defs, nil
	}

	infos, err := d.tableInfo(ctx, namespace, table)
	if err != nil {
		return nil, err
	}
	var pk []sqliteColumnInfo
	for _, info := range infos {
		if info.pk > 0 {
			pk = append(pk, info)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].pk < pk[j].pk })

	var indexes []schema.IndexDefinition
	if len(pk) > 0 {
		idx := schema.IndexDefinition{Name: schema.PrimaryKeyName, Type: schema.IndexPrimary}
		for _, info := range pk {
			idx.Columns = append(idx.Columns, info.name)
		}
		indexes = append(indexes, idx)
	}

	query := fmt.Sprintf("PRAGMA %s.index_list(%s)", quoteSQLite(namespace), quoteSQLite(table))
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	var listed []schema.IndexDefinition
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		idx := schema.IndexDefinition{Name: name, Type: schema.IndexRegular}
		if unique == 1 {
			idx.Type = schema.IndexUnique
		}
		listed = append(listed, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(listed, func(i, j int) bool { return listed[i].Name < listed[j].Name })
	for _, idx := range listed {
		if idx.Columns, err = d.indexColumns(ctx, namespace, idx.Name); err != nil {
			return nil, err
		}
		if len(idx.Columns) > 0 {
			indexes = append(indexes, idx)
		}
	}
	return indexes, nil
}

func (d *SQLiteDriver) indexColumns(ctx context.Context, namespace, index string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA %s.index_info(%s)", quoteSQLite(namespace), quoteSQLite(index))
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}
	return columns, rows.Err()
}

// extractForeignKeys reads foreign_key_list. SQLite keeps no constraint
// names, so one is derived from the table pair, suffixed by the key id.
func (d *SQLiteDriver) extractForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyDefinition, error) {
	query := fmt.Sprintf("PRAGMA %s.foreign_key_list(%s)", quoteSQLite(namespace), quoteSQLite(table))

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKeyDefinition
	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		name := fmt.Sprintf("fk_%s_%s", table, targetTable)
		if id > 0 {
			name = fmt.Sprintf("%s_%d", name, id)
		}
		fk := schema.ForeignKeyDefinition{
			Name:      name,
			Column:    fromCol,
			RefSchema: namespace,
			RefTable:  targetTable,
			RefColumn: toCol.String,
			OnUpdate:  actionOrDefault(onUpdate),
			OnDelete:  actionOrDefault(onDelete),
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
