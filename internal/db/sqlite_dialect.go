package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteTable(namespace, table string) string {
	if namespace == "" {
		return quoteSQLite(table)
	}
	return quoteSQLite(namespace) + "." + quoteSQLite(table)
}

// sqliteColumnType writes the generic type back as the declared type so it
// can be read again from table_info. Affinity follows from the name.
func sqliteColumnType(def schema.ColumnDefinition) string {
	typ := strings.ToUpper(string(def.Type))
	if def.Type == schema.TypeInt {
		typ = "INT"
	}
	if def.Size != "" && def.Type.Sized() {
		typ = fmt.Sprintf("%s(%s)", typ, def.Size)
	}
	if def.Unsigned && def.Type.Numeric() {
		typ = "UNSIGNED " + typ
	}
	return typ
}

// sqliteRowID reports whether the plan's primary key is a single serial
// column, which SQLite declares inline as INTEGER PRIMARY KEY.
func sqliteRowID(plan *schema.TablePlan) (string, bool) {
	pk, ok := plan.PrimaryKey()
	if !ok || len(pk.Columns) != 1 {
		return "", false
	}
	for _, cc := range plan.Columns {
		if cc.Column.Name == pk.Columns[0] {
			return cc.Column.Name, cc.Column.Type == schema.TypeSerial
		}
	}
	return "", false
}

func sqliteColumnClause(def schema.ColumnDefinition, rowID bool) string {
	if rowID {
		return quoteSQLite(def.Name) + " INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT"
	}
	var b strings.Builder
	b.WriteString(quoteSQLite(def.Name))
	b.WriteString(" ")
	if def.Type == schema.TypeSerial {
		b.WriteString("INTEGER")
	} else {
		b.WriteString(sqliteColumnType(def))
	}
	if !def.Nullable {
		b.WriteString(" NOT NULL")
	}
	switch def.Default.Kind {
	case schema.DefaultNull:
		if def.Nullable {
			b.WriteString(" DEFAULT NULL")
		}
	case schema.DefaultValue:
		b.WriteString(" DEFAULT " + quoteLiteral(def.Default.Value))
	case schema.DefaultExpression:
		b.WriteString(" DEFAULT " + def.Default.Value)
	}
	return b.String()
}

func sqliteCreateIndex(namespace, table string, idx schema.IndexDefinition) string {
	kind := "INDEX"
	if idx.Type == schema.IndexUnique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, sqliteTable(namespace, idx.Name),
		quoteSQLite(table), joinQuoted(idx.Columns, quoteSQLite))
}

func sqliteDropIndex(namespace, table string, idx schema.IndexDefinition) (string, error) {
	if idx.Type == schema.IndexPrimary {
		return "", &schema.UnsupportedError{Operation: "drop primary key", Entity: "table", Name: table}
	}
	return "DROP INDEX " + sqliteTable(namespace, idx.Name), nil
}

func sqliteForeignKeyClause(namespace string, g schema.ForeignKeyGroup) (string, error) {
	if g.RefNamespace != "" && g.RefNamespace != namespace {
		return "", &schema.UnsupportedError{Operation: "reference another database", Entity: "foreign key", Name: g.Name}
	}
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		quoteSQLite(g.Name),
		joinQuoted(g.Columns, quoteSQLite),
		quoteSQLite(g.RefTable),
		joinQuoted(g.RefColumns, quoteSQLite),
		g.OnDelete.SQL(),
		g.OnUpdate.SQL()), nil
}

// sqliteCreateTable renders a CREATE TABLE followed by its secondary indexes.
func sqliteCreateTable(plan *schema.TablePlan) ([]string, error) {
	rowID, inline := sqliteRowID(plan)

	var lines []string
	for _, cc := range plan.Columns {
		lines = append(lines, sqliteColumnClause(cc.Column, inline && cc.Column.Name == rowID))
	}
	if pk, ok := plan.PrimaryKey(); ok && !inline {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", joinQuoted(pk.Columns, quoteSQLite)))
	}
	for _, g := range plan.ForeignKeys {
		clause, err := sqliteForeignKeyClause(plan.Namespace, g)
		if err != nil {
			return nil, err
		}
		lines = append(lines, clause)
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", sqliteTable(plan.Namespace, plan.Table), strings.Join(lines, ",\n  "))}
	for _, ic := range plan.Indexes {
		if ic.Index.Type != schema.IndexPrimary {
			stmts = append(stmts, sqliteCreateIndex(plan.Namespace, plan.Table, ic.Index))
		}
	}
	return stmts, nil
}

// sqliteAlterTable renders one statement per change. SQLite cannot modify a
// column or change constraints in place, so those changes are refused.
// Index drops run first because a column cannot be dropped while indexed.
func sqliteAlterTable(plan *schema.TablePlan) ([]string, error) {
	if len(plan.DroppedForeignKeys) > 0 || len(plan.ForeignKeys) > 0 {
		return nil, &schema.UnsupportedError{Operation: "alter foreign keys", Entity: "table", Name: plan.Table}
	}

	var drops, creates []string
	for _, ic := range plan.Indexes {
		if ic.Kind == schema.ChangeDrop {
			stmt, err := sqliteDropIndex(plan.Namespace, plan.Table, ic.Index)
			if err != nil {
				return nil, err
			}
			drops = append(drops, stmt)
			continue
		}
		if ic.Index.Type == schema.IndexPrimary {
			return nil, &schema.UnsupportedError{Operation: "add primary key", Entity: "table", Name: plan.Table}
		}
		creates = append(creates, sqliteCreateIndex(plan.Namespace, plan.Table, ic.Index))
	}

	target := sqliteTable(plan.Namespace, plan.Table)
	stmts := drops
	for _, cc := range plan.Columns {
		switch cc.Kind {
		case schema.ChangeDrop:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", target, quoteSQLite(cc.Column.Name)))
		case schema.ChangeModify:
			return nil, &schema.UnsupportedError{Operation: "modify column", Entity: "column", Name: cc.Column.Name}
		default:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", target, sqliteColumnClause(cc.Column, false)))
		}
	}
	return append(stmts, creates...), nil
}

// sqliteGenericColumn maps a table_info row back to a generic column.
func sqliteGenericColumn(name, declared string, notNull bool, def *string) (schema.ColumnDefinition, bool) {
	col := schema.ColumnDefinition{Name: name, Nullable: !notNull}

	lower := strings.ToLower(declared)
	if strings.Contains(lower, "unsigned") {
		col.Unsigned = true
		lower = strings.TrimSpace(strings.Replace(lower, "unsigned", "", 1))
	}
	base, args := parseTypeArgs(lower)
	if base == "integer" {
		base = "int"
	}

	known := true
	typ, err := schema.ParseColumnType(base)
	if err != nil || typ == schema.TypeSerial {
		typ = schema.TypeText
		known = false
	}
	col.Type = typ
	if typ.Sized() {
		col.Size = args
	}

	switch {
	case def == nil && col.Nullable:
		col.Default = schema.Default{Kind: schema.DefaultNull}
	case def == nil:
	default:
		col.Default = parseSQLiteDefault(*def)
	}
	return col, known
}

func parseSQLiteDefault(v string) schema.Default {
	v = strings.TrimSpace(v)
	switch {
	case strings.EqualFold(v, "NULL"):
		return schema.Default{Kind: schema.DefaultNull}
	case len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'':
		return schema.Default{Kind: schema.DefaultValue, Value: strings.ReplaceAll(v[1:len(v)-1], "''", "'")}
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return schema.Default{Kind: schema.DefaultValue, Value: v}
	}
	return schema.Default{Kind: schema.DefaultExpression, Value: v}
}
