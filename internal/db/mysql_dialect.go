package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// MySQLEngines lists the storage engines accepted by MySQLEngine.
var MySQLEngines = []string{"InnoDB", "MyISAM", "MEMORY", "CSV", "BLACKHOLE"}

// MySQLEngine returns the table option selecting a storage engine.
func MySQLEngine(name string) (schema.TableOption, error) {
	for _, e := range MySQLEngines {
		if strings.EqualFold(e, name) {
			return schema.TableOption{Key: "engine", Value: e}, nil
		}
	}
	return schema.TableOption{}, &schema.ConfigurationError{
		Entity:  "table option",
		Name:    "engine",
		Message: fmt.Sprintf("unknown storage engine %q", name),
	}
}

func quoteMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mysqlTable(namespace, table string) string {
	if namespace == "" {
		return quoteMySQL(table)
	}
	return quoteMySQL(namespace) + "." + quoteMySQL(table)
}

// mysqlIntType picks the smallest integer type holding size digits.
func mysqlIntType(size int) (string, error) {
	switch {
	case size < 3:
		return "TINYINT", nil
	case size < 6:
		return "SMALLINT", nil
	case size < 9:
		return "INT", nil
	case size < 19:
		return "BIGINT", nil
	}
	return "", fmt.Errorf("no integer type holds %d digits", size)
}

// mysqlIntWidth is the reverse of mysqlIntType for servers that no longer
// report a display width.
var mysqlIntWidth = map[string]string{
	"tinyint":   "2",
	"smallint":  "5",
	"mediumint": "8",
	"int":       "8",
	"integer":   "8",
	"bigint":    "10",
}

func splitPrecision(size string) (int, int) {
	parts := strings.SplitN(size, ",", 2)
	p, _ := strconv.Atoi(parts[0])
	s := 0
	if len(parts) == 2 {
		s, _ = strconv.Atoi(parts[1])
	}
	return p, s
}

// mysqlColumnType maps a generic column type to MySQL.
func mysqlColumnType(def schema.ColumnDefinition) (string, error) {
	var typ string
	switch def.Type {
	case schema.TypeVarchar, schema.TypeChar:
		typ = fmt.Sprintf("%s(%s)", strings.ToUpper(string(def.Type)), def.Size)
	case schema.TypeTinyText, schema.TypeText, schema.TypeMediumText, schema.TypeLongText,
		schema.TypeBlob, schema.TypeMediumBlob, schema.TypeLongBlob,
		schema.TypeDatetime, schema.TypeTimestamp:
		typ = strings.ToUpper(string(def.Type))
	case schema.TypeInt, schema.TypeSerial:
		if def.Size == "" {
			typ = "INT"
			break
		}
		n, err := strconv.Atoi(def.Size)
		if err != nil {
			return "", fmt.Errorf("invalid integer size %q", def.Size)
		}
		name, err := mysqlIntType(n)
		if err != nil {
			return "", err
		}
		typ = fmt.Sprintf("%s(%d)", name, n)
	case schema.TypeFloat:
		if def.Size == "" {
			typ = "FLOAT"
			break
		}
		p, s := splitPrecision(def.Size)
		switch {
		case p < 24:
			typ = fmt.Sprintf("FLOAT(%d,%d)", p, s)
		case p < 54:
			typ = fmt.Sprintf("DOUBLE(%d,%d)", p, s)
		default:
			return "", fmt.Errorf("float precision %d is too large", p)
		}
	case schema.TypeDecimal:
		if def.Size == "" {
			typ = "DECIMAL"
			break
		}
		p, s := splitPrecision(def.Size)
		if p > 65 {
			return "", fmt.Errorf("decimal precision %d is too large", p)
		}
		typ = fmt.Sprintf("DECIMAL(%d,%d)", p, s)
	default:
		return "", fmt.Errorf("unsupported column type %q", def.Type)
	}
	if def.Unsigned && def.Type.Numeric() {
		typ += " UNSIGNED"
	}
	return typ, nil
}

func mysqlColumnClause(def schema.ColumnDefinition) (string, error) {
	typ, err := mysqlColumnType(def)
	if err != nil {
		return "", &schema.ConfigurationError{Entity: "column", Name: def.Name, Message: err.Error()}
	}
	var b strings.Builder
	b.WriteString(quoteMySQL(def.Name))
	b.WriteString(" ")
	b.WriteString(typ)
	if def.Nullable {
		b.WriteString(" NULL")
	} else {
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
	if def.Type == schema.TypeSerial {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String(), nil
}

func mysqlIndexClause(idx schema.IndexDefinition) string {
	cols := joinQuoted(idx.Columns, quoteMySQL)
	switch idx.Type {
	case schema.IndexPrimary:
		return fmt.Sprintf("PRIMARY KEY (%s)", cols)
	case schema.IndexUnique:
		return fmt.Sprintf("UNIQUE KEY %s (%s)", quoteMySQL(idx.Name), cols)
	default:
		return fmt.Sprintf("KEY %s (%s)", quoteMySQL(idx.Name), cols)
	}
}

func mysqlForeignKeyClause(g schema.ForeignKeyGroup) string {
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		quoteMySQL(g.Name),
		joinQuoted(g.Columns, quoteMySQL),
		mysqlTable(g.RefNamespace, g.RefTable),
		joinQuoted(g.RefColumns, quoteMySQL),
		g.OnDelete.SQL(),
		g.OnUpdate.SQL())
}

func mysqlOptions(opts []schema.TableOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, fmt.Sprintf("%s=%s", strings.ToUpper(o.Key), o.Value))
	}
	return out
}

func mysqlCreateTable(plan *schema.TablePlan) (string, error) {
	var lines []string
	for _, cc := range plan.Columns {
		clause, err := mysqlColumnClause(cc.Column)
		if err != nil {
			return "", err
		}
		lines = append(lines, clause)
	}
	for _, ic := range plan.Indexes {
		lines = append(lines, mysqlIndexClause(ic.Index))
	}
	for _, g := range plan.ForeignKeys {
		lines = append(lines, mysqlForeignKeyClause(g))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", mysqlTable(plan.Namespace, plan.Table), strings.Join(lines, ",\n  "))
	if opts := mysqlOptions(plan.Options); len(opts) > 0 {
		stmt += " " + strings.Join(opts, " ")
	}
	return stmt, nil
}

func mysqlAlterTable(plan *schema.TablePlan) (string, error) {
	var clauses []string
	for _, name := range plan.DroppedForeignKeys {
		clauses = append(clauses, "DROP FOREIGN KEY "+quoteMySQL(name))
	}
	for _, cc := range plan.Columns {
		switch cc.Kind {
		case schema.ChangeDrop:
			clauses = append(clauses, "DROP COLUMN "+quoteMySQL(cc.Column.Name))
		case schema.ChangeModify:
			clause, err := mysqlColumnClause(cc.Column)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, "MODIFY COLUMN "+clause)
		default:
			clause, err := mysqlColumnClause(cc.Column)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, "ADD COLUMN "+clause)
		}
	}
	for _, ic := range plan.Indexes {
		if ic.Kind == schema.ChangeDrop {
			clauses = append(clauses, mysqlDropIndexClause(ic.Index))
			continue
		}
		clauses = append(clauses, "ADD "+mysqlIndexClause(ic.Index))
	}
	for _, g := range plan.ForeignKeys {
		clauses = append(clauses, "ADD "+mysqlForeignKeyClause(g))
	}
	clauses = append(clauses, mysqlOptions(plan.Options)...)
	if len(clauses) == 0 {
		return "", nil
	}
	return fmt.Sprintf("ALTER TABLE %s %s", mysqlTable(plan.Namespace, plan.Table), strings.Join(clauses, ", ")), nil
}

func mysqlDropIndexClause(idx schema.IndexDefinition) string {
	if idx.Type == schema.IndexPrimary {
		return "DROP PRIMARY KEY"
	}
	return "DROP INDEX " + quoteMySQL(idx.Name)
}

func mysqlDropIndex(namespace, table string, idx schema.IndexDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s %s", mysqlTable(namespace, table), mysqlDropIndexClause(idx))
}

// mysqlGenericColumn maps an information_schema.columns row back to a
// generic column.
func mysqlGenericColumn(name, dataType, columnType string, nullable bool, def *string, extra string) (schema.ColumnDefinition, bool) {
	col := schema.ColumnDefinition{
		Name:     name,
		Nullable: nullable,
		Unsigned: strings.Contains(strings.ToLower(columnType), "unsigned"),
	}
	base, args := parseTypeArgs(columnType)
	if base == "" {
		base = strings.ToLower(dataType)
	}
	known := true

	switch base {
	case "varchar", "char":
		col.Type = schema.ColumnType(base)
		col.Size = args
	case "tinytext", "text", "mediumtext", "longtext", "blob", "mediumblob", "longblob", "datetime", "timestamp":
		col.Type = schema.ColumnType(base)
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		col.Type = schema.TypeInt
		col.Size = args
		if col.Size == "" {
			col.Size = mysqlIntWidth[base]
		}
	case "float", "double", "real":
		col.Type = schema.TypeFloat
		col.Size = args
	case "decimal", "numeric":
		col.Type = schema.TypeDecimal
		col.Size = args
	default:
		col.Type = schema.TypeText
		known = false
	}

	if col.Type.Scaled() && col.Size != "" && !strings.Contains(col.Size, ",") {
		col.Size += ",0"
	}

	switch {
	case strings.Contains(strings.ToLower(extra), "auto_increment"):
		col.Type = schema.TypeSerial
		col.Size = "10"
		col.Unsigned = true
		col.Nullable = false
		col.Default = schema.Default{}
		return col, known
	case def == nil && nullable:
		col.Default = schema.Default{Kind: schema.DefaultNull}
	case def == nil:
		col.Default = schema.Default{}
	case isDefaultExpression(*def) || strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED"):
		col.Default = schema.Default{Kind: schema.DefaultExpression, Value: *def}
	default:
		col.Default = schema.Default{Kind: schema.DefaultValue, Value: *def}
	}
	return col, known
}

func isDefaultExpression(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP()", "NOW()", "CURRENT_DATE", "CURRENT_TIME":
		return true
	}
	return false
}
