package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/schemasync/internal/schema"
)

func quotePostgres(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func postgresTable(namespace, table string) string {
	if namespace == "" {
		return quotePostgres(table)
	}
	return pgx.Identifier{namespace, table}.Sanitize()
}

// postgresPrimaryKeyName is the constraint name PostgreSQL would pick itself.
func postgresPrimaryKeyName(table string) string {
	return table + "_pkey"
}

// postgresIntType picks the smallest integer type holding size digits.
func postgresIntType(size string) (string, error) {
	if size == "" {
		return "INTEGER", nil
	}
	n, err := strconv.Atoi(size)
	if err != nil {
		return "", fmt.Errorf("invalid integer size %q", size)
	}
	switch {
	case n < 5:
		return "SMALLINT", nil
	case n < 10:
		return "INTEGER", nil
	case n < 19:
		return "BIGINT", nil
	}
	return "", fmt.Errorf("no integer type holds %d digits", n)
}

// postgresColumnType maps a generic column type to PostgreSQL. Unsigned has
// no equivalent and is dropped.
func postgresColumnType(def schema.ColumnDefinition) (string, error) {
	switch def.Type {
	case schema.TypeVarchar:
		return fmt.Sprintf("VARCHAR(%s)", def.Size), nil
	case schema.TypeChar:
		return fmt.Sprintf("CHAR(%s)", def.Size), nil
	case schema.TypeTinyText, schema.TypeText, schema.TypeMediumText, schema.TypeLongText:
		return "TEXT", nil
	case schema.TypeBlob, schema.TypeMediumBlob, schema.TypeLongBlob:
		return "BYTEA", nil
	case schema.TypeDatetime:
		return "TIMESTAMP", nil
	case schema.TypeTimestamp:
		return "TIMESTAMPTZ", nil
	case schema.TypeInt:
		return postgresIntType(def.Size)
	case schema.TypeSerial:
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY", nil
	case schema.TypeFloat:
		if def.Size == "" {
			return "DOUBLE PRECISION", nil
		}
		if p, _ := splitPrecision(def.Size); p < 24 {
			return "REAL", nil
		}
		return "DOUBLE PRECISION", nil
	case schema.TypeDecimal:
		if def.Size == "" {
			return "NUMERIC", nil
		}
		p, s := splitPrecision(def.Size)
		if p > 1000 {
			return "", fmt.Errorf("decimal precision %d is too large", p)
		}
		return fmt.Sprintf("NUMERIC(%d,%d)", p, s), nil
	}
	return "", fmt.Errorf("unsupported column type %q", def.Type)
}

func postgresDefault(d schema.Default) string {
	switch d.Kind {
	case schema.DefaultNull:
		return "NULL"
	case schema.DefaultValue:
		return quoteLiteral(d.Value)
	case schema.DefaultExpression:
		return d.Value
	}
	return ""
}

func postgresColumnClause(def schema.ColumnDefinition) (string, error) {
	typ, err := postgresColumnType(def)
	if err != nil {
		return "", &schema.ConfigurationError{Entity: "column", Name: def.Name, Message: err.Error()}
	}
	clause := quotePostgres(def.Name) + " " + typ
	if !def.Nullable {
		clause += " NOT NULL"
	}
	if def.Type != schema.TypeSerial && def.Default.Kind != schema.DefaultNone {
		if def.Default.Kind != schema.DefaultNull || def.Nullable {
			clause += " DEFAULT " + postgresDefault(def.Default)
		}
	}
	return clause, nil
}

// postgresModifyClauses alters type, nullability and default in place.
func postgresModifyClauses(def schema.ColumnDefinition) ([]string, error) {
	if def.Type == schema.TypeSerial {
		return nil, &schema.UnsupportedError{Operation: "convert to serial", Entity: "column", Name: def.Name}
	}
	typ, err := postgresColumnType(def)
	if err != nil {
		return nil, &schema.ConfigurationError{Entity: "column", Name: def.Name, Message: err.Error()}
	}
	col := "ALTER COLUMN " + quotePostgres(def.Name)
	clauses := []string{fmt.Sprintf("%s TYPE %s USING %s::%s", col, typ, quotePostgres(def.Name), typ)}
	if def.Nullable {
		clauses = append(clauses, col+" DROP NOT NULL")
	} else {
		clauses = append(clauses, col+" SET NOT NULL")
	}
	if def.Default.Kind == schema.DefaultNone {
		clauses = append(clauses, col+" DROP DEFAULT")
	} else {
		clauses = append(clauses, col+" SET DEFAULT "+postgresDefault(def.Default))
	}
	return clauses, nil
}

func postgresCreateIndex(namespace, table string, idx schema.IndexDefinition) string {
	kind := "INDEX"
	if idx.Type == schema.IndexUnique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, quotePostgres(idx.Name),
		postgresTable(namespace, table), joinQuoted(idx.Columns, quotePostgres))
}

func postgresDropIndex(namespace, table string, idx schema.IndexDefinition) string {
	if idx.Type == schema.IndexPrimary {
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
			postgresTable(namespace, table), quotePostgres(postgresPrimaryKeyName(table)))
	}
	return "DROP INDEX IF EXISTS " + postgresTable(namespace, idx.Name)
}

func postgresPrimaryKeyClause(table string, idx schema.IndexDefinition) string {
	return fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)",
		quotePostgres(postgresPrimaryKeyName(table)), joinQuoted(idx.Columns, quotePostgres))
}

func postgresForeignKeyClause(g schema.ForeignKeyGroup) string {
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		quotePostgres(g.Name),
		joinQuoted(g.Columns, quotePostgres),
		postgresTable(g.RefNamespace, g.RefTable),
		joinQuoted(g.RefColumns, quotePostgres),
		g.OnDelete.SQL(),
		g.OnUpdate.SQL())
}

// postgresCreateTable renders a CREATE TABLE followed by one CREATE INDEX per
// secondary index. The primary key and foreign keys live inside the table
// body.
func postgresCreateTable(plan *schema.TablePlan) ([]string, error) {
	var lines []string
	for _, cc := range plan.Columns {
		clause, err := postgresColumnClause(cc.Column)
		if err != nil {
			return nil, err
		}
		lines = append(lines, clause)
	}
	if pk, ok := plan.PrimaryKey(); ok {
		lines = append(lines, postgresPrimaryKeyClause(plan.Table, pk))
	}
	for _, g := range plan.ForeignKeys {
		lines = append(lines, postgresForeignKeyClause(g))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", postgresTable(plan.Namespace, plan.Table), strings.Join(lines, ",\n  "))}
	for _, ic := range plan.Indexes {
		if ic.Index.Type != schema.IndexPrimary {
			stmts = append(stmts, postgresCreateIndex(plan.Namespace, plan.Table, ic.Index))
		}
	}
	return stmts, nil
}

// postgresAlterTable renders a plan as one ALTER for foreign key drops and
// column changes, then the index drops and creations, then one ALTER adding
// the primary key and foreign keys.
func postgresAlterTable(plan *schema.TablePlan) ([]string, error) {
	target := postgresTable(plan.Namespace, plan.Table)

	var first []string
	for _, name := range plan.DroppedForeignKeys {
		first = append(first, "DROP CONSTRAINT IF EXISTS "+quotePostgres(name))
	}
	for _, cc := range plan.Columns {
		switch cc.Kind {
		case schema.ChangeDrop:
			first = append(first, "DROP COLUMN IF EXISTS "+quotePostgres(cc.Column.Name))
		case schema.ChangeModify:
			clauses, err := postgresModifyClauses(cc.Column)
			if err != nil {
				return nil, err
			}
			first = append(first, clauses...)
		default:
			clause, err := postgresColumnClause(cc.Column)
			if err != nil {
				return nil, err
			}
			first = append(first, "ADD COLUMN "+clause)
		}
	}

	var drops, creates, last []string
	for _, ic := range plan.Indexes {
		switch {
		case ic.Kind == schema.ChangeDrop:
			drops = append(drops, postgresDropIndex(plan.Namespace, plan.Table, ic.Index))
		case ic.Index.Type == schema.IndexPrimary:
			last = append(last, "ADD "+postgresPrimaryKeyClause(plan.Table, ic.Index))
		default:
			creates = append(creates, postgresCreateIndex(plan.Namespace, plan.Table, ic.Index))
		}
	}
	for _, g := range plan.ForeignKeys {
		last = append(last, "ADD "+postgresForeignKeyClause(g))
	}

	var stmts []string
	if len(first) > 0 {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s %s", target, strings.Join(first, ", ")))
	}
	stmts = append(stmts, drops...)
	stmts = append(stmts, creates...)
	if len(last) > 0 {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s %s", target, strings.Join(last, ", ")))
	}
	return stmts, nil
}

// postgresGenericColumn maps an information_schema.columns row back to a
// generic column. The second result is false when the type had no mapping.
func postgresGenericColumn(name, dataType string, nullable bool, def *string, charMaxLength, precision, scale *int, identity bool) (schema.ColumnDefinition, bool) {
	col := schema.ColumnDefinition{Name: name, Nullable: nullable}
	known := true

	switch dataType {
	case "character varying":
		col.Type = schema.TypeVarchar
	case "character":
		col.Type = schema.TypeChar
	case "text":
		col.Type = schema.TypeText
	case "bytea":
		col.Type = schema.TypeBlob
	case "timestamp without time zone":
		col.Type = schema.TypeDatetime
	case "timestamp with time zone":
		col.Type = schema.TypeTimestamp
	case "smallint":
		col.Type, col.Size = schema.TypeInt, "4"
	case "integer":
		col.Type, col.Size = schema.TypeInt, "9"
	case "bigint":
		col.Type, col.Size = schema.TypeInt, "18"
	case "real", "double precision":
		col.Type = schema.TypeFloat
	case "numeric":
		col.Type = schema.TypeDecimal
		if precision != nil {
			s := 0
			if scale != nil {
				s = *scale
			}
			col.Size = fmt.Sprintf("%d,%d", *precision, s)
		}
	default:
		col.Type = schema.TypeText
		known = false
	}
	if col.Type.Sized() && !col.Type.Numeric() && charMaxLength != nil {
		col.Size = strconv.Itoa(*charMaxLength)
	}

	if identity || (def != nil && strings.HasPrefix(*def, "nextval(")) {
		col.Type = schema.TypeSerial
		col.Size = "10"
		col.Unsigned = true
		col.Nullable = false
		return col, known
	}

	switch {
	case def == nil && nullable:
		col.Default = schema.Default{Kind: schema.DefaultNull}
	case def == nil:
	default:
		col.Default = parsePostgresDefault(*def)
	}
	return col, known
}

// parsePostgresDefault strips the cast PostgreSQL appends to stored
// defaults, e.g. 'abc'::character varying or NULL::text.
func parsePostgresDefault(v string) schema.Default {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "'") {
		if end := strings.LastIndex(v, "'"); end > 0 {
			return schema.Default{Kind: schema.DefaultValue, Value: strings.ReplaceAll(v[1:end], "''", "'")}
		}
	}
	base := v
	if i := strings.Index(v, "::"); i >= 0 {
		base = v[:i]
	}
	if strings.EqualFold(base, "NULL") {
		return schema.Default{Kind: schema.DefaultNull}
	}
	if _, err := strconv.ParseFloat(strings.Trim(base, "()"), 64); err == nil {
		return schema.Default{Kind: schema.DefaultValue, Value: strings.Trim(base, "()")}
	}
	return schema.Default{Kind: schema.DefaultExpression, Value: v}
}

// postgresAction decodes pg_constraint.confupdtype and confdeltype.
func postgresAction(code string) schema.Action {
	switch code {
	case "c":
		return schema.ActionCascade
	case "r":
		return schema.ActionRestrict
	case "n":
		return schema.ActionSetNull
	}
	return schema.ActionNoAction
}
