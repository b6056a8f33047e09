package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// Option configures a driver.
type Option func(*runner)

// WithLogger sets the logger statements are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDryRun makes the driver print every DDL statement to w instead of
// executing it. Introspection still reads the live database.
func WithDryRun(w io.Writer) Option {
	return func(r *runner) { r.dryRun = w }
}

// runner executes DDL for a driver: it logs each statement, honours dry-run
// and wraps failures in schema.DriverError.
type runner struct {
	engine   string
	logger   *slog.Logger
	dryRun   io.Writer
	classify func(error) error
	planned  map[string][]schema.IndexDefinition
}

func newRunner(engine string, classify func(error) error, opts []Option) runner {
	r := runner{
		engine:   engine,
		logger:   slog.New(slog.DiscardHandler),
		classify: classify,
	}
	for _, opt := range opts {
		opt(&r)
	}
	if r.classify == nil {
		r.classify = func(err error) error { return err }
	}
	r.logger = r.logger.With("engine", engine)
	return r
}

func (r *runner) exec(ctx context.Context, op, stmt string, fn func(context.Context, string) error) error {
	r.logger.DebugContext(ctx, "executing statement", "op", op, "statement", stmt)
	if r.dryRun != nil {
		if _, err := fmt.Fprintf(r.dryRun, "%s;\n", stmt); err != nil {
			return &schema.DriverError{Op: op, Statement: stmt, Err: err}
		}
		return nil
	}
	if err := fn(ctx, stmt); err != nil {
		r.logger.WarnContext(ctx, "statement failed", "op", op, "error", err)
		return &schema.DriverError{Op: op, Statement: stmt, Err: r.classify(err)}
	}
	return nil
}

func (r *runner) execAll(ctx context.Context, op string, stmts []string, fn func(context.Context, string) error) error {
	for _, stmt := range stmts {
		if err := r.exec(ctx, op, stmt, fn); err != nil {
			return err
		}
	}
	return nil
}

// remember keeps the indexes of a table created in dry-run mode, since the
// database cannot report them.
func (r *runner) remember(plan *schema.TablePlan) {
	if r.dryRun == nil {
		return
	}
	if r.planned == nil {
		r.planned = make(map[string][]schema.IndexDefinition)
	}
	defs := make([]schema.IndexDefinition, 0, len(plan.Indexes))
	for _, ic := range plan.Indexes {
		defs = append(defs, ic.Index)
	}
	r.planned[plan.Namespace+"."+plan.Table] = defs
}

func (r *runner) recall(namespace, table string) ([]schema.IndexDefinition, bool) {
	defs, ok := r.planned[namespace+"."+table]
	return defs, ok
}

// collectRows buffers a database/sql result into a ResultSet.
func collectRows(rows *sql.Rows) (*schema.ResultSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []schema.Row
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(schema.Row, len(cols))
		for i, name := range cols {
			if vals[i].Valid {
				v := vals[i].String
				row[name] = &v
			} else {
				row[name] = nil
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schema.NewResultSet(cols, out, int64(len(out))), nil
}

func joinQuoted(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// parseTypeArgs splits "decimal(10,2) unsigned" into "decimal" and "10,2".
func parseTypeArgs(columnType string) (base, args string) {
	columnType = strings.TrimSpace(columnType)
	open := strings.Index(columnType, "(")
	if open < 0 {
		fields := strings.Fields(columnType)
		if len(fields) == 0 {
			return "", ""
		}
		return strings.ToLower(fields[0]), ""
	}
	end := strings.Index(columnType[open:], ")")
	if end < 0 {
		return strings.ToLower(strings.TrimSpace(columnType[:open])), ""
	}
	return strings.ToLower(strings.TrimSpace(columnType[:open])), strings.ReplaceAll(columnType[open+1:open+end], " ", "")
}
