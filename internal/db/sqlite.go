package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/schemasync/internal/schema"
)

// SQLiteDriver manages a SQLite database. The main database and every
// attached database are namespaces; attaching creates one next to the main
// file, or in memory when the main database lives in memory.
type SQLiteDriver struct {
	path string
	db   *sql.DB
	runner
}

// NewSQLiteDriver creates a SQLite driver for a file path or :memory:.
func NewSQLiteDriver(path string, opts ...Option) *SQLiteDriver {
	return &SQLiteDriver{
		path:   path,
		runner: newRunner("sqlite", nil, opts),
	}
}

func (d *SQLiteDriver) Name() string { return "sqlite" }

func (d *SQLiteDriver) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", d.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Attached databases and in-memory data belong to one connection.
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d.db = db
	return nil
}

func (d *SQLiteDriver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *SQLiteDriver) EngineVersion(ctx context.Context) (string, error) {
	var version string
	if err := d.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// CaseInsensitiveNaming is always true: SQLite folds identifier case.
func (d *SQLiteDriver) CaseInsensitiveNaming(context.Context) (bool, error) {
	return true, nil
}

func (d *SQLiteDriver) Execute(ctx context.Context, statement string) (*schema.ResultSet, error) {
	d.logger.DebugContext(ctx, "executing statement", "op", "execute", "statement", statement)
	rows, err := d.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, &schema.DriverError{Op: "execute", Statement: statement, Err: err}
	}
	return collectRows(rows)
}

// SelectNamespace is a no-op; every statement names its database.
func (d *SQLiteDriver) SelectNamespace(ctx context.Context, name string) error {
	d.logger.DebugContext(ctx, "selecting namespace", "namespace", name)
	return nil
}

func (d *SQLiteDriver) CreateNamespace(ctx context.Context, name string) error {
	existing, err := d.Namespaces(ctx)
	if err != nil {
		return err
	}
	for _, n := range existing {
		if strings.EqualFold(n, name) {
			return &schema.DriverError{
				Op:  "create namespace",
				Err: errors.Join(schema.ErrAlreadyExists, fmt.Errorf("database %s is already attached", name)),
			}
		}
	}
	stmt := fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteLiteral(d.attachPath(name)), quoteSQLite(name))
	return d.exec(ctx, "create namespace", stmt, d.execDB)
}

func (d *SQLiteDriver) DropNamespace(ctx context.Context, name string) error {
	if strings.EqualFold(name, "main") {
		return &schema.UnsupportedError{Operation: "drop", Entity: "schema", Name: name}
	}
	return d.exec(ctx, "drop namespace", "DETACH DATABASE "+quoteSQLite(name), d.execDB)
}

func (d *SQLiteDriver) attachPath(name string) string {
	path := strings.TrimPrefix(d.path, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return filepath.Join(filepath.Dir(path), name+".db")
}

func (d *SQLiteDriver) CreateTable(ctx context.Context, plan *schema.TablePlan) error {
	stmts, err := sqliteCreateTable(plan)
	if err != nil {
		return err
	}
	d.remember(plan)
	return d.execAll(ctx, "create table", stmts, d.execDB)
}

func (d *SQLiteDriver) AlterTable(ctx context.Context, plan *schema.TablePlan) error {
	if len(plan.Options) > 0 {
		d.logger.WarnContext(ctx, "table options are ignored", "table", plan.Table, "options", len(plan.Options))
	}
	stmts, err := sqliteAlterTable(plan)
	if err != nil {
		return err
	}
	return d.execAll(ctx, "alter table", stmts, d.execDB)
}

func (d *SQLiteDriver) DropIndex(ctx context.Context, namespace, table string, index schema.IndexDefinition) error {
	stmt, err := sqliteDropIndex(namespace, table, index)
	if err != nil {
		return err
	}
	return d.exec(ctx, "drop index", stmt, d.execDB)
}

func (d *SQLiteDriver) DropTable(ctx context.Context, namespace, table string) error {
	return d.exec(ctx, "drop table", "DROP TABLE "+sqliteTable(namespace, table), d.execDB)
}

func (d *SQLiteDriver) execDB(ctx context.Context, stmt string) error {
	_, err := d.db.ExecContext(ctx, stmt)
	return err
}
