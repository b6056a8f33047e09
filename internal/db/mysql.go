package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/schemasync/internal/schema"
)

const mysqlErrDatabaseExists = 1007

// MySQLDriver manages the connection to MySQL. Databases are the namespaces.
// All statements go through one dedicated session so USE sticks.
type MySQLDriver struct {
	dsn  string
	db   *sql.DB
	conn *sql.Conn
	runner
}

// NewMySQLDriver creates a MySQL driver for a go-sql-driver DSN such as
// user:pass@tcp(host:3306)/.
func NewMySQLDriver(dsn string, opts ...Option) *MySQLDriver {
	return &MySQLDriver{
		dsn:    dsn,
		runner: newRunner("mysql", classifyMySQLError, opts),
	}
}

func classifyMySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDatabaseExists {
		return errors.Join(schema.ErrAlreadyExists, err)
	}
	return err
}

func (d *MySQLDriver) Name() string { return "mysql" }

// Connect opens the pool and pins one session.
func (d *MySQLDriver) Connect(ctx context.Context) error {
	cfg, err := mysql.ParseDSN(d.dsn)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open session: %w", err)
	}

	d.db = db
	d.conn = conn
	return nil
}

// Close closes the session and the pool.
func (d *MySQLDriver) Close() error {
	if d.db == nil {
		return nil
	}
	var errs []error
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
	}
	errs = append(errs, d.db.Close())
	d.db, d.conn = nil, nil
	return errors.Join(errs...)
}

func (d *MySQLDriver) EngineVersion(ctx context.Context) (string, error) {
	var version string
	if err := d.conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// CaseInsensitiveNaming reads lower_case_table_names; any non-zero value
// means names are compared without case.
func (d *MySQLDriver) CaseInsensitiveNaming(ctx context.Context) (bool, error) {
	var mode int
	if err := d.conn.QueryRowContext(ctx, "SELECT @@lower_case_table_names").Scan(&mode); err != nil {
		return false, err
	}
	return mode != 0, nil
}

func (d *MySQLDriver) Execute(ctx context.Context, statement string) (*schema.ResultSet, error) {
	d.logger.DebugContext(ctx, "executing statement", "op", "execute", "statement", statement)
	rows, err := d.conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, &schema.DriverError{Op: "execute", Statement: statement, Err: d.classify(err)}
	}
	return collectRows(rows)
}

func (d *MySQLDriver) SelectNamespace(ctx context.Context, name string) error {
	return d.exec(ctx, "select namespace", "USE "+quoteMySQL(name), d.execConn)
}

func (d *MySQLDriver) CreateNamespace(ctx context.Context, name string) error {
	return d.exec(ctx, "create namespace", "CREATE DATABASE "+quoteMySQL(name), d.execConn)
}

func (d *MySQLDriver) DropNamespace(ctx context.Context, name string) error {
	return d.exec(ctx, "drop namespace", "DROP DATABASE "+quoteMySQL(name), d.execConn)
}

func (d *MySQLDriver) CreateTable(ctx context.Context, plan *schema.TablePlan) error {
	stmt, err := mysqlCreateTable(plan)
	if err != nil {
		return err
	}
	d.remember(plan)
	return d.exec(ctx, "create table", stmt, d.execConn)
}

func (d *MySQLDriver) AlterTable(ctx context.Context, plan *schema.TablePlan) error {
	stmt, err := mysqlAlterTable(plan)
	if err != nil || stmt == "" {
		return err
	}
	return d.exec(ctx, "alter table", stmt, d.execConn)
}

func (d *MySQLDriver) DropIndex(ctx context.Context, namespace, table string, index schema.IndexDefinition) error {
	return d.exec(ctx, "drop index", mysqlDropIndex(namespace, table, index), d.execConn)
}

func (d *MySQLDriver) DropTable(ctx context.Context, namespace, table string) error {
	return d.exec(ctx, "drop table", "DROP TABLE "+mysqlTable(namespace, table), d.execConn)
}

func (d *MySQLDriver) execConn(ctx context.Context, stmt string) error {
	_, err := d.conn.ExecContext(ctx, stmt)
	return err
}
