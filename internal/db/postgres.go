package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tordrt/schemasync/internal/schema"
)

const pgDuplicateSchema = "42P06"

// PostgresDriver manages the connection to PostgreSQL. Schemas are the
// namespaces and names are compared case-sensitively since every identifier
// is quoted.
type PostgresDriver struct {
	connString string
	conn       *pgx.Conn
	runner
}

// NewPostgresDriver creates a PostgreSQL driver for a pgx connection string.
func NewPostgresDriver(connString string, opts ...Option) *PostgresDriver {
	return &PostgresDriver{
		connString: connString,
		runner:     newRunner("postgres", classifyPostgresError, opts),
	}
}

func classifyPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateSchema {
		return errors.Join(schema.ErrAlreadyExists, err)
	}
	return err
}

func (d *PostgresDriver) Name() string { return "postgres" }

func (d *PostgresDriver) Connect(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, d.connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.conn = conn
	return nil
}

func (d *PostgresDriver) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close(context.Background())
	d.conn = nil
	return err
}

func (d *PostgresDriver) EngineVersion(ctx context.Context) (string, error) {
	var version string
	if err := d.conn.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (d *PostgresDriver) CaseInsensitiveNaming(context.Context) (bool, error) {
	return false, nil
}

func (d *PostgresDriver) Execute(ctx context.Context, statement string) (*schema.ResultSet, error) {
	d.logger.DebugContext(ctx, "executing statement", "op", "execute", "statement", statement)
	rows, err := d.conn.Query(ctx, statement)
	if err != nil {
		return nil, &schema.DriverError{Op: "execute", Statement: statement, Err: d.classify(err)}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out []schema.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(schema.Row, len(cols))
		for i, name := range cols {
			if vals[i] == nil {
				row[name] = nil
				continue
			}
			v := fmt.Sprint(vals[i])
			row[name] = &v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &schema.DriverError{Op: "execute", Statement: statement, Err: d.classify(err)}
	}
	return schema.NewResultSet(cols, out, rows.CommandTag().RowsAffected()), nil
}

func (d *PostgresDriver) SelectNamespace(ctx context.Context, name string) error {
	return d.exec(ctx, "select namespace", "SET search_path TO "+quotePostgres(name), d.execConn)
}

func (d *PostgresDriver) CreateNamespace(ctx context.Context, name string) error {
	return d.exec(ctx, "create namespace", "CREATE SCHEMA "+quotePostgres(name), d.execConn)
}

func (d *PostgresDriver) DropNamespace(ctx context.Context, name string) error {
	return d.exec(ctx, "drop namespace", "DROP SCHEMA "+quotePostgres(name)+" CASCADE", d.execConn)
}

func (d *PostgresDriver) CreateTable(ctx context.Context, plan *schema.TablePlan) error {
	stmts, err := postgresCreateTable(plan)
	if err != nil {
		return err
	}
	d.remember(plan)
	return d.execAll(ctx, "create table", stmts, d.execConn)
}

func (d *PostgresDriver) AlterTable(ctx context.Context, plan *schema.TablePlan) error {
	if len(plan.Options) > 0 {
		d.logger.WarnContext(ctx, "table options are ignored", "table", plan.Table, "options", len(plan.Options))
	}
	stmts, err := postgresAlterTable(plan)
	if err != nil {
		return err
	}
	return d.execAll(ctx, "alter table", stmts, d.execConn)
}

func (d *PostgresDriver) DropIndex(ctx context.Context, namespace, table string, index schema.IndexDefinition) error {
	return d.exec(ctx, "drop index", postgresDropIndex(namespace, table, index), d.execConn)
}

func (d *PostgresDriver) DropTable(ctx context.Context, namespace, table string) error {
	return d.exec(ctx, "drop table", "DROP TABLE "+postgresTable(namespace, table), d.execConn)
}

func (d *PostgresDriver) execConn(ctx context.Context, stmt string) error {
	_, err := d.conn.Exec(ctx, stmt)
	return err
}
