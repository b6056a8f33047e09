package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tordrt/schemasync/internal/schema"
)

var errNotConnected = errors.New("not connected")

// MemoryDriver keeps a catalog in memory and records the MySQL DDL it would
// have run. USE is not recorded. The catalog outlives Close, so a new Manager on the same
// driver sees what an earlier one flushed.
type MemoryDriver struct {
	mu              sync.Mutex
	insensitive     bool
	version         string
	namespaces      map[string]*memoryNamespace
	selected        string
	statements      []string
	failures        map[string]error
	connected       bool
	connectionCount int
	runner
}

type memoryNamespace struct {
	name   string
	tables map[string]*schema.TableDefinition
}

// NewMemoryDriver creates an empty catalog with case-insensitive naming.
func NewMemoryDriver(opts ...Option) *MemoryDriver {
	return &MemoryDriver{
		insensitive: true,
		version:     "8.0.36-memory",
		namespaces:  make(map[string]*memoryNamespace),
		failures:    make(map[string]error),
		runner:      newRunner("memory", nil, opts),
	}
}

func (d *MemoryDriver) Name() string { return "memory" }

// SetCaseInsensitiveNaming changes how the catalog compares names. It only
// affects entries added afterwards.
func (d *MemoryDriver) SetCaseInsensitiveNaming(insensitive bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.insensitive = insensitive
}

// FailOn makes calls fail with err until ClearFailures. The match is either
// an operation such as "alter table" or a fragment of the statement text,
// e.g. "`author`".
func (d *MemoryDriver) FailOn(match string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[match] = err
}

// ClearFailures removes every injected failure.
func (d *MemoryDriver) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.failures)
}

// Statements returns the statements recorded so far.
func (d *MemoryDriver) Statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.statements)
}

// ResetStatements forgets the recorded statements.
func (d *MemoryDriver) ResetStatements() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statements = nil
}

// Connections returns how many times Connect succeeded.
func (d *MemoryDriver) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectionCount
}

func (d *MemoryDriver) key(name string) string {
	if d.insensitive {
		return strings.ToLower(name)
	}
	return name
}

func (d *MemoryDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("connect", ""); err != nil {
		return &schema.DriverError{Op: "connect", Err: err}
	}
	d.connected = true
	d.connectionCount++
	return nil
}

func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	d.selected = ""
	return nil
}

func (d *MemoryDriver) EngineVersion(context.Context) (string, error) {
	return d.version, nil
}

func (d *MemoryDriver) CaseInsensitiveNaming(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insensitive, nil
}

// Execute answers SHOW DATABASES and SHOW TABLES; anything else is refused.
func (d *MemoryDriver) Execute(ctx context.Context, statement string) (*schema.ResultSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.DebugContext(ctx, "executing statement", "op", "execute", "statement", statement)

	switch strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(statement), ";"))) {
	case "SHOW DATABASES":
		return d.nameResult("Database", d.namespaceNames()), nil
	case "SHOW TABLES":
		ns, err := d.namespace(d.selected)
		if err != nil {
			return nil, &schema.DriverError{Op: "execute", Statement: statement, Err: err}
		}
		return d.nameResult("Tables_in_"+ns.name, tableNames(ns)), nil
	}
	return nil, &schema.UnsupportedError{Operation: "execute", Entity: "statement", Name: statement}
}

func (d *MemoryDriver) nameResult(column string, names []string) *schema.ResultSet {
	rows := make([]schema.Row, len(names))
	for i, n := range names {
		v := n
		rows[i] = schema.Row{column: &v}
	}
	return schema.NewResultSet([]string{column}, rows, int64(len(rows)))
}

func (d *MemoryDriver) SelectNamespace(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(ctx, "select namespace", "USE "+quoteMySQL(name), func(context.Context, string) error {
		if !d.connected {
			return errNotConnected
		}
		if _, err := d.namespace(name); err != nil {
			return err
		}
		d.selected = name
		return nil
	})
}

func (d *MemoryDriver) Namespaces(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, errNotConnected
	}
	if err := d.failure("namespaces", ""); err != nil {
		return nil, err
	}
	return d.namespaceNames(), nil
}

func (d *MemoryDriver) IntrospectTables(_ context.Context, namespace string) ([]schema.TableDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("introspect tables", namespace); err != nil {
		return nil, err
	}
	ns, err := d.namespace(namespace)
	if err != nil {
		return nil, err
	}
	out := make([]schema.TableDefinition, 0, len(ns.tables))
	for _, name := range tableNames(ns) {
		out = append(out, cloneTable(*ns.tables[d.key(name)]))
	}
	return out, nil
}

func (d *MemoryDriver) IntrospectIndexes(_ context.Context, namespace, table string) ([]schema.IndexDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("introspect indexes", ""); err != nil {
		return nil, err
	}
	if defs, ok := d.recall(namespace, table); ok {
		return defs, nil
	}
	t, err := d.table(namespace, table)
	if err != nil {
		return nil, err
	}
	return cloneTable(*t).Indexes, nil
}

func (d *MemoryDriver) CreateNamespace(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(ctx, "create namespace", "CREATE DATABASE "+quoteMySQL(name), func() error {
		if _, ok := d.namespaces[d.key(name)]; ok {
			return errors.Join(schema.ErrAlreadyExists, fmt.Errorf("can't create database '%s'; database exists", name))
		}
		d.namespaces[d.key(name)] = &memoryNamespace{name: name, tables: make(map[string]*schema.TableDefinition)}
		return nil
	})
}

func (d *MemoryDriver) DropNamespace(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(ctx, "drop namespace", "DROP DATABASE "+quoteMySQL(name), func() error {
		if _, err := d.namespace(name); err != nil {
			return err
		}
		delete(d.namespaces, d.key(name))
		return nil
	})
}

func (d *MemoryDriver) CreateTable(ctx context.Context, plan *schema.TablePlan) error {
	stmt, err := mysqlCreateTable(plan)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.remember(plan)
	return d.run(ctx, "create table", stmt, func() error {
		ns, err := d.namespace(plan.Namespace)
		if err != nil {
			return err
		}
		if _, ok := ns.tables[d.key(plan.Table)]; ok {
			return fmt.Errorf("table '%s' already exists", plan.Table)
		}
		t := &schema.TableDefinition{Name: plan.Table}
		if err := d.applyPlan(t, plan); err != nil {
			return err
		}
		ns.tables[d.key(plan.Table)] = t
		return nil
	})
}

func (d *MemoryDriver) AlterTable(ctx context.Context, plan *schema.TablePlan) error {
	stmt, err := mysqlAlterTable(plan)
	if err != nil || stmt == "" {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(ctx, "alter table", stmt, func() error {
		t, err := d.table(plan.Namespace, plan.Table)
		if err != nil {
			return err
		}
		next := cloneTable(*t)
		if err := d.applyPlan(&next, plan); err != nil {
			return err
		}
		*t = next
		return nil
	})
}

func (d *MemoryDriver) DropIndex(ctx context.Context, namespace, table string, index schema.IndexDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(ctx, "drop index", mysqlDropIndex(namespace, table, index), func() error {
		t, err := d.table(namespace, table)
		if err != nil {
			return err
		}
		next := cloneTable(*t)
		if err := d.dropIndex(&next, index); err != nil {
			return err
		}
		*t = next
		return nil
	})
}

func (d *MemoryDriver) DropTable(ctx context.Context, namespace, table string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(ctx, "drop table", "DROP TABLE "+mysqlTable(namespace, table), func() error {
		ns, err := d.namespace(namespace)
		if err != nil {
			return err
		}
		if _, ok := ns.tables[d.key(table)]; !ok {
			return fmt.Errorf("unknown table '%s.%s'", namespace, table)
		}
		delete(ns.tables, d.key(table))
		return nil
	})
}

// run applies fn and records stmt unless an injected failure or dry-run
// says otherwise. The caller holds d.mu.
func (d *MemoryDriver) run(ctx context.Context, op, stmt string, fn func() error) error {
	return d.exec(ctx, op, stmt, func(context.Context, string) error {
		if !d.connected {
			return errNotConnected
		}
		if err := d.failure(op, stmt); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		d.statements = append(d.statements, stmt)
		return nil
	})
}

func (d *MemoryDriver) failure(op, stmt string) error {
	if err, ok := d.failures[op]; ok {
		return err
	}
	for match, err := range d.failures {
		if stmt != "" && strings.Contains(stmt, match) {
			return err
		}
	}
	return nil
}

func (d *MemoryDriver) namespace(name string) (*memoryNamespace, error) {
	ns, ok := d.namespaces[d.key(name)]
	if !ok {
		return nil, fmt.Errorf("unknown database '%s'", name)
	}
	return ns, nil
}

func (d *MemoryDriver) table(namespace, table string) (*schema.TableDefinition, error) {
	ns, err := d.namespace(namespace)
	if err != nil {
		return nil, err
	}
	t, ok := ns.tables[d.key(table)]
	if !ok {
		return nil, fmt.Errorf("table '%s.%s' doesn't exist", namespace, table)
	}
	return t, nil
}

func (d *MemoryDriver) namespaceNames() []string {
	names := make([]string, 0, len(d.namespaces))
	for _, ns := range d.namespaces {
		names = append(names, ns.name)
	}
	sort.Strings(names)
	return names
}

func tableNames(ns *memoryNamespace) []string {
	names := make([]string, 0, len(ns.tables))
	for _, t := range ns.tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

func (d *MemoryDriver) same(a, b string) bool {
	return d.key(a) == d.key(b)
}

// applyPlan applies a plan in the order MySQL evaluates an ALTER.
func (d *MemoryDriver) applyPlan(t *schema.TableDefinition, plan *schema.TablePlan) error {
	for _, name := range plan.DroppedForeignKeys {
		n := len(t.ForeignKeys)
		t.ForeignKeys = slices.DeleteFunc(t.ForeignKeys, func(fk schema.ForeignKeyDefinition) bool {
			return d.same(fk.Name, name)
		})
		if n == len(t.ForeignKeys) {
			return fmt.Errorf("can't drop foreign key '%s'; check that it exists", name)
		}
	}

	for _, cc := range plan.Columns {
		i := slices.IndexFunc(t.Columns, func(c schema.ColumnDefinition) bool { return d.same(c.Name, cc.Column.Name) })
		switch cc.Kind {
		case schema.ChangeDrop:
			if i < 0 {
				return fmt.Errorf("can't drop column '%s'; check that it exists", cc.Column.Name)
			}
			for _, fk := range t.ForeignKeys {
				if d.same(fk.Column, cc.Column.Name) {
					return fmt.Errorf("can't drop column '%s': needed in foreign key constraint '%s'", cc.Column.Name, fk.Name)
				}
			}
			t.Columns = slices.Delete(t.Columns, i, i+1)
		case schema.ChangeModify:
			if i < 0 {
				return fmt.Errorf("unknown column '%s'", cc.Column.Name)
			}
			t.Columns[i] = cc.Column
		default:
			if i >= 0 {
				return fmt.Errorf("duplicate column name '%s'", cc.Column.Name)
			}
			t.Columns = append(t.Columns, cc.Column)
		}
	}

	for _, ic := range plan.Indexes {
		if ic.Kind == schema.ChangeDrop {
			if err := d.dropIndex(t, ic.Index); err != nil {
				return err
			}
			continue
		}
		if err := d.addIndex(t, ic.Index); err != nil {
			return err
		}
	}
	// A dropped column leaves its indexes behind without it.
	for i := range t.Indexes {
		t.Indexes[i].Columns = slices.DeleteFunc(t.Indexes[i].Columns, func(c string) bool {
			return !slices.ContainsFunc(t.Columns, func(col schema.ColumnDefinition) bool { return d.same(col.Name, c) })
		})
	}
	t.Indexes = slices.DeleteFunc(t.Indexes, func(idx schema.IndexDefinition) bool { return len(idx.Columns) == 0 })

	for _, g := range plan.ForeignKeys {
		if err := d.addForeignKey(t, plan.Namespace, g); err != nil {
			return err
		}
	}

	for _, opt := range plan.Options {
		i := slices.IndexFunc(t.Options, func(o schema.TableOption) bool { return strings.EqualFold(o.Key, opt.Key) })
		if i >= 0 {
			t.Options[i] = opt
		} else {
			t.Options = append(t.Options, opt)
		}
	}
	return nil
}

func (d *MemoryDriver) addIndex(t *schema.TableDefinition, idx schema.IndexDefinition) error {
	if idx.Type == schema.IndexPrimary {
		idx.Name = schema.PrimaryKeyName
	}
	for _, existing := range t.Indexes {
		if idx.Type == schema.IndexPrimary && existing.Type == schema.IndexPrimary {
			return errors.New("multiple primary key defined")
		}
		if d.same(existing.Name, idx.Name) {
			return fmt.Errorf("duplicate key name '%s'", idx.Name)
		}
	}
	for _, c := range idx.Columns {
		if !slices.ContainsFunc(t.Columns, func(col schema.ColumnDefinition) bool { return d.same(col.Name, c) }) {
			return fmt.Errorf("key column '%s' doesn't exist in table", c)
		}
	}
	idx.Columns = slices.Clone(idx.Columns)
	if idx.Type == schema.IndexPrimary {
		t.Indexes = append([]schema.IndexDefinition{idx}, t.Indexes...)
		return nil
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func (d *MemoryDriver) dropIndex(t *schema.TableDefinition, idx schema.IndexDefinition) error {
	i := slices.IndexFunc(t.Indexes, func(existing schema.IndexDefinition) bool {
		if idx.Type == schema.IndexPrimary {
			return existing.Type == schema.IndexPrimary
		}
		return d.same(existing.Name, idx.Name)
	})
	if i < 0 {
		return fmt.Errorf("can't drop '%s'; check that column/key exists", idx.Name)
	}
	t.Indexes = slices.Delete(t.Indexes, i, i+1)
	return nil
}

func (d *MemoryDriver) addForeignKey(t *schema.TableDefinition, namespace string, g schema.ForeignKeyGroup) error {
	refNamespace := g.RefNamespace
	if refNamespace == "" {
		refNamespace = namespace
	}

	var target *schema.TableDefinition
	if d.same(refNamespace, namespace) && d.same(g.RefTable, t.Name) {
		target = t
	} else {
		ref, err := d.table(refNamespace, g.RefTable)
		if err != nil {
			return fmt.Errorf("failed to open the referenced table '%s'", g.RefTable)
		}
		target = ref
	}

	for _, fk := range t.ForeignKeys {
		if d.same(fk.Name, g.Name) {
			return fmt.Errorf("duplicate foreign key constraint name '%s'", g.Name)
		}
	}
	for i, col := range g.Columns {
		if !slices.ContainsFunc(t.Columns, func(c schema.ColumnDefinition) bool { return d.same(c.Name, col) }) {
			return fmt.Errorf("key column '%s' doesn't exist in table", col)
		}
		refCol := g.RefColumns[i]
		if !slices.ContainsFunc(target.Columns, func(c schema.ColumnDefinition) bool { return d.same(c.Name, refCol) }) {
			return fmt.Errorf("referenced column '%s' doesn't exist in table '%s'", refCol, g.RefTable)
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKeyDefinition{
			Name:      g.Name,
			Column:    col,
			RefSchema: refNamespace,
			RefTable:  g.RefTable,
			RefColumn: refCol,
			OnUpdate:  g.OnUpdate,
			OnDelete:  g.OnDelete,
		})
	}
	return nil
}

func cloneTable(t schema.TableDefinition) schema.TableDefinition {
	out := schema.TableDefinition{
		Name:        t.Name,
		Columns:     slices.Clone(t.Columns),
		ForeignKeys: slices.Clone(t.ForeignKeys),
		Options:     slices.Clone(t.Options),
	}
	out.Indexes = make([]schema.IndexDefinition, len(t.Indexes))
	for i, idx := range t.Indexes {
		idx.Columns = slices.Clone(idx.Columns)
		out.Indexes[i] = idx
	}
	return out
}
