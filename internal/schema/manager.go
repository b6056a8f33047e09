package schema

import (
	"context"
	"fmt"
	"strings"
)

// Manager is the aggregate root: it owns the driver and every schema reachable
// through it, and it is where loading and flushing start.
type Manager struct {
	driver       Driver
	schemas      collection[*Schema]
	ignored      []string
	exclusive    string
	sensitive    bool
	sensitiveSet bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithCaseSensitiveNaming fixes the naming rule instead of asking the driver.
func WithCaseSensitiveNaming(on bool) Option {
	return func(m *Manager) {
		m.sensitive = on
		m.sensitiveSet = true
	}
}

// WithIgnoredSchemas sets the schemas that are never loaded nor flushed.
func WithIgnoredSchemas(names ...string) Option {
	return func(m *Manager) { m.ignored = append([]string(nil), names...) }
}

// WithExclusiveSchema restricts the manager to a single schema.
func WithExclusiveSchema(name string) Option {
	return func(m *Manager) { m.exclusive = name }
}

// NewManager creates a manager on top of d. Call Connect to load the live
// structure.
func NewManager(d Driver, opts ...Option) *Manager {
	m := &Manager{driver: d}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Driver returns the underlying driver.
func (m *Manager) Driver() Driver { return m.driver }

// Connect opens the driver connection, reads the naming rule and loads every
// namespace. Ignored namespaces are registered without their tables.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.driver.Connect(ctx); err != nil {
		return driverFailure("connect", err)
	}
	if !m.sensitiveSet {
		insensitive, err := m.driver.CaseInsensitiveNaming(ctx)
		if err != nil {
			return driverFailure("read naming rules", err)
		}
		m.sensitive = !insensitive
	}

	names, err := m.driver.Namespaces(ctx)
	if err != nil {
		return driverFailure("list namespaces", err)
	}

	var refs []pendingReference
	for _, name := range names {
		s, ok := m.schemas.find(name, m.sensitive)
		if !ok {
			s = NewSchema(name)
			m.attach(s)
		}
		if s.ShouldBeIgnored() {
			s.forceState(StateSynced)
			continue
		}
		defs, err := m.driver.IntrospectTables(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to introspect schema %s: %w", name, driverFailure("introspect tables", err))
		}
		refs = append(refs, s.load(defs)...)
	}
	m.resolveReferences(refs)
	return nil
}

// Close closes the driver connection.
func (m *Manager) Close() error {
	return m.driver.Close()
}

// EngineVersion reports the database server version.
func (m *Manager) EngineVersion(ctx context.Context) (string, error) {
	v, err := m.driver.EngineVersion(ctx)
	if err != nil {
		return "", driverFailure("read engine version", err)
	}
	return v, nil
}

// CaseSensitive reports whether names are compared case-sensitively.
func (m *Manager) CaseSensitive() bool { return m.sensitive }

// SetCaseSensitiveNaming overrides the naming rule.
func (m *Manager) SetCaseSensitiveNaming(on bool) {
	m.sensitive = on
	m.sensitiveSet = true
}

// Schema returns the live schema with the given name.
func (m *Manager) Schema(name string) (*Schema, bool) {
	return m.schemas.lookup(name, m.sensitive)
}

// HasSchema reports whether a live schema has the given name.
func (m *Manager) HasSchema(name string) bool {
	_, ok := m.Schema(name)
	return ok
}

// Schemas returns the live schemas in insertion order.
func (m *Manager) Schemas() []*Schema { return m.schemas.live() }

// AllSchemas also returns schemas pending deletion.
func (m *Manager) AllSchemas() []*Schema { return m.schemas.all() }

// AddSchema attaches s. See AddSchemaContext.
func (m *Manager) AddSchema(s *Schema) error {
	return m.AddSchemaContext(context.Background(), s)
}

// AddSchemaContext attaches s. A live schema with the same name is a
// conflict; one pending deletion is dropped first.
func (m *Manager) AddSchemaContext(ctx context.Context, s *Schema) error {
	if s == nil {
		return &ConfigurationError{Entity: "manager", Name: m.driver.Name(), Message: "schema is nil"}
	}
	if strings.TrimSpace(s.Name()) == "" {
		return &ConfigurationError{Entity: "schema", Name: s.Name(), Message: "name must not be empty"}
	}
	if s.manager != nil || !s.ShouldCreate() {
		return &ConflictError{Entity: "schema", Name: s.Name(), Message: "schema is already attached"}
	}
	if existing, ok := m.schemas.find(s.Name(), m.sensitive); ok {
		if existing.live() {
			return &ConflictError{Entity: "schema", Name: s.Name(), Message: "already exists"}
		}
		if err := m.flushSchema(ctx, existing); err != nil {
			return err
		}
	}
	m.attach(s)
	return nil
}

// CreateSchema returns the live schema with the given name, creating and
// attaching a new one when there is none.
func (m *Manager) CreateSchema(name string) (*Schema, error) {
	if s, ok := m.Schema(name); ok {
		return s, nil
	}
	s := NewSchema(name)
	if err := m.AddSchema(s); err != nil {
		return nil, err
	}
	return s, nil
}

// DropSchema marks a schema for deletion.
func (m *Manager) DropSchema(name string) error {
	s, ok := m.Schema(name)
	if !ok {
		return &NotFoundError{Entity: "schema", Name: name}
	}
	s.markForDeletion()
	return nil
}

// SetIgnoredSchemas replaces the ignore list.
func (m *Manager) SetIgnoredSchemas(names ...string) {
	m.ignored = append([]string(nil), names...)
	for _, s := range m.schemas.items {
		s.ignored = m.listedAsIgnored(s.Name())
	}
}

// IgnoredSchemas returns the ignore list.
func (m *Manager) IgnoredSchemas() []string {
	return append([]string(nil), m.ignored...)
}

// SetExclusiveSchema restricts loading and flushing to one schema. It takes
// precedence over the ignore list. An empty name lifts the restriction.
func (m *Manager) SetExclusiveSchema(name string) {
	m.exclusive = name
}

// ExclusiveSchema returns the exclusive schema name, if any.
func (m *Manager) ExclusiveSchema() string { return m.exclusive }

func (m *Manager) attach(s *Schema) {
	s.sink = m
	s.manager = m
	s.ignored = s.ignored || m.listedAsIgnored(s.Name())
	m.schemas.add(s)
}

func (m *Manager) listedAsIgnored(name string) bool {
	for _, n := range m.ignored {
		if nameEqual(n, name, m.sensitive) {
			return true
		}
	}
	return false
}

func (m *Manager) findColumn(schemaName, tableName, columnName string) *Column {
	s, ok := m.schemas.lookup(schemaName, m.sensitive)
	if !ok {
		return nil
	}
	t, ok := s.Table(tableName)
	if !ok {
		return nil
	}
	c, ok := t.Column(columnName)
	if !ok {
		return nil
	}
	return c
}

func (m *Manager) notifyChanged() {}

func (m *Manager) notifySynced() {}

func (m *Manager) notifyDeleted(child any) {
	if s, ok := child.(*Schema); ok {
		m.schemas.remove(s)
	}
}

func (m *Manager) caseSensitive() bool { return m.sensitive }
