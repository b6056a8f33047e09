package schema

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of an entity relative to the live database.
type State int

const (
	// StateCreate means the entity exists only in memory.
	StateCreate State = iota
	// StateSynced means the in-memory entity matches the live database.
	StateSynced
	// StateAlter means the entity exists live but has pending changes.
	StateAlter
	// StateDelete means the entity exists live and is pending removal.
	StateDelete
	// StateDeleted is terminal.
	StateDeleted
)

var stateNames = [...]string{
	StateCreate:  "create",
	StateSynced:  "synced",
	StateAlter:   "alter",
	StateDelete:  "delete",
	StateDeleted: "deleted",
}

func (s State) String() string {
	if s < StateCreate || s > StateDeleted {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState converts a state name back to its State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, name) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidState, name)
}

// changeSink receives notifications from child entities. Table, Schema and
// Manager implement it; the Manager is the root and absorbs change notices.
type changeSink interface {
	notifyChanged()
	notifySynced()
	notifyDeleted(child any)
	caseSensitive() bool
}

// hooks are fired by the lifecycle on deletion. Every entity implements both,
// even when a body is empty.
type hooks interface {
	onDelete()
	onDestroy()
}

// lifecycle is embedded by every entity and carries the shared state machine.
type lifecycle struct {
	name  string
	state State
	sink  changeSink
	hooks hooks
	self  any
}

func (l *lifecycle) init(name string, self hooks) {
	l.name = name
	l.state = StateCreate
	l.hooks = self
	l.self = self
}

// Name returns the entity name.
func (l *lifecycle) Name() string { return l.name }

// State returns the current lifecycle state.
func (l *lifecycle) State() State { return l.state }

// ShouldCreate reports whether the entity is waiting to be created.
func (l *lifecycle) ShouldCreate() bool { return l.state == StateCreate }

// ShouldAlter reports whether the entity has pending changes.
func (l *lifecycle) ShouldAlter() bool { return l.state == StateAlter }

// ShouldDelete reports whether the entity is pending removal.
func (l *lifecycle) ShouldDelete() bool { return l.state == StateDelete }

// IsSynced reports whether the entity matches the live database.
func (l *lifecycle) IsSynced() bool { return l.state == StateSynced }

// IsDeleted reports whether the entity reached its terminal state.
func (l *lifecycle) IsDeleted() bool { return l.state == StateDeleted }

// live reports whether lookups should still see the entity.
func (l *lifecycle) live() bool {
	return l.state != StateDelete && l.state != StateDeleted
}

func (l *lifecycle) markForAlter() {
	if l.state != StateSynced {
		return
	}
	l.state = StateAlter
	if l.sink != nil {
		l.sink.notifyChanged()
	}
}

func (l *lifecycle) markSynced() {
	if l.state != StateCreate && l.state != StateAlter {
		return
	}
	l.state = StateSynced
	if l.sink != nil {
		l.sink.notifySynced()
	}
}

// markForDeletion moves a live entity to StateDelete. An entity that was
// never created is removed from its parent at once and no DDL is produced.
func (l *lifecycle) markForDeletion() {
	switch l.state {
	case StateSynced, StateAlter:
		l.state = StateDelete
		l.hooks.onDelete()
		if l.sink != nil {
			l.sink.notifyChanged()
		}
	case StateCreate:
		l.state = StateDeleted
		l.hooks.onDelete()
		l.hooks.onDestroy()
		if l.sink != nil {
			l.sink.notifyDeleted(l.self)
		}
	}
}

func (l *lifecycle) markDeleted() {
	if l.state == StateDelete {
		l.state = StateDeleted
	}
}

func (l *lifecycle) destroy() {
	if l.state != StateDeleted {
		return
	}
	l.hooks.onDestroy()
	if l.sink != nil {
		l.sink.notifyDeleted(l.self)
	}
}

// forceCreate puts a live entity back on the create path. Used when an
// object cannot be altered in place and has to be dropped and re-added.
func (l *lifecycle) forceCreate() {
	l.state = StateCreate
}

// forceState sets the state without notifications. Used while loading the
// graph from introspection and when a parent is destroyed.
func (l *lifecycle) forceState(s State) {
	l.state = s
}

func nameEqual(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}
