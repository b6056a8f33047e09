package schema

// member is what a collection needs from an entity.
type member interface {
	comparable
	Name() string
	State() State
}

// collection keeps entities in insertion order. Removal compacts the slice,
// so iteration never sees holes.
type collection[T member] struct {
	items []T
}

func (c *collection[T]) add(item T) {
	c.items = append(c.items, item)
}

// find returns the entity with the given name that is not yet Deleted, even
// when it is pending deletion.
func (c *collection[T]) find(name string, caseSensitive bool) (T, bool) {
	for _, item := range c.items {
		if item.State() != StateDeleted && nameEqual(item.Name(), name, caseSensitive) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// lookup returns the entity with the given name unless it is pending deletion.
func (c *collection[T]) lookup(name string, caseSensitive bool) (T, bool) {
	for _, item := range c.items {
		s := item.State()
		if s != StateDelete && s != StateDeleted && nameEqual(item.Name(), name, caseSensitive) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) remove(item T) bool {
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// all returns a snapshot of every held entity, including pending deletions.
func (c *collection[T]) all() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// live returns a snapshot of the entities visible to lookups.
func (c *collection[T]) live() []T {
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		s := item.State()
		if s != StateDelete && s != StateDeleted {
			out = append(out, item)
		}
	}
	return out
}

func (c *collection[T]) clear() {
	c.items = nil
}
