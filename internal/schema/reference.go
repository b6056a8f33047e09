package schema

// Reference is the foreign key carried by a column. Both actions default to
// cascade.
type Reference struct {
	lifecycle
	column       *Column
	target       *Column
	updateAction Action
	deleteAction Action
	constraint   string
}

func newReference(c, target *Column) *Reference {
	r := &Reference{column: c, target: target}
	r.init(c.name, r)
	r.sink = c
	return r
}

// Column returns the referencing column.
func (r *Reference) Column() *Column { return r.column }

// Target returns the referenced column.
func (r *Reference) Target() *Column { return r.target }

func (r *Reference) OnUpdate() Action { return r.updateAction }
func (r *Reference) OnDelete() Action { return r.deleteAction }

// Constraint returns the live constraint name, empty until first flushed.
func (r *Reference) Constraint() string { return r.constraint }

// SetOnUpdate sets the ON UPDATE action.
func (r *Reference) SetOnUpdate(a Action) *Reference {
	if a != r.updateAction {
		r.updateAction = a
		r.markForAlter()
	}
	return r
}

// SetOnDelete sets the ON DELETE action.
func (r *Reference) SetOnDelete(a Action) *Reference {
	if a != r.deleteAction {
		r.deleteAction = a
		r.markForAlter()
	}
	return r
}

func (r *Reference) onDelete() {}

func (r *Reference) onDestroy() {}
