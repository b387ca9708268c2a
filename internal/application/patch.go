package application

// Patch carries tri-state update semantics for one field: the zero
// value leaves the stored field unchanged, Clear drops it, and Value
// sets it. Handlers build patches from nullable JSON fields so "absent"
// and "null" stay distinguishable all the way down.
type Patch[T any] struct {
	specified bool
	cleared   bool
	value     T
}

// Value returns a patch that sets the field.
func Value[T any](value T) Patch[T] {
	return Patch[T]{specified: true, value: value}
}

// Clear returns a patch that drops the field.
func Clear[T any]() Patch[T] {
	return Patch[T]{specified: true, cleared: true}
}

// Specified reports whether the patch carries an instruction at all.
func (p Patch[T]) Specified() bool {
	return p.specified
}

// Cleared reports whether the patch drops the field.
func (p Patch[T]) Cleared() bool {
	return p.specified && p.cleared
}

// Get returns the new value and whether one was provided.
func (p Patch[T]) Get() (T, bool) {
	if !p.specified || p.cleared {
		var zero T
		return zero, false
	}
	return p.value, true
}

// apply resolves the patch against the stored value. Clearing resolves
// to the zero value, matching the empty-value convention of the
// application models.
func (p Patch[T]) apply(current T) T {
	if value, ok := p.Get(); ok {
		return value
	}
	if p.Cleared() {
		var zero T
		return zero
	}
	return current
}
