// Package ptr provides utility functions for working with pointers.
package ptr

// Deref returns the value pointed to by the given pointer, or the zero value
// when the pointer is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T

		return zero
	}

	return *p
}

// Of returns a pointer to the given value.
func Of[T any](v T) *T { return &v }
