package aliasptr

import (
	"github.com/rawmem/aliasptr/arena"
)

// Box is the owning counterpart to Ptr. It references a cell the same way a Ptr does,
// but it is meant to be held in exactly one place, and its Destroy method is the one
// Delete-equivalent the cell ever receives. Alias mints Ptr views of the cell for the
// rest of the data structure to hold; those views are valid until Destroy and must
// never issue Delete themselves.
//
// Holding the frees on a single designated field makes the one-delete audit local:
// a struct embedding one Box and any number of Ptr aliases is correct as long as its
// own teardown calls Destroy once and nothing touches the aliases afterward.
type Box[T any] struct {
	ptr Ptr[T]
}

// NewBox allocates a cell for value in the default arena and returns its owning Box.
// The same garbage-collector caveat as New applies.
func NewBox[T any](value T) *Box[T] {
	return NewBoxIn(DefaultArena(), value)
}

// NewBoxIn allocates a cell for value in the provided arena and returns its owning Box
func NewBoxIn[T any](a *arena.Arena, value T) *Box[T] {
	return &Box[T]{ptr: NewIn(a, value)}
}

// Get returns a shared view of the cell's value, exactly as Ptr.Get does. The Box must
// not have been destroyed.
func (b *Box[T]) Get() *T {
	return b.ptr.Get()
}

// Alias returns a non-owning Ptr to this Box's cell. The returned Ptr and every copy
// of it become invalid the moment Destroy is called, and calling Delete on any of them
// is always incorrect — the Box owns the single free.
func (b *Box[T]) Alias() Ptr[T] {
	return b.ptr
}

// Arena returns the arena this Box's cell lives in
func (b *Box[T]) Arena() *arena.Arena {
	return b.ptr.Arena()
}

// Destroy ends the cell's lifetime, running the value's Dispose method if it has one.
// It must be called exactly once, ordered after every use of the Box and of every Ptr
// obtained from Alias.
func (b *Box[T]) Destroy() {
	b.ptr.Delete()
}
