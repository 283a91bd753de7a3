package aliasptr

import (
	"unsafe"

	"github.com/rawmem/aliasptr/arena"
)

// Disposer can be implemented by value types that own external resources. When a cell
// whose value implements Disposer is deleted, Dispose runs exactly once, immediately
// before the cell is returned to its arena.
type Disposer interface {
	Dispose()
}

// zeroSizedCell is the shared backing for every cell holding a zero-sized value. Such
// cells occupy no storage, so their handles all point here and Delete releases nothing.
var zeroSizedCell byte

// Ptr is an aliasing pointer to a single value of type T in a manually-managed cell.
//
// The zero Ptr is not a valid handle; obtain one from New or NewIn. Every copy of a
// Ptr, whether made by assignment or by Alias, is an equally valid handle to the same
// cell until one of them issues Delete. After that, no copy may be used at all: Get
// and Delete through a stale copy are undefined behavior, not detectable errors.
type Ptr[T any] struct {
	addr unsafe.Pointer
	heap *arena.Arena
}

// New allocates a cell for value in the default arena and returns the cell's first
// handle. The value is copied into the cell; the original is dead to the package from
// then on.
//
// The cell is invisible to the garbage collector, so value must not carry the only
// live reference to anything on the Go heap.
func New[T any](value T) Ptr[T] {
	return NewIn(DefaultArena(), value)
}

// NewIn allocates a cell for value in the provided arena and returns the cell's first
// handle. See New.
func NewIn[T any](a *arena.Arena, value T) Ptr[T] {
	size := int(unsafe.Sizeof(value))
	if size == 0 {
		return Ptr[T]{addr: unsafe.Pointer(&zeroSizedCell), heap: a}
	}

	addr := a.Alloc(size, uint(unsafe.Alignof(value)))
	*(*T)(addr) = value
	return Ptr[T]{addr: addr, heap: a}
}

// Alias returns a second handle to this Ptr's cell. It is a pure copy of the address:
// no allocation is made, no count is maintained, and the package keeps no distinction
// between the original and the copy. Plain assignment of a Ptr value is equivalent;
// Alias is the explicit spelling.
//
// The cell must not have been deleted.
func (p Ptr[T]) Alias() Ptr[T] {
	return p
}

// Get returns a shared view of the cell's value. Every handle to the cell resolves to
// the same storage, so mutations made through the returned pointer are visible through
// every other handle — provided T itself makes that mutation sound (atomics, a mutex,
// or external sequencing). The cell must not have been deleted.
func (p Ptr[T]) Get() *T {
	if p.addr == nil {
		panic("attempted to dereference a zero Ptr")
	}
	return (*T)(p.addr)
}

// Arena returns the arena this Ptr's cell lives in
func (p Ptr[T]) Arena() *arena.Arena {
	return p.heap
}

// Delete ends the cell's lifetime: the value's Dispose method runs if it has one, and
// the cell's storage is returned to its arena unconditionally.
//
// Delete is the caller-audited operation this package is built around. The caller
// guarantees that no other Delete is ever issued for this cell, through any handle,
// and that no handle to it is used again in any way. The package maintains nothing
// that could check this; a violation is memory corruption, not a catchable error.
// (Builds with the debug_alias_mem tag panic on double deletes as a diagnostic aid,
// but correct programs never reach that path.)
func (p Ptr[T]) Delete() {
	if p.addr == nil {
		panic("attempted to delete a zero Ptr")
	}

	if d, ok := any((*T)(p.addr)).(Disposer); ok {
		d.Dispose()
	}

	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return
	}
	p.heap.Free(p.addr, size, uint(unsafe.Alignof(zero)))
}
