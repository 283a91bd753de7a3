//go:build debug_alias_mem

package arena

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/rawmem/aliasptr/memutils"
)

// liveTracker records every live cell an arena has handed out, so that double frees,
// frees of foreign pointers, and size mismatches panic with a description instead of
// corrupting the free lists. It only exists when the debug_alias_mem build tag is
// present; release builds carry an empty struct and pay nothing.
type liveTracker struct {
	cells *swiss.Map[uintptr, int]
}

func (t *liveTracker) init() {
	t.cells = swiss.NewMap[uintptr, int](64)
}

func (t *liveTracker) recordAlloc(addr uintptr, size int) {
	t.cells.Put(addr, size)
}

func (t *liveTracker) recordFree(addr uintptr, size int) {
	liveSize, ok := t.cells.Get(addr)
	if !ok {
		panic(fmt.Sprintf("attempted to free the address %x, which is not a live cell (double free, or a pointer this arena never allocated)", addr))
	}
	if liveSize != size {
		panic(fmt.Sprintf("attempted to free the cell at %x with size %d, but it was allocated with size %d", addr, size, liveSize))
	}

	t.cells.Delete(addr)
}

func (t *liveTracker) checkCorruption() error {
	var corrupt error
	t.cells.Iter(func(addr uintptr, size int) bool {
		if !memutils.ValidateMagicValue(unsafe.Pointer(addr), size) {
			corrupt = errors.Newf("the debug margin after the cell at %x has been overwritten", addr)
			return true
		}
		return false
	})
	return corrupt
}
