package arena

import (
	"math/bits"
	"unsafe"
)

const (
	minCellShift = 4
	// minCellSize is the smallest cell the arena hands out. It is large enough to hold
	// the intrusive free-list link written into dead cells.
	minCellSize = 1 << minCellShift
	// maxSizeClasses is the number of power-of-two size classes the arena can bucket
	// cells into, covering every footprint from minCellSize up to the largest slab
	// representable in an int.
	maxSizeClasses = 64 - minCellShift
)

// classForSize maps a total cell footprint (requested bytes plus debug margin) to a
// size-class index. Class c holds cells of minCellSize << c bytes.
func classForSize(size int) int {
	if size <= minCellSize {
		return 0
	}
	return bits.Len(uint(size-1)) - minCellShift
}

func classSize(class int) int {
	return minCellSize << class
}

// freeList is an intrusive singly-linked list of the dead cells within one size class.
// The link lives in the first word of the dead cell itself, so maintaining the list
// performs no allocations.
type freeList struct {
	head  uintptr
	count int
}

func (l *freeList) push(addr unsafe.Pointer) {
	*(*uintptr)(addr) = l.head
	l.head = uintptr(addr)
	l.count++
}

func (l *freeList) pop() (unsafe.Pointer, bool) {
	if l.head == 0 {
		return nil, false
	}

	addr := unsafe.Pointer(l.head)
	l.head = *(*uintptr)(addr)
	l.count--
	return addr, true
}