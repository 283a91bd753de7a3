package arena

import (
	"fmt"
	"unsafe"

	"github.com/rawmem/aliasptr/memutils"
	"golang.org/x/sys/unix"
)

// slab is a single anonymous private mapping that cells are carved from by bump offset.
// Slabs are never unmapped until the arena is destroyed, so every cell address is stable
// for the life of the arena.
type slab struct {
	mapping []byte
	offset  int
}

func mapSlab(size int) slab {
	mapping, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		// Backing memory exhaustion is not a recoverable condition for consumers of
		// an arena, so it surfaces as a panic rather than an error return.
		panic(fmt.Sprintf("failed to map a %d-byte slab: %+v", size, err))
	}

	return slab{mapping: mapping}
}

// carve hands out one cell of the provided size class, or fails if the slab does not
// have room left. Cells are placed at offsets aligned to their class size, so a cell's
// address is always aligned to min(classSize, page size).
func (s *slab) carve(classSize int) (unsafe.Pointer, bool) {
	offset := memutils.AlignUp(s.offset, uint(classSize))
	if offset+classSize > len(s.mapping) {
		return nil, false
	}

	s.offset = offset + classSize
	return unsafe.Pointer(&s.mapping[offset]), true
}

func (s *slab) contains(addr uintptr) bool {
	base := uintptr(unsafe.Pointer(&s.mapping[0]))
	return addr >= base && addr < base+uintptr(len(s.mapping))
}

func (s *slab) unusedBytes() int {
	return len(s.mapping) - s.offset
}

func (s *slab) release() error {
	return unix.Munmap(s.mapping)
}
