package arena

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/rawmem/aliasptr/internal/utils"
	"github.com/rawmem/aliasptr/memutils"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

const (
	// allocFillPattern is written across fresh cells in debug builds so that reads of
	// never-initialized memory are recognizable
	allocFillPattern uint8 = 0xDC
	// freeFillPattern is written across dead cells in debug builds so that reads through
	// stale aliases are recognizable
	freeFillPattern uint8 = 0xEF
)

// dedicatedCell describes one cell that was large enough to receive a mapping of its
// own instead of being carved from a slab
type dedicatedCell struct {
	mapLen int
	size   int
}

// Arena hands out fixed-address cells of manually managed memory that live outside the
// Go heap. Cells are carved from large anonymous mappings and bucketed into power-of-two
// size classes with intrusive free lists, except for cells above the dedicated threshold,
// which receive a mapping of their own.
//
// Cell addresses are stable from Alloc until Free, and the garbage collector never
// observes, moves, or reclaims them. Every cell must be returned with Free exactly once;
// the arena performs no reclamation of its own beyond Destroy.
type Arena struct {
	logger *slog.Logger
	mutex  utils.OptionalMutex

	flags              CreateFlags
	slabSize           int
	dedicatedThreshold int
	pageSize           int

	slabs      []slab
	freeLists  [maxSizeClasses]freeList
	liveCounts [maxSizeClasses]int

	dedicated      *swiss.Map[uintptr, dedicatedCell]
	dedicatedBytes int

	tracker liveTracker
}

var _ memutils.Validatable = &Arena{}

func (a *Arena) Flags() CreateFlags      { return a.flags }
func (a *Arena) SlabSize() int           { return a.slabSize }
func (a *Arena) DedicatedThreshold() int { return a.dedicatedThreshold }

// Alloc hands out one cell of at least size bytes, aligned to the provided alignment.
// The alignment must be a power of two no greater than the page size. Cells below the
// dedicated threshold are rounded up to a power-of-two size class; a dead cell of the
// right class is reused when one exists, and a new cell is carved from the current slab
// otherwise.
//
// Exhaustion of backing memory panics rather than returning an error: an arena that
// cannot map another slab has nothing useful to report to its consumer.
func (a *Arena) Alloc(size int, alignment uint) unsafe.Pointer {
	a.logger.Debug("Arena::Alloc")

	if size <= 0 {
		panic(fmt.Sprintf("attempted to allocate a cell of invalid size %d", size))
	}
	memutils.DebugCheckPow2(alignment, "alignment")
	if alignment > uint(a.pageSize) {
		panic(fmt.Sprintf("attempted to allocate a cell with alignment %d, which exceeds the page size %d", alignment, a.pageSize))
	}

	total := size + memutils.DebugMargin

	a.mutex.Lock()
	defer a.mutex.Unlock()

	var cell unsafe.Pointer
	if total > a.dedicatedThreshold {
		cell = a.allocDedicated(size, total)
	} else {
		cell = a.allocFromClass(total, alignment)
	}

	memutils.FillMemory(cell, size, allocFillPattern)
	memutils.WriteMagicValue(cell, size)
	a.tracker.recordAlloc(uintptr(cell), size)

	return cell
}

func (a *Arena) allocFromClass(total int, alignment uint) unsafe.Pointer {
	// Cells are naturally aligned to their class size, so alignments above the
	// footprint are satisfied by promoting the cell to a larger class
	if int(alignment) > total {
		total = int(alignment)
	}
	class := classForSize(total)

	cell, ok := a.freeLists[class].pop()
	if !ok {
		cell = a.carveNewCell(class)
	}

	a.liveCounts[class]++
	return cell
}

func (a *Arena) carveNewCell(class int) unsafe.Pointer {
	size := classSize(class)

	if len(a.slabs) > 0 {
		cell, ok := a.slabs[len(a.slabs)-1].carve(size)
		if ok {
			return cell
		}
	}

	a.slabs = append(a.slabs, mapSlab(a.slabSize))
	cell, ok := a.slabs[len(a.slabs)-1].carve(size)
	if !ok {
		panic(fmt.Sprintf("a fresh %d-byte slab could not fit a %d-byte cell", a.slabSize, size))
	}
	return cell
}

func (a *Arena) allocDedicated(size, total int) unsafe.Pointer {
	mapLen := memutils.AlignUp(total, uint(a.pageSize))
	dedicated := mapSlab(mapLen)
	cell := unsafe.Pointer(&dedicated.mapping[0])

	a.dedicated.Put(uintptr(cell), dedicatedCell{mapLen: mapLen, size: size})
	a.dedicatedBytes += mapLen
	return cell
}

// Free returns one cell to the arena. The pointer, size, and alignment must be the
// values the cell was allocated with. The cell becomes dead immediately: freeing it
// again, or reading or writing it through any surviving pointer, is undefined behavior
// that the arena does not detect outside of debug builds.
func (a *Arena) Free(ptr unsafe.Pointer, size int, alignment uint) {
	a.logger.Debug("Arena::Free")

	if ptr == nil {
		panic("attempted to free a nil cell pointer")
	}
	if size <= 0 {
		panic(fmt.Sprintf("attempted to free a cell of invalid size %d", size))
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.tracker.recordFree(uintptr(ptr), size)
	if !memutils.ValidateMagicValue(ptr, size) {
		panic(fmt.Sprintf("memory corruption detected after the cell at %x", uintptr(ptr)))
	}

	total := size + memutils.DebugMargin
	if total > a.dedicatedThreshold {
		a.freeDedicated(ptr)
		return
	}

	if int(alignment) > total {
		total = int(alignment)
	}
	class := classForSize(total)

	memutils.FillMemory(ptr, size, freeFillPattern)
	a.freeLists[class].push(ptr)
	a.liveCounts[class]--
}

func (a *Arena) freeDedicated(ptr unsafe.Pointer) {
	addr := uintptr(ptr)
	cell, ok := a.dedicated.Get(addr)
	if !ok {
		panic(fmt.Sprintf("attempted to free a dedicated cell at %x that this arena did not allocate", addr))
	}

	a.dedicated.Delete(addr)
	a.dedicatedBytes -= cell.mapLen

	err := unix.Munmap(unsafe.Slice((*byte)(ptr), cell.mapLen))
	if err != nil {
		panic(fmt.Sprintf("failed to unmap the dedicated cell at %x: %+v", addr, err))
	}
}

// CellCount returns the number of cells currently live in the arena
func (a *Arena) CellCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.cellCountLocked()
}

func (a *Arena) cellCountLocked() int {
	count := a.dedicated.Count()
	for _, live := range a.liveCounts {
		count += live
	}
	return count
}

// Statistics retrieves a snapshot of this arena's backing mappings and live cells
func (a *Arena) Statistics() memutils.Statistics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var stats memutils.Statistics
	stats.SlabCount = len(a.slabs) + a.dedicated.Count()
	stats.SlabBytes = len(a.slabs)*a.slabSize + a.dedicatedBytes

	for class, live := range a.liveCounts {
		stats.CellCount += live
		stats.CellBytes += live * classSize(class)
	}
	a.dedicated.Iter(func(addr uintptr, cell dedicatedCell) bool {
		stats.CellCount++
		stats.CellBytes += cell.size
		return false
	})

	return stats
}

// AddDetailedStatistics sums this arena's allocation statistics, including free-region
// distribution, into the statistics currently present in the provided
// memutils.DetailedStatistics object. It is more expensive than Statistics.
func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.addDetailedStatisticsLocked(stats)
}

func (a *Arena) addDetailedStatisticsLocked(stats *memutils.DetailedStatistics) {
	stats.SlabCount += len(a.slabs)
	stats.SlabBytes += len(a.slabs) * a.slabSize

	for class := range a.freeLists {
		if a.liveCounts[class] > 0 {
			stats.AddCells(a.liveCounts[class], classSize(class))
		}
		for i := 0; i < a.freeLists[class].count; i++ {
			stats.AddUnusedRange(classSize(class))
		}
	}
	for i := range a.slabs {
		unused := a.slabs[i].unusedBytes()
		if unused > 0 {
			stats.AddUnusedRange(unused)
		}
	}

	a.dedicated.Iter(func(addr uintptr, cell dedicatedCell) bool {
		stats.SlabCount++
		stats.SlabBytes += cell.mapLen
		stats.AddCell(cell.size)
		return false
	})
}

// BuildStatsJson writes a json description of this arena's current state to the
// provided writer, suitable for diagnostic dumps
func (a *Arena) BuildStatsJson(writer *jwriter.Writer) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	obj := writer.Object()
	defer obj.End()

	var stats memutils.DetailedStatistics
	stats.Clear()
	a.addDetailedStatisticsLocked(&stats)

	totals := obj.Name("Totals").Object()
	stats.PrintJson(&totals)
	totals.End()

	slabs := obj.Name("Slabs").Array()
	for i := range a.slabs {
		slabObj := slabs.Object()
		slabObj.Name("Capacity").Int(len(a.slabs[i].mapping))
		slabObj.Name("Carved").Int(a.slabs[i].offset)
		slabObj.End()
	}
	slabs.End()

	dedicated := obj.Name("DedicatedCells").Array()
	a.dedicated.Iter(func(addr uintptr, cell dedicatedCell) bool {
		cellObj := dedicated.Object()
		cellObj.Name("CellBytes").Int(cell.size)
		cellObj.Name("MappedBytes").Int(cell.mapLen)
		cellObj.End()
		return false
	})
	dedicated.End()
}

// CheckCorruption verifies that the anti-corruption markers placed after every live
// cell are still intact. Markers are only written when the module is built with the
// debug_alias_mem build tag; without it this method has nothing to inspect and
// returns nil immediately.
func (a *Arena) CheckCorruption() error {
	a.logger.Debug("Arena::CheckCorruption")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.tracker.checkCorruption()
}

// Validate performs internal consistency checks on the arena's bookkeeping. When the
// arena is functioning correctly it should not be possible for this method to return
// an error, but it may assist in diagnosing issues. It is O(n) in dead cells.
func (a *Arena) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for class := range a.freeLists {
		if a.liveCounts[class] < 0 {
			return errors.Newf("size class %d has a negative live cell count %d", class, a.liveCounts[class])
		}

		length := 0
		for link := a.freeLists[class].head; link != 0; link = *(*uintptr)(unsafe.Pointer(link)) {
			if !a.ownsAddress(link) {
				return errors.Newf("the free list for size class %d contains the address %x, which is outside every slab", class, link)
			}
			length++
		}
		if length != a.freeLists[class].count {
			return errors.Newf("size class %d declares %d dead cells but its free list holds %d", class, a.freeLists[class].count, length)
		}
	}

	for i := range a.slabs {
		if a.slabs[i].offset > len(a.slabs[i].mapping) {
			return errors.Newf("slab %d has carved %d bytes from a %d-byte mapping", i, a.slabs[i].offset, len(a.slabs[i].mapping))
		}
	}

	dedicatedBytes := 0
	a.dedicated.Iter(func(addr uintptr, cell dedicatedCell) bool {
		dedicatedBytes += cell.mapLen
		return false
	})
	if dedicatedBytes != a.dedicatedBytes {
		return errors.Newf("the arena declares %d dedicated bytes but its dedicated cells sum to %d", a.dedicatedBytes, dedicatedBytes)
	}

	return nil
}

func (a *Arena) ownsAddress(addr uintptr) bool {
	for i := range a.slabs {
		if a.slabs[i].contains(addr) {
			return true
		}
	}
	return false
}

// Destroy unmaps every slab owned by this arena. It returns an error and unmaps
// nothing if any cells are still live: freeing the backing memory out from under live
// cells is virtually always a lifetime bug in the consumer.
func (a *Arena) Destroy() error {
	a.logger.Debug("Arena::Destroy")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	liveCells := a.cellCountLocked()
	if liveCells > 0 {
		return errors.Newf("the arena still has %d live cells that remain unfreed", liveCells)
	}

	for i := range a.slabs {
		err := a.slabs[i].release()
		if err != nil {
			return err
		}
	}
	a.slabs = nil

	for class := range a.freeLists {
		a.freeLists[class] = freeList{}
	}

	return nil
}
