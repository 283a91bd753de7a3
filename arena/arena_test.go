package arena_test

import (
	"encoding/json"
	"testing"
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/rawmem/aliasptr/arena"
	"github.com/rawmem/aliasptr/memutils"
	"github.com/stretchr/testify/require"
)

const testSlabSize = 64 * 1024

func createArena(t *testing.T, options arena.CreateOptions) *arena.Arena {
	if options.SlabSize == 0 {
		options.SlabSize = testSlabSize
	}

	heap, err := arena.New(nil, options)
	require.NoError(t, err)
	return heap
}

func TestCreateDefaults(t *testing.T) {
	heap, err := arena.New(nil, arena.CreateOptions{})
	require.NoError(t, err)

	require.Equal(t, 4*1024*1024, heap.SlabSize())
	require.Equal(t, 1024*1024, heap.DedicatedThreshold())
	require.NoError(t, heap.Destroy())
}

func TestCreateRejectsBadOptions(t *testing.T) {
	_, err := arena.New(nil, arena.CreateOptions{SlabSize: 3000})
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.PowerOfTwoError)

	_, err = arena.New(nil, arena.CreateOptions{
		SlabSize:           testSlabSize,
		DedicatedThreshold: testSlabSize * 2,
	})
	require.Error(t, err)
}

func TestAllocRoundTrip(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	cell := heap.Alloc(int(unsafe.Sizeof(uint64(0))), uint(unsafe.Alignof(uint64(0))))
	require.NotNil(t, cell)

	*(*uint64)(cell) = 0xDEADBEEF
	require.Equal(t, uint64(0xDEADBEEF), *(*uint64)(cell))

	heap.Free(cell, int(unsafe.Sizeof(uint64(0))), uint(unsafe.Alignof(uint64(0))))
	require.NoError(t, heap.Destroy())
}

func TestFreeListReuse(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	first := heap.Alloc(100, 8)
	heap.Free(first, 100, 8)

	// 90 and 100 byte cells share a size class, so the dead cell must be handed back
	second := heap.Alloc(90, 8)
	require.Equal(t, uintptr(first), uintptr(second))

	heap.Free(second, 90, 8)
	require.NoError(t, heap.Destroy())
}

func TestAlignmentPromotion(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	cell := heap.Alloc(1, 64)
	require.Zero(t, uintptr(cell)%64)

	heap.Free(cell, 1, 64)
	require.NoError(t, heap.Destroy())
}

func TestStatisticsAccounting(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	require.Equal(t, memutils.Statistics{}, heap.Statistics())

	cells := make([]unsafe.Pointer, 0, 4)
	for i := 0; i < 4; i++ {
		cells = append(cells, heap.Alloc(100, 8))
	}

	stats := heap.Statistics()
	require.Equal(t, 1, stats.SlabCount)
	require.Equal(t, testSlabSize, stats.SlabBytes)
	require.Equal(t, 4, stats.CellCount)
	require.Equal(t, 4*128, stats.CellBytes)
	require.Equal(t, 4, heap.CellCount())

	for _, cell := range cells {
		heap.Free(cell, 100, 8)
	}

	stats = heap.Statistics()
	require.Equal(t, 1, stats.SlabCount)
	require.Zero(t, stats.CellCount)
	require.Zero(t, stats.CellBytes)

	require.NoError(t, heap.Destroy())
}

func TestDetailedStatistics(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	first := heap.Alloc(100, 8)
	second := heap.Alloc(100, 8)
	heap.Free(second, 100, 8)

	var stats memutils.DetailedStatistics
	stats.Clear()
	heap.AddDetailedStatistics(&stats)

	require.Equal(t, 1, stats.SlabCount)
	require.Equal(t, 1, stats.CellCount)
	require.Equal(t, 128, stats.CellSizeMin)
	require.Equal(t, 128, stats.CellSizeMax)
	// One dead cell plus the uncarved slab tail
	require.Equal(t, 2, stats.UnusedRangeCount)
	require.Equal(t, 128, stats.UnusedRangeSizeMin)

	heap.Free(first, 100, 8)
	require.NoError(t, heap.Destroy())
}

func TestDedicatedRouting(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	// Well above the default threshold of a quarter slab
	size := testSlabSize / 2
	cell := heap.Alloc(size, 8)
	require.NotNil(t, cell)

	stats := heap.Statistics()
	require.Equal(t, 1, stats.SlabCount)
	require.Equal(t, 1, stats.CellCount)
	require.Equal(t, size, stats.CellBytes)
	require.GreaterOrEqual(t, stats.SlabBytes, size)

	heap.Free(cell, size, 8)
	require.Equal(t, memutils.Statistics{}, heap.Statistics())
	require.NoError(t, heap.Destroy())
}

func TestDestroyWithLiveCells(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	cell := heap.Alloc(32, 8)
	err := heap.Destroy()
	require.Error(t, err)
	require.ErrorContains(t, err, "live cells")

	heap.Free(cell, 32, 8)
	require.NoError(t, heap.Destroy())
}

func TestValidateAndCheckCorruption(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	cells := make([]unsafe.Pointer, 0, 8)
	for i := 0; i < 8; i++ {
		cells = append(cells, heap.Alloc(16+i*40, 8))
	}
	for i := 0; i < 8; i += 2 {
		heap.Free(cells[i], 16+i*40, 8)
	}

	require.NoError(t, heap.Validate())
	require.NoError(t, heap.CheckCorruption())

	for i := 1; i < 8; i += 2 {
		heap.Free(cells[i], 16+i*40, 8)
	}
	require.NoError(t, heap.Destroy())
}

func TestBuildStatsJson(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	small := heap.Alloc(64, 8)
	big := heap.Alloc(testSlabSize/2, 8)

	writer := jwriter.NewWriter()
	heap.BuildStatsJson(&writer)
	require.NoError(t, writer.Error())

	var decoded struct {
		Totals         map[string]int
		Slabs          []map[string]int
		DedicatedCells []map[string]int
	}
	require.NoError(t, json.Unmarshal(writer.Bytes(), &decoded))

	require.Equal(t, 2, decoded.Totals["CellCount"])
	require.Len(t, decoded.Slabs, 1)
	require.Equal(t, testSlabSize, decoded.Slabs[0]["Capacity"])
	require.Len(t, decoded.DedicatedCells, 1)
	require.Equal(t, testSlabSize/2, decoded.DedicatedCells[0]["CellBytes"])

	heap.Free(small, 64, 8)
	heap.Free(big, testSlabSize/2, 8)
	require.NoError(t, heap.Destroy())
}

func TestAllocContractViolationsPanic(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	require.Panics(t, func() { heap.Alloc(0, 8) })
	require.Panics(t, func() { heap.Alloc(-5, 8) })
	require.Panics(t, func() { heap.Alloc(16, 1<<20) })
	require.Panics(t, func() { heap.Free(nil, 16, 8) })

	require.NoError(t, heap.Destroy())
}

func TestSlabGrowth(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{})

	// Enough quarter-slab-threshold-sized cells to spill into a second slab
	cellSize := testSlabSize / 8
	cells := make([]unsafe.Pointer, 0, 10)
	for i := 0; i < 10; i++ {
		cells = append(cells, heap.Alloc(cellSize, 8))
	}

	stats := heap.Statistics()
	require.GreaterOrEqual(t, stats.SlabCount, 2)
	require.Equal(t, 10, stats.CellCount)
	require.NoError(t, heap.Validate())

	for _, cell := range cells {
		heap.Free(cell, cellSize, 8)
	}
	require.NoError(t, heap.Destroy())
}

func TestExternallySynchronized(t *testing.T) {
	heap := createArena(t, arena.CreateOptions{
		Flags: arena.ArenaCreateExternallySynchronized,
	})
	require.Equal(t, arena.ArenaCreateExternallySynchronized, heap.Flags())

	cell := heap.Alloc(32, 8)
	heap.Free(cell, 32, 8)
	require.NoError(t, heap.Destroy())
}
