package memutils

import (
	"math"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics is a snapshot of the backing memory held by an arena: how many slabs and
// dedicated mappings exist, and how many cells are live within them.
type Statistics struct {
	SlabCount int
	CellCount int
	SlabBytes int
	CellBytes int
}

func (s *Statistics) Clear() {
	s.SlabCount = 0
	s.CellCount = 0
	s.SlabBytes = 0
	s.CellBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.SlabCount += other.SlabCount
	s.CellCount += other.CellCount
	s.SlabBytes += other.SlabBytes
	s.CellBytes += other.CellBytes
}

// PrintJson populates a json object with the contents of this Statistics object
func (s *Statistics) PrintJson(json *jwriter.ObjectState) {
	json.Name("SlabCount").Int(s.SlabCount)
	json.Name("SlabBytes").Int(s.SlabBytes)
	json.Name("CellCount").Int(s.CellCount)
	json.Name("CellBytes").Int(s.CellBytes)
}

// DetailedStatistics extends Statistics with information about the distribution of
// cell and free-region sizes. It is more expensive to collect than Statistics.
type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	CellSizeMin        int
	CellSizeMax        int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.CellSizeMin = math.MaxInt
	s.CellSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddCell(size int) {
	s.CellCount++
	s.CellBytes += size

	if size < s.CellSizeMin {
		s.CellSizeMin = size
	}

	if size > s.CellSizeMax {
		s.CellSizeMax = size
	}
}

// AddCells records count live cells of the same size. Arenas that bucket cells into
// size classes use this to sum a whole class at once.
func (s *DetailedStatistics) AddCells(count, size int) {
	for i := 0; i < count; i++ {
		s.AddCell(size)
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.CellSizeMin < s.CellSizeMin {
		s.CellSizeMin = other.CellSizeMin
	}

	if other.CellSizeMax > s.CellSizeMax {
		s.CellSizeMax = other.CellSizeMax
	}
}

// PrintJson populates a json object with the contents of this DetailedStatistics object
func (s *DetailedStatistics) PrintJson(json *jwriter.ObjectState) {
	s.Statistics.PrintJson(json)

	json.Name("UnusedRangeCount").Int(s.UnusedRangeCount)
	if s.CellCount > 0 {
		json.Name("CellSizeMin").Int(s.CellSizeMin)
		json.Name("CellSizeMax").Int(s.CellSizeMax)
	}
	if s.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(s.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(s.UnusedRangeSizeMax)
	}
}
