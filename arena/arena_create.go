package arena

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/rawmem/aliasptr/internal/utils"
	"github.com/rawmem/aliasptr/memutils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific arena behaviors to activate or deactivate
type CreateFlags int32

const (
	// ArenaCreateExternallySynchronized ensures that this arena will not be synchronized
	// internally. The consumer must guarantee the arena is used from only one thread at a
	// time or is synchronized by some other mechanism, but performance may improve because
	// internal mutexes are not used.
	ArenaCreateExternallySynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = map[CreateFlags]string{
	ArenaCreateExternallySynchronized: "ArenaCreateExternallySynchronized",
}

func (f CreateFlags) String() string {
	return createFlagsMapping[f]
}

const (
	// defaultSlabSize is the value that is used as the SlabSize when none is provided
	// via CreateOptions. It is equal to 4Mb.
	defaultSlabSize int = 4 * 1024 * 1024
)

// CreateOptions contains optional settings when creating an arena
type CreateOptions struct {
	// Flags indicates specific arena behaviors to activate or deactivate
	Flags CreateFlags

	// SlabSize is the size in bytes of the backing mappings that cells are carved from.
	// It must be a power of two. When it is 0, a default of 4Mb is used.
	SlabSize int

	// DedicatedThreshold is the cell size in bytes above which the arena stops using
	// slab size classes and gives the cell a mapping of its own. When it is 0, a quarter
	// of the slab size is used. It may not exceed the slab size.
	DedicatedThreshold int
}

// New creates a new Arena
//
// logger - The logger that the arena and everything created from it will write debug
// traces to. When nil, slog.Default() is used.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Arena, error) {
	if logger == nil {
		logger = slog.Default()
	}

	slabSize := options.SlabSize
	if slabSize == 0 {
		slabSize = defaultSlabSize
	}
	err := memutils.CheckPow2(slabSize, "options.SlabSize")
	if err != nil {
		return nil, err
	}
	if slabSize < minCellSize {
		return nil, errors.Newf("options.SlabSize is %d, but slabs must be at least %d bytes", slabSize, minCellSize)
	}

	dedicatedThreshold := options.DedicatedThreshold
	if dedicatedThreshold == 0 {
		dedicatedThreshold = slabSize / 4
	}
	if dedicatedThreshold > slabSize {
		return nil, errors.Newf("options.DedicatedThreshold is %d, which exceeds the slab size %d", dedicatedThreshold, slabSize)
	}

	useMutex := options.Flags&ArenaCreateExternallySynchronized == 0

	arena := &Arena{
		logger:             logger,
		flags:              options.Flags,
		slabSize:           slabSize,
		dedicatedThreshold: dedicatedThreshold,
		pageSize:           os.Getpagesize(),

		dedicated: swiss.NewMap[uintptr, dedicatedCell](8),
	}
	arena.mutex = utils.OptionalMutex{UseMutex: useMutex}
	arena.tracker.init()

	return arena, nil
}
