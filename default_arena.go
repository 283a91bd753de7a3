package aliasptr

import (
	"fmt"
	"sync"

	"github.com/rawmem/aliasptr/arena"
	"golang.org/x/exp/slog"
)

var (
	defaultArenaOnce sync.Once
	defaultArena     *arena.Arena
)

// DefaultArena returns the process-wide arena that New and NewBox allocate from. It is
// created on first use with default options and internal synchronization, and it lives
// for the rest of the process. Consumers who want custom slab sizing, external
// synchronization, or an arena they can destroy should create their own with arena.New
// and use NewIn/NewBoxIn.
func DefaultArena() *arena.Arena {
	defaultArenaOnce.Do(func() {
		var err error
		defaultArena, err = arena.New(slog.Default(), arena.CreateOptions{})
		if err != nil {
			// Default options are always valid, so this is unreachable
			panic(fmt.Sprintf("failed to create the default arena: %+v", err))
		}
	})

	return defaultArena
}
