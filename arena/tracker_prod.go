//go:build !debug_alias_mem

package arena

// liveTracker records every live cell an arena has handed out, so that double frees,
// frees of foreign pointers, and size mismatches panic with a description instead of
// corrupting the free lists. It only exists when the debug_alias_mem build tag is
// present; release builds carry an empty struct and pay nothing.
type liveTracker struct{}

func (t *liveTracker) init() {
}

func (t *liveTracker) recordAlloc(addr uintptr, size int) {
}

func (t *liveTracker) recordFree(addr uintptr, size int) {
}

func (t *liveTracker) checkCorruption() error {
	return nil
}
