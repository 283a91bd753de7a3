//go:build !debug_alias_mem

package memutils

import "unsafe"

const (
	// DebugMargin is the number of bytes of debug data that should be placed after each
	// cell handed out by an arena
	DebugMargin int = 0
)

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_alias_mem build tag is present.
func ValidateMagicValue(data unsafe.Pointer, offset int) bool {
	return true
}

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes at the provided pointer and offset.
// This method no-ops unless the debug_alias_mem build tag is present.
func WriteMagicValue(data unsafe.Pointer, offset int) {
}

// FillMemory writes the provided pattern across size bytes at the provided pointer. Arenas
// use it to give fresh and freed cells recognizable contents when diagnosing lifetime bugs.
// This method no-ops unless the debug_alias_mem build tag is present.
func FillMemory(data unsafe.Pointer, size int, pattern uint8) {
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_alias_mem build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_alias_mem build tag is present.
func DebugCheckPow2(value uint, name string) {

}
