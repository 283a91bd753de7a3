// Package aliasptr supplies the Ptr type, which allows creating any number of pointers
// to the same manually-managed allocation, and freeing that allocation without any
// reference-counting overhead.
//
// A Ptr is a plain value wrapping the address of one heap cell: copying it, via
// assignment or Ptr.Alias, copies the address and nothing else. No count is maintained,
// no flag is set when the cell is freed, and the set of live copies is known only to
// the surrounding program. In exchange, Ptr.Delete is a caller-audited operation:
// consumers must arrange, by construction, that exactly one Delete is issued per cell
// and that no copy is dereferenced afterward. The intended use is as a building block
// inside a larger data structure whose own teardown path performs the single Delete,
// with one designated owner field among several aliasing fields. Box makes that
// pattern explicit: it aliases like a Ptr but is meant to be held by exactly one
// owner, whose Destroy call ends the lifetime of every outstanding alias.
//
// Ptr.Get returns a shared view of the value. The package never hands out a view it
// considers exclusive, so mutation through aliases is only sound when the value type
// brings its own discipline: sync/atomic types, a mutex-guarded struct, or an
// externally sequenced single writer.
//
// Cells live in an arena.Arena, outside the memory the garbage collector manages.
// That is what makes Delete real: the backing store is only reclaimed when the
// consumer says so. It also means a value stored through New must not hold the only
// reference to a Go-heap object, because the collector cannot see into cells and will
// happily reclaim the referent.
//
// None of the types in this package are synchronized. Copies of a Ptr may be read on
// multiple goroutines only to the extent the value type tolerates it, and Delete must
// be externally ordered after every other use of every copy.
package aliasptr
