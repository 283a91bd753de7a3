package aliasptr_test

import (
	"testing"

	"github.com/rawmem/aliasptr"
	"github.com/stretchr/testify/require"
)

func TestBoxAliasesShareStorage(t *testing.T) {
	heap := createArena(t)

	box := aliasptr.NewBoxIn(heap, counter{n: 1})
	view := box.Alias()

	view.Get().n = 42
	require.Equal(t, 42, box.Get().n)

	box.Get().n = 9
	require.Equal(t, 9, view.Get().n)

	box.Destroy()
	require.NoError(t, heap.Destroy())
}

func TestBoxDestroyFreesCell(t *testing.T) {
	heap := createArena(t)

	disposals := 0
	box := aliasptr.NewBoxIn(heap, resource{disposals: &disposals})
	require.Equal(t, 1, heap.CellCount())
	require.Same(t, heap, box.Arena())

	box.Destroy()
	require.Equal(t, 1, disposals)
	require.Zero(t, heap.CellCount())
	require.NoError(t, heap.Destroy())
}

func TestBoxDefaultArena(t *testing.T) {
	box := aliasptr.NewBox(counter{n: 5})
	require.Same(t, aliasptr.DefaultArena(), box.Arena())
	require.Equal(t, 5, box.Get().n)

	box.Destroy()
}
