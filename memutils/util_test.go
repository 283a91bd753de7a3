package memutils_test

import (
	"testing"

	"github.com/rawmem/aliasptr/memutils"
	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 16))
	require.Equal(t, 16, memutils.AlignUp(1, 16))
	require.Equal(t, 16, memutils.AlignUp(16, 16))
	require.Equal(t, 32, memutils.AlignUp(17, 16))
	require.Equal(t, 4096, memutils.AlignUp(4000, 4096))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, memutils.AlignDown(15, 16))
	require.Equal(t, 16, memutils.AlignDown(16, 16))
	require.Equal(t, 16, memutils.AlignDown(31, 16))
	require.Equal(t, 4096, memutils.AlignDown(5000, 4096))
}

func TestNextPow2(t *testing.T) {
	require.Equal(t, 1, memutils.NextPow2(0))
	require.Equal(t, 1, memutils.NextPow2(1))
	require.Equal(t, 2, memutils.NextPow2(2))
	require.Equal(t, 4, memutils.NextPow2(3))
	require.Equal(t, 128, memutils.NextPow2(100))
	require.Equal(t, 128, memutils.NextPow2(128))
	require.Equal(t, 256, memutils.NextPow2(129))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(64, "value"))
	require.NoError(t, memutils.CheckPow2(0, "value"))

	err := memutils.CheckPow2(100, "value")
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}
