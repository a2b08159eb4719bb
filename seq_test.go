package utcp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeqDiff(t *testing.T) {
	require.EqualValues(t, 0, seqDiff(100, 100))
	require.EqualValues(t, 1, seqDiff(101, 100))
	require.EqualValues(t, -1, seqDiff(100, 101))

	// Wraparound: 0, just past the top of the space, is one "after"
	// MaxUint32.
	require.EqualValues(t, 1, seqDiff(0, math.MaxUint32))
	require.EqualValues(t, -1, seqDiff(math.MaxUint32, 0))
}

func TestSeqLess(t *testing.T) {
	require.True(t, seqLess(1, 2))
	require.False(t, seqLess(2, 1))
	require.False(t, seqLess(2, 2))
	require.True(t, seqLess(math.MaxUint32, 0))
}

func TestSeqInClosed(t *testing.T) {
	require.True(t, seqInClosed(5, 5, 10))
	require.True(t, seqInClosed(10, 5, 10))
	require.True(t, seqInClosed(7, 5, 10))
	require.False(t, seqInClosed(4, 5, 10))
	require.False(t, seqInClosed(11, 5, 10))

	// Wraparound window.
	require.True(t, seqInClosed(0, math.MaxUint32-2, 2))
	require.False(t, seqInClosed(3, math.MaxUint32-2, 2))
}
