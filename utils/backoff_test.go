package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFibonacciNext(t *testing.T) {
	require.Equal(t, int64(1), FibonacciNext(0))
	require.Equal(t, int64(2), FibonacciNext(1))
	require.Equal(t, int64(3), FibonacciNext(2))
	require.Equal(t, int64(8), FibonacciNext(5))
	require.Equal(t, int64(13), FibonacciNext(8))
}

func TestBackoff(t *testing.T) {
	b := &Backoff{Max: 5}
	require.True(t, b.Ready())

	require.Equal(t, int64(1), b.Fail())
	require.True(t, b.Ready())

	require.Equal(t, int64(2), b.Fail())
	require.False(t, b.Ready())
	require.True(t, b.Ready())

	require.Equal(t, int64(3), b.Fail())
	require.Equal(t, int64(5), b.Fail())
	// 8 is above max, start over
	require.Equal(t, int64(1), b.Fail())

	b.Fail()
	b.Reset()
	require.True(t, b.Ready())
}
