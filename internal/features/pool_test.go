package features

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelMapKeepsIndexOrder(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		out, err := parallelMap(context.Background(), workers, 10,
			func() *[]int { return new([]int) },
			func(seen *[]int, idx int) int {
				*seen = append(*seen, idx)
				return idx * idx
			},
		)
		require.NoError(t, err)
		for i, v := range out {
			require.Equal(t, i*i, v, "workers=%d", workers)
		}
	}
}

func TestParallelMapOneStatePerWorker(t *testing.T) {
	var states atomic.Int32
	_, err := parallelMap(context.Background(), 4, 100,
		func() int { return int(states.Add(1)) },
		func(int, int) struct{} { return struct{}{} },
	)
	require.NoError(t, err)
	require.LessOrEqual(t, states.Load(), int32(4))
	require.Positive(t, states.Load())
}

func TestParallelMapEmptyAndCancelled(t *testing.T) {
	out, err := parallelMap(context.Background(), 4, 0,
		func() struct{} { return struct{}{} },
		func(struct{}, int) int { return 1 },
	)
	require.NoError(t, err)
	require.Empty(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		_, err := parallelMap(ctx, workers, 8,
			func() struct{} { return struct{}{} },
			func(struct{}, int) int { return 1 },
		)
		require.ErrorIs(t, err, context.Canceled)
	}
}
