package sfu_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openmeet/sfu/internal/engine"
	"github.com/openmeet/sfu/internal/engine/pionmedia"
	"github.com/openmeet/sfu/internal/sfu"
)

type failingEngine struct{}

func (failingEngine) CreateWorker(ctx context.Context, settings engine.WorkerSettings) (engine.Worker, error) {
	return nil, errors.New("boom")
}

func TestWorkerPoolInitialize(t *testing.T) {
	t.Run("creates requested worker count", func(t *testing.T) {
		pool := sfu.NewWorkerPool(pionmedia.New(), engine.WorkerSettings{}, engine.RouterOptions{})
		require.NoError(t, pool.Initialize(context.Background(), 3))
		require.Equal(t, 3, pool.Size())
	})

	t.Run("zero count falls back to CPU count", func(t *testing.T) {
		pool := sfu.NewWorkerPool(pionmedia.New(), engine.WorkerSettings{}, engine.RouterOptions{})
		require.NoError(t, pool.Initialize(context.Background(), 0))
		require.Greater(t, pool.Size(), 0)
	})

	t.Run("engine failure is fatal", func(t *testing.T) {
		pool := sfu.NewWorkerPool(failingEngine{}, engine.WorkerSettings{}, engine.RouterOptions{})
		require.Error(t, pool.Initialize(context.Background(), 2))
		require.Equal(t, 0, pool.Size())
	})
}

func TestWorkerPoolRoundRobin(t *testing.T) {
	pool := sfu.NewWorkerPool(pionmedia.New(), engine.WorkerSettings{}, engine.RouterOptions{})
	require.NoError(t, pool.Initialize(context.Background(), 3))

	first := []engine.Router{pool.NextRouter(), pool.NextRouter(), pool.NextRouter()}
	require.NotNil(t, first[0])
	require.NotSame(t, first[0], first[1])
	require.NotSame(t, first[1], first[2])
	require.NotSame(t, first[0], first[2])

	// Fourth room wraps around to the first router.
	require.Same(t, first[0], pool.NextRouter())

	// 9 assignments over 3 workers land 3 on each.
	counts := map[string]int{first[0].ID(): 1, first[1].ID(): 1, first[2].ID(): 1}
	counts[first[0].ID()]++ // the wrap-around assignment above
	for i := 0; i < 5; i++ {
		counts[pool.NextRouter().ID()]++
	}
	for id, n := range counts {
		require.Equal(t, 3, n, "router %s", id)
	}
}

func TestWorkerPoolUninitialized(t *testing.T) {
	pool := sfu.NewWorkerPool(pionmedia.New(), engine.WorkerSettings{}, engine.RouterOptions{})
	require.Nil(t, pool.NextRouter())
}
