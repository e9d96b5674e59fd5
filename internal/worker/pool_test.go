package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePreservesOrder(t *testing.T) {
	pool := NewPool[int, int]("square", 4, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	inputs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	tasks := pool.Execute(context.Background(), inputs)

	require.Len(t, tasks, len(inputs))
	for i, task := range tasks {
		assert.Equal(t, inputs[i], task.Input)
		assert.Equal(t, inputs[i]*inputs[i], task.Result)
		assert.NoError(t, task.Err)
	}
	assert.NoError(t, FirstError(tasks))
}

func TestExecuteEmpty(t *testing.T) {
	pool := NewPool[int, int]("noop", 2, func(_ context.Context, n int) (int, error) { return n, nil })
	assert.Empty(t, pool.Execute(context.Background(), nil))
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	var running, peak int32
	release := make(chan struct{})

	pool := NewPool[int, int]("bounded", 2, func(_ context.Context, n int) (int, error) {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		return n, nil
	})

	done := make(chan []Task[int, int])
	go func() { done <- pool.Execute(context.Background(), []int{1, 2, 3, 4, 5}) }()
	close(release)
	tasks := <-done

	assert.Len(t, tasks, 5)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestFirstErrorLowestIndex(t *testing.T) {
	errOdd := errors.New("odd")
	pool := NewPool[int, int]("odd", 3, func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, errOdd
		}
		return n, nil
	})

	tasks := pool.Execute(context.Background(), []int{2, 3, 4, 5})
	assert.NoError(t, tasks[0].Err)
	assert.ErrorIs(t, tasks[1].Err, errOdd)
	assert.ErrorIs(t, FirstError(tasks), errOdd)
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	pool := NewPool[int, int]("cancelled", 1, func(_ context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	})

	tasks := pool.Execute(ctx, []int{1, 2, 3})
	require.Len(t, tasks, 3)
	assert.ErrorIs(t, FirstError(tasks), context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
