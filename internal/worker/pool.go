package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task pairs one input with the outcome of processing it.
type Task[T any, R any] struct {
	Input  T
	Result R
	Err    error
}

// ProcessFunc is the function signature for processing a single task.
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool runs a ProcessFunc over a slice of inputs with bounded concurrency.
type Pool[T any, R any] struct {
	name    string
	workers int
	process ProcessFunc[T, R]
}

// NewPool creates a new worker pool. name only labels log lines.
func NewPool[T any, R any](name string, workers int, fn ProcessFunc[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{
		name:    name,
		workers: workers,
		process: fn,
	}
}

// Execute processes every input and returns the tasks in input order.
// Inputs not reached before ctx is cancelled carry ctx.Err().
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) []Task[T, R] {
	results := make([]Task[T, R], len(inputs))
	for i := range inputs {
		results[i] = Task[T, R]{Input: inputs[i], Err: context.Canceled}
	}
	if len(inputs) == 0 {
		return results
	}

	workers := min(p.workers, len(inputs))
	inputCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range inputCh {
				result, err := p.process(ctx, inputs[idx])
				results[idx].Result = result
				results[idx].Err = err
				if err != nil {
					log.Debug().Err(err).Str("pool", p.name).Int("worker", workerID).Int("index", idx).Msg("Task failed")
				}
			}
		}(w)
	}

send:
	for i := range inputs {
		if ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case inputCh <- i:
				continue
			}
		}
		for j := i; j < len(inputs); j++ {
			results[j].Err = ctx.Err()
		}
		break send
	}
	close(inputCh)

	wg.Wait()
	return results
}

// FirstError returns the error of the lowest-indexed failed task.
func FirstError[T any, R any](tasks []Task[T, R]) error {
	for _, t := range tasks {
		if t.Err != nil {
			return t.Err
		}
	}
	return nil
}
