package engine

import (
	"context"

	"item-highlighter/internal/keylist"
)

// Handle tracks an operation started with Go.
type Handle struct {
	op   Op
	done chan struct{}
	res  Result
}

// Go starts op on its own goroutine. The operation still queues behind any
// other operation on the same target.
func (e *Engine) Go(ctx context.Context, op Op, lists []keylist.File) *Handle {
	h := &Handle{op: op, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res = e.Run(ctx, op, lists)
	}()
	return h
}

// Op is the operation the handle tracks.
func (h *Handle) Op() Op { return h.op }

// Done is closed when the operation has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the operation finishes or ctx is done. Giving up on the
// wait does not stop the operation.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
