package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// targetLocks holds one single-slot channel per target path, shared by all
// engines of the process.
var targetLocks = struct {
	sync.Mutex
	m map[string]chan struct{}
}{m: map[string]chan struct{}{}}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// lockTarget blocks until no other operation holds path or ctx is done.
func lockTarget(ctx context.Context, path string) (func(), error) {
	key := lockKey(path)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", key, err)
	}

	targetLocks.Lock()
	ch, ok := targetLocks.m[key]
	if !ok {
		ch = make(chan struct{}, 1)
		targetLocks.m[key] = ch
	}
	targetLocks.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for %s: %w", key, ctx.Err())
	}
}
