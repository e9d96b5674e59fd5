package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"item-highlighter/internal/engine"
	"item-highlighter/internal/keylist"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ListSource returns the key lists to apply on each run.
type ListSource func() ([]keylist.File, error)

// Watcher re-runs Highlight whenever the target file is replaced or
// written, e.g. by the game launcher installing a patch.
type Watcher struct {
	engine   *engine.Engine
	lists    ListSource
	debounce time.Duration

	// OnResult, when set, receives every run's result.
	OnResult func(engine.Result)
}

// New creates a Watcher. Run skips values that are already tagged only if
// the engine was configured to; callers should enable that, otherwise every
// change wraps the values again.
func New(e *engine.Engine, lists ListSource, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{engine: e, lists: lists, debounce: debounce}
}

// Run applies highlighting once, then again after each burst of changes to
// the target, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	target := filepath.Clean(w.engine.Target())

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(target)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info().Str("target", target).Dur("debounce", w.debounce).Msg("Watching target")

	w.apply(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, target) {
				continue
			}
			log.Debug().Str("event", ev.Op.String()).Str("path", ev.Name).Msg("Target changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-fire:
			fire = nil
			w.apply(ctx)
		}
	}
}

// relevant reports whether ev replaced or changed target. A Rename event
// carries the old name, so it never signals new content.
func relevant(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)
}

func (w *Watcher) apply(ctx context.Context) {
	lists, err := w.lists()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load key lists")
		return
	}

	res := w.engine.Highlight(ctx, lists)
	if w.OnResult != nil {
		w.OnResult(res)
	}
}
