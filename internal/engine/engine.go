package engine

import (
	"context"
	"fmt"
	"time"

	"item-highlighter/internal/apperr"
	"item-highlighter/internal/backup"
	"item-highlighter/internal/config"
	"item-highlighter/internal/keylist"
	"item-highlighter/internal/rewrite"
	"item-highlighter/internal/textutil"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Op names a caller-facing operation.
type Op string

const (
	// OpHighlight wraps the values of listed keys in EM tags.
	OpHighlight Op = "highlight"
	// OpBackup copies the target into the backup directory.
	OpBackup Op = "backup"
	// OpRestore copies the backup back over the target.
	OpRestore Op = "restore"
)

// maxReasonLen bounds Result.Reason so it fits a status line.
const maxReasonLen = 240

// Result is what the caller gets back from every operation. Failures never
// escape as panics or bare errors; they come back with OK false and a
// human-readable Reason.
type Result struct {
	Op      Op
	OK      bool
	Reason  string
	Err     error
	Stats   rewrite.Stats
	Path    string
	Elapsed time.Duration
}

// Engine runs Highlight, Backup and Restore against one target file.
type Engine struct {
	cfg      *config.Config
	fs       afero.Fs
	rewriter *rewrite.Rewriter
	backups  *backup.Manager
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithRewriter replaces the rewriter built from the config.
func WithRewriter(r *rewrite.Rewriter) Option {
	return func(e *Engine) { e.rewriter = r }
}

// WithBackups replaces the backup manager built from the filesystem.
func WithBackups(m *backup.Manager) Option {
	return func(e *Engine) { e.backups = m }
}

// New creates an Engine for cfg.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(e)
	}
	if e.rewriter == nil {
		e.rewriter = rewrite.New(e.fs, rewrite.WithSkipTagged(cfg.SkipTagged))
	}
	if e.backups == nil {
		e.backups = backup.NewManager(e.fs)
	}
	return e
}

// Target is the file this engine mutates.
func (e *Engine) Target() string { return e.cfg.TargetPath() }

// Fs is the filesystem the engine reads and writes.
func (e *Engine) Fs() afero.Fs { return e.fs }

// Highlight wraps the values of every key of the enabled lists.
func (e *Engine) Highlight(ctx context.Context, lists []keylist.File) Result {
	return e.guard(ctx, OpHighlight, func(ctx context.Context, res *Result) error {
		if len(keylist.Enabled(lists)) == 0 {
			log.Warn().Msg("No key lists enabled")
		}

		keys, err := keylist.LoadKeySet(ctx, e.fs, lists, e.cfg.Workers)
		if err != nil {
			return err
		}

		res.Path = e.Target()
		res.Stats, err = e.rewriter.Rewrite(ctx, res.Path, keys)
		return err
	})
}

// Backup copies the target into the backup directory.
func (e *Engine) Backup(ctx context.Context) Result {
	return e.guard(ctx, OpBackup, func(_ context.Context, res *Result) error {
		dst, err := e.backups.Backup(e.Target(), e.cfg.BackupPath())
		res.Path = dst
		return err
	})
}

// Restore copies the backup back over the target.
func (e *Engine) Restore(ctx context.Context) Result {
	return e.guard(ctx, OpRestore, func(_ context.Context, res *Result) error {
		src, err := e.backups.Restore(e.Target(), e.cfg.BackupPath())
		res.Path = src
		return err
	})
}

// HasBackup reports whether a backup copy exists.
func (e *Engine) HasBackup() bool {
	return e.backups.Exists(e.Target(), e.cfg.BackupPath())
}

// Run dispatches op. lists is only used by OpHighlight.
func (e *Engine) Run(ctx context.Context, op Op, lists []keylist.File) Result {
	switch op {
	case OpHighlight:
		return e.Highlight(ctx, lists)
	case OpBackup:
		return e.Backup(ctx)
	case OpRestore:
		return e.Restore(ctx)
	default:
		err := apperr.Config("run", fmt.Errorf("unknown operation %q", op))
		return Result{Op: op, Reason: err.Error(), Err: err}
	}
}

// guard serialises fn with every other operation on the same target and
// turns errors and panics into a failed Result.
func (e *Engine) guard(ctx context.Context, op Op, fn func(context.Context, *Result) error) (res Result) {
	start := time.Now()
	res.Op = op

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%s panicked: %v", op, r)
		}
		res.Elapsed = time.Since(start)
		res.OK = res.Err == nil
		if res.OK {
			res.Reason = ""
			log.Info().
				Str("op", string(op)).
				Str("path", res.Path).
				Int("rewritten", res.Stats.Rewritten).
				Dur("elapsed", res.Elapsed).
				Msg("Operation succeeded")
			return
		}
		res.Reason = textutil.Truncate(res.Err.Error(), maxReasonLen)
		log.Error().
			Err(res.Err).
			Str("op", string(op)).
			Str("kind", apperr.KindOf(res.Err).String()).
			Msg("Operation failed")
	}()

	unlock, err := lockTarget(ctx, e.Target())
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	res.Err = fn(ctx, &res)
	return res
}
