package rewrite

import (
	"bufio"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"item-highlighter/internal/apperr"
	"item-highlighter/internal/keylist"
	"item-highlighter/internal/textutil"

	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
	"github.com/spf13/afero"
)

// ctxCheckEvery is how many lines pass between context checks.
const ctxCheckEvery = 4096

// Stats counts what a single Rewrite did.
type Stats struct {
	// Lines is the number of lines read from the target.
	Lines int
	// Matched is the number of lines whose key was in the key set.
	Matched int
	// Rewritten is the number of lines whose value was wrapped.
	Rewritten int
	// Skipped is the number of matched values left alone because they were already tagged.
	Skipped int
}

// Rewriter wraps the values of selected keys of a key=value file in EM tags.
type Rewriter struct {
	fs         afero.Fs
	skipTagged bool
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithSkipTagged leaves values that already carry EM markers untouched
// instead of wrapping them a second time.
func WithSkipTagged(skip bool) Option {
	return func(r *Rewriter) { r.skipTagged = skip }
}

// New creates a Rewriter operating on fs.
func New(fs afero.Fs, opts ...Option) *Rewriter {
	r := &Rewriter{fs: fs}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite streams targetPath into a temporary file in the same directory,
// wrapping the value of every line whose key is in keys, then renames the
// temporary file over the target. On any error the target is left as it was.
func (r *Rewriter) Rewrite(ctx context.Context, targetPath string, keys keylist.KeySet) (Stats, error) {
	var stats Stats
	errb := oops.In("rewrite").With("target", targetPath)

	src, err := r.fs.Open(targetPath)
	if err != nil {
		return stats, apperr.Rewrite("open target", targetPath, errb.Wrapf(err, "open"))
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return stats, apperr.Rewrite("stat target", targetPath, errb.Wrapf(err, "stat"))
	}

	dir, base := filepath.Split(targetPath)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(r.fs, dir, "."+base+".*.tmp")
	if err != nil {
		return stats, apperr.Rewrite("create temp file", targetPath, errb.Wrapf(err, "create temp file in %s", dir))
	}
	tmpPath := tmp.Name()
	errb = errb.With("temp", tmpPath)

	discard := func() {
		tmp.Close()
		if rmErr := r.fs.Remove(tmpPath); rmErr != nil {
			log.Warn().Err(rmErr).Str("temp", tmpPath).Msg("Failed to remove temp file")
		}
	}

	stats, err = r.copyLines(ctx, src, tmp, keys)
	if err != nil {
		discard()
		return stats, apperr.Rewrite("rewrite lines", targetPath, errb.With("line", stats.Lines).Wrap(err))
	}

	if err := tmp.Sync(); err != nil {
		discard()
		return stats, apperr.Rewrite("sync temp file", targetPath, errb.Wrapf(err, "sync"))
	}
	if err := tmp.Close(); err != nil {
		discard()
		return stats, apperr.Rewrite("close temp file", targetPath, errb.Wrapf(err, "close"))
	}

	if stats.Rewritten == 0 {
		discard()
		log.Debug().Str("target", targetPath).Int("matched", stats.Matched).Msg("Nothing to rewrite, target left in place")
		return stats, nil
	}

	if err := r.fs.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		log.Warn().Err(err).Str("temp", tmpPath).Msg("Failed to copy target permissions")
	}

	// Windows refuses to replace a file that is still open.
	src.Close()

	if err := ctx.Err(); err != nil {
		discard()
		return stats, apperr.Rewrite("replace target", targetPath, errb.Wrapf(err, "cancelled before swap"))
	}

	// The temp file stays on disk after a failed rename so it can be inspected.
	if err := r.fs.Rename(tmpPath, targetPath); err != nil {
		return stats, apperr.Rewrite("replace target", targetPath, errb.Wrapf(err, "rename"))
	}

	log.Debug().
		Str("target", targetPath).
		Int("lines", stats.Lines).
		Int("rewritten", stats.Rewritten).
		Int("skipped", stats.Skipped).
		Msg("Target replaced")
	return stats, nil
}

func (r *Rewriter) copyLines(ctx context.Context, src io.Reader, dst io.Writer, keys keylist.KeySet) (Stats, error) {
	var stats Stats
	reader := bufio.NewReaderSize(src, 64*1024)
	writer := bufio.NewWriterSize(dst, 64*1024)

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, readErr
		}
		if line == "" {
			break
		}

		stats.Lines++
		if stats.Lines%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		out := r.rewriteLine(line, stats.Lines == 1, keys, &stats)
		if _, err := writer.WriteString(out); err != nil {
			return stats, err
		}

		if readErr != nil {
			break
		}
	}

	if err := writer.Flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// rewriteLine returns the line to emit for one input line, terminator included.
func (r *Rewriter) rewriteLine(line string, first bool, keys keylist.KeySet, stats *Stats) string {
	body, eol := textutil.SplitTerminator(line)

	bom := ""
	if first && strings.HasPrefix(body, textutil.BOM) {
		bom = textutil.BOM
		body = body[len(bom):]
	}

	key, value, ok := textutil.SplitKey(body)
	if !ok {
		return line
	}
	tag, hit := keys[key]
	if !hit {
		return line
	}
	stats.Matched++

	value = strings.TrimSpace(value)
	if r.skipTagged && textutil.IsTagged(value) {
		stats.Skipped++
		return line
	}

	stats.Rewritten++
	return bom + key + "=" + textutil.WrapTag(value, tag) + eol
}
