package backup

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"item-highlighter/internal/apperr"

	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
	"github.com/spf13/afero"
)

// ErrSameFile is returned when the source and destination of a copy are the
// same file.
var ErrSameFile = errors.New("source and destination are the same file")

// Manager keeps a single copy of the target file in a backup directory.
// Copies are plain overwrites, not atomic swaps.
type Manager struct {
	fs afero.Fs
}

// NewManager creates a Manager operating on fs.
func NewManager(fs afero.Fs) *Manager {
	return &Manager{fs: fs}
}

// SlotPath is where the backup of targetPath lives inside backupDir.
func SlotPath(targetPath, backupDir string) string {
	return filepath.Join(backupDir, filepath.Base(targetPath))
}

// Backup copies targetPath into backupDir, replacing any earlier backup.
// It returns the path of the copy.
func (m *Manager) Backup(targetPath, backupDir string) (string, error) {
	if err := m.fs.MkdirAll(backupDir, 0o755); err != nil {
		return "", apperr.IO("create backup dir", backupDir, err)
	}

	dst := SlotPath(targetPath, backupDir)
	if err := m.copyFile(targetPath, dst); err != nil {
		return "", apperr.IO("backup", targetPath, err)
	}

	log.Info().Str("src", targetPath).Str("dst", dst).Msg("Backed up target")
	return dst, nil
}

// Restore copies the backup of targetPath back over it. It returns the path
// the copy was read from.
func (m *Manager) Restore(targetPath, backupDir string) (string, error) {
	src := SlotPath(targetPath, backupDir)
	if err := m.copyFile(src, targetPath); err != nil {
		return "", apperr.IO("restore", targetPath, err)
	}

	log.Info().Str("src", src).Str("dst", targetPath).Msg("Restored target")
	return src, nil
}

// Exists reports whether the backup slot for targetPath holds a file.
func (m *Manager) Exists(targetPath, backupDir string) bool {
	info, err := m.fs.Stat(SlotPath(targetPath, backupDir))
	return err == nil && info.Mode().IsRegular()
}

// copyFile copies content, permission bits and modification time.
func (m *Manager) copyFile(src, dst string) error {
	errb := oops.In("backup").With("src", src).With("dst", dst)

	in, err := m.fs.Open(src)
	if err != nil {
		return errb.Wrapf(err, "open source")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errb.Wrapf(err, "stat source")
	}
	if info.IsDir() {
		return errb.Wrapf(os.ErrInvalid, "source is a directory")
	}
	if m.sameFile(src, dst, info) {
		return errb.Wrap(ErrSameFile)
	}

	out, err := m.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errb.Wrapf(err, "open destination")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errb.Wrapf(err, "copy")
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return errb.Wrapf(err, "sync destination")
	}
	if err := out.Close(); err != nil {
		return errb.Wrapf(err, "close destination")
	}

	if err := m.fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return errb.Wrapf(err, "copy permissions")
	}
	if err := m.fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errb.Wrapf(err, "copy modification time")
	}
	return nil
}

// sameFile reports whether dst names src, by path or, on filesystems backed
// by the OS, by inode. Truncating dst would otherwise empty src.
func (m *Manager) sameFile(src, dst string, srcInfo os.FileInfo) bool {
	absSrc, errSrc := filepath.Abs(src)
	absDst, errDst := filepath.Abs(dst)
	if errSrc == nil && errDst == nil && absSrc == absDst {
		return true
	}
	dstInfo, err := m.fs.Stat(dst)
	if err != nil {
		return false
	}
	return os.SameFile(srcInfo, dstInfo)
}
