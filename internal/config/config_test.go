package config

import (
	"path/filepath"
	"testing"
	"time"

	"item-highlighter/internal/apperr"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, d.LocalizationDir, cfg.LocalizationDir)
	assert.Equal(t, "global.ini", cfg.TargetFile)
	assert.Equal(t, 3, cfg.DefaultTag)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.False(t, cfg.SkipTagged)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HMI_TARGET", "english.ini")
	t.Setenv("HMI_DEFAULT_TAG", "7")
	t.Setenv("HMI_SKIP_TAGGED", "true")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "english.ini", cfg.TargetFile)
	assert.Equal(t, 7, cfg.DefaultTag)
	assert.True(t, cfg.SkipTagged)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HMI_BACKUP_DIR", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backup-dir", "", "")
	flags.Int("workers", 0, "")
	require.NoError(t, flags.Parse([]string{"--backup-dir", "from-flag"}))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.BackupDir)
	// unset flag falls through to the default
	assert.Equal(t, 4, cfg.Workers)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.TargetFile = filepath.Join("sub", "global.ini")
	assert.True(t, apperr.IsKind(cfg.Validate(), apperr.KindConfig))

	cfg = Defaults()
	cfg.BackupDir = " "
	assert.True(t, apperr.IsKind(cfg.Validate(), apperr.KindConfig))

	cfg = Defaults()
	cfg.Workers = 0
	assert.True(t, apperr.IsKind(cfg.Validate(), apperr.KindConfig))

	cfg = Defaults()
	cfg.DefaultTag = -1
	assert.True(t, apperr.IsKind(cfg.Validate(), apperr.KindConfig))
}

func TestPaths(t *testing.T) {
	cfg := Defaults()
	cfg.Root = "game"

	assert.Equal(t, filepath.Join("game", "data", "Localization", "korean_(south_korea)", "global.ini"), cfg.TargetPath())
	assert.Equal(t, filepath.Join("game", "highlights"), cfg.HighlightPath())
	assert.Equal(t, filepath.Join("game", "_backup"), cfg.BackupPath())
	assert.Equal(t, filepath.Join("game", "highlights", "highlights.yaml"), cfg.ProfilePath())

	abs := filepath.Join(t.TempDir(), "p.yaml")
	cfg.ProfileFile = abs
	assert.Equal(t, abs, cfg.ProfilePath())
}

func TestPathsKeepAbsoluteDirs(t *testing.T) {
	base := t.TempDir()
	cfg := Defaults()
	cfg.Root = "game"
	cfg.LocalizationDir = filepath.Join(base, "loc")
	cfg.HighlightDir = filepath.Join(base, "lists")
	cfg.BackupDir = filepath.Join(base, "backups")

	assert.Equal(t, filepath.Join(base, "loc", "global.ini"), cfg.TargetPath())
	assert.Equal(t, filepath.Join(base, "lists"), cfg.HighlightPath())
	assert.Equal(t, filepath.Join(base, "backups"), cfg.BackupPath())
	assert.Equal(t, filepath.Join(base, "lists", "highlights.yaml"), cfg.ProfilePath())
}
