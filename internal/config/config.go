package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"item-highlighter/internal/apperr"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HMI"

// Config holds every path and option the engine needs. All relative paths
// resolve against Root.
type Config struct {
	Root            string
	LocalizationDir string
	TargetFile      string
	HighlightDir    string
	DefaultList     string
	BackupDir       string
	ProfileFile     string
	DefaultTag      int
	Workers         int
	SkipTagged      bool
	Debug           bool
	WatchDebounce   time.Duration
}

// Defaults returns the stock layout of the game install.
func Defaults() *Config {
	return &Config{
		Root:            ".",
		LocalizationDir: filepath.Join("data", "Localization", "korean_(south_korea)"),
		TargetFile:      "global.ini",
		HighlightDir:    "highlights",
		DefaultList:     "my_items.txt",
		BackupDir:       "_backup",
		ProfileFile:     "highlights.yaml",
		DefaultTag:      3,
		Workers:         4,
		WatchDebounce:   2 * time.Second,
	}
}

// flag name -> viper key
var flagKeys = map[string]string{
	"root":             "root",
	"localization-dir": "localization_dir",
	"target":           "target",
	"highlight-dir":    "highlight_dir",
	"backup-dir":       "backup_dir",
	"workers":          "workers",
	"skip-tagged":      "skip_tagged",
	"debug":            "debug",
}

// Load merges defaults, a .env file, HMI_* environment variables and any
// flags that were set on the command line, in increasing precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	v := viper.New()
	d := Defaults()
	v.SetDefault("root", d.Root)
	v.SetDefault("localization_dir", d.LocalizationDir)
	v.SetDefault("target", d.TargetFile)
	v.SetDefault("highlight_dir", d.HighlightDir)
	v.SetDefault("default_list", d.DefaultList)
	v.SetDefault("backup_dir", d.BackupDir)
	v.SetDefault("profile", d.ProfileFile)
	v.SetDefault("default_tag", d.DefaultTag)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("skip_tagged", d.SkipTagged)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("watch_debounce", d.WatchDebounce)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, apperr.Config("bind flag", fmt.Errorf("%s: %w", name, err))
			}
		}
	}

	cfg := &Config{
		Root:            v.GetString("root"),
		LocalizationDir: v.GetString("localization_dir"),
		TargetFile:      v.GetString("target"),
		HighlightDir:    v.GetString("highlight_dir"),
		DefaultList:     v.GetString("default_list"),
		BackupDir:       v.GetString("backup_dir"),
		ProfileFile:     v.GetString("profile"),
		DefaultTag:      v.GetInt("default_tag"),
		Workers:         v.GetInt("workers"),
		SkipTagged:      v.GetBool("skip_tagged"),
		Debug:           v.GetBool("debug"),
		WatchDebounce:   v.GetDuration("watch_debounce"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting as a KindConfig error.
func (c *Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"localization dir", c.LocalizationDir},
		{"target file", c.TargetFile},
		{"highlight dir", c.HighlightDir},
		{"backup dir", c.BackupDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperr.Config("validate config", fmt.Errorf("%s must not be empty", r.name))
		}
	}

	if filepath.Base(c.TargetFile) != c.TargetFile {
		return apperr.Config("validate config", fmt.Errorf("target file %q must be a bare file name", c.TargetFile))
	}
	if c.DefaultTag < 0 {
		return apperr.Config("validate config", fmt.Errorf("default tag %d is negative", c.DefaultTag))
	}
	if c.Workers < 1 {
		return apperr.Config("validate config", errors.New("workers must be at least 1"))
	}
	return nil
}

// resolve joins parts under Root unless they already form an absolute path.
func (c *Config) resolve(parts ...string) string {
	p := filepath.Join(parts...)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// TargetPath is the localization file the engine rewrites.
func (c *Config) TargetPath() string { return c.resolve(c.LocalizationDir, c.TargetFile) }

// HighlightPath is the directory scanned for key-list files.
func (c *Config) HighlightPath() string { return c.resolve(c.HighlightDir) }

// BackupPath is the directory holding the single backup copy.
func (c *Config) BackupPath() string { return c.resolve(c.BackupDir) }

// ProfilePath is the saved list selection. A relative ProfileFile lives in
// the highlight directory.
func (c *Config) ProfilePath() string {
	if filepath.IsAbs(c.ProfileFile) {
		return c.ProfileFile
	}
	return c.resolve(c.HighlightDir, c.ProfileFile)
}
