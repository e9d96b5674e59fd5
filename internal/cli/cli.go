package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"item-highlighter/internal/apperr"
	"item-highlighter/internal/config"
	"item-highlighter/internal/engine"
	"item-highlighter/internal/keylist"
	"item-highlighter/internal/profile"
	"item-highlighter/internal/rewrite"
	"item-highlighter/internal/watch"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	fs     afero.Fs
	cfg    *config.Config
	engine *engine.Engine
}

// NewRootCmd builds the command tree operating on fs.
func NewRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}
	d := config.Defaults()

	rootCmd := &cobra.Command{
		Use:          "item-highlighter",
		Short:        "Highlight selected item names in the game's global.ini",
		Long:         "Wraps the values of keys listed in highlight lists in <EMn> tags so the game client renders them highlighted.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("root", d.Root, "Game installation directory all other paths are relative to")
	pf.String("localization-dir", d.LocalizationDir, "Directory holding the localization file")
	pf.String("target", d.TargetFile, "Localization file name")
	pf.String("highlight-dir", d.HighlightDir, "Directory scanned for key lists")
	pf.String("backup-dir", d.BackupDir, "Directory holding the backup copy")
	pf.Int("workers", d.Workers, "Key lists read in parallel")
	pf.Bool("skip-tagged", d.SkipTagged, "Leave values that are already tagged alone")
	pf.Bool("debug", d.Debug, "Enable debug logging")

	rootCmd.AddCommand(highlightCmd(a))
	rootCmd.AddCommand(backupCmd(a))
	rootCmd.AddCommand(restoreCmd(a))
	rootCmd.AddCommand(listsCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(watchCmd(a))

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	a.cfg = cfg
	a.engine = engine.New(cfg, engine.WithFs(a.fs))
	log.Debug().Str("target", a.engine.Target()).Msg("Configuration loaded")
	return nil
}

// loadLists discovers key lists and overlays the saved profile.
func (a *app) loadLists() ([]keylist.File, *profile.Profile, error) {
	files, err := keylist.Discover(a.fs, a.cfg.HighlightPath(), a.cfg.DefaultList, a.cfg.DefaultTag)
	if err != nil {
		return nil, nil, err
	}
	prof, err := profile.Load(a.fs, a.cfg.ProfilePath())
	if err != nil {
		return nil, nil, err
	}
	log.Info().Int("count", len(files)).Msg("Found key lists")
	return prof.Apply(files), prof, nil
}

func highlightCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "highlight [list ...]",
		Short: "Wrap the values of listed keys in EM tags",
		Long: `Reads every enabled key list and wraps the matching values of the
localization file in <EMn> tags. Naming lists on the command line enables
exactly those lists for this run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tagArgs, _ := cmd.Flags().GetStringArray("tag")
			return runHighlight(cmd, a, args, tagArgs)
		},
	}
	cmd.Flags().StringArray("tag", nil, "Override a list's tag for this run, as name=N (repeatable)")
	return cmd
}

func runHighlight(cmd *cobra.Command, a *app, names, tagArgs []string) error {
	ctx, cancel := setupContext()
	defer cancel()

	files, _, err := a.loadLists()
	if err != nil {
		return err
	}

	files, err = selectLists(files, names)
	if err != nil {
		return err
	}

	tags, err := parseTags(tagArgs)
	if err != nil {
		return err
	}
	for name, tag := range tags {
		idx, ok := keylist.Find(files, name)
		if !ok {
			return apperr.Config("apply tag", fmt.Errorf("unknown key list %q", name))
		}
		files[idx].Tag = tag
	}

	return report(cmd, a.engine.Highlight(ctx, files))
}

func backupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the localization file into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()
			return report(cmd, a.engine.Backup(ctx))
		},
	}
}

func restoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Copy the backup back over the localization file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()
			return report(cmd, a.engine.Restore(ctx))
		},
	}
}

func listsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show discovered key lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, prof, err := a.loadLists()
			if err != nil {
				return err
			}
			renderLists(cmd.OutOrStdout(), files, a.engine.HasBackup())
			renderStale(cmd.OutOrStdout(), staleEntries(files, prof))
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage saved key list selections",
	}

	set := &cobra.Command{
		Use:   "set <list>",
		Short: "Enable, disable or retag a key list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enable, _ := cmd.Flags().GetBool("enable")
			disable, _ := cmd.Flags().GetBool("disable")

			var enabled *bool
			switch {
			case enable && disable:
				return apperr.Config("list set", errors.New("--enable and --disable are exclusive"))
			case enable:
				enabled = &enable
			case disable:
				off := false
				enabled = &off
			}

			var tag *int
			if cmd.Flags().Changed("tag") {
				n, _ := cmd.Flags().GetInt("tag")
				if n < 0 {
					return apperr.Config("list set", fmt.Errorf("tag %d is negative", n))
				}
				tag = &n
			}

			return runListSet(cmd, a, args[0], enabled, tag)
		},
	}
	set.Flags().Bool("enable", false, "Enable the list")
	set.Flags().Bool("disable", false, "Disable the list")
	set.Flags().Int("tag", 0, "Tag number applied to the list's keys")

	cmd.AddCommand(set)
	return cmd
}

func runListSet(cmd *cobra.Command, a *app, name string, enabled *bool, tag *int) error {
	files, prof, err := a.loadLists()
	if err != nil {
		return err
	}

	name = listName(name)
	idx, ok := keylist.Find(files, name)
	if !ok {
		return apperr.Config("list set", fmt.Errorf("unknown key list %q", name))
	}

	entry := prof.Set(files[idx], enabled, tag)
	if err := prof.Save(a.fs, a.cfg.ProfilePath()); err != nil {
		return err
	}

	files[idx].Enabled = entry.Enabled
	files[idx].Tag = entry.Tag
	renderLists(cmd.OutOrStdout(), files, a.engine.HasBackup())
	return nil
}

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-apply highlighting whenever the localization file is replaced",
		Long: `Highlights once, then watches the localization directory and highlights
again after the game launcher rewrites the file. Values that are already
tagged are always skipped in this mode.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			e := engine.New(a.cfg,
				engine.WithFs(a.fs),
				engine.WithRewriter(rewrite.New(a.fs, rewrite.WithSkipTagged(true))),
			)

			w := watch.New(e, func() ([]keylist.File, error) {
				files, _, err := a.loadLists()
				return files, err
			}, a.cfg.WatchDebounce)
			w.OnResult = func(res engine.Result) { renderResult(cmd.OutOrStdout(), res) }
			return w.Run(ctx)
		},
	}
}

// staleEntries returns saved profile entries whose list file is gone.
func staleEntries(files []keylist.File, prof *profile.Profile) []string {
	var stale []string
	for _, name := range prof.Names() {
		if _, ok := keylist.Find(files, name); !ok {
			stale = append(stale, name)
		}
	}
	return stale
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// report prints the result and turns a failure into the command's error.
func report(cmd *cobra.Command, res engine.Result) error {
	renderResult(cmd.OutOrStdout(), res)
	if !res.OK {
		return res.Err
	}
	return nil
}

// selectLists enables exactly the named lists when any are given.
func selectLists(files []keylist.File, names []string) ([]keylist.File, error) {
	if len(names) == 0 {
		return files, nil
	}

	out := make([]keylist.File, len(files))
	copy(out, files)
	for i := range out {
		out[i].Enabled = false
	}
	for _, n := range names {
		idx, ok := keylist.Find(out, listName(n))
		if !ok {
			return nil, apperr.Config("select lists", fmt.Errorf("unknown key list %q", n))
		}
		out[idx].Enabled = true
	}
	return out, nil
}

// parseTags parses repeated name=N arguments.
func parseTags(args []string) (map[string]int, error) {
	tags := make(map[string]int, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, apperr.Config("parse tag", fmt.Errorf("%q is not name=N", arg))
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, apperr.Config("parse tag", fmt.Errorf("%q: tag must be a non-negative integer", arg))
		}
		tags[listName(name)] = n
	}
	return tags, nil
}

// listName lets users omit the .txt extension.
func listName(name string) string {
	if filepath.Ext(name) == "" {
		return name + keylist.Extension
	}
	return name
}
