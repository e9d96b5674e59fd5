package keylist

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"item-highlighter/internal/apperr"
	"item-highlighter/internal/textutil"
	"item-highlighter/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
	"github.com/spf13/afero"
)

// Extension is the suffix of files picked up from the highlight directory.
const Extension = ".txt"

// SampleKeys seed the default list created in an empty highlight directory.
var SampleKeys = []string{
	"items_commodities_carinite_pure",
	"items_commodities_carinite_raw",
}

// File is one user-supplied list of keys.
type File struct {
	// Path is the list's location on disk.
	Path string
	// Enabled selects the list for the next highlight run.
	Enabled bool
	// Tag is the EM marker number applied to every key of the list.
	Tag int
	// Lines is the number of non-blank lines found at discovery.
	Lines int
}

// Name returns the list's file name.
func (f File) Name() string { return filepath.Base(f.Path) }

// KeySet maps a key to the tag its value is wrapped in.
type KeySet map[string]int

// Discover lists the key-list files of dir, sorted by file name. An empty
// directory gets a default list holding SampleKeys.
func Discover(fs afero.Fs, dir, defaultName string, defaultTag int) ([]File, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.IO("create highlight dir", dir, err)
	}

	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, apperr.IO("read highlight dir", dir, err)
	}

	var files []File
	for _, info := range infos {
		if !info.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(info.Name()), Extension) {
			continue
		}
		path := filepath.Join(dir, info.Name())
		files = append(files, File{
			Path:  path,
			Tag:   defaultTag,
			Lines: CountLines(fs, path),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	if len(files) == 0 {
		path := filepath.Join(dir, defaultName)
		if err := afero.WriteFile(fs, path, []byte(strings.Join(SampleKeys, "\n")), 0o644); err != nil {
			return nil, apperr.IO("create default list", path, err)
		}
		log.Info().Str("path", path).Msg("Created default key list")
		files = []File{{Path: path, Enabled: true, Tag: defaultTag, Lines: len(SampleKeys)}}
	} else {
		only := len(files) == 1
		for i := range files {
			files[i].Enabled = only || files[i].Name() == defaultName
		}
	}

	log.Debug().Int("count", len(files)).Str("dir", dir).Msg("Discovered key lists")
	return files, nil
}

// CountLines returns the number of non-blank lines in path, or 0 when it
// cannot be read.
func CountLines(fs afero.Fs, path string) int {
	lines, err := readLines(fs, path)
	if err != nil {
		return 0
	}
	return len(lines)
}

// Enabled returns the enabled subset of files, keeping their order.
func Enabled(files []File) []File {
	var out []File
	for _, f := range files {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// Find returns the index of the list whose file name is name.
func Find(files []File, name string) (int, bool) {
	for i, f := range files {
		if f.Name() == name {
			return i, true
		}
	}
	return -1, false
}

// LoadKeySet builds the key set of every enabled list. Lists are read
// concurrently but merged in slice order, so a key present in several
// lists takes the tag of the last one.
func LoadKeySet(ctx context.Context, fs afero.Fs, files []File, workers int) (KeySet, error) {
	enabled := Enabled(files)

	pool := worker.NewPool[File, []string]("keylist", workers, func(_ context.Context, f File) ([]string, error) {
		lines, err := readLines(fs, f.Path)
		if err != nil {
			return nil, apperr.IO("read key list", f.Path, err)
		}
		return lines, nil
	})
	tasks := pool.Execute(ctx, enabled)
	if err := worker.FirstError(tasks); err != nil {
		return nil, err
	}

	keys := make(KeySet)
	for _, task := range tasks {
		for _, line := range task.Result {
			key, _, _ := textutil.SplitKey(line)
			if prev, ok := keys[key]; ok && prev != task.Input.Tag {
				log.Debug().Str("key", key).Int("from", prev).Int("to", task.Input.Tag).Str("list", task.Input.Name()).Msg("Key retagged by later list")
			}
			keys[key] = task.Input.Tag
		}
	}

	log.Info().Int("lists", len(enabled)).Int("keys", len(keys)).Msg("Loaded key set")
	return keys, nil
}

// readLines returns the trimmed non-blank lines of a key list.
func readLines(fs afero.Fs, path string) ([]string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, oops.In("keylist").With("path", path).Wrapf(err, "open key list")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, oops.In("keylist").With("path", path).Wrapf(err, "stat key list")
	}
	if info.IsDir() {
		return nil, oops.In("keylist").With("path", path).Wrapf(os.ErrInvalid, "key list is a directory")
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = textutil.StripBOM(line)
			first = false
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan key list: %w", err)
	}
	return lines, nil
}
