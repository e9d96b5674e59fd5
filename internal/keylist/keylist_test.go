package keylist

import (
	"context"
	"path/filepath"
	"testing"

	"item-highlighter/internal/apperr"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestDiscoverCreatesDefaultList(t *testing.T) {
	fs := afero.NewMemMapFs()

	files, err := Discover(fs, "highlights", "my_items.txt", 3)
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, filepath.Join("highlights", "my_items.txt"), f.Path)
	assert.True(t, f.Enabled)
	assert.Equal(t, 3, f.Tag)
	assert.Equal(t, 2, f.Lines)

	data, err := afero.ReadFile(fs, f.Path)
	require.NoError(t, err)
	assert.Equal(t, "items_commodities_carinite_pure\nitems_commodities_carinite_raw", string(data))
}

func TestDiscoverSortsAndSelectsDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeList(t, fs, "h/zeta.txt", "z\n")
	writeList(t, fs, "h/my_items.txt", "a\n\n   \nb\n")
	writeList(t, fs, "h/alpha.txt", "x\n")
	writeList(t, fs, "h/notes.md", "ignored\n")
	require.NoError(t, fs.MkdirAll("h/nested.txt", 0o755))

	files, err := Discover(fs, "h", "my_items.txt", 3)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "alpha.txt", files[0].Name())
	assert.Equal(t, "my_items.txt", files[1].Name())
	assert.Equal(t, "zeta.txt", files[2].Name())

	assert.False(t, files[0].Enabled)
	assert.True(t, files[1].Enabled)
	assert.False(t, files[2].Enabled)
	assert.Equal(t, 2, files[1].Lines)
}

func TestDiscoverSingleListIsEnabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeList(t, fs, "h/ships.txt", "a\n")

	files, err := Discover(fs, "h", "my_items.txt", 5)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Enabled)
	assert.Equal(t, 5, files[0].Tag)
}

func TestCountLinesMissingFile(t *testing.T) {
	assert.Zero(t, CountLines(afero.NewMemMapFs(), "nope.txt"))
}

func TestLoadKeySetNormalizesLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeList(t, fs, "a.txt", "\ufeffkey_one\n  key_two  \n\nkey_three=Some Value\n\t\n")

	keys, err := LoadKeySet(context.Background(), fs, []File{{Path: "a.txt", Enabled: true, Tag: 3}}, 2)
	require.NoError(t, err)
	assert.Equal(t, KeySet{"key_one": 3, "key_two": 3, "key_three": 3}, keys)
}

func TestLoadKeySetSkipsDisabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeList(t, fs, "a.txt", "a\n")

	keys, err := LoadKeySet(context.Background(), fs, []File{
		{Path: "a.txt", Enabled: true, Tag: 1},
		{Path: "missing.txt", Enabled: false, Tag: 2},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, KeySet{"a": 1}, keys)
}

func TestLoadKeySetLastListWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeList(t, fs, "first.txt", "x\nonly_first\n")
	writeList(t, fs, "second.txt", "x=ignored\nonly_second\n")

	keys, err := LoadKeySet(context.Background(), fs, []File{
		{Path: "first.txt", Enabled: true, Tag: 1},
		{Path: "second.txt", Enabled: true, Tag: 4},
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, keys["x"])
	assert.Equal(t, 1, keys["only_first"])
	assert.Equal(t, 4, keys["only_second"])
}

func TestLoadKeySetMissingFileIsIOError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeList(t, fs, "a.txt", "a\n")

	_, err := LoadKeySet(context.Background(), fs, []File{
		{Path: "a.txt", Enabled: true, Tag: 1},
		{Path: "gone.txt", Enabled: true, Tag: 2},
	}, 2)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindIO))
}

func TestEnabledAndFind(t *testing.T) {
	files := []File{
		{Path: "h/a.txt", Enabled: true},
		{Path: "h/b.txt"},
		{Path: "h/c.txt", Enabled: true},
	}
	enabled := Enabled(files)
	require.Len(t, enabled, 2)
	assert.Equal(t, "c.txt", enabled[1].Name())

	idx, ok := Find(files, "b.txt")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = Find(files, "d.txt")
	assert.False(t, ok)
}
