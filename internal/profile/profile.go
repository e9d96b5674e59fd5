package profile

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"

	"item-highlighter/internal/apperr"
	"item-highlighter/internal/keylist"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Entry is the saved selection for one key list.
type Entry struct {
	Enabled bool `yaml:"enabled"`
	Tag     int  `yaml:"tag"`
}

// Profile maps key-list file names to their saved selection.
type Profile struct {
	Lists map[string]Entry `yaml:"lists"`
}

// Load reads the profile at path. A missing file yields an empty profile.
func Load(afs afero.Fs, path string) (*Profile, error) {
	p := &Profile{Lists: map[string]Entry{}}

	data, err := afero.ReadFile(afs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, apperr.IO("read profile", path, err)
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, apperr.Config("parse profile", err)
	}
	if p.Lists == nil {
		p.Lists = map[string]Entry{}
	}
	return p, nil
}

// Apply overlays saved selections onto discovered lists. Lists without an
// entry keep their discovery defaults.
func (p *Profile) Apply(files []keylist.File) []keylist.File {
	out := make([]keylist.File, len(files))
	copy(out, files)
	for i, f := range out {
		if e, ok := p.Lists[f.Name()]; ok {
			out[i].Enabled = e.Enabled
			out[i].Tag = e.Tag
		}
	}
	return out
}

// Set updates the entry for f. Nil arguments keep the current value, taken
// from the saved entry or, when there is none, from f itself.
func (p *Profile) Set(f keylist.File, enabled *bool, tag *int) Entry {
	e, ok := p.Lists[f.Name()]
	if !ok {
		e = Entry{Enabled: f.Enabled, Tag: f.Tag}
	}
	if enabled != nil {
		e.Enabled = *enabled
	}
	if tag != nil {
		e.Tag = *tag
	}
	p.Lists[f.Name()] = e
	return e
}

// Names returns the saved list names in lexical order.
func (p *Profile) Names() []string {
	names := make([]string, 0, len(p.Lists))
	for n := range p.Lists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Save writes the profile to path, creating its directory.
func (p *Profile) Save(afs afero.Fs, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return apperr.Config("encode profile", err)
	}
	if err := afs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.IO("create profile dir", path, err)
	}
	if err := afero.WriteFile(afs, path, data, 0o644); err != nil {
		return apperr.IO("write profile", path, err)
	}
	log.Debug().Str("path", path).Int("lists", len(p.Lists)).Msg("Saved profile")
	return nil
}
