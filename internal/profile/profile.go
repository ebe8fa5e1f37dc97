// Package profile stores named loom profiles: the knot densities of a loom
// and the yarn palette it is usually strung with.
package profile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/quantize"
)

// FileName is the profile store inside the configuration directory.
const FileName = "device_profiles.json"

// ErrNotFound is returned for an unknown profile name.
var ErrNotFound = errors.New("profile not found")

// Profile is one saved loom setup. The palette is stored as [r, g, b]
// triples.
type Profile struct {
	Shaneh  int      `json:"shaneh"`
	Tar     int      `json:"tar"`
	Palette [][3]int `json:"palette"`
}

// NewProfile builds a profile from a palette.
func NewProfile(shaneh, tar int, palette quantize.Palette) Profile {
	p := Profile{Shaneh: shaneh, Tar: tar, Palette: make([][3]int, len(palette))}
	for i, c := range palette {
		p.Palette[i] = [3]int{int(c.R), int(c.G), int(c.B)}
	}
	return p
}

// Colors converts the stored triples back into a palette.
func (p Profile) Colors() (quantize.Palette, error) {
	out := make(quantize.Palette, 0, len(p.Palette))
	for i, t := range p.Palette {
		c, err := imaging.ColorFromTriple(t[:])
		if err != nil {
			return nil, errors.Wrapf(err, "palette entry %d", i+1)
		}
		out = append(out, c)
	}
	return out, nil
}

// Store is a JSON file of profiles keyed by name. It is safe for concurrent
// use within one process.
type Store struct {
	path string

	mu       sync.Mutex
	profiles map[string]Profile
}

// Open loads the store at path. A missing file is an empty store; the file
// is created on the first Save.
func Open(path string) (*Store, error) {
	s := &Store{path: path, profiles: map[string]Profile{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.profiles); err != nil {
		return nil, errors.Wrapf(err, "unable to parse %s", path)
	}
	return s, nil
}

// Path is the backing file.
func (s *Store) Path() string {
	return s.path
}

// Names returns the profile names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the named profile or ErrNotFound.
func (s *Store) Get(name string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return p, nil
}

// Save adds or replaces a profile and writes the store.
func (s *Store) Save(name string, p Profile) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("profile name cannot be empty")
	}
	if p.Shaneh <= 0 || p.Tar <= 0 {
		return errors.Errorf("shaneh and tar must be positive, got %d and %d", p.Shaneh, p.Tar)
	}
	if _, err := p.Colors(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.profiles[name]
	s.profiles[name] = p
	if err := s.write(); err != nil {
		if existed {
			s.profiles[name] = prev
		} else {
			delete(s.profiles, name)
		}
		return err
	}
	return nil
}

// Delete removes a profile. It reports whether the profile existed.
func (s *Store) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.profiles[name]
	if !ok {
		return false, nil
	}
	delete(s.profiles, name)
	if err := s.write(); err != nil {
		s.profiles[name] = prev
		return false, err
	}
	return true, nil
}

// write replaces the file atomically. Callers hold mu.
func (s *Store) write() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.profiles); err != nil {
		return errors.Wrap(err, "unable to encode profiles")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".profiles-*.json")
	if err != nil {
		return errors.Wrap(err, "unable to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to write profiles")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to write profiles")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "unable to replace %s", s.path)
	}
	return nil
}
