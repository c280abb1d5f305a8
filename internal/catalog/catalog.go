// Package catalog maintains the character inventory: the fixed, ordered list
// of characters a ranking session compares. Characters are discovered from a
// directory of .png portraits (file stem = character name), with a configured
// static name list as fallback when the directory is empty or unreadable.
package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/onnwee/charrank/internal/validate"
)

// namePattern restricts character names to printable word-ish characters.
// Portrait file stems come straight off the filesystem, so this is the only
// gate between a directory listing and API output.
var namePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} ._'-]*$`)

var nameConstraints = validate.StringConstraints{
	MinLength:      1,
	MaxLength:      100,
	AllowedPattern: namePattern,
	TrimSpace:      true,
}

// Character is one rankable item: a display name and the portrait path it was
// discovered from. The portrait may be absent when the name came from the
// fallback list.
type Character struct {
	Name      string `json:"name"`
	ImagePath string `json:"-"`
}

// Service loads and serves the character list. The list order defines the
// item indices used by ranking sessions, so it is stable between reloads of
// the same directory contents (names are sorted). Safe for concurrent use.
type Service struct {
	dir      string
	fallback []string
	logger   *slog.Logger

	mu          sync.RWMutex
	characters  []Character
	nameToIndex map[string]int
}

// NewService creates a catalog over the given portraits directory, loading it
// immediately. fallback supplies character names used when the directory
// yields none.
func NewService(dir string, fallback []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		dir:      dir,
		fallback: fallback,
		logger:   logger,
	}
	s.Reload()
	return s
}

// Reload re-reads the portraits directory and returns the number of
// characters loaded. Existing indices are invalidated: callers holding item
// indices across a reload must re-resolve them by name.
func (s *Service) Reload() int {
	chars := s.load()

	index := make(map[string]int, len(chars))
	for i, c := range chars {
		index[c.Name] = i
	}

	s.mu.Lock()
	s.characters = chars
	s.nameToIndex = index
	s.mu.Unlock()

	s.logger.Info("catalog loaded", "count", len(chars), "dir", s.dir)
	return len(chars)
}

// load reads .png stems from the directory, sorted by name, falling back to
// the static list when the directory produces nothing.
func (s *Service) load() []Character {
	var names []string

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("characters directory unreadable, using fallback list", "dir", s.dir, "error", err)
	} else {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if !strings.EqualFold(filepath.Ext(name), ".png") {
				continue
			}
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			valid, verr := validate.String(stem, nameConstraints)
			if verr != nil {
				s.logger.Warn("skipping portrait with invalid name", "file", name, "error", verr)
				continue
			}
			names = append(names, valid)
		}
		sort.Strings(names)
	}

	if len(names) == 0 {
		s.logger.Warn("no portraits found, using fallback character list", "dir", s.dir)
		names = names[:0]
		for _, n := range s.fallback {
			valid, verr := validate.String(n, nameConstraints)
			if verr != nil {
				continue
			}
			names = append(names, valid)
		}
	}

	chars := make([]Character, 0, len(names))
	for _, n := range names {
		chars = append(chars, Character{
			Name:      n,
			ImagePath: filepath.Join(s.dir, n+".png"),
		})
	}
	return chars
}

// Characters returns a copy of the current character list in index order.
func (s *Service) Characters() []Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Character, len(s.characters))
	copy(out, s.characters)
	return out
}

// Names returns the character names in index order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.characters))
	for i, c := range s.characters {
		out[i] = c.Name
	}
	return out
}

// Count returns the number of characters.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.characters)
}

// ByIndex returns the character at the given index.
func (s *Service) ByIndex(i int) (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.characters) {
		return Character{}, false
	}
	return s.characters[i], true
}

// IndexByName returns the index of the named character.
func (s *Service) IndexByName(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.nameToIndex[name]
	return i, ok
}

// ValidateDirectory reports whether the portraits directory exists.
func (s *Service) ValidateDirectory() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// MissingFiles returns the portrait paths of characters whose image file does
// not exist. Fallback-listed characters commonly appear here.
func (s *Service) MissingFiles() []string {
	s.mu.RLock()
	chars := s.characters
	s.mu.RUnlock()

	var missing []string
	for _, c := range chars {
		if _, err := os.Stat(c.ImagePath); err != nil {
			missing = append(missing, c.ImagePath)
		}
	}
	if len(missing) > 0 {
		s.logger.Warn("portrait files missing", "count", len(missing))
	}
	return missing
}

// NewlyDiscovered returns names present in the loaded catalog but absent from
// the fallback list: characters added by dropping a portrait into the
// directory. Used to seed "new characters" notifications.
func (s *Service) NewlyDiscovered() []string {
	known := make(map[string]struct{}, len(s.fallback))
	for _, n := range s.fallback {
		known[n] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var fresh []string
	for _, c := range s.characters {
		if _, ok := known[c.Name]; !ok {
			fresh = append(fresh, c.Name)
		}
	}
	return fresh
}
