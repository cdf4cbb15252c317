// Package prefs persists reader preferences as a single JSON file under the
// document root.
//
// Every mutation is read, merge, validate, atomic write. Mutations on one
// Store are serialized so concurrent callers never lose each other's
// changes. Writers in other processes are not coordinated.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/metrics"
	"github.com/razvandimescu/docreader/internal/models"
)

// DefaultFileName is hidden so it never shows up in listings.
const DefaultFileName = ".docreader-preferences.json"

// Store reads and writes one preferences file.
type Store struct {
	mu   sync.Mutex
	file string
	now  func() time.Time

	// rename is os.Rename outside tests.
	rename func(oldpath, newpath string) error
}

// NewStore returns a Store for root/name. An empty name selects DefaultFileName.
func NewStore(root, name string) *Store {
	if name == "" {
		name = DefaultFileName
	}
	return &Store{
		file:   filepath.Join(root, name),
		now:    time.Now,
		rename: os.Rename,
	}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.file }

// Get returns the stored preferences. A missing, empty or invalid file
// yields defaults.
func (s *Store) Get() models.ReaderPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// read must be called with s.mu held.
func (s *Store) read() models.ReaderPreferences {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.L().Warn("preferences unreadable, using defaults", zap.String("file", s.file), zap.Error(err))
		}
		return models.DefaultPreferences()
	}
	if len(data) == 0 {
		return models.DefaultPreferences()
	}

	var p models.ReaderPreferences
	if err := json.Unmarshal(data, &p); err != nil {
		logging.L().Warn("preferences corrupt, using defaults", zap.String("file", s.file), zap.Error(err))
		return models.DefaultPreferences()
	}
	if p.Version != models.PreferencesVersion {
		logging.L().Warn("preferences version unsupported, using defaults",
			zap.String("file", s.file), zap.Int("version", p.Version))
		return models.DefaultPreferences()
	}
	normalize(&p)
	if p.DisplayMode == "" {
		p.DisplayMode = models.DisplayThemed
	}
	if err := Validate(p); err != nil {
		logging.L().Warn("preferences invalid, using defaults", zap.String("file", s.file), zap.Error(err))
		return models.DefaultPreferences()
	}
	return p
}

func normalize(p *models.ReaderPreferences) {
	p.Version = models.PreferencesVersion
	if p.Favorites == nil {
		p.Favorites = []models.Favorite{}
	}
	if p.Recents == nil {
		p.Recents = []models.Recent{}
	}
	// Paths that fail the checks are kept as given for Validate to report.
	for i := range p.Favorites {
		if c, problems := canonicalPath("path", p.Favorites[i].Path); problems == nil {
			p.Favorites[i].Path = c
		}
	}
	for i := range p.Recents {
		if c, problems := canonicalPath("path", p.Recents[i].Path); problems == nil {
			p.Recents[i].Path = c
		}
	}
}

// mutation edits p in place and reports whether anything changed.
type mutation func(p *models.ReaderPreferences) (bool, error)

func (s *Store) mutate(op string, fn mutation) (models.ReaderPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.read()
	changed, err := fn(&p)
	if err != nil {
		metrics.RecordPreferenceWrite(op, false)
		return models.ReaderPreferences{}, err
	}
	if !changed {
		return p.Clone(), nil
	}

	normalize(&p)
	if err := Validate(p); err != nil {
		metrics.RecordPreferenceWrite(op, false)
		return models.ReaderPreferences{}, err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		metrics.RecordPreferenceWrite(op, false)
		return models.ReaderPreferences{}, fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.writeAtomic(data); err != nil {
		metrics.RecordPreferenceWrite(op, false)
		logging.L().Error("preferences write failed", zap.String("op", op), zap.Error(err))
		return models.ReaderPreferences{}, docerr.NewPathError(op, "/"+filepath.Base(s.file), docerr.ErrIO, err)
	}
	metrics.RecordPreferenceWrite(op, true)
	return p.Clone(), nil
}

// writeAtomic writes data beside the target and renames it into place, so
// the target always holds either the previous or the new complete state.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.file)
	tmp, err := os.CreateTemp(dir, ".docreader-prefs-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	needsCleanup := true

	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		if needsCleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	err = tmp.Close()
	tmp = nil
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := s.rename(tmpPath, s.file); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	needsCleanup = false
	return nil
}

// -- Mutations --

// Update merges the fields present in patch. Recents beyond the bound are
// dropped before merging; the version is always forced to 1.
func (s *Store) Update(patch Patch) (models.ReaderPreferences, error) {
	return s.mutate("update", func(p *models.ReaderPreferences) (bool, error) {
		now := s.now().UTC()
		if patch.Favorites != nil {
			favs := append([]models.Favorite{}, (*patch.Favorites)...)
			for i := range favs {
				if favs[i].Name == "" {
					favs[i].Name = path.Base(favs[i].Path)
				}
				if favs[i].AddedAt.IsZero() {
					favs[i].AddedAt = now
				}
			}
			p.Favorites = favs
		}
		if patch.Recents != nil {
			recents := *patch.Recents
			if len(recents) > models.MaxRecents {
				recents = recents[:models.MaxRecents]
			}
			recents = append([]models.Recent{}, recents...)
			for i := range recents {
				if recents[i].Name == "" {
					recents[i].Name = path.Base(recents[i].Path)
				}
				if recents[i].ViewedAt.IsZero() {
					recents[i].ViewedAt = now
				}
			}
			p.Recents = recents
		}
		if patch.DisplayMode != nil {
			p.DisplayMode = *patch.DisplayMode
		}
		return true, nil
	})
}

// AddFavorite bookmarks docPath. Adding an existing path is a no-op.
func (s *Store) AddFavorite(docPath, name string) (models.ReaderPreferences, error) {
	return s.mutate("add_favorite", func(p *models.ReaderPreferences) (bool, error) {
		docPath, err := checkEntry(docPath)
		if err != nil {
			return false, err
		}
		if indexFavorite(p.Favorites, docPath) >= 0 {
			return false, nil
		}
		p.Favorites = append(p.Favorites, models.Favorite{
			Path:    docPath,
			Name:    nameOr(name, docPath),
			AddedAt: s.now().UTC(),
		})
		return true, nil
	})
}

// RemoveFavorite drops docPath from favorites if present.
func (s *Store) RemoveFavorite(docPath string) (models.ReaderPreferences, error) {
	return s.mutate("remove_favorite", func(p *models.ReaderPreferences) (bool, error) {
		docPath, err := checkEntry(docPath)
		if err != nil {
			return false, err
		}
		i := indexFavorite(p.Favorites, docPath)
		if i < 0 {
			return false, nil
		}
		p.Favorites = append(p.Favorites[:i], p.Favorites[i+1:]...)
		return true, nil
	})
}

// ToggleFavorite adds docPath if absent, otherwise removes it. It reports
// whether docPath is a favorite afterwards.
func (s *Store) ToggleFavorite(docPath, name string) (bool, models.ReaderPreferences, error) {
	var favorited bool
	p, err := s.mutate("toggle_favorite", func(p *models.ReaderPreferences) (bool, error) {
		docPath, err := checkEntry(docPath)
		if err != nil {
			return false, err
		}
		if i := indexFavorite(p.Favorites, docPath); i >= 0 {
			p.Favorites = append(p.Favorites[:i], p.Favorites[i+1:]...)
			favorited = false
			return true, nil
		}
		p.Favorites = append(p.Favorites, models.Favorite{
			Path:    docPath,
			Name:    nameOr(name, docPath),
			AddedAt: s.now().UTC(),
		})
		favorited = true
		return true, nil
	})
	return favorited, p, err
}

// AddRecent moves docPath to the front of the recents list.
func (s *Store) AddRecent(docPath, name string) (models.ReaderPreferences, error) {
	return s.mutate("add_recent", func(p *models.ReaderPreferences) (bool, error) {
		docPath, err := checkEntry(docPath)
		if err != nil {
			return false, err
		}
		recents := make([]models.Recent, 0, models.MaxRecents)
		recents = append(recents, models.Recent{
			Path:     docPath,
			Name:     nameOr(name, docPath),
			ViewedAt: s.now().UTC(),
		})
		for _, r := range p.Recents {
			if r.Path == docPath {
				continue
			}
			if len(recents) == models.MaxRecents {
				break
			}
			recents = append(recents, r)
		}
		p.Recents = recents
		return true, nil
	})
}

// ClearRecents empties the recents list.
func (s *Store) ClearRecents() (models.ReaderPreferences, error) {
	return s.mutate("clear_recents", func(p *models.ReaderPreferences) (bool, error) {
		p.Recents = []models.Recent{}
		return true, nil
	})
}

// GetDisplayMode returns the stored display mode.
func (s *Store) GetDisplayMode() models.DisplayMode {
	return s.Get().DisplayMode
}

// SetDisplayMode stores mode.
func (s *Store) SetDisplayMode(mode models.DisplayMode) (models.ReaderPreferences, error) {
	return s.mutate("set_display_mode", func(p *models.ReaderPreferences) (bool, error) {
		if !mode.Valid() {
			return false, docerr.Validation(fmt.Sprintf("displayMode must be one of %s, %s", models.DisplayThemed, models.DisplayReading))
		}
		if p.DisplayMode == mode {
			return false, nil
		}
		p.DisplayMode = mode
		return true, nil
	})
}

func indexFavorite(favs []models.Favorite, docPath string) int {
	for i, f := range favs {
		if f.Path == docPath {
			return i
		}
	}
	return -1
}

func nameOr(name, docPath string) string {
	if name != "" {
		return name
	}
	return path.Base(docPath)
}

// checkEntry returns the canonical form of docPath, so "//a.md" and "/a.md"
// name the same entry.
func checkEntry(docPath string) (string, error) {
	c, problems := canonicalPath("path", docPath)
	if len(problems) > 0 {
		return "", docerr.Validation(problems...)
	}
	return c, nil
}
