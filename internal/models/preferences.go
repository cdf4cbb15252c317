package models

import "time"

// PreferencesVersion is the only schema version written to disk.
const PreferencesVersion = 1

// MaxRecents bounds the recently viewed list.
const MaxRecents = 10

// DisplayMode selects how documents are presented.
type DisplayMode string

const (
	DisplayThemed  DisplayMode = "themed"
	DisplayReading DisplayMode = "reading"
)

// Valid reports whether m is a known display mode.
func (m DisplayMode) Valid() bool {
	return m == DisplayThemed || m == DisplayReading
}

// Favorite is a bookmarked document. At most one per Path.
type Favorite struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}

// Recent is a recently viewed document. At most one per Path.
type Recent struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	ViewedAt time.Time `json:"viewedAt"`
}

// ReaderPreferences is the persisted per-installation reading state.
type ReaderPreferences struct {
	Version     int         `json:"version"`
	Favorites   []Favorite  `json:"favorites"`
	Recents     []Recent    `json:"recents"`
	DisplayMode DisplayMode `json:"displayMode"`
}

// DefaultPreferences returns the state used when nothing valid is on disk.
func DefaultPreferences() ReaderPreferences {
	return ReaderPreferences{
		Version:     PreferencesVersion,
		Favorites:   []Favorite{},
		Recents:     []Recent{},
		DisplayMode: DisplayThemed,
	}
}

// Clone returns a deep copy so callers can mutate freely.
func (p ReaderPreferences) Clone() ReaderPreferences {
	out := p
	out.Favorites = append(make([]Favorite, 0, len(p.Favorites)), p.Favorites...)
	out.Recents = append(make([]Recent, 0, len(p.Recents)), p.Recents...)
	return out
}
