package prefs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/models"
	"github.com/razvandimescu/docreader/internal/sandbox"
)

// Patch is a partial ReaderPreferences. Nil fields are left untouched.
// Version is accepted but ignored.
type Patch struct {
	Version     *int                `json:"version"`
	Favorites   *[]models.Favorite  `json:"favorites"`
	Recents     *[]models.Recent    `json:"recents"`
	DisplayMode *models.DisplayMode `json:"displayMode"`
}

// DecodePatch decodes a loosely typed JSON object into a Patch. Unknown
// keys and mistyped values are reported as a *docerr.ValidationError.
func DecodePatch(raw map[string]any) (Patch, error) {
	var patch Patch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		TagName:     "json",
		Result:      &patch,
		DecodeHook:  mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return Patch{}, err
	}
	if err := dec.Decode(raw); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			return Patch{}, docerr.Validation(merr.Errors...)
		}
		return Patch{}, docerr.Validation(err.Error())
	}
	return patch, nil
}

// Validate checks p against the preferences schema and reports every
// problem at once.
func Validate(p models.ReaderPreferences) error {
	var errs []string

	if p.Version != models.PreferencesVersion {
		errs = append(errs, fmt.Sprintf("version must be %d", models.PreferencesVersion))
	}
	if !p.DisplayMode.Valid() {
		errs = append(errs, fmt.Sprintf("displayMode must be one of %s, %s", models.DisplayThemed, models.DisplayReading))
	}

	seen := make(map[string]bool, len(p.Favorites))
	for i, f := range p.Favorites {
		field := fmt.Sprintf("favorites[%d].path", i)
		errs = append(errs, checkStored(field, f.Path)...)
		if seen[f.Path] {
			errs = append(errs, field+" is a duplicate")
		}
		seen[f.Path] = true
	}

	if len(p.Recents) > models.MaxRecents {
		errs = append(errs, fmt.Sprintf("recents must hold at most %d entries", models.MaxRecents))
	}
	seen = make(map[string]bool, len(p.Recents))
	for i, r := range p.Recents {
		field := fmt.Sprintf("recents[%d].path", i)
		errs = append(errs, checkStored(field, r.Path)...)
		if seen[r.Path] {
			errs = append(errs, field+" is a duplicate")
		}
		seen[r.Path] = true
	}

	if len(errs) > 0 {
		return docerr.Validation(errs...)
	}
	return nil
}

// checkStored also requires the canonical form, so one document cannot be
// stored under two spellings.
func checkStored(field, p string) []string {
	if problems := checkPath(field, p); len(problems) > 0 {
		return problems
	}
	if c, err := sandbox.NormalizePath(p); err != nil || c != p {
		return []string{field + " must be a canonical path"}
	}
	return nil
}

// canonicalPath checks p and returns its canonical form.
func canonicalPath(field, p string) (string, []string) {
	if problems := checkPath(field, p); len(problems) > 0 {
		return p, problems
	}
	c, err := sandbox.NormalizePath(p)
	if err != nil {
		return p, []string{field + " must be a canonical path"}
	}
	return c, nil
}

func checkPath(field, p string) []string {
	switch {
	case p == "":
		return []string{field + " is required"}
	case !strings.HasPrefix(p, "/"):
		return []string{field + " must start with /"}
	case strings.ContainsRune(p, 0):
		return []string{field + " must not contain null bytes"}
	}
	for _, seg := range strings.Split(strings.ReplaceAll(p, `\`, "/"), "/") {
		if seg == ".." {
			return []string{field + " must not contain .. segments"}
		}
	}
	return nil
}
