package docerr

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathErrorMatchesKindAndCause(t *testing.T) {
	err := NewPathError("list", "/notes", ErrUnavailable, fs.ErrPermission)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "/notes")
}

func TestPathErrorWithoutCause(t *testing.T) {
	err := NewPathError("read", "/a.md", ErrNotAFile, nil)

	assert.ErrorIs(t, err, ErrNotAFile)
	assert.Equal(t, "read /a.md: not a file", err.Error())
}

func TestValidationError(t *testing.T) {
	err := Validation("displayMode must be one of themed, reading", "favorites[0].path is required")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "favorites[0].path is required")

	var verr *ValidationError
	assert.True(t, errors.As(error(err), &verr))
	assert.Len(t, verr.Problems, 2)
}

func TestIsClientFault(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid path", NewPathError("resolve", "../x", ErrInvalidPath, nil), true},
		{"not found", NewPathError("list", "/x", ErrNotFound, nil), true},
		{"validation", Validation("bad"), true},
		{"unsupported", ErrUnsupportedType, true},
		{"unavailable", NewPathError("list", "/", ErrUnavailable, fs.ErrPermission), false},
		{"not configured", ErrNotConfigured, false},
		{"io", ErrIO, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsClientFault(tt.err))
		})
	}
}
