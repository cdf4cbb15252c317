// Package sandbox confines untrusted root-relative paths to the document root.
//
// Validation is purely lexical and always runs before any filesystem call, so
// an existence check never leaks information about paths outside the root.
package sandbox

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/razvandimescu/docreader/internal/docerr"
)

// MaxPathLength bounds the raw input accepted by Validate.
const MaxPathLength = 4096

// Sandbox resolves paths against one canonical root directory.
type Sandbox struct {
	root string
}

// CanonicaliseRoot makes root absolute, resolves its symlinks and checks that
// it is a readable directory.
func CanonicaliseRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", docerr.ErrNotConfigured
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", docerr.NewPathError("canonicalise", root, docerr.ErrUnavailable, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", docerr.NewPathError("canonicalise", abs, docerr.ErrUnavailable, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", docerr.NewPathError("canonicalise", resolved, docerr.ErrUnavailable, err)
	}
	if !info.IsDir() {
		return "", docerr.NewPathError("canonicalise", resolved, docerr.ErrUnavailable, docerr.ErrNotADirectory)
	}
	return resolved, nil
}

// New canonicalises root and returns a Sandbox bound to it.
func New(root string) (*Sandbox, error) {
	canonical, err := CanonicaliseRoot(root)
	if err != nil {
		return nil, err
	}
	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical root directory.
func (s *Sandbox) Root() string { return s.root }

// normalize converts separators and rejects malformed input. The returned
// path always has a single leading slash and no redundant separators.
func normalize(raw string) (string, error) {
	if raw == "" {
		return "", docerr.NewPathError("validate", raw, docerr.ErrInvalidPath, errors.New("empty path"))
	}
	if len(raw) > MaxPathLength {
		return "", docerr.NewPathError("validate", raw[:64]+"...", docerr.ErrInvalidPath, errors.New("path too long"))
	}
	if strings.IndexByte(raw, 0) >= 0 {
		return "", docerr.NewPathError("validate", strings.ReplaceAll(raw, "\x00", `\0`), docerr.ErrInvalidPath, errors.New("null byte"))
	}

	p := strings.ReplaceAll(raw, `\`, "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", docerr.NewPathError("validate", raw, docerr.ErrInvalidPath, errors.New("parent segment"))
		}
	}
	return path.Clean("/" + p), nil
}

// NormalizePath returns the canonical node path for raw without binding it
// to a root. It applies the same rules as Clean.
func NormalizePath(raw string) (string, error) {
	return normalize(raw)
}

// Hidden reports whether any segment of nodePath starts with a dot.
func Hidden(nodePath string) bool {
	for _, seg := range strings.Split(nodePath, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// Validate reports docerr.ErrInvalidPath for input that must never reach the
// filesystem.
func (s *Sandbox) Validate(raw string) error {
	_, err := s.Resolve(raw)
	return err
}

// Clean returns the canonical node path for raw ("/" for the root).
func (s *Sandbox) Clean(raw string) (string, error) {
	p, err := normalize(raw)
	if err != nil {
		return "", err
	}
	if _, err := s.join(p, raw); err != nil {
		return "", err
	}
	return p, nil
}

// Resolve validates raw and joins it onto the root. It makes no filesystem
// call. A leading slash refers to the root.
func (s *Sandbox) Resolve(raw string) (string, error) {
	p, err := normalize(raw)
	if err != nil {
		return "", err
	}
	return s.join(p, raw)
}

func (s *Sandbox) join(nodePath, raw string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(nodePath))
	if !s.Contains(abs) {
		return "", docerr.NewPathError("resolve", raw, docerr.ErrInvalidPath, errors.New("outside root"))
	}
	return abs, nil
}

// ResolveExisting resolves raw, follows symlinks and re-checks containment.
// It returns the real path and its FileInfo.
func (s *Sandbox) ResolveExisting(raw string) (string, fs.FileInfo, error) {
	abs, err := s.Resolve(raw)
	if err != nil {
		return "", nil, err
	}
	nodePath := s.NodePath(abs)

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", nil, statError("resolve", nodePath, err)
	}
	if !s.Contains(resolved) {
		return "", nil, docerr.NewPathError("resolve", nodePath, docerr.ErrInvalidPath, errors.New("symlink escapes root"))
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, statError("stat", nodePath, err)
	}
	return resolved, info, nil
}

// Contains reports whether abs is the root or lies below it.
func (s *Sandbox) Contains(abs string) bool {
	abs = filepath.Clean(abs)
	return abs == s.root || strings.HasPrefix(abs, s.root+string(filepath.Separator))
}

// NodePath converts an absolute in-root path to a "/"-prefixed posix path.
// Paths outside the root map to "".
func (s *Sandbox) NodePath(abs string) string {
	if !s.Contains(abs) {
		return ""
	}
	rel, err := filepath.Rel(s.root, filepath.Clean(abs))
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// CheckRoot probes the root directory for readability.
func (s *Sandbox) CheckRoot() error {
	f, err := os.Open(s.root)
	if err != nil {
		return docerr.NewPathError("open", "/", docerr.ErrUnavailable, err)
	}
	return f.Close()
}

func statError(op, nodePath string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return docerr.NewPathError(op, nodePath, docerr.ErrNotFound, nil)
	default:
		return docerr.NewPathError(op, nodePath, docerr.ErrIO, err)
	}
}
