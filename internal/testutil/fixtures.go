// Package testutil holds filesystem fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ScenarioFiles is the reference layout used across packages:
// a notes directory with a nested archive and an image at the top level.
var ScenarioFiles = map[string]string{
	"notes/readme.md":      "# Readme\n",
	"notes/archive/old.md": "# Old\n",
	"image.png":            "\x89PNG\r\n\x1a\n",
}

// Root creates a temporary document root populated with files.
// Keys are slash-separated paths; a trailing slash creates an empty directory.
func Root(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	// TempDir may itself sit behind a symlink (macOS /var).
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	WriteFiles(t, resolved, files)
	return resolved
}

// WriteFiles adds files below an existing directory.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatalf("failed to create dir %s: %v", p, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create parent of %s: %v", p, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create test file %s: %v", p, err)
		}
	}
}

// Symlink creates a symlink at root/name pointing to target.
func Symlink(t *testing.T, target, root, name string) {
	t.Helper()
	link := filepath.Join(root, filepath.FromSlash(name))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
}

// Unreadable removes all permissions from dir for the duration of the test.
// Tests running as root cannot observe permission errors and are skipped.
func Unreadable(t *testing.T, dir string) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
	if err := os.Chmod(dir, 0o000); err != nil {
		t.Fatalf("failed to chmod %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
}
