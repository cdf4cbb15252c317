// Package tree lists one level of the document root as typed nodes.
package tree

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/models"
	"github.com/razvandimescu/docreader/internal/sandbox"
)

// Listing is the immediate content of one directory.
type Listing struct {
	Path     string            `json:"path"`
	Children []models.FileNode `json:"children"`
}

// Builder lists directories below a sandboxed root. It is safe for
// concurrent use.
type Builder struct {
	sb *sandbox.Sandbox
}

// NewBuilder returns a Builder reading below sb's root.
func NewBuilder(sb *sandbox.Sandbox) *Builder {
	return &Builder{sb: sb}
}

// Sandbox returns the sandbox the builder resolves against.
func (b *Builder) Sandbox() *sandbox.Sandbox { return b.sb }

// Visible reports whether an entry name is shown. Hidden entries start with a dot.
func Visible(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".")
}

// IsDocument reports whether name carries a document extension.
func IsDocument(name string) bool {
	_, kind := sandbox.Classify(name)
	return kind == sandbox.KindDocument
}

// List returns the visible children of the directory at raw.
func (b *Builder) List(ctx context.Context, raw string) (*Listing, error) {
	nodePath, err := b.sb.Clean(raw)
	if err != nil {
		return nil, err
	}
	// Hidden entries are never listed, so they cannot be opened either.
	if sandbox.Hidden(nodePath) {
		return nil, docerr.NewPathError("list", nodePath, docerr.ErrNotFound, nil)
	}
	if err := b.sb.CheckRoot(); err != nil {
		return nil, err
	}

	abs, info, err := b.sb.ResolveExisting(nodePath)
	if err != nil {
		return nil, err
	}
	if sandbox.Hidden(b.sb.NodePath(abs)) {
		return nil, docerr.NewPathError("list", nodePath, docerr.ErrNotFound, nil)
	}
	if !info.IsDir() {
		return nil, docerr.NewPathError("list", nodePath, docerr.ErrNotADirectory, nil)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, readDirError(nodePath, err)
	}

	children := make([]models.FileNode, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !Visible(entry.Name()) {
			continue
		}
		target, info, ok := b.Follow(abs, entry)
		if !ok {
			continue
		}
		childPath := path.Join(nodePath, entry.Name())
		if info.IsDir() {
			children = append(children, models.FileNode{
				Name:        entry.Name(),
				Path:        childPath,
				Type:        models.NodeDirectory,
				HasChildren: b.hasChildren(target),
			})
			continue
		}
		if node, ok := FileNode(childPath, info); ok {
			children = append(children, node)
		}
	}

	Sort(children)
	return &Listing{Path: nodePath, Children: children}, nil
}

// Follow returns the real path and FileInfo of a directory entry. Symlinks
// are followed only while their target stays inside the root; anything
// unresolvable or escaping reports ok=false.
func (b *Builder) Follow(dirAbs string, entry fs.DirEntry) (string, fs.FileInfo, bool) {
	p := filepath.Join(dirAbs, entry.Name())
	if entry.Type()&fs.ModeSymlink == 0 {
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			return "", nil, false
		}
		return p, info, true
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		logging.L().Debug("skipping unresolvable symlink", zap.String("path", b.sb.NodePath(p)))
		return "", nil, false
	}
	if !b.sb.Contains(resolved) {
		logging.L().Debug("skipping symlink outside root", zap.String("path", b.sb.NodePath(p)))
		return "", nil, false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, false
	}
	return resolved, info, true
}

// FileNode builds a file node for a document, or reports ok=false for any
// other file type.
func FileNode(nodePath string, info fs.FileInfo) (models.FileNode, bool) {
	name := path.Base(nodePath)
	ext, kind := sandbox.Classify(name)
	if kind != sandbox.KindDocument {
		return models.FileNode{}, false
	}
	return models.FileNode{
		Name:       name,
		Path:       nodePath,
		Type:       models.NodeFile,
		Extension:  ext,
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}, true
}

// hasChildren scans dir once, without recursion.
func (b *Builder) hasChildren(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !Visible(entry.Name()) {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			_, info, ok := b.Follow(dir, entry)
			if ok && (info.IsDir() || IsDocument(entry.Name())) {
				return true
			}
			continue
		}
		if entry.IsDir() || IsDocument(entry.Name()) {
			return true
		}
	}
	return false
}

// Sort orders directories first, then names by English collation.
func Sort(nodes []models.FileNode) {
	col := collate.New(language.English)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsDir() != nodes[j].IsDir() {
			return nodes[i].IsDir()
		}
		if c := col.CompareString(nodes[i].Name, nodes[j].Name); c != 0 {
			return c < 0
		}
		return nodes[i].Name < nodes[j].Name
	})
}

func readDirError(nodePath string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return docerr.NewPathError("list", nodePath, docerr.ErrNotFound, nil)
	case nodePath == "/" && errors.Is(err, fs.ErrPermission):
		return docerr.NewPathError("list", nodePath, docerr.ErrUnavailable, err)
	default:
		return docerr.NewPathError("list", nodePath, docerr.ErrIO, err)
	}
}
