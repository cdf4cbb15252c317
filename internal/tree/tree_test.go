package tree

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/models"
	"github.com/razvandimescu/docreader/internal/sandbox"
	"github.com/razvandimescu/docreader/internal/testutil"
)

func newBuilder(t *testing.T, files map[string]string) *Builder {
	t.Helper()
	sb, err := sandbox.New(testutil.Root(t, files))
	require.NoError(t, err)
	return NewBuilder(sb)
}

func names(nodes []models.FileNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestListScenario(t *testing.T) {
	b := newBuilder(t, testutil.ScenarioFiles)

	root, err := b.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "/", root.Path)
	require.Len(t, root.Children, 1, "image.png must not be listed")
	assert.Equal(t, models.FileNode{Name: "notes", Path: "/notes", Type: models.NodeDirectory, HasChildren: true}, root.Children[0])

	notes, err := b.List(context.Background(), "/notes")
	require.NoError(t, err)
	require.Len(t, notes.Children, 2)

	archive := notes.Children[0]
	assert.Equal(t, "archive", archive.Name)
	assert.Equal(t, "/notes/archive", archive.Path)
	assert.Equal(t, models.NodeDirectory, archive.Type)
	assert.True(t, archive.HasChildren)

	readme := notes.Children[1]
	assert.Equal(t, "readme.md", readme.Name)
	assert.Equal(t, "/notes/readme.md", readme.Path)
	assert.Equal(t, models.NodeFile, readme.Type)
	assert.Equal(t, ".md", readme.Extension)
	assert.EqualValues(t, len("# Readme\n"), readme.Size)
	assert.False(t, readme.ModifiedAt.IsZero())
}

func TestListPurity(t *testing.T) {
	b := newBuilder(t, map[string]string{
		".hidden.md":      "x",
		".git/config":     "x",
		"visible.md":      "x",
		"script.sh":       "x",
		"photo.jpg":       "x",
		"plain.txt":       "x",
		"diagram.mmd":     "x",
		"docs/.secret.md": "x",
	})

	listing, err := b.List(context.Background(), "/")
	require.NoError(t, err)

	for _, n := range listing.Children {
		assert.False(t, strings.HasPrefix(n.Name, "."), "hidden entry listed: %s", n.Name)
		if !n.IsDir() {
			assert.True(t, IsDocument(n.Name), "non-document listed: %s", n.Name)
		}
	}
	assert.Equal(t, []string{"docs", "diagram.mmd", "plain.txt", "visible.md"}, names(listing.Children))

	// docs only holds a hidden file
	assert.False(t, listing.Children[0].HasChildren)
}

func TestListHasChildrenIsShallow(t *testing.T) {
	b := newBuilder(t, map[string]string{
		"only-images/a.png":       "x",
		"only-images/deep/b.md":   "x",
		"unsupported/run.sh":      "x",
		"empty/":                  "",
		"subdir-only/inner/":      "",
		"docs-only/a.markdown":    "x",
		"hidden-only/.inner/x.md": "x",
	})

	listing, err := b.List(context.Background(), "/")
	require.NoError(t, err)

	got := map[string]bool{}
	for _, n := range listing.Children {
		got[n.Name] = n.HasChildren
	}
	assert.Equal(t, map[string]bool{
		"docs-only":   true,
		"empty":       false,
		"hidden-only": false,
		"only-images": true, // visible subdirectory
		"subdir-only": true,
		"unsupported": false,
	}, got)
}

func TestListOrdering(t *testing.T) {
	b := newBuilder(t, map[string]string{
		"cherry.md": "x",
		"Banana.md": "x",
		"apple.md":  "x",
		"zeta/":     "",
		"Mid/":      "",
	})

	listing, err := b.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mid", "zeta", "apple.md", "Banana.md", "cherry.md"}, names(listing.Children))
}

func TestListErrors(t *testing.T) {
	b := newBuilder(t, testutil.ScenarioFiles)
	ctx := context.Background()

	_, err := b.List(ctx, "/missing")
	assert.ErrorIs(t, err, docerr.ErrNotFound)

	_, err = b.List(ctx, "/notes/readme.md")
	assert.ErrorIs(t, err, docerr.ErrNotADirectory)

	_, err = b.List(ctx, "/notes/../..")
	assert.ErrorIs(t, err, docerr.ErrInvalidPath)

	_, err = b.List(ctx, "")
	assert.ErrorIs(t, err, docerr.ErrInvalidPath)
}

func TestListUnreadable(t *testing.T) {
	b := newBuilder(t, map[string]string{"locked/inner.md": "x", "open.md": "x"})
	root := b.Sandbox().Root()

	testutil.Unreadable(t, filepath.Join(root, "locked"))

	listing, err := b.List(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, listing.Children, 2)
	assert.Equal(t, "locked", listing.Children[0].Name)
	assert.False(t, listing.Children[0].HasChildren)

	_, err = b.List(context.Background(), "/locked")
	assert.ErrorIs(t, err, docerr.ErrIO)

	testutil.Unreadable(t, root)
	_, err = b.List(context.Background(), "/")
	assert.ErrorIs(t, err, docerr.ErrUnavailable)
}

func TestListRefusesHiddenPaths(t *testing.T) {
	b := newBuilder(t, map[string]string{".secret/keys.md": "k", "notes/a.md": "x"})
	root := b.Sandbox().Root()
	testutil.Symlink(t, filepath.Join(root, ".secret"), root, "notes/window")

	for _, p := range []string{"/.secret", "/notes/window"} {
		listing, err := b.List(context.Background(), p)
		assert.ErrorIs(t, err, docerr.ErrNotFound, p)
		assert.Nil(t, listing, p)
	}
}

func TestListSymlinks(t *testing.T) {
	b := newBuilder(t, map[string]string{"notes/a.md": "x"})
	root := b.Sandbox().Root()
	outside := testutil.Root(t, map[string]string{"secret.md": "s", "dir/x.md": "x"})

	testutil.Symlink(t, filepath.Join(root, "notes"), root, "linked")
	testutil.Symlink(t, filepath.Join(outside, "secret.md"), root, "escape.md")
	testutil.Symlink(t, filepath.Join(outside, "dir"), root, "escape-dir")
	testutil.Symlink(t, filepath.Join(root, "nowhere"), root, "dangling.md")

	listing, err := b.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"linked", "notes"}, names(listing.Children))
	assert.Equal(t, "/linked", listing.Children[0].Path)
	assert.True(t, listing.Children[0].HasChildren)

	_, err = b.List(context.Background(), "/escape-dir")
	assert.ErrorIs(t, err, docerr.ErrInvalidPath)
}

func TestListCancelled(t *testing.T) {
	b := newBuilder(t, map[string]string{"a.md": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.List(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListingJSON(t *testing.T) {
	b := newBuilder(t, testutil.ScenarioFiles)

	listing, err := b.List(context.Background(), "/")
	require.NoError(t, err)

	data, err := json.Marshal(listing)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/","children":[{"name":"notes","path":"/notes","type":"directory","hasChildren":true}]}`, string(data))
}
