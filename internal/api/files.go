package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/sandbox"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, e *Engine) {
	p := r.URL.Query().Get("path")
	if p == "" {
		p = "/"
	}
	listing, err := e.Tree.List(r.Context(), p)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, listing)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, e *Engine) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(w, r, docerr.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	res, err := e.Search.Search(r.Context(), q.Get("q"), limit)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, res)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request, e *Engine) {
	serveFile(w, r, e.Sandbox, sandbox.KindDocument)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, e *Engine) {
	serveFile(w, r, e.Sandbox, sandbox.KindImage)
}

// serveFile streams a whitelisted file of the wanted kind. The type is
// checked before the filesystem is touched.
func serveFile(w http.ResponseWriter, r *http.Request, sb *sandbox.Sandbox, want sandbox.Kind) {
	f, name, err := openFile(sb, "/"+r.PathValue("path"), want)
	if err != nil {
		sendError(w, r, err)
		return
	}
	defer f.file.Close()

	ext, _ := sandbox.Classify(f.file.Name())
	w.Header().Set("Content-Type", sandbox.ContentType(ext))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, f.info.ModTime(), f.file)
}

type openedFile struct {
	file *os.File
	info os.FileInfo
}

// openFile validates raw, checks its kind and opens it. The returned name
// is the cleaned node path.
func openFile(sb *sandbox.Sandbox, raw string, want sandbox.Kind) (*openedFile, string, error) {
	nodePath, err := sb.Clean(raw)
	if err != nil {
		return nil, "", err
	}
	if sandbox.Hidden(nodePath) {
		return nil, "", docerr.NewPathError("read", nodePath, docerr.ErrNotFound, nil)
	}
	if _, kind := sandbox.Classify(nodePath); kind != want {
		return nil, "", docerr.NewPathError("read", nodePath, docerr.ErrUnsupportedType, nil)
	}
	if err := sb.CheckRoot(); err != nil {
		return nil, "", err
	}
	abs, info, err := sb.ResolveExisting(nodePath)
	if err != nil {
		return nil, "", err
	}
	if sandbox.Hidden(sb.NodePath(abs)) {
		return nil, "", docerr.NewPathError("read", nodePath, docerr.ErrNotFound, nil)
	}
	if info.IsDir() {
		return nil, "", docerr.NewPathError("read", nodePath, docerr.ErrNotAFile, nil)
	}
	// A link must not relabel its target as another type.
	if _, kind := sandbox.Classify(abs); kind != want {
		return nil, "", docerr.NewPathError("read", nodePath, docerr.ErrUnsupportedType, nil)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, "", docerr.NewPathError("read", nodePath, docerr.ErrIO, err)
	}
	return &openedFile{file: file, info: info}, nodePath, nil
}
