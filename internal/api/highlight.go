package api

import (
	"io"
	"net/http"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/highlight"
	"github.com/razvandimescu/docreader/internal/sandbox"
)

type highlightRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

type highlightResponse struct {
	HTML string `json:"html"`
}

type documentBlocksResponse struct {
	Path   string                       `json:"path"`
	Blocks []highlight.HighlightedBlock `json:"blocks"`
}

type languagesResponse struct {
	Languages []string `json:"languages"`
	Themes    []string `json:"themes"`
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, highlightResponse{HTML: s.highlighter.Highlight(req.Code, req.Language, req.Theme)})
}

func (s *Server) handleHighlightLanguages(w http.ResponseWriter, r *http.Request) {
	eng, err := s.highlighter.Engine()
	if err != nil {
		sendJSON(w, http.StatusOK, languagesResponse{Languages: []string{}, Themes: []string{}})
		return
	}
	sendJSON(w, http.StatusOK, languagesResponse{Languages: eng.Languages(), Themes: eng.Themes()})
}

func (s *Server) handleHighlightDocument(w http.ResponseWriter, r *http.Request, e *Engine) {
	f, name, err := openFile(e.Sandbox, "/"+r.PathValue("path"), sandbox.KindDocument)
	if err != nil {
		sendError(w, r, err)
		return
	}
	defer f.file.Close()

	src, err := io.ReadAll(io.LimitReader(f.file, maxDocumentBytes))
	if err != nil {
		sendError(w, r, docerr.NewPathError("read", name, docerr.ErrIO, err))
		return
	}
	sendJSON(w, http.StatusOK, documentBlocksResponse{
		Path:   name,
		Blocks: s.highlighter.HighlightDocument(src, r.URL.Query().Get("theme")),
	})
}
