package api

import (
	"net/http"

	"github.com/razvandimescu/docreader/internal/models"
	"github.com/razvandimescu/docreader/internal/prefs"
)

type entryRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type toggleResponse struct {
	Favorited   bool                     `json:"favorited"`
	Preferences models.ReaderPreferences `json:"preferences"`
}

type displayModeBody struct {
	DisplayMode models.DisplayMode `json:"displayMode"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request, e *Engine) {
	sendJSON(w, http.StatusOK, e.Prefs.Get())
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request, e *Engine) {
	var raw map[string]any
	if err := decodeBody(w, r, &raw); err != nil {
		sendError(w, r, err)
		return
	}
	patch, err := prefs.DecodePatch(raw)
	if err != nil {
		sendError(w, r, err)
		return
	}
	respondPrefs(w, r)(e.Prefs.Update(patch))
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request, e *Engine) {
	var req entryRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	respondPrefs(w, r)(e.Prefs.AddFavorite(req.Path, req.Name))
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, e *Engine) {
	respondPrefs(w, r)(e.Prefs.RemoveFavorite(r.URL.Query().Get("path")))
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request, e *Engine) {
	var req entryRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	favorited, p, err := e.Prefs.ToggleFavorite(req.Path, req.Name)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, toggleResponse{Favorited: favorited, Preferences: p})
}

func (s *Server) handleAddRecent(w http.ResponseWriter, r *http.Request, e *Engine) {
	var req entryRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	respondPrefs(w, r)(e.Prefs.AddRecent(req.Path, req.Name))
}

func (s *Server) handleClearRecents(w http.ResponseWriter, r *http.Request, e *Engine) {
	respondPrefs(w, r)(e.Prefs.ClearRecents())
}

func (s *Server) handleGetDisplayMode(w http.ResponseWriter, r *http.Request, e *Engine) {
	sendJSON(w, http.StatusOK, displayModeBody{DisplayMode: e.Prefs.GetDisplayMode()})
}

func (s *Server) handleSetDisplayMode(w http.ResponseWriter, r *http.Request, e *Engine) {
	var req displayModeBody
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	p, err := e.Prefs.SetDisplayMode(req.DisplayMode)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, displayModeBody{DisplayMode: p.DisplayMode})
}

// respondPrefs writes the outcome of a preferences mutation.
func respondPrefs(w http.ResponseWriter, r *http.Request) func(models.ReaderPreferences, error) {
	return func(p models.ReaderPreferences, err error) {
		if err != nil {
			sendError(w, r, err)
			return
		}
		sendJSON(w, http.StatusOK, p)
	}
}
