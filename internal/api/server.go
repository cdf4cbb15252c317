// Package api exposes the reader engine over HTTP.
package api

import (
	"errors"
	"net/http"
	"net/url"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/highlight"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/metrics"
	"github.com/razvandimescu/docreader/internal/prefs"
	"github.com/razvandimescu/docreader/internal/sandbox"
	"github.com/razvandimescu/docreader/internal/search"
	"github.com/razvandimescu/docreader/internal/tree"
)

const (
	maxBodyBytes     = 1 << 20
	maxDocumentBytes = 8 << 20
)

// Engine groups the components bound to one document root.
type Engine struct {
	Sandbox *sandbox.Sandbox
	Tree    *tree.Builder
	Search  *search.Engine
	Prefs   *prefs.Store
}

// EngineOptions tunes the components built by OpenEngine.
type EngineOptions struct {
	PreferencesFile string
	Search          search.Options
}

// OpenEngine canonicalises root and binds the reader components to it.
func OpenEngine(root string, opts EngineOptions) (*Engine, error) {
	sb, err := sandbox.New(root)
	if err != nil {
		return nil, err
	}
	b := tree.NewBuilder(sb)
	return &Engine{
		Sandbox: sb,
		Tree:    b,
		Search:  search.NewEngine(b, opts.Search),
		Prefs:   prefs.NewStore(sb.Root(), opts.PreferencesFile),
	}, nil
}

// Options configures a Server.
type Options struct {
	// Engine is nil when the root is not configured or not usable.
	Engine *Engine
	// RootErr explains a nil Engine. It should match ErrNotConfigured or
	// ErrUnavailable.
	RootErr error

	Highlighter *highlight.Highlighter

	// AuthHeader, when set, must be present with value "true".
	AuthHeader string
}

// Server serves the reader API.
type Server struct {
	engine      *Engine
	rootErr     error
	highlighter *highlight.Highlighter
	authHeader  string
}

// New returns a Server. A nil Engine with a nil RootErr is treated as
// not configured.
func New(opts Options) *Server {
	s := &Server{
		engine:      opts.Engine,
		rootErr:     opts.RootErr,
		highlighter: opts.Highlighter,
		authHeader:  opts.AuthHeader,
	}
	if s.engine == nil && s.rootErr == nil {
		s.rootErr = docerr.ErrNotConfigured
	}
	if s.highlighter == nil {
		s.highlighter = highlight.NewHighlighter(nil, nil)
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/files", s.withEngine(s.handleList))
	mux.HandleFunc("GET /api/search", s.withEngine(s.handleSearch))
	mux.HandleFunc("GET /api/content/{path...}", s.withEngine(s.handleContent))
	mux.HandleFunc("GET /api/images/{path...}", s.withEngine(s.handleImage))

	mux.HandleFunc("GET /api/preferences", s.withEngine(s.handleGetPreferences))
	mux.HandleFunc("PUT /api/preferences", s.withEngine(s.handleUpdatePreferences))
	mux.HandleFunc("POST /api/preferences/favorites", s.withEngine(s.handleAddFavorite))
	mux.HandleFunc("DELETE /api/preferences/favorites", s.withEngine(s.handleRemoveFavorite))
	mux.HandleFunc("POST /api/preferences/favorites/toggle", s.withEngine(s.handleToggleFavorite))
	mux.HandleFunc("POST /api/preferences/recents", s.withEngine(s.handleAddRecent))
	mux.HandleFunc("DELETE /api/preferences/recents", s.withEngine(s.handleClearRecents))
	mux.HandleFunc("GET /api/preferences/display-mode", s.withEngine(s.handleGetDisplayMode))
	mux.HandleFunc("PUT /api/preferences/display-mode", s.withEngine(s.handleSetDisplayMode))

	mux.HandleFunc("POST /api/highlight", s.handleHighlight)
	mux.HandleFunc("GET /api/highlight/languages", s.handleHighlightLanguages)
	mux.HandleFunc("GET /api/highlight/{path...}", s.withEngine(s.handleHighlightDocument))

	var h http.Handler = mux
	h = withCSRFCheck(h)
	h = s.withAuth(h)
	h = metrics.Middleware(h)
	h = logging.Middleware(h)
	h = withRecovery(h)
	return h
}

// withEngine answers 503 while no root is bound.
func (s *Server) withEngine(next func(http.ResponseWriter, *http.Request, *Engine)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engine == nil {
			sendError(w, r, s.rootErr)
			return
		}
		next(w, r, s.engine)
	}
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logging.WithContext(r.Context()).Error("panic serving request",
					zap.Any("panic", err),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				sendJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withAuth enforces the upstream authorization decision. Health checks
// are always allowed.
func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.authHeader == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" && r.Header.Get(s.authHeader) != "true" {
			logging.WithContext(r.Context()).Debug("unauthorized request", zap.String("path", r.URL.Path))
			sendJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withCSRFCheck rejects cross-origin mutating requests by validating the
// Origin header against the request host.
func withCSRFCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" && !sameOrigin(origin, r.Host) {
			logging.WithContext(r.Context()).Warn("rejected cross-origin request",
				zap.String("origin", origin),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			sendJSON(w, http.StatusForbidden, errorBody{Error: "cross-origin request"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Host == host
}

type healthResponse struct {
	Status string `json:"status"`
	Root   string `json:"root"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Root: "ready"}
	switch {
	case s.engine == nil && errors.Is(s.rootErr, docerr.ErrNotConfigured):
		resp.Root = "not_configured"
	case s.engine == nil:
		resp.Root = "unavailable"
	case s.engine.Sandbox.CheckRoot() != nil:
		resp.Root = "unavailable"
	}
	sendJSON(w, http.StatusOK, resp)
}
