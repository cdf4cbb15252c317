// Package highlight renders code fragments as inline-styled HTML.
//
// The chroma engine is expensive to prepare, so one process-wide instance is
// built on first use and shared. Highlighting never fails: anything the
// engine cannot handle degrades to escaped plain text.
package highlight

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/sync/singleflight"

	"github.com/razvandimescu/docreader/internal/metrics"
)

// DefaultTheme is used when a caller names no theme or an unknown one.
const DefaultTheme = "github"

// supportedLanguages maps our canonical names to chroma lexer names.
var supportedLanguages = map[string]string{
	"bash":       "bash",
	"c":          "c",
	"cpp":        "c++",
	"css":        "css",
	"diff":       "diff",
	"dockerfile": "docker",
	"go":         "go",
	"html":       "html",
	"java":       "java",
	"javascript": "javascript",
	"json":       "json",
	"kotlin":     "kotlin",
	"markdown":   "markdown",
	"php":        "php",
	"python":     "python",
	"ruby":       "ruby",
	"rust":       "rust",
	"sql":        "sql",
	"swift":      "swift",
	"toml":       "toml",
	"typescript": "typescript",
	"xml":        "xml",
	"yaml":       "yaml",
}

// aliases are common fence shorthands. Targets outside supportedLanguages
// are treated as unsupported.
var aliases = map[string]string{
	"js":     "javascript",
	"ts":     "typescript",
	"py":     "python",
	"sh":     "bash",
	"shell":  "bash",
	"yml":    "yaml",
	"golang": "go",
	"c++":    "cpp",
	"rb":     "ruby",
	"rs":     "rust",
	"kt":     "kotlin",
	"md":     "markdown",
}

var knownThemes = []string{
	"github",
	"github-dark",
	"monokai",
	"dracula",
	"nord",
	"solarized-light",
}

// Engine holds resolved lexers, styles and one formatter. It is immutable
// once built and safe for concurrent use.
type Engine struct {
	lexers    map[string]chroma.Lexer
	styles    map[string]*chroma.Style
	formatter *chromahtml.Formatter
}

// NewEngine resolves every supported lexer and theme and warms the lexers
// so their rules are compiled before the first request.
func NewEngine() (*Engine, error) {
	e := &Engine{
		lexers:    make(map[string]chroma.Lexer, len(supportedLanguages)),
		styles:    make(map[string]*chroma.Style, len(knownThemes)),
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
	}

	for name, lexerName := range supportedLanguages {
		lexer := lexers.Get(lexerName)
		if lexer == nil {
			continue
		}
		lexer = chroma.Coalesce(lexer)
		if _, err := lexer.Tokenise(nil, "x"); err != nil {
			return nil, fmt.Errorf("warm %s lexer: %w", name, err)
		}
		e.lexers[name] = lexer
	}
	if len(e.lexers) == 0 {
		return nil, errors.New("no lexers available")
	}

	for _, name := range knownThemes {
		if style, ok := styles.Registry[name]; ok {
			e.styles[name] = style
		}
	}
	if _, ok := e.styles[DefaultTheme]; !ok {
		e.styles[DefaultTheme] = styles.Fallback
	}
	return e, nil
}

// Canonical maps a fence language or alias to a supported language name.
func (e *Engine) Canonical(language string) (string, bool) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if target, ok := aliases[lang]; ok {
		lang = target
	}
	_, ok := e.lexers[lang]
	return lang, ok
}

// Theme returns the resolved theme name, falling back to DefaultTheme.
func (e *Engine) Theme(theme string) string {
	if _, ok := e.styles[theme]; ok {
		return theme
	}
	return DefaultTheme
}

// Languages lists supported canonical language names.
func (e *Engine) Languages() []string {
	out := make([]string, 0, len(e.lexers))
	for name := range e.lexers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Themes lists available theme names.
func (e *Engine) Themes() []string {
	out := make([]string, 0, len(e.styles))
	for name := range e.styles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Render highlights code with a canonical language and resolved theme.
func (e *Engine) Render(code, language, theme string) (string, error) {
	lexer, ok := e.lexers[language]
	if !ok {
		return "", fmt.Errorf("unsupported language %q", language)
	}
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}
	var buf strings.Builder
	if err := e.formatter.Format(&buf, e.styles[e.Theme(theme)], it); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return buf.String(), nil
}

// Lazy builds an Engine on first use. Concurrent first callers share one
// build; a failed build is not kept and the next call retries.
type Lazy struct {
	mu     sync.Mutex
	engine *Engine
	group  singleflight.Group
	build  func() (*Engine, error)
}

// NewLazy returns a handle that runs build on first use.
func NewLazy(build func() (*Engine, error)) *Lazy {
	return &Lazy{build: build}
}

// Shared is the process-wide engine handle.
var Shared = NewLazy(NewEngine)

// Get returns the engine, building it if needed.
func (l *Lazy) Get() (*Engine, error) {
	if e := l.loaded(); e != nil {
		return e, nil
	}
	v, err, _ := l.group.Do("engine", func() (any, error) {
		if e := l.loaded(); e != nil {
			return e, nil
		}
		e, err := l.build()
		metrics.RecordHighlightInit(err == nil)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.engine = e
		l.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

func (l *Lazy) loaded() *Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine
}
