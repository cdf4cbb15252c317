package highlight

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/razvandimescu/docreader/internal/cache"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/metrics"
)

// Highlighter fronts an engine handle with a derivation cache.
type Highlighter struct {
	engine *Lazy
	cache  *cache.Cache[string]
}

// NewHighlighter returns a Highlighter. A nil engine selects Shared; a nil
// cache disables memoization.
func NewHighlighter(engine *Lazy, c *cache.Cache[string]) *Highlighter {
	if engine == nil {
		engine = Shared
	}
	return &Highlighter{engine: engine, cache: c}
}

// Engine returns the underlying engine, building it if needed.
func (h *Highlighter) Engine() (*Engine, error) {
	return h.engine.Get()
}

// Fallback renders code as escaped plain text.
func Fallback(code string) string {
	return "<pre><code>" + html.EscapeString(code) + "</code></pre>"
}

// Highlight returns styled markup for code. It never fails; unsupported
// languages, engine failures and panics all produce Fallback(code).
func (h *Highlighter) Highlight(code, language, theme string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("highlight panic", zap.Any("panic", r), zap.String("language", language))
			metrics.RecordHighlightFallback("panic")
			out = Fallback(code)
		}
	}()

	eng, err := h.engine.Get()
	if err != nil {
		logging.L().Warn("highlight engine unavailable", zap.Error(err))
		metrics.RecordHighlightFallback("init")
		return Fallback(code)
	}

	lang, ok := eng.Canonical(language)
	if !ok {
		metrics.RecordHighlightFallback("unsupported")
		return Fallback(code)
	}
	theme = eng.Theme(theme)

	render := func() (string, error) { return eng.Render(code, lang, theme) }
	if h.cache == nil {
		out, err = render()
	} else {
		sum := sha256.Sum256([]byte(code))
		key := cache.Key("highlight", cache.Params{
			"lang":  lang,
			"theme": theme,
			"code":  hex.EncodeToString(sum[:]),
		})
		out, err = h.cache.WithCache(key, render)
	}
	if err != nil {
		logging.L().Warn("highlight failed", zap.String("language", lang), zap.Error(err))
		metrics.RecordHighlightFallback("render")
		return Fallback(code)
	}
	return out
}

// CodeBlock is a fenced code block found in a markdown document.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// HighlightedBlock is a CodeBlock rendered to markup.
type HighlightedBlock struct {
	Language string `json:"language"`
	HTML     string `json:"html"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Blocks extracts fenced code blocks in document order.
func Blocks(src []byte) []CodeBlock {
	doc := markdown.Parser().Parse(text.NewReader(src))

	blocks := []CodeBlock{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fenced.Language(src)),
			Code:     buf.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// HighlightDocument highlights every fenced code block in a markdown document.
func (h *Highlighter) HighlightDocument(src []byte, theme string) []HighlightedBlock {
	blocks := Blocks(src)
	out := make([]HighlightedBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, HighlightedBlock{
			Language: b.Language,
			HTML:     h.Highlight(b.Code, b.Language, theme),
		})
	}
	return out
}
