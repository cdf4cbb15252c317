package highlight

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvandimescu/docreader/internal/cache"
)

const goSnippet = "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"

func TestHighlightSupportedLanguage(t *testing.T) {
	h := NewHighlighter(NewLazy(NewEngine), nil)

	out := h.Highlight(goSnippet, "go", "monokai")
	assert.NotEqual(t, Fallback(goSnippet), out)
	assert.Contains(t, out, "<pre")
	assert.Contains(t, out, "style=")
	assert.Contains(t, out, "println")
}

func TestHighlightAliases(t *testing.T) {
	h := NewHighlighter(NewLazy(NewEngine), nil)

	pairs := map[string]string{
		"golang": "go",
		"js":     "javascript",
		"py":     "python",
		"sh":     "bash",
		"yml":    "yaml",
		"GO":     "go",
	}
	for alias, canonical := range pairs {
		assert.Equal(t, h.Highlight("x = 1", canonical, ""), h.Highlight("x = 1", alias, ""), alias)
	}
}

func TestHighlightFallsBackForUnsupported(t *testing.T) {
	h := NewHighlighter(NewLazy(NewEngine), nil)
	code := `<script>alert("x")</script>`

	for _, lang := range []string{"", "brainfuck-9000", "cobol"} {
		out := h.Highlight(code, lang, "")
		assert.Equal(t, Fallback(code), out, lang)
	}
	assert.Equal(t, `<pre><code>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</code></pre>`, Fallback(code))
}

func TestHighlightUnknownThemeUsesDefault(t *testing.T) {
	h := NewHighlighter(NewLazy(NewEngine), nil)
	assert.Equal(t, h.Highlight(goSnippet, "go", DefaultTheme), h.Highlight(goSnippet, "go", "no-such-theme"))
}

func TestEngineInitIsSingleFlight(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy(func() (*Engine, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return NewEngine()
	})

	var wg sync.WaitGroup
	engines := make([]*Engine, 32)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := lazy.Get()
			assert.NoError(t, err)
			engines[i] = e
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, e := range engines {
		assert.Same(t, engines[0], e)
	}

	_, err := lazy.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "engine is kept after success")
}

func TestFailedInitIsRetried(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy(func() (*Engine, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("cold start failed")
		}
		return NewEngine()
	})
	h := NewHighlighter(lazy, nil)

	assert.Equal(t, Fallback(goSnippet), h.Highlight(goSnippet, "go", ""))
	assert.NotEqual(t, Fallback(goSnippet), h.Highlight(goSnippet, "go", ""))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHighlightRecoversFromPanic(t *testing.T) {
	lazy := NewLazy(func() (*Engine, error) { panic("boom") })
	h := NewHighlighter(lazy, nil)

	assert.Equal(t, Fallback("a < b"), h.Highlight("a < b", "go", ""))
}

func TestHighlightIsMemoized(t *testing.T) {
	c := cache.New[string](cache.Options{})
	h := NewHighlighter(NewLazy(NewEngine), c)

	first := h.Highlight(goSnippet, "go", "")
	second := h.Highlight(goSnippet, "golang", DefaultTheme)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len(), "alias and default theme share one entry")

	h.Highlight(goSnippet+"// more\n", "go", "")
	assert.Equal(t, 2, c.Len())

	h.Highlight("text", "unknown", "")
	assert.Equal(t, 2, c.Len(), "fallbacks are not cached")
}

func TestEngineListsLanguagesAndThemes(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	assert.Contains(t, e.Languages(), "go")
	assert.Contains(t, e.Languages(), "python")
	assert.Contains(t, e.Themes(), DefaultTheme)

	lang, ok := e.Canonical(" Shell ")
	assert.True(t, ok)
	assert.Equal(t, "bash", lang)
}

func TestBlocks(t *testing.T) {
	doc := strings.Join([]string{
		"# Title",
		"",
		"```go",
		"package main",
		"```",
		"",
		"text",
		"",
		"```",
		"plain <b>",
		"```",
		"",
		"    indented code is ignored",
	}, "\n")

	blocks := Blocks([]byte(doc))
	require.Len(t, blocks, 2)
	assert.Equal(t, CodeBlock{Language: "go", Code: "package main\n"}, blocks[0])
	assert.Equal(t, CodeBlock{Language: "", Code: "plain <b>\n"}, blocks[1])

	assert.Empty(t, Blocks([]byte("no code here")))
}

func TestHighlightDocument(t *testing.T) {
	h := NewHighlighter(NewLazy(NewEngine), nil)
	doc := []byte("```python\nprint('hi')\n```\n\n```nope\n1 < 2\n```\n")

	out := h.HighlightDocument(doc, "")
	require.Len(t, out, 2)
	assert.Equal(t, "python", out[0].Language)
	assert.NotEqual(t, Fallback("print('hi')\n"), out[0].HTML)
	assert.Equal(t, Fallback("1 < 2\n"), out[1].HTML)
}
