package logging

import (
	"net/http"
	"sync"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(core))
	t.Cleanup(restore)

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.EqualValues(t, http.StatusTeapot, ctx["status"])
	assert.Equal(t, seen, ctx["request_id"])
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	t.Cleanup(Replace(zap.New(core)))

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestInitWritesRotatedFile(t *testing.T) {
	prev := globalLogger.Load()
	t.Cleanup(func() { globalLogger.Store(prev) })

	file := filepath.Join(t.TempDir(), "docreader.log")
	require.NoError(t, Init(Config{Level: "debug", Format: "console", File: file}))

	L().Info("hello", zap.String("k", "v"))
	_ = Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	SetLevel("info")
}

func TestConcurrentFirstUseSharesOneLogger(t *testing.T) {
	prev := globalLogger.Swap(nil)
	t.Cleanup(func() { globalLogger.Store(prev) })

	const n = 16
	got := make([]*zap.Logger, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = L()
		}()
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}

func TestReplaceRestoresPrevious(t *testing.T) {
	first := zap.NewNop()
	t.Cleanup(Replace(first))

	second, _ := observer.New(zap.InfoLevel)
	restore := Replace(zap.New(second))
	assert.NotSame(t, first, L())
	restore()
	assert.Same(t, first, L())
}
