// Package search ranks document filenames below the root against a query.
package search

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/tidwall/btree"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/razvandimescu/docreader/internal/cache"
	"github.com/razvandimescu/docreader/internal/docerr"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/metrics"
	"github.com/razvandimescu/docreader/internal/models"
	"github.com/razvandimescu/docreader/internal/sandbox"
	"github.com/razvandimescu/docreader/internal/tree"
)

// Relevance scores, highest first.
const (
	ScoreExact     = 100
	ScorePrefix    = 80
	ScoreSubstring = 50
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// sharedWalkTimeout bounds a memoised walk that has outlived its caller.
const sharedWalkTimeout = time.Minute

// Warning describes a directory that was skipped during the walk.
type Warning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of one search. Total counts every match before
// truncation to the limit. Results and Warnings are never nil.
type Result struct {
	Results  []models.FileNode `json:"results"`
	Query    string            `json:"query"`
	Total    int               `json:"total"`
	Warnings []Warning         `json:"warnings"`
}

// Options configures an Engine.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	// Cache memoizes results. Nil disables memoization.
	Cache *cache.Cache[*Result]
}

// Engine walks the whole root for every uncached query. It is safe for
// concurrent use; returned results are shared and must not be modified.
type Engine struct {
	tree         *tree.Builder
	sb           *sandbox.Sandbox
	defaultLimit int
	maxLimit     int
	cache        *cache.Cache[*Result]
}

// NewEngine returns an Engine applying b's listing filters.
func NewEngine(b *tree.Builder, opts Options) *Engine {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	return &Engine{
		tree:         b,
		sb:           b.Sandbox(),
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		cache:        opts.Cache,
	}
}

// Invalidate drops memoized results.
func (e *Engine) Invalidate() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Limit returns the effective limit for a requested one.
func (e *Engine) Limit(requested int) int {
	switch {
	case requested <= 0:
		return e.defaultLimit
	case requested > e.maxLimit:
		return e.maxLimit
	default:
		return requested
	}
}

// Search matches query case-insensitively against every visible document
// filename below the root.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*Result, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, docerr.Validation("query must not be empty")
	}
	if strings.IndexByte(q, 0) >= 0 {
		return nil, docerr.Validation("query must not contain null bytes")
	}
	limit = e.Limit(limit)

	if e.cache == nil {
		return e.run(ctx, q, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := cache.Key("search", cache.Params{"q": q, "limit": limit})
	return e.cache.WithCache(key, func() (*Result, error) {
		// Concurrent callers share this walk, so one of them going away
		// must not fail it for the rest.
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedWalkTimeout)
		defer cancel()
		return e.run(shared, q, limit)
	})
}

// Score returns the relevance of filename for an already lower-cased
// query, or 0 when it does not match.
func Score(filename, lowerQuery string) int {
	name := strings.ToLower(filename)
	stem := strings.TrimSuffix(name, path.Ext(name))
	switch {
	case stem == lowerQuery:
		return ScoreExact
	case strings.HasPrefix(stem, lowerQuery):
		return ScorePrefix
	case strings.Contains(name, lowerQuery):
		return ScoreSubstring
	default:
		return 0
	}
}

type walker struct {
	query    string
	limit    int
	visited  map[string]bool
	ranked   *btree.BTreeG[models.SearchResult]
	total    int
	warnings []Warning
}

func (e *Engine) run(ctx context.Context, q string, limit int) (*Result, error) {
	start := time.Now()
	if err := e.sb.CheckRoot(); err != nil {
		return nil, err
	}

	col := collate.New(language.English)
	less := func(a, b models.SearchResult) bool {
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.Path < b.Path
	}
	w := &walker{
		query:    strings.ToLower(q),
		limit:    limit,
		visited:  make(map[string]bool),
		ranked:   btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
		warnings: []Warning{},
	}

	if err := e.walk(ctx, w, e.sb.Root(), "/"); err != nil {
		return nil, err
	}

	results := make([]models.FileNode, 0, w.ranked.Len())
	w.ranked.Scan(func(item models.SearchResult) bool {
		results = append(results, item.FileNode)
		return true
	})

	metrics.RecordSearch(time.Since(start), w.total, len(w.warnings))
	return &Result{Results: results, Query: q, Total: w.total, Warnings: w.warnings}, nil
}

func (e *Engine) walk(ctx context.Context, w *walker, abs, nodePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.visited[abs] {
		return nil
	}
	w.visited[abs] = true

	entries, err := os.ReadDir(abs)
	if err != nil {
		if nodePath == "/" {
			return docerr.NewPathError("search", nodePath, docerr.ErrUnavailable, err)
		}
		w.warnings = append(w.warnings, Warning{Path: nodePath, Reason: reason(err)})
		logging.WithContext(ctx).Warn("search skipped unreadable directory",
			zap.String("path", nodePath), zap.Error(err))
		return nil
	}

	for _, entry := range entries {
		if !tree.Visible(entry.Name()) {
			continue
		}
		target, info, ok := e.tree.Follow(abs, entry)
		if !ok {
			continue
		}
		child := path.Join(nodePath, entry.Name())
		if info.IsDir() {
			if err := e.walk(ctx, w, target, child); err != nil {
				return err
			}
			continue
		}
		node, ok := tree.FileNode(child, info)
		if !ok {
			continue
		}
		if score := Score(node.Name, w.query); score > 0 {
			w.add(models.SearchResult{FileNode: node, Relevance: score})
		}
	}
	return nil
}

// add keeps only the best limit results while counting every match.
func (w *walker) add(r models.SearchResult) {
	w.total++
	w.ranked.Set(r)
	if w.ranked.Len() > w.limit {
		w.ranked.PopMax()
	}
}

func reason(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}
