// Package watch observes the document root and reports debounced changes.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/metrics"
	"github.com/razvandimescu/docreader/internal/sandbox"
)

// DefaultDebounce collapses bursts such as editor save sequences.
const DefaultDebounce = 250 * time.Millisecond

// Watcher recursively watches a root, skipping hidden directories. Every
// burst of visible changes triggers the registered callbacks once.
type Watcher struct {
	debounce time.Duration

	mu        sync.Mutex
	current   *fsnotify.Watcher
	cancel    context.CancelFunc
	done      chan struct{}
	callbacks []func()
}

// New returns an idle Watcher. A non-positive debounce selects DefaultDebounce.
func New(debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{debounce: debounce}
}

// OnChange registers fn to run after each debounced burst of changes.
func (w *Watcher) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Watch starts watching sb's root, replacing any previous watch.
func (w *Watcher) Watch(sb *sandbox.Sandbox) error {
	w.mu.Lock()
	w.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(sb.Root()); err != nil {
		_ = fw.Close()
		cancel()
		w.mu.Unlock()
		return err
	}
	w.current = fw
	w.cancel = cancel
	done := make(chan struct{})
	w.done = done
	w.mu.Unlock()

	// Walk without the lock; large trees take a while.
	dirs := collectDirectories(sb.Root())

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != fw {
		close(done)
		return errors.New("watcher replaced during directory walk")
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			logging.L().Warn("cannot watch directory", zap.String("path", sb.NodePath(dir)), zap.Error(err))
		}
	}

	go w.loop(ctx, fw, sb, done)
	logging.L().Info("watching document root", zap.Int("directories", len(dirs)+1))
	return nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() {
	w.mu.Lock()
	done := w.done
	w.stopLocked()
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (w *Watcher) stopLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.current != nil {
		_ = w.current.Close()
		w.current = nil
	}
	w.done = nil
}

// collectDirectories lists every visible directory below root.
func collectDirectories(root string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtree
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || p == root {
			return nil
		}
		if hidden(d.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	return dirs
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, sb *sandbox.Sandbox, done chan struct{}) {
	defer close(done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod || hidden(filepath.Base(event.Name)) || !sb.Contains(event.Name) {
				continue
			}
			metrics.RecordWatcherEvent(opName(event.Op))

			if event.Op.Has(fsnotify.Create) {
				w.handleDirCreated(fw, sb, event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.notify()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.L().Warn("watcher error", zap.Error(err))
		}
	}
}

// handleDirCreated adds a new directory if it resolves inside the root.
func (w *Watcher) handleDirCreated(fw *fsnotify.Watcher, sb *sandbox.Sandbox, p string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil || !sb.Contains(resolved) {
		return
	}
	if err := fw.Add(p); err != nil {
		logging.L().Warn("cannot watch new directory", zap.String("path", sb.NodePath(p)), zap.Error(err))
		return
	}
	for _, sub := range collectDirectories(p) {
		_ = fw.Add(sub)
	}
	logging.L().Debug("watching new directory", zap.String("path", sb.NodePath(p)))
}

func (w *Watcher) notify() {
	w.mu.Lock()
	callbacks := append([]func(){}, w.callbacks...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Write):
		return "write"
	default:
		return "other"
	}
}
