// Package watcher turns filesystem activity in an inbox directory tree into
// debounced batches of settled regular files, ready to be organized.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

// DefaultDebounce is the quiet period after the last event before a batch
// is delivered.
const DefaultDebounce = 2 * time.Second

// DefaultIgnore lists files that are never batched: partial downloads and
// tidy's own undo logs.
var DefaultIgnore = []string{
	"**/*.part",
	"**/*.crdownload",
	"**/*.download",
	"**/.DS_Store",
	"**/fm_organize_*.json",
}

// Batch is a set of files that settled within one debounce window.
type Batch struct {
	ID    string
	Paths []string
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration

	// Ignore holds glob patterns in addition to DefaultIgnore.
	Ignore []string

	// SkipDirs are never watched, typically an organize target root that
	// lives inside the inbox.
	SkipDirs []string
}

// Watcher watches directory trees and batches the files that appear in
// them.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   []glob.Glob
	skip     []string

	mu      sync.Mutex
	paths   map[string]bool
	closed  bool
	pending map[string]struct{}
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: opts.Debounce,
		paths:    make(map[string]bool),
		pending:  make(map[string]struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, pattern := range append(slices.Clone(DefaultIgnore), opts.Ignore...) {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			logging.Get("watcher").Warn("ignoring invalid pattern", "pattern", pattern, "error", err)
			continue
		}
		w.ignore = append(w.ignore, g)
	}
	for _, dir := range opts.SkipDirs {
		if abs, err := filepath.Abs(dir); err == nil {
			w.skip = append(w.skip, filepath.Clean(abs))
		}
	}
	return w, nil
}

// Watch adds root and every directory below it. Symlinks are not followed.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(absRoot + ": not a directory")
	}
	return w.addTree(absRoot)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipped(path) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// Watched returns the directories currently watched, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Run delivers batches until ctx is cancelled. onBatch runs on the calling
// goroutine, so batches never overlap; events arriving meanwhile are
// collected into the next batch.
func (w *Watcher) Run(ctx context.Context, onBatch func(context.Context, Batch)) error {
	log := logging.Get("watcher")

	// settle is nil while nothing is pending, so its case never fires.
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				settle = time.After(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)

		case <-settle:
			settle = nil
			if batch, ok := w.flush(); ok {
				log.Info("batch ready", "batch", batch.ID, "files", len(batch.Paths))
				onBatch(ctx, batch)
			}
		}
	}
}

// handleEvent records event and reports whether the debounce window
// should restart.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	path := event.Name

	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		info, err := os.Lstat(path)
		if err != nil {
			return false
		}
		if info.IsDir() {
			if !w.skipped(path) {
				_ = w.addTree(path)
				w.queueTree(path)
			}
			return true
		}
		if !info.Mode().IsRegular() || w.ignored(path) || w.skipped(filepath.Dir(path)) {
			return false
		}
		w.mu.Lock()
		w.pending[path] = struct{}{}
		w.mu.Unlock()
		return true

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.forget(path)
		return false
	}
	return false
}

// queueTree queues files that were already inside a directory when it was
// moved into the inbox; they produce no events of their own.
func (w *Watcher) queueTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best effort
		}
		if d.IsDir() {
			if path != root && w.skipped(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !w.ignored(path) {
			w.mu.Lock()
			w.pending[path] = struct{}{}
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.pending, path)
	for p := range w.pending {
		if isSubPath(p, path) {
			delete(w.pending, p)
		}
	}
	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// flush takes the pending set. Paths that disappeared or stopped being
// regular files in the meantime are dropped.
func (w *Watcher) flush() (Batch, bool) {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	paths := make([]string, 0, len(pending))
	for p := range pending {
		if info, err := os.Lstat(p); err == nil && info.Mode().IsRegular() {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return Batch{}, false
	}
	slices.Sort(paths)
	return Batch{ID: uuid.NewString(), Paths: paths}, true
}

func (w *Watcher) ignored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range w.ignore {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

func (w *Watcher) skipped(path string) bool {
	path = filepath.Clean(path)
	for _, s := range w.skip {
		if path == s || isSubPath(path, s) {
			return true
		}
	}
	return false
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
