// Package watch reports files created or written under a directory tree.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is called once per changed file with its slash-separated path
// relative to the root. Calls are sequential.
type Handler func(ctx context.Context, rel string) error

type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	ignore   func(rel string) bool
	debounce time.Duration
	maxWait  time.Duration

	pending map[string]struct{}
	// first is when the oldest pending change was queued.
	first time.Time
}

type Option func(*Watcher)

// WithIgnore skips paths for which fn returns true. Directory paths are
// passed with a trailing slash.
func WithIgnore(fn func(rel string) bool) Option {
	return func(w *Watcher) {
		w.ignore = fn
	}
}

// WithDebounce sets how long the watcher waits for a burst of events to
// settle before calling the handler.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithMaxWait bounds how long a change can stay pending while writes keep
// arriving. The default is four times the debounce.
func WithMaxWait(d time.Duration) Option {
	return func(w *Watcher) {
		w.maxWait = d
	}
}

// New starts watching every directory under root.
func New(root string, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		watcher:  fw,
		logger:   logger,
		ignore:   func(string) bool { return false },
		debounce: 250 * time.Millisecond,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxWait <= 0 {
		w.maxWait = 4 * w.debounce
	}

	if err := w.addTree(root, false); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return w, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers changes to handle until ctx is done or the watcher is closed.
// Handler errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				timer.Reset(w.wait(time.Now()))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			w.flush(ctx, handle)
		}
	}
}

// handleEvent queues the event's file and reports whether anything was queued.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	rel, ok := w.rel(event.Name)
	if !ok {
		return false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed again before we saw it.
		return false
	}

	if info.IsDir() {
		if w.ignore(rel + "/") {
			return false
		}
		before := len(w.pending)
		if err := w.addTree(event.Name, true); err != nil {
			w.logger.Error("adding new directory to watcher",
				zap.String("path", rel),
				zap.Error(err))
		}
		return len(w.pending) > before
	}

	if !info.Mode().IsRegular() || w.ignore(rel) {
		return false
	}
	w.pending[rel] = struct{}{}
	return true
}

// addTree watches dir and its subdirectories. With queue set, files already
// inside are queued, since their create events predate the watch.
func (w *Watcher) addTree(dir string, queue bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, ok := w.rel(path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if rel != "." && w.ignore(rel+"/") {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		if queue && d.Type().IsRegular() && !w.ignore(rel) {
			w.pending[rel] = struct{}{}
		}
		return nil
	})
}

// wait is the delay before the next flush: the debounce, cut short so that
// nothing stays pending longer than maxWait.
func (w *Watcher) wait(now time.Time) time.Duration {
	if w.first.IsZero() {
		w.first = now
	}
	left := w.first.Add(w.maxWait).Sub(now)
	if left < 0 {
		return 0
	}
	return min(w.debounce, left)
}

func (w *Watcher) flush(ctx context.Context, handle Handler) {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	clear(w.pending)
	w.first = time.Time{}

	for _, p := range paths {
		if ctx.Err() != nil {
			return
		}
		if err := handle(ctx, p); err != nil {
			w.logger.Warn("handling change",
				zap.String("path", p),
				zap.Error(err))
		}
	}
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		w.logger.Error("getting relative path", zap.String("path", path), zap.Error(err))
		return "", false
	}
	return filepath.ToSlash(rel), true
}
