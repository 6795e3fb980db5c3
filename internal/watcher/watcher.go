package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"scribe/internal/logging"
	"scribe/internal/services"
)

// defaultSettle is how long a file must sit quiet before it is handed to
// the pipeline. Copies into the watch directory produce a burst of write
// events; ingesting mid-copy would transcribe a truncated file.
const defaultSettle = 500 * time.Millisecond

// Ingest receives one settled file path. It may block; the pipeline's
// bounded queue pushes back through it.
type Ingest func(path string)

// Option adjusts watcher behavior.
type Option func(*Watcher)

// WithSettle overrides the quiet period before a file is ingested.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// Watcher recursively watches a directory tree and hands settled files to
// an ingest callback. Subdirectories created while watching are picked up;
// files already present at startup are scanned once so work dropped while
// the daemon was down is not lost.
type Watcher struct {
	root   string
	settle time.Duration
	ingest Ingest
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New constructs a watcher rooted at dir.
func New(dir string, ingest Ingest, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		root:    dir,
		settle:  defaultSettle,
		ingest:  ingest,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		pending: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is canceled. The initial scan and all later
// events flow through the same settle timer, so rapid rewrites of one
// path collapse into a single ingestion.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "watcher", "run", "create fsnotify watcher", err)
	}
	defer fw.Close()
	defer w.cancelPending()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching directory", logging.String("path", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, event)
		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(watchErr))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files may land in the new directory before its watch is
			// registered; addRecursive schedules whatever is already there.
			if err := w.addRecursive(fw, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					logging.String("path", event.Name), logging.Error(err))
			}
			return
		}
		w.schedule(event.Name)
	case event.Op.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// addRecursive registers watches for dir and all subdirectories and
// schedules any regular files already present.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "watcher", "scan", path, err)
		}
		if entry.IsDir() {
			if err := fw.Add(path); err != nil {
				return services.Wrap(services.ErrExternalTool, "watcher", "scan", path, err)
			}
			return nil
		}
		if entry.Type().IsRegular() {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		w.ingest(path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
