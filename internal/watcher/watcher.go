// Package watcher rebuilds the library index when library files change.
//
// It is used by `crate index --watch`.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher monitors a set of library files and calls Rebuild after they change.
//
// The whole index is rebuilt rather than a single file: files are merged in
// order, so one changed file can change which playlist wins.
type Watcher struct {
	files         map[string]bool
	dirs          []string
	rebuild       func(ctx context.Context) error
	debounceDelay time.Duration
	log           logrus.FieldLogger

	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	mu        sync.Mutex

	onRebuild func(changed []string, err error)
}

// Config holds configuration options for the Watcher.
type Config struct {
	Files         []string
	Rebuild       func(ctx context.Context) error
	DebounceDelay time.Duration // Default: 100ms
	Logger        logrus.FieldLogger
	OnRebuild     func(changed []string, err error) // Optional callback
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("at least one library file is required")
	}
	if cfg.Rebuild == nil {
		return nil, fmt.Errorf("rebuild function is required")
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}

	files := make(map[string]bool, len(cfg.Files))
	dirSet := make(map[string]bool)
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		files[abs] = true
		dirSet[filepath.Dir(abs)] = true
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	return &Watcher{
		files:         files,
		dirs:          dirs,
		rebuild:       cfg.Rebuild,
		debounceDelay: debounce,
		log:           logger,
		pending:       make(map[string]time.Time),
		onRebuild:     cfg.OnRebuild,
	}, nil
}

// Start begins watching the library files.
// It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	// Directories, not files: a save that renames over the file keeps firing.
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.log.WithField("dir", dir).Debug("watching")
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

// handleEvent schedules a rebuild when a watched library file changes.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.files[path] {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	w.log.WithField("op", event.Op.String()).WithField("file", path).Debug("library file changed")
	w.schedule(path)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = time.Now()
}

// processDebounced runs pending rebuilds after the debounce delay.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending rebuilds once every pending change is older than the
// debounce delay. A change still settling holds back the whole batch.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounceDelay {
			w.mu.Unlock()
			return
		}
	}
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	sort.Strings(changed)
	err := w.rebuild(ctx)
	if w.onRebuild != nil {
		w.onRebuild(changed, err)
	}
	if err != nil {
		w.log.WithError(err).Warn("rebuild failed")
	} else {
		w.log.WithField("changed", len(changed)).Debug("rebuilt index")
	}
}
