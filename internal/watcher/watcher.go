// Package watcher observes part directories and reports changed source
// files so exports can be triggered without polling.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"partpipe/internal/pipeline"
)

// DefaultDebounce is the settle window applied to file events. CAD
// applications write part files in several bursts while saving; a change is
// reported only after the file has been quiet for this long.
const DefaultDebounce = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	// Extensions are the source file extensions to report, lowercased with
	// leading dot (e.g. ".ipt").
	Extensions []string

	// SkipDirs are directory base names never descended into (generated
	// output directories, .git).
	SkipDirs []string

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	Logger pipeline.Logger
}

// Watcher watches part directories recursively and emits batches of source
// file paths whose changes have settled.
type Watcher struct {
	roots      []string
	extensions []string
	skipDirs   map[string]struct{}
	debounce   time.Duration
	logger     pipeline.Logger

	watcher *fsnotify.Watcher
	events  chan []string
	done    chan struct{}

	mu      sync.Mutex
	watched map[string]struct{}
	pending map[string]time.Time
}

// NewWatcher creates a watcher over the given root directories.
func NewWatcher(roots []string, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = &pipeline.NopLogger{}
	}

	skip := make(map[string]struct{}, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = struct{}{}
	}

	w := &Watcher{
		roots:      roots,
		extensions: opts.Extensions,
		skipDirs:   skip,
		debounce:   debounce,
		logger:     logger,
		watcher:    fsw,
		events:     make(chan []string, 1),
		done:       make(chan struct{}),
		watched:    make(map[string]struct{}),
		pending:    make(map[string]time.Time),
	}
	return w, nil
}

// Start registers the watch trees and begins delivering batches on Events().
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		if err := w.addWatchTree(root); err != nil {
			w.watcher.Close()
			return err
		}
	}

	go w.run()
	go w.flushLoop()
	return nil
}

// Events returns the channel on which settled change batches are delivered.
// Each batch holds absolute paths of changed source files, deduplicated.
func (w *Watcher) Events() <-chan []string {
	return w.events
}

// Stop stops the watcher. The events channel is not closed; callers select
// on Stop-side context instead.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}
			if w.isSource(event.Name) {
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// flushLoop periodically collects pending files whose last event is older
// than the debounce window and delivers them as one batch.
func (w *Watcher) flushLoop() {
	interval := w.debounce / 2
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			batch := w.takeSettled(now)
			if len(batch) == 0 {
				continue
			}
			select {
			case w.events <- batch:
			case <-w.done:
				return
			}
		}
	}
}

// takeSettled removes and returns pending paths quiet for the debounce window.
func (w *Watcher) takeSettled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var batch []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			batch = append(batch, path)
			delete(w.pending, path)
		}
	}
	return batch
}

// isSource reports whether path names a watchable source file. Editor lock
// files (~$ prefixed) are never reported.
func (w *Watcher) isSource(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// maybeWatchNewDir registers a newly created directory so files under it are seen.
func (w *Watcher) maybeWatchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if _, skip := w.skipDirs[filepath.Base(path)]; skip {
		return
	}
	w.addWatchDir(path)
}

func (w *Watcher) addWatchTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root {
			if _, skip := w.skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
		}
		w.addWatchDir(path)
		return nil
	})
}

func (w *Watcher) addWatchDir(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watched[path]; ok {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("watch add failed", "path", path, "error", err)
		return
	}
	w.watched[path] = struct{}{}
}
