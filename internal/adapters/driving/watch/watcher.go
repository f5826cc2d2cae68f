// Package watch feeds extractor output into the ingest service as files
// appear or change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce coalesces bursts of writes to the same file.
	Debounce time.Duration

	// OnIngest is called after each ingest attempt. Optional.
	OnIngest func(path string, report *domain.IngestReport, err error)
}

// Watcher ingests .json and .jsonl files under the watched paths.
// Directories are watched recursively; subdirectories created later are picked up.
type Watcher struct {
	ingest driving.IngestService
	fs     *fsnotify.Watcher
	opts   Options

	mu sync.Mutex
	// files restricts a directory watch to explicitly named files.
	files   map[string]bool
	dirs    map[string]bool
	pending map[string]time.Time
}

// New creates a watcher. Close must be called when done.
func New(ingest driving.IngestService, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{
		ingest:  ingest,
		fs:      fw,
		opts:    opts,
		files:   map[string]bool{},
		dirs:    map[string]bool{},
		pending: map[string]time.Time{},
	}, nil
}

// Matches reports whether path looks like extractor output.
func Matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".jsonl":
		return true
	default:
		return false
	}
}

// Add watches a file or a directory tree.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	if !info.IsDir() {
		w.mu.Lock()
		w.files[abs] = true
		w.mu.Unlock()
		return w.watchDir(filepath.Dir(abs), false)
	}
	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watchDir(p, true)
	})
}

func (w *Watcher) watchDir(dir string, whole bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if whole {
		w.dirs[dir] = true
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Debug("Watching %s", dir)
	return nil
}

// wanted reports whether an event on path should trigger an ingest.
func (w *Watcher) wanted(path string) bool {
	if !Matches(path) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path] || w.dirs[filepath.Dir(path)]
}

// Run processes events until ctx is cancelled. Pending files are flushed
// on a tick of half the debounce interval.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			parentWatched := w.dirs[filepath.Dir(path)]
			w.mu.Unlock()
			if parentWatched {
				if err := w.Add(path); err != nil {
					logger.Warn("%v", err)
				}
			}
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !w.wanted(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// due removes and returns the pending paths quiet for at least the debounce interval.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.opts.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for _, path := range w.due(now) {
		report, err := w.ingest.IngestFile(ctx, path)
		switch {
		case err != nil && errors.Is(err, fs.ErrNotExist):
			logger.Debug("Skipping %s: removed before ingest", path)
			continue
		case err != nil:
			logger.Warn("ingest %s: %v", path, err)
		default:
			logger.Info("Ingested %s: %d accepted, %d skipped", path, report.Accepted, report.Skipped)
		}
		if w.opts.OnIngest != nil {
			w.opts.OnIngest(path, report, err)
		}
	}
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
