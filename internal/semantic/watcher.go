package semantic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wballard/swissarmyhammer/internal/logger"
)

var watchedExts = map[string]bool{
	".rs": true, ".py": true, ".ts": true, ".tsx": true,
	".js": true, ".jsx": true, ".mjs": true, ".dart": true,
}

var skipDirs = []string{"vendor", ".git", "node_modules", "target", "dist", "build"}

// Watcher monitors a root directory for source changes and triggers
// debounced reindexing through an Indexer, the same debounce-map-plus-
// ticker shape as the teacher's pkg/index/watcher.go.
type Watcher struct {
	indexer    *Indexer
	root       string
	fsWatcher  *fsnotify.Watcher
	debounceMs int

	running bool
	stopCh  chan struct{}
	mu      sync.RWMutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
}

// NewWatcher creates a file system watcher rooted at root.
func NewWatcher(indexer *Indexer, root string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		indexer:    indexer,
		root:       root,
		fsWatcher:  fsWatcher,
		debounceMs: indexer.cfg.DebounceMs,
		stopCh:     make(chan struct{}),
		pending:    make(map[string]time.Time),
	}, nil
}

// Start begins watching. Idempotent.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return fmt.Errorf("add directories: %w", err)
	}

	go w.processEvents()
	go w.processDebounced()

	return nil
}

// Stop stops the watcher. Idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsWatcher.Close()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			logger.GetLogger().Warn().Err(err).Msg("semantic: cannot watch directory " + path)
		}
		return nil
	})
}

func shouldSkipDir(rel string) bool {
	for _, d := range skipDirs {
		if rel == d || strings.HasPrefix(rel, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !watchedExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Warn().Err(err).Msg("semantic: watcher error")
		}
	}
}

func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPendingFiles()
		}
	}
}

func (w *Watcher) processPendingFiles() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	debounce := time.Duration(w.debounceMs) * time.Millisecond

	for path, ts := range w.pending {
		if now.Sub(ts) < debounce {
			continue
		}
		delete(w.pending, path)

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if _, err := w.indexer.IndexFile(context.Background(), path); err != nil {
			logger.GetLogger().Warn().Err(err).Msg("semantic: error indexing " + path)
		}
	}
}
