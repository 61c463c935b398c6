package weather

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of editor writes into one reload.
const DefaultDebounce = 300 * time.Millisecond

// FileWatcher reloads a Table whenever its YAML file changes.
// The parent directory is watched so atomic renames by editors are seen.
type FileWatcher struct {
	path     string
	table    *Table
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	onReload func(cities []string, err error)

	mu     sync.Mutex
	timer  *time.Timer
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFileWatcher creates a watcher for path that updates table.
func NewFileWatcher(path string, table *Table, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve weather table path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		path:     abs,
		table:    table,
		watcher:  watcher,
		debounce: DefaultDebounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// OnReload registers a callback invoked after every reload attempt.
// Must be called before Start.
func (fw *FileWatcher) OnReload(fn func(cities []string, err error)) {
	fw.onReload = fn
}

// Start begins watching.
func (fw *FileWatcher) Start() error {
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("watch %s: %w", fw.path, err)
	}

	fw.wg.Add(1)
	go fw.eventLoop()

	fw.logger.Info("weather table watcher started", "path", fw.path)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	fw.wg.Wait()
	return fw.watcher.Close()
}

func (fw *FileWatcher) eventLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fw.schedule()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("weather table watcher error", "error", err)
		}
	}
}

// schedule restarts the debounce timer.
func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.reload)
}

func (fw *FileWatcher) reload() {
	if fw.ctx.Err() != nil {
		return
	}

	reports, err := LoadFile(fw.path)
	if err != nil {
		// Keep serving the previous table.
		fw.logger.Error("weather table reload failed", "path", fw.path, "error", err)
	} else {
		fw.table.Replace(reports)
		fw.logger.Info("weather table reloaded", "path", fw.path, "cities", len(reports))
	}

	if fw.onReload != nil {
		fw.onReload(fw.table.Cities(), err)
	}
}
