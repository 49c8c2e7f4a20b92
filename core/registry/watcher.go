package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/shapekit/core/shape"
)

// Watcher reloads a registry from a definitions directory when files in it
// change. A failed reload keeps the previous shapes.
type Watcher struct {
	reg      *Registry
	dir      string
	logger   zerolog.Logger
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	onReload []func(names []string)
	onError  []func(err error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(reg *Registry, dir string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		reg:      reg,
		dir:      dir,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}
}

// OnReload registers a callback invoked with the shape names after each
// successful reload.
func (w *Watcher) OnReload(fn func(names []string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// OnError registers a callback invoked when a reload fails.
func (w *Watcher) OnError(fn func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = append(w.onError, fn)
}

// Reload parses the directory and replaces the registry's loaded shapes.
func (w *Watcher) Reload() error {
	w.logger.Info().Str("dir", w.dir).Msg("reloading shape definitions")

	defs, err := shape.ParseDir(w.dir)
	if err == nil {
		err = w.reg.Replace(defs)
	}
	if err != nil {
		w.logger.Error().Err(err).Msg("definition reload failed, keeping old shapes")
		w.mu.Lock()
		callbacks := append([]func(error){}, w.onError...)
		w.mu.Unlock()
		for _, fn := range callbacks {
			fn(err)
		}
		return fmt.Errorf("reload definitions: %w", err)
	}

	names := w.reg.List()
	w.mu.Lock()
	callbacks := append([]func([]string){}, w.onReload...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(names)
	}

	w.logger.Info().Int("shapes", len(names)).Msg("shape definitions reloaded")
	return nil
}

// Start watches the directory tree. Subdirectories present at start are
// watched too.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory %s: %w", w.dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.watchLoop(watcher)

	w.logger.Info().Str("dir", w.dir).Msg("watching shape definitions for changes")
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) watchLoop(watcher *fsnotify.Watcher) {
	// Editors emit bursts of events per save; reload once the burst settles.
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !shape.IsDefinitionFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("definition file changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.Reload(); err != nil {
				w.logger.Error().Err(err).Msg("file watch reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-w.stopCh:
			timer.Stop()
			return
		}
	}
}
