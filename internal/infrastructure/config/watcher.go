package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/wardenhq/warden/internal/infrastructure/logging"
)

// debounceDelay coalesces the burst of events a single editor save produces.
const debounceDelay = 500 * time.Millisecond

// Watcher reloads the configuration when the file changes on disk and hands
// every valid result to the apply callback. An invalid file is logged and the
// previous configuration stays in force.
type Watcher struct {
	fs    afero.Fs
	path  string
	apply func(*Config)
	log   *logging.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(fs afero.Fs, path string, log *logging.Logger, apply func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	return &Watcher{
		fs:      fs,
		path:    path,
		apply:   apply,
		log:     log,
		watcher: fsw,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. Editors replace files on save, so the parent
// directory is watched and events are filtered by file name.
func (w *Watcher) Start() error {
	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve config path %s", w.path)
	}
	dir := filepath.Dir(absPath)
	name := filepath.Base(absPath)

	go w.loop(name)

	if err := w.watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch config directory %s", dir)
	}
	return nil
}

// Stop ends watching and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop(name string) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if base != name || strings.HasSuffix(base, "~") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher error", logging.Fields{"error": err.Error()})
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.fs, w.path)
	if err != nil {
		w.log.Error("config reload failed, keeping previous configuration", logging.Fields{
			"path":  w.path,
			"error": err.Error(),
		})
		return
	}
	w.log.Info("configuration reloaded", logging.Fields{"path": w.path})
	w.apply(cfg)
}
