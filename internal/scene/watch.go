package scene

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a scene file into a Manager whenever it changes on disk
type Watcher struct {
	path    string
	manager *Manager
	bodies  BodyAllocator
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Watch loads path into m once and then keeps it in sync. The containing
// directory is watched so editors that replace the file on save are handled.
func Watch(path string, m *Manager, bodies BodyAllocator, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve scene path: %w", err)
	}

	s, err := LoadFile(abs, bodies)
	if err != nil {
		return nil, err
	}
	m.SetScene(s)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("could not watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:    abs,
		manager: m,
		bodies:  bodies,
		logger:  logger,
		watcher: fw,
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			switch {
			case event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Rename == fsnotify.Rename:
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("scene watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	if err := w.Reload(); err != nil {
		// keep the previous scene; the file may be mid-write
		w.logger.Warn("scene reload failed", "path", w.path, "err", err)
	}
}

// Reload reads the file now and hands the result to the manager. On error the
// manager keeps its current scene.
func (w *Watcher) Reload() error {
	s, err := LoadFile(w.path, w.bodies)
	if err != nil {
		return err
	}
	w.logger.Info("scene reloaded", "path", w.path, "nodes", len(s.Nodes))
	w.manager.SetScene(s)
	return nil
}

// Close stops watching and waits for the event loop to exit
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
