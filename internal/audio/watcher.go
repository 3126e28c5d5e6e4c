package audio

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher drops cached sounds when their files change on disk.
type Watcher struct {
	mu      sync.Mutex
	logger  *slog.Logger
	player  *Player
	fsw     *fsnotify.Watcher
	files   map[string]struct{}
	dirs    map[string]bool
	done    chan struct{}
	stopped chan struct{}
	running bool
}

// NewWatcher creates a Watcher for player's cache.
func NewWatcher(player *Player, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger: logger,
		player: player,
		files:  make(map[string]struct{}),
		dirs:   make(map[string]bool),
	}
}

// Watch adds a file. Its directory is watched so replacing the file is seen.
func (w *Watcher) Watch(path string) {
	if path == "" {
		return
	}
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.files[path] = struct{}{}
	dir := filepath.Dir(path)
	if _, ok := w.dirs[dir]; !ok {
		w.dirs[dir] = false
	}
	if w.running {
		w.addDirsLocked()
	}
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.done = make(chan struct{})
	w.stopped = make(chan struct{})
	w.running = true
	w.addDirsLocked()

	go w.loop(fsw, w.done, w.stopped)
	return nil
}

func (w *Watcher) addDirsLocked() {
	for dir, added := range w.dirs {
		if added {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch sound directory", "dir", dir, "error", err)
			continue
		}
		w.dirs[dir] = true
	}
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			path := filepath.Clean(event.Name)
			w.mu.Lock()
			_, watched := w.files[path]
			w.mu.Unlock()
			if watched {
				w.logger.Debug("sound file changed, invalidating cache", "path", path)
				w.player.InvalidateCache(path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sound watcher error", "error", err)

		case <-done:
			return
		}
	}
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	fsw, stopped := w.fsw, w.stopped
	for dir := range w.dirs {
		w.dirs[dir] = false
	}
	w.mu.Unlock()

	<-stopped
	_ = fsw.Close()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
