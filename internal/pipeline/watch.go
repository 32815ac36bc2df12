package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/appserve/internal/logfields"
)

// debouncer coalesces bursts of triggers into one call after delay.
type debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	fire    func()
	stopped bool
}

func newDebouncer(delay time.Duration, fire func()) *debouncer {
	return &debouncer{delay: delay, fire: fire}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// watcher feeds filesystem events from source directories to a debouncer.
type watcher struct {
	fs       *fsnotify.Watcher
	ignore   string // absolute output directory
	debounce *debouncer
	done     chan struct{}
	once     sync.Once
}

func newWatcher(dirs []string, outputPath string, d *debouncer) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	ignore, err := filepath.Abs(outputPath)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	w := &watcher{fs: fw, ignore: ignore, debounce: d, done: make(chan struct{})}
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolve watch dir: %w", err)
		}
		if st, err := os.Stat(abs); err != nil || !st.IsDir() {
			slog.Warn("Watch directory not found", logfields.Path(abs))
			continue
		}
		w.addDirsRecursive(abs)
	}
	return w, nil
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || w.inOutput(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.debounce.trigger()
}

func (w *watcher) inOutput(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.ignore || strings.HasPrefix(abs, w.ignore+string(filepath.Separator))
}

func (w *watcher) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules" || w.inOutput(path)) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// close stops the watcher and any pending debounced trigger.
func (w *watcher) close() {
	w.once.Do(func() {
		w.debounce.stop()
		close(w.done)
		_ = w.fs.Close()
	})
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
