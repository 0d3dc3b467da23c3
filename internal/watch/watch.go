// Package watch recompiles a project whenever a primitive or constitution
// file changes underneath it, for "apm compile --watch".
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"apm_modules":  true,
}

// Watcher recompiles basePath via onChange whenever a file under it is
// created, written, removed, or renamed, debounced so a burst of saves
// triggers one recompile instead of many.
type Watcher struct {
	basePath string
	onChange func() error
	onError  func(error)
	debounce time.Duration

	fs *fsnotify.Watcher

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
}

// New creates a Watcher. onChange is called (synchronously, from the
// debounce timer goroutine) after a 300ms quiet period following the last
// detected change. onError receives both fsnotify errors and onChange's
// own returned error; it may be nil to discard them.
func New(basePath string, onChange func() error, onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		basePath: basePath,
		onChange: onChange,
		onError:  onError,
		debounce: 300 * time.Millisecond,
		fs:       fsw,
	}, nil
}

// Run adds basePath (recursively) to the watch set and blocks processing
// events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.basePath); err != nil {
		return err
	}
	defer func() { _ = w.fs.Close() }()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !shouldIgnoreDir(filepath.Base(event.Name)) {
			_ = w.fs.Add(event.Name)
		}
	}
	w.schedule()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	if err := w.onChange(); err != nil && w.onError != nil {
		w.onError(err)
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if shouldIgnoreDir(name) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func shouldIgnoreDir(name string) bool {
	if ignoredDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".apm" && name != ".github" && name != ".specify"
}
