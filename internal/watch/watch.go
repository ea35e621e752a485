// Package watch reports file changes on disk so readers can reload
// properties files and CSV seed directories without a restart.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher watches a set of files and directories. A file target fires when
// that file changes; a directory target fires when anything inside it does.
// Parents of file targets are watched so editors that save by rename are
// still seen.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	files    map[string]string // watched file -> target
	dirs     map[string]string // watched dir -> target
	debounce time.Duration
}

// New creates a Watcher for paths. Non-existent file targets are allowed as
// long as their directory exists.
func New(paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]string),
		dirs:     make(map[string]string),
		debounce: defaultDebounce,
	}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// SetDebounce changes the quiet period before a change is reported.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d > 0 {
		w.debounce = d
	}
}

func (w *Watcher) add(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", p, err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		if err := w.fsw.Add(abs); err != nil {
			return fmt.Errorf("watch %s: %w", abs, err)
		}
		w.dirs[abs] = p
		return nil
	}
	dir := filepath.Dir(abs)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.files[abs] = p
	return nil
}

// target maps an event path to the target it belongs to.
func (w *Watcher) target(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	if t, ok := w.files[abs]; ok {
		return t, true
	}
	if t, ok := w.dirs[filepath.Dir(abs)]; ok {
		return t, true
	}
	return "", false
}

// Run delivers changed targets to onChange until ctx is done, then closes
// the underlying watcher. onChange runs on the Run goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func(target string)) error {
	defer w.fsw.Close()

	w.mu.Lock()
	debounce := w.debounce
	w.mu.Unlock()

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if t, ok := w.target(event.Name); ok {
				pending[t] = time.Now()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch errors channel closed")
			}
			slog.WarnContext(ctx, "File watcher error", "error", err)

		case now := <-ticker.C:
			for t, seen := range pending {
				if now.Sub(seen) < debounce {
					continue
				}
				delete(pending, t)
				slog.DebugContext(ctx, "Watched path changed", "path", t)
				onChange(t)
			}
		}
	}
}
