// Package watcher notices hand edits of the connection file.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is used when no debounce is configured
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches a single file and signals once per burst of changes
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
	changes  chan struct{}
	done     chan struct{}
}

// New creates a watcher for path
func New(path string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Start begins watching and returns the notification channel. At most one
// notification is buffered; further changes before it is read are folded
// into it. Watching stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	// Watch the directory rather than the file: editors and our own saves
	// replace the file, which would drop a watch on the file itself.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info("Watching connection file", zap.String("path", w.path), zap.Duration("debounce", w.debounce))
	go w.loop(ctx, fsw)
	return w.changes, nil
}

// Done is closed once the watcher has stopped
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	filename := filepath.Base(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.logger.Debug("Connection file changed", zap.String("path", w.path))
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
