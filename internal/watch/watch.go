// Package watch reloads a catalog file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Handler receives every successfully loaded snapshot.
type Handler func(snap *catalog.Snapshot)

// Watcher watches a single catalog file.
type Watcher struct {
	path     string
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for path that calls handler after each reload.
func New(path string, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Load reads the catalog file once and hands it to the handler.
func (w *Watcher) Load() error {
	snap, err := catalog.LoadFile(w.path)
	if err != nil {
		return err
	}
	w.handler(snap.WithDefaultConnection())
	return nil
}

// Run blocks until ctx is done, reloading the file after each change.
// The parent directory is watched rather than the file, since editors
// commonly replace files by renaming over them.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("watching catalog file", slog.String("path", abs))

	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.Load(); err != nil {
				// keep the previous snapshot until the file parses again
				w.logger.Warn("catalog reload failed", slog.String("error", err.Error()))
				continue
			}
			w.logger.Debug("catalog reloaded", slog.String("path", abs))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
