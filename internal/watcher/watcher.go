// Package watcher re-imports the seed file when it changes on disk.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func(ctx context.Context) error
	debounce time.Duration
	log      zerolog.Logger
	ready    chan struct{}
}

// New creates a new file watcher. onChange runs on the watching goroutine,
// so calls never overlap.
func New(path string, onChange func(ctx context.Context) error, log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		log:      log.With().Str("component", "watcher").Str("path", path).Logger(),
		ready:    make(chan struct{}),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Ready is closed once the watch is registered
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Watch starts watching the file for changes.
// It blocks until the context is cancelled or the watcher fails to start.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory containing the file
	// This handles cases where the file is replaced (e.g., by editors)
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)

	if err := watcher.Add(dir); err != nil {
		return err
	}
	close(w.ready)

	w.log.Info().Msg("watching seed file for changes")

	debounce := time.NewTimer(w.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// Debounce rapid changes
				debounce.Reset(w.debounce)
			}

		case <-debounce.C:
			w.log.Info().Msg("seed file changed")
			if err := w.onChange(ctx); err != nil {
				w.log.Warn().Err(err).Msg("seed reload failed; keeping current topology")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}
