package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a [Store] in sync with a story directory: when a story file
// is written, created, removed, or renamed, its cache entry is invalidated
// so the next load re-fetches and re-validates; when the manifest changes,
// source discovery re-runs. Intended for development setups where stories
// are edited while the server runs.
type Watcher struct {
	store *Store
	fsw   *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher starts watching dir on behalf of store. Call [Watcher.Stop]
// when done.
func NewWatcher(store *Store, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		store: store,
		fsw:   fsw,
		done:  make(chan struct{}),
	}
	go w.run()
	slog.Info("watching story directory", "dir", dir)
	return w, nil
}

// Stop stops the watcher and releases its OS resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}

// run consumes fsnotify events until stopped.
func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("story watcher error", "err", err)
		}
	}
}

// handle reacts to one file event.
func (w *Watcher) handle(ev fsnotify.Event) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	if ev.Op&relevant == 0 {
		return
	}

	ref := filepath.Base(ev.Name)
	if !strings.HasSuffix(ref, ".json") {
		return
	}

	if ref == ManifestName {
		if w.store.DiscoverSources(context.Background()) {
			slog.Info("story manifest changed; sources rediscovered")
		}
		return
	}

	w.store.Invalidate(ref)
	slog.Debug("story file changed; cache entry invalidated", "ref", ref, "op", ev.Op.String())
}
