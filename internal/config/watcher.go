package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fingerprint identifies one on-disk revision of the config file.
type fingerprint struct {
	hash  [sha256.Size]byte
	mtime time.Time
}

// Watcher reloads the config file when its content changes and hands the old
// and new config to a callback. It polls on an interval instead of using
// inotify: the file may live on a network mount, and a few seconds of
// latency on a reload is fine. An update that fails to parse or validate is
// logged and ignored; the previous config stays active.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	current *Config
	seen    fingerprint
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it for changes in a
// background goroutine. The initial load must succeed. Call [Watcher.Stop]
// to end the goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.seen = cfg, fp

	go func() {
		tick := time.NewTicker(w.interval)
		defer tick.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-tick.C:
				w.check()
			}
		}
	}()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) check() {
	// mtime probe first, so an unchanged file costs one stat per tick.
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, fp, err := w.read()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if fp.hash == w.seen.hash {
		// Touched but identical content.
		w.seen.mtime = fp.mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.seen = cfg, fp
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		// Outside the lock so the callback can call Current().
		w.onChange(old, cfg)
	}
}

// read loads and validates the file at w.path and fingerprints its content.
func (w *Watcher) read() (*Config, fingerprint, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}
	return cfg, fingerprint{hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
