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

const defaultPollInterval = 5 * time.Second

// Watcher re-reads a config file on an interval and hands every valid change
// to a callback as (old, next). Broken edits are logged and skipped, so the
// server keeps running on the last good configuration.
type Watcher struct {
	path     string
	every    time.Duration
	onChange func(old, next *Config)
	overlay  func(*Config) error

	mu   sync.Mutex
	last snapshot

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// snapshot is one accepted read of the file.
type snapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. Default 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.every = d
		}
	}
}

// WithOverlay applies fn to each parsed file before validation, so
// environment overrides survive a reload.
func WithOverlay(fn func(*Config) error) WatcherOption {
	return func(w *Watcher) { w.overlay = fn }
}

// NewWatcher reads path once, failing when it is missing or invalid, then
// watches it until Stop.
func NewWatcher(path string, onChange func(old, next *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		every:    defaultPollInterval,
		onChange: onChange,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.last = snap

	go w.loop()
	return w, nil
}

// Current returns the last accepted configuration.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Stop ends the watch and waits for an in-progress callback to return. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.stopped
}

func (w *Watcher) loop() {
	defer close(w.stopped)
	t := time.NewTicker(w.every)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.poll()
		}
	}
}

// poll accepts the file when its content changed and it still validates.
func (w *Watcher) poll() {
	fi, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config: watched file unavailable", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := fi.ModTime().Equal(w.last.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	snap, err := w.read()
	if err != nil {
		slog.Warn("config: keeping previous configuration", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	old := w.last
	w.last = snap
	w.mu.Unlock()
	// A touch without an edit only moves the mtime.
	if snap.sum == old.sum {
		return
	}

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old.cfg, snap.cfg)
	}
}

func (w *Watcher) read() (snapshot, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := decode(bytes.NewReader(data), w.overlay)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: fi.ModTime()}, nil
}
