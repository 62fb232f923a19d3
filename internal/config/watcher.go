package config

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a file for content changes and calls a callback when it
// is modified. Readback never hot-applies changes (the phrasebook is
// immutable once loaded), so the callback is a notification hook: the app
// uses it to tell operators a restart is needed to pick up edits.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(path string)

	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	mu        sync.Mutex
	lastMtime time.Time
	lastHash  [sha256.Size]byte
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

// NewWatcher creates a file watcher. It captures the file's initial state
// immediately and starts polling in a background goroutine.
func NewWatcher(path string, onChange func(path string), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	hash, mtime, err := w.hashFile()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial read: %w", err)
	}
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Stop stops the file watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// poll runs in a background goroutine, checking the file periodically.
func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check compares the file against its last known state. The callback fires
// only when the content hash differs; touching the file without changing it
// is ignored.
func (w *Watcher) check() {
	// Quick mtime check first to avoid hashing unchanged files.
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("file watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	hash, newMtime, err := w.hashFile()
	if err != nil {
		slog.Warn("file watcher: cannot read file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	changed := hash != w.lastHash
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	if !changed {
		// File was touched but content is identical.
		return
	}

	// Invoke the callback outside the lock.
	if w.onChange != nil {
		w.onChange(w.path)
	}
}

// hashFile returns the SHA-256 of the file's content and its modification
// time.
func (w *Watcher) hashFile() ([sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return zeroHash, time.Time{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return zeroHash, time.Time{}, err
	}
	return sha256.Sum256(data), info.ModTime(), nil
}
