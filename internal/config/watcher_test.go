package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vhfnav/readback/internal/config"
)

func TestWatcher_DetectsContentChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "voice: tower\n")

	changed := make(chan string, 1)
	w, err := config.NewWatcher(cfgPath, func(path string) {
		select {
		case changed <- path:
		default:
		}
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, cfgPath, "voice: approach\n")
	// Force a visible mtime change on filesystems with coarse timestamps.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(cfgPath, future, future); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}

	select {
	case path := <-changed:
		if path != cfgPath {
			t.Errorf("callback path = %q, want %q", path, cfgPath)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change callback was not invoked within timeout")
	}
}

func TestWatcher_IgnoresTouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "voice: tower\n")

	callCount := 0
	var mu sync.Mutex
	w, err := config.NewWatcher(cfgPath, func(string) {
		mu.Lock()
		callCount++
		mu.Unlock()
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Same bytes, newer mtime.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(cfgPath, future, future); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if callCount != 0 {
		t.Errorf("callback should not fire for touch-only, got %d calls", callCount)
	}
}

func TestWatcher_MissingFileFailsFast(t *testing.T) {
	t.Parallel()
	_, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "voice: tower\n")

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	for range 3 {
		w.Stop()
	}
}

func TestWatcher_NoCallbackAfterStop(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "voice: tower\n")

	callCount := 0
	var mu sync.Mutex
	w, err := config.NewWatcher(cfgPath, func(string) {
		mu.Lock()
		callCount++
		mu.Unlock()
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()

	writeFile(t, cfgPath, "voice: ground\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(cfgPath, future, future); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if callCount != 0 {
		t.Errorf("stopped watcher should not invoke callback, got %d calls", callCount)
	}
}
