package poller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_StartStop(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

func TestWatcher_SyncTracksFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	b := filepath.Join(dir, "b.sql")

	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Sync([]string{a, b}); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if w.Files() != 2 || len(w.dirs) != 1 {
		t.Errorf("files=%d dirs=%d, want 2/1", w.Files(), len(w.dirs))
	}

	if err := w.Sync([]string{b}); err != nil {
		t.Fatal(err)
	}
	if w.Files() != 1 || w.dirs[dir] != 1 {
		t.Errorf("files=%d dirs=%v", w.Files(), w.dirs)
	}

	if err := w.Sync(nil); err != nil {
		t.Fatal(err)
	}
	if w.Files() != 0 || len(w.dirs) != 0 {
		t.Errorf("files=%d dirs=%v, want empty", w.Files(), w.dirs)
	}
}

func TestWatcher_SyncMissingDirectory(t *testing.T) {
	w, _ := NewWatcher()
	defer w.Stop()

	missing := filepath.Join(t.TempDir(), "nope", "a.sql")
	if err := w.Sync([]string{missing}); err == nil {
		t.Error("Sync() should report an unwatchable directory")
	}
	if w.Files() != 0 {
		t.Errorf("Files() = %d, want 0", w.Files())
	}
}

func TestWatcher_ReportsWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.sql")
	other := filepath.Join(dir, "other.sql")
	if err := os.WriteFile(watched, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Sync([]string{watched}); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(watched, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == other {
				t.Fatalf("unexpected event for unwatched file: %+v", ev)
			}
			if ev.Path == watched {
				return
			}
		case <-timeout:
			t.Fatal("Timeout waiting for event on watched file")
		}
	}
}

func TestTriggerOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.sql")
	if err := os.WriteFile(path, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	w, _ := NewWatcher()
	_ = w.Sync([]string{path})
	_ = w.Start()
	defer w.Stop()

	l, _ := New(Config{Interval: time.Hour}, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go TriggerOnChange(ctx, w, l, nil)

	if err := os.WriteFile(path, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(l.trigger) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("file change did not trigger the loop")
}
