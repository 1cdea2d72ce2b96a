//go:build unix

package filehandler

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/sqlines/studio/internal/tabs"
)

type reconcileOutcome struct {
	res Result
	err error
}

// blockingReconcile points tab index's source path at a FIFO and starts a
// Reconcile that blocks inside the read. It returns once the reader is
// parked, with the write end open, and a channel delivering the outcome.
func blockingReconcile(ctx context.Context, t *testing.T, store *tabs.Store, h *Handler, index int) (*os.File, <-chan reconcileOutcome) {
	t.Helper()
	fifo := filepath.Join(t.TempDir(), "external.sql")
	if err := syscall.Mkfifo(fifo, 0o644); err != nil {
		t.Skipf("mkfifo not available: %v", err)
	}
	if err := store.SetSourceFilePath(fifo, index); err != nil {
		t.Fatal(err)
	}

	results := make(chan reconcileOutcome, 1)
	go func() {
		res, err := h.Reconcile(ctx)
		results <- reconcileOutcome{res, err}
	}()

	// Opening the write end blocks until Reconcile opens the read end.
	w, err := os.OpenFile(fifo, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("Failed to open fifo for writing: %v", err)
	}
	return w, results
}

func finishWrite(t *testing.T, w *os.File, text string) {
	t.Helper()
	if _, err := w.WriteString(text); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReconcile_TabRemovedDuringRead(t *testing.T) {
	store := tabs.NewStore()
	_ = store.OpenTab(0)
	_ = store.OpenTab(1)
	_ = store.SetSourceText("kept", 1)
	h := newHandler(t, store)

	w, results := blockingReconcile(context.Background(), t, store, h, 0)
	if err := store.RemoveTab(0); err != nil {
		t.Fatal(err)
	}
	finishWrite(t, w, "EXTERNAL")
	out := <-results

	if out.err != nil {
		t.Fatalf("Reconcile() failed: %v", out.err)
	}
	if out.res.Modified != 0 {
		t.Errorf("Modified = %d, want 0", out.res.Modified)
	}
	tab, _ := store.Tab(0)
	if tab.SourceText != "kept" {
		t.Errorf("surviving tab SourceText = %q, want %q", tab.SourceText, "kept")
	}
	if src, _, _ := h.Modified(0); src != 0 {
		t.Errorf("surviving tab source slot = %d, want 0", src)
	}
}

func TestReconcile_TabInsertedDuringRead(t *testing.T) {
	store := tabs.NewStore()
	_ = store.OpenTab(0)
	h := newHandler(t, store)

	// The FIFO tab shifts to index 1, where the pass would read it again;
	// cancelling stops the pass after the interrupted tab.
	ctx, cancel := context.WithCancel(context.Background())
	w, results := blockingReconcile(ctx, t, store, h, 0)
	if err := store.OpenTab(0); err != nil {
		t.Fatal(err)
	}
	cancel()
	finishWrite(t, w, "EXTERNAL")
	out := <-results

	if out.res.Modified != 0 {
		t.Errorf("Modified = %d, want 0", out.res.Modified)
	}
	inserted, _ := store.Tab(0)
	if inserted.SourceText != "" || inserted.SourceFilePath != "" {
		t.Errorf("inserted tab = %+v, want it untouched", inserted)
	}
	if src, _, _ := h.Modified(0); src != 0 {
		t.Errorf("inserted tab source slot = %d, want 0", src)
	}
	if n := len(h.Snapshot().SourceModified); n != 2 {
		t.Errorf("slots = %d, want 2", n)
	}
}
