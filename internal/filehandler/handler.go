// Package filehandler keeps editor tabs consistent with the files behind
// them.
//
// A Handler mirrors the tab store with one modification-time slot per tab
// side. Reconcile compares those slots against the filesystem and pushes
// external edits and deletions into the store. Open and save operations go
// through the Handler so the slots and the recent files list stay in step.
package filehandler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/metrics"
	"github.com/sqlines/studio/internal/tabs"
)

// Side selects the source or target half of a tab.
type Side int

const (
	SourceSide Side = iota
	TargetSide
)

// String returns "source" or "target".
func (s Side) String() string {
	if s == SourceSide {
		return "source"
	}
	return "target"
}

func (s Side) pathField() tabs.Field {
	if s == SourceSide {
		return tabs.FieldSourceFilePath
	}
	return tabs.FieldTargetFilePath
}

func (s Side) textField() tabs.Field {
	if s == SourceSide {
		return tabs.FieldSourceText
	}
	return tabs.FieldTargetText
}

// Config holds Handler configuration.
type Config struct {
	// Logger for reconciliation activity (default: no-op)
	Logger *zap.Logger
}

// DefaultConfig returns a configuration that discards logs.
func DefaultConfig() *Config {
	return &Config{Logger: zap.NewNop()}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Modified int
	Deleted  int
	Errors   int
}

// Handler tracks file modification times for every tab and the list of
// recently opened files.
type Handler struct {
	store  *tabs.Store
	logger *zap.Logger

	// opMu serializes whole operations (reconcile, open, save, clear).
	// It is never taken by store listeners.
	opMu sync.Mutex

	// mu guards the fields below. It is never held across a store mutation.
	mu              sync.Mutex
	sourceModified  []int64
	targetModified  []int64
	recent          []string
	nextID          ListenerID
	recentListeners []recentRegistration

	storeListener tabs.ListenerID
}

// New creates a Handler for store, reading the current modification time
// of every file already open in it.
func New(store *tabs.Store, config *Config) (*Handler, error) {
	return Restore(store, Snapshot{}, config)
}

// Restore creates a Handler from a checkpoint. If the snapshot's slots do not
// line up with the store's tabs, they are rebuilt from the filesystem and a
// warning is logged. The recent files list is always restored.
//
// The store may already be shared: the tab count and the subscription are
// taken together, so tabs opened or closed concurrently stay aligned.
func Restore(store *tabs.Store, snap Snapshot, config *Config) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		store:  store,
		logger: logger,
		recent: dedupe(snap.RecentFiles),
	}

	// Held until the slots exist, so an insertion racing with the
	// subscription waits in onTabsChange and then lands on built slots.
	h.mu.Lock()
	id, current := store.WatchTabs(h.onTabsChange)
	h.storeListener = id
	n := len(current.Tabs)
	if len(snap.SourceModified) == n && len(snap.TargetModified) == n {
		h.sourceModified = append([]int64(nil), snap.SourceModified...)
		h.targetModified = append([]int64(nil), snap.TargetModified...)
	} else {
		if len(snap.SourceModified) != 0 || len(snap.TargetModified) != 0 {
			logger.Warn("file state does not match tabs, rescanning",
				zap.Int("tabs", n),
				zap.Int("source_slots", len(snap.SourceModified)),
				zap.Int("target_slots", len(snap.TargetModified)))
		}
		h.sourceModified = make([]int64, n)
		h.targetModified = make([]int64, n)
		for i, tab := range current.Tabs {
			h.sourceModified[i] = modTime(tab.SourceFilePath)
			h.targetModified[i] = modTime(tab.TargetFilePath)
		}
	}
	h.mu.Unlock()

	metrics.SetRecentFiles(len(h.recent))
	return h, nil
}

// Close detaches the Handler from the store.
func (h *Handler) Close() {
	h.store.RemoveListener(h.storeListener)
}

// onTabsChange keeps the slots aligned with the store's tabs.
func (h *Handler) onTabsChange(change tabs.TabsChange) {
	switch change.Type {
	case tabs.TabAdded:
		var src, dst int64
		if tab, err := h.store.Tab(change.Index); err == nil {
			src = modTime(tab.SourceFilePath)
			dst = modTime(tab.TargetFilePath)
		}
		h.mu.Lock()
		if change.Index <= len(h.sourceModified) {
			h.sourceModified = insertAt(h.sourceModified, change.Index, src)
			h.targetModified = insertAt(h.targetModified, change.Index, dst)
		}
		h.mu.Unlock()
	case tabs.TabRemoved:
		h.mu.Lock()
		if change.Index < len(h.sourceModified) {
			h.sourceModified = append(h.sourceModified[:change.Index], h.sourceModified[change.Index+1:]...)
			h.targetModified = append(h.targetModified[:change.Index], h.targetModified[change.Index+1:]...)
		}
		h.mu.Unlock()
	}
	metrics.SetOpenTabs(h.store.CountTabs())
}

// Reconcile runs one pass over every tab, source side then target side:
//   - a path whose file has disappeared is cleared and its slot reset to 0;
//     the text is left as it is
//   - a file whose modification time differs from the slot is re-read into
//     the tab's text and the slot updated
//   - an empty path with a non-zero slot resets the slot
//
// Read failures are logged and skip only the affected side. The returned
// error is non-nil only when ctx is cancelled between tabs.
func (h *Handler) Reconcile(ctx context.Context) (Result, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	var res Result
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tab, err := h.store.Tab(i)
		if err != nil {
			break
		}
		h.reconcileSide(i, SourceSide, tab.SourceFilePath, &res)
		h.reconcileSide(i, TargetSide, tab.TargetFilePath, &res)
	}

	if res.Modified > 0 || res.Deleted > 0 || res.Errors > 0 {
		h.logger.Info("reconciled tabs with filesystem",
			zap.Int("modified", res.Modified),
			zap.Int("deleted", res.Deleted),
			zap.Int("errors", res.Errors))
	}
	return res, nil
}

func (h *Handler) reconcileSide(i int, side Side, path string, res *Result) {
	tracked, ok := h.slot(side, i)
	if !ok {
		return
	}

	if path == "" {
		if tracked != 0 {
			_, _ = h.store.SetIf(side.pathField(), "", i, side.pathField(), "", func() {
				h.setSlot(side, i, 0)
			})
		}
		return
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		ok, err := h.store.SetIf(side.pathField(), "", i, side.pathField(), path, func() {
			h.setSlot(side, i, 0)
		})
		if err != nil || !ok {
			h.skipMoved(i, side, path)
			return
		}
		res.Deleted++
		metrics.RecordReconcileUpdate(side.String(), "deleted")
		h.logger.Info("file deleted externally",
			zap.Int("tab", i), zap.String("side", side.String()), zap.String("path", path))
		return
	}
	if err != nil {
		res.Errors++
		metrics.RecordReconcileError()
		h.logger.Warn("failed to stat file", zap.String("path", path), zap.Error(err))
		return
	}

	mtime := info.ModTime().UnixMilli()
	if mtime == tracked {
		return
	}

	text, err := readText(path)
	if err != nil {
		res.Errors++
		metrics.RecordReconcileError()
		h.logger.Warn("failed to read modified file", zap.String("path", path), zap.Error(err))
		return
	}
	// The tab may have been closed or shifted while the file was read.
	ok, err = h.store.SetIf(side.textField(), text, i, side.pathField(), path, func() {
		h.setSlot(side, i, mtime)
	})
	if err != nil || !ok {
		h.skipMoved(i, side, path)
		return
	}
	res.Modified++
	metrics.RecordReconcileUpdate(side.String(), "modified")
	h.logger.Info("file modified externally",
		zap.Int("tab", i), zap.String("side", side.String()), zap.String("path", path))
}

func (h *Handler) skipMoved(i int, side Side, path string) {
	h.logger.Debug("tab changed during reconcile, skipping",
		zap.Int("tab", i), zap.String("side", side.String()), zap.String("path", path))
}

// OpenSourceFiles loads each file into a tab's source side. Directories and
// executables are skipped. A file goes into the current tab unless that tab
// already has source text, in which case a new tab is opened right after it
// and selected. Every opened file is moved to or appended to the recent list.
func (h *Handler) OpenSourceFiles(paths []string) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", abs, err)
		}
		if info.IsDir() || info.Mode().Perm()&0o111 != 0 {
			h.logger.Debug("skipping non-document file", zap.String("path", abs))
			continue
		}

		text, err := readText(abs)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", abs, err)
		}

		index, err := h.tabForOpen()
		if err != nil {
			return err
		}
		if err := h.store.SetSourceText(text, index); err != nil {
			return err
		}
		if err := h.store.SetSourceFilePath(abs, index); err != nil {
			return err
		}
		if err := h.store.SetTitle(filepath.Base(abs), index); err != nil {
			return err
		}
		h.setSlot(SourceSide, index, info.ModTime().UnixMilli())
		h.touchRecent(abs)

		h.logger.Info("opened source file", zap.Int("tab", index), zap.String("path", abs))
	}
	return nil
}

// tabForOpen picks or creates the tab the next opened file goes into.
func (h *Handler) tabForOpen() (int, error) {
	current := h.store.CurrentIndex()
	if current == -1 {
		if err := h.store.OpenTab(0); err != nil {
			return 0, err
		}
		return 0, h.store.SetCurrentIndex(0)
	}

	text, err := h.store.SourceText(current)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return current, nil
	}
	if err := h.store.OpenTab(current + 1); err != nil {
		return 0, err
	}
	return current + 1, h.store.SetCurrentIndex(current + 1)
}

// SaveSourceFile writes tab i's source text to its source file and sets the
// tab title to the file name.
func (h *Handler) SaveSourceFile(i int) error {
	return h.save(SourceSide, i)
}

// SaveTargetFile writes tab i's target text to its target file.
func (h *Handler) SaveTargetFile(i int) error {
	return h.save(TargetSide, i)
}

func (h *Handler) save(side Side, i int) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	tab, err := h.store.Tab(i)
	if err != nil {
		return err
	}
	path := tab.Get(side.pathField())
	if path == "" {
		return fmt.Errorf("%w: tab %d has no %s file", ErrNoFileOpened, i, side)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return h.write(side, i, path, tab.Get(side.textField()))
}

// SaveSourceFileAs writes tab i's source text to path, creating or
// truncating it, and makes path the tab's source file.
func (h *Handler) SaveSourceFileAs(i int, path string) error {
	return h.saveAs(SourceSide, i, path)
}

// SaveTargetFileAs writes tab i's target text to path, creating or
// truncating it, and makes path the tab's target file.
func (h *Handler) SaveTargetFileAs(i int, path string) error {
	return h.saveAs(TargetSide, i, path)
}

func (h *Handler) saveAs(side Side, i int, path string) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	tab, err := h.store.Tab(i)
	if err != nil {
		return err
	}
	if err := h.write(side, i, abs, tab.Get(side.textField())); err != nil {
		return err
	}
	return h.store.Set(side.pathField(), abs, i)
}

// write stores text at path and refreshes the slot. Source saves also set
// the title. Callers hold opMu.
func (h *Handler) write(side Side, i int, path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if side == SourceSide {
		if err := h.store.SetTitle(filepath.Base(path), i); err != nil {
			return err
		}
	}
	h.setSlot(side, i, info.ModTime().UnixMilli())

	h.logger.Info("saved file", zap.Int("tab", i), zap.String("side", side.String()), zap.String("path", path))
	return nil
}

// Modified returns the tracked modification times of tab i in milliseconds
// since the epoch, 0 meaning no file.
func (h *Handler) Modified(i int) (source, target int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := tabs.CheckRange(i, len(h.sourceModified)); err != nil {
		return 0, 0, err
	}
	return h.sourceModified[i], h.targetModified[i], nil
}

// TrackedPaths returns every non-empty file path open in the store.
func (h *Handler) TrackedPaths() []string {
	var paths []string
	for i := 0; ; i++ {
		tab, err := h.store.Tab(i)
		if err != nil {
			return paths
		}
		for _, p := range []string{tab.SourceFilePath, tab.TargetFilePath} {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
}

// Snapshot returns the persistable state.
func (h *Handler) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{
		SourceModified: append([]int64(nil), h.sourceModified...),
		TargetModified: append([]int64(nil), h.targetModified...),
		RecentFiles:    append([]string(nil), h.recent...),
	}
}

func (h *Handler) slot(side Side, i int) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slots := h.slotsLocked(side)
	if i < 0 || i >= len(slots) {
		return 0, false
	}
	return slots[i], true
}

func (h *Handler) setSlot(side Side, i int, v int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slots := h.slotsLocked(side)
	if i >= 0 && i < len(slots) {
		slots[i] = v
	}
}

func (h *Handler) slotsLocked(side Side) []int64 {
	if side == SourceSide {
		return h.sourceModified
	}
	return h.targetModified
}

// modTime returns the file's modification time in milliseconds, or 0 when
// path is empty or cannot be stat'ed.
func modTime(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixMilli()
}

// readText reads a file as UTF-8, replacing invalid sequences.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func insertAt(s []int64, i int, v int64) []int64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
