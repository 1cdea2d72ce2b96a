package filehandler

import (
	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/metrics"
	"github.com/sqlines/studio/internal/tabs"
)

// ListenerID identifies a recent files listener registration.
type ListenerID uint64

// RecentChangeType describes a change to the recent files list.
type RecentChangeType int

const (
	// FileAdded means Path was appended at Index.
	FileAdded RecentChangeType = iota
	// FileRemoved means Path was removed from Index.
	FileRemoved
	// FileMoved means Path moved from From to To.
	FileMoved
)

// String returns a human-readable representation of the change type.
func (t RecentChangeType) String() string {
	switch t {
	case FileAdded:
		return "added"
	case FileRemoved:
		return "removed"
	case FileMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// RecentChange is delivered to recent files listeners.
type RecentChange struct {
	Type  RecentChangeType
	Path  string
	Index int
	From  int
	To    int
}

// RecentListener observes the recent files list. Listeners run while the
// Handler's operation lock is held and must not call back into Handler
// operations that modify files or the recent list.
type RecentListener func(change RecentChange)

type recentRegistration struct {
	id ListenerID
	fn RecentListener
}

// AddRecentFilesListener registers fn. Registering the same function twice
// delivers every change twice.
func (h *Handler) AddRecentFilesListener(fn RecentListener) ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.recentListeners = append(h.recentListeners, recentRegistration{id: h.nextID, fn: fn})
	return h.nextID
}

// RemoveRecentFilesListener unregisters the listener with the given id.
func (h *Handler) RemoveRecentFilesListener(id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.recentListeners {
		if r.id == id {
			h.recentListeners = append(h.recentListeners[:i:i], h.recentListeners[i+1:]...)
			return true
		}
	}
	return false
}

// RecentFile returns the path at index.
func (h *Handler) RecentFile(index int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := tabs.CheckRange(index, len(h.recent)); err != nil {
		return "", err
	}
	return h.recent[index], nil
}

// RecentFiles returns a copy of the recent files list.
func (h *Handler) RecentFiles() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.recent...)
}

// CountRecentFiles returns the number of recent files.
func (h *Handler) CountRecentFiles() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.recent)
}

// ClearRecentFiles empties the list, firing one FileRemoved per entry from
// the last position to the first.
func (h *Handler) ClearRecentFiles() {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.Lock()
	removed := h.recent
	h.recent = nil
	listeners := h.recentListenersLocked()
	h.mu.Unlock()

	for i := len(removed) - 1; i >= 0; i-- {
		change := RecentChange{Type: FileRemoved, Path: removed[i], Index: i}
		for _, fn := range listeners {
			fn(change)
		}
	}
	metrics.SetRecentFiles(0)
	h.logger.Info("cleared recent files", zap.Int("count", len(removed)))
}

// touchRecent appends a new path or moves a known one to the front.
// Callers hold opMu.
func (h *Handler) touchRecent(path string) {
	h.mu.Lock()
	var change RecentChange
	from := indexOf(h.recent, path)
	if from == -1 {
		h.recent = append(h.recent, path)
		change = RecentChange{Type: FileAdded, Path: path, Index: len(h.recent) - 1}
	} else {
		copy(h.recent[1:from+1], h.recent[:from])
		h.recent[0] = path
		change = RecentChange{Type: FileMoved, Path: path, Index: 0, From: from, To: 0}
	}
	n := len(h.recent)
	listeners := h.recentListenersLocked()
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
	metrics.SetRecentFiles(n)
}

func (h *Handler) recentListenersLocked() []RecentListener {
	fns := make([]RecentListener, len(h.recentListeners))
	for i, r := range h.recentListeners {
		fns[i] = r.fn
	}
	return fns
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
