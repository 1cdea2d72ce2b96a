package dashboard

import (
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/filehandler"
	"github.com/sqlines/studio/internal/tabs"
)

// TabsData describes a tab insertion or removal.
type TabsData struct {
	Action string `json:"action"` // added, removed
	Index  int    `json:"index"`
	Count  int    `json:"count"`
}

// CurrentIndexData carries the new current tab.
type CurrentIndexData struct {
	Index int `json:"index"`
}

// FieldData describes a field update. Text fields carry only their length.
type FieldData struct {
	Field  string `json:"field"`
	Index  int    `json:"index"`
	Value  string `json:"value,omitempty"`
	Length int    `json:"length"`
}

// RecentFilesData describes a recent file list change.
type RecentFilesData struct {
	Action string `json:"action"` // added, removed, moved
	Path   string `json:"path"`
	Index  int    `json:"index"`
	From   int    `json:"from,omitempty"`
	To     int    `json:"to,omitempty"`
}

// LicenseData carries the result of a license check.
type LicenseData struct {
	Active bool `json:"active"`
}

// CheckpointData describes a checkpoint write.
type CheckpointData struct {
	Tabs     int           `json:"tabs"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// TabSummary is the dashboard view of one tab.
type TabSummary struct {
	Title          string `json:"title"`
	SourceMode     string `json:"source_mode"`
	TargetMode     string `json:"target_mode"`
	SourceFilePath string `json:"source_file_path,omitempty"`
	TargetFilePath string `json:"target_file_path,omitempty"`
	SourceLength   int    `json:"source_length"`
	TargetLength   int    `json:"target_length"`
}

// SnapshotData is the full state sent to new clients.
type SnapshotData struct {
	Tabs        []TabSummary `json:"tabs"`
	Current     int          `json:"current"`
	RecentFiles []string     `json:"recent_files"`
}

// Bridge subscribes to a tab store and file handler and forwards their
// events to a Server.
type Bridge struct {
	server *Server
	store  *tabs.Store
	files  *filehandler.Handler
	logger *zap.Logger

	mu       sync.Mutex
	tabIDs   []tabs.ListenerID
	recentID filehandler.ListenerID
	attached bool
}

// NewBridge creates a bridge. files may be nil.
func NewBridge(server *Server, store *tabs.Store, files *filehandler.Handler, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		server: server,
		store:  store,
		files:  files,
		logger: logger,
	}
}

// Attach registers the bridge listeners. Calling it twice is a no-op.
func (b *Bridge) Attach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached {
		return
	}
	b.attached = true

	b.tabIDs = append(b.tabIDs,
		b.store.AddTabsListener(b.onTabsChange),
		b.store.AddCurrentIndexListener(b.onCurrentIndex),
	)
	for _, f := range tabs.Fields() {
		field := f
		b.tabIDs = append(b.tabIDs, b.store.AddFieldListener(field, func(value string, index int) {
			b.onField(field, value, index)
		}))
	}
	if b.files != nil {
		b.recentID = b.files.AddRecentFilesListener(b.onRecentChange)
	}
	b.logger.Debug("dashboard bridge attached", zap.Int("listeners", len(b.tabIDs)))
}

// Detach removes every listener registered by Attach.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return
	}
	for _, id := range b.tabIDs {
		b.store.RemoveListener(id)
	}
	b.tabIDs = nil
	if b.files != nil {
		b.files.RemoveRecentFilesListener(b.recentID)
	}
	b.attached = false
}

// Snapshot builds the current state. It is suitable as Config.Snapshot.
func (b *Bridge) Snapshot() SnapshotData {
	return Summarize(b.store.Snapshot(), b.recentFiles())
}

// Summarize converts a store snapshot to its dashboard form.
func Summarize(snap tabs.Snapshot, recent []string) SnapshotData {
	data := SnapshotData{
		Tabs:        make([]TabSummary, len(snap.Tabs)),
		Current:     snap.Current,
		RecentFiles: recent,
	}
	if data.RecentFiles == nil {
		data.RecentFiles = []string{}
	}
	for i, t := range snap.Tabs {
		data.Tabs[i] = TabSummary{
			Title:          t.Title,
			SourceMode:     t.SourceMode,
			TargetMode:     t.TargetMode,
			SourceFilePath: t.SourceFilePath,
			TargetFilePath: t.TargetFilePath,
			SourceLength:   utf8.RuneCountInString(t.SourceText),
			TargetLength:   utf8.RuneCountInString(t.TargetText),
		}
	}
	return data
}

// OnLicense publishes a license check result.
func (b *Bridge) OnLicense(active bool) {
	b.server.Publish(MessageTypeLicense, LicenseData{Active: active})
}

// OnCheckpoint publishes the outcome of a checkpoint write.
func (b *Bridge) OnCheckpoint(tabCount int, d time.Duration, err error) {
	data := CheckpointData{Tabs: tabCount, Duration: d}
	if err != nil {
		data.Error = err.Error()
	}
	b.server.Publish(MessageTypeCheckpoint, data)
}

func (b *Bridge) onTabsChange(change tabs.TabsChange) {
	b.server.Publish(MessageTypeTabs, TabsData{
		Action: change.Type.String(),
		Index:  change.Index,
		Count:  b.store.CountTabs(),
	})
}

func (b *Bridge) onCurrentIndex(index int) {
	b.server.Publish(MessageTypeCurrentIndex, CurrentIndexData{Index: index})
}

func (b *Bridge) onField(f tabs.Field, value string, index int) {
	data := FieldData{
		Field:  f.String(),
		Index:  index,
		Length: utf8.RuneCountInString(value),
	}
	if f != tabs.FieldSourceText && f != tabs.FieldTargetText {
		data.Value = value
	}
	b.server.Publish(MessageTypeField, data)
}

func (b *Bridge) onRecentChange(change filehandler.RecentChange) {
	b.server.Publish(MessageTypeRecentFiles, RecentFilesData{
		Action: change.Type.String(),
		Path:   change.Path,
		Index:  change.Index,
		From:   change.From,
		To:     change.To,
	})
}

func (b *Bridge) recentFiles() []string {
	if b.files == nil {
		return nil
	}
	return b.files.RecentFiles()
}
