// Package tabs holds the ordered set of open editor tabs and notifies
// listeners of every change.
//
// Every mutation is serialized. Listeners are invoked synchronously on the
// mutating goroutine, in registration order, after the state lock has been
// released, so a listener may read the store. A listener must not mutate the
// store it is observing; doing so deadlocks.
package tabs

import (
	"sync"
)

// Tab is one open document: a source/target text pair, the conversion modes
// and the files backing each side.
type Tab struct {
	Title          string `json:"title" yaml:"title" toml:"title"`
	SourceText     string `json:"source_text" yaml:"source_text" toml:"source_text"`
	TargetText     string `json:"target_text" yaml:"target_text" toml:"target_text"`
	SourceMode     string `json:"source_mode" yaml:"source_mode" toml:"source_mode"`
	TargetMode     string `json:"target_mode" yaml:"target_mode" toml:"target_mode"`
	SourceFilePath string `json:"source_file_path" yaml:"source_file_path" toml:"source_file_path"`
	TargetFilePath string `json:"target_file_path" yaml:"target_file_path" toml:"target_file_path"`
}

func (t *Tab) field(f Field) *string {
	switch f {
	case FieldTitle:
		return &t.Title
	case FieldSourceText:
		return &t.SourceText
	case FieldTargetText:
		return &t.TargetText
	case FieldSourceMode:
		return &t.SourceMode
	case FieldTargetMode:
		return &t.TargetMode
	case FieldSourceFilePath:
		return &t.SourceFilePath
	case FieldTargetFilePath:
		return &t.TargetFilePath
	default:
		panic("tabs: unknown field")
	}
}

// Get returns the value of f.
func (t Tab) Get(f Field) string {
	return *t.field(f)
}

// Store is the live, observable tab collection.
type Store struct {
	// fire is held across a mutation and the listener calls it causes, so
	// events reach listeners in mutation order.
	fire sync.Mutex

	mu      sync.RWMutex
	tabs    []Tab
	current int

	nextID           ListenerID
	tabsListeners    registry[TabsListener]
	currentListeners registry[IndexListener]
	fieldListeners   [numFields]registry[FieldListener]
}

// NewStore returns an empty store with no current tab.
func NewStore() *Store {
	return &Store{current: -1}
}

// NewStoreFromSnapshot returns a live store holding the snapshot's state.
// The store starts with no listeners.
func NewStoreFromSnapshot(snap Snapshot) (*Store, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	s := NewStore()
	s.tabs = append([]Tab(nil), snap.Tabs...)
	s.current = snap.Current
	return s, nil
}

// OpenTab inserts an empty tab at index. Valid indices are 0..CountTabs().
// The current index is left alone unless the store was empty, in which case
// the new tab becomes current.
func (s *Store) OpenTab(index int) error {
	s.fire.Lock()
	defer s.fire.Unlock()

	s.mu.Lock()
	if err := CheckRange(index, len(s.tabs)+1); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tabs = append(s.tabs, Tab{})
	copy(s.tabs[index+1:], s.tabs[index:])
	s.tabs[index] = Tab{}
	tabsListeners := s.tabsListeners.snapshot()
	var currentListeners []IndexListener
	if s.current == -1 {
		s.current = 0
		currentListeners = s.currentListeners.snapshot()
	}
	s.mu.Unlock()

	change := TabsChange{Type: TabAdded, Index: index}
	for _, fn := range tabsListeners {
		fn(change)
	}
	for _, fn := range currentListeners {
		fn(0)
	}
	return nil
}

// RemoveTab deletes the tab at index. If the current index no longer points
// at a tab it is moved to the last tab (or -1 when none remain) and the
// current-index listeners are told after the tabs listeners.
func (s *Store) RemoveTab(index int) error {
	s.fire.Lock()
	defer s.fire.Unlock()

	s.mu.Lock()
	if err := CheckRange(index, len(s.tabs)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tabs = append(s.tabs[:index], s.tabs[index+1:]...)
	moved := false
	if s.current >= len(s.tabs) {
		s.current = len(s.tabs) - 1
		moved = true
	}
	current := s.current
	tabsListeners := s.tabsListeners.snapshot()
	var currentListeners []IndexListener
	if moved {
		currentListeners = s.currentListeners.snapshot()
	}
	s.mu.Unlock()

	change := TabsChange{Type: TabRemoved, Index: index}
	for _, fn := range tabsListeners {
		fn(change)
	}
	for _, fn := range currentListeners {
		fn(current)
	}
	return nil
}

// RemoveAllTabs deletes every tab. One TabRemoved event is fired per tab,
// highest index first, so each event names a position that was valid just
// before that removal.
func (s *Store) RemoveAllTabs() {
	s.fire.Lock()
	defer s.fire.Unlock()

	s.mu.Lock()
	n := len(s.tabs)
	s.tabs = nil
	moved := s.current != -1
	s.current = -1
	tabsListeners := s.tabsListeners.snapshot()
	var currentListeners []IndexListener
	if moved {
		currentListeners = s.currentListeners.snapshot()
	}
	s.mu.Unlock()

	for i := n - 1; i >= 0; i-- {
		change := TabsChange{Type: TabRemoved, Index: i}
		for _, fn := range tabsListeners {
			fn(change)
		}
	}
	for _, fn := range currentListeners {
		fn(-1)
	}
}

// CountTabs returns the number of open tabs.
func (s *Store) CountTabs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs)
}

// CurrentIndex returns the selected tab, or -1 when there are no tabs.
func (s *Store) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrentIndex selects the tab at index and notifies current-index
// listeners, even if index was already selected.
func (s *Store) SetCurrentIndex(index int) error {
	s.fire.Lock()
	defer s.fire.Unlock()

	s.mu.Lock()
	if err := CheckRange(index, len(s.tabs)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = index
	listeners := s.currentListeners.snapshot()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(index)
	}
	return nil
}

// Tab returns a copy of the whole record at index, read under one lock.
func (s *Store) Tab(index int) (Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := CheckRange(index, len(s.tabs)); err != nil {
		return Tab{}, err
	}
	return s.tabs[index], nil
}

// Get returns field f of the tab at index.
func (s *Store) Get(f Field, index int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := CheckRange(index, len(s.tabs)); err != nil {
		return "", err
	}
	return s.tabs[index].Get(f), nil
}

// Set assigns field f of the tab at index and notifies that field's
// listeners with (value, index).
func (s *Store) Set(f Field, value string, index int) error {
	s.fire.Lock()
	defer s.fire.Unlock()

	s.mu.Lock()
	if err := CheckRange(index, len(s.tabs)); err != nil {
		s.mu.Unlock()
		return err
	}
	*s.tabs[index].field(f) = value
	listeners := s.fieldListeners[f].snapshot()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(value, index)
	}
	return nil
}

// SetIf assigns field f of the tab at index only while that tab's guard
// field still equals expect, and reports whether it did. The check and the
// assignment happen without any tab insertion or removal in between, so a
// value read from one tab cannot land on a tab that shifted into its index.
//
// When the field already holds value nothing is stored and no listener
// fires. then, if non-nil, runs after a successful check and before the
// field listeners; it is called with no store lock held but tab structure
// still frozen, and must not mutate s.
func (s *Store) SetIf(f Field, value string, index int, guard Field, expect string, then func()) (bool, error) {
	s.fire.Lock()
	defer s.fire.Unlock()

	s.mu.Lock()
	if err := CheckRange(index, len(s.tabs)); err != nil {
		s.mu.Unlock()
		return false, err
	}
	tab := &s.tabs[index]
	if *tab.field(guard) != expect {
		s.mu.Unlock()
		return false, nil
	}
	var listeners []FieldListener
	if *tab.field(f) != value {
		*tab.field(f) = value
		listeners = s.fieldListeners[f].snapshot()
	}
	s.mu.Unlock()

	if then != nil {
		then()
	}
	for _, fn := range listeners {
		fn(value, index)
	}
	return true, nil
}

func (s *Store) Title(index int) (string, error) { return s.Get(FieldTitle, index) }

func (s *Store) SourceText(index int) (string, error) { return s.Get(FieldSourceText, index) }

func (s *Store) TargetText(index int) (string, error) { return s.Get(FieldTargetText, index) }

func (s *Store) SourceMode(index int) (string, error) { return s.Get(FieldSourceMode, index) }

func (s *Store) TargetMode(index int) (string, error) { return s.Get(FieldTargetMode, index) }

func (s *Store) SourceFilePath(index int) (string, error) {
	return s.Get(FieldSourceFilePath, index)
}

func (s *Store) TargetFilePath(index int) (string, error) {
	return s.Get(FieldTargetFilePath, index)
}

func (s *Store) SetTitle(value string, index int) error { return s.Set(FieldTitle, value, index) }

func (s *Store) SetSourceText(value string, index int) error {
	return s.Set(FieldSourceText, value, index)
}

func (s *Store) SetTargetText(value string, index int) error {
	return s.Set(FieldTargetText, value, index)
}

func (s *Store) SetSourceMode(value string, index int) error {
	return s.Set(FieldSourceMode, value, index)
}

func (s *Store) SetTargetMode(value string, index int) error {
	return s.Set(FieldTargetMode, value, index)
}

func (s *Store) SetSourceFilePath(value string, index int) error {
	return s.Set(FieldSourceFilePath, value, index)
}

func (s *Store) SetTargetFilePath(value string, index int) error {
	return s.Set(FieldTargetFilePath, value, index)
}

func (s *Store) newID() ListenerID {
	s.nextID++
	return s.nextID
}

// AddTabsListener registers fn for tab insertions and removals. Registering
// the same function twice delivers every event twice. fn must not mutate s.
func (s *Store) AddTabsListener(fn TabsListener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.tabsListeners.add(id, fn)
	return id
}

// WatchTabs registers fn like AddTabsListener and returns the state it
// starts from. Every insertion or removal is either already reflected in
// the snapshot or delivered to fn, never both.
func (s *Store) WatchTabs(fn TabsListener) (ListenerID, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.tabsListeners.add(id, fn)
	return id, Snapshot{
		Tabs:    append([]Tab(nil), s.tabs...),
		Current: s.current,
	}
}

// AddCurrentIndexListener registers fn for current tab changes.
// fn must not mutate s.
func (s *Store) AddCurrentIndexListener(fn IndexListener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.currentListeners.add(id, fn)
	return id
}

// AddFieldListener registers fn for changes to field f. fn must not mutate s.
func (s *Store) AddFieldListener(f Field, fn FieldListener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.fieldListeners[f].add(id, fn)
	return id
}

func (s *Store) AddTitleListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldTitle, fn)
}

func (s *Store) AddSourceTextListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldSourceText, fn)
}

func (s *Store) AddTargetTextListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldTargetText, fn)
}

func (s *Store) AddSourceModeListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldSourceMode, fn)
}

func (s *Store) AddTargetModeListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldTargetMode, fn)
}

func (s *Store) AddSourceFilePathListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldSourceFilePath, fn)
}

func (s *Store) AddTargetFilePathListener(fn FieldListener) ListenerID {
	return s.AddFieldListener(FieldTargetFilePath, fn)
}

// RemoveListener unregisters the listener with the given id, whatever its
// category. It reports whether a registration was found.
func (s *Store) RemoveListener(id ListenerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabsListeners.remove(id) || s.currentListeners.remove(id) {
		return true
	}
	for f := range s.fieldListeners {
		if s.fieldListeners[f].remove(id) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the persistable state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tabs:    append([]Tab(nil), s.tabs...),
		Current: s.current,
	}
}

// Equal reports whether both stores hold the same tabs in the same order and
// the same current index. Listeners are not compared.
func (s *Store) Equal(other *Store) bool {
	if s == other {
		return true
	}
	if other == nil {
		return false
	}
	return s.Snapshot().Equal(other.Snapshot())
}
