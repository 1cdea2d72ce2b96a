package tabs

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
)

func newStoreWithTabs(t *testing.T, n int) *Store {
	t.Helper()
	s := NewStore()
	for i := 0; i < n; i++ {
		if err := s.OpenTab(i); err != nil {
			t.Fatalf("OpenTab(%d) failed: %v", i, err)
		}
	}
	return s
}

func TestNewStore(t *testing.T) {
	s := NewStore()
	if s.CountTabs() != 0 {
		t.Errorf("CountTabs() = %d, want 0", s.CountTabs())
	}
	if s.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d, want -1", s.CurrentIndex())
	}
}

// TestStore_CountFollowsOpensAndRemoves runs random open/remove sequences and
// checks the count and that untouched tabs keep default fields.
func TestStore_CountFollowsOpensAndRemoves(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewStore()
	want := 0

	for step := 0; step < 500; step++ {
		if want == 0 || rng.Intn(3) > 0 {
			if err := s.OpenTab(rng.Intn(want + 1)); err != nil {
				t.Fatalf("OpenTab failed at step %d: %v", step, err)
			}
			want++
		} else {
			if err := s.RemoveTab(rng.Intn(want)); err != nil {
				t.Fatalf("RemoveTab failed at step %d: %v", step, err)
			}
			want--
		}
		if got := s.CountTabs(); got != want {
			t.Fatalf("CountTabs() = %d after step %d, want %d", got, step, want)
		}
	}

	for i := 0; i < want; i++ {
		tab, err := s.Tab(i)
		if err != nil {
			t.Fatalf("Tab(%d) failed: %v", i, err)
		}
		if tab != (Tab{}) {
			t.Errorf("Tab(%d) = %+v, want defaults", i, tab)
		}
	}
}

func TestStore_FirstTabBecomesCurrent(t *testing.T) {
	s := NewStore()
	got := -2
	s.AddCurrentIndexListener(func(i int) { got = i })

	if err := s.OpenTab(0); err != nil {
		t.Fatal(err)
	}
	if s.CurrentIndex() != 0 || got != 0 {
		t.Errorf("CurrentIndex() = %d, listener got %d", s.CurrentIndex(), got)
	}

	got = -2
	_ = s.OpenTab(0)
	if got != -2 {
		t.Error("second OpenTab should not touch the current index")
	}
}

func TestStore_OpenTabInsertsAtIndex(t *testing.T) {
	s := newStoreWithTabs(t, 2)
	if err := s.SetTitle("first", 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTitle("second", 1); err != nil {
		t.Fatal(err)
	}

	if err := s.OpenTab(1); err != nil {
		t.Fatalf("OpenTab(1) failed: %v", err)
	}

	for i, want := range []string{"first", "", "second"} {
		got, err := s.Title(i)
		if err != nil {
			t.Fatalf("Title(%d) failed: %v", i, err)
		}
		if got != want {
			t.Errorf("Title(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestStore_OpenTabOutOfRange(t *testing.T) {
	s := newStoreWithTabs(t, 2)
	if err := s.SetSourceText("keep", 1); err != nil {
		t.Fatal(err)
	}
	fired := 0
	s.AddTabsListener(func(TabsChange) { fired++ })
	before := s.Snapshot()

	for _, index := range []int{-1, 3, 100} {
		err := s.OpenTab(index)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("OpenTab(%d) error = %v, want ErrIndexOutOfRange", index, err)
		}
	}

	if !s.Snapshot().Equal(before) {
		t.Error("failed OpenTab must not change the store")
	}
	if fired != 0 {
		t.Errorf("tabs listener fired %d times, want 0", fired)
	}
}

func TestStore_IndexErrorMessage(t *testing.T) {
	s := newStoreWithTabs(t, 3)
	_, err := s.Title(5)

	var ie *IndexError
	if !errors.As(err, &ie) {
		t.Fatalf("Title(5) error = %v, want *IndexError", err)
	}
	if ie.Index != 5 || ie.Limit != 3 {
		t.Errorf("IndexError = %+v", ie)
	}
	if !strings.Contains(err.Error(), "(0:2) expected, 5 provided") {
		t.Errorf("unexpected message: %s", err)
	}
}

func TestStore_AccessorsRejectBadIndex(t *testing.T) {
	s := newStoreWithTabs(t, 1)

	for _, f := range Fields() {
		if _, err := s.Get(f, 1); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Get(%s, 1) error = %v", f, err)
		}
		if err := s.Set(f, "x", -1); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Set(%s, -1) error = %v", f, err)
		}
	}
	if err := s.RemoveTab(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("RemoveTab(1) error = %v", err)
	}
	if err := s.SetCurrentIndex(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("SetCurrentIndex(1) error = %v", err)
	}
}

// TestStore_SetterNotifiesOnlyItsField checks that each setter reaches its own
// listeners with (value, index) and no other field's listeners.
func TestStore_SetterNotifiesOnlyItsField(t *testing.T) {
	type call struct {
		value string
		index int
	}

	for _, target := range Fields() {
		t.Run(target.String(), func(t *testing.T) {
			s := newStoreWithTabs(t, 3)
			calls := make(map[Field][]call)
			for _, f := range Fields() {
				f := f
				s.AddFieldListener(f, func(value string, index int) {
					calls[f] = append(calls[f], call{value, index})
				})
			}

			if err := s.Set(target, "value-"+target.String(), 2); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			for _, f := range Fields() {
				got := calls[f]
				if f != target {
					if len(got) != 0 {
						t.Errorf("%s listener fired: %v", f, got)
					}
					continue
				}
				if len(got) != 1 || got[0] != (call{"value-" + target.String(), 2}) {
					t.Errorf("%s listener calls = %v", f, got)
				}
			}

			v, err := s.Get(target, 2)
			if err != nil || v != "value-"+target.String() {
				t.Errorf("Get = %q, %v", v, err)
			}
		})
	}
}

func TestStore_NamedSettersAndGetters(t *testing.T) {
	s := newStoreWithTabs(t, 1)
	setters := []func(string, int) error{
		s.SetTitle, s.SetSourceText, s.SetTargetText, s.SetSourceMode,
		s.SetTargetMode, s.SetSourceFilePath, s.SetTargetFilePath,
	}
	for i, set := range setters {
		if err := set(Fields()[i].String(), 0); err != nil {
			t.Fatalf("setter %d failed: %v", i, err)
		}
	}

	want := Tab{
		Title:          "title",
		SourceText:     "source_text",
		TargetText:     "target_text",
		SourceMode:     "source_mode",
		TargetMode:     "target_mode",
		SourceFilePath: "source_file_path",
		TargetFilePath: "target_file_path",
	}
	got, err := s.Tab(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Tab(0) = %+v, want %+v", got, want)
	}

	getters := []func(int) (string, error){
		s.Title, s.SourceText, s.TargetText, s.SourceMode,
		s.TargetMode, s.SourceFilePath, s.TargetFilePath,
	}
	for i, get := range getters {
		v, err := get(0)
		if err != nil || v != Fields()[i].String() {
			t.Errorf("getter %d = %q, %v", i, v, err)
		}
	}
}

func TestStore_DuplicateListenersAreAllCalled(t *testing.T) {
	s := newStoreWithTabs(t, 1)
	count := 0
	fn := func(string, int) { count++ }
	s.AddTitleListener(fn)
	id := s.AddTitleListener(fn)

	_ = s.SetTitle("a", 0)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	if !s.RemoveListener(id) {
		t.Fatal("RemoveListener() returned false")
	}
	if s.RemoveListener(id) {
		t.Error("second RemoveListener() should return false")
	}

	_ = s.SetTitle("b", 0)
	if count != 3 {
		t.Errorf("count = %d after removal, want 3", count)
	}
}

func TestStore_ListenersInRegistrationOrder(t *testing.T) {
	s := NewStore()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.AddTabsListener(func(TabsChange) { order = append(order, i) })
	}
	_ = s.OpenTab(0)

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}
	if len(order) != 5 {
		t.Errorf("len(order) = %d", len(order))
	}
}

func TestStore_RemoveTabClampsCurrent(t *testing.T) {
	s := newStoreWithTabs(t, 3)
	if err := s.SetCurrentIndex(2); err != nil {
		t.Fatal(err)
	}

	var events []string
	s.AddTabsListener(func(c TabsChange) { events = append(events, c.Type.String()) })
	s.AddCurrentIndexListener(func(i int) {
		events = append(events, "current")
	})

	if err := s.RemoveTab(2); err != nil {
		t.Fatal(err)
	}
	if s.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d, want 1", s.CurrentIndex())
	}
	if strings.Join(events, ",") != "removed,current" {
		t.Errorf("events = %v", events)
	}

	events = nil
	if err := s.RemoveTab(0); err != nil {
		t.Fatal(err)
	}
	if s.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d, want 0", s.CurrentIndex())
	}
	if strings.Join(events, ",") != "removed,current" {
		t.Errorf("events = %v", events)
	}
}

func TestStore_RemoveTabKeepsValidCurrent(t *testing.T) {
	s := newStoreWithTabs(t, 3)
	_ = s.SetCurrentIndex(0)
	fired := false
	s.AddCurrentIndexListener(func(int) { fired = true })

	_ = s.RemoveTab(2)
	if fired {
		t.Error("current index listener should not fire")
	}
	if s.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex() = %d", s.CurrentIndex())
	}
}

func TestStore_RemoveAllTabsDescendingIndices(t *testing.T) {
	s := newStoreWithTabs(t, 4)
	_ = s.SetCurrentIndex(3)

	var removed []int
	s.AddTabsListener(func(c TabsChange) {
		if c.Type != TabRemoved {
			t.Errorf("unexpected change %v", c.Type)
		}
		removed = append(removed, c.Index)
	})
	current := 0
	s.AddCurrentIndexListener(func(i int) { current = i })

	s.RemoveAllTabs()

	want := []int{3, 2, 1, 0}
	if len(removed) != len(want) {
		t.Fatalf("removed = %v, want %v", removed, want)
	}
	for i := range want {
		if removed[i] != want[i] {
			t.Fatalf("removed = %v, want %v", removed, want)
		}
	}
	if s.CountTabs() != 0 || s.CurrentIndex() != -1 || current != -1 {
		t.Errorf("count=%d current=%d listener=%d", s.CountTabs(), s.CurrentIndex(), current)
	}
}

// TestStore_ListenerCanReadStore verifies that listeners run outside the
// state lock.
func TestStore_ListenerCanReadStore(t *testing.T) {
	s := newStoreWithTabs(t, 1)
	var seen string
	s.AddSourceTextListener(func(_ string, i int) {
		seen, _ = s.SourceText(i)
	})
	_ = s.SetSourceText("SELECT 1", 0)
	if seen != "SELECT 1" {
		t.Errorf("listener read %q", seen)
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := newStoreWithTabs(t, 1)
	var mu sync.Mutex
	events := 0
	s.AddTitleListener(func(string, int) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = s.SetTitle("t", 0)
				_ = s.OpenTab(s.CountTabs())
				_, _ = s.Title(0)
			}
		}()
	}
	wg.Wait()

	if s.CountTabs() != 801 {
		t.Errorf("CountTabs() = %d, want 801", s.CountTabs())
	}
	if events != 800 {
		t.Errorf("events = %d, want 800", events)
	}
}

func TestStore_SetIf(t *testing.T) {
	s := newStoreWithTabs(t, 2)
	_ = s.SetSourceFilePath("/a.sql", 0)

	var got []string
	s.AddSourceTextListener(func(v string, i int) { got = append(got, v) })

	thenCalls := 0
	ok, err := s.SetIf(FieldSourceText, "A", 0, FieldSourceFilePath, "/a.sql", func() { thenCalls++ })
	if err != nil || !ok {
		t.Fatalf("SetIf() = %v, %v, want true, nil", ok, err)
	}
	if text, _ := s.SourceText(0); text != "A" {
		t.Errorf("SourceText(0) = %q, want %q", text, "A")
	}

	// Guard mismatch: tab 1 has no source file.
	ok, err = s.SetIf(FieldSourceText, "B", 1, FieldSourceFilePath, "/a.sql", func() { thenCalls++ })
	if err != nil || ok {
		t.Errorf("SetIf() on mismatched guard = %v, %v, want false, nil", ok, err)
	}
	if text, _ := s.SourceText(1); text != "" {
		t.Errorf("SourceText(1) = %q, must be unchanged", text)
	}

	// Same value: then runs, listeners stay quiet.
	ok, _ = s.SetIf(FieldSourceText, "A", 0, FieldSourceFilePath, "/a.sql", func() { thenCalls++ })
	if !ok {
		t.Error("SetIf() with unchanged value should still succeed")
	}

	if thenCalls != 2 {
		t.Errorf("then called %d times, want 2", thenCalls)
	}
	if len(got) != 1 || got[0] != "A" {
		t.Errorf("listener saw %v, want [A]", got)
	}

	if _, err := s.SetIf(FieldSourceText, "x", 5, FieldSourceFilePath, "", nil); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("SetIf(5) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestStore_SetIfAfterShift(t *testing.T) {
	s := newStoreWithTabs(t, 2)
	_ = s.SetSourceFilePath("/first.sql", 0)
	_ = s.SetSourceText("second", 1)

	_ = s.RemoveTab(0)

	ok, err := s.SetIf(FieldSourceText, "from first.sql", 0, FieldSourceFilePath, "/first.sql", nil)
	if err != nil || ok {
		t.Fatalf("SetIf() = %v, %v, want false, nil", ok, err)
	}
	if text, _ := s.SourceText(0); text != "second" {
		t.Errorf("SourceText(0) = %q, want %q", text, "second")
	}
}

func TestStore_WatchTabs(t *testing.T) {
	s := newStoreWithTabs(t, 2)
	_ = s.SetCurrentIndex(1)

	var events []TabsChange
	_, snap := s.WatchTabs(func(c TabsChange) { events = append(events, c) })
	if len(snap.Tabs) != 2 || snap.Current != 1 {
		t.Fatalf("snapshot = %d tabs, current %d; want 2, 1", len(snap.Tabs), snap.Current)
	}
	if len(events) != 0 {
		t.Fatalf("existing tabs must not be replayed, got %v", events)
	}

	_ = s.OpenTab(2)
	if len(events) != 1 || events[0] != (TabsChange{Type: TabAdded, Index: 2}) {
		t.Errorf("events = %v, want one TabAdded at 2", events)
	}
}

func TestStore_WatchTabsConcurrentOpen(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	seen := 0

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.OpenTab(s.CountTabs())
		}
	}()

	_, snap := s.WatchTabs(func(c TabsChange) {
		mu.Lock()
		seen++
		mu.Unlock()
	})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(snap.Tabs)+seen != 200 {
		t.Errorf("snapshot %d + events %d = %d, want 200", len(snap.Tabs), seen, len(snap.Tabs)+seen)
	}
}

func TestStore_Equal(t *testing.T) {
	a := newStoreWithTabs(t, 2)
	b := newStoreWithTabs(t, 2)
	if !a.Equal(b) {
		t.Error("empty stores with equal tab counts should be equal")
	}

	_ = a.SetTargetMode("oracle", 1)
	if a.Equal(b) {
		t.Error("stores differ in a field")
	}
	_ = b.SetTargetMode("oracle", 1)
	_ = b.SetCurrentIndex(1)
	if a.Equal(b) {
		t.Error("stores differ in current index")
	}
	if a.Equal(nil) {
		t.Error("Equal(nil) should be false")
	}
}
