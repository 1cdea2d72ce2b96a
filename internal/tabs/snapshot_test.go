package tabs

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/sqlines/studio/internal/codec"
)

func randomText(rng *rand.Rand) string {
	const alphabet = "abcXYZ 019;'\n\tä€😀"
	runes := []rune(alphabet)
	n := rng.Intn(40)
	out := make([]rune, n)
	for i := range out {
		out[i] = runes[rng.Intn(len(runes))]
	}
	return string(out)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{0, 1, 2, 17} {
		t.Run(fmt.Sprintf("%d tabs", n), func(t *testing.T) {
			s := NewStore()
			for i := 0; i < n; i++ {
				_ = s.OpenTab(i)
				for _, f := range Fields() {
					_ = s.Set(f, randomText(rng), i)
				}
			}
			if n > 0 {
				_ = s.SetCurrentIndex(rng.Intn(n))
			}
			s.AddTabsListener(func(TabsChange) {})

			var buf bytes.Buffer
			if err := Encode(&buf, s.Snapshot()); err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}
			snap, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			restored, err := NewStoreFromSnapshot(snap)
			if err != nil {
				t.Fatalf("NewStoreFromSnapshot() failed: %v", err)
			}

			if !restored.Equal(s) {
				t.Errorf("restored store differs:\n got %+v\nwant %+v", restored.Snapshot(), s.Snapshot())
			}
			if len(restored.tabsListeners.entries) != 0 {
				t.Error("restored store should have no listeners")
			}
		})
	}
}

func TestSnapshot_BinaryMarshaler(t *testing.T) {
	snap := Snapshot{
		Tabs: []Tab{
			{Title: "q1.sql", SourceText: "SELECT 1", SourceMode: "Oracle", TargetMode: "PostgreSQL"},
		},
		Current: 0,
	}
	data, err := snap.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}

	var got Snapshot
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() failed: %v", err)
	}
	if !got.Equal(snap) {
		t.Errorf("got %+v, want %+v", got, snap)
	}
}

func TestSnapshot_NonUTF8Fields(t *testing.T) {
	snap := Snapshot{
		Tabs: []Tab{
			{
				Title:          "a\xffb.sql",
				SourceText:     "SELECT '\xe9'",
				SourceFilePath: "/data/a\xffb.sql",
				TargetFilePath: "/data/\xc3.out",
			},
			{Title: "Tab 2"},
		},
		Current: 0,
	}
	data, err := snap.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() failed: %v", err)
	}

	var got Snapshot
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() failed: %v", err)
	}
	if !got.Equal(snap) {
		t.Errorf("got %+v, want %+v", got, snap)
	}
}

func TestSnapshot_EmptyLayout(t *testing.T) {
	data, err := Snapshot{Current: -1}.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	valid, err := Snapshot{Tabs: []Tab{{Title: "a"}}, Current: 0}.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-2]},
		{"trailing", append(append([]byte(nil), valid...), 0)},
		{"bad current", append(append([]byte(nil), valid[:len(valid)-4]...), 0, 0, 0, 5)},
		{"current without tabs", []byte{0, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, codec.ErrCorrupt) {
				t.Errorf("Decode() error = %v, want ErrCorrupt", err)
			}
		})
	}
}
