package tabs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sqlines/studio/internal/codec"
)

// Snapshot is the persistable state of a Store: the tabs in display order and
// the current index. It carries no listeners.
type Snapshot struct {
	Tabs    []Tab `json:"tabs" yaml:"tabs" toml:"tabs"`
	Current int   `json:"current" yaml:"current" toml:"current"`
}

// Validate checks the current-index invariant.
func (s Snapshot) Validate() error {
	if len(s.Tabs) == 0 {
		if s.Current != -1 {
			return fmt.Errorf("%w: current index %d with no tabs", codec.ErrCorrupt, s.Current)
		}
		return nil
	}
	if err := CheckRange(s.Current, len(s.Tabs)); err != nil {
		return fmt.Errorf("%w: current index: %v", codec.ErrCorrupt, err)
	}
	return nil
}

// Equal reports structural equality.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Current != other.Current || len(s.Tabs) != len(other.Tabs) {
		return false
	}
	for i := range s.Tabs {
		if s.Tabs[i] != other.Tabs[i] {
			return false
		}
	}
	return true
}

// Encode writes snap to w: int32 tab count, seven strings per tab in
// Tab field order, then the int32 current index.
func Encode(w io.Writer, snap Snapshot) error {
	enc := codec.NewEncoder(w)
	enc.WriteCount(len(snap.Tabs))
	for _, t := range snap.Tabs {
		for _, f := range Fields() {
			enc.WriteString(t.Get(f))
		}
	}
	enc.WriteInt32(int32(snap.Current))
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("failed to encode tabs: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode. r must contain nothing else.
func Decode(r io.Reader) (Snapshot, error) {
	dec := codec.NewDecoder(r)
	n := dec.ReadCount()
	snap := Snapshot{Tabs: make([]Tab, 0, min(n, 64))}
	for i := 0; i < n && dec.Err() == nil; i++ {
		var t Tab
		for _, f := range Fields() {
			*t.field(f) = dec.ReadString()
		}
		snap.Tabs = append(snap.Tabs, t)
	}
	snap.Current = int(dec.ReadInt32())
	if err := dec.ExpectEOF(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode tabs: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	snap, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*s = snap
	return nil
}
