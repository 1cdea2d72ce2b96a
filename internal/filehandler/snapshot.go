package filehandler

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/sqlines/studio/internal/codec"
)

// Snapshot is the persistable state of a Handler.
type Snapshot struct {
	SourceModified []int64  `json:"source_modified" yaml:"source_modified"`
	TargetModified []int64  `json:"target_modified" yaml:"target_modified"`
	RecentFiles    []string `json:"recent_files" yaml:"recent_files"`
}

// Equal reports structural equality. A nil slice equals an empty one.
func (s Snapshot) Equal(other Snapshot) bool {
	return slices.Equal(s.SourceModified, other.SourceModified) &&
		slices.Equal(s.TargetModified, other.TargetModified) &&
		slices.Equal(s.RecentFiles, other.RecentFiles)
}

// Encode writes snap to w: source times, target times, then recent paths,
// each as an int32 count followed by the elements.
func Encode(w io.Writer, snap Snapshot) error {
	enc := codec.NewEncoder(w)
	for _, times := range [][]int64{snap.SourceModified, snap.TargetModified} {
		enc.WriteCount(len(times))
		for _, t := range times {
			enc.WriteInt64(t)
		}
	}
	enc.WriteCount(len(snap.RecentFiles))
	for _, p := range snap.RecentFiles {
		enc.WriteString(p)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("failed to encode file state: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode. r must contain nothing else.
func Decode(r io.Reader) (Snapshot, error) {
	dec := codec.NewDecoder(r)
	readTimes := func() []int64 {
		n := dec.ReadCount()
		times := make([]int64, 0, min(n, 1024))
		for i := 0; i < n && dec.Err() == nil; i++ {
			times = append(times, dec.ReadInt64())
		}
		return times
	}

	var snap Snapshot
	snap.SourceModified = readTimes()
	snap.TargetModified = readTimes()
	n := dec.ReadCount()
	snap.RecentFiles = make([]string, 0, min(n, 1024))
	for i := 0; i < n && dec.Err() == nil; i++ {
		snap.RecentFiles = append(snap.RecentFiles, dec.ReadString())
	}
	if err := dec.ExpectEOF(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode file state: %w", err)
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
