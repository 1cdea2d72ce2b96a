// Package checkpoint persists the tab store and file handler state so a
// session can be recovered after a restart or crash.
//
// Two files are written into the state directory, each replaced atomically
// through a temporary file and rename:
//   - tabs.bin: the tabs snapshot
//   - files.bin: the file handler snapshot
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/filehandler"
	"github.com/sqlines/studio/internal/metrics"
	"github.com/sqlines/studio/internal/tabs"
)

const (
	// TabsFile holds the tabs snapshot.
	TabsFile = "tabs.bin"
	// FilesFile holds the file handler snapshot.
	FilesFile = "files.bin"
)

// ErrNoCheckpoint is returned by Load when no checkpoint has been written.
var ErrNoCheckpoint = errors.New("no checkpoint")

// State is everything a checkpoint holds.
type State struct {
	Tabs  tabs.Snapshot
	Files filehandler.Snapshot
}

// Store reads and writes checkpoints in one directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New returns a Store rooted at dir. The directory is created on first Save.
func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes both snapshots. Each file is replaced atomically; a failure
// leaves the previous version of that file in place.
func (s *Store) Save(state State) error {
	start := time.Now()
	size, err := s.save(state)
	metrics.RecordCheckpoint(size, err)
	if err != nil {
		return err
	}
	s.logger.Debug("checkpoint written",
		zap.Int("tabs", len(state.Tabs.Tabs)),
		zap.Int64("bytes", size),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Store) save(state State) (int64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create state directory: %w", err)
	}

	n1, err := writeAtomic(filepath.Join(s.dir, TabsFile), func(w io.Writer) error {
		return tabs.Encode(w, state.Tabs)
	})
	if err != nil {
		return 0, err
	}
	n2, err := writeAtomic(filepath.Join(s.dir, FilesFile), func(w io.Writer) error {
		return filehandler.Encode(w, state.Files)
	})
	if err != nil {
		return 0, err
	}
	return n1 + n2, nil
}

// Load reads both snapshots. It returns ErrNoCheckpoint when the tabs file
// does not exist. A missing files file is treated as empty state.
func (s *Store) Load() (State, error) {
	var state State

	f, err := os.Open(filepath.Join(s.dir, TabsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, ErrNoCheckpoint
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to open tabs checkpoint: %w", err)
	}
	state.Tabs, err = tabs.Decode(f)
	f.Close()
	if err != nil {
		return State{}, err
	}

	f, err = os.Open(filepath.Join(s.dir, FilesFile))
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("file state checkpoint missing, starting with empty file state")
		return state, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to open file state checkpoint: %w", err)
	}
	state.Files, err = filehandler.Decode(f)
	f.Close()
	if err != nil {
		return State{}, err
	}
	return state, nil
}

// Remove deletes both checkpoint files. Missing files are not an error.
func (s *Store) Remove() error {
	for _, name := range []string{TabsFile, FilesFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeAtomic writes through a temporary file in the same directory and
// renames it over path.
func writeAtomic(path string, encode func(io.Writer) error) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	cw := &countingWriter{w: tmp}
	if err := encode(cw); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return cw.n, nil
}
