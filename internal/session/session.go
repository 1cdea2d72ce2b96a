// Package session wires the tab store, file handler, converter and license
// checker into one running application state.
//
// A Session is restored from the last checkpoint when the configuration
// allows it, keeps at least one tab open, and runs the background loops
// that watch files, re-check the license and write checkpoints.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/checkpoint"
	"github.com/sqlines/studio/internal/config"
	"github.com/sqlines/studio/internal/converter"
	"github.com/sqlines/studio/internal/filehandler"
	"github.com/sqlines/studio/internal/history"
	"github.com/sqlines/studio/internal/license"
	"github.com/sqlines/studio/internal/metrics"
	"github.com/sqlines/studio/internal/modes"
	"github.com/sqlines/studio/internal/poller"
	"github.com/sqlines/studio/internal/tabs"
)

// Options holds the parts of a Session that do not come from Config.
type Options struct {
	// ConfigPath is where Close saves the configuration (optional)
	ConfigPath string

	// Runner overrides the converter process (default: converter at
	// Config.ConverterBinary)
	Runner converter.Runner

	// Logger for session activity (default: no-op)
	Logger *zap.Logger
}

// Session is the live application state.
type Session struct {
	logger     *zap.Logger
	configPath string

	// mu serializes structural changes (tab count) with checkpoints so a
	// checkpoint never pairs tabs and file slots of different lengths.
	mu     sync.Mutex
	cfg    config.Config
	closed bool

	store       *tabs.Store
	files       *filehandler.Handler
	checkpoints *checkpoint.Store
	modes       *modes.Set
	runner      converter.Runner
	converter   *converter.Converter
	license     *license.Checker
	history     *history.DB
	restored    bool

	// watcher is set by Run for the lifetime of its loops.
	watcher *poller.Watcher

	hookMu sync.Mutex
	hookID int
	hooks  map[int]CheckpointHook
}

// CheckpointHook observes checkpoint attempts.
type CheckpointHook func(tabs int, d time.Duration, err error)

// Open builds a session from cfg. When cfg.SaveSession is set and a
// checkpoint exists, the previous tabs and file state are restored; a
// checkpoint that cannot be read is logged and a fresh session is started.
// The session always has at least one tab.
func Open(cfg config.Config, opts *Options) (*Session, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	set, err := modes.Load(cfg.ModesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load modes: %w", err)
	}

	runner := opts.Runner
	if runner == nil {
		runner = converter.NewProcess(cfg.ConverterBinary(), logger.Named("converter"))
	}

	s := &Session{
		logger:      logger,
		configPath:  opts.ConfigPath,
		cfg:         cfg,
		checkpoints: checkpoint.New(cfg.StateDir, logger.Named("checkpoint")),
		modes:       set,
		runner:      runner,
	}

	if cfg.SaveSession {
		s.restore()
	}
	if s.store == nil {
		s.store = tabs.NewStore()
		s.files, err = filehandler.New(s.store, &filehandler.Config{Logger: logger.Named("files")})
		if err != nil {
			return nil, err
		}
	}

	if s.store.CountTabs() == 0 {
		if err := s.store.OpenTab(0); err != nil {
			return nil, err
		}
	}
	if err := s.ensureDefaults(); err != nil {
		return nil, err
	}

	var recorder converter.Recorder
	if cfg.History.Enabled {
		db, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logger.Warn("conversion history disabled", zap.Error(err))
		} else {
			s.history = db
			recorder = db
		}
	}

	s.converter, err = converter.New(s.store, set, runner, converter.Config{
		OutputDir: cfg.CurrentDir,
		History:   recorder,
		Logger:    logger.Named("converter"),
	})
	if err != nil {
		s.closeResources()
		return nil, err
	}
	s.license = license.New(cfg.AppDir, runner, logger.Named("license"))

	metrics.SetOpenTabs(s.store.CountTabs())
	s.store.AddTabsListener(func(tabs.TabsChange) {
		metrics.SetOpenTabs(s.store.CountTabs())
	})

	logger.Info("session opened",
		zap.Bool("restored", s.restored),
		zap.Int("tabs", s.store.CountTabs()),
		zap.Int("recent_files", s.files.CountRecentFiles()))
	return s, nil
}

func (s *Session) restore() {
	state, err := s.checkpoints.Load()
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return
	}
	if err != nil {
		s.logger.Warn("failed to load checkpoint, starting fresh", zap.Error(err))
		return
	}
	store, err := tabs.NewStoreFromSnapshot(state.Tabs)
	if err != nil {
		s.logger.Warn("invalid checkpoint, starting fresh", zap.Error(err))
		return
	}
	files, err := filehandler.Restore(store, state.Files, &filehandler.Config{Logger: s.logger.Named("files")})
	if err != nil {
		s.logger.Warn("failed to restore file state, starting fresh", zap.Error(err))
		return
	}
	s.store, s.files, s.restored = store, files, true
}

// Store returns the tab store.
func (s *Session) Store() *tabs.Store { return s.store }

// Files returns the file handler.
func (s *Session) Files() *filehandler.Handler { return s.files }

// Modes returns the conversion vocabularies.
func (s *Session) Modes() *modes.Set { return s.modes }

// License returns the license checker.
func (s *Session) License() *license.Checker { return s.license }

// History returns the conversion history, or nil when disabled.
func (s *Session) History() *history.DB { return s.history }

// Restored reports whether the session was loaded from a checkpoint.
func (s *Session) Restored() bool { return s.restored }

// Config returns a copy of the current configuration.
func (s *Session) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// OnCheckpoint registers fn to be called after every checkpoint attempt.
// The returned function unregisters it.
func (s *Session) OnCheckpoint(fn CheckpointHook) func() {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	if s.hooks == nil {
		s.hooks = make(map[int]CheckpointHook)
	}
	s.hookID++
	id := s.hookID
	s.hooks[id] = fn
	return func() {
		s.hookMu.Lock()
		defer s.hookMu.Unlock()
		delete(s.hooks, id)
	}
}

// NewTab opens a tab after the current one and selects it.
func (s *Session) NewTab() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	next := s.store.CurrentIndex() + 1
	if err := s.store.OpenTab(next); err != nil {
		return 0, err
	}
	if err := s.ensureDefaults(); err != nil {
		return 0, err
	}
	return next, s.store.SetCurrentIndex(next)
}

// CloseTab closes tab i. The last remaining tab cannot be closed. The tab
// before the closed one becomes current, or the new first tab when i was 0.
func (s *Session) CloseTab(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.store.CountTabs() == 1 {
		if err := tabs.CheckRange(i, 1); err != nil {
			return err
		}
		return ErrLastTab
	}
	if err := s.store.RemoveTab(i); err != nil {
		return err
	}
	next := i - 1
	if next < 0 {
		next = 0
	}
	return s.store.SetCurrentIndex(next)
}

// SelectTab makes tab i current.
func (s *Session) SelectTab(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.store.SetCurrentIndex(i)
}

// OpenFiles loads paths into tabs and remembers their directory.
func (s *Session) OpenFiles(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err := s.files.OpenSourceFiles(paths)
	if derr := s.ensureDefaults(); err == nil {
		err = derr
	}
	if len(paths) > 0 {
		if abs, aerr := filepath.Abs(paths[len(paths)-1]); aerr == nil {
			s.cfg.AddRecentDir(filepath.Dir(abs))
		}
	}
	return err
}

// SetModes sets the conversion modes of tab i. Empty names are left
// unchanged; unknown names are rejected.
func (s *Session) SetModes(i int, source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if source != "" {
		if _, ok := s.modes.Source.Token(source); !ok {
			return fmt.Errorf("%w: source %q", converter.ErrUnknownMode, source)
		}
		if err := s.store.SetSourceMode(source, i); err != nil {
			return err
		}
	}
	if target != "" {
		if _, ok := s.modes.Target.Token(target); !ok {
			return fmt.Errorf("%w: target %q", converter.ErrUnknownMode, target)
		}
		if err := s.store.SetTargetMode(target, i); err != nil {
			return err
		}
	}
	return nil
}

// Convert converts the current tab. A source backed by a file is saved to
// that file first so the converter sees the edited text.
func (s *Session) Convert(ctx context.Context) (converter.Result, error) {
	return s.ConvertTab(ctx, s.store.CurrentIndex())
}

// ConvertTab converts tab i. The session lock is not held while the
// converter runs.
func (s *Session) ConvertTab(ctx context.Context, i int) (converter.Result, error) {
	if s.isClosed() {
		return converter.Result{}, ErrClosed
	}
	path, err := s.store.SourceFilePath(i)
	if err != nil {
		return converter.Result{}, err
	}
	if path != "" {
		if err := s.files.SaveSourceFile(i); err != nil {
			return converter.Result{}, fmt.Errorf("failed to save source file: %w", err)
		}
	}
	return s.converter.Run(ctx, i)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Checkpoint writes the current tabs and file state to the state
// directory.
func (s *Session) Checkpoint() error {
	s.mu.Lock()
	state := checkpoint.State{
		Tabs:  s.store.Snapshot(),
		Files: s.files.Snapshot(),
	}
	s.mu.Unlock()

	start := time.Now()
	err := s.checkpoints.Save(state)
	d := time.Since(start)

	s.hookMu.Lock()
	hooks := make([]CheckpointHook, 0, len(s.hooks))
	for _, fn := range s.hooks {
		hooks = append(hooks, fn)
	}
	s.hookMu.Unlock()
	for _, fn := range hooks {
		fn(len(state.Tabs.Tabs), d, err)
	}
	return err
}

// Close reconciles and saves every file-backed tab, writes a final
// checkpoint when sessions are saved, saves the configuration and releases
// resources. It returns the first error but always finishes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if _, err := s.files.Reconcile(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := 0; i < s.store.CountTabs(); i++ {
		tab, err := s.store.Tab(i)
		if err != nil {
			break
		}
		if tab.SourceFilePath != "" {
			if err := s.files.SaveSourceFile(i); err != nil {
				errs = append(errs, err)
			}
		}
		if tab.TargetFilePath != "" {
			if err := s.files.SaveTargetFile(i); err != nil {
				errs = append(errs, err)
			}
		}
	}

	cfg := s.Config()
	if cfg.SaveSession {
		if err := s.Checkpoint(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.configPath != "" {
		if err := cfg.Save(s.configPath); err != nil {
			errs = append(errs, err)
		}
	}

	s.closeResources()
	s.logger.Info("session closed")
	return errors.Join(errs...)
}

func (s *Session) closeResources() {
	if s.files != nil {
		s.files.Close()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("failed to close history", zap.Error(err))
		}
	}
}

// ensureDefaults gives every tab a title and both modes. Untitled tabs get
// the lowest free "Tab N" title.
func (s *Session) ensureDefaults() error {
	n := s.store.CountTabs()
	used := make(map[int]bool)
	for i := 0; i < n; i++ {
		title, err := s.store.Title(i)
		if err != nil {
			return err
		}
		if num, ok := tabNumber(title); ok {
			used[num] = true
		}
	}

	sourceDefault := firstMode(s.modes.Source)
	targetDefault := firstMode(s.modes.Target)
	next := 1
	for i := 0; i < n; i++ {
		tab, err := s.store.Tab(i)
		if err != nil {
			return err
		}
		if tab.Title == "" {
			for used[next] {
				next++
			}
			used[next] = true
			if err := s.store.SetTitle(TabTitle(next), i); err != nil {
				return err
			}
		}
		if tab.SourceMode == "" && sourceDefault != "" {
			if err := s.store.SetSourceMode(sourceDefault, i); err != nil {
				return err
			}
		}
		if tab.TargetMode == "" && targetDefault != "" {
			if err := s.store.SetTargetMode(targetDefault, i); err != nil {
				return err
			}
		}
	}
	return nil
}

const tabTitlePrefix = "Tab "

// TabTitle returns the default title of the n-th tab.
func TabTitle(n int) string {
	return tabTitlePrefix + strconv.Itoa(n)
}

func tabNumber(title string) (int, bool) {
	rest, ok := strings.CutPrefix(title, tabTitlePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func firstMode(v *modes.Vocabulary) string {
	names := v.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
