package session

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sqlines/studio/internal/dashboard"
	"github.com/sqlines/studio/internal/poller"
)

// RunOptions controls the optional parts of Run.
type RunOptions struct {
	// Dashboard overrides Config.Dashboard.Enabled when set
	Dashboard *bool

	// Port overrides Config.Dashboard.Port when non-zero
	Port int

	// Ready is called once every loop has been started (optional)
	Ready func()
}

// Run starts the background loops and blocks until ctx is done:
//
//   - files: reconciles open tabs with their files
//   - license: re-probes the converter when license.txt changes
//   - checkpoint: writes session state (only when sessions are saved)
//
// With WatchFS set, filesystem events wake the files loop early. With the
// dashboard enabled, session events are served over WebSocket.
func (s *Session) Run(ctx context.Context, opts *RunOptions) error {
	if opts == nil {
		opts = &RunOptions{}
	}
	cfg := s.Config()

	filesLoop, err := poller.New(poller.Config{
		Name:      "files",
		Interval:  cfg.Intervals.FileCheck,
		Immediate: true,
		Logger:    s.logger.Named("files"),
	}, s.reconcile)
	if err != nil {
		return err
	}
	licenseLoop, err := poller.New(poller.Config{
		Name:     "license",
		Interval: cfg.Intervals.LicenseCheck,
		Logger:   s.logger.Named("license"),
	}, s.license.Check)
	if err != nil {
		return err
	}
	loops := []*poller.Loop{filesLoop, licenseLoop}
	if cfg.SaveSession {
		checkpointLoop, err := poller.New(poller.Config{
			Name:     "checkpoint",
			Interval: cfg.Intervals.Checkpoint,
			Logger:   s.logger.Named("checkpoint"),
		}, func(context.Context) error { return s.Checkpoint() })
		if err != nil {
			return err
		}
		loops = append(loops, checkpointLoop)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.WatchFS {
		w, err := poller.NewWatcher()
		if err != nil {
			s.logger.Warn("filesystem events unavailable, polling only", zap.Error(err))
		} else if err := w.Start(); err != nil {
			_ = w.Stop()
			s.logger.Warn("filesystem events unavailable, polling only", zap.Error(err))
		} else {
			s.watcher = w
			defer func() {
				_ = w.Stop()
				s.watcher = nil
			}()
			g.Go(func() error {
				poller.TriggerOnChange(ctx, w, filesLoop, s.logger.Named("watcher"))
				return nil
			})
		}
	}

	enabled := cfg.Dashboard.Enabled
	if opts.Dashboard != nil {
		enabled = *opts.Dashboard
	}
	if enabled {
		port := cfg.Dashboard.Port
		if opts.Port != 0 {
			port = opts.Port
		}
		stop, err := s.startDashboard(port)
		if err != nil {
			return err
		}
		defer stop()
	}

	for _, l := range loops {
		l := l
		g.Go(func() error {
			if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if opts.Ready != nil {
		opts.Ready()
	}

	return g.Wait()
}

// reconcile is the files loop step. It refreshes the watched set first so
// files opened since the last step are watched too.
func (s *Session) reconcile(ctx context.Context) error {
	if w := s.watcher; w != nil {
		if err := w.Sync(s.files.TrackedPaths()); err != nil {
			s.logger.Debug("watch sync incomplete", zap.Error(err))
		}
	}
	res, err := s.files.Reconcile(ctx)
	if res.Modified > 0 || res.Deleted > 0 {
		s.logger.Info("files reconciled",
			zap.Int("modified", res.Modified),
			zap.Int("deleted", res.Deleted))
	}
	return err
}

func (s *Session) startDashboard(port int) (func(), error) {
	logger := s.logger.Named("dashboard")
	server := dashboard.NewServer(&dashboard.Config{
		Port: port,
		Host: "localhost",
		Snapshot: func() dashboard.SnapshotData {
			return dashboard.Summarize(s.store.Snapshot(), s.files.RecentFiles())
		},
		Logger: logger,
	})
	if err := server.Start(); err != nil {
		return nil, err
	}

	bridge := dashboard.NewBridge(server, s.store, s.files, logger)
	bridge.Attach()
	licenseID := s.license.AddListener(bridge.OnLicense)
	removeHook := s.OnCheckpoint(bridge.OnCheckpoint)

	return func() {
		removeHook()
		s.license.RemoveListener(licenseID)
		bridge.Detach()
		if err := server.Stop(); err != nil {
			logger.Warn("failed to stop dashboard", zap.Error(err))
		}
	}, nil
}
