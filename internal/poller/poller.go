// Package poller runs a reconciliation step on a fixed interval.
//
// The file checker, license checker and checkpoint writer are all the same
// shape: sleep, run a step, log failures, repeat until stopped. A Loop can
// also be woken early with Trigger, which the filesystem watcher uses so
// external edits show up before the next tick.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/metrics"
)

// Step is one reconciliation pass. An error is logged and counted but does
// not stop the loop.
type Step func(ctx context.Context) error

// Config holds loop configuration.
type Config struct {
	// Name labels logs and metrics
	Name string

	// Interval between steps
	Interval time.Duration

	// Immediate runs the first step as soon as Run starts
	Immediate bool

	// Logger for loop activity (default: no-op)
	Logger *zap.Logger
}

// Loop runs a Step periodically.
type Loop struct {
	config  Config
	step    Step
	logger  *zap.Logger
	trigger chan struct{}
}

// New creates a loop. It does nothing until Run is called.
func New(config Config, step Step) (*Loop, error) {
	if step == nil {
		return nil, fmt.Errorf("step cannot be nil")
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	}
	if config.Name == "" {
		config.Name = "loop"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		config:  config,
		step:    step,
		logger:  logger.With(zap.String("loop", config.Name)),
		trigger: make(chan struct{}, 1),
	}, nil
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.config.Name
}

// Run blocks, running the step every interval and whenever Trigger is
// called, until ctx is done. A step in progress is allowed to finish.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("starting loop", zap.Duration("interval", l.config.Interval))

	if l.config.Immediate {
		l.RunOnce(ctx)
	}

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped")
			return ctx.Err()

		case <-ticker.C:
			l.RunOnce(ctx)

		case <-l.trigger:
			l.RunOnce(ctx)
			ticker.Reset(l.config.Interval)
		}
	}
}

// RunOnce runs the step immediately on the calling goroutine and returns its
// error after logging it.
func (l *Loop) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := l.step(ctx)
	metrics.RecordLoopRun(l.config.Name, time.Since(start), err)
	if err != nil && ctx.Err() == nil {
		l.logger.Warn("step failed", zap.Error(err))
	}
	return err
}

// Trigger requests an early step. Requests made while one is already pending
// are merged.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}
