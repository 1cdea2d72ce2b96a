// Package license checks whether the converter is registered.
//
// The converter reads license.txt from its own directory. A probe run with
// only a log path prints an evaluation banner when the license is missing
// or invalid.
package license

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/converter"
	"github.com/sqlines/studio/internal/metrics"
)

// FileName is the license file name inside the application directory.
const FileName = "license.txt"

// evaluationBanner appears in the probe output of an unlicensed converter.
const evaluationBanner = "FOR EVALUATION USE ONLY"

var (
	// ErrLicenseFileMissing is returned when license.txt does not exist.
	ErrLicenseFileMissing = errors.New("license file not found")

	// ErrInvalidRegistration is returned by Register when the converter
	// still reports an evaluation license.
	ErrInvalidRegistration = errors.New("invalid registration data")
)

// Listener is told the license state after it may have changed.
type Listener func(active bool)

// ListenerID identifies a listener registration.
type ListenerID uint64

// Checker probes the converter and watches license.txt for changes.
type Checker struct {
	path   string
	runner converter.Runner
	logger *zap.Logger

	// mu serializes probes, registration and polling.
	mu           sync.Mutex
	lastModified int64

	lmu       sync.Mutex
	nextID    ListenerID
	listeners []registration
}

type registration struct {
	id ListenerID
	fn Listener
}

// New creates a Checker for the license file in appDir.
func New(appDir string, runner converter.Runner, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		path:   filepath.Join(appDir, FileName),
		runner: runner,
		logger: logger,
	}
	c.lastModified = c.modTime()
	return c
}

// Path returns the license file path.
func (c *Checker) Path() string {
	return c.path
}

// IsActive runs a probe and reports whether the converter is licensed.
func (c *Checker) IsActive(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isActive(ctx)
}

func (c *Checker) isActive(ctx context.Context) (bool, error) {
	if _, err := os.Stat(c.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrLicenseFileMissing, c.path)
		}
		return false, fmt.Errorf("failed to stat license file: %w", err)
	}

	log, err := os.CreateTemp("", "sqlines-log-*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create log file: %w", err)
	}
	log.Close()
	defer os.Remove(log.Name())

	out, err := c.runner.Run(ctx, converter.ProbeArgs(log.Name())...)
	if err != nil {
		return false, err
	}
	active := !strings.Contains(out, evaluationBanner)
	metrics.SetLicenseActive(active)
	return active, nil
}

// Check is one polling step: if license.txt changed since the last check,
// the converter is probed again and listeners are told the result. A file
// that disappears is reported as inactive without a probe.
func (c *Checker) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mtime := c.modTime()
	if mtime == c.lastModified {
		return nil
	}

	var active bool
	if mtime != 0 {
		var err error
		if active, err = c.isActive(ctx); err != nil {
			return err
		}
	} else {
		metrics.SetLicenseActive(false)
	}
	c.lastModified = mtime

	c.logger.Info("license changed", zap.Bool("active", active))
	c.fire(active)
	return nil
}

// Register writes the registration details to license.txt and probes the
// converter. Listeners are told the new state either way. The license file
// must already exist.
func (c *Checker) Register(ctx context.Context, name, number string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLicenseFileMissing, c.path)
		}
		return fmt.Errorf("failed to stat license file: %w", err)
	}

	content := "SQLines license file:\n" +
		"\nRegistration Name: " + name +
		"\nRegistration Number: " + number
	if err := os.WriteFile(c.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write license file: %w", err)
	}
	c.lastModified = c.modTime()

	active, err := c.isActive(ctx)
	if err != nil {
		return err
	}
	c.fire(active)
	if !active {
		return ErrInvalidRegistration
	}
	c.logger.Info("license registered", zap.String("name", name))
	return nil
}

// AddListener registers fn. Listeners run on the goroutine that detected
// the change and must not call back into the Checker.
func (c *Checker) AddListener(fn Listener) ListenerID {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, registration{id: c.nextID, fn: fn})
	return c.nextID
}

// RemoveListener unregisters the listener with the given id.
func (c *Checker) RemoveListener(id ListenerID) bool {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	for i, r := range c.listeners {
		if r.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Checker) fire(active bool) {
	c.lmu.Lock()
	fns := make([]Listener, len(c.listeners))
	for i, r := range c.listeners {
		fns[i] = r.fn
	}
	c.lmu.Unlock()

	for _, fn := range fns {
		fn(active)
	}
}

func (c *Checker) modTime() int64 {
	info, err := os.Stat(c.path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixMilli()
}
