// Package converter runs the external SQL conversion program.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Runner executes the converter with the given arguments and returns its
// standard output.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecutableName returns the converter file name for the running OS.
func ExecutableName() string {
	if runtime.GOOS == "windows" {
		return "sqlines.exe"
	}
	return "sqlines"
}

// DefaultPath returns the converter location inside appDir.
func DefaultPath(appDir string) string {
	return filepath.Join(appDir, ExecutableName())
}

// Process runs the converter executable. There is no timeout; a run ends
// when the program exits or ctx is cancelled.
type Process struct {
	path   string
	logger *zap.Logger
}

// NewProcess returns a Process for the executable at path.
func NewProcess(path string, logger *zap.Logger) *Process {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{path: path, logger: logger}
}

// Path returns the executable path.
func (p *Process) Path() string {
	return p.path
}

// Run starts the converter and waits for it to exit. The program's exit
// status is not treated as an error because it reports problems through
// its log file; only a failure to start or a cancelled ctx is.
func (p *Process) Run(ctx context.Context, args ...string) (string, error) {
	if _, err := os.Stat(p.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrConverterNotFound, p.path)
		}
		return "", fmt.Errorf("failed to stat converter: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("running converter", zap.String("path", p.path), zap.Strings("args", args))
	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.String(), ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.logger.Warn("converter exited with error",
			zap.Int("code", exitErr.ExitCode()),
			zap.String("stderr", strings.TrimSpace(stderr.String())))
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to run converter: %w", err)
	}
	return stdout.String(), nil
}

// ConvertArgs builds the argument list for one conversion.
func ConvertArgs(sourceMode, targetMode, in, out, log string) []string {
	return []string{
		"-s = " + sourceMode,
		"-t = " + targetMode,
		"-in = " + in,
		"-out = " + out,
		"-log = " + log,
	}
}

// ProbeArgs builds the argument list for a license probe.
func ProbeArgs(log string) []string {
	return []string{"-log=" + log}
}
