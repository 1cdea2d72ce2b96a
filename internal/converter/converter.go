package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sqlines/studio/internal/history"
	"github.com/sqlines/studio/internal/metrics"
	"github.com/sqlines/studio/internal/modes"
	"github.com/sqlines/studio/internal/tabs"
)

// Recorder stores finished runs. *history.DB implements it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (int64, error)
}

// Config holds Converter configuration.
type Config struct {
	// OutputDir receives converted files (default: working directory)
	OutputDir string

	// History records every run when set
	History Recorder

	// Logger for conversion activity (default: no-op)
	Logger *zap.Logger
}

// Result describes a finished conversion.
type Result struct {
	TargetPath string
	Output     string
	Duration   time.Duration
}

// Converter converts the source side of a tab into its target side.
type Converter struct {
	store  *tabs.Store
	modes  *modes.Set
	runner Runner
	config Config
	logger *zap.Logger
}

// New creates a Converter.
func New(store *tabs.Store, set *modes.Set, runner Runner, config Config) (*Converter, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if set == nil {
		return nil, fmt.Errorf("modes cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{store: store, modes: set, runner: runner, config: config, logger: logger}, nil
}

// Run converts tab i:
//  1. the source side is taken from its file, or from a temporary copy of
//     the source text when the tab has no file
//  2. the output goes to <OutputDir>/<title>.<target token>, which must not
//     exist yet
//  3. after the converter exits, the output is read into the tab's target
//     text and becomes its target file
//
// Temporary files are always removed. The output file is removed when the
// conversion fails.
func (c *Converter) Run(ctx context.Context, i int) (Result, error) {
	start := time.Now()
	tab, err := c.store.Tab(i)
	if err != nil {
		return Result{}, err
	}

	res, err := c.run(ctx, i, tab)
	res.Duration = time.Since(start)
	metrics.RecordConversion(res.Duration, err)
	c.record(ctx, i, tab, start, res, err)

	if err != nil {
		c.logger.Warn("conversion failed", zap.Int("tab", i), zap.Error(err))
		return res, err
	}
	c.logger.Info("conversion finished",
		zap.Int("tab", i),
		zap.String("target", res.TargetPath),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (c *Converter) run(ctx context.Context, i int, tab tabs.Tab) (res Result, err error) {
	sourceToken, ok := c.modes.Source.Token(tab.SourceMode)
	if !ok {
		return res, fmt.Errorf("%w: source mode %q", ErrUnknownMode, tab.SourceMode)
	}
	targetToken, ok := c.modes.Target.Token(tab.TargetMode)
	if !ok {
		return res, fmt.Errorf("%w: target mode %q", ErrUnknownMode, tab.TargetMode)
	}

	sourcePath := tab.SourceFilePath
	if sourcePath == "" {
		if tab.SourceText == "" {
			return res, ErrNoConversionData
		}
		sourcePath, err = writeTemp(fileStem(tab.Title)+"-*.tmp", tab.SourceText)
		if err != nil {
			return res, fmt.Errorf("failed to create temp source file: %w", err)
		}
		defer c.remove(sourcePath)
	}

	targetPath, err := c.createTarget(tab.Title, targetToken)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			c.remove(targetPath)
		}
	}()

	logPath, err := writeTemp("sqlines-log-*.tmp", "")
	if err != nil {
		return res, fmt.Errorf("failed to create log file: %w", err)
	}
	defer c.remove(logPath)

	res.Output, err = c.runner.Run(ctx, ConvertArgs(sourceToken, targetToken, sourcePath, targetPath, logPath)...)
	if err != nil {
		return res, err
	}

	data, err := os.ReadFile(targetPath)
	if err != nil {
		return res, fmt.Errorf("failed to read converted file: %w", err)
	}
	if err = c.store.SetTargetText(string(data), i); err != nil {
		return res, err
	}
	if err = c.store.SetTargetFilePath(targetPath, i); err != nil {
		return res, err
	}
	res.TargetPath = targetPath
	return res, nil
}

// createTarget creates the empty output file, failing if it already exists.
func (c *Converter) createTarget(title, token string) (string, error) {
	dir := c.config.OutputDir
	if dir == "" {
		dir = "."
	}
	path, err := filepath.Abs(filepath.Join(dir, fileStem(title)+"."+token))
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrTargetExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create target file: %w", err)
	}
	return path, f.Close()
}

func (c *Converter) record(ctx context.Context, i int, tab tabs.Tab, start time.Time, res Result, err error) {
	if c.config.History == nil {
		return
	}
	run := history.Run{
		Tab:        i,
		Title:      tab.Title,
		SourceMode: tab.SourceMode,
		TargetMode: tab.TargetMode,
		SourcePath: tab.SourceFilePath,
		TargetPath: res.TargetPath,
		StartedAt:  start,
		Duration:   res.Duration,
		Status:     history.StatusOK,
	}
	if err != nil {
		run.Status = history.StatusError
		run.Error = err.Error()
	}
	if _, herr := c.config.History.Record(context.WithoutCancel(ctx), run); herr != nil {
		c.logger.Warn("failed to record conversion", zap.Error(herr))
	}
}

func (c *Converter) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("failed to remove file", zap.String("path", path), zap.Error(err))
	}
}

// fileStem makes a tab title safe to use as a file name.
func fileStem(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, title)
	if title == "" || title == "." || title == ".." {
		return "untitled"
	}
	return title
}

func writeTemp(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
