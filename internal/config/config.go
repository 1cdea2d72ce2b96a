// Package config holds the application settings.
//
// Settings are loaded once at startup and passed explicitly to the
// components that need them; nothing reads them from package state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sqlines/studio/internal/converter"
	"github.com/sqlines/studio/internal/logging"
)

// Config is the top-level application configuration.
type Config struct {
	AppDir        string          `mapstructure:"app_dir" yaml:"app_dir"`
	ConverterPath string          `mapstructure:"converter_path" yaml:"converter_path,omitempty"`
	CurrentDir    string          `mapstructure:"current_dir" yaml:"current_dir"`
	RecentDirs    []string        `mapstructure:"recent_dirs" yaml:"recent_dirs"`
	SaveSession   bool            `mapstructure:"save_session" yaml:"save_session"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	ModesDir      string          `mapstructure:"modes_dir" yaml:"modes_dir,omitempty"`
	Intervals     Intervals       `mapstructure:"intervals" yaml:"intervals"`
	WatchFS       bool            `mapstructure:"watch_fs" yaml:"watch_fs"`
	Log           logging.Config  `mapstructure:"log" yaml:"log"`
	Dashboard     DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	History       HistoryConfig   `mapstructure:"history" yaml:"history"`
	View          ViewConfig      `mapstructure:"view" yaml:"view"`
}

// Intervals controls how often the background loops run.
type Intervals struct {
	FileCheck    time.Duration `mapstructure:"file_check" yaml:"file_check"`
	LicenseCheck time.Duration `mapstructure:"license_check" yaml:"license_check"`
	Checkpoint   time.Duration `mapstructure:"checkpoint" yaml:"checkpoint"`
}

// MarshalYAML writes durations in their string form so the file stays
// readable and round-trips through Load.
func (iv Intervals) MarshalYAML() (interface{}, error) {
	return struct {
		FileCheck    string `yaml:"file_check"`
		LicenseCheck string `yaml:"license_check"`
		Checkpoint   string `yaml:"checkpoint"`
	}{
		FileCheck:    iv.FileCheck.String(),
		LicenseCheck: iv.LicenseCheck.String(),
		Checkpoint:   iv.Checkpoint.String(),
	}, nil
}

// DashboardConfig configures the optional monitoring server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// HistoryConfig configures the conversion history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"` // empty means <state_dir>/history.db
}

// ViewConfig keeps the presentation preferences of a front end.
type ViewConfig struct {
	Theme       string `mapstructure:"theme" yaml:"theme"`               // light, dark
	StatusBar   string `mapstructure:"status_bar" yaml:"status_bar"`     // show, hide
	TargetField string `mapstructure:"target_field" yaml:"target_field"` // always, as-needed
	Wrapping    bool   `mapstructure:"wrapping" yaml:"wrapping"`
	Highlighter bool   `mapstructure:"highlighter" yaml:"highlighter"`
	LineNumbers bool   `mapstructure:"line_numbers" yaml:"line_numbers"`
	Width       int    `mapstructure:"width" yaml:"width"`
	Height      int    `mapstructure:"height" yaml:"height"`
	X           int    `mapstructure:"x" yaml:"x"`
	Y           int    `mapstructure:"y" yaml:"y"`
	Maximized   bool   `mapstructure:"maximized" yaml:"maximized"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		AppDir:      defaultAppDir(),
		CurrentDir:  home,
		RecentDirs:  []string{},
		SaveSession: true,
		StateDir:    defaultStateDir(home),
		Intervals: Intervals{
			FileCheck:    2 * time.Second,
			LicenseCheck: 10 * time.Second,
			Checkpoint:   40 * time.Second,
		},
		WatchFS: true,
		Log:     logging.DefaultConfig(),
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		View: ViewConfig{
			Theme:       "light",
			StatusBar:   "show",
			TargetField: "as-needed",
			Highlighter: true,
			LineNumbers: true,
			Width:       770,
			Height:      650,
		},
	}
}

// DefaultPath returns ~/.config/sqlstudio/settings.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir: %w", err)
	}
	return filepath.Join(dir, "sqlstudio", "settings.yaml"), nil
}

// ConverterBinary returns the converter executable to run.
func (c *Config) ConverterBinary() string {
	if c.ConverterPath != "" {
		return c.ConverterPath
	}
	return converter.DefaultPath(c.AppDir)
}

// HistoryPath returns the history database location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.StateDir, "history.db")
}

// AddRecentDir moves dir to the front of RecentDirs.
func (c *Config) AddRecentDir(dir string) {
	if dir == "" {
		return
	}
	out := []string{dir}
	for _, d := range c.RecentDirs {
		if d != dir {
			out = append(out, d)
		}
	}
	if len(out) > maxRecentDirs {
		out = out[:maxRecentDirs]
	}
	c.RecentDirs = out
}

const maxRecentDirs = 10

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.View.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("view.theme must be light or dark, got %q", c.View.Theme)
	}
	switch c.View.StatusBar {
	case "show", "hide":
	default:
		return fmt.Errorf("view.status_bar must be show or hide, got %q", c.View.StatusBar)
	}
	switch c.View.TargetField {
	case "always", "as-needed":
	default:
		return fmt.Errorf("view.target_field must be always or as-needed, got %q", c.View.TargetField)
	}
	if c.Intervals.FileCheck <= 0 || c.Intervals.LicenseCheck <= 0 || c.Intervals.Checkpoint <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	return nil
}

func defaultAppDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func defaultStateDir(home string) string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "sqlstudio")
	}
	return filepath.Join(home, ".local", "state", "sqlstudio")
}
