package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SQLSTUDIO_LOG_LEVEL.
const EnvPrefix = "SQLSTUDIO"

// Load reads configuration from path. If path is empty, uses DefaultPath.
// A missing file yields the defaults with environment overrides applied.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_dir", cfg.AppDir)
	v.SetDefault("converter_path", cfg.ConverterPath)
	v.SetDefault("current_dir", cfg.CurrentDir)
	v.SetDefault("recent_dirs", cfg.RecentDirs)
	v.SetDefault("save_session", cfg.SaveSession)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("modes_dir", cfg.ModesDir)
	v.SetDefault("intervals.file_check", cfg.Intervals.FileCheck)
	v.SetDefault("intervals.license_check", cfg.Intervals.LicenseCheck)
	v.SetDefault("intervals.checkpoint", cfg.Intervals.Checkpoint)
	v.SetDefault("watch_fs", cfg.WatchFS)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.max_age_days", cfg.Log.MaxAgeDays)
	v.SetDefault("log.compress", cfg.Log.Compress)
	v.SetDefault("dashboard.enabled", cfg.Dashboard.Enabled)
	v.SetDefault("dashboard.port", cfg.Dashboard.Port)
	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("view.theme", cfg.View.Theme)
	v.SetDefault("view.status_bar", cfg.View.StatusBar)
	v.SetDefault("view.target_field", cfg.View.TargetField)
	v.SetDefault("view.wrapping", cfg.View.Wrapping)
	v.SetDefault("view.highlighter", cfg.View.Highlighter)
	v.SetDefault("view.line_numbers", cfg.View.LineNumbers)
	v.SetDefault("view.width", cfg.View.Width)
	v.SetDefault("view.height", cfg.View.Height)
	v.SetDefault("view.x", cfg.View.X)
	v.SetDefault("view.y", cfg.View.Y)
	v.SetDefault("view.maximized", cfg.View.Maximized)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path. An existing file
// is kept unless overwrite is set.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("config already exists: %s", path)
		}
	}
	cfg := Default()
	return path, cfg.Save(path)
}
