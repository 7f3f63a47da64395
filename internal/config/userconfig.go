// Package config loads the user's play-deck settings from
// ~/.play-deck/config.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/asheshgoplani/play-deck/internal/fsutil"
	"github.com/asheshgoplani/play-deck/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

const (
	// DirName is the settings directory under the user's home.
	DirName = ".play-deck"
	// FileName is the config file inside the settings directory.
	FileName = "config.toml"

	// EnvHome overrides the settings directory.
	EnvHome = "PLAYDECK_HOME"
	// EnvServer overrides the configured server URL.
	EnvServer = "PLAYDECK_SERVER"

	// DefaultServer is where the playground service listens by default.
	DefaultServer = "http://localhost:8088"
)

// Defaults applied by the Get* accessors.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMinInterval = 2 * time.Second
	DefaultDebounce    = 200 * time.Millisecond
	DefaultTheme       = "dark"
	DefaultLogFile     = "debug.log"
)

// UserConfig is the on-disk configuration.
type UserConfig struct {
	// Server is the base URL of the playground service.
	Server string `toml:"server"`

	HTTP HTTPSettings `toml:"http"`
	Run  RunSettings  `toml:"run"`
	UI   UISettings   `toml:"ui"`
	Logs LogSettings  `toml:"logs"`
}

// HTTPSettings configures request/response calls.
type HTTPSettings struct {
	// Timeout bounds /run, /send-input and /save calls (Go duration, e.g. "30s").
	// Output streams are never timed out.
	Timeout string `toml:"timeout"`
}

// GetTimeout returns the request timeout, defaulting to 30s.
func (h HTTPSettings) GetTimeout() time.Duration {
	return parseDuration(h.Timeout, DefaultTimeout)
}

// RunSettings configures watch mode.
type RunSettings struct {
	// AutoRunOnSave re-runs the watched file whenever it is written (default: true)
	AutoRunOnSave *bool `toml:"auto_run_on_save"`

	// MinInterval is the minimum time between automatic runs (default: "2s")
	MinInterval string `toml:"min_interval"`

	// Debounce collapses bursts of file events (default: "200ms")
	Debounce string `toml:"debounce"`

	// FormatOnRun formats the buffer before every run (default: false)
	FormatOnRun *bool `toml:"format_on_run"`
}

// GetAutoRunOnSave returns whether to re-run on save, defaulting to true
func (r RunSettings) GetAutoRunOnSave() bool {
	if r.AutoRunOnSave == nil {
		return true
	}
	return *r.AutoRunOnSave
}

// GetFormatOnRun returns whether to format before running, defaulting to false
func (r RunSettings) GetFormatOnRun() bool {
	if r.FormatOnRun == nil {
		return false
	}
	return *r.FormatOnRun
}

func (r RunSettings) GetMinInterval() time.Duration {
	return parseDuration(r.MinInterval, DefaultMinInterval)
}

func (r RunSettings) GetDebounce() time.Duration {
	return parseDuration(r.Debounce, DefaultDebounce)
}

// UISettings configures the terminal UI.
type UISettings struct {
	// Theme is "dark" or "light" (default: "dark")
	Theme string `toml:"theme"`

	// ShowHelp shows the key help line (default: true)
	ShowHelp *bool `toml:"show_help"`

	// Example is loaded into an empty editor on start (default: "hello")
	Example string `toml:"example"`
}

// GetShowHelp returns whether to show the help line, defaulting to true
func (u UISettings) GetShowHelp() bool {
	if u.ShowHelp == nil {
		return true
	}
	return *u.ShowHelp
}

// LogSettings configures the debug log.
type LogSettings struct {
	// Debug enables logging to Path
	Debug bool `toml:"debug"`

	// Path of the log file (default: ~/.play-deck/debug.log)
	Path string `toml:"path"`
}

var (
	userConfigCache   *UserConfig
	userConfigCacheMu sync.RWMutex
)

// GetConfigDir returns the settings directory: $PLAYDECK_HOME or ~/.play-deck.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// GetConfigPath returns the path of config.toml.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// LoadUserConfig loads the config file, caching the result.
// A missing file is not an error: an empty config (all defaults) is returned.
func LoadUserConfig() (*UserConfig, error) {
	userConfigCacheMu.RLock()
	if userConfigCache != nil {
		cfg := userConfigCache
		userConfigCacheMu.RUnlock()
		return cfg, nil
	}
	userConfigCacheMu.RUnlock()

	userConfigCacheMu.Lock()
	defer userConfigCacheMu.Unlock()

	// Double-check after acquiring write lock
	if userConfigCache != nil {
		return userConfigCache, nil
	}

	path, err := GetConfigPath()
	if err != nil {
		return &UserConfig{}, err
	}

	var cfg UserConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			userConfigCache = &cfg
			return userConfigCache, nil
		}
		configLog.Warn("config_parse_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return &UserConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	configLog.Debug("config_loaded", slog.String("path", path))
	userConfigCache = &cfg
	return userConfigCache, nil
}

// SaveUserConfig writes cfg to config.toml and refreshes the cache.
// Uses temp file + rename so a crash never leaves a truncated config.
func SaveUserConfig(cfg *UserConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0600); err != nil {
		return err
	}

	userConfigCacheMu.Lock()
	userConfigCache = cfg
	userConfigCacheMu.Unlock()
	return nil
}

// ClearUserConfigCache forces the next LoadUserConfig to read the file again.
func ClearUserConfigCache() {
	userConfigCacheMu.Lock()
	userConfigCache = nil
	userConfigCacheMu.Unlock()
}

// load returns the cached config, or an empty one when it cannot be read.
func load() *UserConfig {
	cfg, err := LoadUserConfig()
	if err != nil || cfg == nil {
		return &UserConfig{}
	}
	return cfg
}

// GetServer returns the service URL: $PLAYDECK_SERVER, then the config file,
// then DefaultServer.
func GetServer() string {
	if s := os.Getenv(EnvServer); s != "" {
		return s
	}
	if s := load().Server; s != "" {
		return s
	}
	return DefaultServer
}

// GetTheme returns the UI theme, defaulting to "dark".
func GetTheme() string {
	if theme := load().UI.Theme; theme != "" {
		return theme
	}
	return DefaultTheme
}

func GetHTTPSettings() HTTPSettings {
	return load().HTTP
}

func GetRunSettings() RunSettings {
	return load().Run
}

func GetUISettings() UISettings {
	return load().UI
}

// GetLogSettings returns the log settings with Path resolved.
func GetLogSettings() LogSettings {
	settings := load().Logs
	if settings.Path == "" {
		if dir, err := GetConfigDir(); err == nil {
			settings.Path = filepath.Join(dir, DefaultLogFile)
		}
	}
	return settings
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		configLog.Warn("invalid_duration",
			slog.String("value", s),
			slog.Duration("default", def))
		return def
	}
	return d
}
