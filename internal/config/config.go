package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Immich contains the connection to the photo server.
type Immich struct {
	URL         string `toml:"url"`
	APIKey      string `toml:"api_key"`
	ForceDelete bool   `toml:"force_delete"`
}

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Scan contains batch coordinator tuning.
type Scan struct {
	ConfidenceFloor   float64 `toml:"confidence_floor"`
	SkipAnalyzed      bool    `toml:"skip_analyzed"`
	PageSize          int     `toml:"page_size"`
	ProgressEvery     int     `toml:"progress_every"`
	ItemDelayMS       int     `toml:"item_delay_ms"`
	VisualInspection  bool    `toml:"visual_inspection"`
	InspectMaxBytes   int64   `toml:"inspect_max_bytes"`
	ThumbnailMaxBytes int64   `toml:"thumbnail_max_bytes"`
}

// Rules contains classifier thresholds.
type Rules struct {
	ThumbnailCeiling int     `toml:"thumbnail_ceiling"`
	MinFileSize      int64   `toml:"min_file_size"`
	MaxFileSize      int64   `toml:"max_file_size"`
	LineThreshold    int     `toml:"line_threshold"`
	UniformRatio     float64 `toml:"uniform_ratio"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sweeper.
//
// Configuration sections by subsystem:
//   - Immich: server address, API key, and delete behaviour
//   - Paths: data directory (database, lock, saved connection), logs, API bind
//   - Scan: confidence floor, skip policy, paging and pacing
//   - Rules: classifier thresholds
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Immich        Immich        `toml:"immich"`
	Paths         Paths         `toml:"paths"`
	Scan          Scan          `toml:"scan"`
	Rules         Rules         `toml:"rules"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sweeper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sweeper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite result store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "sweeper.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "sweeper.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "sweeper.log")
}

// IsConfigured reports whether an Immich address and API key are both present.
func (c *Config) IsConfigured() bool {
	return c != nil && c.Immich.URL != "" && c.Immich.APIKey != ""
}

// ItemDelay returns the per-asset pacing delay.
func (c *Config) ItemDelay() time.Duration {
	if c.Scan.ItemDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.Scan.ItemDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
