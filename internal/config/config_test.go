package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"sweeper/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	t.Setenv("IMMICH_URL", "http://photos.example:2283/api/")
	t.Setenv("IMMICH_API_KEY", " env-key ")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "sweeper")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "sweeper.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Immich.URL != "http://photos.example:2283" {
		t.Fatalf("expected normalized immich url, got %q", cfg.Immich.URL)
	}
	if cfg.Immich.APIKey != "env-key" {
		t.Fatalf("expected immich key from env, got %q", cfg.Immich.APIKey)
	}
	if !cfg.IsConfigured() {
		t.Fatal("expected config to report configured")
	}
	if cfg.Scan.ConfidenceFloor != 0.4 {
		t.Fatalf("unexpected confidence floor: %v", cfg.Scan.ConfidenceFloor)
	}
	if !cfg.Scan.SkipAnalyzed {
		t.Fatal("expected skip_analyzed enabled by default")
	}
	if cfg.ItemDelay() != 0 {
		t.Fatalf("expected no item delay by default, got %v", cfg.ItemDelay())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadWithoutCredentialsIsNotConfigured(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMMICH_URL", "")
	t.Setenv("IMMICH_API_KEY", "")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.IsConfigured() {
		t.Fatal("expected unconfigured state without credentials")
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sweeper.toml")

	type payload struct {
		Immich struct {
			URL    string `toml:"url"`
			APIKey string `toml:"api_key"`
		} `toml:"immich"`
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Scan struct {
			ConfidenceFloor float64 `toml:"confidence_floor"`
			SkipAnalyzed    bool    `toml:"skip_analyzed"`
			ItemDelayMS     int     `toml:"item_delay_ms"`
		} `toml:"scan"`
	}
	custom := payload{}
	custom.Immich.URL = "https://immich.example.com/"
	custom.Immich.APIKey = "abc123"
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Scan.ConfidenceFloor = 0.5
	custom.Scan.SkipAnalyzed = false
	custom.Scan.ItemDelayMS = 100
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Immich.URL != "https://immich.example.com" {
		t.Fatalf("unexpected immich url: %q", cfg.Immich.URL)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Scan.ConfidenceFloor != 0.5 {
		t.Fatalf("expected confidence floor 0.5, got %v", cfg.Scan.ConfidenceFloor)
	}
	if cfg.Scan.SkipAnalyzed {
		t.Fatal("expected skip_analyzed disabled by file")
	}
	if cfg.ItemDelay().Milliseconds() != 100 {
		t.Fatalf("expected 100ms item delay, got %v", cfg.ItemDelay())
	}
	if cfg.Scan.PageSize != config.Default().Scan.PageSize {
		t.Fatalf("expected default page size, got %d", cfg.Scan.PageSize)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"bad floor", "[scan]\nconfidence_floor = 1.5\n", "confidence_floor"},
		{"bad scheme", "[immich]\nurl = \"ftp://photos\"\n", "http or https"},
		{"page size", "[scan]\npage_size = 5000\n", "page_size"},
		{"sizes", "[rules]\nmin_file_size = 100\nmax_file_size = 50\n", "min_file_size"},
		{"log level", "[logging]\nlevel = \"chatty\"\n", "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("IMMICH_URL", "")
			path := filepath.Join(t.TempDir(), "sweeper.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected %q in error, got %v", tc.wantMsg, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Immich.URL != "http://immich.local:2283" {
		t.Fatalf("unexpected sample url: %q", cfg.Immich.URL)
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	if _, ok, err := cfg.LoadConnection(); err != nil || ok {
		t.Fatalf("expected no saved connection, got ok=%v err=%v", ok, err)
	}
	if err := cfg.SaveConnection(config.Connection{URL: "http://immich:2283/api", APIKey: " secret "}); err != nil {
		t.Fatalf("SaveConnection: %v", err)
	}
	info, err := os.Stat(cfg.ConnectionPath())
	if err != nil {
		t.Fatalf("stat connection: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	if err := cfg.MergeSavedConnection(); err != nil {
		t.Fatalf("MergeSavedConnection: %v", err)
	}
	if cfg.Immich.URL != "http://immich:2283" || cfg.Immich.APIKey != "secret" {
		t.Fatalf("unexpected merged connection: %+v", cfg.Immich)
	}
}

func TestMergeSavedConnectionKeepsExplicitValues(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	if err := cfg.SaveConnection(config.Connection{URL: "http://saved:2283", APIKey: "saved"}); err != nil {
		t.Fatalf("SaveConnection: %v", err)
	}
	cfg.Immich.URL = "http://explicit:2283"

	if err := cfg.MergeSavedConnection(); err != nil {
		t.Fatalf("MergeSavedConnection: %v", err)
	}
	if cfg.Immich.URL != "http://explicit:2283" {
		t.Fatalf("expected explicit url to win, got %q", cfg.Immich.URL)
	}
	if cfg.Immich.APIKey != "saved" {
		t.Fatalf("expected saved key to fill gap, got %q", cfg.Immich.APIKey)
	}
}
