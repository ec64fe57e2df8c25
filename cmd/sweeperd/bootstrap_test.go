package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--config", "/etc/sweeper.toml", "--log-level", "debug", "--development"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.configPath != "/etc/sweeper.toml" || opts.logLevel != "debug" || !opts.development {
		t.Fatalf("unexpected options %+v", opts)
	}

	run := runOptions(opts)
	if run.LogLevel != "debug" || !run.Development {
		t.Fatalf("unexpected run options %+v", run)
	}

	if _, err := parseFlags([]string{"extra"}, io.Discard); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
	if _, err := parseFlags([]string{"--bogus"}, io.Discard); err == nil {
		t.Fatal("expected unknown flag to be rejected")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("IMMICH_URL", "")
	t.Setenv("IMMICH_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[immich]",
		`url = "http://photos.example:2283/api/"`,
		`api_key = "k"`,
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(launchOptions{configPath: path})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Immich.URL != "http://photos.example:2283" || !cfg.IsConfigured() {
		t.Fatalf("unexpected immich config %+v", cfg.Immich)
	}

	if err := os.WriteFile(path, []byte("[immich]\nurl = \"ftp://nope\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(launchOptions{configPath: path}); err == nil {
		t.Fatal("expected invalid immich url to fail")
	}
}
