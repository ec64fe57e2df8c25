package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Connection is the Immich address and credential pair saved by the dashboard.
type Connection struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// ConnectionPath returns where dashboard-supplied credentials are persisted.
func (c *Config) ConnectionPath() string {
	return filepath.Join(c.Paths.DataDir, "connection.toml")
}

// LoadConnection reads the saved connection file. The boolean is false when no
// file exists.
func (c *Config) LoadConnection() (Connection, bool, error) {
	data, err := os.ReadFile(c.ConnectionPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Connection{}, false, nil
		}
		return Connection{}, false, fmt.Errorf("read connection: %w", err)
	}
	var conn Connection
	if err := toml.Unmarshal(data, &conn); err != nil {
		return Connection{}, false, fmt.Errorf("parse connection: %w", err)
	}
	conn.URL = NormalizeImmichURL(conn.URL)
	conn.APIKey = strings.TrimSpace(conn.APIKey)
	return conn, true, nil
}

// SaveConnection persists conn with owner-only permissions.
func (c *Config) SaveConnection(conn Connection) error {
	conn.URL = NormalizeImmichURL(conn.URL)
	conn.APIKey = strings.TrimSpace(conn.APIKey)
	data, err := toml.Marshal(conn)
	if err != nil {
		return fmt.Errorf("encode connection: %w", err)
	}
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(c.ConnectionPath(), data, 0o600); err != nil {
		return fmt.Errorf("write connection: %w", err)
	}
	return nil
}

// MergeSavedConnection fills missing Immich settings from the saved connection
// file. Values from the config file or environment take precedence.
func (c *Config) MergeSavedConnection() error {
	if c.IsConfigured() {
		return nil
	}
	conn, ok, err := c.LoadConnection()
	if err != nil || !ok {
		return err
	}
	if c.Immich.URL == "" {
		c.Immich.URL = conn.URL
	}
	if c.Immich.APIKey == "" {
		c.Immich.APIKey = conn.APIKey
	}
	return nil
}

// ApplyConnection overrides the Immich settings with conn.
func (c *Config) ApplyConnection(conn Connection) {
	c.Immich.URL = NormalizeImmichURL(conn.URL)
	c.Immich.APIKey = strings.TrimSpace(conn.APIKey)
}

// NormalizeImmichURL trims whitespace, trailing slashes, and a trailing /api
// segment so clients can append API paths uniformly.
func NormalizeImmichURL(raw string) string {
	value := strings.TrimRight(strings.TrimSpace(raw), "/")
	value = strings.TrimSuffix(value, "/api")
	return strings.TrimRight(value, "/")
}
