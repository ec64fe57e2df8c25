package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImmich()
	c.normalizeScan()
	c.normalizeRules()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SWEEPER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeImmich() {
	if strings.TrimSpace(c.Immich.URL) == "" {
		if value, ok := os.LookupEnv("IMMICH_URL"); ok {
			c.Immich.URL = value
		}
	}
	if strings.TrimSpace(c.Immich.APIKey) == "" {
		if value, ok := os.LookupEnv("IMMICH_API_KEY"); ok {
			c.Immich.APIKey = value
		}
	}
	c.Immich.URL = NormalizeImmichURL(c.Immich.URL)
	c.Immich.APIKey = strings.TrimSpace(c.Immich.APIKey)
}

func (c *Config) normalizeScan() {
	if c.Scan.PageSize <= 0 {
		c.Scan.PageSize = defaultPageSize
	}
	if c.Scan.ProgressEvery <= 0 {
		c.Scan.ProgressEvery = defaultProgressEvery
	}
	if c.Scan.ItemDelayMS < 0 {
		c.Scan.ItemDelayMS = 0
	}
	if c.Scan.InspectMaxBytes <= 0 {
		c.Scan.InspectMaxBytes = defaultInspectMaxBytes
	}
	if c.Scan.ThumbnailMaxBytes <= 0 {
		c.Scan.ThumbnailMaxBytes = defaultThumbnailMaxBytes
	}
}

func (c *Config) normalizeRules() {
	if c.Rules.ThumbnailCeiling <= 0 {
		c.Rules.ThumbnailCeiling = defaultThumbnailCeiling
	}
	if c.Rules.MinFileSize <= 0 {
		c.Rules.MinFileSize = defaultMinFileSize
	}
	if c.Rules.MaxFileSize <= 0 {
		c.Rules.MaxFileSize = defaultMaxFileSize
	}
	if c.Rules.LineThreshold <= 0 {
		c.Rules.LineThreshold = defaultLineThreshold
	}
	if c.Rules.UniformRatio <= 0 {
		c.Rules.UniformRatio = defaultUniformRatio
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
