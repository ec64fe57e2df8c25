package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Missing Immich credentials are
// allowed; a malformed Immich URL is not.
func (c *Config) Validate() error {
	if err := c.validateImmich(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateImmich() error {
	if c.Immich.URL == "" {
		return nil
	}
	return ValidateImmichURL(c.Immich.URL)
}

// ValidateImmichURL reports whether raw is an absolute http(s) URL.
func ValidateImmichURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("immich.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("immich.url must use http or https, got %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("immich.url must include a host, got %q", raw)
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.ConfidenceFloor < 0 || c.Scan.ConfidenceFloor > 1 {
		return errors.New("scan.confidence_floor must be between 0 and 1")
	}
	if c.Scan.PageSize > maxPageSize {
		return fmt.Errorf("scan.page_size must be at most %d", maxPageSize)
	}
	if c.Scan.ThumbnailMaxBytes > 64*1024*1024 {
		return errors.New("scan.thumbnail_max_bytes must be at most 64 MiB")
	}
	return nil
}

func (c *Config) validateRules() error {
	if c.Rules.MinFileSize >= c.Rules.MaxFileSize {
		return errors.New("rules.min_file_size must be less than rules.max_file_size")
	}
	if c.Rules.UniformRatio > 1 {
		return errors.New("rules.uniform_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
