// Package logging assembles structured slog loggers and formatting helpers used
// across sweeper.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scan code can automatically
// tag log lines with run IDs, asset IDs, and correlation IDs. Credential
// attributes such as api_key are masked by both handlers. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
