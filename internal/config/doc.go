// Package config loads, normalizes, and validates sweeper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// IMMICH_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, so the data directory, the Immich connection, and scan tuning are
// discovered in one pass.
//
// Immich credentials are optional at load time. A config without them is the
// "not configured" state; the dashboard can supply credentials at runtime and
// persist them with SaveConnection.
package config
