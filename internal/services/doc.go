// Package services defines shared utilities consumed by the scan coordinator,
// the dashboard service, and the Immich integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, asset IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (configuration vs transient vs not found) with errors.Is.
//
// Use these helpers when wiring new components so error reporting and log
// fields stay uniform across the service.
package services
