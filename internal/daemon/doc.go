// Package daemon coordinates the long-running sweeper process.
//
// It serves the dashboard HTTP API on top of api.Service, guards the process
// with a flock-based single-instance lock in the data directory, and stops an
// active scan on shutdown. Every route except /health requires the bearer
// token when one is configured.
//
// Keep orchestration here: scanning lives in internal/scan and the dashboard
// operations in internal/api. Handlers only decode requests, call the
// service, and map sentinel errors to status codes.
package daemon
