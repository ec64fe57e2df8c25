// Package preflight provides readiness checks for the filesystem paths and
// the Immich server that sweeper depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start, since credentials may arrive later through the dashboard. The CLI
// "sweeper status" command renders the same results as a table.
package preflight
