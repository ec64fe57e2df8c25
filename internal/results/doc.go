// Package results persists classification verdicts in SQLite.
//
// The store keeps two tables. candidates holds every verdict that cleared the
// confidence floor together with its deletion mark; analyzed_assets is a ledger
// of every asset a scan looked at, which lets later scans skip work and gives
// statistics an honest analyzed count. Writes are single statements retried on
// SQLITE_BUSY, so the scan worker and API handlers can interleave safely.
package results
