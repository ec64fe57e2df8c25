// Package api is the transport-agnostic dashboard service. It owns the
// optional configured Handle (Immich client, scan coordinator, result store)
// and exposes start/stop/status, result queries, marking, deletion, and
// export as plain Go calls returning DTOs.
//
// # Configuration
//
// A Service starts unconfigured when no Immich address or API key is known.
// Result queries keep working against the local store, while operations that
// need Immich return ErrNotConfigured until Configure validates a connection
// and builds the Handle. A connection supplied through Configure is persisted
// to <data_dir>/connection.toml.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Timestamps use RFC3339 with milliseconds.
// Percent is -1 while the library total is unknown.
package api
