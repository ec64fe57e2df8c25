// Package immich is the HTTP client for the Immich photo server REST API.
//
// The client covers the handful of endpoints sweeper needs: paginated asset
// listing through the metadata search, asset lookup, face and metadata
// annotations, thumbnail download, library statistics, and deletion. Every
// call carries the x-api-key header. Non-2xx responses surface as
// *StatusError values wrapped with a services marker so callers can decide
// whether a failure is a configuration problem, a missing asset, or a
// transient fault worth logging and skipping.
package immich
