// Package repositories implements SQLite persistence for catalog data.
//
// Key Implementations:
//   - [PlaylistCacheRepository] : ordered playlist tracks as last fetched from the catalog,
//     bounded by a TTL. Implements services.TrackCache.
//
// Only catalog data is stored. Mood input and recommendation history are never persisted.
package repositories
