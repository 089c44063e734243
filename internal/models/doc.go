// Package models defines the request-scoped entities that flow between the catalog access layer and its callers.
//
// Entities, leaf first:
//   - [Credentials] : client id, client secret and refresh token, supplied once at process start
//   - [AccessToken] : short-lived bearer credential with an absolute expiry
//   - [SearchQuery] : raw mood text plus its normalized keywords
//   - [PlaylistCandidate] : one playlist returned by a search
//   - [Track] : one entry of a playlist, in catalog order
//   - [RecommendationResult] : the selected playlist and its first tracks
//
// Everything except Credentials and AccessToken lives for a single request.
package models
