// Package services defines the [Source] and [Target] interfaces the sync engine consumes and implements them
// for Hoarder and Tana.
//
// # Transport
//
// Both clients share [APIService], a small JSON-over-HTTP helper. Authentication is a static bearer token
// carried by an [oauth2.StaticTokenSource] client built with [NewTokenClient].
//
// # Hoarder
//
// [HoarderService] pages through GET {base}/api/v1/bookmarks with an opaque cursor and builds archive
// links as {base}/archive/{assetId} without a network call.
//
// # Tana
//
// [TanaService] posts {"targetNodeId", "nodes": [doc]} to the Input API endpoint. Documents are validated
// before sending and requests are paced with [rate.Limiter].
//
// # Error Handling
//
// Non-2xx responses become [*APIError] values that wrap:
//   - [shared.ErrSourceRequest] : Hoarder request failed
//   - [shared.ErrTargetRequest] : Tana rejected or failed to accept a node
//
// Transport failures are wrapped with the same sentinels.
package services
