// Package fireshare provides an HTTP client for the Fireshare server API.
//
// # Overview
//
// The client covers the endpoints ember needs: session login, video listings,
// video details and edits, uploads, processing job status, games, tags and the
// public configuration. Responses are decoded into the types in
// types.go, which mirror the server's JSON.
//
// # Request Coalescing
//
// Every GET goes through a singleflight group keyed by method, path and the
// encoded query string (url.Values.Encode sorts keys, so parameter order does
// not matter):
//
//	request:get:/api/videos:sort=updated_at+desc
//
// When two callers ask for the same key while a request is in flight, only one
// network call is made and both receive the same response body. The key is
// released when the request settles, so the next call always hits the
// network. There is no TTL and nothing is cached after completion.
//
// The shared request runs detached from the first caller's context. A caller
// that gives up early gets ctx.Err() without failing the other waiters.
//
// # Retries
//
// Queries retry once on 5xx responses and transport errors. Mutations
// (POST/PUT/DELETE, uploads) are never retried. Processing status polls are
// neither coalesced nor retried; the jobs package owns that policy.
//
// # Errors
//
// Responses with status >= 400 become *APIError, carrying the server's
// {"error": "..."} text when present:
//
//   - IsUnauthorized: 401, the session cookie is missing or expired
//   - IsValidation: other 4xx, show APIError.Message verbatim
//   - Retryable: 5xx and network failures
//
// UserMessage turns any of these into the text shown in the UI.
//
// # Sessions
//
// Authentication is cookie based. NewClient installs a cookie jar shared by the
// regular and upload transports; Login stores the session cookie in it and
// ClearSession empties it when the server stops accepting the session.
// Uploads use a transport without a client-side timeout so large files are
// bounded only by the caller's context.
package fireshare
