// Package session provides optional Redis-backed persistence for recovery
// session state, so stateless frontends can park a recovery bean between
// requests.
//
// # Concurrency
//
// Records are plain read/modify/write. Requests that share one recovery
// session are serialized by the caller, so the store needs no compare-and-set
// machinery; the TTL (with optional jitter) is the only lifecycle control.
//
// # What this package must NOT do
//
//   - Import goRecover (no upward imports); it stores opaque JSON payloads.
//   - Interpret or validate the payload it stores.
package session
