// Package stores provides the Redis-backed, short-lived record store for
// recovery token codes.
//
// # Design
//
// The store persists a versioned, binary-encoded record in Redis with a TTL.
// Consume uses a WATCH/MULTI optimistic transaction with automatic retry on
// contention. Records are single-use: consumed or deleted on success, and
// enforce attempt limits to resist brute-force attacks. Code comparisons use
// constant-time compare.
//
// # What this package must NOT do
//
//   - Import goRecover or any sibling internal package.
//   - Log or expose plaintext codes.
//   - Use non-constant-time comparisons for code matching.
package stores
