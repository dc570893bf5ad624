// Package internal contains helper utilities that are intentionally private to
// goRecover, including secure random generation and token encoding helpers.
//
// # Sub-packages
//
//   - limiters — domain-specific rate limiters (intruder bookkeeping, token resend)
//   - stores — Redis-backed token record store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goRecover API.
//   - Be imported by any package outside the goRecover module.
package internal
