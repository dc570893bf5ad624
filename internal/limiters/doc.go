// Package limiters provides domain-specific rate limiters for the recovery
// engine.
//
// # Limiters
//
//   - [IntruderLimiter] — failed-attempt bookkeeping keyed by user and client
//     address with a rolling window and threshold lockout.
//   - [ResendLimiter] — minimum gap between token deliveries per session.
//
// All limiters are nil-safe: calling any method on a nil receiver is a no-op.
//
// # What this package must NOT do
//
//   - Import goRecover or any sibling internal package.
//   - Make policy decisions beyond counting — the engine decides consequences.
package limiters
