// Package goRecover provides an identity-verification and credential-recovery
// engine: a resumable, multi-step flow that proves a caller controls an
// account through configurable verification methods and then unlocks the
// account, resets its password, or delivers a generated one out-of-band.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build], provided the caller serializes requests that share one
// [RecoveryBean].
//
// # Architecture boundaries
//
// goRecover is the public surface. It exposes [Engine], [Builder], [Config],
// the [RecoveryBean] aggregate, and the collaborator interfaces
// (DirectoryService, ResponseStore, TokenSender, ...). All internal
// coordination — token records, intruder bookkeeping, random material — lives
// under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Render forms, route HTTP, or speak the directory protocol; those belong
//     to the caller and its collaborator implementations.
//   - Reveal through timing, errors, or stage routing whether a searched-for
//     account exists.
//
// # Security contract
//
// Every failed verification attempt, for real and synthetic sessions alike,
// takes the same jittered penalty path before returning. Stage decisions are
// recomputed from current state on every call; nothing a caller submits can
// skip a guard that an earlier call already enforced.
package goRecover
