package internaldefs

import (
	goRecover "github.com/MrEthical07/goRecover"
)

// CounterDef defines a public type used by goRecover APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goRecover.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goRecover APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goRecover.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the recovery engine.
var CounterDefs = []CounterDef{
	{ID: goRecover.MetricRecoveryStarted, Name: "gorecover_recovery_started_total", Help: "Started recovery sessions."},
	{ID: goRecover.MetricRecoveryBogus, Name: "gorecover_recovery_bogus_total", Help: "Synthetic recovery sessions created for unmatched searches."},
	{ID: goRecover.MetricRecoveryReset, Name: "gorecover_recovery_reset_total", Help: "Recovery sessions reset to identification."},
	{ID: goRecover.MetricRecoveryComplete, Name: "gorecover_recovery_complete_total", Help: "Recovery sessions reaching the full requirement set."},
	{ID: goRecover.MetricVerificationSuccess, Name: "gorecover_verification_success_total", Help: "Successful verification submissions."},
	{ID: goRecover.MetricVerificationFailure, Name: "gorecover_verification_failure_total", Help: "Failed verification submissions."},
	{ID: goRecover.MetricMethodUnavailable, Name: "gorecover_method_unavailable_total", Help: "Method selections rejected for unmet prerequisites."},
	{ID: goRecover.MetricTokenSent, Name: "gorecover_token_sent_total", Help: "Token codes delivered."},
	{ID: goRecover.MetricTokenResent, Name: "gorecover_token_resent_total", Help: "Token codes re-delivered."},
	{ID: goRecover.MetricTokenResendBlocked, Name: "gorecover_token_resend_blocked_total", Help: "Token resends blocked by cooldown."},
	{ID: goRecover.MetricTokenAttemptsExceeded, Name: "gorecover_token_attempts_exceeded_total", Help: "Token records invalidated by the attempt cap."},
	{ID: goRecover.MetricFirstContactToken, Name: "gorecover_first_contact_token_total", Help: "Sessions started from a delivered token."},
	{ID: goRecover.MetricRemoteRound, Name: "gorecover_remote_round_total", Help: "Remote verification rounds executed."},
	{ID: goRecover.MetricRemoteFailure, Name: "gorecover_remote_failure_total", Help: "Remote verifications ending in failure."},
	{ID: goRecover.MetricOAuthRedirect, Name: "gorecover_oauth_redirect_total", Help: "OAuth redirects issued."},
	{ID: goRecover.MetricOAuthMismatch, Name: "gorecover_oauth_mismatch_total", Help: "OAuth callbacks with a mismatched identity."},
	{ID: goRecover.MetricActionUnlock, Name: "gorecover_action_unlock_total", Help: "Unlock actions executed."},
	{ID: goRecover.MetricActionReset, Name: "gorecover_action_reset_total", Help: "Reset actions executed."},
	{ID: goRecover.MetricActionSendPassword, Name: "gorecover_action_send_password_total", Help: "Send-new-password actions executed."},
	{ID: goRecover.MetricActionFailure, Name: "gorecover_action_failure_total", Help: "Terminal actions ending in failure."},
	{ID: goRecover.MetricIntruderLockout, Name: "gorecover_intruder_lockout_total", Help: "Sessions refused by intruder lockout."},
	{ID: goRecover.MetricSequenceViolation, Name: "gorecover_sequence_violation_total", Help: "Sessions burned by sequence consistency checks."},
	{ID: goRecover.MetricLifetimeGateHit, Name: "gorecover_lifetime_gate_hit_total", Help: "Sessions refused by the minimum-password-lifetime gate."},
}

// HistogramDefs is an exported constant or variable used by the recovery engine.
var HistogramDefs = []HistogramDef{
	{ID: goRecover.MetricPenaltyLatency, Name: "gorecover_penalty_latency_seconds", Help: "Failure penalty latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the recovery engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the recovery engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
