package goRecover

import "time"

// SecurityReport defines a public type used by goRecover APIs.
//
// SecurityReport is a point-in-time snapshot of the engine's hardening
// posture, intended for startup logging and operational review.
type SecurityReport struct {
	BogusSessionsEnabled  bool
	IntruderLockoutActive bool
	PenaltyWindow         [2]time.Duration
	TokenCodeDigits       int
	TokenMaxAttempts      int
	TokenResendCooldown   time.Duration
	PreviousAuthEnabled   bool
	MarkerSigningMethod   string
	OAuthEnabled          bool
	RemoteEnabled         bool
	SessionPersistence    bool
	SessionTTLJittered    bool
	ProfileCount          int
	AuditSinkAttached     bool
	MetricsEnabled        bool
}

// SecurityReport describes the securityReport operation and its observable behavior.
//
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		BogusSessionsEnabled:  e.config.Bogus.Enabled,
		IntruderLockoutActive: e.config.Intruder.Enabled && e.config.Intruder.MaxAttempts > 0,
		PenaltyWindow:         [2]time.Duration{e.config.Penalty.MinDelay, e.config.Penalty.MaxDelay},
		TokenCodeDigits:       e.config.Token.CodeDigits,
		TokenMaxAttempts:      e.config.Token.MaxAttempts,
		TokenResendCooldown:   e.config.Token.ResendCooldown,
		PreviousAuthEnabled:   e.config.PreviousAuth.Enabled,
		MarkerSigningMethod:   e.config.PreviousAuth.SigningMethod,
		OAuthEnabled:          e.config.OAuth.Enabled,
		RemoteEnabled:         e.config.Remote.Enabled,
		SessionPersistence:    e.config.Bean.PersistEnabled,
		SessionTTLJittered:    e.config.Bean.PersistEnabled && e.config.Bean.JitterEnabled,
		ProfileCount:          len(e.config.Profiles),
		AuditSinkAttached:     e.audit != nil && e.audit.sinkAttached(),
		MetricsEnabled:        e.config.Metrics.Enabled,
	}
}
