package goRecover

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRecoveryStarted      = "recovery_started"
	auditEventRecoveryReset        = "recovery_reset"
	auditEventRecoveryComplete     = "recovery_complete"
	auditEventAgreementAccepted    = "agreement_accepted"
	auditEventMethodSelected       = "method_selected"
	auditEventVerificationSuccess  = "verification_success"
	auditEventVerificationFailure  = "verification_failure"
	auditEventTokenSent            = "token_sent"
	auditEventTokenResent          = "token_resent"
	auditEventTokenResendBlocked   = "token_resend_blocked"
	auditEventFirstContactToken    = "first_contact_token"
	auditEventRemoteRound          = "remote_round"
	auditEventOAuthRedirect        = "oauth_redirect"
	auditEventOAuthCallback        = "oauth_callback"
	auditEventActionUnlock         = "action_unlock"
	auditEventActionReset          = "action_reset"
	auditEventActionSendPassword   = "action_send_new_password"
	auditEventIntruderLockout      = "intruder_lockout"
	auditEventLifetimeGateTrimmed  = "lifetime_gate_trimmed"
	auditEventSequenceViolation    = "sequence_violation"
	auditEventUnlockNoticeDelivery = "unlock_notice_delivery"
)

// AuditErrorCode defines a public type used by goRecover APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrVerificationFailed AuditErrorCode = "verification_failed"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrNoProfile          AuditErrorCode = "no_profile"
	auditErrSequence           AuditErrorCode = "sequence_violation"
	auditErrNotPermitted       AuditErrorCode = "action_not_permitted"
	auditErrTooSoon            AuditErrorCode = "password_too_soon"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrCooldown           AuditErrorCode = "cooldown"
	auditErrIntruderLocked     AuditErrorCode = "intruder_locked"
	auditErrIdentityMismatch   AuditErrorCode = "identity_mismatch"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	bean *RecoveryBean,
	method VerificationMethod,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: sessionIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if bean != nil {
		event.RecoveryID = bean.RecoveryID
		event.ProfileID = bean.ProfileID
		// Synthetic sessions audit without a user id so the log itself
		// cannot be used as an enumeration oracle.
		if !bean.Bogus && bean.User != nil {
			event.UserID = bean.User.UserID
		}
	}
	if method != MethodNone {
		event.Method = method.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrVerificationFailed),
		errors.Is(err, ErrRemoteFailed),
		errors.Is(err, ErrOAuthStateInvalid):
		return auditErrVerificationFailed
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrNoProfileAssigned),
		errors.Is(err, ErrRecoveryDisabled):
		return auditErrNoProfile
	case errors.Is(err, ErrRecoverySequenceIncomplete),
		errors.Is(err, ErrRecoveryNotComplete):
		return auditErrSequence
	case errors.Is(err, ErrActionNotPermitted),
		errors.Is(err, ErrActionAlreadyExecuted):
		return auditErrNotPermitted
	case errors.Is(err, ErrPasswordTooSoon):
		return auditErrTooSoon
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenNotSent):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenAttemptsExceeded),
		errors.Is(err, ErrRemoteRoundsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrTokenResendCooldown):
		return auditErrCooldown
	case errors.Is(err, ErrIntruderLocked):
		return auditErrIntruderLocked
	case errors.Is(err, ErrOAuthIdentityMismatch):
		return auditErrIdentityMismatch
	case errors.Is(err, ErrDirectoryUnavailable),
		errors.Is(err, ErrTokenUnavailable),
		errors.Is(err, ErrSenderUnavailable),
		errors.Is(err, ErrRemoteUnavailable),
		errors.Is(err, ErrOAuthUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
