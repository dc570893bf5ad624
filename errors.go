package goRecover

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the recovery engine.
	ErrEngineNotReady = errors.New("recovery engine not ready")
	// ErrNilBean is an exported constant or variable used by the recovery engine.
	ErrNilBean = errors.New("nil recovery bean")
	// ErrUserNotFound is an exported constant or variable used by the recovery engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoProfileAssigned is an exported constant or variable used by the recovery engine.
	ErrNoProfileAssigned = errors.New("no recovery profile assigned")
	// ErrRecoveryDisabled is an exported constant or variable used by the recovery engine.
	ErrRecoveryDisabled = errors.New("recovery disabled for this account")
	// ErrRecoverySequenceIncomplete is an exported constant or variable used by the recovery engine.
	ErrRecoverySequenceIncomplete = errors.New("recovery sequence incomplete")
	// ErrRecoveryNotComplete is an exported constant or variable used by the recovery engine.
	ErrRecoveryNotComplete = errors.New("recovery requirements not satisfied")
	// ErrActionNotPermitted is an exported constant or variable used by the recovery engine.
	ErrActionNotPermitted = errors.New("recovery action not permitted by profile")
	// ErrActionAlreadyExecuted is an exported constant or variable used by the recovery engine.
	ErrActionAlreadyExecuted = errors.New("recovery action already executed")
	// ErrPasswordTooSoon is an exported constant or variable used by the recovery engine.
	ErrPasswordTooSoon = errors.New("password changed too recently")

	// ErrUnknownMethod is an exported constant or variable used by the recovery engine.
	ErrUnknownMethod = errors.New("unknown verification method")
	// ErrMethodUnavailable is an exported constant or variable used by the recovery engine.
	ErrMethodUnavailable = errors.New("verification method unavailable")
	// ErrMethodNotSelectable is an exported constant or variable used by the recovery engine.
	ErrMethodNotSelectable = errors.New("verification method not selectable")
	// ErrNoMethodInProgress is an exported constant or variable used by the recovery engine.
	ErrNoMethodInProgress = errors.New("no verification method in progress")
	// ErrVerificationFailed is an exported constant or variable used by the recovery engine.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrTokenInvalid is an exported constant or variable used by the recovery engine.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenAttemptsExceeded is an exported constant or variable used by the recovery engine.
	ErrTokenAttemptsExceeded = errors.New("token attempts exceeded")
	// ErrTokenDestinationRequired is an exported constant or variable used by the recovery engine.
	ErrTokenDestinationRequired = errors.New("token destination required")
	// ErrTokenDestinationUnknown is an exported constant or variable used by the recovery engine.
	ErrTokenDestinationUnknown = errors.New("unknown token destination")
	// ErrTokenNotSent is an exported constant or variable used by the recovery engine.
	ErrTokenNotSent = errors.New("no token sent for this session")
	// ErrTokenResendCooldown is an exported constant or variable used by the recovery engine.
	ErrTokenResendCooldown = errors.New("token resend cooldown active")
	// ErrTokenUnavailable is an exported constant or variable used by the recovery engine.
	ErrTokenUnavailable = errors.New("token service unavailable")

	// ErrRemoteUnavailable is an exported constant or variable used by the recovery engine.
	ErrRemoteUnavailable = errors.New("remote verification service unavailable")
	// ErrRemoteFailed is an exported constant or variable used by the recovery engine.
	ErrRemoteFailed = errors.New("remote verification failed")
	// ErrRemoteRoundsExceeded is an exported constant or variable used by the recovery engine.
	ErrRemoteRoundsExceeded = errors.New("remote verification rounds exceeded")

	// ErrOAuthStateInvalid is an exported constant or variable used by the recovery engine.
	ErrOAuthStateInvalid = errors.New("oauth state invalid")
	// ErrOAuthIdentityMismatch is an exported constant or variable used by the recovery engine.
	ErrOAuthIdentityMismatch = errors.New("oauth identity mismatch")
	// ErrOAuthUnavailable is an exported constant or variable used by the recovery engine.
	ErrOAuthUnavailable = errors.New("oauth provider unavailable")

	// ErrDirectoryUnavailable is an exported constant or variable used by the recovery engine.
	ErrDirectoryUnavailable = errors.New("directory service unavailable")
	// ErrSenderUnavailable is an exported constant or variable used by the recovery engine.
	ErrSenderUnavailable = errors.New("token sender unavailable")
	// ErrIntruderLocked is an exported constant or variable used by the recovery engine.
	ErrIntruderLocked = errors.New("too many failed recovery attempts")
	// ErrUnlockFailed is an exported constant or variable used by the recovery engine.
	ErrUnlockFailed = errors.New("account unlock failed")
	// ErrPasswordSetFailed is an exported constant or variable used by the recovery engine.
	ErrPasswordSetFailed = errors.New("password update failed")

	// ErrInvalidConfig is an exported constant or variable used by the recovery engine.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// errRemoteContinue signals that the remote sub-conversation needs another
// round. Not a failure: it must never reach the penalty path.
var errRemoteContinue = errors.New("remote verification in progress")

// IsSessionFatal reports whether err must tear down the whole recovery
// session. Session-fatal errors clear progress; everything else leaves the
// bean untouched so the caller can retry the current stage.
func IsSessionFatal(err error) bool {
	switch {
	case errors.Is(err, ErrRecoveryDisabled),
		errors.Is(err, ErrRecoverySequenceIncomplete),
		errors.Is(err, ErrTokenAttemptsExceeded),
		errors.Is(err, ErrRemoteRoundsExceeded),
		errors.Is(err, ErrIntruderLocked):
		return true
	}
	return false
}
