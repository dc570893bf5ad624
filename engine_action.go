package goRecover

import (
	"context"
	"fmt"
	"log"
)

// ExecuteUnlock describes the executeUnlock operation and its observable behavior.
//
// ExecuteUnlock may return an error when input validation, dependency calls, or security checks fail.
// ExecuteUnlock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ExecuteUnlock(ctx context.Context, bean *RecoveryBean) (StageDecision, error) {
	profile, err := e.actionReady(ctx, bean, StageActionChoice)
	if err != nil {
		return StageDecision{}, err
	}
	if !profile.cfg.Action.AllowUnlock {
		return StageDecision{}, ErrActionNotPermitted
	}

	// The unlock is attempted exactly once. A directory failure still
	// burns the session so a half-verified flow cannot be replayed against
	// a retried unlock.
	unlockErr := e.directory.Unlock(ctx, bean.User.UserID)
	if unlockErr != nil {
		e.metricInc(MetricActionFailure)
		e.emitAudit(ctx, auditEventActionUnlock, false, bean, MethodNone, unlockErr, nil)
		e.finishAction(ctx, bean, RecoveryActionUnlock)
		return StageDecision{}, fmt.Errorf("%w: %v", ErrUnlockFailed, unlockErr)
	}

	e.metricInc(MetricActionUnlock)
	e.emitAudit(ctx, auditEventActionUnlock, true, bean, MethodNone, nil, nil)

	if profile.cfg.Action.SendUnlockNotice {
		e.sendUnlockNotice(ctx, bean)
	}

	e.finishAction(ctx, bean, RecoveryActionUnlock)
	return StageDecision{Stage: StageComplete}, nil
}

// ExecuteReset describes the executeReset operation and its observable behavior.
//
// ExecuteReset may return an error when input validation, dependency calls, or security checks fail.
// ExecuteReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ExecuteReset(ctx context.Context, bean *RecoveryBean) (StageDecision, error) {
	profile, err := e.actionReady(ctx, bean, StageActionChoice, StageNewPassword)
	if err != nil {
		return StageDecision{}, err
	}
	if !profile.cfg.Action.AllowReset {
		return StageDecision{}, ErrActionNotPermitted
	}
	if e.binder == nil {
		return StageDecision{}, ErrActionNotPermitted
	}

	// Best effort. The reset still proceeds against a locked account; the
	// forced change un-sticks it once the directory recovers.
	if bean.User.Locked {
		if err := e.directory.Unlock(ctx, bean.User.UserID); err != nil {
			log.Print("goRecover: unlock before reset failed: ", err)
		}
	}

	if err := e.binder.AuthenticateUnknownPassword(ctx, bean.User); err != nil {
		e.unauthenticateQuietly(ctx)
		e.metricInc(MetricActionFailure)
		e.emitAudit(ctx, auditEventActionReset, false, bean, MethodNone, err, nil)
		return StageDecision{}, fmt.Errorf("%w: authenticate: %v", ErrPasswordSetFailed, err)
	}
	if err := e.binder.RequirePasswordChange(ctx); err != nil {
		e.unauthenticateQuietly(ctx)
		e.metricInc(MetricActionFailure)
		e.emitAudit(ctx, auditEventActionReset, false, bean, MethodNone, err, nil)
		return StageDecision{}, fmt.Errorf("%w: require change: %v", ErrPasswordSetFailed, err)
	}

	// The session must leave this path pointing at an unchanged password;
	// anything else means the forced-change contract broke.
	if e.binder.PasswordModified(ctx) {
		e.unauthenticateQuietly(ctx)
		e.metricInc(MetricActionFailure)
		e.emitAudit(ctx, auditEventActionReset, false, bean, MethodNone, ErrPasswordSetFailed, nil)
		return StageDecision{}, ErrPasswordSetFailed
	}

	e.metricInc(MetricActionReset)
	e.emitAudit(ctx, auditEventActionReset, true, bean, MethodNone, nil, nil)
	e.finishAction(ctx, bean, RecoveryActionReset)

	return StageDecision{Stage: StageComplete}, nil
}

// executeSendNewPassword runs inside the stage chain once every requirement
// is met. The caller never sees an intermediate stage.
func (e *Engine) executeSendNewPassword(ctx context.Context, bean *RecoveryBean, profile *compiledProfile) error {
	if bean.Bogus || bean.User == nil {
		return ErrActionNotPermitted
	}

	// Unlike reset, a failed unlock aborts here. Issuing a fresh password
	// against a possibly still-locked account would strand the user with a
	// credential they cannot use and we cannot observe.
	if bean.User.Locked {
		if err := e.directory.Unlock(ctx, bean.User.UserID); err != nil {
			e.metricInc(MetricActionFailure)
			e.emitAudit(ctx, auditEventActionSendPassword, false, bean, MethodNone, err, nil)
			return fmt.Errorf("%w: %v", ErrUnlockFailed, err)
		}
	}

	newPassword, err := e.passwords.Generate()
	if err != nil {
		return fmt.Errorf("%w: generate: %v", ErrPasswordSetFailed, err)
	}
	if err := e.directory.SetPassword(ctx, bean.User.UserID, newPassword); err != nil {
		e.metricInc(MetricActionFailure)
		e.emitAudit(ctx, auditEventActionSendPassword, false, bean, MethodNone, err, nil)
		return fmt.Errorf("%w: %v", ErrPasswordSetFailed, err)
	}
	if profile.cfg.Action.ForceExpire {
		if err := e.directory.ExpirePassword(ctx, bean.User.UserID); err != nil {
			log.Print("goRecover: force expire failed: ", err)
		}
	}

	dest, err := e.passwordDestination(bean)
	if err != nil {
		return err
	}
	msg := TokenMessage{
		Purpose: TokenPurposeNewPassword,
		Code:    newPassword,
		Locale:  bean.Locale,
	}
	if err := e.sender.Send(ctx, dest, msg); err != nil {
		e.metricInc(MetricActionFailure)
		e.emitAudit(ctx, auditEventActionSendPassword, false, bean, MethodNone, err, nil)
		return fmt.Errorf("%w: %v", ErrSenderUnavailable, err)
	}

	e.metricInc(MetricActionSendPassword)
	e.emitAudit(ctx, auditEventActionSendPassword, true, bean, MethodNone, nil, func() map[string]string {
		return map[string]string{"destination_id": dest.ID}
	})

	// This path must never leave the caller authenticated.
	e.unauthenticateQuietly(ctx)
	e.finishAction(ctx, bean, RecoveryActionSendNewPassword)

	return nil
}

// actionReady recomputes the stage and checks the session has earned a
// terminal action.
func (e *Engine) actionReady(ctx context.Context, bean *RecoveryBean, stages ...Stage) (*compiledProfile, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return nil, err
	}
	if bean.Progress.ExecutedAction != RecoveryActionNone {
		return nil, ErrActionAlreadyExecuted
	}

	allowed := false
	for _, s := range stages {
		if decision.Stage == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrRecoveryNotComplete
	}

	if bean.Bogus || bean.User == nil {
		return nil, ErrActionNotPermitted
	}
	profile := e.profiles.byID(bean.ProfileID)
	if profile == nil {
		return nil, ErrNoProfileAssigned
	}
	return profile, nil
}

// finishAction records the executed action and discards everything the
// session no longer needs. The executed-action mark survives so repeated
// calls observe the completed stage instead of re-running the flow.
func (e *Engine) finishAction(ctx context.Context, bean *RecoveryBean, action RecoveryAction) {
	bean.Progress = newProgress()
	bean.Progress.ExecutedAction = action
	bean.PresentableChallenges = nil
	bean.AttributeFields = nil
	bean.SearchValues = nil
	bean.PreviousAuthMarker = ""

	e.emitAudit(ctx, auditEventRecoveryComplete, true, bean, MethodNone, nil, func() map[string]string {
		return map[string]string{"action": action.String()}
	})
}

// sendUnlockNotice is best effort; the unlock already happened.
func (e *Engine) sendUnlockNotice(ctx context.Context, bean *RecoveryBean) {
	if e.sender == nil || len(bean.User.Destinations) == 0 {
		return
	}
	dest := bean.User.Destinations[0]
	msg := TokenMessage{
		Purpose: TokenPurposeUnlockNotice,
		Locale:  bean.Locale,
	}
	if err := e.sender.Send(ctx, dest, msg); err != nil {
		log.Print("goRecover: unlock notice delivery failed: ", err)
		e.emitAudit(ctx, auditEventUnlockNoticeDelivery, false, bean, MethodNone, err, nil)
		return
	}
	e.emitAudit(ctx, auditEventUnlockNoticeDelivery, true, bean, MethodNone, nil, nil)
}

// passwordDestination picks where a generated password goes: the
// destination the user verified with when the token method ran, otherwise
// the first registered destination.
func (e *Engine) passwordDestination(bean *RecoveryBean) (TokenDestination, error) {
	if bean.Progress.TokenDestinationID != "" {
		if dest, err := e.tokenDestination(bean, bean.Progress.TokenDestinationID); err == nil {
			return dest, nil
		}
	}
	if len(bean.User.Destinations) == 0 {
		return TokenDestination{}, ErrTokenDestinationUnknown
	}
	return bean.User.Destinations[0], nil
}

// unauthenticateQuietly drops any session authentication without letting a
// binder failure mask the original outcome.
func (e *Engine) unauthenticateQuietly(ctx context.Context) {
	if e.binder == nil {
		return
	}
	if err := e.binder.Unauthenticate(ctx); err != nil {
		log.Print("goRecover: unauthenticate failed: ", err)
	}
}
