package goRecover

import (
	"context"
	"fmt"
	"time"
)

// NextStage computes the next required stage for the session. It is the
// core state machine: an ordered chain of guards evaluated against current
// state, first match wins. The chain is re-run after every mutation and is
// never cached across requests.
//
// NextStage may mutate the bean: a mid-flow locale change resets progress,
// previous-session proof is opportunistically marked satisfied, a single
// remaining optional method is auto-selected, and reaching the full
// requirement set sets the all-passed flag. Session-fatal errors clear
// progress before returning.
func (e *Engine) NextStage(ctx context.Context, bean *RecoveryBean) (StageDecision, error) {
	if !e.ready() {
		return StageDecision{}, ErrEngineNotReady
	}
	if bean == nil {
		return StageDecision{}, ErrNilBean
	}

	// Lock and password state drive the terminal guards, so the directory
	// view is refreshed rather than trusted from identification time.
	if bean.User != nil && !bean.Bogus {
		fresh, err := e.directory.GetUser(ctx, bean.User.UserID)
		if err != nil {
			return StageDecision{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		if fresh == nil {
			return StageDecision{}, ErrUserNotFound
		}
		bean.User = fresh
	}

	return e.decideStage(ctx, bean)
}

func (e *Engine) decideStage(ctx context.Context, bean *RecoveryBean) (StageDecision, error) {
	// 1. Executed terminal action: the flow is over, forever.
	if bean.Progress.ExecutedAction != RecoveryActionNone {
		return StageDecision{Stage: StageComplete}, nil
	}

	// 2. Locale drift invalidates presented challenge text and agreement
	// wording; everything starts over.
	if locale := localeFromContext(ctx); bean.Locale != "" && locale != bean.Locale {
		e.resetProgress(bean)
		e.metricInc(MetricRecoveryReset)
		e.emitAudit(ctx, auditEventRecoveryReset, true, bean, MethodNone, nil, func() map[string]string {
			return map[string]string{"reason": "locale_change"}
		})
		return StageDecision{Stage: StageIdentification}, nil
	}

	// 3. Nobody identified yet.
	if bean.User == nil && !bean.Bogus {
		return StageDecision{Stage: StageIdentification}, nil
	}

	// 4. Profile must still resolve. Request-fatal, state untouched.
	var profile *compiledProfile
	if !bean.Bogus {
		profile = e.profiles.byID(bean.ProfileID)
		if profile == nil {
			return StageDecision{}, ErrNoProfileAssigned
		}
	}

	// 5. Previous-session proof is never prompted; it is marked satisfied
	// as a side effect before any routing.
	e.autoSatisfyPreviousAuth(bean)

	// 6. Agreement gate.
	if profile != nil && profile.cfg.AgreementRequired && !bean.Progress.AgreementPassed {
		return StageDecision{Stage: StageAgreement}, nil
	}

	// 7. Required methods, fixed enumeration order.
	for _, m := range methodOrder {
		if bean.Flags.RequiredMethods.Has(m) && !bean.Progress.Satisfied.Has(m) {
			return e.verificationDecision(bean, m), nil
		}
	}

	// 8. A method mid-presentation either just completed or is re-presented.
	if inProgress := bean.Progress.InProgress; inProgress != MethodNone {
		if bean.Progress.Satisfied.Has(inProgress) {
			bean.Progress.InProgress = MethodNone
		} else {
			return e.verificationDecision(bean, inProgress), nil
		}
	}

	// 9. Optional-method quorum.
	if bean.Flags.MinimumOptionalCount > 0 {
		satisfiedOptional := 0
		for m := range bean.Progress.Satisfied {
			if bean.Flags.OptionalMethods.Has(m) {
				satisfiedOptional++
			}
		}
		if satisfiedOptional < bean.Flags.MinimumOptionalCount {
			remaining := e.availableOptionalMethods(ctx, bean)
			switch len(remaining) {
			case 0:
				// Quorum unreachable: configuration or user state
				// contradicts the profile. Session-fatal.
				return StageDecision{}, e.sequenceFailure(ctx, bean)
			case 1:
				bean.Progress.InProgress = remaining[0]
				return e.verificationDecision(bean, remaining[0]), nil
			default:
				return StageDecision{Stage: StageMethodChoice}, nil
			}
		}
	}

	// 10-11. Defensive consistency checks. These states are unreachable
	// through the public API; treat them as fatal rather than repairing.
	satisfied := bean.Progress.Satisfied.Count()
	if satisfied == 0 {
		return StageDecision{}, e.sequenceFailure(ctx, bean)
	}
	if satisfied < bean.Flags.RequiredMethods.Count()+bean.Flags.MinimumOptionalCount {
		return StageDecision{}, e.sequenceFailure(ctx, bean)
	}

	// 12. Full requirement set reached.
	if !bean.Progress.AllPassed {
		bean.Progress.AllPassed = true
		e.metricInc(MetricRecoveryComplete)
	}

	// 13. Minimum-password-lifetime gate runs after verification succeeds
	// and before any action is offered.
	if profile != nil {
		if err := e.checkMinLifetime(bean, profile); err != nil {
			e.metricInc(MetricLifetimeGateHit)
			e.emitAudit(ctx, auditEventLifetimeGateTrimmed, false, bean, MethodNone, err, nil)
			return StageDecision{}, err
		}
	}

	// 14. Send-new-password executes inside the chain: the user has no
	// further input to give.
	if profile != nil && profile.cfg.Action.SendNewPassword {
		if profile.cfg.MinLifetime.Option == MinLifetimeUnlockOnly && bean.User != nil && bean.User.Locked {
			return StageDecision{}, ErrPasswordTooSoon
		}
		if err := e.executeSendNewPassword(ctx, bean, profile); err != nil {
			return StageDecision{}, err
		}
		return StageDecision{Stage: StageComplete}, nil
	}

	// 15. Locked account with a live password: the user picks unlock vs
	// reset.
	if profile != nil && profile.cfg.Action.AllowUnlock &&
		bean.User != nil && bean.User.Locked &&
		!bean.User.PasswordExpired && !bean.User.PasswordPreExpired {
		return StageDecision{Stage: StageActionChoice}, nil
	}

	// 16. Direct reset.
	return StageDecision{Stage: StageNewPassword}, nil
}

// verificationDecision routes the token method through destination choice
// when a destination is still needed; every other method goes straight to
// verification.
func (e *Engine) verificationDecision(bean *RecoveryBean, m VerificationMethod) StageDecision {
	if m == MethodToken && !bean.Progress.TokenSent && bean.Progress.TokenDestinationID == "" {
		if !e.canAutoSelectDestination(bean) {
			return StageDecision{Stage: StageTokenChoice, Method: m}
		}
	}
	return StageDecision{Stage: StageVerification, Method: m}
}

func (e *Engine) canAutoSelectDestination(bean *RecoveryBean) bool {
	if !e.config.Token.AutoSelectSingleDestination {
		return false
	}
	return bean.User != nil && len(bean.User.Destinations) == 1
}

// autoSatisfyPreviousAuth marks the previous-auth method satisfied when the
// bean carries a marker whose subject matches the identified user.
func (e *Engine) autoSatisfyPreviousAuth(bean *RecoveryBean) {
	if bean.Progress.Satisfied.Has(MethodPreviousAuth) {
		return
	}
	if !bean.Flags.RequiredMethods.Has(MethodPreviousAuth) && !bean.Flags.OptionalMethods.Has(MethodPreviousAuth) {
		return
	}
	if bean.Bogus || bean.User == nil || bean.PreviousAuthMarker == "" || e.markerManager == nil {
		return
	}

	claims, err := e.markerManager.ParseMarker(bean.PreviousAuthMarker, markerPurposePreviousAuth)
	if err != nil || claims.Subject != bean.User.UserID {
		return
	}
	bean.Progress.Satisfied.Add(MethodPreviousAuth)
}

// availableOptionalMethods returns unsatisfied optional methods whose
// prerequisites currently pass, in fixed enumeration order.
func (e *Engine) availableOptionalMethods(ctx context.Context, bean *RecoveryBean) []VerificationMethod {
	var out []VerificationMethod
	for _, m := range bean.Flags.OptionalMethods.Ordered() {
		if bean.Progress.Satisfied.Has(m) {
			continue
		}
		handler, ok := e.methods[m]
		if !ok {
			continue
		}
		if err := handler.checkPrerequisites(ctx, bean); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (e *Engine) checkMinLifetime(bean *RecoveryBean, profile *compiledProfile) error {
	ml := profile.cfg.MinLifetime
	if ml.Option == MinLifetimeNone || ml.AllowBypass {
		return nil
	}
	if ml.Option == MinLifetimeUnlockOnly && (bean.User == nil || !bean.User.Locked) {
		return nil
	}
	if bean.User == nil || bean.User.PasswordLastChanged.IsZero() {
		return nil
	}
	if time.Since(bean.User.PasswordLastChanged) < ml.Window {
		return ErrPasswordTooSoon
	}
	return nil
}

// sequenceFailure clears all progress and returns the session-fatal
// sequence error.
func (e *Engine) sequenceFailure(ctx context.Context, bean *RecoveryBean) error {
	e.metricInc(MetricSequenceViolation)
	e.emitAudit(ctx, auditEventSequenceViolation, false, bean, MethodNone, ErrRecoverySequenceIncomplete, nil)
	e.resetProgress(bean)
	return ErrRecoverySequenceIncomplete
}

// resetProgress discards the whole session back to identification. The
// bean keeps only its identifiers; challenge material, search values, and
// the satisfied set are gone.
func (e *Engine) resetProgress(bean *RecoveryBean) {
	bean.User = nil
	bean.Bogus = false
	bean.ProfileID = ""
	bean.Flags = RecoveryFlags{}
	bean.Progress = newProgress()
	bean.PresentableChallenges = nil
	bean.AttributeFields = nil
	bean.SearchValues = nil
	bean.Locale = ""
	bean.PreviousAuthMarker = ""
}
