package goRecover

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"time"
)

// AgreementText returns the localized agreement text for the session's
// profile, or "" when no agreement is configured.
func (e *Engine) AgreementText(bean *RecoveryBean) string {
	if e == nil || bean == nil || bean.Bogus {
		return ""
	}
	return e.profiles.byID(bean.ProfileID).agreementText(bean.Locale)
}

// AcceptAgreement records agreement acceptance and recomputes the stage.
// It is only valid while the chain requires the agreement stage.
func (e *Engine) AcceptAgreement(ctx context.Context, bean *RecoveryBean) (StageDecision, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return StageDecision{}, err
	}
	if decision.Stage != StageAgreement {
		return decision, nil
	}

	bean.Progress.AgreementPassed = true
	e.emitAudit(ctx, auditEventAgreementAccepted, true, bean, MethodNone, nil, nil)

	return e.decideStage(ctx, bean)
}

// ChooseMethod records the user's optional-method pick. The pick must be a
// user-selectable member of the optional pool whose prerequisites pass.
func (e *Engine) ChooseMethod(ctx context.Context, bean *RecoveryBean, m VerificationMethod) (StageDecision, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return StageDecision{}, err
	}
	if decision.Stage != StageMethodChoice {
		return decision, nil
	}

	if !m.UserSelectable() {
		return StageDecision{}, ErrMethodNotSelectable
	}
	if !bean.Flags.OptionalMethods.Has(m) || bean.Progress.Satisfied.Has(m) {
		return StageDecision{}, ErrUnknownMethod
	}
	handler, ok := e.methods[m]
	if !ok {
		return StageDecision{}, ErrUnknownMethod
	}
	if err := handler.checkPrerequisites(ctx, bean); err != nil {
		e.metricInc(MetricMethodUnavailable)
		return StageDecision{}, ErrMethodUnavailable
	}

	bean.Progress.InProgress = m
	e.emitAudit(ctx, auditEventMethodSelected, true, bean, m, nil, nil)

	return e.decideStage(ctx, bean)
}

// BeginVerification prepares the prompt for the method the chain currently
// targets, marking it in progress. For the token method this issues and
// delivers the code when a destination is settled.
func (e *Engine) BeginVerification(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return nil, err
	}
	if decision.Stage != StageVerification {
		return nil, ErrNoMethodInProgress
	}

	handler, ok := e.methods[decision.Method]
	if !ok {
		return nil, ErrUnknownMethod
	}
	if err := handler.checkPrerequisites(ctx, bean); err != nil {
		e.metricInc(MetricMethodUnavailable)
		return nil, err
	}

	bean.Progress.InProgress = decision.Method

	return handler.buildPrompt(ctx, bean)
}

// SubmitVerification validates one submission for the in-progress method.
// Success marks the method satisfied and recomputes the stage; every
// failure takes the uniform penalty path before returning.
func (e *Engine) SubmitVerification(ctx context.Context, bean *RecoveryBean, input VerificationInput) (StageDecision, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return StageDecision{}, err
	}
	if decision.Stage != StageVerification {
		return StageDecision{}, ErrNoMethodInProgress
	}

	handler, ok := e.methods[decision.Method]
	if !ok {
		return StageDecision{}, ErrUnknownMethod
	}

	err = handler.validateSubmission(ctx, bean, input)
	if err != nil {
		if errors.Is(err, errRemoteContinue) {
			// Another round of the delegated sub-conversation, not a
			// failure. No penalty.
			return StageDecision{Stage: StageVerification, Method: decision.Method}, nil
		}
		// Wrong answers take the penalty path; collaborator failures
		// surface as typed errors without it.
		if errors.Is(err, ErrVerificationFailed) ||
			errors.Is(err, ErrTokenInvalid) ||
			errors.Is(err, ErrTokenAttemptsExceeded) {
			e.applyFailurePenalty(ctx, bean, decision.Method, err)
		}
		if IsSessionFatal(err) {
			e.resetProgress(bean)
		}
		return StageDecision{}, err
	}

	bean.Progress.Satisfied.Add(decision.Method)
	bean.Progress.InProgress = MethodNone
	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventVerificationSuccess, true, bean, decision.Method, nil, nil)

	return e.decideStage(ctx, bean)
}

// applyFailurePenalty is the single uniform failure path shared by every
// method and by synthetic sessions: a jittered pause, an intruder mark for
// the user and the client address, a statistic, an audit event. Timing is
// identical for real and bogus sessions.
func (e *Engine) applyFailurePenalty(ctx context.Context, bean *RecoveryBean, method VerificationMethod, cause error) {
	start := time.Now()
	e.sleepPenaltyDelay(ctx)
	e.metricObserve(MetricPenaltyLatency, time.Since(start))

	userID := ""
	if bean != nil && !bean.Bogus && bean.User != nil {
		userID = bean.User.UserID
	}
	if e.intruder != nil {
		if err := e.intruder.Mark(ctx, userID, clientIPFromContext(ctx)); err != nil {
			log.Print("goRecover: intruder mark failed: ", err)
		}
	}

	e.metricInc(MetricVerificationFailure)
	e.emitAudit(ctx, auditEventVerificationFailure, false, bean, method, cause, nil)
}

// penalizeAnonymous applies the penalty when no session exists yet (bad
// first-contact tokens).
func (e *Engine) penalizeAnonymous(ctx context.Context) {
	e.applyFailurePenalty(ctx, nil, MethodToken, ErrTokenInvalid)
}

// sleepPenaltyDelay pauses for a cryptographically random duration inside
// the configured window, honoring context cancellation.
func (e *Engine) sleepPenaltyDelay(ctx context.Context) {
	min := e.config.Penalty.MinDelay
	max := e.config.Penalty.MaxDelay
	if max <= 0 {
		return
	}

	delay := min
	if span := max - min; span > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
		if err == nil {
			delay += time.Duration(n.Int64())
		} else {
			delay = max
		}
	}
	if delay <= 0 {
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
