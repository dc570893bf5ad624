package goRecover

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/goRecover/internal"
	"github.com/MrEthical07/goRecover/internal/stores"
)

// TokenDestinations describes the tokenDestinations operation and its observable behavior.
//
// TokenDestinations returns the user's delivery destinations with raw
// addresses stripped, for rendering the destination-choice prompt.
func (e *Engine) TokenDestinations(bean *RecoveryBean) []TokenDestination {
	if bean == nil || bean.User == nil {
		return nil
	}
	out := make([]TokenDestination, 0, len(bean.User.Destinations))
	for _, dest := range bean.User.Destinations {
		out = append(out, maskDestination(dest))
	}
	return out
}

// ChooseTokenDestination describes the chooseTokenDestination operation and its observable behavior.
//
// ChooseTokenDestination may return an error when input validation, dependency calls, or security checks fail.
// ChooseTokenDestination does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChooseTokenDestination(ctx context.Context, bean *RecoveryBean, destinationID string) (StageDecision, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return StageDecision{}, err
	}
	if decision.Stage != StageTokenChoice {
		return decision, nil
	}

	if destinationID == "" {
		return StageDecision{}, ErrTokenDestinationRequired
	}
	if _, err := e.tokenDestination(bean, destinationID); err != nil {
		return StageDecision{}, err
	}

	bean.Progress.TokenDestinationID = destinationID

	return e.decideStage(ctx, bean)
}

// ResendToken describes the resendToken operation and its observable behavior.
//
// ResendToken may return an error when input validation, dependency calls, or security checks fail.
// ResendToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ResendToken(ctx context.Context, bean *RecoveryBean) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if bean == nil {
		return ErrNilBean
	}
	if !bean.Progress.TokenSent || bean.Progress.TokenDestinationID == "" {
		return ErrTokenNotSent
	}

	if e.resendLimiter != nil {
		ok, err := e.resendLimiter.Allow(ctx, bean.RecoveryID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
		}
		if !ok {
			e.metricInc(MetricTokenResendBlocked)
			e.emitAudit(ctx, auditEventTokenResendBlocked, false, bean, MethodToken, ErrTokenResendCooldown, nil)
			return ErrTokenResendCooldown
		}
	}

	dest, err := e.tokenDestination(bean, bean.Progress.TokenDestinationID)
	if err != nil {
		return err
	}

	// The previous record stays valid until it expires; invalidating it
	// here would let a resend race cancel a code mid-entry.
	return e.sendToken(ctx, bean, dest, true)
}

// settleTokenDestination resolves the destination the code goes to, applying
// single-destination auto-selection when configured.
func (e *Engine) settleTokenDestination(bean *RecoveryBean) (TokenDestination, error) {
	if bean.Progress.TokenDestinationID != "" {
		return e.tokenDestination(bean, bean.Progress.TokenDestinationID)
	}
	if e.canAutoSelectDestination(bean) {
		dest := bean.User.Destinations[0]
		bean.Progress.TokenDestinationID = dest.ID
		return dest, nil
	}
	return TokenDestination{}, ErrTokenDestinationRequired
}

func (e *Engine) tokenDestination(bean *RecoveryBean, destinationID string) (TokenDestination, error) {
	if bean.User == nil {
		return TokenDestination{}, ErrTokenDestinationUnknown
	}
	for _, dest := range bean.User.Destinations {
		if dest.ID == destinationID {
			return dest, nil
		}
	}
	return TokenDestination{}, ErrTokenDestinationUnknown
}

// sendToken issues a fresh code, persists its record, and delivers it. The
// bean always points at the newest token after a successful send.
func (e *Engine) sendToken(ctx context.Context, bean *RecoveryBean, dest TokenDestination, resend bool) error {
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	code, err := internal.NewCode(e.config.Token.CodeDigits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	record := &stores.TokenRecord{
		UserID:        bean.User.UserID,
		DestinationID: dest.ID,
		CodeHash:      internal.HashCode(code),
		ExpiresAt:     time.Now().Add(e.config.Token.TokenTTL).Unix(),
	}
	if err := e.tokenStore.Save(ctx, tokenID.String(), record, e.config.Token.TokenTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	msg := TokenMessage{
		Purpose: TokenPurposeCode,
		Code:    code,
		Locale:  bean.Locale,
	}
	if err := e.sender.Send(ctx, dest, msg); err != nil {
		// Best effort cleanup; the record expires on its own regardless.
		if delErr := e.tokenStore.Delete(ctx, tokenID.String()); delErr != nil {
			log.Print("goRecover: token cleanup failed: ", delErr)
		}
		return fmt.Errorf("%w: %v", ErrSenderUnavailable, err)
	}

	bean.Progress.TokenID = tokenID.String()
	bean.Progress.TokenSent = true

	event := auditEventTokenSent
	metric := MetricTokenSent
	if resend {
		event = auditEventTokenResent
		metric = MetricTokenResent
	}
	e.metricInc(metric)
	e.emitAudit(ctx, event, true, bean, MethodToken, nil, func() map[string]string {
		return map[string]string{"destination_id": dest.ID}
	})

	return nil
}
