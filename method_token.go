package goRecover

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goRecover/internal"
	"github.com/MrEthical07/goRecover/internal/stores"
)

// tokenMethod delivers a short-lived numeric code to an out-of-band
// destination and verifies it against the Redis-backed token record.
type tokenMethod struct {
	engine *Engine
}

func (m *tokenMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	if bean.Bogus || bean.User == nil {
		return ErrMethodUnavailable
	}
	if m.engine.sender == nil || m.engine.tokenStore == nil {
		return ErrMethodUnavailable
	}
	if len(bean.User.Destinations) == 0 {
		return ErrMethodUnavailable
	}
	return nil
}

// buildPrompt issues and delivers the code on first presentation. The stage
// chain guarantees a destination is settled (or auto-selectable) before the
// verification stage is reached.
func (m *tokenMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	if !bean.Progress.TokenSent {
		dest, err := m.engine.settleTokenDestination(bean)
		if err != nil {
			return nil, err
		}
		if err := m.engine.sendToken(ctx, bean, dest, false); err != nil {
			return nil, err
		}
	}

	dest, err := m.engine.tokenDestination(bean, bean.Progress.TokenDestinationID)
	if err != nil {
		return nil, err
	}
	return &PromptSpec{
		Method:       MethodToken,
		Destinations: []TokenDestination{maskDestination(dest)},
	}, nil
}

func (m *tokenMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	if !bean.Progress.TokenSent || bean.Progress.TokenID == "" {
		return ErrTokenNotSent
	}
	if input.Code == "" {
		return ErrVerificationFailed
	}

	record, err := m.engine.tokenStore.Consume(ctx, bean.Progress.TokenID, internal.HashCode(input.Code), m.engine.config.Token.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrTokenCodeMismatch):
			return ErrVerificationFailed
		case errors.Is(err, stores.ErrTokenAttemptsExceeded):
			m.engine.metricInc(MetricTokenAttemptsExceeded)
			return ErrTokenAttemptsExceeded
		case errors.Is(err, stores.ErrTokenNotFound):
			return ErrTokenInvalid
		default:
			return fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
		}
	}
	if record.UserID != bean.User.UserID {
		return ErrTokenInvalid
	}

	return nil
}

// maskDestination strips the raw delivery address so prompts never leak it.
func maskDestination(dest TokenDestination) TokenDestination {
	dest.Value = ""
	return dest
}
