package goRecover

import (
	"context"
	"fmt"
)

// otpMethod checks a single one-time-password code against the user's
// enrolled authenticator.
type otpMethod struct {
	engine *Engine
}

func (m *otpMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	if bean.Bogus || bean.User == nil {
		return ErrMethodUnavailable
	}
	if bean.User.OTPSecret == "" || m.engine.otpValidator == nil {
		return ErrMethodUnavailable
	}
	return nil
}

func (m *otpMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	return &PromptSpec{Method: MethodOTP}, nil
}

func (m *otpMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	if input.Code == "" {
		return ErrVerificationFailed
	}

	ok, err := m.engine.otpValidator.Validate(ctx, bean.User, input.Code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if !ok {
		return ErrVerificationFailed
	}
	return nil
}
