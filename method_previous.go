package goRecover

import "context"

// previousAuthMethod is never prompted. Its satisfaction is decided
// opportunistically during stage evaluation from the marker the bean
// carries; reaching any handler entry point means the marker was absent or
// invalid, so the method is simply unavailable.
type previousAuthMethod struct {
	engine *Engine
}

func (m *previousAuthMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	return ErrMethodUnavailable
}

func (m *previousAuthMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	return nil, ErrMethodUnavailable
}

func (m *previousAuthMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	return ErrMethodUnavailable
}
