package goRecover

import "context"

// oauthMethod verifies identity through an external authorization server.
// The handler only produces the redirect; completion arrives out of band
// through [Engine.CompleteOAuth], never through the generic submission path.
type oauthMethod struct {
	engine *Engine
}

func (m *oauthMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	if bean.Bogus || bean.User == nil {
		return ErrMethodUnavailable
	}
	if !m.engine.config.OAuth.Enabled || m.engine.markerManager == nil {
		return ErrMethodUnavailable
	}
	return nil
}

func (m *oauthMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	redirect, err := m.engine.OAuthRedirectURL(ctx, bean)
	if err != nil {
		return nil, err
	}
	return &PromptSpec{
		Method:      MethodOAuth,
		RedirectURL: redirect,
	}, nil
}

func (m *oauthMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	// The callback carries the proof; there is nothing to type in.
	return ErrMethodUnavailable
}
