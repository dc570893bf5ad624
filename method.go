package goRecover

import "context"

// methodHandler is the uniform capability contract every verification
// method implements. Handlers are stateless; everything they need lives in
// the bean or the engine.
type methodHandler interface {
	// checkPrerequisites reports whether the method is currently usable
	// for the session (nil) or unavailable (typed error).
	checkPrerequisites(ctx context.Context, bean *RecoveryBean) error
	// buildPrompt produces the method-specific prompt for the caller to
	// render.
	buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error)
	// validateSubmission checks one submission. nil means the method is
	// satisfied; ErrVerificationFailed means a wrong answer (penalty
	// path); other typed errors pass through.
	validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error
}

// newMethodTable wires the closed method catalog. Dispatch is by enum; the
// table never changes after Build.
func newMethodTable(e *Engine) map[VerificationMethod]methodHandler {
	return map[VerificationMethod]methodHandler{
		MethodPreviousAuth:       &previousAuthMethod{engine: e},
		MethodAttributes:         &attributesMethod{engine: e},
		MethodChallengeResponses: &challengeMethod{engine: e},
		MethodOTP:                &otpMethod{engine: e},
		MethodToken:              &tokenMethod{engine: e},
		MethodRemoteResponses:    &remoteMethod{engine: e},
		MethodOAuth:              &oauthMethod{engine: e},
	}
}
