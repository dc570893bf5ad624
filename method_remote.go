package goRecover

import (
	"context"
	"fmt"
)

// remoteMethod delegates verification to an external service as a
// multi-round sub-conversation. The opaque round state lives in the bean.
type remoteMethod struct {
	engine *Engine
}

func (m *remoteMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	if bean.Bogus || bean.User == nil {
		return ErrMethodUnavailable
	}
	if !m.engine.config.Remote.Enabled || m.engine.remote == nil {
		return ErrMethodUnavailable
	}
	return nil
}

// buildPrompt opens the sub-conversation on first presentation and replays
// the current round's prompts afterwards.
func (m *remoteMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	if bean.Progress.RemoteState == nil {
		if err := m.round(ctx, bean, nil); err != nil {
			return nil, err
		}
	}

	state := bean.Progress.RemoteState
	return &PromptSpec{
		Method:       MethodRemoteResponses,
		Prompts:      state.Prompts,
		Instructions: state.Instructions,
	}, nil
}

func (m *remoteMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	if bean.Progress.RemoteState == nil {
		return ErrNoMethodInProgress
	}
	if err := m.round(ctx, bean, input.RemoteResponses); err != nil {
		return err
	}

	switch bean.Progress.RemoteState.State {
	case RemoteComplete:
		bean.Progress.RemoteState = nil
		return nil
	case RemoteFailed:
		bean.Progress.RemoteState = nil
		m.engine.metricInc(MetricRemoteFailure)
		return ErrVerificationFailed
	default:
		return errRemoteContinue
	}
}

// round performs one request/response exchange and folds the result into
// the bean's sub-conversation state.
func (m *remoteMethod) round(ctx context.Context, bean *RecoveryBean, responses []string) error {
	state := bean.Progress.RemoteState
	if state == nil {
		state = &RemoteSessionState{SessionID: bean.RecoveryID}
	}

	if state.Rounds >= m.engine.config.Remote.MaxRounds {
		bean.Progress.RemoteState = nil
		m.engine.metricInc(MetricRemoteFailure)
		return ErrRemoteRoundsExceeded
	}

	req := &RemoteRequest{
		SessionID:     state.SessionID,
		UserInfo:      remoteUserInfo(bean.User),
		UserResponses: responses,
	}
	resp, err := m.engine.remote.Verify(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	state.Rounds++
	state.State = resp.State
	state.Prompts = resp.Prompts
	state.Instructions = resp.Instructions
	if resp.SessionID != "" {
		state.SessionID = resp.SessionID
	}
	bean.Progress.RemoteState = state

	m.engine.metricInc(MetricRemoteRound)
	m.engine.emitAudit(ctx, auditEventRemoteRound, resp.State != RemoteFailed, bean, MethodRemoteResponses, nil, func() map[string]string {
		return map[string]string{"state": string(resp.State)}
	})

	return nil
}

// remoteUserInfo is the identity view handed to the remote service. Only
// directory facts the service needs for its own lookups are included.
func remoteUserInfo(user *UserInfo) map[string]string {
	if user == nil {
		return nil
	}
	return map[string]string{
		"userId":   user.UserID,
		"username": user.Username,
	}
}
