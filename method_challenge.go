package goRecover

import (
	"context"
	"fmt"
	"log"
)

// challengeMethod verifies stored challenge/response answers. Stores that
// rotate presented questions after a failure regenerate the presentable set
// into the bean so the next prompt reflects it.
type challengeMethod struct {
	engine *Engine
}

func (m *challengeMethod) challengePolicy(bean *RecoveryBean) ChallengePolicy {
	if p := m.engine.profiles.byID(bean.ProfileID); p != nil {
		return p.cfg.ChallengePolicy
	}
	return ChallengePolicy{}
}

func (m *challengeMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	if bean.Bogus || bean.User == nil {
		return ErrMethodUnavailable
	}
	if m.engine.responses == nil {
		return ErrMethodUnavailable
	}

	set, err := m.engine.responses.Read(ctx, bean.User.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if set == nil {
		return ErrMethodUnavailable
	}
	// Existence is not enough: the stored set must still satisfy the
	// current policy.
	if !set.MeetsPolicy(m.challengePolicy(bean)) {
		return ErrMethodUnavailable
	}
	return nil
}

func (m *challengeMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	if bean.PresentableChallenges == nil {
		set, err := m.engine.responses.Read(ctx, bean.User.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		if set == nil {
			return nil, ErrMethodUnavailable
		}
		cs := set.Presentable()
		bean.PresentableChallenges = &cs
	}

	return &PromptSpec{
		Method:     MethodChallengeResponses,
		Challenges: bean.PresentableChallenges.Challenges,
	}, nil
}

func (m *challengeMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	set, err := m.engine.responses.Read(ctx, bean.User.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if set == nil {
		return ErrMethodUnavailable
	}

	ok, err := set.Test(ctx, input.Answers)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if !ok {
		if set.CanRegenerate() {
			if cs, err := set.Regenerate(ctx); err != nil {
				log.Print("goRecover: challenge regeneration failed: ", err)
			} else {
				bean.PresentableChallenges = cs
			}
		}
		return ErrVerificationFailed
	}

	return nil
}
