package goRecover

import (
	"context"
	"fmt"
	"strings"
)

// attributesMethod compares submitted form values against directory
// attributes. Synthetic sessions present a plausible form and reject every
// submission through the same path as a real mismatch.
type attributesMethod struct {
	engine *Engine
}

func (m *attributesMethod) fields(bean *RecoveryBean) []FormField {
	if bean.Bogus {
		return bean.AttributeFields
	}
	if len(bean.AttributeFields) > 0 {
		return bean.AttributeFields
	}
	if p := m.engine.profiles.byID(bean.ProfileID); p != nil {
		return p.cfg.AttributeFields
	}
	return nil
}

func (m *attributesMethod) checkPrerequisites(ctx context.Context, bean *RecoveryBean) error {
	// Synthetic sessions must look usable; failure comes at submission.
	if bean.Bogus {
		return nil
	}
	if bean.User == nil || len(m.fields(bean)) == 0 {
		return ErrMethodUnavailable
	}
	return nil
}

func (m *attributesMethod) buildPrompt(ctx context.Context, bean *RecoveryBean) (*PromptSpec, error) {
	fields := m.fields(bean)
	if len(fields) == 0 {
		return nil, ErrMethodUnavailable
	}
	if !bean.Bogus {
		bean.AttributeFields = fields
	}
	return &PromptSpec{
		Method: MethodAttributes,
		Fields: fields,
	}, nil
}

func (m *attributesMethod) validateSubmission(ctx context.Context, bean *RecoveryBean, input VerificationInput) error {
	// No real user exists behind a synthetic session; every probe is a
	// failed attempt.
	if bean.Bogus {
		return ErrVerificationFailed
	}

	fields := m.fields(bean)
	if len(fields) == 0 {
		return ErrMethodUnavailable
	}

	for _, field := range fields {
		submitted, present := input.AttributeValues[field.Name]
		if !present || submitted == "" {
			if field.Required {
				return ErrVerificationFailed
			}
			continue
		}

		actual, err := m.engine.directory.ReadAttribute(ctx, bean.User.UserID, field.Name)
		if err != nil {
			// A lookup error fails the whole submission rather than
			// revealing which attribute misbehaved.
			return fmt.Errorf("%w: attribute read", ErrVerificationFailed)
		}

		if field.CaseSensitive {
			if submitted != actual {
				return ErrVerificationFailed
			}
		} else if !strings.EqualFold(submitted, actual) {
			return ErrVerificationFailed
		}
	}

	return nil
}
