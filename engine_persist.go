package goRecover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goRecover/session"
)

// SaveBean describes the saveBean operation and its observable behavior.
//
// SaveBean may return an error when input validation, dependency calls, or security checks fail.
// SaveBean does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SaveBean(ctx context.Context, bean *RecoveryBean) error {
	if e == nil || e.beanStore == nil {
		return ErrEngineNotReady
	}
	if bean == nil || bean.RecoveryID == "" {
		return ErrNilBean
	}

	// The persisted record never holds directory secrets. LoadBean re-reads
	// the user, so only the reference needs to survive the round trip.
	persisted := *bean
	if bean.User != nil {
		user := *bean.User
		user.OTPSecret = ""
		if len(user.Destinations) > 0 {
			masked := make([]TokenDestination, len(user.Destinations))
			for i, dest := range user.Destinations {
				masked[i] = maskDestination(dest)
			}
			user.Destinations = masked
		}
		persisted.User = &user
	}

	payload, err := json.Marshal(&persisted)
	if err != nil {
		return err
	}
	return e.beanStore.Save(ctx, bean.RecoveryID, payload)
}

// LoadBean describes the loadBean operation and its observable behavior.
//
// LoadBean may return an error when input validation, dependency calls, or security checks fail.
// LoadBean does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LoadBean(ctx context.Context, recoveryID string) (*RecoveryBean, error) {
	if e == nil || e.beanStore == nil {
		return nil, ErrEngineNotReady
	}

	payload, err := e.beanStore.Load(ctx, recoveryID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNilBean
		}
		return nil, err
	}

	var bean RecoveryBean
	if err := json.Unmarshal(payload, &bean); err != nil {
		return nil, fmt.Errorf("decode recovery bean: %w", err)
	}
	if bean.Progress.Satisfied == nil {
		bean.Progress.Satisfied = MethodSet{}
	}

	if !bean.Bogus && bean.User != nil {
		user, err := e.directory.GetUser(ctx, bean.User.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		if user != nil {
			bean.User = user
		}
	}
	return &bean, nil
}

// DeleteBean describes the deleteBean operation and its observable behavior.
//
// DeleteBean may return an error when input validation, dependency calls, or security checks fail.
// DeleteBean does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DeleteBean(ctx context.Context, recoveryID string) error {
	if e == nil || e.beanStore == nil {
		return ErrEngineNotReady
	}
	return e.beanStore.Delete(ctx, recoveryID)
}
