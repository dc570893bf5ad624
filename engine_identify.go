package goRecover

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/MrEthical07/goRecover/internal"
	"github.com/MrEthical07/goRecover/internal/stores"
	"github.com/MrEthical07/goRecover/jwt"
	"github.com/google/uuid"
)

const (
	markerPurposePreviousAuth = jwt.PurposePreviousAuth
	markerPurposeOAuthState   = jwt.PurposeOAuthState
)

// IdentifyRequest defines a public type used by goRecover APIs.
//
// IdentifyRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdentifyRequest struct {
	// SearchValues are the directory search criteria the user supplied
	// (username, email, employee number, ...).
	SearchValues map[string]string
	// PreviousAuthMarker is the signed prior-session proof, if the caller
	// carried one (cookie or equivalent).
	PreviousAuthMarker string
}

// Identify describes the identify operation and its observable behavior.
//
// Identify may return an error when input validation, dependency calls, or security checks fail.
// Identify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// When the search matches no user and bogus mode is enabled, a synthetic
// session is returned instead of an error so callers cannot probe for
// account existence.
func (e *Engine) Identify(ctx context.Context, req IdentifyRequest) (*RecoveryBean, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if len(req.SearchValues) == 0 {
		return nil, ErrUserNotFound
	}

	user, err := e.directory.FindUser(ctx, req.SearchValues)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	if user == nil {
		if !e.config.Bogus.Enabled {
			return nil, ErrUserNotFound
		}
		bean := e.synthesizeBogusBean(ctx, req.SearchValues)
		e.metricInc(MetricRecoveryBogus)
		e.emitAudit(ctx, auditEventRecoveryStarted, true, bean, MethodNone, nil, nil)
		return bean, nil
	}

	if e.intruder != nil {
		locked, err := e.intruder.Locked(ctx, user.UserID, clientIPFromContext(ctx))
		if err != nil {
			log.Print("goRecover: intruder check failed: ", err)
		} else if locked {
			e.metricInc(MetricIntruderLockout)
			e.emitAudit(ctx, auditEventIntruderLockout, false, nil, MethodNone, ErrIntruderLocked, nil)
			return nil, ErrIntruderLocked
		}
	}

	profile, err := e.profiles.resolve(user)
	if err != nil {
		return nil, err
	}
	if user.Locked && !profile.flags.AllowWhenLocked {
		return nil, ErrRecoveryDisabled
	}

	bean := &RecoveryBean{
		RecoveryID:         uuid.NewString(),
		User:               user,
		ProfileID:          profile.cfg.ID,
		Flags:              cloneFlags(profile.flags),
		Progress:           newProgress(),
		Locale:             localeFromContext(ctx),
		PreviousAuthMarker: req.PreviousAuthMarker,
		CreatedAt:          time.Now().Unix(),
	}

	e.metricInc(MetricRecoveryStarted)
	e.emitAudit(ctx, auditEventRecoveryStarted, true, bean, MethodNone, nil, nil)

	return bean, nil
}

// synthesizeBogusBean builds the anti-enumeration placeholder session: no
// real identity, a single unfulfillable attribute requirement, and challenge
// content chosen deterministically from the search values so repeat probes
// see identical prompts.
func (e *Engine) synthesizeBogusBean(ctx context.Context, searchValues map[string]string) *RecoveryBean {
	seed := ""
	for _, k := range sortedKeys(searchValues) {
		seed += k + "=" + searchValues[k] + ";"
	}

	pool := e.config.Bogus.ChallengeTexts
	idxs := internal.DeterministicIndexes(seed, e.config.Bogus.ChallengeCount, len(pool))

	challenges := make([]Challenge, 0, len(idxs))
	fields := make([]FormField, 0, len(idxs))
	for i, idx := range idxs {
		challenges = append(challenges, Challenge{Text: pool[idx], Required: true})
		fields = append(fields, FormField{
			Name:     fmt.Sprintf("answer%d", i+1),
			Label:    pool[idx],
			Required: true,
		})
	}

	values := make(map[string]string, len(searchValues))
	for k, v := range searchValues {
		values[k] = v
	}

	return &RecoveryBean{
		RecoveryID:            uuid.NewString(),
		Bogus:                 true,
		ProfileID:             bogusProfileID,
		Flags:                 bogusFlags(),
		Progress:              newProgress(),
		PresentableChallenges: &ChallengeSet{Challenges: challenges},
		AttributeFields:       fields,
		SearchValues:          values,
		Locale:                localeFromContext(ctx),
		CreatedAt:             time.Now().Unix(),
	}
}

// CheckFirstContactToken resolves a recovery session directly from a
// delivered token, for users who arrive through a clicked link before any
// search step. The token is consumed; a matching session starts with the
// token method already satisfied.
func (e *Engine) CheckFirstContactToken(ctx context.Context, token string) (*RecoveryBean, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.tokenStore == nil {
		return nil, ErrTokenUnavailable
	}

	tokenID, code, err := internal.DecodeContactToken(token)
	if err != nil {
		e.penalizeAnonymous(ctx)
		return nil, ErrTokenInvalid
	}

	record, err := e.tokenStore.Consume(ctx, tokenID, internal.HashCode(code), e.config.Token.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrTokenAttemptsExceeded):
			e.penalizeAnonymous(ctx)
			e.metricInc(MetricTokenAttemptsExceeded)
			return nil, ErrTokenAttemptsExceeded
		case errors.Is(err, stores.ErrTokenNotFound), errors.Is(err, stores.ErrTokenCodeMismatch):
			e.penalizeAnonymous(ctx)
			return nil, ErrTokenInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
		}
	}

	user, err := e.directory.GetUser(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	profile, err := e.profiles.resolve(user)
	if err != nil {
		return nil, err
	}
	if user.Locked && !profile.flags.AllowWhenLocked {
		return nil, ErrRecoveryDisabled
	}

	bean := &RecoveryBean{
		RecoveryID: uuid.NewString(),
		User:       user,
		ProfileID:  profile.cfg.ID,
		Flags:      cloneFlags(profile.flags),
		Progress:   newProgress(),
		Locale:     localeFromContext(ctx),
		CreatedAt:  time.Now().Unix(),
	}
	bean.Progress.Satisfied.Add(MethodToken)
	bean.Progress.TokenDestinationID = record.DestinationID
	bean.Progress.TokenSent = true

	e.metricInc(MetricFirstContactToken)
	e.emitAudit(ctx, auditEventFirstContactToken, true, bean, MethodToken, nil, nil)

	return bean, nil
}

// Abort discards the whole session on explicit user request.
func (e *Engine) Abort(ctx context.Context, bean *RecoveryBean) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if bean == nil {
		return ErrNilBean
	}

	e.emitAudit(ctx, auditEventRecoveryReset, true, bean, MethodNone, nil, func() map[string]string {
		return map[string]string{"reason": "user_abort"}
	})
	e.metricInc(MetricRecoveryReset)
	e.resetProgress(bean)
	return nil
}

// IssuePreviousAuthMarker mints a signed prior-session proof for user. The
// application calls this at successful authentication time and hands the
// marker to the browser; a later recovery session presenting it satisfies
// the previous-auth method automatically.
func (e *Engine) IssuePreviousAuthMarker(user *UserInfo) (string, error) {
	if e == nil || e.markerManager == nil {
		return "", ErrEngineNotReady
	}
	if user == nil || user.UserID == "" {
		return "", ErrUserNotFound
	}
	return e.markerManager.CreateMarker(markerPurposePreviousAuth, user.UserID)
}

func cloneFlags(f RecoveryFlags) RecoveryFlags {
	return RecoveryFlags{
		AllowWhenLocked:      f.AllowWhenLocked,
		RequiredMethods:      f.RequiredMethods.Clone(),
		OptionalMethods:      f.OptionalMethods.Clone(),
		MinimumOptionalCount: f.MinimumOptionalCount,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
