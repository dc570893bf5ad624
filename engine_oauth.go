package goRecover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

const oauthIdentityBodyLimit = 1 << 20

// OAuthRedirectURL describes the oAuthRedirectURL operation and its observable behavior.
//
// OAuthRedirectURL may return an error when input validation, dependency calls, or security checks fail.
// OAuthRedirectURL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) OAuthRedirectURL(ctx context.Context, bean *RecoveryBean) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if bean == nil {
		return "", ErrNilBean
	}
	if !e.config.OAuth.Enabled || e.markerManager == nil {
		return "", ErrOAuthUnavailable
	}

	// The state parameter is a signed marker bound to this session, so the
	// callback can only complete the flow it started.
	state, err := e.markerManager.CreateMarkerTTL(markerPurposeOAuthState, bean.RecoveryID, e.config.OAuth.StateTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOAuthUnavailable, err)
	}

	e.metricInc(MetricOAuthRedirect)
	e.emitAudit(ctx, auditEventOAuthRedirect, true, bean, MethodOAuth, nil, nil)

	return e.oauthConfig().AuthCodeURL(state), nil
}

// CompleteOAuth describes the completeOAuth operation and its observable behavior.
//
// CompleteOAuth may return an error when input validation, dependency calls, or security checks fail.
// CompleteOAuth does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CompleteOAuth(ctx context.Context, bean *RecoveryBean, state, code string) (StageDecision, error) {
	decision, err := e.NextStage(ctx, bean)
	if err != nil {
		return StageDecision{}, err
	}
	if decision.Stage != StageVerification || decision.Method != MethodOAuth {
		return StageDecision{}, ErrNoMethodInProgress
	}

	claims, err := e.markerManager.ParseMarker(state, markerPurposeOAuthState)
	if err != nil || claims.Subject != bean.RecoveryID {
		e.applyFailurePenalty(ctx, bean, MethodOAuth, ErrOAuthStateInvalid)
		return StageDecision{}, ErrOAuthStateInvalid
	}

	token, err := e.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return StageDecision{}, fmt.Errorf("%w: exchange: %v", ErrOAuthUnavailable, err)
	}

	username, err := e.fetchOAuthUsername(ctx, token)
	if err != nil {
		return StageDecision{}, err
	}

	// Exact match only. A mismatch means the caller authenticated as
	// somebody else; the request aborts and the session stays as it was.
	if username == "" || username != bean.User.Username {
		e.metricInc(MetricOAuthMismatch)
		e.emitAudit(ctx, auditEventOAuthCallback, false, bean, MethodOAuth, ErrOAuthIdentityMismatch, nil)
		e.applyFailurePenalty(ctx, bean, MethodOAuth, ErrOAuthIdentityMismatch)
		return StageDecision{}, ErrOAuthIdentityMismatch
	}

	bean.Progress.Satisfied.Add(MethodOAuth)
	bean.Progress.InProgress = MethodNone
	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventOAuthCallback, true, bean, MethodOAuth, nil, nil)

	return e.decideStage(ctx, bean)
}

func (e *Engine) oauthConfig() *oauth2.Config {
	cfg := e.config.OAuth
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}
}

// fetchOAuthUsername queries the identity endpoint with the exchanged token
// and extracts the configured username claim.
func (e *Engine) fetchOAuthUsername(ctx context.Context, token *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.OAuth.IdentityURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOAuthUnavailable, err)
	}

	resp, err := e.oauthConfig().Client(ctx, token).Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: identity fetch: %v", ErrOAuthUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: identity status %d", ErrOAuthUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, oauthIdentityBodyLimit))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOAuthUnavailable, err)
	}

	var identity map[string]any
	if err := json.Unmarshal(body, &identity); err != nil {
		return "", fmt.Errorf("%w: identity decode: %v", ErrOAuthUnavailable, err)
	}

	username, _ := identity[e.config.OAuth.UsernameField].(string)
	return username, nil
}
