package goRecover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func remoteProfile(id string) ProfileConfig {
	return ProfileConfig{
		ID:              id,
		RequiredMethods: []string{"remote_responses"},
		MinLifetime:     MinLifetimeConfig{Option: MinLifetimeNone},
		Action:          ActionConfig{AllowReset: true},
	}
}

func remoteTestConfig(maxRounds int) Config {
	cfg := testConfig(remoteProfile("default"))
	cfg.Remote = RemoteConfig{
		Enabled:   true,
		URL:       "http://remote.invalid/verify",
		Timeout:   time.Second,
		MaxRounds: maxRounds,
	}
	return cfg
}

func TestRemoteMethodMultiRound(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &mockRemote{responses: []*RemoteResponse{
		{
			SessionID:    "rv-1",
			State:        RemoteInProgress,
			Prompts:      []RemotePrompt{{ID: "q1", Text: "branch of your account?"}},
			Instructions: "answer the questions",
		},
		{
			SessionID: "rv-1",
			State:     RemoteInProgress,
			Prompts:   []RemotePrompt{{ID: "q2", Text: "last transaction amount?"}},
		},
		{SessionID: "rv-1", State: RemoteComplete},
	}}

	directory := newMockDirectory(&UserInfo{UserID: "u1", Username: "alice"})
	engine := newTestEngine(t, rdb, remoteTestConfig(5), func(b *Builder) {
		b.WithDirectory(directory).WithRemoteVerifier(remote).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	// First presentation opens the sub-conversation.
	prompt, err := engine.BeginVerification(ctx, bean)
	if err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}
	if len(prompt.Prompts) != 1 || prompt.Prompts[0].ID != "q1" {
		t.Fatalf("unexpected first-round prompts: %+v", prompt.Prompts)
	}
	if prompt.Instructions != "answer the questions" {
		t.Fatalf("unexpected instructions %q", prompt.Instructions)
	}

	// An in-progress round is not a failure and takes no penalty.
	decision, err := engine.SubmitVerification(ctx, bean, VerificationInput{RemoteResponses: []string{"downtown"}})
	wantStage(t, decision, err, StageVerification)
	if bean.Progress.RemoteState == nil || bean.Progress.RemoteState.Prompts[0].ID != "q2" {
		t.Fatal("expected second-round prompts folded into the session")
	}

	decision, err = engine.SubmitVerification(ctx, bean, VerificationInput{RemoteResponses: []string{"42.17"}})
	wantStage(t, decision, err, StageNewPassword)

	if bean.Progress.RemoteState != nil {
		t.Fatal("expected sub-conversation state cleared on completion")
	}
	if !bean.Progress.Satisfied.Has(MethodRemoteResponses) {
		t.Fatal("expected remote method satisfied")
	}

	// The service saw the opening round plus both answers.
	if len(remote.requests) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(remote.requests))
	}
	if remote.requests[0].UserInfo["username"] != "alice" {
		t.Fatalf("unexpected user info %v", remote.requests[0].UserInfo)
	}
	if remote.requests[1].SessionID != "rv-1" {
		t.Fatal("expected the service session id carried between rounds")
	}
}

func TestRemoteMethodFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &mockRemote{responses: []*RemoteResponse{
		{State: RemoteInProgress, Prompts: []RemotePrompt{{ID: "q1", Text: "?"}}},
		{State: RemoteFailed, ErrorMessage: "answers rejected"},
	}}

	directory := newMockDirectory(&UserInfo{UserID: "u1", Username: "alice"})
	engine := newTestEngine(t, rdb, remoteTestConfig(5), func(b *Builder) {
		b.WithDirectory(directory).WithRemoteVerifier(remote).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	if _, err := engine.BeginVerification(ctx, bean); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}

	_, err := engine.SubmitVerification(ctx, bean, VerificationInput{RemoteResponses: []string{"wrong"}})
	wantErr(t, err, ErrVerificationFailed)

	if bean.Progress.RemoteState != nil {
		t.Fatal("expected sub-conversation state cleared on failure")
	}
}

func TestRemoteMethodRoundsExceeded(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &mockRemote{responses: []*RemoteResponse{
		{State: RemoteInProgress, Prompts: []RemotePrompt{{ID: "q1", Text: "?"}}},
		{State: RemoteInProgress, Prompts: []RemotePrompt{{ID: "q2", Text: "?"}}},
	}}

	directory := newMockDirectory(&UserInfo{UserID: "u1", Username: "alice"})
	engine := newTestEngine(t, rdb, remoteTestConfig(2), func(b *Builder) {
		b.WithDirectory(directory).WithRemoteVerifier(remote).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	if _, err := engine.BeginVerification(ctx, bean); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}
	if _, err := engine.SubmitVerification(ctx, bean, VerificationInput{RemoteResponses: []string{"a"}}); err != nil {
		t.Fatalf("second round failed: %v", err)
	}

	_, err := engine.SubmitVerification(ctx, bean, VerificationInput{RemoteResponses: []string{"b"}})
	wantErr(t, err, ErrRemoteRoundsExceeded)

	// Round exhaustion is session-fatal.
	if bean.User != nil {
		t.Fatal("expected session cleared after round exhaustion")
	}
}

func TestHTTPRemoteVerifier(t *testing.T) {
	var got RemoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RemoteResponse{
			SessionID:    "rv-9",
			State:        RemoteInProgress,
			Prompts:      []RemotePrompt{{ID: "q1", Text: "?"}},
			Instructions: "go on",
		})
	}))
	defer srv.Close()

	v := newHTTPRemoteVerifier(RemoteConfig{URL: srv.URL, Timeout: time.Second})
	resp, err := v.Verify(context.Background(), &RemoteRequest{
		SessionID:     "s1",
		UserInfo:      map[string]string{"userId": "u1"},
		UserResponses: []string{"x"},
	})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if got.SessionID != "s1" || got.UserResponses[0] != "x" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
	if resp.SessionID != "rv-9" || resp.State != RemoteInProgress {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHTTPRemoteVerifierRejectsBadState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state":"MAYBE"}`))
	}))
	defer srv.Close()

	v := newHTTPRemoteVerifier(RemoteConfig{URL: srv.URL, Timeout: time.Second})
	if _, err := v.Verify(context.Background(), &RemoteRequest{SessionID: "s1"}); err == nil {
		t.Fatal("expected an error for an unknown state")
	}
}

func TestHTTPRemoteVerifierRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	v := newHTTPRemoteVerifier(RemoteConfig{URL: srv.URL, Timeout: time.Second})
	if _, err := v.Verify(context.Background(), &RemoteRequest{SessionID: "s1"}); err == nil {
		t.Fatal("expected an error for a non-200 status")
	}
}
