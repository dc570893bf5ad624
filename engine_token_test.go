package goRecover

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/goRecover/internal"
)

var errSendDown = errors.New("smtp relay down")

func tokenProfile(id string) ProfileConfig {
	return ProfileConfig{
		ID:              id,
		RequiredMethods: []string{"token"},
		MinLifetime:     MinLifetimeConfig{Option: MinLifetimeNone},
		Action:          ActionConfig{AllowReset: true},
	}
}

func tokenUser(destinations ...TokenDestination) *UserInfo {
	return &UserInfo{
		UserID:       "u1",
		Username:     "alice",
		Destinations: destinations,
	}
}

func emailDest(id, addr string) TokenDestination {
	return TokenDestination{ID: id, Type: DestinationEmail, Display: "Email", Value: addr}
}

func TestTokenMethodRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	sender := &mockSender{}

	engine := newTestEngine(t, rdb, testConfig(tokenProfile("default")), func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	// Single destination auto-selects; the code goes out when the prompt
	// is built.
	prompt, err := engine.BeginVerification(ctx, bean)
	if err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}
	if len(prompt.Destinations) != 1 || prompt.Destinations[0].Value != "" {
		t.Fatalf("expected one masked destination in prompt, got %+v", prompt.Destinations)
	}
	if !bean.Progress.TokenSent {
		t.Fatal("expected token marked sent")
	}

	msg := sender.last(t)
	if msg.Msg.Purpose != TokenPurposeCode {
		t.Fatalf("unexpected message purpose %q", msg.Msg.Purpose)
	}
	if msg.Dest.Value != "alice@example.com" {
		t.Fatalf("sender must receive the raw destination, got %q", msg.Dest.Value)
	}

	decision, err := engine.SubmitVerification(ctx, bean, VerificationInput{Code: msg.Msg.Code})
	wantStage(t, decision, err, StageNewPassword)
}

func TestTokenMethodWrongCode(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	sender := &mockSender{}

	engine := newTestEngine(t, rdb, testConfig(tokenProfile("default")), func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	if _, err := engine.BeginVerification(ctx, bean); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}

	_, err := engine.SubmitVerification(ctx, bean, VerificationInput{Code: "000000"})
	wantErr(t, err, ErrVerificationFailed)

	// The record survives a mismatch; the right code still works.
	decision, err := engine.SubmitVerification(ctx, bean, VerificationInput{Code: sender.last(t).Msg.Code})
	wantStage(t, decision, err, StageNewPassword)
}

func TestTokenMethodAttemptsExceeded(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	cfg := testConfig(tokenProfile("default"))
	cfg.Token.MaxAttempts = 2

	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	sender := &mockSender{}

	engine := newTestEngine(t, rdb, cfg, func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	if _, err := engine.BeginVerification(ctx, bean); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}

	_, err := engine.SubmitVerification(ctx, bean, VerificationInput{Code: "000000"})
	wantErr(t, err, ErrVerificationFailed)

	_, err = engine.SubmitVerification(ctx, bean, VerificationInput{Code: "111111"})
	wantErr(t, err, ErrTokenAttemptsExceeded)

	// Attempts exhaustion is session-fatal.
	if bean.User != nil {
		t.Fatal("expected session cleared after attempt exhaustion")
	}
}

func TestTokenDestinationChoice(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(
		emailDest("d1", "alice@example.com"),
		TokenDestination{ID: "d2", Type: DestinationSMS, Display: "Phone", Value: "+15550100"},
	))
	sender := &mockSender{}

	engine := newTestEngine(t, rdb, testConfig(tokenProfile("default")), func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	decision, err := engine.NextStage(ctx, bean)
	wantStage(t, decision, err, StageTokenChoice)

	dests := engine.TokenDestinations(bean)
	if len(dests) != 2 {
		t.Fatalf("expected 2 destinations, got %d", len(dests))
	}
	for _, d := range dests {
		if d.Value != "" {
			t.Fatalf("raw address leaked for destination %q", d.ID)
		}
	}

	if _, err := engine.ChooseTokenDestination(ctx, bean, "bogus"); err != ErrTokenDestinationUnknown {
		t.Fatalf("expected ErrTokenDestinationUnknown, got %v", err)
	}

	decision, err = engine.ChooseTokenDestination(ctx, bean, "d2")
	wantStage(t, decision, err, StageVerification)

	if _, err := engine.BeginVerification(ctx, bean); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}
	if sender.last(t).Dest.ID != "d2" {
		t.Fatalf("code sent to wrong destination %q", sender.last(t).Dest.ID)
	}
}

func TestResendTokenCooldown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	sender := &mockSender{}

	cfg := testConfig(tokenProfile("default"))
	cfg.Metrics.Enabled = true
	engine := newTestEngine(t, rdb, cfg, func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	// Nothing sent yet.
	wantErr(t, engine.ResendToken(ctx, bean), ErrTokenNotSent)

	if _, err := engine.BeginVerification(ctx, bean); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}

	if err := engine.ResendToken(ctx, bean); err != nil {
		t.Fatalf("first resend failed: %v", err)
	}
	wantErr(t, engine.ResendToken(ctx, bean), ErrTokenResendCooldown)

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[MetricTokenResendBlocked] == 0 {
		t.Fatal("expected blocked-resend counter incremented")
	}

	decision, err := engine.SubmitVerification(ctx, bean, VerificationInput{Code: sender.last(t).Msg.Code})
	wantStage(t, decision, err, StageNewPassword)
}

func TestCheckFirstContactToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	sender := &mockSender{}

	engine := newTestEngine(t, rdb, testConfig(tokenProfile("default")), func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	seed := mustIdentify(t, engine, ctx, "alice")
	if _, err := engine.BeginVerification(ctx, seed); err != nil {
		t.Fatalf("BeginVerification failed: %v", err)
	}

	contact, err := internal.EncodeContactToken(seed.Progress.TokenID, sender.last(t).Msg.Code)
	if err != nil {
		t.Fatalf("EncodeContactToken failed: %v", err)
	}

	bean, err := engine.CheckFirstContactToken(ctx, contact)
	if err != nil {
		t.Fatalf("CheckFirstContactToken failed: %v", err)
	}
	if !bean.Progress.Satisfied.Has(MethodToken) {
		t.Fatal("expected token method pre-satisfied")
	}
	if bean.Progress.TokenDestinationID != "d1" {
		t.Fatalf("unexpected destination %q", bean.Progress.TokenDestinationID)
	}

	decision, err := engine.NextStage(ctx, bean)
	wantStage(t, decision, err, StageNewPassword)
}

func TestCheckFirstContactTokenInvalid(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	engine := newTestEngine(t, rdb, testConfig(tokenProfile("default")), func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(&mockSender{}).WithSessionBinder(&mockBinder{})
	})

	_, err := engine.CheckFirstContactToken(ctx, "not-a-token")
	wantErr(t, err, ErrTokenInvalid)

	_, err = engine.CheckFirstContactToken(ctx, strings.Repeat("A", 40))
	wantErr(t, err, ErrTokenInvalid)
}

func TestSenderFailureSurfacesTyped(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	directory := newMockDirectory(tokenUser(emailDest("d1", "alice@example.com")))
	sender := &mockSender{err: errSendDown}

	engine := newTestEngine(t, rdb, testConfig(tokenProfile("default")), func(b *Builder) {
		b.WithDirectory(directory).WithTokenSender(sender).WithSessionBinder(&mockBinder{})
	})

	bean := mustIdentify(t, engine, ctx, "alice")

	_, err := engine.BeginVerification(ctx, bean)
	wantErr(t, err, ErrSenderUnavailable)
	if bean.Progress.TokenSent {
		t.Fatal("token must not be marked sent after delivery failure")
	}
}
