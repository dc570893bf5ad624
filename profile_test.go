package goRecover

import "testing"

func TestProfileResolverFirstGroupMatchWins(t *testing.T) {
	cfg := testConfig(
		ProfileConfig{
			ID:              "vip",
			MatchGroups:     []string{"executives"},
			RequiredMethods: []string{"otp"},
			Action:          ActionConfig{AllowReset: true},
		},
		ProfileConfig{
			ID:              "staff",
			MatchGroups:     []string{"employees"},
			RequiredMethods: []string{"challenge_responses"},
			Action:          ActionConfig{AllowReset: true},
		},
		ProfileConfig{
			ID:              "default",
			RequiredMethods: []string{"attributes"},
			AttributeFields: []FormField{{Name: "x", Required: true}},
			Action:          ActionConfig{AllowReset: true},
		},
	)

	resolver, err := newProfileResolver(cfg)
	if err != nil {
		t.Fatalf("newProfileResolver failed: %v", err)
	}

	cases := []struct {
		groups []string
		want   string
	}{
		{[]string{"executives", "employees"}, "vip"},
		{[]string{"employees"}, "staff"},
		{nil, "default"},
	}
	for _, tc := range cases {
		p, err := resolver.resolve(&UserInfo{UserID: "u", Groups: tc.groups})
		if err != nil {
			t.Fatalf("resolve(%v) failed: %v", tc.groups, err)
		}
		if p.cfg.ID != tc.want {
			t.Fatalf("resolve(%v) = %q, want %q", tc.groups, p.cfg.ID, tc.want)
		}
	}
}

func TestProfileResolverNoMatch(t *testing.T) {
	cfg := testConfig(ProfileConfig{
		ID:              "vip",
		MatchGroups:     []string{"executives"},
		RequiredMethods: []string{"otp"},
		Action:          ActionConfig{AllowReset: true},
	})

	resolver, err := newProfileResolver(cfg)
	if err != nil {
		t.Fatalf("newProfileResolver failed: %v", err)
	}

	_, err = resolver.resolve(&UserInfo{UserID: "u", Groups: []string{"contractors"}})
	wantErr(t, err, ErrNoProfileAssigned)
}

func TestProfileRequiredMembershipWins(t *testing.T) {
	cfg := testConfig(ProfileConfig{
		ID:                   "default",
		RequiredMethods:      []string{"otp"},
		OptionalMethods:      []string{"otp", "challenge_responses"},
		MinimumOptionalCount: 1,
		Action:               ActionConfig{AllowReset: true},
	})

	resolver, err := newProfileResolver(cfg)
	if err != nil {
		t.Fatalf("newProfileResolver failed: %v", err)
	}

	p := resolver.byID("default")
	if !p.flags.RequiredMethods.Has(MethodOTP) {
		t.Fatal("expected otp required")
	}
	if p.flags.OptionalMethods.Has(MethodOTP) {
		t.Fatal("a method listed in both pools must stay required only")
	}
	if !p.flags.OptionalMethods.Has(MethodChallengeResponses) {
		t.Fatal("expected challenge method optional")
	}
}

func TestProfileEmptyOptionalPoolZeroesQuorum(t *testing.T) {
	cfg := testConfig(ProfileConfig{
		ID:                   "default",
		RequiredMethods:      []string{"otp"},
		OptionalMethods:      []string{"otp"},
		MinimumOptionalCount: 1,
		Action:               ActionConfig{AllowReset: true},
	})

	resolver, err := newProfileResolver(cfg)
	if err != nil {
		t.Fatalf("newProfileResolver failed: %v", err)
	}

	p := resolver.byID("default")
	if p.flags.MinimumOptionalCount != 0 {
		t.Fatalf("quorum must collapse with an empty optional pool, got %d", p.flags.MinimumOptionalCount)
	}
}

func TestAgreementTextFallback(t *testing.T) {
	p := &compiledProfile{cfg: ProfileConfig{
		AgreementText: map[string]string{
			"en": "english terms",
			"de": "deutsche bedingungen",
		},
	}}

	if got := p.agreementText("de"); got != "deutsche bedingungen" {
		t.Fatalf("exact locale: got %q", got)
	}
	if got := p.agreementText("fr"); got != "english terms" {
		t.Fatalf("fallback to en: got %q", got)
	}

	only := &compiledProfile{cfg: ProfileConfig{
		AgreementText: map[string]string{"nl": "voorwaarden"},
	}}
	if got := only.agreementText("fr"); got != "voorwaarden" {
		t.Fatalf("fallback to any: got %q", got)
	}

	var none *compiledProfile
	if got := none.agreementText("en"); got != "" {
		t.Fatalf("nil profile: got %q", got)
	}
}
