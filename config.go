package goRecover

import (
	"errors"
	"math"
	"time"
)

// Config defines a public type used by goRecover APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Profiles     []ProfileConfig
	Bogus        BogusConfig
	Token        TokenConfig
	Penalty      PenaltyConfig
	Intruder     IntruderConfig
	PreviousAuth PreviousAuthConfig
	OAuth        OAuthConfig
	Remote       RemoteConfig
	Password     PasswordConfig
	Bean         BeanConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
PROFILE CONFIG
====================================
*/

// ProfileConfig defines a public type used by goRecover APIs.
//
// ProfileConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ProfileConfig struct {
	ID string

	// MatchGroups selects which directory groups map to this profile. An
	// empty list matches every user; profiles are evaluated in declaration
	// order and the first match wins.
	MatchGroups []string

	AllowWhenLocked      bool
	RequiredMethods      []string
	OptionalMethods      []string
	MinimumOptionalCount int

	AgreementRequired bool
	// AgreementText maps locale keys to the agreement text presented during
	// the agreement stage. The "en" key is the fallback.
	AgreementText map[string]string

	// AttributeFields is the attribute form presented by the attribute
	// method; Name must be a readable directory attribute.
	AttributeFields []FormField

	ChallengePolicy ChallengePolicy
	MinLifetime     MinLifetimeConfig
	Action          ActionConfig
}

// MinLifetimeConfig defines a public type used by goRecover APIs.
//
// MinLifetimeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MinLifetimeConfig struct {
	Option      MinLifetimeOption
	Window      time.Duration
	AllowBypass bool
}

// ActionConfig defines a public type used by goRecover APIs.
//
// ActionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ActionConfig struct {
	AllowUnlock     bool
	AllowReset      bool
	SendNewPassword bool
	// ForceExpire pre-expires a delivered generated password so the user
	// must change it at next login.
	ForceExpire bool
	// SendUnlockNotice delivers a notice to the first destination after a
	// successful unlock.
	SendUnlockNotice bool
}

/*
====================================
BOGUS (ANTI-ENUMERATION) CONFIG
====================================
*/

// BogusConfig defines a public type used by goRecover APIs.
//
// BogusConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BogusConfig struct {
	Enabled bool
	// ChallengeTexts is the pool the synthetic challenge set is drawn from.
	// Selection is keyed on the searched-for identifier so repeat searches
	// see identical challenges.
	ChallengeTexts []string
	ChallengeCount int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by goRecover APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	CodeDigits  int
	TokenTTL    time.Duration
	MaxAttempts int
	// ResendCooldown is the minimum gap between deliveries to the same
	// session.
	ResendCooldown time.Duration
	// AutoSelectSingleDestination skips the destination-choice stage when
	// the user has exactly one destination on file.
	AutoSelectSingleDestination bool
	RedisPrefix                 string
}

/*
====================================
PENALTY / INTRUDER CONFIG
====================================
*/

// PenaltyConfig defines a public type used by goRecover APIs.
//
// PenaltyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PenaltyConfig struct {
	// MinDelay and MaxDelay bound the jittered sleep applied to every
	// failed verification attempt.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// IntruderConfig defines a public type used by goRecover APIs.
//
// IntruderConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IntruderConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	RedisPrefix string
}

/*
====================================
PREVIOUS-AUTH CONFIG
====================================
*/

// PreviousAuthConfig defines a public type used by goRecover APIs.
//
// PreviousAuthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PreviousAuthConfig struct {
	Enabled       bool
	MarkerTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig defines a public type used by goRecover APIs.
//
// OAuthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OAuthConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	// IdentityURL is fetched with the exchanged token; UsernameField names
	// the JSON field compared against the directory username.
	IdentityURL   string
	UsernameField string
	Scopes        []string
	StateTTL      time.Duration
}

/*
====================================
REMOTE VERIFICATION CONFIG
====================================
*/

// RemoteConfig defines a public type used by goRecover APIs.
//
// RemoteConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RemoteConfig struct {
	Enabled   bool
	URL       string
	Timeout   time.Duration
	MaxRounds int
}

/*
====================================
GENERATED PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goRecover APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Length         int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

/*
====================================
BEAN PERSISTENCE CONFIG
====================================
*/

// BeanConfig defines a public type used by goRecover APIs.
//
// BeanConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BeanConfig struct {
	// PersistEnabled turns on the optional Redis bean store for stateless
	// frontends. The engine itself never loads or saves beans.
	PersistEnabled bool
	RedisPrefix    string
	TTL            time.Duration
	JitterEnabled  bool
	JitterRange    time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goRecover APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goRecover APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the hardened baseline configuration. Profiles must
// still be supplied; everything else carries a working default.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Profiles: nil,
		Bogus: BogusConfig{
			Enabled: true,
			ChallengeTexts: []string{
				"What was the make of your first car?",
				"What is the name of your favorite teacher?",
				"In what city were you born?",
				"What was the name of your first pet?",
				"What is your mother's maiden name?",
				"What was the first concert you attended?",
			},
			ChallengeCount: 3,
		},
		Token: TokenConfig{
			CodeDigits:                  6,
			TokenTTL:                    15 * time.Minute,
			MaxAttempts:                 3,
			ResendCooldown:              time.Minute,
			AutoSelectSingleDestination: true,
			RedisPrefix:                 "recover:token:",
		},
		Penalty: PenaltyConfig{
			MinDelay: 200 * time.Millisecond,
			MaxDelay: 600 * time.Millisecond,
		},
		Intruder: IntruderConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			RedisPrefix: "recover:intruder:",
		},
		PreviousAuth: PreviousAuthConfig{
			Enabled:       false,
			MarkerTTL:     30 * 24 * time.Hour,
			SigningMethod: "ed25519",
		},
		OAuth: OAuthConfig{
			Enabled:       false,
			UsernameField: "preferred_username",
			StateTTL:      10 * time.Minute,
		},
		Remote: RemoteConfig{
			Enabled:   false,
			Timeout:   10 * time.Second,
			MaxRounds: 5,
		},
		Password: PasswordConfig{
			Length:         16,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: true,
		},
		Bean: BeanConfig{
			PersistEnabled: false,
			RedisPrefix:    "recover:bean:",
			TTL:            30 * time.Minute,
			JitterEnabled:  true,
			JitterRange:    time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.PreviousAuth.PrivateKey = cloneBytes(cfg.PreviousAuth.PrivateKey)
	out.PreviousAuth.PublicKey = cloneBytes(cfg.PreviousAuth.PublicKey)
	out.Profiles = make([]ProfileConfig, len(cfg.Profiles))
	copy(out.Profiles, cfg.Profiles)
	for i := range out.Profiles {
		out.Profiles[i] = cloneProfile(cfg.Profiles[i])
	}
	out.Bogus.ChallengeTexts = cloneStrings(cfg.Bogus.ChallengeTexts)
	out.OAuth.Scopes = cloneStrings(cfg.OAuth.Scopes)
	return out
}

func cloneProfile(p ProfileConfig) ProfileConfig {
	out := p
	out.MatchGroups = cloneStrings(p.MatchGroups)
	out.RequiredMethods = cloneStrings(p.RequiredMethods)
	out.OptionalMethods = cloneStrings(p.OptionalMethods)
	if len(p.AttributeFields) > 0 {
		out.AttributeFields = make([]FormField, len(p.AttributeFields))
		copy(out.AttributeFields, p.AttributeFields)
	}
	if p.AgreementText != nil {
		out.AgreementText = make(map[string]string, len(p.AgreementText))
		for k, v := range p.AgreementText {
			out.AgreementText[k] = v
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Profiles
	if len(c.Profiles) == 0 {
		return errors.New("at least one recovery profile is required")
	}
	seen := make(map[string]bool, len(c.Profiles))
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if p.ID == "" {
			return errors.New("Profile ID must not be empty")
		}
		if seen[p.ID] {
			return errors.New("duplicate Profile ID: " + p.ID)
		}
		seen[p.ID] = true

		if len(p.RequiredMethods) == 0 && len(p.OptionalMethods) == 0 {
			return errors.New("Profile " + p.ID + " must declare at least one method")
		}
		for _, name := range p.RequiredMethods {
			if _, ok := ParseVerificationMethod(name); !ok {
				return errors.New("Profile " + p.ID + " has unknown required method: " + name)
			}
		}
		for _, name := range p.OptionalMethods {
			if _, ok := ParseVerificationMethod(name); !ok {
				return errors.New("Profile " + p.ID + " has unknown optional method: " + name)
			}
		}
		if p.MinimumOptionalCount < 0 {
			return errors.New("Profile " + p.ID + " MinimumOptionalCount must be >= 0")
		}
		if p.MinimumOptionalCount > len(p.OptionalMethods) {
			return errors.New("Profile " + p.ID + " MinimumOptionalCount exceeds optional method count")
		}
		if len(p.OptionalMethods) > 0 && p.MinimumOptionalCount == 0 {
			return errors.New("Profile " + p.ID + " MinimumOptionalCount must be > 0 when optional methods are declared")
		}
		if p.MinLifetime.Option != MinLifetimeNone && p.MinLifetime.Window <= 0 {
			return errors.New("Profile " + p.ID + " MinLifetime Window must be > 0")
		}
		if !p.Action.AllowUnlock && !p.Action.AllowReset && !p.Action.SendNewPassword {
			return errors.New("Profile " + p.ID + " must allow at least one recovery action")
		}
		if p.AgreementRequired && len(p.AgreementText) == 0 {
			return errors.New("Profile " + p.ID + " AgreementRequired needs AgreementText")
		}
	}

	// Bogus
	if c.Bogus.Enabled {
		if c.Bogus.ChallengeCount <= 0 {
			return errors.New("Bogus ChallengeCount must be > 0")
		}
		if c.Bogus.ChallengeCount > len(c.Bogus.ChallengeTexts) {
			return errors.New("Bogus ChallengeCount exceeds ChallengeTexts pool")
		}
	}

	// Token
	if c.Token.CodeDigits < 6 || c.Token.CodeDigits > 10 {
		return errors.New("Token CodeDigits must be between 6 and 10")
	}
	if c.Token.TokenTTL <= 0 {
		return errors.New("Token TokenTTL must be > 0")
	}
	if c.Token.MaxAttempts <= 0 {
		return errors.New("Token MaxAttempts must be > 0")
	}
	if c.Token.ResendCooldown < 0 {
		return errors.New("Token ResendCooldown must be >= 0")
	}
	if c.Token.RedisPrefix == "" {
		return errors.New("Token RedisPrefix must not be empty")
	}

	// Penalty
	if c.Penalty.MinDelay < 0 {
		return errors.New("Penalty MinDelay must be >= 0")
	}
	if c.Penalty.MaxDelay < c.Penalty.MinDelay {
		return errors.New("Penalty MaxDelay must be >= MinDelay")
	}

	// Intruder
	if c.Intruder.Enabled {
		if c.Intruder.MaxAttempts <= 0 {
			return errors.New("Intruder MaxAttempts must be > 0")
		}
		if c.Intruder.Window <= 0 {
			return errors.New("Intruder Window must be > 0")
		}
		if c.Intruder.RedisPrefix == "" {
			return errors.New("Intruder RedisPrefix must not be empty")
		}
	}

	// Previous-auth markers
	if c.PreviousAuth.Enabled {
		if c.PreviousAuth.MarkerTTL <= 0 {
			return errors.New("PreviousAuth MarkerTTL must be > 0")
		}
		if c.PreviousAuth.SigningMethod != "ed25519" && c.PreviousAuth.SigningMethod != "hs256" {
			return errors.New("unsupported PreviousAuth signing method")
		}
		if c.PreviousAuth.SigningMethod == "ed25519" && (len(c.PreviousAuth.PrivateKey) == 0 || len(c.PreviousAuth.PublicKey) == 0) {
			return errors.New("ed25519 requires PreviousAuth PrivateKey and PublicKey")
		}
		if c.PreviousAuth.SigningMethod == "hs256" && len(c.PreviousAuth.PrivateKey) == 0 {
			return errors.New("hs256 requires PreviousAuth PrivateKey")
		}
	}

	// OAuth
	if c.OAuth.Enabled {
		if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
			return errors.New("OAuth ClientID and ClientSecret are required")
		}
		if c.OAuth.AuthURL == "" || c.OAuth.TokenURL == "" || c.OAuth.RedirectURL == "" {
			return errors.New("OAuth AuthURL, TokenURL and RedirectURL are required")
		}
		if c.OAuth.IdentityURL == "" {
			return errors.New("OAuth IdentityURL is required")
		}
		if c.OAuth.UsernameField == "" {
			return errors.New("OAuth UsernameField is required")
		}
		if c.OAuth.StateTTL <= 0 {
			return errors.New("OAuth StateTTL must be > 0")
		}
		// OAuth state markers ride the previous-auth signer.
		if !c.PreviousAuth.Enabled {
			return errors.New("OAuth requires PreviousAuth signing to be configured")
		}
	}

	// Remote verification
	if c.Remote.Enabled {
		if c.Remote.URL == "" {
			return errors.New("Remote URL is required")
		}
		if c.Remote.Timeout <= 0 {
			return errors.New("Remote Timeout must be > 0")
		}
		if c.Remote.MaxRounds <= 0 {
			return errors.New("Remote MaxRounds must be > 0")
		}
	}

	// Generated passwords
	if c.Password.Length < 8 {
		return errors.New("Password Length must be >= 8")
	}

	// Bean persistence
	if c.Bean.PersistEnabled {
		if c.Bean.RedisPrefix == "" {
			return errors.New("Bean RedisPrefix must not be empty")
		}
		if c.Bean.TTL <= 0 {
			return errors.New("Bean TTL must be > 0")
		}
		if c.Bean.JitterRange < 0 {
			return errors.New("Bean JitterRange must be >= 0")
		}
		if c.Bean.JitterRange > time.Duration((math.MaxInt64-1)/2) {
			return errors.New("Bean JitterRange is too large")
		}
		if c.Bean.JitterEnabled && c.Bean.JitterRange <= 0 {
			return errors.New("Bean JitterRange must be > 0 when JitterEnabled is true")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
