package goRecover

import (
	"errors"

	"github.com/MrEthical07/goRecover/internal/limiters"
	"github.com/MrEthical07/goRecover/internal/stores"
	"github.com/MrEthical07/goRecover/jwt"
	"github.com/MrEthical07/goRecover/password"
	"github.com/MrEthical07/goRecover/session"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goRecover APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	directory    DirectoryService
	responses    ResponseStore
	otpValidator OTPValidator
	sender       TokenSender
	binder       SessionBinder
	remote       RemoteVerifier
	auditSink    AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithDirectory describes the withdirectory operation and its observable behavior.
//
// WithDirectory may return an error when input validation, dependency calls, or security checks fail.
// WithDirectory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDirectory(d DirectoryService) *Builder {
	b.directory = d
	return b
}

// WithResponseStore describes the withresponsestore operation and its observable behavior.
//
// WithResponseStore may return an error when input validation, dependency calls, or security checks fail.
// WithResponseStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithResponseStore(s ResponseStore) *Builder {
	b.responses = s
	return b
}

// WithOTPValidator describes the withotpvalidator operation and its observable behavior.
//
// WithOTPValidator may return an error when input validation, dependency calls, or security checks fail.
// WithOTPValidator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithOTPValidator(v OTPValidator) *Builder {
	b.otpValidator = v
	return b
}

// WithTokenSender describes the withtokensender operation and its observable behavior.
//
// WithTokenSender may return an error when input validation, dependency calls, or security checks fail.
// WithTokenSender does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenSender(s TokenSender) *Builder {
	b.sender = s
	return b
}

// WithSessionBinder describes the withsessionbinder operation and its observable behavior.
//
// WithSessionBinder may return an error when input validation, dependency calls, or security checks fail.
// WithSessionBinder does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSessionBinder(s SessionBinder) *Builder {
	b.binder = s
	return b
}

// WithRemoteVerifier describes the withremoteverifier operation and its observable behavior.
//
// WithRemoteVerifier may return an error when input validation, dependency calls, or security checks fail.
// WithRemoteVerifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRemoteVerifier(r RemoteVerifier) *Builder {
	b.remote = r
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.directory == nil {
		return nil, errors.New("directory service required")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	// Per-method collaborators are only required when a profile can reach
	// the method.
	used := configuredMethods(cfg)
	if used.Has(MethodChallengeResponses) && b.responses == nil {
		return nil, errors.New("challenge method requires a response store")
	}
	if used.Has(MethodToken) && b.sender == nil {
		return nil, errors.New("token method requires a token sender")
	}
	for _, p := range cfg.Profiles {
		if (p.Action.SendNewPassword || p.Action.SendUnlockNotice) && b.sender == nil {
			return nil, errors.New("send actions require a token sender")
		}
		if p.Action.AllowReset && b.binder == nil {
			return nil, errors.New("reset action requires a session binder")
		}
	}
	if used.Has(MethodRemoteResponses) && !cfg.Remote.Enabled && b.remote == nil {
		return nil, errors.New("remote method requires a remote verifier or Remote config")
	}
	if used.Has(MethodOAuth) && !cfg.OAuth.Enabled {
		return nil, errors.New("oauth method requires OAuth config")
	}
	if used.Has(MethodPreviousAuth) && !cfg.PreviousAuth.Enabled {
		return nil, errors.New("previous-auth method requires PreviousAuth config")
	}

	resolver, err := newProfileResolver(cfg)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		profiles:  resolver,
		directory: b.directory,
		responses: b.responses,
		sender:    b.sender,
		binder:    b.binder,
	}

	engine.tokenStore = stores.NewTokenStore(b.redis, cfg.Token.RedisPrefix)
	if cfg.Intruder.Enabled {
		engine.intruder = limiters.NewIntruderLimiter(b.redis, limiters.IntruderConfig{
			Prefix:      cfg.Intruder.RedisPrefix,
			MaxAttempts: cfg.Intruder.MaxAttempts,
			Window:      cfg.Intruder.Window,
		})
	}
	if cfg.Token.ResendCooldown > 0 {
		engine.resendLimiter = limiters.NewResendLimiter(b.redis, cfg.Token.RedisPrefix+"resend:", cfg.Token.ResendCooldown)
	}
	if cfg.Bean.PersistEnabled {
		engine.beanStore = session.NewStore(
			b.redis,
			cfg.Bean.RedisPrefix,
			cfg.Bean.TTL,
			cfg.Bean.JitterEnabled,
			cfg.Bean.JitterRange,
		)
	}

	if cfg.PreviousAuth.Enabled {
		mm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.PreviousAuth.MarkerTTL,
			SigningMethod: jwt.SigningMethod(cfg.PreviousAuth.SigningMethod),
			PrivateKey:    cloneBytes(cfg.PreviousAuth.PrivateKey),
			PublicKey:     cloneBytes(cfg.PreviousAuth.PublicKey),
		})
		if err != nil {
			return nil, err
		}
		engine.markerManager = mm
	}

	engine.otpValidator = b.otpValidator
	if engine.otpValidator == nil && used.Has(MethodOTP) {
		engine.otpValidator = NewTOTPValidator(TOTPOptions{})
	}

	engine.remote = b.remote
	if engine.remote == nil && cfg.Remote.Enabled {
		engine.remote = newHTTPRemoteVerifier(cfg.Remote)
	}

	gen, err := password.NewGenerator(password.Policy{
		Length:         cfg.Password.Length,
		RequireUpper:   cfg.Password.RequireUpper,
		RequireLower:   cfg.Password.RequireLower,
		RequireDigit:   cfg.Password.RequireDigit,
		RequireSpecial: cfg.Password.RequireSpecial,
	})
	if err != nil {
		return nil, err
	}
	engine.passwords = gen

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.methods = newMethodTable(engine)

	b.built = true

	return engine, nil
}

// configuredMethods collects every method any profile can reach, plus the
// synthetic bogus requirement.
func configuredMethods(cfg Config) MethodSet {
	set := MethodSet{}
	for _, p := range cfg.Profiles {
		for _, name := range p.RequiredMethods {
			if m, ok := ParseVerificationMethod(name); ok {
				set.Add(m)
			}
		}
		for _, name := range p.OptionalMethods {
			if m, ok := ParseVerificationMethod(name); ok {
				set.Add(m)
			}
		}
	}
	if cfg.Bogus.Enabled {
		set.Add(MethodAttributes)
	}
	return set
}
