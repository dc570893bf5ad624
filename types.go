package goRecover

import (
	"context"
	"time"
)

// VerificationMethod defines a public type used by goRecover APIs.
//
// VerificationMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerificationMethod uint8

const (
	// MethodNone is an exported constant or variable used by the recovery engine.
	MethodNone VerificationMethod = iota
	// MethodPreviousAuth is an exported constant or variable used by the recovery engine.
	MethodPreviousAuth
	// MethodAttributes is an exported constant or variable used by the recovery engine.
	MethodAttributes
	// MethodChallengeResponses is an exported constant or variable used by the recovery engine.
	MethodChallengeResponses
	// MethodOTP is an exported constant or variable used by the recovery engine.
	MethodOTP
	// MethodToken is an exported constant or variable used by the recovery engine.
	MethodToken
	// MethodRemoteResponses is an exported constant or variable used by the recovery engine.
	MethodRemoteResponses
	// MethodOAuth is an exported constant or variable used by the recovery engine.
	MethodOAuth
)

// methodOrder is the fixed enumeration order used wherever the engine walks
// the method catalog. Stage routing depends on this order staying stable.
var methodOrder = []VerificationMethod{
	MethodPreviousAuth,
	MethodAttributes,
	MethodChallengeResponses,
	MethodOTP,
	MethodToken,
	MethodRemoteResponses,
	MethodOAuth,
}

// UserSelectable reports whether the method may be offered as an explicit
// user choice. Methods that are only ever auto-satisfied are never shown in
// a method-choice prompt.
func (m VerificationMethod) UserSelectable() bool {
	return m != MethodNone && m != MethodPreviousAuth
}

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m VerificationMethod) String() string {
	switch m {
	case MethodPreviousAuth:
		return "previous_auth"
	case MethodAttributes:
		return "attributes"
	case MethodChallengeResponses:
		return "challenge_responses"
	case MethodOTP:
		return "otp"
	case MethodToken:
		return "token"
	case MethodRemoteResponses:
		return "remote_responses"
	case MethodOAuth:
		return "oauth"
	default:
		return "none"
	}
}

// ParseVerificationMethod maps a method name back to its enum value.
func ParseVerificationMethod(name string) (VerificationMethod, bool) {
	for _, m := range methodOrder {
		if m.String() == name {
			return m, true
		}
	}
	return MethodNone, false
}

// Stage defines a public type used by goRecover APIs.
//
// Stage instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Stage uint8

const (
	// StageIdentification is an exported constant or variable used by the recovery engine.
	StageIdentification Stage = iota
	// StageAgreement is an exported constant or variable used by the recovery engine.
	StageAgreement
	// StageMethodChoice is an exported constant or variable used by the recovery engine.
	StageMethodChoice
	// StageTokenChoice is an exported constant or variable used by the recovery engine.
	StageTokenChoice
	// StageVerification is an exported constant or variable used by the recovery engine.
	StageVerification
	// StageActionChoice is an exported constant or variable used by the recovery engine.
	StageActionChoice
	// StageNewPassword is an exported constant or variable used by the recovery engine.
	StageNewPassword
	// StageComplete is an exported constant or variable used by the recovery engine.
	StageComplete
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Stage) String() string {
	switch s {
	case StageIdentification:
		return "identification"
	case StageAgreement:
		return "agreement"
	case StageMethodChoice:
		return "method_choice"
	case StageTokenChoice:
		return "token_choice"
	case StageVerification:
		return "verification"
	case StageActionChoice:
		return "action_choice"
	case StageNewPassword:
		return "new_password"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// RecoveryAction defines a public type used by goRecover APIs.
//
// RecoveryAction instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RecoveryAction uint8

const (
	// RecoveryActionNone is an exported constant or variable used by the recovery engine.
	RecoveryActionNone RecoveryAction = iota
	// RecoveryActionUnlock is an exported constant or variable used by the recovery engine.
	RecoveryActionUnlock
	// RecoveryActionReset is an exported constant or variable used by the recovery engine.
	RecoveryActionReset
	// RecoveryActionSendNewPassword is an exported constant or variable used by the recovery engine.
	RecoveryActionSendNewPassword
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a RecoveryAction) String() string {
	switch a {
	case RecoveryActionUnlock:
		return "unlock"
	case RecoveryActionReset:
		return "reset"
	case RecoveryActionSendNewPassword:
		return "send_new_password"
	default:
		return "none"
	}
}

// MinLifetimeOption defines a public type used by goRecover APIs.
//
// MinLifetimeOption instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MinLifetimeOption uint8

const (
	// MinLifetimeEnforce is an exported constant or variable used by the recovery engine.
	MinLifetimeEnforce MinLifetimeOption = iota
	// MinLifetimeUnlockOnly is an exported constant or variable used by the recovery engine.
	MinLifetimeUnlockOnly
	// MinLifetimeNone is an exported constant or variable used by the recovery engine.
	MinLifetimeNone
)

// MethodSet defines a public type used by goRecover APIs.
//
// MethodSet instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MethodSet map[VerificationMethod]bool

// NewMethodSet builds a set from the given methods.
func NewMethodSet(methods ...VerificationMethod) MethodSet {
	s := make(MethodSet, len(methods))
	for _, m := range methods {
		s[m] = true
	}
	return s
}

// Has reports membership of m in the set. A nil set has no members.
func (s MethodSet) Has(m VerificationMethod) bool {
	return s != nil && s[m]
}

// Add inserts m into the set.
func (s MethodSet) Add(m VerificationMethod) {
	if s != nil {
		s[m] = true
	}
}

// Count returns the number of members.
func (s MethodSet) Count() int {
	n := 0
	for _, ok := range s {
		if ok {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the set.
func (s MethodSet) Clone() MethodSet {
	out := make(MethodSet, len(s))
	for m, ok := range s {
		if ok {
			out[m] = true
		}
	}
	return out
}

// Ordered returns the members in fixed enumeration order.
func (s MethodSet) Ordered() []VerificationMethod {
	out := make([]VerificationMethod, 0, len(s))
	for _, m := range methodOrder {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// RecoveryFlags defines a public type used by goRecover APIs.
//
// RecoveryFlags instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Flags are the per-profile requirement set. Required membership takes
// precedence when a method appears in both sets.
type RecoveryFlags struct {
	AllowWhenLocked      bool
	RequiredMethods      MethodSet
	OptionalMethods      MethodSet
	MinimumOptionalCount int
}

// Progress defines a public type used by goRecover APIs.
//
// Progress is the mutable per-session verification state. The satisfied set
// grows monotonically within a session; only a full reset discards members.
type Progress struct {
	Satisfied          MethodSet
	InProgress         VerificationMethod
	TokenID            string
	TokenDestinationID string
	TokenSent          bool
	RemoteState        *RemoteSessionState
	AgreementPassed    bool
	AllPassed          bool
	ExecutedAction     RecoveryAction
}

func newProgress() Progress {
	return Progress{Satisfied: MethodSet{}}
}

// DestinationType defines a public type used by goRecover APIs.
//
// DestinationType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DestinationType uint8

const (
	// DestinationEmail is an exported constant or variable used by the recovery engine.
	DestinationEmail DestinationType = iota
	// DestinationSMS is an exported constant or variable used by the recovery engine.
	DestinationSMS
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d DestinationType) String() string {
	if d == DestinationSMS {
		return "sms"
	}
	return "email"
}

// TokenDestination is one out-of-band delivery address for the token method.
type TokenDestination struct {
	ID      string
	Type    DestinationType
	Display string
	Value   string
}

// Challenge is a single presentable challenge/response question.
type Challenge struct {
	Text      string
	MinLength int
	MaxLength int
	Required  bool
}

// ChallengeSet is the ordered set of challenges presented to the user.
type ChallengeSet struct {
	Challenges []Challenge
}

// ChallengePolicy is the policy a stored response set must still satisfy
// for the challenge method to remain usable.
type ChallengePolicy struct {
	MinChallenges   int
	MinAnswerLength int
}

// FormField is one attribute-form field presented during attribute
// verification.
type FormField struct {
	Name          string
	Label         string
	Required      bool
	CaseSensitive bool
}

// UserInfo defines a public type used by goRecover APIs.
//
// UserInfo is the directory view of a user. The engine re-reads it through
// [DirectoryService.GetUser] whenever lock or password state matters.
type UserInfo struct {
	UserID              string
	Username            string
	Locked              bool
	PasswordExpired     bool
	PasswordPreExpired  bool
	PasswordLastChanged time.Time
	Destinations        []TokenDestination
	Groups              []string
	OTPSecret           string
}

// RecoveryBean defines a public type used by goRecover APIs.
//
// RecoveryBean is the session-scoped aggregate for one recovery attempt.
// The caller owns exactly one bean per session and must serialize requests
// touching it; the engine borrows it for the duration of a single call and
// holds no reference afterwards.
type RecoveryBean struct {
	RecoveryID            string
	User                  *UserInfo
	Bogus                 bool
	ProfileID             string
	Flags                 RecoveryFlags
	Progress              Progress
	PresentableChallenges *ChallengeSet
	AttributeFields       []FormField
	SearchValues          map[string]string
	Locale                string
	PreviousAuthMarker    string
	CreatedAt             int64
}

// PromptSpec describes the method-specific input the caller must render
// next. Only the fields matching the method are populated.
type PromptSpec struct {
	Method       VerificationMethod
	Challenges   []Challenge
	Fields       []FormField
	Destinations []TokenDestination
	Prompts      []RemotePrompt
	Instructions string
	RedirectURL  string
}

// VerificationInput carries one submission for the in-progress method.
// Only the field matching the method is consulted.
type VerificationInput struct {
	Answers         []string
	AttributeValues map[string]string
	Code            string
	RemoteResponses []string
}

// StageDecision is the output of the stage decision engine: the stage the
// flow requires next and, for verification stages, the targeted method.
type StageDecision struct {
	Stage  Stage
	Method VerificationMethod
}

// RemoteVerificationState defines a public type used by goRecover APIs.
//
// RemoteVerificationState instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RemoteVerificationState string

const (
	// RemoteInProgress is an exported constant or variable used by the recovery engine.
	RemoteInProgress RemoteVerificationState = "INPROGRESS"
	// RemoteComplete is an exported constant or variable used by the recovery engine.
	RemoteComplete RemoteVerificationState = "COMPLETE"
	// RemoteFailed is an exported constant or variable used by the recovery engine.
	RemoteFailed RemoteVerificationState = "FAILED"
)

// RemotePrompt is one prompt row returned by the remote verification
// service.
type RemotePrompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RemoteRequest is the wire request of the remote verification contract.
type RemoteRequest struct {
	SessionID     string            `json:"sessionId"`
	UserInfo      map[string]string `json:"userInfo"`
	UserResponses []string          `json:"userResponses,omitempty"`
}

// RemoteResponse is the wire response of the remote verification contract.
type RemoteResponse struct {
	SessionID    string                  `json:"sessionId,omitempty"`
	Prompts      []RemotePrompt          `json:"prompts"`
	Instructions string                  `json:"displayInstructions"`
	ErrorMessage string                  `json:"errorMessage,omitempty"`
	State        RemoteVerificationState `json:"state"`
}

// RemoteSessionState is the opaque sub-conversation state kept in the bean
// between remote verification rounds.
type RemoteSessionState struct {
	SessionID    string
	State        RemoteVerificationState
	Prompts      []RemotePrompt
	Instructions string
	Rounds       int
}

// TokenMessage is handed to the [TokenSender] for out-of-band delivery.
type TokenMessage struct {
	Purpose string
	Code    string
	Locale  string
}

// TokenMessagePurpose values carried in [TokenMessage.Purpose].
const (
	// TokenPurposeCode is an exported constant or variable used by the recovery engine.
	TokenPurposeCode = "recovery_code"
	// TokenPurposeNewPassword is an exported constant or variable used by the recovery engine.
	TokenPurposeNewPassword = "new_password"
	// TokenPurposeUnlockNotice is an exported constant or variable used by the recovery engine.
	TokenPurposeUnlockNotice = "unlock_notice"
)

// DirectoryService defines a public type used by goRecover APIs.
//
// DirectoryService is the identity-store collaborator. Implementations must
// surface failures as errors rather than hang; timeouts belong to the
// implementation.
type DirectoryService interface {
	FindUser(ctx context.Context, criteria map[string]string) (*UserInfo, error)
	GetUser(ctx context.Context, userID string) (*UserInfo, error)
	ReadAttribute(ctx context.Context, userID, name string) (string, error)
	WriteAttribute(ctx context.Context, userID, name, value string) error
	Unlock(ctx context.Context, userID string) error
	SetPassword(ctx context.Context, userID, password string) error
	ExpirePassword(ctx context.Context, userID string) error
}

// ResponseSet defines a public type used by goRecover APIs.
//
// ResponseSet is a stored challenge/response set for one user.
type ResponseSet interface {
	// Presentable returns the challenge set to show the user.
	Presentable() ChallengeSet
	// Test checks supplied answers against the stored responses.
	Test(ctx context.Context, answers []string) (bool, error)
	// MeetsPolicy re-validates the stored set against the current policy.
	MeetsPolicy(policy ChallengePolicy) bool
	// CanRegenerate reports whether the backing store rotates presented
	// challenges after a failed test.
	CanRegenerate() bool
	// Regenerate returns a fresh presentable challenge set after a failure.
	Regenerate(ctx context.Context) (*ChallengeSet, error)
}

// ResponseStore defines a public type used by goRecover APIs.
//
// ResponseStore reads stored challenge/response sets. Read returns
// (nil, nil) when the user has no stored set.
type ResponseStore interface {
	Read(ctx context.Context, userID string) (ResponseSet, error)
}

// OTPValidator defines a public type used by goRecover APIs.
//
// OTPValidator checks a single one-time-password code for a user. The
// engine ships a TOTP implementation; callers may substitute their own.
type OTPValidator interface {
	Validate(ctx context.Context, user *UserInfo, code string) (bool, error)
}

// TokenSender defines a public type used by goRecover APIs.
//
// TokenSender delivers token codes and notices out-of-band.
type TokenSender interface {
	Send(ctx context.Context, dest TokenDestination, msg TokenMessage) error
}

// SessionBinder defines a public type used by goRecover APIs.
//
// SessionBinder binds terminal recovery actions to the caller's web
// session: authenticating the recovered user, forcing a password change,
// and un-authenticating on failure paths.
type SessionBinder interface {
	AuthenticateUnknownPassword(ctx context.Context, user *UserInfo) error
	RequirePasswordChange(ctx context.Context) error
	Unauthenticate(ctx context.Context) error
	PasswordModified(ctx context.Context) bool
}

// RemoteVerifier defines a public type used by goRecover APIs.
//
// RemoteVerifier performs one round of the delegated verification
// sub-conversation. The default implementation posts the JSON contract to
// the configured endpoint.
type RemoteVerifier interface {
	Verify(ctx context.Context, req *RemoteRequest) (*RemoteResponse, error)
}
