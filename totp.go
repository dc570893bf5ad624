package goRecover

import (
	"context"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPOptions defines a public type used by goRecover APIs.
//
// TOTPOptions instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPOptions struct {
	// Digits in the expected code. Zero means 6.
	Digits otp.Digits
	// Period of one counter step in seconds. Zero means 30.
	Period uint
	// Skew is how many adjacent steps on each side are accepted. The
	// default of 1 tolerates ordinary clock drift.
	Skew uint
	// Algorithm used by the authenticator. Zero value means SHA1, which is
	// what the common apps provision.
	Algorithm otp.Algorithm
}

// TOTPValidator defines a public type used by goRecover APIs.
//
// TOTPValidator is the built-in [OTPValidator] backed by the user's
// directory-stored base32 secret.
type TOTPValidator struct {
	opts TOTPOptions
}

// NewTOTPValidator describes the newTOTPValidator operation and its observable behavior.
//
// NewTOTPValidator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewTOTPValidator(opts TOTPOptions) *TOTPValidator {
	if opts.Digits == 0 {
		opts.Digits = otp.DigitsSix
	}
	if opts.Period == 0 {
		opts.Period = 30
	}
	if opts.Skew == 0 {
		opts.Skew = 1
	}
	return &TOTPValidator{opts: opts}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (v *TOTPValidator) Validate(ctx context.Context, user *UserInfo, code string) (bool, error) {
	if user == nil || user.OTPSecret == "" {
		return false, nil
	}

	return totp.ValidateCustom(strings.TrimSpace(code), user.OTPSecret, time.Now(), totp.ValidateOpts{
		Period:    v.opts.Period,
		Skew:      v.opts.Skew,
		Digits:    v.opts.Digits,
		Algorithm: v.opts.Algorithm,
	})
}
