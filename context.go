package goRecover

import "context"

type clientIPContextKey struct{}
type localeContextKey struct{}
type sessionIDContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Engine uses it
// for intruder bookkeeping and audit logging; the uniform failure penalty
// marks both the user and this address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithLocale attaches the caller's locale to ctx. Used to key agreement
// text and token-message localization; the bean captures it at
// identification time.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// WithSessionID attaches the caller's web-session identifier to ctx. Used
// for audit correlation and the optional bean persistence store.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func localeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "en"
	}

	locale, _ := ctx.Value(localeContextKey{}).(string)
	if locale == "" {
		return "en"
	}

	return locale
}

func sessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	sessionID, _ := ctx.Value(sessionIDContextKey{}).(string)
	return sessionID
}
