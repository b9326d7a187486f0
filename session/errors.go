package session

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidState     = "session_invalid_state"
	TextCodeStateExpired     = "session_state_expired"
	TextCodeSessionMalformed = "session_malformed"
	TextCodeSessionExpired   = "session_expired"
	TextCodeNoCorrelation    = "session_correlation_not_found"
	TextCodeMissingKey       = "session_signing_key_missing"
)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

var ErrSessionMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeSessionMalformed).
	WithCode(errors.CodeUnauthorized)

var ErrSessionExpired = errors.New("session expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrCorrelationNotFound is returned by a CorrelationStore for unknown or
// expired entries.
var ErrCorrelationNotFound = errors.New("external login correlation not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNoCorrelation).
	WithCode(errors.CodeNotFound)

var ErrSigningKeyMissing = errors.New("session signing key required", errors.CategoryInternal).
	WithTextCode(TextCodeMissingKey)
