package accounts

import (
	"strings"
	"time"
)

// Account is the view of a user record the account flows work with.
// Credentials and tokens stay with the identity store.
type Account struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	UserName       string     `json:"user_name"`
	Name           string     `json:"name,omitempty"`
	EmailConfirmed bool       `json:"email_confirmed"`
	HasPassword    bool       `json:"has_password"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// NewAccount builds an account where the email doubles as the user name.
func NewAccount(email, name string) *Account {
	email = strings.TrimSpace(email)
	return &Account{
		Email:    email,
		UserName: email,
		Name:     strings.TrimSpace(name),
	}
}

// AuthToken is a named token issued by an external provider.
type AuthToken struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

const (
	TokenNameAccess    = "access_token"
	TokenNameRefresh   = "refresh_token"
	TokenNameExpiresAt = "expires_at"
	TokenNameTokenType = "token_type"
	TokenNameIDToken   = "id_token"
)

// ExternalLoginInfo is the identity returned by an external provider
// after a successful handshake, correlated to the current browser.
type ExternalLoginInfo struct {
	Provider            string      `json:"provider"`
	ProviderKey         string      `json:"provider_key"`
	ProviderDisplayName string      `json:"provider_display_name"`
	Email               string      `json:"email,omitempty"`
	EmailVerified       bool        `json:"email_verified,omitempty"`
	Name                string      `json:"name,omitempty"`
	Tokens              []AuthToken `json:"tokens,omitempty"`
}

// ExternalProvider describes a configured external login provider.
type ExternalProvider struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// ResultError is a single structured failure reported by a collaborator.
type ResultError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Result is the outcome of an identity store operation. A failed result
// carries an ordered list of human readable errors.
type Result struct {
	failed bool
	errs   []ResultError
}

// Success returns a succeeded result.
func Success() Result {
	return Result{}
}

// Failed returns a failed result with the given errors.
func Failed(errs ...ResultError) Result {
	return Result{
		failed: true,
		errs:   append([]ResultError(nil), errs...),
	}
}

// Succeeded reports whether the operation succeeded.
func (r Result) Succeeded() bool {
	return !r.failed
}

// Errors returns the reported errors in order.
func (r Result) Errors() []ResultError {
	return append([]ResultError(nil), r.errs...)
}

// Descriptions returns the error descriptions in order.
func (r Result) Descriptions() []string {
	out := make([]string, 0, len(r.errs))
	for _, e := range r.errs {
		out = append(out, e.Description)
	}
	return out
}

// SignInResult is the outcome of a sign in attempt.
type SignInResult int

const (
	SignInFailed SignInResult = iota
	SignInSucceeded
	SignInLockedOut
	SignInNotAllowed
)

func (s SignInResult) String() string {
	switch s {
	case SignInSucceeded:
		return "succeeded"
	case SignInLockedOut:
		return "locked_out"
	case SignInNotAllowed:
		return "not_allowed"
	default:
		return "failed"
	}
}
