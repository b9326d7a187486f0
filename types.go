package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-router"
)

// Logger is the structured logger used across the package. Messages
// take alternating key/value pairs, glog loggers satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to LoggerProvider.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return defLogger{name: name}
	}
	if l := f(name); l != nil {
		return l
	}
	return defLogger{name: name}
}

// Request is the slice of a request the flows need: a context to pass to
// collaborators, and cookie access so the session signer can own the
// browser state. router.Context satisfies it.
type Request interface {
	Context() context.Context
	Cookies(key string, defaultValue ...string) string
	Cookie(cookie *router.Cookie)
}

// IdentityStore is the persistence collaborator for accounts and their
// pending action tokens. Business rule violations come back as failed
// Results, infrastructure failures as errors. Lookups return
// ErrAccountNotFound when nothing matches.
type IdentityStore interface {
	// CreateAccount persists a new account. An empty password creates an
	// account that can only sign in through an external login.
	CreateAccount(ctx context.Context, account *Account, password string) (Result, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	GenerateEmailConfirmationToken(ctx context.Context, account *Account) (string, error)
	ConfirmEmail(ctx context.Context, account *Account, token string) (Result, error)
	GeneratePasswordResetToken(ctx context.Context, account *Account) (string, error)
	ResetPassword(ctx context.Context, account *Account, token, newPassword string) (Result, error)
	AddExternalLogin(ctx context.Context, account *Account, info *ExternalLoginInfo) (Result, error)
	// CreateExternalAccount creates an account without password and links
	// info to it as one unit. Nothing is persisted when either step fails.
	CreateExternalAccount(ctx context.Context, account *Account, info *ExternalLoginInfo) (Result, error)
}

// SessionSigner establishes and tears down authenticated sessions and
// drives the external login handshake.
type SessionSigner interface {
	PasswordSignIn(req Request, email, password string, persistent, lockoutOnFailure bool) (SignInResult, error)
	SignIn(req Request, account *Account, persistent bool) error
	SignOut(req Request) error
	// ExternalChallenge returns the provider authorization URL the browser
	// must be sent to. callbackURL is where the signer sends the browser
	// once the provider round trip completes.
	ExternalChallenge(req Request, provider, callbackURL string) (string, error)
	// ExternalLoginInfo returns the identity correlated to this browser, or
	// nil when there is none.
	ExternalLoginInfo(req Request) (*ExternalLoginInfo, error)
	ExternalLoginSignIn(req Request, provider, providerKey string, persistent bool) (SignInResult, error)
	UpdateExternalTokens(req Request, info *ExternalLoginInfo) error
	ExternalProviders() []ExternalProvider
}

// EmailSender delivers transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type defLogger struct {
	name string
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args...)
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args...)
}

func (d defLogger) print(level, msg string, args ...any) {
	name := d.name
	if name == "" {
		name = "accounts"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", level, strings.ToUpper(name), msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	fmt.Println(b.String())
}

// ResolveLogger picks the logger to use for a named component: an explicit
// logger wins, then the provider, then the printing default.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if logger != nil {
		return logger
	}
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	return defLogger{name: name}
}
