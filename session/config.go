package session

import (
	"time"

	"github.com/goliatone/go-accounts"
)

// Config holds the cookie and token settings of a Signer.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   []string

	SessionCookie  string
	ExternalCookie string
	NonceCookie    string

	SessionTTL    time.Duration
	PersistentTTL time.Duration
	ExternalTTL   time.Duration
	StateTTL      time.Duration

	CookieSecure   bool
	CookieSameSite string

	// CallbackPath is the route providers redirect back to, with the
	// provider name appended: {BaseURL}{CallbackPath}/{provider}.
	BaseURL      string
	CallbackPath string
	// FailureRedirect receives the browser when the provider callback can
	// not recover the state it was started with.
	FailureRedirect string

	RequireConfirmedEmail bool
}

// DefaultConfig returns sane defaults. SigningKey must still be set.
func DefaultConfig() Config {
	return Config{
		Issuer:          "go-accounts",
		SessionCookie:   "accounts_session",
		ExternalCookie:  "accounts_external",
		NonceCookie:     "accounts_oauth_nonce",
		SessionTTL:      12 * time.Hour,
		PersistentTTL:   14 * 24 * time.Hour,
		ExternalTTL:     10 * time.Minute,
		StateTTL:        10 * time.Minute,
		CookieSecure:    true,
		CookieSameSite:  "Lax",
		CallbackPath:    "/signin",
		FailureRedirect: accounts.DefaultRoutes().ExternalLoginCallback,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Issuer == "" {
		c.Issuer = def.Issuer
	}
	if c.SessionCookie == "" {
		c.SessionCookie = def.SessionCookie
	}
	if c.ExternalCookie == "" {
		c.ExternalCookie = def.ExternalCookie
	}
	if c.NonceCookie == "" {
		c.NonceCookie = def.NonceCookie
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = def.SessionTTL
	}
	if c.PersistentTTL <= 0 {
		c.PersistentTTL = def.PersistentTTL
	}
	if c.ExternalTTL <= 0 {
		c.ExternalTTL = def.ExternalTTL
	}
	if c.StateTTL <= 0 {
		c.StateTTL = def.StateTTL
	}
	if c.CookieSameSite == "" {
		c.CookieSameSite = def.CookieSameSite
	}
	if c.CallbackPath == "" {
		c.CallbackPath = def.CallbackPath
	}
	if c.FailureRedirect == "" {
		c.FailureRedirect = def.FailureRedirect
	}
	return c
}
