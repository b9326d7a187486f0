// Package session implements the session signer: a signed cookie session,
// password sign in with lockout, and the external login handshake.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/provider"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// CredentialStore is the slice of the identity store the signer needs.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (*accounts.Account, error)
	FindByEmail(ctx context.Context, email string) (*accounts.Account, error)
	FindByLogin(ctx context.Context, provider, providerKey string) (*accounts.Account, error)
	CheckPassword(ctx context.Context, account *accounts.Account, password string) (bool, error)
	IsLockedOut(ctx context.Context, account *accounts.Account) (bool, error)
	AccessFailed(ctx context.Context, account *accounts.Account) (bool, error)
	ResetAccessFailedCount(ctx context.Context, account *accounts.Account) error
	SetAuthenticationToken(ctx context.Context, account *accounts.Account, provider, name, value string) error
}

// ProviderSource resolves external providers by name.
type ProviderSource interface {
	Get(name string) (provider.Provider, error)
	List() []accounts.ExternalProvider
}

// Signer implements accounts.SessionSigner over cookies.
type Signer struct {
	cfg          Config
	store        CredentialStore
	providers    ProviderSource
	states       StateManager
	correlations CorrelationStore
	logger       accounts.Logger
	now          func() time.Time
}

var _ accounts.SessionSigner = (*Signer)(nil)

// Option configures a Signer
type Option func(*Signer)

func WithStateManager(states StateManager) Option {
	return func(s *Signer) {
		if states != nil {
			s.states = states
		}
	}
}

func WithCorrelationStore(store CorrelationStore) Option {
	return func(s *Signer) {
		if store != nil {
			s.correlations = store
		}
	}
}

func WithLogger(logger accounts.Logger) Option {
	return func(s *Signer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSigner builds a Signer. Providers may be nil when no external login
// is configured.
func NewSigner(cfg Config, store CredentialStore, providers ProviderSource, opts ...Option) (*Signer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrSigningKeyMissing
	}
	if store == nil {
		return nil, errors.New("session signer requires a credential store", errors.CategoryInternal)
	}
	if providers == nil {
		providers = provider.NewRegistry()
	}

	cfg = cfg.withDefaults()
	s := &Signer{
		cfg:       cfg,
		store:     store,
		providers: providers,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.states == nil {
		s.states = DeriveStateManager(cfg.SigningKey, cfg.StateTTL)
	}
	if s.correlations == nil {
		s.correlations = NewMemoryCorrelationStore()
	}
	if s.logger == nil {
		s.logger = accounts.ResolveLogger("session", nil, nil)
	}
	return s, nil
}

func (s *Signer) Config() Config { return s.cfg }

// PasswordSignIn checks the lockout window before the password so a locked
// account never reveals whether the password was right.
func (s *Signer) PasswordSignIn(req accounts.Request, email, password string, persistent, lockoutOnFailure bool) (accounts.SignInResult, error) {
	ctx := req.Context()

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if accounts.IsAccountNotFound(err) {
			return accounts.SignInFailed, nil
		}
		return accounts.SignInFailed, err
	}

	locked, err := s.store.IsLockedOut(ctx, account)
	if err != nil {
		return accounts.SignInFailed, err
	}
	if locked {
		s.logger.Warn("sign in rejected, account locked out", "account_id", account.ID)
		return accounts.SignInLockedOut, nil
	}

	ok, err := s.store.CheckPassword(ctx, account, password)
	if err != nil {
		return accounts.SignInFailed, err
	}

	if !ok {
		if !lockoutOnFailure {
			return accounts.SignInFailed, nil
		}
		locked, err := s.store.AccessFailed(ctx, account)
		if err != nil {
			return accounts.SignInFailed, err
		}
		if locked {
			return accounts.SignInLockedOut, nil
		}
		return accounts.SignInFailed, nil
	}

	if s.cfg.RequireConfirmedEmail && !account.EmailConfirmed {
		return accounts.SignInNotAllowed, nil
	}

	if err := s.store.ResetAccessFailedCount(ctx, account); err != nil {
		return accounts.SignInFailed, err
	}

	if err := s.SignIn(req, account, persistent); err != nil {
		return accounts.SignInFailed, err
	}
	return accounts.SignInSucceeded, nil
}

// SignIn sets the session cookie. Non persistent sessions use a browser
// session cookie.
func (s *Signer) SignIn(req accounts.Request, account *accounts.Account, persistent bool) error {
	if account == nil || account.ID == "" {
		return accounts.ErrAccountNotFound
	}

	token, expires, err := s.issue(account, persistent)
	if err != nil {
		return err
	}

	cookie := s.cookie(s.cfg.SessionCookie, token)
	if persistent {
		cookie.Expires = expires
	}
	req.Cookie(cookie)

	s.logger.Debug("session established", "account_id", account.ID, "persistent", persistent)
	return nil
}

func (s *Signer) SignOut(req accounts.Request) error {
	req.Cookie(s.expired(s.cfg.SessionCookie))
	return s.clearExternal(req)
}

// Authenticate returns the claims of the current session, or nil when the
// request carries none.
func (s *Signer) Authenticate(req accounts.Request) (*Claims, error) {
	token := req.Cookies(s.cfg.SessionCookie)
	if token == "" {
		return nil, nil
	}
	return s.Validate(token)
}

func (s *Signer) ExternalProviders() []accounts.ExternalProvider {
	return s.providers.List()
}

// ExternalChallenge seals a fresh state for the provider and returns its
// authorization URL. callbackURL must be local; the browser lands there once
// the provider callback has stored the identity.
func (s *Signer) ExternalChallenge(req accounts.Request, providerName, callbackURL string) (string, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}

	verifier := generateCodeVerifier()
	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     p.Name(),
		CodeVerifier: verifier,
		RedirectURL:  accounts.LocalURL(callbackURL, s.cfg.FailureRedirect),
	}

	sealed, err := s.states.Encode(state)
	if err != nil {
		return "", err
	}

	nonce := s.cookie(s.cfg.NonceCookie, state.Nonce)
	nonce.Expires = s.now().Add(s.cfg.StateTTL)
	req.Cookie(nonce)

	return p.AuthCodeURL(sealed, computeCodeChallenge(verifier)), nil
}

// CallbackURL is the provider redirect URI for a provider name.
func (s *Signer) CallbackURL(providerName string) string {
	path := strings.TrimSuffix(s.cfg.CallbackPath, "/") + "/" + strings.ToLower(providerName)
	return accounts.BuildLink(s.cfg.BaseURL, path, nil)
}

func (s *Signer) ExternalLoginInfo(req accounts.Request) (*accounts.ExternalLoginInfo, error) {
	id := req.Cookies(s.cfg.ExternalCookie)
	if id == "" {
		return nil, nil
	}

	info, err := s.correlations.Get(req.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCorrelationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

func (s *Signer) ExternalLoginSignIn(req accounts.Request, providerName, providerKey string, persistent bool) (accounts.SignInResult, error) {
	ctx := req.Context()

	account, err := s.store.FindByLogin(ctx, providerName, providerKey)
	if err != nil {
		if accounts.IsAccountNotFound(err) {
			return accounts.SignInFailed, nil
		}
		return accounts.SignInFailed, err
	}

	locked, err := s.store.IsLockedOut(ctx, account)
	if err != nil {
		return accounts.SignInFailed, err
	}
	if locked {
		return accounts.SignInLockedOut, nil
	}

	if s.cfg.RequireConfirmedEmail && !account.EmailConfirmed {
		return accounts.SignInNotAllowed, nil
	}

	if err := s.SignIn(req, account, persistent); err != nil {
		return accounts.SignInFailed, err
	}
	return accounts.SignInSucceeded, nil
}

// UpdateExternalTokens stores the provider tokens against the linked
// account and drops the pending correlation.
func (s *Signer) UpdateExternalTokens(req accounts.Request, info *accounts.ExternalLoginInfo) error {
	if info == nil {
		return accounts.ErrExternalLoginInfoMissing
	}
	ctx := req.Context()

	account, err := s.store.FindByLogin(ctx, info.Provider, info.ProviderKey)
	if err != nil {
		return err
	}

	for _, token := range info.Tokens {
		if err := s.store.SetAuthenticationToken(ctx, account, info.Provider, token.Name, token.Value); err != nil {
			return err
		}
	}

	return s.clearExternal(req)
}

func (s *Signer) clearExternal(req accounts.Request) error {
	id := req.Cookies(s.cfg.ExternalCookie)
	if id == "" {
		return nil
	}
	req.Cookie(s.expired(s.cfg.ExternalCookie))
	return s.correlations.Delete(req.Context(), id)
}

func (s *Signer) cookie(name, value string) *router.Cookie {
	return &router.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: s.cfg.CookieSameSite,
	}
}

func (s *Signer) expired(name string) *router.Cookie {
	c := s.cookie(name, "")
	c.Expires = s.now().Add(-24 * time.Hour)
	return c
}
