package session

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
)

// RegisterCallbackRoute mounts the provider redirect URI,
// GET {CallbackPath}/:provider.
func RegisterCallbackRoute[T any](app router.Router[T], s *Signer) {
	path := strings.TrimSuffix(s.cfg.CallbackPath, "/") + "/:provider"
	app.Get(path, s.ProviderCallback).SetName("session.provider.callback")
}

// ProviderCallback completes the provider round trip. It recovers the state,
// exchanges the code, parks the identity in the correlation store and sends
// the browser to the local callback the challenge was started with. Any
// failure is reported to that callback through the remoteError query.
func (s *Signer) ProviderCallback(ctx router.Context) error {
	providerName := ctx.Param("provider")

	state, err := s.states.Decode(ctx.Query("state"))
	if err != nil {
		s.logger.Warn("provider callback with invalid state", "provider", providerName, "error", err)
		return s.fail(ctx, s.cfg.FailureRedirect, "Invalid or expired sign in request.")
	}

	nonce := ctx.Cookies(s.cfg.NonceCookie)
	ctx.Cookie(s.expired(s.cfg.NonceCookie))

	if !strings.EqualFold(state.Provider, providerName) ||
		subtle.ConstantTimeCompare([]byte(nonce), []byte(state.Nonce)) != 1 {
		s.logger.Warn("provider callback state mismatch", "provider", providerName)
		return s.fail(ctx, s.cfg.FailureRedirect, "Invalid or expired sign in request.")
	}

	if remote := ctx.Query("error"); remote != "" {
		if desc := ctx.Query("error_description"); desc != "" {
			remote = remote + ": " + desc
		}
		return s.fail(ctx, state.RedirectURL, remote)
	}

	code := ctx.Query("code")
	if code == "" {
		return s.fail(ctx, state.RedirectURL, "missing authorization code")
	}

	p, err := s.providers.Get(state.Provider)
	if err != nil {
		return s.fail(ctx, state.RedirectURL, "Unknown external login provider.")
	}

	info, err := p.Exchange(ctx.Context(), code, state.CodeVerifier)
	if err != nil {
		s.logger.Error("provider exchange failed", "provider", p.Name(), "error", err)
		return s.fail(ctx, state.RedirectURL, "Unable to complete sign in with "+p.DisplayName()+".")
	}

	id := randomString(24)
	if err := s.correlations.Put(ctx.Context(), id, info, s.cfg.ExternalTTL); err != nil {
		return err
	}

	external := s.cookie(s.cfg.ExternalCookie, id)
	external.Expires = s.now().Add(s.cfg.ExternalTTL)
	ctx.Cookie(external)

	return ctx.Redirect(state.RedirectURL, http.StatusTemporaryRedirect)
}

func (s *Signer) fail(ctx router.Context, target, remoteError string) error {
	location := accounts.BuildLink("", accounts.LocalURL(target, s.cfg.FailureRedirect), map[string]string{
		accounts.QueryRemoteError: remoteError,
	})
	return ctx.Redirect(location, http.StatusTemporaryRedirect)
}
