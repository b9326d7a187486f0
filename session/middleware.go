package session

import (
	"net/http"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
)

// UserIDKey is the local holding the signed in account id. The csrf
// middleware binds tokens to it.
const UserIDKey = "user_id"

// CurrentUser exposes the signed in account to handlers and templates. An
// invalid or expired cookie is cleared and the request continues anonymous.
func (s *Signer) CurrentUser() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			claims, err := s.Authenticate(ctx)
			if err != nil {
				s.logger.Debug("dropping invalid session cookie", "error", err)
				ctx.Cookie(s.expired(s.cfg.SessionCookie))
			}
			if claims != nil {
				ctx.Locals(accounts.TemplateUserKey, claims.Account())
				ctx.Locals(UserIDKey, claims.Subject)
			}
			return ctx.Next()
		}
	}
}

// RequireSignIn redirects anonymous requests to loginPath with the original
// URL as returnUrl. It expects CurrentUser to run first.
func RequireSignIn(loginPath string) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if _, ok := ctx.Locals(accounts.TemplateUserKey).(*accounts.Account); ok {
				return ctx.Next()
			}
			location := accounts.BuildLink("", loginPath, map[string]string{
				accounts.QueryReturnURL: ctx.OriginalURL(),
			})
			return ctx.Redirect(location, http.StatusFound)
		}
	}
}
