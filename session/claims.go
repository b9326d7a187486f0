package session

import (
	"fmt"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	EmailConfirmed bool   `json:"email_confirmed,omitempty"`
	Persistent     bool   `json:"persistent,omitempty"`
}

// Account returns the signed in account as carried by the cookie.
func (c *Claims) Account() *accounts.Account {
	if c == nil {
		return nil
	}
	return &accounts.Account{
		ID:             c.Subject,
		Email:          c.Email,
		UserName:       c.Email,
		Name:           c.Name,
		EmailConfirmed: c.EmailConfirmed,
	}
}

func (s *Signer) issue(account *accounts.Account, persistent bool) (string, time.Time, error) {
	now := s.now()
	ttl := s.cfg.SessionTTL
	if persistent {
		ttl = s.cfg.PersistentTTL
	}
	expires := now.Add(ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   account.ID,
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:          account.Email,
		Name:           account.Name,
		EmailConfirmed: account.EmailConfirmed,
		Persistent:     persistent,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign session")
	}
	return signed, expires, nil
}

// Validate parses a session token.
func (s *Signer) Validate(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if len(s.cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience...))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, errors.Wrap(err, ErrSessionMalformed.Category, ErrSessionMalformed.Message).
			WithTextCode(ErrSessionMalformed.TextCode)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrSessionMalformed
	}
	return claims, nil
}
