package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
)

const GoogleIssuer = "https://accounts.google.com"

// OIDCConfig configures an OpenID Connect provider.
type OIDCConfig struct {
	Name         string
	DisplayName  string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	HTTPClient   *http.Client
}

// OIDC verifies the id_token returned by the token endpoint and reads the
// identity from its claims.
type OIDC struct {
	name        string
	displayName string
	oauth       *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	client      *http.Client
}

type oidcClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// NewOIDC runs discovery against cfg.Issuer.
func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDC, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, goerrors.New("oidc provider config missing required fields", goerrors.CategoryBadInput).
			WithTextCode("provider_config_invalid").
			WithMetadata(map[string]any{"provider": cfg.Name})
	}

	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}

	discovered, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to init oidc provider").
			WithMetadata(map[string]any{"provider": cfg.Name, "issuer": cfg.Issuer})
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = cfg.Name
	}

	return &OIDC{
		name:        strings.ToLower(cfg.Name),
		displayName: displayName,
		client:      cfg.HTTPClient,
		verifier:    discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     discovered.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// NewGoogle is NewOIDC against the Google issuer.
func NewGoogle(ctx context.Context, cfg OIDCConfig) (*OIDC, error) {
	if cfg.Name == "" {
		cfg.Name = "google"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Google"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	return NewOIDC(ctx, cfg)
}

func (p *OIDC) Name() string { return p.name }

func (p *OIDC) DisplayName() string { return p.displayName }

func (p *OIDC) AuthCodeURL(state, codeChallenge string) string {
	return p.oauth.AuthCodeURL(state, AuthCodeOptions(codeChallenge)...)
}

func (p *OIDC) Exchange(ctx context.Context, code, codeVerifier string) (*accounts.ExternalLoginInfo, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
		ctx = oidc.ClientContext(ctx, p.client)
	}

	token, err := p.oauth.Exchange(ctx, code, ExchangeOptions(codeVerifier)...)
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, newProviderError(p.name, "exchange", err))
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, wrapProviderError(ErrMissingClaims, &ProviderError{
			Provider:    p.name,
			Operation:   "exchange",
			Code:        "missing_id_token",
			Description: "provider did not return id_token",
		})
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, newProviderError(p.name, "verify", err))
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, newProviderError(p.name, "claims", err))
	}

	if claims.Subject == "" {
		return nil, wrapProviderError(ErrMissingClaims, &ProviderError{
			Provider:    p.name,
			Operation:   "claims",
			Code:        "missing_sub",
			Description: "id_token has no subject",
		})
	}

	name := claims.Name
	if name == "" {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	return &accounts.ExternalLoginInfo{
		Provider:            p.name,
		ProviderKey:         claims.Subject,
		ProviderDisplayName: p.displayName,
		Email:               claims.Email,
		EmailVerified:       claims.EmailVerified,
		Name:                name,
		Tokens:              TokensFrom(token),
	}, nil
}
