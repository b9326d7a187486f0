// Package provider holds the external login providers and the registry the
// session signer resolves them from. Providers only return identity facts.
// Account creation, linking and sessions live elsewhere.
package provider

import (
	"context"
	"strconv"

	"github.com/goliatone/go-accounts"
	"golang.org/x/oauth2"
)

// Provider is an OAuth2 authorization code provider with PKCE.
type Provider interface {
	// Name is the route and storage identifier, e.g. "google".
	Name() string
	DisplayName() string
	AuthCodeURL(state, codeChallenge string) string
	// Exchange trades an authorization code for the remote identity.
	Exchange(ctx context.Context, code, codeVerifier string) (*accounts.ExternalLoginInfo, error)
}

// AuthCodeOptions are the PKCE and access type params every provider sends.
func AuthCodeOptions(codeChallenge string) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return opts
}

// ExchangeOptions carries the PKCE verifier on the token request.
func ExchangeOptions(codeVerifier string) []oauth2.AuthCodeOption {
	if codeVerifier == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("code_verifier", codeVerifier)}
}

// TokensFrom flattens an oauth2 token into the named tokens kept per login.
func TokensFrom(token *oauth2.Token) []accounts.AuthToken {
	if token == nil {
		return nil
	}

	var out []accounts.AuthToken
	add := func(name, value string) {
		if value != "" {
			out = append(out, accounts.AuthToken{Name: name, Value: value})
		}
	}

	add(accounts.TokenNameAccess, token.AccessToken)
	add(accounts.TokenNameRefresh, token.RefreshToken)
	add(accounts.TokenNameTokenType, token.TokenType)
	if !token.Expiry.IsZero() {
		add(accounts.TokenNameExpiresAt, strconv.FormatInt(token.Expiry.Unix(), 10))
	}
	if raw, ok := token.Extra("id_token").(string); ok {
		add(accounts.TokenNameIDToken, raw)
	}
	return out
}
