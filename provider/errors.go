package provider

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
)

const (
	TextCodeTokenExchangeFail = "provider_token_exchange_failed"
	TextCodeUserInfoFail      = "provider_user_info_failed"
	TextCodeMissingClaims     = "provider_missing_claims"
)

var ErrTokenExchangeFailed = goerrors.New("token exchange failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(goerrors.CodeUnauthorized)

var ErrUserInfoFailed = goerrors.New("failed to fetch user info", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(goerrors.CodeUnauthorized)

var ErrMissingClaims = goerrors.New("provider identity missing required claims", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingClaims).
	WithCode(goerrors.CodeUnauthorized)

// ProviderError captures normalized provider response details.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := e.Provider
	if e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{"provider": e.Provider}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	return meta
}

// newProviderError normalizes err, unpacking oauth2.RetrieveError when the
// token endpoint answered with an error body.
func newProviderError(provider, operation string, err error) *ProviderError {
	perr := &ProviderError{Provider: provider, Operation: operation, Err: err}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		perr.Code = rerr.ErrorCode
		perr.Description = rerr.ErrorDescription
		if rerr.Response != nil {
			perr.Status = rerr.Response.StatusCode
		}
	}
	return perr
}

func wrapProviderError(base *goerrors.Error, perr *ProviderError) error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	clone.Source = perr
	clone.WithMetadata(perr.Metadata())
	return clone
}
