package accounts

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeAccountNotFound     = "account_not_found"
	TextCodeMissingCollaborator = "account_missing_collaborator"
	TextCodeExternalInfoMissing = "account_external_info_missing"
	TextCodeProviderNotFound    = "account_provider_not_found"
	TextCodeInvalidForm         = "account_invalid_form"
)

// ErrAccountNotFound is returned by identity stores when no account matches.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrExternalLoginInfoMissing is returned when no external login is correlated
// to the current browser.
var ErrExternalLoginInfoMissing = errors.New("external login information unavailable", errors.CategoryAuth).
	WithTextCode(TextCodeExternalInfoMissing).
	WithCode(errors.CodeUnauthorized)

// ErrProviderNotFound is returned when an external provider is not configured.
var ErrProviderNotFound = errors.New("external login provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidForm is returned when a request body can not be bound to a form.
var ErrInvalidForm = errors.New("unable to parse form", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidForm).
	WithCode(errors.CodeBadRequest)

// IsAccountNotFound reports whether err signals a missing account.
func IsAccountNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) && rich != nil {
		return rich.TextCode == TextCodeAccountNotFound
	}
	return errors.IsNotFound(err)
}

func missingCollaborator(name string) error {
	return errors.New("missing collaborator: "+name, errors.CategoryInternal).
		WithTextCode(TextCodeMissingCollaborator).
		WithCode(errors.CodeInternal)
}

// IsProviderNotFound reports whether err signals an unknown external provider.
func IsProviderNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderNotFound) {
		return true
	}
	var rich *errors.Error
	return errors.As(err, &rich) && rich != nil && rich.TextCode == TextCodeProviderNotFound
}
