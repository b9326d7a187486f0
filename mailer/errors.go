package mailer

import "github.com/goliatone/go-errors"

var (
	ErrMissingRecipient = errors.New("email recipient is required", errors.CategoryBadInput).
				WithTextCode("MAIL_MISSING_RECIPIENT").
				WithCode(errors.CodeBadRequest)

	ErrMissingCredentials = errors.New("mailjet api key and secret are required", errors.CategoryInternal).
				WithTextCode("MAIL_MISSING_CREDENTIALS").
				WithCode(errors.CodeInternal)

	ErrDeliveryFailed = errors.New("email delivery failed", errors.CategoryOperation).
				WithTextCode("MAIL_DELIVERY_FAILED").
				WithCode(errors.CodeInternal)
)
