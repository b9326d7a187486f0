package accounts

import (
	"fmt"
	"html"
)

// EmailComposer produces subject and HTML body for the transactional
// emails the flows send.
type EmailComposer interface {
	ConfirmationEmail(account *Account, link string) (subject, body string, err error)
	PasswordResetEmail(account *Account, link string) (subject, body string, err error)
}

// DefaultAppName is used in email subjects when nothing else is configured.
const DefaultAppName = "Identity Manager"

type plainComposer struct {
	appName string
}

// NewPlainComposer returns a composer producing minimal HTML bodies.
func NewPlainComposer(appName string) EmailComposer {
	if appName == "" {
		appName = DefaultAppName
	}
	return plainComposer{appName: appName}
}

func (p plainComposer) ConfirmationEmail(_ *Account, link string) (string, string, error) {
	subject := fmt.Sprintf("Confirm your account - %s", p.appName)
	body := fmt.Sprintf(`Please confirm your account by clicking here: <a href="%s">link</a>`, html.EscapeString(link))
	return subject, body, nil
}

func (p plainComposer) PasswordResetEmail(_ *Account, link string) (string, string, error) {
	subject := fmt.Sprintf("Reset Password - %s", p.appName)
	body := fmt.Sprintf(`Please reset your password by clicking here: <a href="%s">link</a>`, html.EscapeString(link))
	return subject, body, nil
}
