package mailer

import (
	"embed"
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates renders confirmation and reset bodies with django syntax, the
// same dialect the account views use.
type Templates struct {
	appName string
	confirm *pongo2.Template
	reset   *pongo2.Template
}

var _ accounts.EmailComposer = (*Templates)(nil)

func NewTemplates(appName string) (*Templates, error) {
	if appName == "" {
		appName = accounts.DefaultAppName
	}

	confirm, err := loadTemplate("templates/confirm_email.html")
	if err != nil {
		return nil, err
	}
	reset, err := loadTemplate("templates/reset_password.html")
	if err != nil {
		return nil, err
	}

	return &Templates{appName: appName, confirm: confirm, reset: reset}, nil
}

func loadTemplate(name string) (*pongo2.Template, error) {
	raw, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "read email template "+name)
	}
	tpl, err := pongo2.FromString(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "parse email template "+name)
	}
	return tpl, nil
}

func (t *Templates) ConfirmationEmail(account *accounts.Account, link string) (string, string, error) {
	body, err := t.render(t.confirm, account, link)
	return fmt.Sprintf("Confirm your account - %s", t.appName), body, err
}

func (t *Templates) PasswordResetEmail(account *accounts.Account, link string) (string, string, error) {
	body, err := t.render(t.reset, account, link)
	return fmt.Sprintf("Reset Password - %s", t.appName), body, err
}

func (t *Templates) render(tpl *pongo2.Template, account *accounts.Account, link string) (string, error) {
	name := "there"
	if account != nil {
		switch {
		case account.Name != "":
			name = account.Name
		case account.Email != "":
			name = account.Email
		}
	}

	out, err := tpl.Execute(pongo2.Context{
		"app_name": t.appName,
		"name":     name,
		"link":     link,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "render email template")
	}
	return out, nil
}
