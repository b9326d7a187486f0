package accounts

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var reFieldCase = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// MaxPasswordLength bounds password fields in bytes, bcrypt rejects longer
// input.
const MaxPasswordLength = 72

// RegisterForm is the registration payload
type RegisterForm struct {
	Email           string `form:"email" json:"email"`
	Name            string `form:"name" json:"name"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterForm) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 256), is.Email),
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, MaxPasswordLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

// Cleared returns a copy without the password fields, for re-rendering.
func (r RegisterForm) Cleared() RegisterForm {
	r.Password = ""
	r.ConfirmPassword = ""
	return r
}

// LoginForm payload
type LoginForm struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// Validate will run validation rules
func (r LoginForm) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Cleared returns a copy without the password.
func (r LoginForm) Cleared() LoginForm {
	r.Password = ""
	return r
}

// ForgotPasswordForm holds the email a reset link is requested for.
type ForgotPasswordForm struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordForm) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordForm carries the token from the reset link and the new password.
type ResetPasswordForm struct {
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	Code            string `form:"code" json:"code"`
}

// Validate will validate the payload
func (r ResetPasswordForm) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, MaxPasswordLength)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.Code, validation.Required),
	)
}

// Cleared keeps email and code, drops the passwords.
func (r ResetPasswordForm) Cleared() ResetPasswordForm {
	r.Password = ""
	r.ConfirmPassword = ""
	return r
}

// ExternalLoginConfirmationForm completes the account for an external login.
type ExternalLoginConfirmationForm struct {
	Email string `form:"email" json:"email"`
	Name  string `form:"name" json:"name"`
}

// Validate will validate the payload
func (r ExternalLoginConfirmationForm) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Name, validation.Length(0, 200)),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo errors into a field keyed map
// using the form field names (snake_case).
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out["form"] = err.Error()
		return out
	}

	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		out[toSnake(field)] = ferr.Error()
	}
	return out
}

func toSnake(s string) string {
	return strings.ToLower(reFieldCase.ReplaceAllString(s, "${1}_${2}"))
}
