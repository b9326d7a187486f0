package identity

import (
	"fmt"
	"unicode"

	"github.com/goliatone/go-accounts"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordPolicy is the set of rules a new password must satisfy
type PasswordPolicy struct {
	MinLength              int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy requires eight characters with at least one digit
// and one lowercase letter.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireDigit:     true,
		RequireLowercase: true,
	}
}

// Check returns every rule the password breaks, in a stable order.
func (p PasswordPolicy) Check(password string) []accounts.ResultError {
	var errs []accounts.ResultError

	if len([]rune(password)) < p.MinLength {
		errs = append(errs, accounts.ResultError{
			Code:        CodePasswordTooShort,
			Description: fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength),
		})
	}
	if len(password) > MaxPasswordBytes {
		errs = append(errs, accounts.ResultError{
			Code:        CodePasswordTooLong,
			Description: fmt.Sprintf("Passwords must be at most %d bytes.", MaxPasswordBytes),
		})
	}

	var digit, lower, upper, other bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r):
			other = true
		}
	}

	if p.RequireNonAlphanumeric && !other {
		errs = append(errs, accounts.ResultError{
			Code:        CodePasswordRequiresNonAlp,
			Description: "Passwords must have at least one non alphanumeric character.",
		})
	}
	if p.RequireDigit && !digit {
		errs = append(errs, accounts.ResultError{
			Code:        CodePasswordRequiresDigit,
			Description: "Passwords must have at least one digit ('0'-'9').",
		})
	}
	if p.RequireLowercase && !lower {
		errs = append(errs, accounts.ResultError{
			Code:        CodePasswordRequiresLower,
			Description: "Passwords must have at least one lowercase ('a'-'z').",
		})
	}
	if p.RequireUppercase && !upper {
		errs = append(errs, accounts.ResultError{
			Code:        CodePasswordRequiresUpper,
			Description: "Passwords must have at least one uppercase ('A'-'Z').",
		})
	}

	return errs
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePasswordAndHash reports whether password matches hash
func ComparePasswordAndHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
