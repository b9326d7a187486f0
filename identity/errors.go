package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// Result error codes
const (
	CodeDuplicateEmail         = "DuplicateEmail"
	CodeDuplicateUserName      = "DuplicateUserName"
	CodeInvalidEmail           = "InvalidEmail"
	CodeInvalidToken           = "InvalidToken"
	CodeLoginAlreadyAssociated = "LoginAlreadyAssociated"
	CodePasswordTooShort       = "PasswordTooShort"
	CodePasswordTooLong        = "PasswordTooLong"
	CodePasswordRequiresDigit  = "PasswordRequiresDigit"
	CodePasswordRequiresLower  = "PasswordRequiresLower"
	CodePasswordRequiresUpper  = "PasswordRequiresUpper"
	CodePasswordRequiresNonAlp = "PasswordRequiresNonAlphanumeric"
	CodePasswordMismatch       = "PasswordMismatch"
)

func duplicateEmail(email string) accounts.ResultError {
	return accounts.ResultError{
		Code:        CodeDuplicateEmail,
		Description: fmt.Sprintf("Email '%s' is already taken.", email),
	}
}

func duplicateUserName(name string) accounts.ResultError {
	return accounts.ResultError{
		Code:        CodeDuplicateUserName,
		Description: fmt.Sprintf("Username '%s' is already taken.", name),
	}
}

func invalidEmail(email string) accounts.ResultError {
	return accounts.ResultError{
		Code:        CodeInvalidEmail,
		Description: fmt.Sprintf("Email '%s' is invalid.", email),
	}
}

func invalidToken() accounts.ResultError {
	return accounts.ResultError{
		Code:        CodeInvalidToken,
		Description: "Invalid token.",
	}
}

func loginAlreadyAssociated() accounts.ResultError {
	return accounts.ResultError{
		Code:        CodeLoginAlreadyAssociated,
		Description: "A user with this login already exists.",
	}
}

// ErrInvalidAccountID is returned when an account id can not be parsed.
var ErrInvalidAccountID = goerrors.New("invalid account id", goerrors.CategoryBadInput).
	WithTextCode("account_invalid_id").
	WithCode(goerrors.CodeBadRequest)

// errRollback aborts a transaction whose outcome is a failed Result.
var errRollback = errors.New("identity: rollback")

func isRollback(err error) bool {
	return errors.Is(err, errRollback)
}

func wrapStoreErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}

// isUniqueViolation recognises unique constraint failures from postgres
// (pgx) and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
