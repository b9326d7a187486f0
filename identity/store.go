package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store is the bun backed identity store.
type Store struct {
	repos            Repositories
	passwords        PasswordPolicy
	lockout          LockoutPolicy
	bcryptCost       int
	confirmationTTL  time.Duration
	resetTTL         time.Duration
	deterministicIDs bool
	now              func() time.Time
	logger           accounts.Logger
}

var _ accounts.IdentityStore = (*Store)(nil)

// NewStore returns a Store over db. Run Migrate before first use.
func NewStore(db *bun.DB, opts ...Option) *Store {
	return NewStoreWithRepositories(NewRepositories(db), opts...)
}

func NewStoreWithRepositories(repos Repositories, opts ...Option) *Store {
	repos.MustValidate()

	s := &Store{
		repos:           repos,
		passwords:       DefaultPasswordPolicy(),
		lockout:         DefaultLockoutPolicy(),
		bcryptCost:      14,
		confirmationTTL: DefaultConfirmationTokenTTL,
		resetTTL:        DefaultResetTokenTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = accounts.ResolveLogger("identity", nil, nil)
	}
	return s
}

// Normalize folds a user name or email for lookups
func Normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func (s *Store) CreateAccount(ctx context.Context, account *accounts.Account, password string) (accounts.Result, error) {
	result, created, err := s.createAccount(ctx, s.repos.DB(), account, password)
	if err != nil || !result.Succeeded() {
		return result, err
	}

	*account = *created.ToAccount()
	s.logger.Debug("account created", "account_id", account.ID)
	return result, nil
}

// CreateExternalAccount creates a password less account and links the
// external identity to it in one transaction. A failed link leaves no
// account behind.
func (s *Store) CreateExternalAccount(ctx context.Context, account *accounts.Account, info *accounts.ExternalLoginInfo) (accounts.Result, error) {
	if info == nil {
		return accounts.Result{}, accounts.ErrExternalLoginInfoMissing
	}

	var (
		result  accounts.Result
		created *AccountModel
	)
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		result, created, err = s.createAccount(ctx, tx, account, "")
		if err != nil || !result.Succeeded() {
			return err
		}

		result, err = s.addLogin(ctx, tx, created.ID, info)
		if err != nil {
			return err
		}
		if !result.Succeeded() {
			return errRollback
		}
		return nil
	})
	if err != nil && !isRollback(err) {
		return accounts.Result{}, err
	}
	if !result.Succeeded() {
		return result, nil
	}

	*account = *created.ToAccount()
	s.logger.Debug("external account created", "account_id", account.ID, "provider", info.Provider)
	return result, nil
}

func (s *Store) createAccount(ctx context.Context, db bun.IDB, account *accounts.Account, password string) (accounts.Result, *AccountModel, error) {
	if account == nil {
		return accounts.Failed(accounts.ResultError{Code: CodeInvalidEmail, Description: "Account is required."}), nil, nil
	}

	email := strings.TrimSpace(account.Email)
	userName := strings.TrimSpace(account.UserName)
	if userName == "" {
		userName = email
	}

	var errs []accounts.ResultError
	if email == "" || validation.Validate(email, is.Email) != nil {
		errs = append(errs, invalidEmail(email))
	}

	taken, err := s.taken(ctx, db, userName, email)
	if err != nil {
		return accounts.Result{}, nil, err
	}
	errs = append(errs, taken...)

	if password != "" {
		errs = append(errs, s.passwords.Check(password)...)
	}
	if len(errs) > 0 {
		return accounts.Failed(errs...), nil, nil
	}

	record := &AccountModel{
		Email:              email,
		NormalizedEmail:    Normalize(email),
		UserName:           userName,
		NormalizedUserName: Normalize(userName),
		Name:               strings.TrimSpace(account.Name),
	}

	if record.ID, err = s.newAccountID(record.NormalizedEmail); err != nil {
		return accounts.Result{}, nil, wrapStoreErr(err, "generate account id")
	}

	if password != "" {
		if record.PasswordHash, err = HashPassword(password, s.bcryptCost); err != nil {
			return accounts.Result{}, nil, wrapStoreErr(err, "hash password")
		}
	}

	now := s.now().UTC()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	created, err := s.repos.Accounts().CreateTx(ctx, db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return accounts.Failed(duplicateEmail(email)), nil, nil
		}
		return accounts.Result{}, nil, wrapStoreErr(err, "create account")
	}
	return accounts.Success(), created, nil
}

// taken reports uniqueness violations for the user name and email.
func (s *Store) taken(ctx context.Context, db bun.IDB, userName, email string) ([]accounts.ResultError, error) {
	var errs []accounts.ResultError

	nameTaken, err := s.exists(ctx, db, "normalized_user_name", Normalize(userName))
	if err != nil {
		return nil, err
	}
	if nameTaken && Normalize(userName) != Normalize(email) {
		errs = append(errs, duplicateUserName(userName))
	}

	emailTaken, err := s.exists(ctx, db, "normalized_email", Normalize(email))
	if err != nil {
		return nil, err
	}
	if emailTaken {
		errs = append(errs, duplicateEmail(email))
	}
	return errs, nil
}

func (s *Store) exists(ctx context.Context, db bun.IDB, column, value string) (bool, error) {
	ok, err := db.NewSelect().
		Model((*AccountModel)(nil)).
		Where("? = ?", bun.Ident(column), value).
		Exists(ctx)
	if err != nil {
		return false, wrapStoreErr(err, "check account uniqueness")
	}
	return ok, nil
}

func (s *Store) newAccountID(normalizedEmail string) (uuid.UUID, error) {
	if s.deterministicIDs {
		return hashid.NewUUID(strings.ToLower(normalizedEmail))
	}
	return uuid.New(), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*accounts.Account, error) {
	record, err := s.findModelByID(ctx, s.repos.DB(), id)
	if err != nil {
		return nil, err
	}
	return record.ToAccount(), nil
}

func (s *Store) findModelByID(ctx context.Context, db bun.IDB, id string) (*AccountModel, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, accounts.ErrAccountNotFound
	}

	record := &AccountModel{}
	if err := db.NewSelect().Model(record).Where("id = ?", uid).Limit(1).Scan(ctx); err != nil {
		if isNotFound(err) {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, wrapStoreErr(err, "find account by id")
	}
	return record, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	record, err := s.findModelByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return record.ToAccount(), nil
}

func (s *Store) findModelByEmail(ctx context.Context, email string) (*AccountModel, error) {
	normalized := Normalize(email)
	if normalized == "" {
		return nil, accounts.ErrAccountNotFound
	}

	record := &AccountModel{}
	err := s.repos.DB().NewSelect().
		Model(record).
		Where("normalized_email = ?", normalized).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, wrapStoreErr(err, "find account by email")
	}
	return record, nil
}

func (s *Store) GenerateEmailConfirmationToken(ctx context.Context, account *accounts.Account) (string, error) {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return "", err
	}
	return s.issueToken(ctx, record.ID, PurposeEmailConfirmation, s.confirmationTTL)
}

func (s *Store) ConfirmEmail(ctx context.Context, account *accounts.Account, token string) (accounts.Result, error) {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return accounts.Result{}, err
	}

	result := accounts.Success()
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tok, err := s.lookupToken(ctx, tx, record.ID, PurposeEmailConfirmation, token)
		if err != nil {
			return err
		}
		if tok == nil {
			result = accounts.Failed(invalidToken())
			return nil
		}

		ok, err := s.consumeToken(ctx, tx, tok)
		if err != nil {
			return err
		}
		if !ok {
			result = accounts.Failed(invalidToken())
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*AccountModel)(nil)).
			Set("email_confirmed = ?", true).
			Set("updated_at = ?", s.now().UTC()).
			Where("id = ?", record.ID).
			Exec(ctx)
		return wrapStoreErr(err, "confirm email")
	})
	if err != nil {
		return accounts.Result{}, err
	}

	if result.Succeeded() {
		account.EmailConfirmed = true
	}
	return result, nil
}

func (s *Store) GeneratePasswordResetToken(ctx context.Context, account *accounts.Account) (string, error) {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return "", err
	}
	return s.issueToken(ctx, record.ID, PurposePasswordReset, s.resetTTL)
}

// ResetPassword checks the token before the password policy, so a bad token
// is reported on its own. The token is only consumed when the reset lands.
func (s *Store) ResetPassword(ctx context.Context, account *accounts.Account, token, newPassword string) (accounts.Result, error) {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return accounts.Result{}, err
	}

	result := accounts.Success()
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tok, err := s.lookupToken(ctx, tx, record.ID, PurposePasswordReset, token)
		if err != nil {
			return err
		}
		if tok == nil {
			result = accounts.Failed(invalidToken())
			return nil
		}

		if errs := s.passwords.Check(newPassword); len(errs) > 0 {
			result = accounts.Failed(errs...)
			return nil
		}

		ok, err := s.consumeToken(ctx, tx, tok)
		if err != nil {
			return err
		}
		if !ok {
			result = accounts.Failed(invalidToken())
			return nil
		}

		hash, err := HashPassword(newPassword, s.bcryptCost)
		if err != nil {
			return wrapStoreErr(err, "hash password")
		}

		if _, err := tx.NewUpdate().
			Model((*AccountModel)(nil)).
			Set("password_hash = ?", hash).
			Set("updated_at = ?", s.now().UTC()).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return wrapStoreErr(err, "update password")
		}

		return s.revokeTokens(ctx, tx, record.ID, PurposePasswordReset)
	})
	if err != nil {
		return accounts.Result{}, err
	}

	if result.Succeeded() {
		account.HasPassword = true
	}
	return result, nil
}

func (s *Store) AddExternalLogin(ctx context.Context, account *accounts.Account, info *accounts.ExternalLoginInfo) (accounts.Result, error) {
	if info == nil {
		return accounts.Result{}, accounts.ErrExternalLoginInfoMissing
	}

	record, err := s.resolve(ctx, account)
	if err != nil {
		return accounts.Result{}, err
	}
	return s.addLogin(ctx, s.repos.DB(), record.ID, info)
}

func (s *Store) addLogin(ctx context.Context, db bun.IDB, accountID uuid.UUID, info *accounts.ExternalLoginInfo) (accounts.Result, error) {
	existing, err := s.findLogin(ctx, db, info.Provider, info.ProviderKey)
	if err != nil {
		return accounts.Result{}, err
	}
	if existing != nil {
		return accounts.Failed(loginAlreadyAssociated()), nil
	}

	now := s.now().UTC()
	link := &ExternalLoginModel{
		ID:                  uuid.New(),
		AccountID:           accountID,
		Provider:            info.Provider,
		ProviderKey:         info.ProviderKey,
		ProviderDisplayName: info.ProviderDisplayName,
		CreatedAt:           &now,
	}

	if _, err := s.repos.ExternalLogins().CreateTx(ctx, db, link); err != nil {
		if isUniqueViolation(err) {
			return accounts.Failed(loginAlreadyAssociated()), nil
		}
		return accounts.Result{}, wrapStoreErr(err, "add external login")
	}

	return accounts.Success(), nil
}

func (s *Store) findLogin(ctx context.Context, db bun.IDB, provider, providerKey string) (*ExternalLoginModel, error) {
	link := &ExternalLoginModel{}
	err := db.NewSelect().
		Model(link).
		Where("provider = ?", provider).
		Where("provider_key = ?", providerKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, wrapStoreErr(err, "find external login")
	}
	return link, nil
}

// resolve loads the stored record for an account view.
func (s *Store) resolve(ctx context.Context, account *accounts.Account) (*AccountModel, error) {
	if account == nil {
		return nil, accounts.ErrAccountNotFound
	}
	return s.findModelByID(ctx, s.repos.DB(), account.ID)
}
