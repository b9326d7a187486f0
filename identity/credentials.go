package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/uptrace/bun"
)

// CheckPassword compares password against the stored hash. Accounts created
// through an external provider have no hash and never match.
func (s *Store) CheckPassword(ctx context.Context, account *accounts.Account, password string) (bool, error) {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return false, err
	}
	return ComparePasswordAndHash(password, record.PasswordHash), nil
}

// IsLockedOut reports whether the lockout window of the account is open.
func (s *Store) IsLockedOut(ctx context.Context, account *accounts.Account) (bool, error) {
	if !s.lockout.Enabled {
		return false, nil
	}
	record, err := s.resolve(ctx, account)
	if err != nil {
		return false, err
	}
	return s.lockedOut(record), nil
}

func (s *Store) lockedOut(record *AccountModel) bool {
	return record.LockoutEnd != nil && record.LockoutEnd.UTC().After(s.now().UTC())
}

// AccessFailed records a failed password check. Once the count reaches the
// policy maximum the account is locked and the count starts over. It reports
// whether the account is now locked out.
func (s *Store) AccessFailed(ctx context.Context, account *accounts.Account) (bool, error) {
	if !s.lockout.Enabled {
		return false, nil
	}

	var locked bool
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.findModelByID(ctx, tx, accountID(account))
		if err != nil {
			return err
		}

		now := s.now().UTC()
		count := record.AccessFailedCount + 1
		q := tx.NewUpdate().
			Model((*AccountModel)(nil)).
			Set("updated_at = ?", now).
			Where("id = ?", record.ID)

		if s.lockout.MaxFailedAttempts > 0 && count >= s.lockout.MaxFailedAttempts {
			end := now.Add(s.lockout.Duration)
			q = q.Set("access_failed_count = 0").Set("lockout_end = ?", end)
			locked = true
		} else {
			q = q.Set("access_failed_count = ?", count)
		}

		if _, err := q.Exec(ctx); err != nil {
			return wrapStoreErr(err, "record failed access")
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if locked {
		s.logger.Warn("account locked out", "account_id", accountID(account), "duration", s.lockout.Duration.String())
	}
	return locked, nil
}

// ResetAccessFailedCount clears the failure counter after a good sign in.
func (s *Store) ResetAccessFailedCount(ctx context.Context, account *accounts.Account) error {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return err
	}
	if record.AccessFailedCount == 0 {
		return nil
	}

	_, err = s.repos.DB().NewUpdate().
		Model((*AccountModel)(nil)).
		Set("access_failed_count = 0").
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", record.ID).
		Exec(ctx)
	return wrapStoreErr(err, "reset failed access count")
}

// SetLockoutEnd sets or clears (nil) the lockout window.
func (s *Store) SetLockoutEnd(ctx context.Context, account *accounts.Account, end *time.Time) error {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return err
	}

	var value any
	if end != nil {
		value = end.UTC()
	}

	_, err = s.repos.DB().NewUpdate().
		Model((*AccountModel)(nil)).
		Set("lockout_end = ?", value).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", record.ID).
		Exec(ctx)
	return wrapStoreErr(err, "set lockout end")
}

// FindByLogin returns the account linked to a provider subject.
func (s *Store) FindByLogin(ctx context.Context, provider, providerKey string) (*accounts.Account, error) {
	link, err := s.findLogin(ctx, s.repos.DB(), provider, providerKey)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, accounts.ErrAccountNotFound
	}
	return s.FindByID(ctx, link.AccountID.String())
}

// SetAuthenticationToken stores or replaces a provider issued token.
func (s *Store) SetAuthenticationToken(ctx context.Context, account *accounts.Account, provider, name, value string) error {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	token := &AuthTokenModel{
		AccountID: record.ID,
		Provider:  provider,
		Name:      name,
		Value:     value,
		UpdatedAt: &now,
	}

	_, err = s.repos.DB().NewInsert().
		Model(token).
		On("CONFLICT (account_id, provider, name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrapStoreErr(err, "set authentication token")
}

// GetAuthenticationToken returns a stored provider token, empty when absent.
func (s *Store) GetAuthenticationToken(ctx context.Context, account *accounts.Account, provider, name string) (string, error) {
	record, err := s.resolve(ctx, account)
	if err != nil {
		return "", err
	}

	token := &AuthTokenModel{}
	err = s.repos.DB().NewSelect().
		Model(token).
		Where("account_id = ?", record.ID).
		Where("provider = ?", provider).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", wrapStoreErr(err, "get authentication token")
	}
	return token.Value, nil
}

func accountID(account *accounts.Account) string {
	if account == nil {
		return ""
	}
	return account.ID
}
