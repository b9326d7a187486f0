package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const tokenBytes = 32

// newToken returns a url safe random token and the digest that gets stored.
func newToken() (string, string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, digestToken(token), nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Store) issueToken(ctx context.Context, accountID uuid.UUID, purpose string, ttl time.Duration) (string, error) {
	token, digest, err := newToken()
	if err != nil {
		return "", wrapStoreErr(err, "generate token")
	}

	record := &TokenModel{
		ID:        uuid.New(),
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: digest,
		ExpiresAt: s.now().UTC().Add(ttl),
	}

	if _, err := s.repos.Tokens().CreateTx(ctx, s.repos.DB(), record); err != nil {
		return "", wrapStoreErr(err, "store token")
	}

	return token, nil
}

// lookupToken returns the live token record matching token, or nil when the
// token is unknown, bound to another account or purpose, used or expired.
func (s *Store) lookupToken(ctx context.Context, db bun.IDB, accountID uuid.UUID, purpose, token string) (*TokenModel, error) {
	if token == "" {
		return nil, nil
	}

	record := &TokenModel{}
	err := db.NewSelect().
		Model(record).
		Where("token_hash = ?", digestToken(token)).
		Where("purpose = ?", purpose).
		Where("account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, wrapStoreErr(err, "lookup token")
	}

	if record.ConsumedAt != nil || !s.now().UTC().Before(record.ExpiresAt.UTC()) {
		return nil, nil
	}

	return record, nil
}

// consumeToken marks the token used. It reports false when a concurrent
// redemption got there first.
func (s *Store) consumeToken(ctx context.Context, db bun.IDB, record *TokenModel) (bool, error) {
	now := s.now().UTC()
	res, err := db.NewUpdate().
		Model((*TokenModel)(nil)).
		Set("consumed_at = ?", now).
		Where("id = ?", record.ID).
		Where("consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, wrapStoreErr(err, "consume token")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr(err, "consume token")
	}
	return n == 1, nil
}

// revokeTokens consumes every outstanding token of purpose for an account.
func (s *Store) revokeTokens(ctx context.Context, db bun.IDB, accountID uuid.UUID, purpose string) error {
	_, err := db.NewUpdate().
		Model((*TokenModel)(nil)).
		Set("consumed_at = ?", s.now().UTC()).
		Where("account_id = ?", accountID).
		Where("purpose = ?", purpose).
		Where("consumed_at IS NULL").
		Exec(ctx)
	return wrapStoreErr(err, "revoke tokens")
}

// PurgeExpiredTokens deletes tokens that expired or were used before cutoff.
func (s *Store) PurgeExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.repos.DB().NewDelete().
		Model((*TokenModel)(nil)).
		WhereOr("expires_at < ?", cutoff.UTC()).
		WhereOr("consumed_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, wrapStoreErr(err, "purge tokens")
	}
	return res.RowsAffected()
}
