package identity

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repositories exposes the identity repositories and their transaction scope.
type Repositories interface {
	repository.Validator
	repository.TransactionManager
	Accounts() repository.Repository[*AccountModel]
	Tokens() repository.Repository[*TokenModel]
	ExternalLogins() repository.Repository[*ExternalLoginModel]
	DB() *bun.DB
}

func NewAccountsRepository(db *bun.DB) repository.Repository[*AccountModel] {
	return repository.NewRepository(db, repository.ModelHandlers[*AccountModel]{
		NewRecord: func() *AccountModel { return &AccountModel{} },
		GetID: func(m *AccountModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *AccountModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "normalized_email"
		},
	})
}

func NewTokensRepository(db *bun.DB) repository.Repository[*TokenModel] {
	return repository.NewRepository(db, repository.ModelHandlers[*TokenModel]{
		NewRecord: func() *TokenModel { return &TokenModel{} },
		GetID: func(m *TokenModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *TokenModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})
}

func NewExternalLoginsRepository(db *bun.DB) repository.Repository[*ExternalLoginModel] {
	return repository.NewRepository(db, repository.ModelHandlers[*ExternalLoginModel]{
		NewRecord: func() *ExternalLoginModel { return &ExternalLoginModel{} },
		GetID: func(m *ExternalLoginModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *ExternalLoginModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
	})
}

type repos struct {
	db             *bun.DB
	accounts       repository.Repository[*AccountModel]
	tokens         repository.Repository[*TokenModel]
	externalLogins repository.Repository[*ExternalLoginModel]
}

// NewRepositories builds the identity repositories over db.
func NewRepositories(db *bun.DB) Repositories {
	return &repos{
		db:             db,
		accounts:       NewAccountsRepository(db),
		tokens:         NewTokensRepository(db),
		externalLogins: NewExternalLoginsRepository(db),
	}
}

func (r *repos) Validate() error {
	if r.db == nil {
		return errors.New("identity repositories need a database")
	}
	if r.accounts == nil || r.tokens == nil || r.externalLogins == nil {
		return errors.New("identity repositories should be initialized")
	}
	return nil
}

func (r *repos) MustValidate() {
	if err := r.Validate(); err != nil {
		panic(err)
	}
}

func (r *repos) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return r.db.RunInTx(ctx, opts, f)
	}
}

func (r *repos) Accounts() repository.Repository[*AccountModel] { return r.accounts }

func (r *repos) Tokens() repository.Repository[*TokenModel] { return r.tokens }

func (r *repos) ExternalLogins() repository.Repository[*ExternalLoginModel] {
	return r.externalLogins
}

func (r *repos) DB() *bun.DB { return r.db }

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || goerrors.IsNotFound(err)
}
