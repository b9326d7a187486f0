package identity

import (
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Token purposes
const (
	PurposeEmailConfirmation = "email_confirmation"
	PurposePasswordReset     = "password_reset"
)

// AccountModel is the account record
type AccountModel struct {
	bun.BaseModel      `bun:"table:accounts,alias:acc"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email              string     `bun:"email,notnull" json:"email,omitempty"`
	NormalizedEmail    string     `bun:"normalized_email,notnull,unique" json:"-"`
	UserName           string     `bun:"user_name,notnull" json:"user_name,omitempty"`
	NormalizedUserName string     `bun:"normalized_user_name,notnull,unique" json:"-"`
	Name               string     `bun:"name" json:"name,omitempty"`
	PasswordHash       string     `bun:"password_hash" json:"-"`
	EmailConfirmed     bool       `bun:"email_confirmed,notnull" json:"email_confirmed"`
	AccessFailedCount  int        `bun:"access_failed_count,notnull" json:"access_failed_count"`
	LockoutEnd         *time.Time `bun:"lockout_end,nullzero" json:"lockout_end,omitempty"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ToAccount maps the record to the flow facing view.
func (m *AccountModel) ToAccount() *accounts.Account {
	if m == nil {
		return nil
	}
	return &accounts.Account{
		ID:             m.ID.String(),
		Email:          m.Email,
		UserName:       m.UserName,
		Name:           m.Name,
		EmailConfirmed: m.EmailConfirmed,
		HasPassword:    m.PasswordHash != "",
		CreatedAt:      m.CreatedAt,
	}
}

// TokenModel is a pending action token. Only the SHA-256 digest of the
// token handed out is stored.
type TokenModel struct {
	bun.BaseModel `bun:"table:account_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Purpose       string     `bun:"purpose,notnull" json:"purpose"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ExternalLoginModel links an account to a provider subject.
type ExternalLoginModel struct {
	bun.BaseModel       `bun:"table:external_logins,alias:xl"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID           uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Provider            string     `bun:"provider,notnull" json:"provider"`
	ProviderKey         string     `bun:"provider_key,notnull" json:"provider_key"`
	ProviderDisplayName string     `bun:"provider_display_name" json:"provider_display_name,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AuthTokenModel stores a token an external provider issued for an account.
type AuthTokenModel struct {
	bun.BaseModel `bun:"table:account_auth_tokens,alias:aat"`
	AccountID     uuid.UUID  `bun:"account_id,pk,type:uuid" json:"account_id"`
	Provider      string     `bun:"provider,pk" json:"provider"`
	Name          string     `bun:"name,pk" json:"name"`
	Value         string     `bun:"value" json:"-"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
