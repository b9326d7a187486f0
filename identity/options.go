package identity

import (
	"time"

	"github.com/goliatone/go-accounts"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultConfirmationTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL        = time.Hour
	DefaultMaxFailedAttempts    = 3
	DefaultLockoutDuration      = 5 * time.Minute
)

// LockoutPolicy controls how failed password checks lock an account.
type LockoutPolicy struct {
	Enabled           bool
	MaxFailedAttempts int
	Duration          time.Duration
}

// DefaultLockoutPolicy locks after three failures for five minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Enabled:           true,
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		Duration:          DefaultLockoutDuration,
	}
}

// Option configures a Store
type Option func(*Store)

func WithPasswordPolicy(policy PasswordPolicy) Option {
	return func(s *Store) {
		s.passwords = policy
	}
}

func WithLockoutPolicy(policy LockoutPolicy) Option {
	return func(s *Store) {
		s.lockout = policy
	}
}

// WithBcryptCost sets the hashing cost. Values outside the bcrypt range fall
// back to bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) {
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			cost = bcrypt.DefaultCost
		}
		s.bcryptCost = cost
	}
}

func WithTokenLifetimes(confirmation, reset time.Duration) Option {
	return func(s *Store) {
		if confirmation > 0 {
			s.confirmationTTL = confirmation
		}
		if reset > 0 {
			s.resetTTL = reset
		}
	}
}

// WithDeterministicIDs derives account ids from the normalized email using
// hashid instead of random v4 ids.
func WithDeterministicIDs(enabled bool) Option {
	return func(s *Store) {
		s.deterministicIDs = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger accounts.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}
