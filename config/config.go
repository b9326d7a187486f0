// Package config loads the server configuration from an optional file and
// ACCOUNTS_ prefixed environment variables.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. ACCOUNTS_SESSION_SIGNING_KEY.
const EnvPrefix = "ACCOUNTS"

type Config struct {
	Server      Server      `mapstructure:"server"`
	Log         Log         `mapstructure:"log"`
	Persistence Persistence `mapstructure:"persistence"`
	Redis       Redis       `mapstructure:"redis"`
	Session     Session     `mapstructure:"session"`
	CSRF        CSRF        `mapstructure:"csrf"`
	Identity    Identity    `mapstructure:"identity"`
	Mail        Mail        `mapstructure:"mail"`
	OAuth       OAuth       `mapstructure:"oauth"`
	Metrics     Metrics     `mapstructure:"metrics"`
}

type Server struct {
	Address         string `mapstructure:"address"`
	BaseURL         string `mapstructure:"base_url"`
	AppName         string `mapstructure:"app_name"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// Log.Level "trace" turns on payload dumps in the account flow.
type Log struct {
	Level string `mapstructure:"level"`
}

type Persistence struct {
	// Driver is sqlite or postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Redis is optional. Without an address the server keeps external login
// correlations in memory.
type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Session struct {
	SigningKey            string `mapstructure:"signing_key"`
	Issuer                string `mapstructure:"issuer"`
	CookieName            string `mapstructure:"cookie_name"`
	CookieSecure          bool   `mapstructure:"cookie_secure"`
	RequireConfirmedEmail bool   `mapstructure:"require_confirmed_email"`
	TTL                   string `mapstructure:"ttl"`
	PersistentTTL         string `mapstructure:"persistent_ttl"`
	ExternalTTL           string `mapstructure:"external_ttl"`
}

type CSRF struct {
	Key string `mapstructure:"key"`
}

type Identity struct {
	BcryptCost       int      `mapstructure:"bcrypt_cost"`
	DeterministicIDs bool     `mapstructure:"deterministic_ids"`
	ConfirmationTTL  string   `mapstructure:"confirmation_ttl"`
	ResetTTL         string   `mapstructure:"reset_ttl"`
	Lockout          Lockout  `mapstructure:"lockout"`
	Password         Password `mapstructure:"password"`
}

type Lockout struct {
	Enabled           bool   `mapstructure:"enabled"`
	MaxFailedAttempts int    `mapstructure:"max_failed_attempts"`
	Duration          string `mapstructure:"duration"`
}

type Password struct {
	MinLength              int  `mapstructure:"min_length"`
	RequireDigit           bool `mapstructure:"require_digit"`
	RequireLowercase       bool `mapstructure:"require_lowercase"`
	RequireUppercase       bool `mapstructure:"require_uppercase"`
	RequireNonAlphanumeric bool `mapstructure:"require_non_alphanumeric"`
}

type Mail struct {
	// Provider is mailjet or log.
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type OAuthClient struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether both credentials are set.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type OAuth struct {
	Google OAuthClient `mapstructure:"google"`
	GitHub OAuthClient `mapstructure:"github"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8572")
	v.SetDefault("server.base_url", "http://localhost:8572")
	v.SetDefault("server.app_name", "Identity Manager")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")

	v.SetDefault("persistence.driver", "sqlite")
	v.SetDefault("persistence.dsn", "file:accounts.db?cache=shared&_fk=1")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.signing_key", "")
	v.SetDefault("session.issuer", "go-accounts")
	v.SetDefault("session.cookie_name", "accounts_session")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.require_confirmed_email", false)
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.persistent_ttl", "336h")
	v.SetDefault("session.external_ttl", "10m")

	v.SetDefault("csrf.key", "")

	v.SetDefault("identity.bcrypt_cost", 12)
	v.SetDefault("identity.deterministic_ids", false)
	v.SetDefault("identity.confirmation_ttl", "24h")
	v.SetDefault("identity.reset_ttl", "1h")
	v.SetDefault("identity.lockout.enabled", true)
	v.SetDefault("identity.lockout.max_failed_attempts", 3)
	v.SetDefault("identity.lockout.duration", "5m")
	v.SetDefault("identity.password.min_length", 8)
	v.SetDefault("identity.password.require_digit", true)
	v.SetDefault("identity.password.require_lowercase", true)
	v.SetDefault("identity.password.require_uppercase", false)
	v.SetDefault("identity.password.require_non_alphanumeric", false)

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.secret_key", "")
	v.SetDefault("mail.from_email", "")
	v.SetDefault("mail.from_name", "")

	v.SetDefault("oauth.google.client_id", "")
	v.SetDefault("oauth.google.client_secret", "")
	v.SetDefault("oauth.github.client_id", "")
	v.SetDefault("oauth.github.client_secret", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads path when given, then applies environment overrides. Every key
// has a default so AutomaticEnv sees it during Unmarshal.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "read config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	err := validation.Errors{
		"server.address":           validation.Validate(c.Server.Address, validation.Required),
		"server.base_url":          validation.Validate(c.Server.BaseURL, validation.Required, is.URL),
		"persistence.driver":       validation.Validate(c.Persistence.Driver, validation.Required, validation.In("sqlite", "postgres")),
		"persistence.dsn":          validation.Validate(c.Persistence.DSN, validation.Required),
		"session.signing_key":      validation.Validate(c.Session.SigningKey, validation.Required, validation.Length(32, 0)),
		"csrf.key":                 validation.Validate(c.CSRF.Key, validation.Length(32, 0)),
		"identity.bcrypt_cost":     validation.Validate(c.Identity.BcryptCost, validation.Min(4), validation.Max(31)),
		"identity.password.length": validation.Validate(c.Identity.Password.MinLength, validation.Min(1)),
		"mail.provider":            validation.Validate(c.Mail.Provider, validation.In("mailjet", "log")),
	}.Filter()

	if err == nil && c.Mail.Provider == "mailjet" {
		err = validation.Errors{
			"mail.api_key":    validation.Validate(c.Mail.APIKey, validation.Required),
			"mail.secret_key": validation.Validate(c.Mail.SecretKey, validation.Required),
			"mail.from_email": validation.Validate(c.Mail.FromEmail, validation.Required, is.Email),
		}.Filter()
	}

	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}
	return nil
}

func duration(expr string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(expr)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (s Server) GetShutdownTimeout() time.Duration {
	return duration(s.ShutdownTimeout, 10*time.Second)
}

func (s Session) GetTTL() time.Duration {
	return duration(s.TTL, 12*time.Hour)
}

func (s Session) GetPersistentTTL() time.Duration {
	return duration(s.PersistentTTL, 14*24*time.Hour)
}

func (s Session) GetExternalTTL() time.Duration {
	return duration(s.ExternalTTL, 10*time.Minute)
}

func (i Identity) GetConfirmationTTL() time.Duration {
	return duration(i.ConfirmationTTL, 24*time.Hour)
}

func (i Identity) GetResetTTL() time.Duration {
	return duration(i.ResetTTL, time.Hour)
}

func (l Lockout) GetDuration() time.Duration {
	return duration(l.Duration, 5*time.Minute)
}
