package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch", errors.CategoryAuthz).
				WithTextCode("CSRF_TOKEN_MISMATCH").
				WithCode(errors.CodeForbidden)

	ErrTokenMissing = errors.New("CSRF token missing", errors.CategoryBadInput).
			WithTextCode("CSRF_TOKEN_MISSING").
			WithCode(errors.CodeBadRequest)

	ErrTokenExpired = errors.New("CSRF token expired", errors.CategoryAuthz).
			WithTextCode("CSRF_TOKEN_EXPIRED").
			WithCode(errors.CodeForbidden)

	ErrSecureKeyMissing = errors.New("CSRF secure key required for stateless mode", errors.CategoryInternal).
				WithTextCode("CSRF_SECURE_KEY_MISSING").
				WithCode(errors.CodeInternal)
)

const (
	DefaultTokenLength        = 32
	DefaultTemplateHelpersKey = "template_helpers"
	DefaultContextKey         = "csrf_token"
	DefaultFormFieldName      = "_token"
	DefaultHeaderName         = "X-CSRF-Token"
	DefaultCookieName         = "accounts_csrf"
	DefaultUserIDKey          = "user_id"
)

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	TokenLength   int
	ContextKey    string
	FormFieldName string
	HeaderName    string

	// TokenLookup defines where to look for the token
	// Format: "form:_token,header:X-CSRF-Token"
	TokenLookup string

	// CookieName holds the per browser key every token is bound to.
	CookieName   string
	CookieSecure bool
	// UserIDKey is the locals key of the signed in account, if any.
	UserIDKey string

	// Storage switches to server side tokens. When nil, tokens are
	// stateless HMACs over SecureKey.
	Storage Storage

	ErrorHandler   router.ErrorHandler
	SuccessHandler router.HandlerFunc

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	Expiration time.Duration

	// SecureKey signs stateless tokens. Must be at least 32 bytes.
	SecureKey []byte

	DisableTemplateHelpers bool
	TemplateHelpersKey     string

	Clock func() time.Time
}

// TokenExtractor defines a function to extract token from request
type TokenExtractor func(router.Context) (string, error)

// New creates a new CSRF middleware
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			subject := subjectKey(ctx, cfg)

			token, err := getOrGenerateToken(ctx, cfg, subject)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)
			if !cfg.DisableTemplateHelpers {
				ctx.LocalsMerge(cfg.TemplateHelpersKey, CSRFTemplateHelpersWithRouter(ctx, cfg.ContextKey))
			}

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return cfg.SuccessHandler(ctx)
			}

			if err := validateToken(ctx, cfg, subject, token); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// subjectKey names what a token is bound to: the browser key cookie, and
// the signed in account when there is one. A browser without the cookie
// gets a fresh key.
func subjectKey(ctx router.Context, cfg Config) string {
	browser := ctx.Cookies(cfg.CookieName)
	if browser == "" {
		browser = randomHex(16)
		ctx.Cookie(&router.Cookie{
			Name:     cfg.CookieName,
			Value:    browser,
			Path:     "/",
			HTTPOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: "Lax",
		})
	}

	if id, ok := ctx.Locals(cfg.UserIDKey).(string); ok && id != "" {
		return "user_" + id + "_" + browser
	}
	return "browser_" + browser
}

func getOrGenerateToken(ctx router.Context, cfg Config, subject string) (string, error) {
	if cfg.Storage == nil {
		return generateStatelessToken(cfg, subject)
	}

	key := "csrf_" + subject
	if token, err := cfg.Storage.Get(ctx.Context(), key); err == nil && token != "" {
		return token, nil
	}

	token := randomHex(cfg.TokenLength)
	if err := cfg.Storage.Set(ctx.Context(), key, token, cfg.Expiration); err != nil {
		return "", err
	}
	return token, nil
}

func validateToken(ctx router.Context, cfg Config, subject, expected string) error {
	received := extractToken(ctx, cfg)
	if received == "" {
		return ErrTokenMissing
	}

	if cfg.Storage != nil {
		if expected == "" || subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
			return ErrTokenMismatch
		}
		return nil
	}

	return validateStatelessToken(cfg, subject, received)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(fmt.Errorf("csrf: entropy source failed: %w", err))
	}
	return hex.EncodeToString(b)
}

func sign(key []byte, payload string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// Stateless tokens are base64(timestamp:nonce:subject:hmac).
func generateStatelessToken(cfg Config, subject string) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	payload := fmt.Sprintf("%d:%s:%s", cfg.Clock().UTC().Unix(), randomHex(cfg.TokenLength), subject)
	token := payload + ":" + hex.EncodeToString(sign(cfg.SecureKey, payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func validateStatelessToken(cfg Config, subject, token string) error {
	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[3])
	if err != nil {
		return ErrTokenMismatch
	}

	if !hmac.Equal(signature, sign(cfg.SecureKey, strings.Join(parts[:3], ":"))) {
		return ErrTokenMismatch
	}

	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(subject)) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 && cfg.Clock().UTC().After(time.Unix(issued, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}

	return nil
}

func extractToken(ctx router.Context, cfg Config) string {
	for _, extractor := range getExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName) {
		if token, err := extractor(ctx); err == nil && token != "" {
			return token
		}
	}
	return ""
}

func getExtractors(tokenLookup, formField, header string) []TokenExtractor {
	if tokenLookup == "" {
		return []TokenExtractor{extractorFromForm(formField), extractorFromHeader(header)}
	}

	var extractors []TokenExtractor
	for _, part := range strings.Split(tokenLookup, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "form:"):
			extractors = append(extractors, extractorFromForm(strings.TrimPrefix(part, "form:")))
		case strings.HasPrefix(part, "header:"):
			extractors = append(extractors, extractorFromHeader(strings.TrimPrefix(part, "header:")))
		}
	}
	return extractors
}

func extractorFromForm(fieldName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.FormValue(fieldName), nil
	}
}

func extractorFromHeader(headerName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.GetString(headerName, ""), nil
	}
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.UserIDKey == "" {
		cfg.UserIDKey = DefaultUserIDKey
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}
	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}
	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey, cfg.Storage)
	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case errors.Is(err, ErrTokenMismatch):
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	case errors.Is(err, ErrTokenExpired):
		return ctx.Status(router.StatusForbidden).SendString("CSRF token expired")
	case errors.Is(err, ErrSecureKeyMissing):
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF configuration error")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}

// initializeSecureKey panics on short keys. Without a key, stateless mode
// gets a random per process key, so tokens do not survive restarts.
func initializeSecureKey(current []byte, storage Storage) []byte {
	if storage != nil {
		return current
	}
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
