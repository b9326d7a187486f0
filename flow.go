package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-print"
)

// Routes holds the paths the flows redirect to and build links for.
type Routes struct {
	Home                       string
	Register                   string
	ConfirmEmail               string
	Login                      string
	Logout                     string
	ForgotPassword             string
	ForgotPasswordConfirmation string
	ResetPassword              string
	ResetPasswordConfirmation  string
	ExternalLogin              string
	ExternalLoginCallback      string
	ExternalLoginConfirmation  string
}

// DefaultRoutes returns the route layout under /account.
func DefaultRoutes() *Routes {
	return &Routes{
		Home:                       "/",
		Register:                   "/account/register",
		ConfirmEmail:               "/account/confirm-email",
		Login:                      "/account/login",
		Logout:                     "/account/logout",
		ForgotPassword:             "/account/forgot-password",
		ForgotPasswordConfirmation: "/account/forgot-password-confirmation",
		ResetPassword:              "/account/reset-password",
		ResetPasswordConfirmation:  "/account/reset-password-confirmation",
		ExternalLogin:              "/account/external-login",
		ExternalLoginCallback:      "/account/external-login-callback",
		ExternalLoginConfirmation:  "/account/external-login-confirmation",
	}
}

// Views holds template names.
type Views struct {
	Register                   string
	Login                      string
	Lockout                    string
	ConfirmEmail               string
	ForgotPassword             string
	ForgotPasswordConfirmation string
	ResetPassword              string
	ResetPasswordConfirmation  string
	ExternalLoginConfirmation  string
	Error                      string
}

// DefaultViews returns the default template names.
func DefaultViews() *Views {
	return &Views{
		Register:                   "register",
		Login:                      "login",
		Lockout:                    "lockout",
		ConfirmEmail:               "confirm_email",
		ForgotPassword:             "forgot_password",
		ForgotPasswordConfirmation: "forgot_password_confirmation",
		ResetPassword:              "reset_password",
		ResetPasswordConfirmation:  "reset_password_confirmation",
		ExternalLoginConfirmation:  "external_login_confirmation",
		Error:                      "error",
	}
}

// Query parameter names used in links and callbacks.
const (
	QueryReturnURL   = "returnUrl"
	QueryUserID      = "userId"
	QueryCode        = "code"
	QueryRemoteError = "remoteError"
)

// InvalidLoginMessage is the only error a failed login ever shows.
const InvalidLoginMessage = "Invalid login attempt."

// AccountFlow sequences identity store, session signer and email sender
// calls for every account lifecycle step and decides what the browser
// sees next. It keeps no state between requests.
type AccountFlow struct {
	Debug    bool
	BaseURL  string
	Routes   *Routes
	Views    *Views
	store    IdentityStore
	signer   SessionSigner
	mailer   EmailSender
	composer EmailComposer
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// FlowOption configures an AccountFlow
type FlowOption func(*AccountFlow) *AccountFlow

// NewAccountFlow creates the orchestrator. All three collaborators are
// required.
func NewAccountFlow(store IdentityStore, signer SessionSigner, mailer EmailSender, opts ...FlowOption) (*AccountFlow, error) {
	if store == nil {
		return nil, missingCollaborator("identity store")
	}
	if signer == nil {
		return nil, missingCollaborator("session signer")
	}
	if mailer == nil {
		return nil, missingCollaborator("email sender")
	}

	f := &AccountFlow{
		Routes:   DefaultRoutes(),
		Views:    DefaultViews(),
		store:    store,
		signer:   signer,
		mailer:   mailer,
		composer: NewPlainComposer(""),
		logger:   defLogger{name: "accounts.flow"},
		activity: noopActivitySink{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			f = opt(f)
		}
	}

	return f, nil
}

// WithFlowLogger sets the logger
func WithFlowLogger(l Logger) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		if l != nil {
			f.logger = l
		}
		return f
	}
}

// WithActivitySink sets the audit sink
func WithActivitySink(s ActivitySink) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		f.activity = normalizeActivitySink(s)
		return f
	}
}

// WithEmailComposer sets how email bodies are produced
func WithEmailComposer(c EmailComposer) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		if c != nil {
			f.composer = c
		}
		return f
	}
}

// WithBaseURL sets the absolute origin used in emailed links.
func WithBaseURL(base string) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		f.BaseURL = base
		return f
	}
}

// WithRoutes overrides route paths
func WithRoutes(r *Routes) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		if r != nil {
			f.Routes = r
		}
		return f
	}
}

// WithViews overrides template names
func WithViews(v *Views) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		if v != nil {
			f.Views = v
		}
		return f
	}
}

// WithFlowDebug dumps forms and outcomes to the logger.
func WithFlowDebug(debug bool) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		f.Debug = debug
		return f
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) FlowOption {
	return func(f *AccountFlow) *AccountFlow {
		if now != nil {
			f.now = now
		}
		return f
	}
}

// ExternalProviders lists the providers the signer can challenge.
func (f *AccountFlow) ExternalProviders() []ExternalProvider {
	return f.signer.ExternalProviders()
}

func (f *AccountFlow) localOrHome(target string) string {
	return LocalURL(target, f.Routes.Home)
}

func (f *AccountFlow) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = f.now()
	}
	if err := f.activity.Record(ctx, event); err != nil {
		f.logger.Warn("activity sink failed", "event", event.EventType, "error", err)
	}
}

// deliver sends an email. Delivery problems are logged and recorded but
// never change the outcome of the step that triggered them.
func (f *AccountFlow) deliver(ctx context.Context, account *Account, subject, body string) {
	if err := f.mailer.SendEmail(ctx, account.Email, subject, body); err != nil {
		f.logger.Error("email delivery failed", "account", account.ID, "subject", subject, "error", err)
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventEmailFailed,
			AccountID: account.ID,
			Email:     account.Email,
			Metadata:  map[string]any{"subject": subject, "error": err.Error()},
		})
	}
}

func (f *AccountFlow) dump(label string, v any) {
	if !f.Debug {
		return
	}
	f.logger.Debug(label, "payload", print.MaybePrettyJSON(v))
}

func (f *AccountFlow) errorView(message string) Outcome {
	data := map[string]any{}
	if message != "" {
		data["message"] = message
	}
	return render(f.Views.Error, data)
}
