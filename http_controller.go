package accounts

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterAccountRoutes mounts the account routes. Unsafe routes are
// wrapped by the controller Guard (CSRF) when one is configured.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)
	routes := controller.Flow.Routes

	guarded := []router.MiddlewareFunc{}
	if controller.Guard != nil {
		guarded = append(guarded, controller.Guard)
	}

	app.Get(routes.Register, controller.RegisterShow, guarded...).SetName("account.register.get")
	app.Post(routes.Register, controller.RegisterPost, guarded...).SetName("account.register.post")

	app.Get(routes.ConfirmEmail, controller.ConfirmEmail).SetName("account.confirm-email.get")

	app.Get(routes.Login, controller.LoginShow, guarded...).SetName("account.login.get")
	app.Post(routes.Login, controller.LoginPost, guarded...).SetName("account.login.post")

	app.Post(routes.Logout, controller.LogoutPost, guarded...).SetName("account.logout.post")

	app.Get(routes.ForgotPassword, controller.ForgotPasswordShow, guarded...).SetName("account.forgot-password.get")
	app.Post(routes.ForgotPassword, controller.ForgotPasswordPost, guarded...).SetName("account.forgot-password.post")
	app.Get(routes.ForgotPasswordConfirmation, controller.ForgotPasswordConfirmation).
		SetName("account.forgot-password-confirmation.get")

	app.Get(routes.ResetPassword, controller.ResetPasswordShow, guarded...).SetName("account.reset-password.get")
	app.Post(routes.ResetPassword, controller.ResetPasswordPost, guarded...).SetName("account.reset-password.post")
	app.Get(routes.ResetPasswordConfirmation, controller.ResetPasswordConfirmation).
		SetName("account.reset-password-confirmation.get")

	app.Post(routes.ExternalLogin, controller.ExternalLoginPost, guarded...).SetName("account.external-login.post")
	app.Get(routes.ExternalLoginCallback, controller.ExternalLoginCallback, guarded...).
		SetName("account.external-login-callback.get")
	app.Post(routes.ExternalLoginConfirmation, controller.ExternalLoginConfirmationPost, guarded...).
		SetName("account.external-login-confirmation.post")

	return controller
}

// AccountController adapts AccountFlow to go-router handlers.
type AccountController struct {
	Debug        bool
	Logger       Logger
	Flow         *AccountFlow
	Guard        router.MiddlewareFunc
	ErrorHandler router.ErrorHandler
}

// AccountControllerOption configures the controller
type AccountControllerOption func(*AccountController) *AccountController

// WithFlow sets the orchestrator
func WithFlow(flow *AccountFlow) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Flow = flow
		return c
	}
}

// WithGuard sets the middleware protecting form routes
func WithGuard(mw router.MiddlewareFunc) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Guard = mw
		return c
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(l Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithErrorHandler sets the handler for infrastructure errors
func WithErrorHandler(h router.ErrorHandler) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

// WithControllerDebug toggles payload dumps
func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

// NewAccountController creates the controller. A flow is required.
func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{name: "accounts.http"},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Flow == nil {
		panic("Missing AccountFlow in account controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	return c
}

func (a *AccountController) RegisterShow(ctx router.Context) error {
	return a.respond(ctx, a.Flow.ShowRegister(ctx.Query(QueryReturnURL)))
}

func (a *AccountController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterForm)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, a.Flow.Views.Register, payload.Cleared(), err)
	}

	out, err := a.Flow.Register(ctx, *payload, ctx.Query(QueryReturnURL))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) ConfirmEmail(ctx router.Context) error {
	out, err := a.Flow.ConfirmEmail(ctx, ctx.Query(QueryUserID), ctx.Query(QueryCode))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) LoginShow(ctx router.Context) error {
	return a.respond(ctx, a.Flow.ShowLogin(ctx.Query(QueryReturnURL)))
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginForm)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, a.Flow.Views.Login, payload.Cleared(), err)
	}

	out, err := a.Flow.Login(ctx, *payload, ctx.Query(QueryReturnURL))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) LogoutPost(ctx router.Context) error {
	out, err := a.Flow.Logout(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) ForgotPasswordShow(ctx router.Context) error {
	return a.respond(ctx, a.Flow.ShowForgotPassword())
}

func (a *AccountController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordForm)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, a.Flow.Views.ForgotPassword, payload, err)
	}

	out, err := a.Flow.ForgotPassword(ctx, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) ForgotPasswordConfirmation(ctx router.Context) error {
	return a.respond(ctx, a.Flow.ShowForgotPasswordConfirmation())
}

func (a *AccountController) ResetPasswordShow(ctx router.Context) error {
	return a.respond(ctx, a.Flow.ShowResetPassword(ctx.Query(QueryCode)))
}

func (a *AccountController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordForm)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, a.Flow.Views.ResetPassword, payload.Cleared(), err)
	}

	out, err := a.Flow.ResetPassword(ctx, *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) ResetPasswordConfirmation(ctx router.Context) error {
	return a.respond(ctx, a.Flow.ShowResetPasswordConfirmation())
}

// ExternalLoginPayload names the provider to challenge.
type ExternalLoginPayload struct {
	Provider string `form:"provider" json:"provider"`
}

func (a *AccountController) ExternalLoginPost(ctx router.Context) error {
	payload := new(ExternalLoginPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "unable to parse external login request").
			WithCode(errors.CodeBadRequest))
	}

	out, err := a.Flow.ExternalLogin(ctx, payload.Provider, ctx.Query(QueryReturnURL))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) ExternalLoginCallback(ctx router.Context) error {
	out, err := a.Flow.ExternalLoginCallback(ctx, ctx.Query(QueryReturnURL), ctx.Query(QueryRemoteError))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) ExternalLoginConfirmationPost(ctx router.Context) error {
	payload := new(ExternalLoginConfirmationForm)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, a.Flow.Views.ExternalLoginConfirmation, payload, err)
	}

	out, err := a.Flow.ExternalLoginConfirmation(ctx, *payload, ctx.Query(QueryReturnURL))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return a.respond(ctx, out)
}

func (a *AccountController) respond(ctx router.Context, out Outcome) error {
	if a.Debug {
		a.Logger.Debug("account outcome", "outcome", print.MaybePrettyJSON(out))
	}

	switch {
	case out.IsRender():
		return ctx.Render(out.View, MergeTemplateData(ctx, router.ViewContext(out.Data)))
	case out.IsRedirect():
		if out.Flash != "" {
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  out.Flash,
				"system_message": out.Flash,
			}).Redirect(out.Location, router.StatusSeeOther)
		}
		return ctx.Redirect(out.Location, router.StatusSeeOther)
	case out.IsExternal():
		return ctx.Redirect(out.External, http.StatusFound)
	}

	return a.ErrorHandler(ctx, errors.New("empty account outcome", errors.CategoryInternal).
		WithCode(errors.CodeInternal))
}

func (a *AccountController) badRequest(ctx router.Context, view string, record any, err error) error {
	a.Logger.Error("account form parse payload", "error", err)
	return ctx.Status(fiber.StatusBadRequest).Render(view, MergeTemplateData(ctx, router.ViewContext{
		DataKeyErrors: []string{ErrInvalidForm.Message},
		DataKeyRecord: record,
	}))
}

func (a *AccountController) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Error("account request failed",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
	)

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	return ctx.Status(status).Render(a.Flow.Views.Error, MergeTemplateData(ctx, router.ViewContext{
		"message": "An error occurred while processing your request.",
	}))
}
