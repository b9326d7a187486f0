package accounts

import (
	"context"
	"net/http"
	"testing"

	csfmw "github.com/goliatone/go-accounts/middleware/csrf"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAccountController(fx *flowFixture) *AccountController {
	return NewAccountController(
		WithFlow(fx.flow),
		WithControllerLogger(silentLogger{}),
	)
}

func TestMergeTemplateDataInjectsCSRFHelpers(t *testing.T) {
	ctx := router.NewMockContext()
	token := "csrf-token-123"

	ctx.LocalsMock[csfmw.DefaultContextKey] = token
	ctx.LocalsMock[csfmw.DefaultContextKey+"_field"] = "_token"
	ctx.LocalsMock[csfmw.DefaultContextKey+"_header"] = "X-CSRF-Token"
	ctx.LocalsMock[TemplateUserKey] = &Account{ID: "acc-1"}
	ctx.On("LocalsMerge", csfmw.DefaultTemplateHelpersKey, mock.Anything).Return(map[string]any{})

	viewCtx := MergeTemplateData(ctx, router.ViewContext{
		"title": "login",
	})

	require.Equal(t, "login", viewCtx["title"])
	require.Equal(t, token, viewCtx["csrf_token"])
	require.Contains(t, viewCtx["csrf_field"], `value="`+token+`"`)
	require.Equal(t, &Account{ID: "acc-1"}, viewCtx[TemplateUserKey])
}

func TestLoginShowRendersProvidersAndCSRF(t *testing.T) {
	fx := newFlowFixture()
	ctrl := newTestAccountController(fx)
	ctx := router.NewMockContext()
	ctx.QueriesM[QueryReturnURL] = "/inbox"
	ctx.LocalsMock[csfmw.DefaultContextKey] = "req-token-login"
	ctx.On("LocalsMerge", csfmw.DefaultTemplateHelpersKey, mock.Anything).Return(map[string]any{})

	ctx.On("Render", fx.flow.Views.Login, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		view, ok := args.Get(1).(router.ViewContext)
		require.True(t, ok, "expected router.ViewContext")
		require.Equal(t, "req-token-login", view["csrf_token"])
		require.Equal(t, "/inbox", view[DataKeyReturnURL])
		require.Equal(t, fx.signer.providers, view[DataKeyProviders])
	})

	require.NoError(t, ctrl.LoginShow(ctx))
	ctx.AssertExpectations(t)
}

func TestRegisterShowRendersEmptyRecord(t *testing.T) {
	fx := newFlowFixture()
	ctrl := newTestAccountController(fx)
	ctx := router.NewMockContext()
	ctx.On("LocalsMerge", csfmw.DefaultTemplateHelpersKey, mock.Anything).Return(map[string]any{})
	ctx.On("Render", fx.flow.Views.Register, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		view := args.Get(1).(router.ViewContext)
		require.Equal(t, RegisterForm{}, view[DataKeyRecord])
		require.Equal(t, "/", view[DataKeyReturnURL])
	})

	require.NoError(t, ctrl.RegisterShow(ctx))
	ctx.AssertExpectations(t)
}

func TestLoginPostRendersGenericError(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")
	ctrl := newTestAccountController(fx)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginForm)
		payload.Email = "ada@example.com"
		payload.Password = "wrong"
	})
	ctx.On("LocalsMerge", csfmw.DefaultTemplateHelpersKey, mock.Anything).Return(map[string]any{})
	ctx.On("Render", fx.flow.Views.Login, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		view := args.Get(1).(router.ViewContext)
		require.Equal(t, []string{InvalidLoginMessage}, view[DataKeyErrors])
		require.Empty(t, view[DataKeyRecord].(LoginForm).Password)
	})

	require.NoError(t, ctrl.LoginPost(ctx))
	ctx.AssertExpectations(t)
}

func TestLoginPostRedirectsOnSuccess(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")
	ctrl := newTestAccountController(fx)

	ctx := router.NewMockContext()
	ctx.QueriesM[QueryReturnURL] = "//evil.example"
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*LoginForm)
		payload.Email = "ada@example.com"
		payload.Password = "correct-horse-1"
	})
	ctx.On("Redirect", "/", []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.LoginPost(ctx))
	ctx.AssertExpectations(t)
}

func TestConfirmEmailMissingParamsRendersError(t *testing.T) {
	fx := newFlowFixture()
	ctrl := newTestAccountController(fx)

	ctx := router.NewMockContext()
	ctx.QueriesM[QueryUserID] = "acc-1"
	ctx.On("LocalsMerge", csfmw.DefaultTemplateHelpersKey, mock.Anything).Return(map[string]any{})
	ctx.On("Render", fx.flow.Views.Error, mock.Anything).Return(nil)

	require.NoError(t, ctrl.ConfirmEmail(ctx))
	require.Empty(t, fx.store.calls)
	ctx.AssertExpectations(t)
}

func TestLogoutPostRedirectsHome(t *testing.T) {
	fx := newFlowFixture()
	ctrl := newTestAccountController(fx)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Redirect", "/", []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.LogoutPost(ctx))
	require.Equal(t, 1, fx.signer.signOuts)
	ctx.AssertExpectations(t)
}

func TestExternalLoginPostRedirectsToProvider(t *testing.T) {
	fx := newFlowFixture()
	ctrl := newTestAccountController(fx)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Bind", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(0).(*ExternalLoginPayload).Provider = "google"
	})
	ctx.On("Redirect", "https://provider.example/authorize?provider=google", []int{http.StatusFound}).Return(nil)

	require.NoError(t, ctrl.ExternalLoginPost(ctx))
	ctx.AssertExpectations(t)
}

func TestExternalLoginCallbackWithoutInfoRedirectsToLoginRoute(t *testing.T) {
	fx := newFlowFixture()
	ctrl := newTestAccountController(fx)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Redirect", "/account/login?returnUrl=%2F", []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.ExternalLoginCallback(ctx))
	ctx.AssertExpectations(t)
}

func TestExternalLoginCallbackRemoteErrorRedirectsWithFlash(t *testing.T) {
	fx := newFlowFixture()
	// The remote error wins before the correlation is looked up.
	fx.signer.infoErr = errBoom
	ctrl := newTestAccountController(fx)

	var flashed *router.Cookie
	ctx := router.NewMockContext()
	ctx.QueriesM[QueryReturnURL] = "/inbox"
	ctx.QueriesM[QueryRemoteError] = "access_denied"
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		flashed = c
		return true
	})).Return()
	ctx.On("Redirect", "/account/login?returnUrl=%2Finbox", []int{router.StatusSeeOther}).Return(nil)

	require.NoError(t, ctrl.ExternalLoginCallback(ctx))
	ctx.AssertExpectations(t)
	require.NotNil(t, flashed, "flash message is carried by a cookie")
	require.NotEmpty(t, flashed.Value)
}

func TestControllerRoutesInfrastructureErrors(t *testing.T) {
	fx := newFlowFixture()
	fx.signer.infoErr = errBoom

	var handled error
	ctrl := NewAccountController(
		WithFlow(fx.flow),
		WithControllerLogger(silentLogger{}),
		WithErrorHandler(func(ctx router.Context, err error) error {
			handled = err
			return nil
		}),
	)

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())

	require.NoError(t, ctrl.ExternalLoginCallback(ctx))
	require.ErrorIs(t, handled, errBoom)
}

func TestNewAccountControllerPanicsWithoutFlow(t *testing.T) {
	require.Panics(t, func() {
		NewAccountController()
	})
}
