package accounts

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountFlowRequiresCollaborators(t *testing.T) {
	store := newFakeStore()

	_, err := NewAccountFlow(nil, newFakeSigner(store), &fakeMailer{})
	require.Error(t, err)

	_, err = NewAccountFlow(store, nil, &fakeMailer{})
	require.Error(t, err)

	_, err = NewAccountFlow(store, newFakeSigner(store), nil)
	require.Error(t, err)
}

func TestRegisterCreatesAccountSendsOneEmailAndSignsIn(t *testing.T) {
	fx := newFlowFixture()
	req := newFakeRequest()

	out, err := fx.flow.Register(req, RegisterForm{
		Email:           "ada@example.com",
		Name:            "Ada",
		Password:        "correct-horse-1",
		ConfirmPassword: "correct-horse-1",
	}, "/dashboard")
	require.NoError(t, err)

	assert.True(t, out.IsRedirect())
	assert.Equal(t, "/dashboard", out.Location)
	assert.Equal(t, 1, fx.store.count())

	require.Len(t, fx.mailer.sent, 1)
	mail := fx.mailer.sent[0]
	assert.Equal(t, "ada@example.com", mail.to)
	assert.Equal(t, "Confirm your account - Identity Manager", mail.subject)
	assert.Contains(t, mail.body, "https://app.example/account/confirm-email?")

	require.Len(t, fx.signer.signIns, 1)
	assert.False(t, fx.signer.signIns[0].persistent)

	account, err := fx.store.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.UserName)
	assert.Equal(t, account.ID, fx.signer.signIns[0].accountID)

	assert.Contains(t, fx.sink.types(), ActivityEventRegistered)
}

func TestRegisterEmailLinkRedeemsConfirmation(t *testing.T) {
	fx := newFlowFixture()
	req := newFakeRequest()

	_, err := fx.flow.Register(req, RegisterForm{
		Email:           "ada@example.com",
		Password:        "correct-horse-1",
		ConfirmPassword: "correct-horse-1",
	}, "")
	require.NoError(t, err)
	require.Len(t, fx.mailer.sent, 1)

	body := fx.mailer.sent[0].body
	start := strings.Index(body, `href="`) + len(`href="`)
	end := strings.Index(body[start:], `"`)
	link, err := url.Parse(strings.ReplaceAll(body[start:start+end], "&amp;", "&"))
	require.NoError(t, err)

	out, err := fx.flow.ConfirmEmail(req, link.Query().Get(QueryUserID), link.Query().Get(QueryCode))
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.ConfirmEmail, out.View)

	// second redemption of the same code fails
	out, err = fx.flow.ConfirmEmail(req, link.Query().Get(QueryUserID), link.Query().Get(QueryCode))
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Error, out.View)
	assert.NotEmpty(t, out.Errors())
}

func TestRegisterDuplicateEmailCreatesNothing(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")

	out, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "ada@example.com",
		Name:            "Imposter",
		Password:        "another-pass-2",
		ConfirmPassword: "another-pass-2",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, fx.flow.Views.Register, out.View)
	assert.NotEmpty(t, out.Errors())
	assert.Equal(t, 1, fx.store.count())
	assert.Empty(t, fx.mailer.sent)
	assert.Empty(t, fx.signer.signIns)

	record, ok := out.Data[DataKeyRecord].(RegisterForm)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", record.Email)
	assert.Equal(t, "Imposter", record.Name)
	assert.Empty(t, record.Password)
	assert.Empty(t, record.ConfirmPassword)
}

func TestRegisterSurfacesEveryStoreError(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "bob@example.com",
		Password:        "short1",
		ConfirmPassword: "short1",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Passwords must be at least 8 characters."}, out.Errors())
}

func TestRegisterValidationRunsBeforeStore(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "not-an-email",
		Password:        "correct-horse-1",
		ConfirmPassword: "different-horse",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, fx.flow.Views.Register, out.View)
	validation, ok := out.Data[DataKeyValidation].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, validation, "email")
	assert.Contains(t, validation, "confirm_password")
	assert.Empty(t, fx.store.calls)
}

func TestOverlongPasswordIsAFormError(t *testing.T) {
	fx := newFlowFixture()
	long := strings.Repeat("a", 79) + "1"

	out, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "ada@example.com",
		Password:        long,
		ConfirmPassword: long,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Register, out.View)
	assert.Contains(t, out.Data[DataKeyValidation], "password")

	out, err = fx.flow.ResetPassword(newFakeRequest(), ResetPasswordForm{
		Email:           "ada@example.com",
		Password:        long,
		ConfirmPassword: long,
		Code:            "code",
	})
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.ResetPassword, out.View)
	assert.Contains(t, out.Data[DataKeyValidation], "password")

	assert.Empty(t, fx.store.calls)
	assert.Equal(t, 0, fx.store.count())
}

func TestRegisterContinuesWhenEmailFails(t *testing.T) {
	fx := newFlowFixture()
	fx.mailer.err = errBoom

	out, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "ada@example.com",
		Password:        "correct-horse-1",
		ConfirmPassword: "correct-horse-1",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "/", out.Location)
	assert.Len(t, fx.signer.signIns, 1)
	assert.Contains(t, fx.sink.types(), ActivityEventEmailFailed)
}

func TestRegisterStoreFailureIsReturned(t *testing.T) {
	fx := newFlowFixture()
	fx.store.createErr = errBoom

	_, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "ada@example.com",
		Password:        "correct-horse-1",
		ConfirmPassword: "correct-horse-1",
	}, "")
	require.ErrorIs(t, err, errBoom)
}

func TestRegisterRejectsExternalReturnURL(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.Register(newFakeRequest(), RegisterForm{
		Email:           "ada@example.com",
		Password:        "correct-horse-1",
		ConfirmPassword: "correct-horse-1",
	}, "https://evil.example/phish")
	require.NoError(t, err)
	assert.Equal(t, "/", out.Location)
}

func TestConfirmEmailMissingArgumentsNeverTouchStore(t *testing.T) {
	cases := []struct {
		name   string
		userID string
		code   string
	}{
		{"missing both", "", ""},
		{"missing id", "", "code"},
		{"missing code", "acc-1", ""},
		{"blank id", "   ", "code"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFlowFixture()
			out, err := fx.flow.ConfirmEmail(newFakeRequest(), tc.userID, tc.code)
			require.NoError(t, err)
			assert.Equal(t, fx.flow.Views.Error, out.View)
			assert.Empty(t, fx.store.calls)
		})
	}
}

func TestConfirmEmailUnknownAccount(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.ConfirmEmail(newFakeRequest(), "acc-404", "code")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Error, out.View)
	assert.Equal(t, []string{"FindByID"}, fx.store.calls)
}

func TestLoginSucceedsAndRedirects(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")

	out, err := fx.flow.Login(newFakeRequest(), LoginForm{
		Email:      "ada@example.com",
		Password:   "correct-horse-1",
		RememberMe: true,
	}, "/inbox")
	require.NoError(t, err)
	assert.Equal(t, "/inbox", out.Location)
	require.Len(t, fx.signer.signIns, 1)
	assert.True(t, fx.signer.signIns[0].persistent)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")

	wrongPassword, err := fx.flow.Login(newFakeRequest(), LoginForm{Email: "ada@example.com", Password: "nope"}, "")
	require.NoError(t, err)

	unknownEmail, err := fx.flow.Login(newFakeRequest(), LoginForm{Email: "ghost@example.com", Password: "nope"}, "")
	require.NoError(t, err)

	assert.Equal(t, fx.flow.Views.Login, wrongPassword.View)
	assert.Equal(t, []string{InvalidLoginMessage}, wrongPassword.Errors())
	assert.Equal(t, wrongPassword.Errors(), unknownEmail.Errors())

	record := wrongPassword.Data[DataKeyRecord].(LoginForm)
	assert.Empty(t, record.Password)
	assert.Equal(t, fx.signer.providers, wrongPassword.Data[DataKeyProviders])
}

func TestLoginLockedOutAfterThreeFailuresEvenWithCorrectPassword(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")

	for i := 0; i < 3; i++ {
		_, err := fx.flow.Login(newFakeRequest(), LoginForm{Email: "ada@example.com", Password: "wrong"}, "")
		require.NoError(t, err)
	}

	out, err := fx.flow.Login(newFakeRequest(), LoginForm{
		Email:    "ada@example.com",
		Password: "correct-horse-1",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Lockout, out.View)
	assert.Empty(t, fx.signer.signIns)
	assert.Contains(t, fx.sink.types(), ActivityEventLockedOut)
}

func TestLoginValidation(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.Login(newFakeRequest(), LoginForm{Email: "", Password: ""}, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Login, out.View)
	assert.NotEmpty(t, out.Data[DataKeyValidation])
	assert.Empty(t, fx.signer.signIns)
}

func TestLogoutRedirectsHome(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.Logout(newFakeRequest())
	require.NoError(t, err)
	assert.Equal(t, "/", out.Location)
	assert.Equal(t, 1, fx.signer.signOuts)
}

func TestForgotPasswordDoesNotDiscloseExistence(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")

	unknown, err := fx.flow.ForgotPassword(newFakeRequest(), ForgotPasswordForm{Email: "ghost@example.com"})
	require.NoError(t, err)
	assert.Empty(t, fx.mailer.sent)

	known, err := fx.flow.ForgotPassword(newFakeRequest(), ForgotPasswordForm{Email: "ada@example.com"})
	require.NoError(t, err)

	assert.Equal(t, unknown, known)
	assert.Equal(t, fx.flow.Routes.ForgotPasswordConfirmation, known.Location)

	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "Reset Password - Identity Manager", fx.mailer.sent[0].subject)
	assert.Contains(t, fx.mailer.sent[0].body, "https://app.example/account/reset-password?code=")
}

func TestForgotPasswordSameOutcomeWhenEmailFails(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("ada@example.com", "correct-horse-1")
	fx.mailer.err = errBoom

	out, err := fx.flow.ForgotPassword(newFakeRequest(), ForgotPasswordForm{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Routes.ForgotPasswordConfirmation, out.Location)
}

func TestShowResetPasswordRequiresCode(t *testing.T) {
	fx := newFlowFixture()

	assert.Equal(t, fx.flow.Views.Error, fx.flow.ShowResetPassword("").View)

	out := fx.flow.ShowResetPassword("abc")
	assert.Equal(t, fx.flow.Views.ResetPassword, out.View)
	assert.Equal(t, "abc", out.Data[DataKeyRecord].(ResetPasswordForm).Code)
}

func TestResetPasswordTokenRedeemsOnce(t *testing.T) {
	fx := newFlowFixture()
	account := fx.seed("ada@example.com", "correct-horse-1")

	token, err := fx.store.GeneratePasswordResetToken(context.Background(), account)
	require.NoError(t, err)

	form := ResetPasswordForm{
		Email:           "ada@example.com",
		Password:        "brand-new-pass-9",
		ConfirmPassword: "brand-new-pass-9",
		Code:            token,
	}

	first, err := fx.flow.ResetPassword(newFakeRequest(), form)
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Routes.ResetPasswordConfirmation, first.Location)

	second, err := fx.flow.ResetPassword(newFakeRequest(), form)
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.ResetPassword, second.View)
	assert.Equal(t, []string{"Invalid token."}, second.Errors())

	record := second.Data[DataKeyRecord].(ResetPasswordForm)
	assert.Equal(t, "ada@example.com", record.Email)
	assert.Equal(t, token, record.Code)
	assert.Empty(t, record.Password)
	assert.Empty(t, record.ConfirmPassword)
}

func TestResetPasswordUnknownEmailRedirectsToConfirmation(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.ResetPassword(newFakeRequest(), ResetPasswordForm{
		Email:           "ghost@example.com",
		Password:        "brand-new-pass-9",
		ConfirmPassword: "brand-new-pass-9",
		Code:            "whatever",
	})
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Routes.ResetPasswordConfirmation, out.Location)
	assert.NotContains(t, fx.store.calls, "ResetPassword")
}

func TestExternalLoginBuildsChallenge(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.ExternalLogin(newFakeRequest(), "google", "/after")
	require.NoError(t, err)
	assert.True(t, out.IsExternal())
	assert.Contains(t, out.External, "provider=google")
	require.Len(t, fx.signer.challenges, 1)
	assert.Equal(t, "/account/external-login-callback?returnUrl=%2Fafter", fx.signer.challenges[0])
}

func TestExternalLoginUnknownProvider(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.ExternalLogin(newFakeRequest(), "myspace", "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Error, out.View)
}

func TestExternalLoginCallbackWithoutInfoRedirectsToLogin(t *testing.T) {
	for _, remoteError := range []string{"", "access_denied"} {
		t.Run("remote_error="+remoteError, func(t *testing.T) {
			fx := newFlowFixture()

			out, err := fx.flow.ExternalLoginCallback(newFakeRequest(), "/after", remoteError)
			require.NoError(t, err)
			assert.True(t, out.IsRedirect())
			assert.True(t, strings.HasPrefix(out.Location, fx.flow.Routes.Login))
			assert.Empty(t, fx.signer.signIns)

			if remoteError != "" {
				assert.Equal(t, "Error from external provider: access_denied", out.Flash)
			} else {
				assert.Empty(t, out.Flash)
			}
		})
	}
}

func TestExternalLoginCallbackSignsInLinkedAccount(t *testing.T) {
	fx := newFlowFixture()
	account := fx.seed("ada@example.com", "")
	info := &ExternalLoginInfo{Provider: "google", ProviderKey: "sub-1", ProviderDisplayName: "Google"}
	_, err := fx.store.AddExternalLogin(context.Background(), account, info)
	require.NoError(t, err)
	fx.signer.info = info

	out, err := fx.flow.ExternalLoginCallback(newFakeRequest(), "/after", "")
	require.NoError(t, err)
	assert.Equal(t, "/after", out.Location)
	assert.Equal(t, 1, fx.signer.tokenSaves)
	require.Len(t, fx.signer.signIns, 1)
	assert.False(t, fx.signer.signIns[0].persistent)
}

func TestExternalLoginCallbackPrefillsConfirmation(t *testing.T) {
	fx := newFlowFixture()
	fx.signer.info = &ExternalLoginInfo{
		Provider:            "google",
		ProviderKey:         "sub-2",
		ProviderDisplayName: "Google",
		Email:               "grace@example.com",
		Name:                "Grace",
	}

	out, err := fx.flow.ExternalLoginCallback(newFakeRequest(), "/after", "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.ExternalLoginConfirmation, out.View)
	assert.Equal(t, "Google", out.Data[DataKeyProviderDisplayName])
	assert.Equal(t, "/after", out.Data[DataKeyReturnURL])
	assert.Equal(t, ExternalLoginConfirmationForm{Email: "grace@example.com", Name: "Grace"}, out.Data[DataKeyRecord])
}

func TestExternalLoginConfirmationCreatesLinksAndSignsIn(t *testing.T) {
	fx := newFlowFixture()
	fx.signer.info = &ExternalLoginInfo{Provider: "google", ProviderKey: "sub-3", ProviderDisplayName: "Google"}

	out, err := fx.flow.ExternalLoginConfirmation(newFakeRequest(), ExternalLoginConfirmationForm{
		Email: "grace@example.com",
		Name:  "Grace",
	}, "/after")
	require.NoError(t, err)
	assert.Equal(t, "/after", out.Location)
	assert.Equal(t, 1, fx.store.count())
	assert.Equal(t, []string{"CreateExternalAccount"}, fx.store.calls)
	assert.Len(t, fx.signer.signIns, 1)
	assert.Equal(t, 1, fx.signer.tokenSaves)

	account, err := fx.store.FindByEmail(context.Background(), "grace@example.com")
	require.NoError(t, err)
	assert.False(t, account.HasPassword)
}

func TestExternalLoginConfirmationWithoutInfo(t *testing.T) {
	fx := newFlowFixture()

	out, err := fx.flow.ExternalLoginConfirmation(newFakeRequest(), ExternalLoginConfirmationForm{
		Email: "grace@example.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Error, out.View)
	assert.Empty(t, fx.store.calls)
}

func TestExternalLoginConfirmationSurfacesErrors(t *testing.T) {
	fx := newFlowFixture()
	fx.seed("grace@example.com", "correct-horse-1")
	fx.signer.info = &ExternalLoginInfo{Provider: "google", ProviderKey: "sub-4", ProviderDisplayName: "Google"}

	out, err := fx.flow.ExternalLoginConfirmation(newFakeRequest(), ExternalLoginConfirmationForm{
		Email: "grace@example.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.ExternalLoginConfirmation, out.View)
	assert.Equal(t, []string{"Email 'grace@example.com' is already taken."}, out.Errors())
	assert.Equal(t, "Google", out.Data[DataKeyProviderDisplayName])
	assert.Empty(t, fx.signer.signIns)
}

func TestExternalLoginConfirmationLeavesNoAccountWhenLinkFails(t *testing.T) {
	fx := newFlowFixture()
	owner := fx.seed("owner@example.com", "correct-horse-1")
	info := &ExternalLoginInfo{Provider: "google", ProviderKey: "sub-6", ProviderDisplayName: "Google"}
	_, err := fx.store.AddExternalLogin(context.Background(), owner, info)
	require.NoError(t, err)
	fx.store.calls = nil
	fx.signer.info = info

	form := ExternalLoginConfirmationForm{Email: "grace@example.com"}
	out, err := fx.flow.ExternalLoginConfirmation(newFakeRequest(), form, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.ExternalLoginConfirmation, out.View)
	assert.Equal(t, []string{"A user with this login already exists."}, out.Errors())
	assert.Equal(t, 1, fx.store.count())
	assert.Empty(t, fx.signer.signIns)

	// A retry with a fresh identity is not blocked by a half created account.
	fx.signer.info = &ExternalLoginInfo{Provider: "github", ProviderKey: "gh-6", ProviderDisplayName: "GitHub"}
	out, err = fx.flow.ExternalLoginConfirmation(newFakeRequest(), form, "/after")
	require.NoError(t, err)
	assert.Equal(t, "/after", out.Location)
	assert.Equal(t, 2, fx.store.count())
	assert.Len(t, fx.signer.signIns, 1)
}

func TestExternalLoginConfirmationRefetchesInfo(t *testing.T) {
	fx := newFlowFixture()
	fx.signer.info = &ExternalLoginInfo{Provider: "google", ProviderKey: "sub-5", Email: "x@example.com"}

	_, err := fx.flow.ExternalLoginCallback(newFakeRequest(), "", "")
	require.NoError(t, err)

	fx.signer.info = nil
	out, err := fx.flow.ExternalLoginConfirmation(newFakeRequest(), ExternalLoginConfirmationForm{
		Email: "x@example.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, fx.flow.Views.Error, out.View)
}
