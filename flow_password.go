package accounts

// ShowForgotPassword renders the forgot password form.
func (f *AccountFlow) ShowForgotPassword() Outcome {
	return render(f.Views.ForgotPassword, map[string]any{
		DataKeyRecord: ForgotPasswordForm{},
	})
}

// ShowForgotPasswordConfirmation renders the "check your inbox" page.
func (f *AccountFlow) ShowForgotPasswordConfirmation() Outcome {
	return render(f.Views.ForgotPasswordConfirmation, nil)
}

// ForgotPassword emails a reset link when the account exists. Known and
// unknown addresses end on the same confirmation route.
func (f *AccountFlow) ForgotPassword(req Request, form ForgotPasswordForm) (Outcome, error) {
	ctx := req.Context()

	if err := form.Validate(); err != nil {
		return render(f.Views.ForgotPassword, map[string]any{
			DataKeyRecord:     form,
			DataKeyValidation: FormatValidationErrorToMap(err),
		}), nil
	}

	done := redirect(f.Routes.ForgotPasswordConfirmation)

	account, err := f.store.FindByEmail(ctx, form.Email)
	if err != nil {
		if IsAccountNotFound(err) {
			f.logger.Debug("password reset requested for unknown email")
			return done, nil
		}
		return Outcome{}, err
	}

	token, err := f.store.GeneratePasswordResetToken(ctx, account)
	if err != nil {
		return Outcome{}, err
	}

	link := BuildLink(f.BaseURL, f.Routes.ResetPassword, map[string]string{
		QueryCode: token,
	})

	subject, body, err := f.composer.PasswordResetEmail(account, link)
	if err != nil {
		return Outcome{}, err
	}
	f.deliver(ctx, account, subject, body)

	f.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return done, nil
}

// ShowResetPassword renders the reset form for the code in the emailed
// link. Without a code there is nothing to reset.
func (f *AccountFlow) ShowResetPassword(code string) Outcome {
	if code == "" {
		return f.errorView("A code must be supplied for password reset.")
	}
	return render(f.Views.ResetPassword, map[string]any{
		DataKeyRecord: ResetPasswordForm{Code: code},
	})
}

// ShowResetPasswordConfirmation renders the "password changed" page.
func (f *AccountFlow) ShowResetPasswordConfirmation() Outcome {
	return render(f.Views.ResetPasswordConfirmation, nil)
}

// ResetPassword redeems a reset token and sets the new password. Unknown
// emails go to the confirmation page like successful resets do. Failed
// resets re-render the form keeping email and code.
func (f *AccountFlow) ResetPassword(req Request, form ResetPasswordForm) (Outcome, error) {
	ctx := req.Context()

	if err := form.Validate(); err != nil {
		return render(f.Views.ResetPassword, map[string]any{
			DataKeyRecord:     form.Cleared(),
			DataKeyValidation: FormatValidationErrorToMap(err),
		}), nil
	}

	done := redirect(f.Routes.ResetPasswordConfirmation)

	account, err := f.store.FindByEmail(ctx, form.Email)
	if err != nil {
		if IsAccountNotFound(err) {
			return done, nil
		}
		return Outcome{}, err
	}

	res, err := f.store.ResetPassword(ctx, account, form.Code, form.Password)
	if err != nil {
		return Outcome{}, err
	}

	if !res.Succeeded() {
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventPasswordResetFailed,
			AccountID: account.ID,
			Metadata:  map[string]any{"errors": res.Descriptions()},
		})
		return render(f.Views.ResetPassword, map[string]any{
			DataKeyRecord: form.Cleared(),
			DataKeyErrors: res.Descriptions(),
		}), nil
	}

	f.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return done, nil
}
