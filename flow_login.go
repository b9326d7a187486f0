package accounts

// ShowLogin renders the login form together with the configured external
// providers.
func (f *AccountFlow) ShowLogin(returnURL string) Outcome {
	return render(f.Views.Login, f.loginData(LoginForm{}, f.localOrHome(returnURL), nil))
}

// Login checks credentials with lockout on failure enabled.
func (f *AccountFlow) Login(req Request, form LoginForm, returnURL string) (Outcome, error) {
	ctx := req.Context()
	returnURL = f.localOrHome(returnURL)
	f.dump("login form", form.Cleared())

	if err := form.Validate(); err != nil {
		data := f.loginData(form.Cleared(), returnURL, nil)
		data[DataKeyValidation] = FormatValidationErrorToMap(err)
		return render(f.Views.Login, data), nil
	}

	result, err := f.signer.PasswordSignIn(req, form.Email, form.Password, form.RememberMe, true)
	if err != nil {
		return Outcome{}, err
	}

	switch result {
	case SignInSucceeded:
		f.logger.Info("user logged in", "email", form.Email)
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginSuccess,
			Email:     form.Email,
			Metadata:  map[string]any{"persistent": form.RememberMe},
		})
		return redirect(returnURL), nil
	case SignInLockedOut:
		f.logger.Warn("user account locked out", "email", form.Email)
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventLockedOut,
			Email:     form.Email,
		})
		return render(f.Views.Lockout, map[string]any{}), nil
	default:
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Email:     form.Email,
			Metadata:  map[string]any{"result": result.String()},
		})
		return render(f.Views.Login, f.loginData(form.Cleared(), returnURL, []string{InvalidLoginMessage})), nil
	}
}

// Logout ends the session and sends the browser home.
func (f *AccountFlow) Logout(req Request) (Outcome, error) {
	if err := f.signer.SignOut(req); err != nil {
		return Outcome{}, err
	}
	f.record(req.Context(), ActivityEvent{EventType: ActivityEventLogout})
	return redirect(f.Routes.Home), nil
}

func (f *AccountFlow) loginData(form LoginForm, returnURL string, errs []string) map[string]any {
	data := map[string]any{
		DataKeyRecord:    form,
		DataKeyReturnURL: returnURL,
		DataKeyProviders: f.signer.ExternalProviders(),
	}
	if len(errs) > 0 {
		data[DataKeyErrors] = errs
	}
	return data
}
