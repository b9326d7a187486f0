package accounts

import "strings"

// ShowRegister renders an empty registration form.
func (f *AccountFlow) ShowRegister(returnURL string) Outcome {
	return render(f.Views.Register, map[string]any{
		DataKeyRecord:    RegisterForm{},
		DataKeyReturnURL: f.localOrHome(returnURL),
	})
}

// Register creates a password account, emails a confirmation link, signs
// the new account in for this browser session and redirects to returnURL.
func (f *AccountFlow) Register(req Request, form RegisterForm, returnURL string) (Outcome, error) {
	ctx := req.Context()
	returnURL = f.localOrHome(returnURL)
	f.dump("register form", form.Cleared())

	if err := form.Validate(); err != nil {
		return render(f.Views.Register, map[string]any{
			DataKeyRecord:     form.Cleared(),
			DataKeyValidation: FormatValidationErrorToMap(err),
			DataKeyReturnURL:  returnURL,
		}), nil
	}

	account := NewAccount(form.Email, form.Name)
	res, err := f.store.CreateAccount(ctx, account, form.Password)
	if err != nil {
		return Outcome{}, err
	}

	if !res.Succeeded() {
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventRegistrationFailed,
			Email:     account.Email,
			Metadata:  map[string]any{"errors": res.Descriptions()},
		})
		return render(f.Views.Register, map[string]any{
			DataKeyRecord:    form.Cleared(),
			DataKeyErrors:    res.Descriptions(),
			DataKeyReturnURL: returnURL,
		}), nil
	}

	f.logger.Info("account created", "account", account.ID)

	token, err := f.store.GenerateEmailConfirmationToken(ctx, account)
	if err != nil {
		return Outcome{}, err
	}

	link := BuildLink(f.BaseURL, f.Routes.ConfirmEmail, map[string]string{
		QueryUserID: account.ID,
		QueryCode:   token,
	})

	subject, body, err := f.composer.ConfirmationEmail(account, link)
	if err != nil {
		return Outcome{}, err
	}
	f.deliver(ctx, account, subject, body)

	if err := f.signer.SignIn(req, account, false); err != nil {
		return Outcome{}, err
	}

	f.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return redirect(returnURL), nil
}

// ConfirmEmail redeems an email confirmation token.
func (f *AccountFlow) ConfirmEmail(req Request, userID, code string) (Outcome, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || code == "" {
		return f.errorView(""), nil
	}

	ctx := req.Context()
	account, err := f.store.FindByID(ctx, userID)
	if err != nil {
		if IsAccountNotFound(err) {
			return f.errorView(""), nil
		}
		return Outcome{}, err
	}

	res, err := f.store.ConfirmEmail(ctx, account, code)
	if err != nil {
		return Outcome{}, err
	}

	if !res.Succeeded() {
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventEmailConfirmFailed,
			AccountID: account.ID,
			Metadata:  map[string]any{"errors": res.Descriptions()},
		})
		return render(f.Views.Error, map[string]any{
			DataKeyErrors: res.Descriptions(),
		}), nil
	}

	f.record(ctx, ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return render(f.Views.ConfirmEmail, map[string]any{
		DataKeyUserID: account.ID,
	}), nil
}
