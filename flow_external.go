package accounts

import "fmt"

// ExternalLogin starts the provider handshake. The signer is told to come
// back to the callback route carrying the return url.
func (f *AccountFlow) ExternalLogin(req Request, provider, returnURL string) (Outcome, error) {
	returnURL = f.localOrHome(returnURL)
	callback := BuildLink("", f.Routes.ExternalLoginCallback, map[string]string{
		QueryReturnURL: returnURL,
	})

	location, err := f.signer.ExternalChallenge(req, provider, callback)
	if err != nil {
		if IsProviderNotFound(err) {
			f.logger.Warn("external login with unknown provider", "provider", provider)
			return f.errorView("Unknown external login provider."), nil
		}
		return Outcome{}, err
	}

	f.record(req.Context(), ActivityEvent{
		EventType: ActivityEventExternalChallenge,
		Provider:  provider,
	})

	return external(location), nil
}

// ExternalLoginCallback finishes the provider round trip. A provider error
// sends the browser back to the login form with the error flashed. A lost
// correlation sends it to login too. Linked identities are signed in,
// unknown ones are asked to confirm a local account.
func (f *AccountFlow) ExternalLoginCallback(req Request, returnURL, remoteError string) (Outcome, error) {
	ctx := req.Context()
	returnURL = f.localOrHome(returnURL)
	loginURL := BuildLink("", f.Routes.Login, map[string]string{
		QueryReturnURL: returnURL,
	})

	if remoteError != "" {
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventExternalFailure,
			Metadata:  map[string]any{"remote_error": remoteError},
		})
		return redirectWithFlash(loginURL, fmt.Sprintf("Error from external provider: %s", remoteError)), nil
	}

	info, err := f.signer.ExternalLoginInfo(req)
	if err != nil {
		return Outcome{}, err
	}
	if info == nil {
		return redirect(loginURL), nil
	}

	result, err := f.signer.ExternalLoginSignIn(req, info.Provider, info.ProviderKey, false)
	if err != nil {
		return Outcome{}, err
	}

	switch result {
	case SignInSucceeded:
		if err := f.signer.UpdateExternalTokens(req, info); err != nil {
			return Outcome{}, err
		}
		f.logger.Info("user logged in with external provider", "provider", info.Provider)
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventExternalLogin,
			Provider:  info.Provider,
			Email:     info.Email,
		})
		return redirect(returnURL), nil
	case SignInLockedOut:
		return render(f.Views.Lockout, map[string]any{}), nil
	}

	return render(f.Views.ExternalLoginConfirmation, map[string]any{
		DataKeyRecord: ExternalLoginConfirmationForm{
			Email: info.Email,
			Name:  info.Name,
		},
		DataKeyReturnURL:           returnURL,
		DataKeyProviderDisplayName: info.ProviderDisplayName,
	}), nil
}

// ExternalLoginConfirmation creates a local account without password for
// the correlated external identity, links it and signs it in.
func (f *AccountFlow) ExternalLoginConfirmation(req Request, form ExternalLoginConfirmationForm, returnURL string) (Outcome, error) {
	ctx := req.Context()
	returnURL = f.localOrHome(returnURL)

	info, err := f.signer.ExternalLoginInfo(req)
	if err != nil {
		return Outcome{}, err
	}
	if info == nil {
		return f.errorView("Error loading external login information during confirmation."), nil
	}

	confirmation := func(extra map[string]any) Outcome {
		data := map[string]any{
			DataKeyRecord:              form,
			DataKeyReturnURL:           returnURL,
			DataKeyProviderDisplayName: info.ProviderDisplayName,
		}
		for k, v := range extra {
			data[k] = v
		}
		return render(f.Views.ExternalLoginConfirmation, data)
	}

	if err := form.Validate(); err != nil {
		return confirmation(map[string]any{
			DataKeyValidation: FormatValidationErrorToMap(err),
		}), nil
	}

	account := NewAccount(form.Email, form.Name)
	res, err := f.store.CreateExternalAccount(ctx, account, info)
	if err != nil {
		return Outcome{}, err
	}

	if !res.Succeeded() {
		f.record(ctx, ActivityEvent{
			EventType: ActivityEventExternalFailure,
			Provider:  info.Provider,
			Email:     form.Email,
			Metadata:  map[string]any{"errors": res.Descriptions()},
		})
		return confirmation(map[string]any{
			DataKeyErrors: res.Descriptions(),
		}), nil
	}

	if err := f.signer.SignIn(req, account, false); err != nil {
		return Outcome{}, err
	}

	if err := f.signer.UpdateExternalTokens(req, info); err != nil {
		return Outcome{}, err
	}

	f.logger.Info("account created with external provider", "account", account.ID, "provider", info.Provider)
	f.record(ctx, ActivityEvent{
		EventType: ActivityEventExternalLinked,
		AccountID: account.ID,
		Provider:  info.Provider,
		Email:     account.Email,
	})

	return redirect(returnURL), nil
}
