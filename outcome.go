package accounts

// Outcome is the navigation decision of a flow step. Exactly one of View,
// Location or External is set.
type Outcome struct {
	// View to render with Data.
	View string
	Data map[string]any

	// Location is a local path to redirect to.
	Location string

	// External is a provider URL the browser must be sent to.
	External string

	// Flash is an optional one-shot message shown after a redirect.
	Flash string
}

// IsRender reports whether the outcome renders a view.
func (o Outcome) IsRender() bool {
	return o.View != ""
}

// IsRedirect reports whether the outcome redirects locally.
func (o Outcome) IsRedirect() bool {
	return o.View == "" && o.Location != ""
}

// IsExternal reports whether the outcome leaves the application.
func (o Outcome) IsExternal() bool {
	return o.View == "" && o.Location == "" && o.External != ""
}

// Errors returns the form level messages attached to a rendered outcome.
func (o Outcome) Errors() []string {
	if o.Data == nil {
		return nil
	}
	errs, _ := o.Data[DataKeyErrors].([]string)
	return errs
}

// View data keys
const (
	DataKeyErrors              = "errors"
	DataKeyValidation          = "validation"
	DataKeyRecord              = "record"
	DataKeyReturnURL           = "return_url"
	DataKeyProviderDisplayName = "provider_display_name"
	DataKeyProviders           = "providers"
	DataKeyUserID              = "user_id"
)

func render(view string, data map[string]any) Outcome {
	if data == nil {
		data = map[string]any{}
	}
	return Outcome{View: view, Data: data}
}

func redirect(location string) Outcome {
	return Outcome{Location: location}
}

func redirectWithFlash(location, message string) Outcome {
	return Outcome{Location: location, Flash: message}
}

func external(url string) Outcome {
	return Outcome{External: url}
}
