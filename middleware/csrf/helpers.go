package csrf

import (
	"html"

	"github.com/goliatone/go-router"
)

// CSRFTemplateHelpers returns placeholder helpers for the view engine's
// global data. Per request values come from CSRFTemplateHelpersWithRouter.
func CSRFTemplateHelpers() map[string]any {
	return helpers("", DefaultFormFieldName, DefaultHeaderName)
}

// CSRFTemplateHelpersWithRouter returns the helpers for the token the
// middleware stored under tokenKey.
func CSRFTemplateHelpersWithRouter(ctx router.Context, tokenKey string) map[string]any {
	if tokenKey == "" {
		tokenKey = DefaultContextKey
	}

	token, _ := ctx.Locals(tokenKey).(string)

	fieldName := DefaultFormFieldName
	if v, ok := ctx.Locals(tokenKey + "_field").(string); ok && v != "" {
		fieldName = v
	}

	headerName := DefaultHeaderName
	if v, ok := ctx.Locals(tokenKey + "_header").(string); ok && v != "" {
		headerName = v
	}

	return helpers(token, fieldName, headerName)
}

func helpers(token, fieldName, headerName string) map[string]any {
	t := html.EscapeString(token)
	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + html.EscapeString(fieldName) + `" value="` + t + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + t + `">`,
		"csrf_header_name": headerName,
	}
}
