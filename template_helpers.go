package accounts

import (
	"maps"

	"github.com/goliatone/go-accounts/middleware/csrf"
	"github.com/goliatone/go-router"
)

// TemplateUserKey is the router locals key holding the signed in account.
var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions and placeholder values for the
// view engine's global data.
//
// In templates:
//
//	{% if is_authenticated(current_user) %}
//	{{ csrf_field|safe }}
//	{% for p in providers %}{{ provider_label(p) }}{% endfor %}
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		"is_authenticated": isAuthenticated,
		"provider_label":   providerLabel,
	}

	maps.Copy(helpers, csrf.CSRFTemplateHelpers())

	return helpers
}

// MergeTemplateData adds the request scoped helpers (CSRF token, current
// user) to the view data. Values already in data win.
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{}

	helpers := csrf.CSRFTemplateHelpersWithRouter(ctx, csrf.DefaultContextKey)
	ctx.LocalsMerge(csrf.DefaultTemplateHelpersKey, helpers)
	maps.Copy(out, helpers)

	if user := ctx.Locals(TemplateUserKey); user != nil {
		out[TemplateUserKey] = user
	}

	for key, value := range data {
		out[key] = value
	}

	return out
}

func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case nil:
		return false
	case *Account:
		return u != nil && u.ID != ""
	default:
		return true
	}
}

func providerLabel(p any) string {
	switch v := p.(type) {
	case ExternalProvider:
		if v.DisplayName != "" {
			return v.DisplayName
		}
		return v.Name
	case *ExternalProvider:
		if v == nil {
			return ""
		}
		return providerLabel(*v)
	case string:
		return v
	}
	return ""
}
