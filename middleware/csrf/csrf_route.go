package csrf

import "github.com/goliatone/go-router"

// RouteConfig controls the token bootstrap endpoint used by scripts that
// post with the header instead of the form field.
type RouteConfig struct {
	Path       string
	ContextKey string
	RouteName  string
	// Middleware runs before the handler, normally the CSRF middleware.
	Middleware []router.MiddlewareFunc
}

// RegisterRoutes mounts GET {Path} returning the current token and the
// names it is accepted under. The CSRF middleware must run first, either
// globally or through Middleware.
func RegisterRoutes[T any](app router.Router[T], cfg ...RouteConfig) {
	conf := RouteConfig{Path: "/csrf", ContextKey: DefaultContextKey, RouteName: "accounts.csrf.get"}
	if len(cfg) > 0 {
		if cfg[0].Path != "" {
			conf.Path = cfg[0].Path
		}
		if cfg[0].ContextKey != "" {
			conf.ContextKey = cfg[0].ContextKey
		}
		if cfg[0].RouteName != "" {
			conf.RouteName = cfg[0].RouteName
		}
		conf.Middleware = cfg[0].Middleware
	}
	app.Get(conf.Path, tokenHandler(conf.ContextKey), conf.Middleware...).SetName(conf.RouteName)
}

func tokenHandler(contextKey string) router.HandlerFunc {
	return func(ctx router.Context) error {
		helpers := CSRFTemplateHelpersWithRouter(ctx, contextKey)
		token, _ := helpers["csrf_token"].(string)
		if token == "" {
			return ctx.JSON(router.StatusUnauthorized, map[string]string{"error": ErrTokenMissing.Message})
		}

		ctx.SetHeader("Cache-Control", "no-store, max-age=0")

		field := DefaultFormFieldName
		if v, ok := ctx.Locals(contextKey + "_field").(string); ok && v != "" {
			field = v
		}

		return ctx.JSON(router.StatusOK, map[string]string{
			"token":       token,
			"field_name":  field,
			"header_name": helpers["csrf_header_name"].(string),
		})
	}
}
