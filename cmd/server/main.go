package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/identity"
	"github.com/goliatone/go-accounts/mailer"
	"github.com/goliatone/go-accounts/metrics"
	"github.com/goliatone/go-accounts/middleware/csrf"
	"github.com/goliatone/go-accounts/provider"
	"github.com/goliatone/go-accounts/session"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	redis    *redis.Client
	store    *identity.Store
	signer   *session.Signer
	registry *provider.Registry
	mailer   accounts.EmailSender
	activity *metrics.ActivityCounter
	flow     *accounts.AccountFlow
	srv      router.Server[*fiber.App]
}

func (a *App) GetLogger(name string) accounts.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configPath := flag.String("config", os.Getenv("ACCOUNTS_CONFIG"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("accounts"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		),
	}
	lgr := app.GetLogger("app")

	lgr.Info("configuration loaded",
		"base_url", cfg.Server.BaseURL,
		"driver", cfg.Persistence.Driver,
		"mail", cfg.Mail.Provider,
		"redis", cfg.Redis.Address != "",
	)

	ctx := context.Background()

	steps := []struct {
		name string
		fn   func(context.Context, *App) error
	}{
		{"persistence", WithPersistence},
		{"redis", WithRedis},
		{"session", WithSession},
		{"providers", WithProviders},
		{"mailer", WithMailer},
		{"flow", WithAccountFlow},
		{"http", WithHTTPServer},
	}
	for _, step := range steps {
		if err := step.fn(ctx, app); err != nil {
			lgr.Error("startup failed", "step", step.name, "error", err)
			os.Exit(1)
		}
	}

	go func() {
		lgr.Info("listening", "address", cfg.Server.Address)
		if err := app.srv.Serve(cfg.Server.Address); err != nil {
			lgr.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	lgr.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.GetShutdownTimeout())
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("http shutdown", "error", err)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	_ = app.db.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.config.Persistence

	var db *bun.DB
	switch pcfg.Driver {
	case "postgres":
		sqldb, err := sql.Open("pgx", pcfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, pcfg.DSN)
		if err != nil {
			return err
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "database unreachable").
			WithMetadata(map[string]any{"driver": pcfg.Driver})
	}

	group, err := identity.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if group != nil && !group.IsZero() {
		app.GetLogger("persistence").Info("migrated", "group", group.String())
	}

	icfg := app.config.Identity
	app.db = db
	app.store = identity.NewStore(db,
		identity.WithBcryptCost(icfg.BcryptCost),
		identity.WithDeterministicIDs(icfg.DeterministicIDs),
		identity.WithTokenLifetimes(icfg.GetConfirmationTTL(), icfg.GetResetTTL()),
		identity.WithLockoutPolicy(identity.LockoutPolicy{
			Enabled:           icfg.Lockout.Enabled,
			MaxFailedAttempts: icfg.Lockout.MaxFailedAttempts,
			Duration:          icfg.Lockout.GetDuration(),
		}),
		identity.WithPasswordPolicy(identity.PasswordPolicy{
			MinLength:              icfg.Password.MinLength,
			RequireDigit:           icfg.Password.RequireDigit,
			RequireLowercase:       icfg.Password.RequireLowercase,
			RequireUppercase:       icfg.Password.RequireUppercase,
			RequireNonAlphanumeric: icfg.Password.RequireNonAlphanumeric,
		}),
		identity.WithLogger(app.GetLogger("identity")),
	)
	return nil
}

func WithRedis(ctx context.Context, app *App) error {
	rcfg := app.config.Redis
	if rcfg.Address == "" {
		app.GetLogger("redis").Warn("no redis configured, external logins are correlated in memory")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rcfg.Address,
		Password: rcfg.Password,
		DB:       rcfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "redis unreachable")
	}
	app.redis = client
	return nil
}

func WithSession(_ context.Context, app *App) error {
	scfg := app.config.Session

	cfg := session.DefaultConfig()
	cfg.SigningKey = []byte(scfg.SigningKey)
	cfg.Issuer = scfg.Issuer
	cfg.SessionCookie = scfg.CookieName
	cfg.CookieSecure = scfg.CookieSecure
	cfg.RequireConfirmedEmail = scfg.RequireConfirmedEmail
	cfg.SessionTTL = scfg.GetTTL()
	cfg.PersistentTTL = scfg.GetPersistentTTL()
	cfg.ExternalTTL = scfg.GetExternalTTL()
	cfg.BaseURL = app.config.Server.BaseURL

	opts := []session.Option{session.WithLogger(app.GetLogger("session"))}
	if app.redis != nil {
		opts = append(opts, session.WithCorrelationStore(session.NewRedisCorrelationStore(app.redis, "")))
	}

	app.registry = provider.NewRegistry()

	signer, err := session.NewSigner(cfg, app.store, app.registry, opts...)
	if err != nil {
		return err
	}
	app.signer = signer
	return nil
}

// WithProviders registers every provider with credentials. Redirect URIs
// point at the signer's provider callback route.
func WithProviders(ctx context.Context, app *App) error {
	ocfg := app.config.OAuth

	if ocfg.Google.Enabled() {
		google, err := provider.NewGoogle(ctx, provider.OIDCConfig{
			ClientID:     ocfg.Google.ClientID,
			ClientSecret: ocfg.Google.ClientSecret,
			RedirectURL:  app.signer.CallbackURL("google"),
		})
		if err != nil {
			return err
		}
		app.registry.Register(google)
	}

	if ocfg.GitHub.Enabled() {
		app.registry.Register(provider.NewGitHub(provider.GitHubConfig{
			ClientID:     ocfg.GitHub.ClientID,
			ClientSecret: ocfg.GitHub.ClientSecret,
			RedirectURL:  app.signer.CallbackURL("github"),
		}))
	}

	app.GetLogger("providers").Info("external providers", "count", app.registry.Len())
	return nil
}

func WithMailer(_ context.Context, app *App) error {
	mcfg := app.config.Mail
	if mcfg.Provider != "mailjet" {
		app.mailer = mailer.NewLogSender(app.GetLogger("mailer"))
		return nil
	}

	sender, err := mailer.NewMailjetSender(mailer.MailjetConfig{
		APIKey:    mcfg.APIKey,
		SecretKey: mcfg.SecretKey,
		FromEmail: mcfg.FromEmail,
		FromName:  mcfg.FromName,
	}, app.GetLogger("mailer"))
	if err != nil {
		return err
	}
	app.mailer = sender
	return nil
}

func WithAccountFlow(_ context.Context, app *App) error {
	templates, err := mailer.NewTemplates(app.config.Server.AppName)
	if err != nil {
		return err
	}

	activity, err := metrics.NewActivityCounter(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	app.activity = activity

	flow, err := accounts.NewAccountFlow(app.store, app.signer, app.mailer,
		accounts.WithFlowLogger(app.GetLogger("flow")),
		accounts.WithActivitySink(accounts.MultiActivitySink{
			activity,
			activitymap.NewAuditSink(app.GetLogger("audit")),
		}),
		accounts.WithEmailComposer(templates),
		accounts.WithBaseURL(app.config.Server.BaseURL),
		accounts.WithFlowDebug(app.config.Log.Level == "trace"),
	)
	if err != nil {
		return err
	}
	app.flow = flow
	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	templates, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return err
	}

	helpers := accounts.TemplateHelpers()
	helpers["app_name"] = app.config.Server.AppName

	engine := django.NewPathForwardingFileSystem(http.FS(templates), "/", ".html")
	engine.AddFuncMap(helpers)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	r := srv.Router()
	r.WithLogger(app.GetLogger("router"))
	r.Use(mflash.New(mflash.ConfigDefault))
	r.Use(app.signer.CurrentUser())

	guard := csrf.New(csrfConfig(app))

	session.RegisterCallbackRoute(r, app.signer)

	accounts.RegisterAccountRoutes(r,
		accounts.WithFlow(app.flow),
		accounts.WithGuard(guard),
		accounts.WithControllerLogger(app.GetLogger("http")),
		accounts.WithControllerDebug(app.config.Log.Level == "trace"),
	)

	r.Get("/", func(ctx router.Context) error {
		return ctx.Render("home", accounts.MergeTemplateData(ctx, router.ViewContext{}))
	}, guard).SetName("home")

	csrf.RegisterRoutes(r, csrf.RouteConfig{Path: "/account/csrf", Middleware: []router.MiddlewareFunc{guard}})

	if app.config.Metrics.Enabled {
		srv.WrappedRouter().Get(app.config.Metrics.Path, adaptor.HTTPHandler(app.activity.Handler()))
	}

	app.srv = srv
	return nil
}

// csrfConfig keeps tokens in redis when it is available. Otherwise tokens
// are stateless and signed with the configured key, or one derived from
// the session signing key.
func csrfConfig(app *App) csrf.Config {
	cfg := csrf.Config{
		CookieSecure: app.config.Session.CookieSecure,
		UserIDKey:    session.UserIDKey,
	}

	if app.redis != nil {
		cfg.Storage = csrf.NewRedisStorage(app.redis, "")
		return cfg
	}

	key := []byte(app.config.CSRF.Key)
	if len(key) == 0 {
		sum := sha256.Sum256([]byte("csrf:" + app.config.Session.SigningKey))
		key = sum[:]
	}
	cfg.SecureKey = key
	return cfg
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
