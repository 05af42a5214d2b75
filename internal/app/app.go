// Package app cablea la aplicación completa: config, storage, cache,
// servicios y router. Los binarios de cmd/ sólo parsean flags y llaman acá.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/janus-id/janus/internal/cache"
	"github.com/janus-id/janus/internal/config"
	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/email"
	"github.com/janus-id/janus/internal/http/controllers/health"
	"github.com/janus-id/janus/internal/http/router"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/magiclink"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	"github.com/janus-id/janus/internal/rate"
	"github.com/janus-id/janus/internal/security/password"
	"github.com/janus-id/janus/internal/store/memory"
	"github.com/janus-id/janus/internal/store/pg"
	"github.com/janus-id/janus/migrations/postgres"
)

// App es la aplicación cableada y lista para servir.
type App struct {
	Config  *config.Config
	Handler http.Handler

	// PG es nil con el driver memory.
	PG *pg.Store

	closers []func() error
}

type repos struct {
	accounts repository.AccountRepository
	passkeys repository.PasskeyRepository
	mfa      repository.MFARepository
	sessions repository.SessionRepository
	pinger   health.Pinger
}

// New construye la aplicación desde la configuración.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		ServiceName: "janus",
	})
	log := logger.With(logger.Component("app"))

	a := &App{Config: cfg}

	// Storage
	r, err := a.buildRepos(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Cache (challenges MFA, ceremonias WebAuthn, consumos de magic link)
	cacheClient, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Duration(cfg.Cache.Memory.DefaultTTL, 2*time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	a.closers = append(a.closers, cacheClient.Close)

	// Email. Con debug_echo_links los emails van al log en vez de SMTP,
	// útil en desarrollo para copiar el magic link sin un buzón real.
	var sender email.Sender = email.EchoSender{}
	if cfg.SMTP.Host != "" && !cfg.Email.DebugEchoLinks {
		smtp := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		smtp.TLSMode = cfg.SMTP.TLS
		smtp.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = smtp
	}

	// Magic links
	if cfg.MagicLink.SigningKey == "" {
		return nil, errors.New("magic link signing key is required (JANUS_MAGIC_LINK_KEY)")
	}
	signer := magiclink.NewSigner([]byte(cfg.MagicLink.SigningKey), cfg.Server.BaseURL, config.MustDuration(cfg.MagicLink.TTL))

	// WebAuthn relying party
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.Passkey.RPID,
		RPDisplayName: cfg.Passkey.RPDisplayName,
		RPOrigins:     cfg.Passkey.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("build webauthn: %w", err)
	}

	// Limiters
	var loginLim, magicLim, challengeLim, routeLim rate.Limiter
	if cfg.Rate.Enabled {
		loginLim = a.buildLimiter(cfg, "rl:login:", cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
		magicLim = a.buildLimiter(cfg, "rl:ml:", cfg.Rate.MagicLinkEmail.Limit, cfg.Rate.MagicLinkEmail.Window)
		challengeLim = a.buildLimiter(cfg, "rl:ch:", cfg.Rate.Challenge.Limit, cfg.Rate.Challenge.Window)
		routeLim = a.buildLimiter(cfg, "rl:route:", cfg.Rate.MagicLinkRoute.Limit, cfg.Rate.MagicLinkRoute.Window)
	}

	// Metrics
	metricsHandler, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if a.PG != nil {
		pool := a.PG.Pool
		if err := prometheus.DefaultRegisterer.Register(metrics.NewDBPoolCollector(pool)); err != nil {
			log.Warn("failed to register db pool collector", logger.Err(err))
		}
	}

	stepUpTTL := config.MustDuration(cfg.StepUp.TTL)

	services := svc.NewServices(svc.Deps{
		Accounts: r.accounts,
		Passkeys: r.passkeys,
		MFA:      r.mfa,
		Sessions: r.sessions,

		Cache:    cacheClient,
		Email:    sender,
		Signer:   signer,
		WebAuthn: wa,

		LoginLimiter:     loginLim,
		MagicLinkLimiter: magicLim,
		ChallengeLimiter: challengeLim,

		PasswordParams: password.Default,
		Session: svc.SessionPolicy{
			CookieName:  cfg.Session.CookieName,
			Domain:      cfg.Session.Domain,
			SameSite:    cfg.Session.SameSite,
			Secure:      cfg.Session.Secure,
			TTL:         config.MustDuration(cfg.Session.TTL),
			RememberTTL: config.MustDuration(cfg.Session.RememberTTL),
			RememberKey: []byte(cfg.Session.RememberKey),
			StepUpTTL:   stepUpTTL,
		},
		MFAPolicy: svc.MFAPolicy{
			Issuer:              cfg.MFA.Issuer,
			Window:              cfg.MFA.Window,
			RequireConfirmation: *cfg.MFA.RequireConfirmation,
			RecoveryCodes:       cfg.MFA.RecoveryCodes,
			ChallengeTTL:        5 * time.Minute,
		},
		Passkey: svc.PasskeyPolicy{
			CeremonyTTL:     config.MustDuration(cfg.Passkey.CeremonyTTL),
			AllowDuplicates: cfg.Passkey.AllowDuplicates,
		},
		MagicLink: svc.MagicLinkPolicy{
			TTL:       config.MustDuration(cfg.MagicLink.TTL),
			SingleUse: *cfg.MagicLink.SingleUse,
			AppName:   cfg.Passkey.RPDisplayName,
		},
	})

	a.Handler = router.New(router.Deps{
		Services: services,
		Health: map[string]health.Pinger{
			"db":    r.pinger,
			"cache": pingerFunc(cacheClient.Ping),
		},
		MetricsHandler: metricsHandler,
		RouteLimiter:   routeLim,
		StepUpTTL:      stepUpTTL,
	})

	log.Info("application wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
	)
	return a, nil
}

func (a *App) buildRepos(ctx context.Context, cfg *config.Config) (repos, error) {
	switch cfg.Storage.Driver {
	case "memory":
		s := memory.New()
		return repos{
			accounts: s.Accounts(),
			passkeys: s.Passkeys(),
			mfa:      s.MFA(),
			sessions: s.Sessions(),
			pinger:   s,
		}, nil
	case "postgres", "":
		s, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{
			MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Storage.Postgres.MaxIdleConns,
		})
		if err != nil {
			return repos{}, fmt.Errorf("connect postgres: %w", err)
		}
		a.PG = s
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		return repos{
			accounts: s.Accounts(),
			passkeys: s.Passkeys(),
			mfa:      s.MFA(),
			sessions: s.Sessions(),
			pinger:   s,
		}, nil
	default:
		return repos{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *App) buildLimiter(cfg *config.Config, prefix string, max int, window string) rate.Limiter {
	w := config.MustDuration(window)
	if cfg.Cache.Kind == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return rate.NewRedisLimiter(client, prefix, max, w)
	}
	return rate.NewMemoryLimiter(max, w)
}

// Migrate aplica las migraciones embebidas. Sólo con driver postgres.
func (a *App) Migrate(ctx context.Context) ([]int, error) {
	if a.PG == nil {
		return nil, errors.New("migrations require the postgres driver")
	}
	return a.PG.Migrate(ctx, postgres.FS)
}

// Run sirve HTTP hasta que el contexto se cancele; después apaga con gracia.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info("http server listening",
			logger.Component("app"), logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close libera recursos en orden inverso al cableado.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	_ = logger.Sync()
	return first
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
