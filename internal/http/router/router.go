// Package router arma el árbol de rutas HTTP.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/janus-id/janus/internal/http/controllers/auth"
	"github.com/janus-id/janus/internal/http/controllers/health"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/middlewares"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/rate"
)

// Deps son las dependencias del router.
type Deps struct {
	Services *svc.Services

	// Health checks por dependencia ("db", "cache").
	Health map[string]health.Pinger

	// MetricsHandler sirve GET /metrics. Nil deshabilita el endpoint.
	MetricsHandler http.Handler

	// RouteLimiter capea por IP las rutas guest sensibles. Nil desactiva.
	RouteLimiter rate.Limiter

	// StepUpTTL es la ventana del gate de confirmación de password.
	StepUpTTL time.Duration

	// Now inyectable para tests.
	Now func() time.Time
}

// New construye el router con sus middlewares.
func New(deps Deps) http.Handler {
	s := deps.Services

	login := authctrl.NewLoginController(s.Login, s.MFA, s.Sessions)
	magic := authctrl.NewMagicLinkController(s.MagicLink, s.MFA, s.Sessions)
	mfa := authctrl.NewMFAController(s.MFA, s.Sessions)
	passkeys := authctrl.NewPasskeyController(s.Passkeys, s.MFA, s.Sessions)
	sessions := authctrl.NewSessionController(s.Sessions)
	stepup := authctrl.NewStepUpController(s.StepUp)
	hc := health.NewController(deps.Health)

	base := []middlewares.Middleware{
		middlewares.WithRecover(),
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithMetrics(),
		middlewares.WithSecurityHeaders(),
	}

	guestRate := func(scope string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			if deps.RouteLimiter == nil {
				return next
			}
			return middlewares.WithRateLimit(middlewares.RateLimitConfig{
				Limiter: deps.RouteLimiter,
				KeyFunc: middlewares.IPRateKey,
				Scope:   scope,
			})(next)
		}
	}

	authRequired := func(next http.Handler) http.Handler {
		return middlewares.WithSessionAuth(s.Sessions)(next)
	}
	passwordConfirmed := func(next http.Handler) http.Handler {
		return middlewares.WithPasswordConfirmed(deps.StepUpTTL, deps.Now)(next)
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Ops
	r.Get("/healthz", hc.Healthz)
	r.Get("/readyz", hc.Readyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Guest
	r.Group(func(g chi.Router) {
		g.With(guestRate("register")).Post("/register", login.Register)
		g.With(guestRate("login")).Post("/login", login.Login)
		g.With(guestRate("mfa_challenge")).Post("/two-factor-challenge", mfa.Challenge)
		g.With(guestRate("magic_link_send")).Post("/magic-link/send", magic.Send)
		g.Get("/magic-link/login/{account}", magic.Login)
		g.Post("/webauthn/login/options", passkeys.LoginOptions)
		g.With(guestRate("webauthn_login")).Post("/webauthn/login", passkeys.Login)
	})

	// Authenticated
	r.Group(func(g chi.Router) {
		g.Use(authRequired)

		g.Post("/logout", sessions.Logout)
		g.Get("/user/me", login.Me)
		g.Put("/user/password", login.UpdatePassword)
		g.Put("/user/profile-information", login.UpdateProfile)

		g.Get("/user/browser-sessions", sessions.List)

		g.Get("/user/passkeys", passkeys.List)
		g.Post("/user/passkeys", passkeys.Register)
		g.Post("/user/passkeys/options", passkeys.RegisterOptions)
		g.Patch("/user/passkeys/{id}", passkeys.Rename)
		g.Delete("/user/passkeys/{id}", passkeys.Delete)

		g.Get("/user/two-factor-authentication", mfa.Status)
		g.Post("/user/two-factor-authentication", mfa.Enable)
		g.Post("/user/confirmed-two-factor-authentication", mfa.Confirm)
		g.With(middlewares.WithNoStore()).Get("/user/two-factor-qr-code", mfa.QRCode)
		g.With(middlewares.WithNoStore()).Get("/user/two-factor-secret-key", mfa.SecretKey)
		g.Get("/user/two-factor-recovery-codes", mfa.RecoveryCodes)

		g.Post("/user/confirm-password", stepup.Confirm)
		g.Get("/user/confirmed-password-status", stepup.Status)

		// Step-up gated: exigen confirmación de password reciente.
		g.Group(func(p chi.Router) {
			p.Use(passwordConfirmed)
			p.Delete("/user/two-factor-authentication", mfa.Disable)
			p.With(middlewares.WithNoStore()).Post("/user/two-factor-recovery-codes", mfa.RegenerateRecoveryCodes)
			p.Delete("/user/other-browser-sessions", sessions.LogoutOthers)
		})
	})

	return middlewares.Chain(r, base...)
}
