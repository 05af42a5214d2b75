package middlewares

import (
	"net/http"
	"time"

	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	"github.com/janus-id/janus/internal/observability/logger"
)

// Authenticator resuelve la cuenta y la sesión del request. La implementación
// vive en services/auth: valida la cookie de sesión y, si no hay sesión viva,
// intenta resucitarla desde la cookie "recordarme" (puede setear cookies en w).
type Authenticator interface {
	Authenticate(w http.ResponseWriter, r *http.Request) (*repository.Account, *repository.Session, error)
}

// WithSessionAuth exige una sesión válida. Inyecta cuenta y sesión en el
// contexto; sin sesión responde 401.
func WithSessionAuth(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, session, err := a.Authenticate(w, r)
			if err != nil {
				// Cualquier falla de resolución es un 401: no filtramos
				// si la cookie era inválida, vencida o inexistente.
				errors.WriteError(w, errors.ErrSessionExpired)
				return
			}

			ctx := helpers.WithAuth(r.Context(), account, session)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.AccountID(account.ID),
				logger.SessionID(session.SessionIDHash),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPasswordConfirmed exige que la sesión haya confirmado password dentro
// de la ventana dada. Va SIEMPRE después de WithSessionAuth.
func WithPasswordConfirmed(window time.Duration, now func() time.Time) Middleware {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := helpers.CurrentSession(r.Context())
			if session == nil {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if session.PasswordConfirmedAt == nil ||
				now().Sub(*session.PasswordConfirmedAt) > window {
				errors.WriteError(w, errors.ErrPasswordConfirmationRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
