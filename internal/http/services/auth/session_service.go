package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/janus-id/janus/internal/agent"
	"github.com/janus-id/janus/internal/domain/repository"
	dto "github.com/janus-id/janus/internal/http/dto/auth"
	"github.com/janus-id/janus/internal/http/helpers"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	"github.com/janus-id/janus/internal/security/password"
	tokens "github.com/janus-id/janus/internal/security/token"
)

const sessionIDBytes = 32

// SessionService emite y revoca sesiones de navegador. También implementa
// middlewares.Authenticator: la resolución de cookies vive acá y no en el
// middleware para que la resurrección remember-me pueda escribir cookies.
type SessionService interface {
	// Establish crea una sesión nueva para la cuenta y setea cookies.
	// Si el request trae una sesión previa válida, la revoca primero
	// (regeneración de session id en transiciones privilegiadas).
	// passwordConfirmed arranca el reloj del step-up gate cuando el login
	// ya probó el password.
	Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, acc *repository.Account, remember, passwordConfirmed bool) (*repository.Session, error)

	// Authenticate resuelve la sesión del request. Sin cookie de sesión
	// intenta resucitar desde el cookie remember-me (sid nuevo).
	Authenticate(w http.ResponseWriter, r *http.Request) (*repository.Account, *repository.Session, error)

	// List devuelve las sesiones vivas de la cuenta, marcando la actual.
	List(ctx context.Context, accountID, currentIDHash string) ([]dto.SessionSummary, error)

	// Logout revoca la sesión actual y limpia cookies.
	Logout(ctx context.Context, w http.ResponseWriter, sess *repository.Session) error

	// LogoutOthers revoca todas las sesiones salvo la actual. Requiere el
	// password en claro (comportamiento Jetstream) además del step-up gate.
	LogoutOthers(ctx context.Context, acc *repository.Account, currentIDHash, plainPassword string) (int, error)

	// RevokeOthers revoca las demás sesiones sin pedir password (cambio de
	// password ya verificado por el caller).
	RevokeOthers(ctx context.Context, accountID, currentIDHash string) (int, error)
}

type sessionService struct {
	deps Deps
}

// NewSessionService construye el servicio de sesiones.
func NewSessionService(deps Deps) SessionService {
	return &sessionService{deps: deps}
}

func (s *sessionService) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, acc *repository.Account, remember, passwordConfirmed bool) (*repository.Session, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("sessions"), logger.Op("establish"))

	// Regeneración: si ya había una sesión válida en el request, muere acá.
	if prev := s.sessionFromCookie(ctx, r); prev != nil {
		if err := s.deps.Sessions.Delete(ctx, prev.SessionIDHash); err != nil && !repository.IsNotFound(err) {
			log.Warn("failed to revoke previous session", logger.Err(err))
		}
	}

	sid, err := tokens.GenerateOpaqueToken(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	idHash := tokens.SHA256Base64URL(sid)

	ua := r.UserAgent()
	info := agent.Sniff(ua)
	deviceType := "mobile"
	switch {
	case info.IsDesktop:
		deviceType = "desktop"
	case info.Platform == "Unknown":
		deviceType = "unknown"
	}

	now := s.deps.now()
	ttl := s.deps.Session.TTL
	if remember {
		ttl = s.deps.Session.RememberTTL
	}

	var confirmedAt *time.Time
	if passwordConfirmed {
		confirmedAt = &now
	}
	sess, err := s.deps.Sessions.Create(ctx, repository.CreateSessionInput{
		AccountID:           acc.ID,
		SessionIDHash:       idHash,
		IPAddress:           helpers.ClientIP(r),
		UserAgent:           ua,
		DeviceType:          deviceType,
		Browser:             info.Browser,
		Platform:            info.Platform,
		Remember:            remember,
		PasswordConfirmedAt: confirmedAt,
		ExpiresAt:           now.Add(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.setSessionCookie(w, sid, ttl)
	if remember {
		if err := s.setRememberCookie(w, acc.ID, idHash); err != nil {
			// El login sigue valiendo; sólo se pierde la persistencia larga.
			log.Warn("failed to issue remember cookie", logger.Err(err))
		}
	}

	log.Info("session established",
		logger.AccountID(acc.ID),
		logger.SessionID(idHash),
		logger.Bool("remember", remember),
	)
	return sess, nil
}

func (s *sessionService) Authenticate(w http.ResponseWriter, r *http.Request) (*repository.Account, *repository.Session, error) {
	ctx := r.Context()

	if sess := s.sessionFromCookie(ctx, r); sess != nil {
		acc, err := s.deps.Accounts.GetByID(ctx, sess.AccountID)
		if err != nil {
			return nil, nil, ErrSessionInvalid
		}
		if err := s.deps.Sessions.TouchActivity(ctx, sess.SessionIDHash, s.deps.now()); err != nil && !repository.IsNotFound(err) {
			logger.From(ctx).Warn("failed to touch session activity", logger.Err(err))
		}
		return acc, sess, nil
	}

	// Sin sesión viva: intento de resurrección remember-me.
	acc, sess, err := s.resurrect(ctx, w, r)
	if err != nil {
		return nil, nil, ErrSessionInvalid
	}
	return acc, sess, nil
}

// sessionFromCookie resuelve la sesión del cookie principal, o nil.
func (s *sessionService) sessionFromCookie(ctx context.Context, r *http.Request) *repository.Session {
	c, err := r.Cookie(s.deps.Session.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := s.deps.Sessions.GetByIDHash(ctx, tokens.SHA256Base64URL(c.Value))
	if err != nil {
		return nil
	}
	if !sess.ExpiresAt.After(s.deps.now()) {
		return nil
	}
	return sess
}

// resurrect valida el JWT remember-me y emite una sesión fresca.
func (s *sessionService) resurrect(ctx context.Context, w http.ResponseWriter, r *http.Request) (*repository.Account, *repository.Session, error) {
	if len(s.deps.Session.RememberKey) == 0 {
		return nil, nil, ErrSessionInvalid
	}
	c, err := r.Cookie(s.rememberCookieName())
	if err != nil || c.Value == "" {
		return nil, nil, ErrSessionInvalid
	}

	claims := jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(c.Value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.deps.Session.RememberKey, nil
	}, jwt.WithTimeFunc(s.deps.now))
	if err != nil || !tok.Valid || claims.Subject == "" {
		return nil, nil, ErrSessionInvalid
	}

	acc, err := s.deps.Accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, ErrSessionInvalid
	}

	sess, err := s.Establish(ctx, w, r, acc, true, false)
	if err != nil {
		return nil, nil, err
	}
	logger.From(ctx).Info("session resurrected from remember cookie",
		logger.Component("sessions"),
		logger.AccountID(acc.ID),
		logger.SessionID(sess.SessionIDHash),
	)
	return acc, sess, nil
}

func (s *sessionService) List(ctx context.Context, accountID, currentIDHash string) ([]dto.SessionSummary, error) {
	rows, err := s.deps.Sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SessionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.SessionSummary{
			ID: row.SessionIDHash,
			Agent: dto.SessionAgent{
				IsDesktop: row.DeviceType == "desktop",
				Platform:  row.Platform,
				Browser:   row.Browser,
			},
			IPAddress:       row.IPAddress,
			IsCurrentDevice: row.SessionIDHash == currentIDHash,
			LastActive:      row.LastActivity,
		})
	}
	return out, nil
}

func (s *sessionService) Logout(ctx context.Context, w http.ResponseWriter, sess *repository.Session) error {
	if err := s.deps.Sessions.Delete(ctx, sess.SessionIDHash); err != nil && !repository.IsNotFound(err) {
		return err
	}
	s.clearCookies(w)
	metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()
	logger.From(ctx).Info("session revoked",
		logger.Component("sessions"), logger.Op("logout"),
		logger.SessionID(sess.SessionIDHash),
	)
	return nil
}

func (s *sessionService) LogoutOthers(ctx context.Context, acc *repository.Account, currentIDHash, plainPassword string) (int, error) {
	if !acc.HasPassword() {
		return 0, ErrNoPassword
	}
	if !password.Verify(plainPassword, *acc.PasswordHash) {
		return 0, ErrInvalidCredentials
	}
	n, err := s.deps.Sessions.DeleteByAccountExcept(ctx, acc.ID, currentIDHash)
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevokedTotal.WithLabelValues("logout_others").Add(float64(n))
	logger.From(ctx).Info("other sessions revoked",
		logger.Component("sessions"), logger.Op("logout_others"),
		logger.AccountID(acc.ID), logger.Count(n),
	)
	return n, nil
}

func (s *sessionService) RevokeOthers(ctx context.Context, accountID, currentIDHash string) (int, error) {
	n, err := s.deps.Sessions.DeleteByAccountExcept(ctx, accountID, currentIDHash)
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevokedTotal.WithLabelValues("password_change").Add(float64(n))
	return n, nil
}

// ---- cookies ----

func (s *sessionService) rememberCookieName() string {
	return s.deps.Session.CookieName + "_remember"
}

func (s *sessionService) sameSite() http.SameSite {
	switch s.deps.Session.SameSite {
	case "Strict", "strict":
		return http.SameSiteStrictMode
	case "None", "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (s *sessionService) setSessionCookie(w http.ResponseWriter, sid string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.deps.Session.CookieName,
		Value:    sid,
		Path:     "/",
		Domain:   s.deps.Session.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.deps.Session.Secure,
		SameSite: s.sameSite(),
	})
}

func (s *sessionService) setRememberCookie(w http.ResponseWriter, accountID, sessionIDHash string) error {
	now := s.deps.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		ID:        sessionIDHash,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.deps.Session.RememberTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.deps.Session.RememberKey)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.rememberCookieName(),
		Value:    signed,
		Path:     "/",
		Domain:   s.deps.Session.Domain,
		MaxAge:   int(s.deps.Session.RememberTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.deps.Session.Secure,
		SameSite: s.sameSite(),
	})
	return nil
}

func (s *sessionService) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{s.deps.Session.CookieName, s.rememberCookieName()} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   s.deps.Session.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.deps.Session.Secure,
			SameSite: s.sameSite(),
		})
	}
}
