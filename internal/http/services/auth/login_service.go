package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	"github.com/janus-id/janus/internal/security/password"
	tokens "github.com/janus-id/janus/internal/security/token"
)

const minPasswordLength = 8

// LoginService cubre registro y login con password.
type LoginService interface {
	// Register crea una cuenta con password. Email duplicado → ErrEmailTaken.
	Register(ctx context.Context, name, email, plain string) (*repository.Account, error)

	// PasswordLogin verifica credenciales. Cualquier falla (cuenta
	// inexistente, sin password, password incorrecto) devuelve el mismo
	// ErrInvalidCredentials. mfaRequired=true significa que el caller debe
	// emitir un challenge 2FA en vez de abrir sesión.
	PasswordLogin(ctx context.Context, email, plain string) (acc *repository.Account, mfaRequired bool, err error)

	// UpdatePassword cambia el password verificando el actual. El caller
	// revoca las demás sesiones después.
	UpdatePassword(ctx context.Context, acc *repository.Account, current, next string) error

	// UpdateProfile cambia nombre y email. Un email nuevo queda sin
	// verificar y deja sin efecto los magic links ya emitidos, que van
	// atados al email vigente al momento de la firma.
	UpdateProfile(ctx context.Context, acc *repository.Account, name, email string) (*repository.Account, error)
}

type loginService struct {
	deps Deps
}

// NewLoginService construye el servicio de login.
func NewLoginService(deps Deps) LoginService {
	return &loginService{deps: deps}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *loginService) Register(ctx context.Context, name, email, plain string) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("login"), logger.Op("register"))

	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidCredentials)
	}
	if len(plain) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	phc, err := password.Hash(s.deps.PasswordParams, plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc, err := s.deps.Accounts.Create(ctx, repository.CreateAccountInput{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: phc,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Info("account registered",
		logger.AccountID(acc.ID),
		logger.EmailHash(tokens.SHA256Hex(email)),
	)
	return acc, nil
}

func (s *loginService) PasswordLogin(ctx context.Context, email, plain string) (*repository.Account, bool, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("login"), logger.Op("password_login"))

	email = normalizeEmail(email)
	if s.deps.LoginLimiter != nil {
		if !allowed(s.deps.LoginLimiter.Allow(ctx, "login:"+email)) {
			metrics.RateLimitedTotal.WithLabelValues("login").Inc()
			return nil, false, ErrRateLimited
		}
	}

	acc, err := s.deps.Accounts.GetByEmail(ctx, email)
	if err != nil || !acc.HasPassword() || !password.Verify(plain, *acc.PasswordHash) {
		// Respuesta uniforme: no distinguimos cuenta inexistente de
		// password incorrecto.
		metrics.LoginAttemptsTotal.WithLabelValues("password", "failed").Inc()
		log.Info("password login failed", logger.EmailHash(tokens.SHA256Hex(email)))
		return nil, false, ErrInvalidCredentials
	}

	// Re-hash transparente si los parámetros actuales son más fuertes.
	if password.NeedsRehash(*acc.PasswordHash, s.deps.PasswordParams) {
		if phc, herr := password.Hash(s.deps.PasswordParams, plain); herr == nil {
			if uerr := s.deps.Accounts.UpdatePasswordHash(ctx, acc.ID, phc); uerr == nil {
				acc.PasswordHash = &phc
			}
		}
	}

	totp, err := s.deps.MFA.GetTOTP(ctx, acc.ID)
	if err == nil && totp.Confirmed() {
		metrics.LoginAttemptsTotal.WithLabelValues("password", "mfa_required").Inc()
		log.Info("password ok, mfa challenge required", logger.AccountID(acc.ID))
		return acc, true, nil
	}
	if err != nil && !repository.IsNotFound(err) {
		return nil, false, err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("password", "ok").Inc()
	log.Info("password login ok", logger.AccountID(acc.ID))
	return acc, false, nil
}

func (s *loginService) UpdatePassword(ctx context.Context, acc *repository.Account, current, next string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("login"), logger.Op("update_password"))

	if acc.HasPassword() {
		if !password.Verify(current, *acc.PasswordHash) {
			return ErrInvalidCredentials
		}
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	phc, err := password.Hash(s.deps.PasswordParams, next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.deps.Accounts.UpdatePasswordHash(ctx, acc.ID, phc); err != nil {
		return err
	}
	acc.PasswordHash = &phc

	log.Info("password updated", logger.AccountID(acc.ID))
	return nil
}

func (s *loginService) UpdateProfile(ctx context.Context, acc *repository.Account, name, email string) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("login"), logger.Op("update_profile"))

	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = acc.Name
	}

	updated, err := s.deps.Accounts.UpdateProfile(ctx, acc.ID, name, email)
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Info("profile updated",
		logger.AccountID(acc.ID),
		logger.EmailHash(tokens.SHA256Hex(email)),
	)
	return updated, nil
}
