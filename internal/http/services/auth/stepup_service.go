package auth

import (
	"context"

	"github.com/janus-id/janus/internal/domain/repository"
	dto "github.com/janus-id/janus/internal/http/dto/auth"
	"github.com/janus-id/janus/internal/observability/logger"
	"github.com/janus-id/janus/internal/security/password"
)

// StepUpService implementa el gate de confirmación reciente de password.
// Las operaciones sensibles (deshabilitar 2FA, rotar recovery codes, cerrar
// otras sesiones) exigen una confirmación dentro de la ventana.
type StepUpService interface {
	// Confirm verifica el password y estampa la sesión actual.
	Confirm(ctx context.Context, acc *repository.Account, sess *repository.Session, plain string) error

	// Status indica si la confirmación sigue vigente para la sesión.
	Status(sess *repository.Session) dto.PasswordConfirmationStatus

	// Fresh es el predicado que usa el middleware del gate.
	Fresh(sess *repository.Session) bool
}

type stepUpService struct {
	deps Deps
}

// NewStepUpService construye el gate de step-up.
func NewStepUpService(deps Deps) StepUpService {
	return &stepUpService{deps: deps}
}

func (s *stepUpService) Confirm(ctx context.Context, acc *repository.Account, sess *repository.Session, plain string) error {
	if !acc.HasPassword() {
		// Cuentas passwordless no pueden pasar el gate con password.
		return ErrNoPassword
	}
	if !password.Verify(plain, *acc.PasswordHash) {
		return ErrInvalidCredentials
	}

	now := s.deps.now()
	if err := s.deps.Sessions.SetPasswordConfirmedAt(ctx, sess.SessionIDHash, now); err != nil {
		return err
	}
	sess.PasswordConfirmedAt = &now

	logger.From(ctx).Info("password confirmed",
		logger.Layer("service"), logger.Component("stepup"),
		logger.AccountID(acc.ID), logger.SessionID(sess.SessionIDHash),
	)
	return nil
}

func (s *stepUpService) Status(sess *repository.Session) dto.PasswordConfirmationStatus {
	return dto.PasswordConfirmationStatus{
		Confirmed:   s.Fresh(sess),
		ConfirmedAt: sess.PasswordConfirmedAt,
	}
}

func (s *stepUpService) Fresh(sess *repository.Session) bool {
	if sess == nil || sess.PasswordConfirmedAt == nil {
		return false
	}
	return s.deps.now().Sub(*sess.PasswordConfirmedAt) <= s.deps.Session.StepUpTTL
}
