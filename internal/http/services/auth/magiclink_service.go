package auth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/email"
	"github.com/janus-id/janus/internal/magiclink"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	tokens "github.com/janus-id/janus/internal/security/token"
)

const magicLinkUsedPrefix = "ml:used:"

// humanizeDuration formatea una duración para texto de email.
func humanizeDuration(d time.Duration) string {
	if d < time.Hour {
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	h := int(d.Hours())
	if h == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}

// MagicLinkService emite y consume enlaces de login firmados.
type MagicLinkService interface {
	// Request envía un enlace de login al email indicado. Para emails sin
	// cuenta devuelve nil igual: la respuesta no revela existencia. Sólo el
	// rate limit por email se reporta (ErrRateLimited).
	Request(ctx context.Context, emailAddr string) error

	// Consume valida el enlace y devuelve la cuenta lista para sesión.
	// Falla con los errores del paquete magiclink. Como efecto secundario
	// marca el email como verificado: llegar acá prueba acceso al buzón.
	Consume(ctx context.Context, accountID string, q url.Values) (*repository.Account, error)
}

type magicLinkService struct {
	deps Deps
}

// NewMagicLinkService construye el servicio de magic links.
func NewMagicLinkService(deps Deps) MagicLinkService {
	return &magicLinkService{deps: deps}
}

func (s *magicLinkService) Request(ctx context.Context, emailAddr string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("magiclink"), logger.Op("request"))

	emailAddr = normalizeEmail(emailAddr)
	emailField := logger.EmailHash(tokens.SHA256Hex(emailAddr))

	if s.deps.MagicLinkLimiter != nil {
		if !allowed(s.deps.MagicLinkLimiter.Allow(ctx, "magic-link:"+emailAddr)) {
			metrics.RateLimitedTotal.WithLabelValues("magic_link").Inc()
			return ErrRateLimited
		}
	}

	acc, err := s.deps.Accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if repository.IsNotFound(err) {
			// Misma respuesta que el caso feliz: no confirmamos si el
			// email tiene cuenta.
			log.Info("magic link requested for unknown email", emailField)
			return nil
		}
		return err
	}

	link := s.deps.Signer.Sign(acc.ID, acc.Email)
	htmlBody, textBody, err := email.RenderMagicLink(email.MagicLinkVars{
		AppName: s.deps.MagicLink.AppName,
		Link:    link,
		TTL:     humanizeDuration(s.deps.MagicLink.TTL),
	})
	if err != nil {
		return fmt.Errorf("render magic link email: %w", err)
	}

	// El envío no bloquea la respuesta: una falla de SMTP se loguea y el
	// usuario reintenta. No filtramos el error hacia afuera.
	if err := s.deps.Email.Send(ctx, acc.Email, email.MagicLinkSubject(s.deps.MagicLink.AppName), htmlBody, textBody); err != nil {
		log.Error("failed to send magic link email", emailField, logger.Err(err))
		return nil
	}

	metrics.MagicLinksIssuedTotal.Inc()
	log.Info("magic link issued", logger.AccountID(acc.ID), emailField)
	return nil
}

func (s *magicLinkService) Consume(ctx context.Context, accountID string, q url.Values) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("magiclink"), logger.Op("consume"))

	acc, err := s.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			// Indistinguible de una firma rota: el id viene del enlace.
			return nil, magiclink.ErrLinkSignature
		}
		return nil, err
	}

	if err := s.deps.Signer.Verify(acc.ID, acc.Email, q); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("magic_link", "failed").Inc()
		log.Info("magic link rejected", logger.AccountID(acc.ID), logger.Err(err))
		return nil, err
	}

	if s.deps.MagicLink.SingleUse {
		key := magicLinkUsedPrefix + magiclink.Fingerprint(q)
		used, err := s.deps.Cache.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if used {
			metrics.LoginAttemptsTotal.WithLabelValues("magic_link", "failed").Inc()
			return nil, magiclink.ErrLinkUsed
		}
		// TTL igual al del enlace: pasado el expires la firma ya no vale
		// y el registro de consumo sobra.
		if err := s.deps.Cache.Set(ctx, key, "1", s.deps.MagicLink.TTL); err != nil {
			return nil, err
		}
	}

	if acc.EmailVerifiedAt == nil {
		now := s.deps.now()
		if err := s.deps.Accounts.SetEmailVerified(ctx, acc.ID, now); err != nil {
			log.Warn("failed to mark email verified", logger.Err(err))
		} else {
			acc.EmailVerifiedAt = &now
		}
	}

	metrics.LoginAttemptsTotal.WithLabelValues("magic_link", "ok").Inc()
	log.Info("magic link consumed", logger.AccountID(acc.ID))
	return acc, nil
}
