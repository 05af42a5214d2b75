// Package auth implementa los servicios del ciclo de vida de credenciales:
// login con password, magic links, passkeys WebAuthn, TOTP 2FA y sesiones
// de navegador. Los controllers orquestan; acá vive la lógica.
package auth

import (
	"errors"
	"time"

	"github.com/janus-id/janus/internal/cache"
	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/email"
	"github.com/janus-id/janus/internal/magiclink"
	"github.com/janus-id/janus/internal/rate"
	"github.com/janus-id/janus/internal/security/password"
)

// Errores de negocio. Los controllers los mapean al catálogo HTTP.
var (
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrEmailTaken          = errors.New("auth: email already in use")
	ErrInvalidEmail        = errors.New("auth: invalid email address")
	ErrWeakPassword        = errors.New("auth: password too weak")
	ErrNoPassword          = errors.New("auth: account has no password")
	ErrRateLimited         = errors.New("auth: rate limited")
	ErrMFATokenInvalid     = errors.New("auth: mfa token invalid or expired")
	ErrMFACodeInvalid      = errors.New("auth: mfa code invalid")
	ErrRecoveryCodeInvalid = errors.New("auth: recovery code invalid or already used")
	ErrMFANotEnrolled      = errors.New("auth: mfa not enrolled")
	ErrMFAAlreadyEnabled   = errors.New("auth: mfa already enabled")
	ErrCeremonyNotFound    = errors.New("auth: webauthn ceremony not found or expired")
	ErrAssertionInvalid    = errors.New("auth: webauthn assertion invalid")
	ErrAttestationInvalid  = errors.New("auth: webauthn attestation invalid")
	ErrPasskeyReplay       = errors.New("auth: passkey sign counter did not advance")
	ErrPasskeyNotFound     = errors.New("auth: passkey not found")
	ErrPasskeyDuplicate    = errors.New("auth: passkey already registered")
	ErrLastCredential      = errors.New("auth: cannot remove last credential")
	ErrSessionInvalid      = errors.New("auth: session invalid or expired")
)

// SessionPolicy agrupa la configuración de cookies y TTLs de sesión.
type SessionPolicy struct {
	CookieName  string
	Domain      string
	SameSite    string // Lax | Strict | None
	Secure      bool
	TTL         time.Duration
	RememberTTL time.Duration
	RememberKey []byte
	StepUpTTL   time.Duration
}

// MFAPolicy agrupa la configuración TOTP.
type MFAPolicy struct {
	Issuer              string
	Window              int
	RequireConfirmation bool
	RecoveryCodes       int
	ChallengeTTL        time.Duration
}

// PasskeyPolicy agrupa la configuración WebAuthn.
type PasskeyPolicy struct {
	CeremonyTTL     time.Duration
	AllowDuplicates bool
}

// MagicLinkPolicy agrupa la configuración de enlaces de login.
type MagicLinkPolicy struct {
	TTL       time.Duration
	SingleUse bool
	AppName   string
}

// Deps son las dependencias compartidas de los servicios.
// Todo entra por acá: los servicios no construyen infraestructura.
type Deps struct {
	Accounts repository.AccountRepository
	Passkeys repository.PasskeyRepository
	MFA      repository.MFARepository
	Sessions repository.SessionRepository

	Cache  cache.Client
	Email  email.Sender
	Signer *magiclink.Signer

	// WebAuthn acepta *webauthn.WebAuthn; la interfaz existe para poder
	// inyectar un fake en tests. Parser opcional (nil => protocol).
	WebAuthn PasskeyProvider
	Parser   PasskeyParser

	// Limiters por propósito. Cualquiera puede ser nil (sin límite).
	LoginLimiter     rate.Limiter
	MagicLinkLimiter rate.Limiter
	ChallengeLimiter rate.Limiter

	PasswordParams password.Params
	Session        SessionPolicy
	MFAPolicy      MFAPolicy
	Passkey        PasskeyPolicy
	MagicLink      MagicLinkPolicy

	// Now es inyectable para tests. Default: time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Services agrupa los servicios ya construidos.
type Services struct {
	Login     LoginService
	MagicLink MagicLinkService
	Passkeys  PasskeyService
	MFA       MFAService
	Sessions  SessionService
	StepUp    StepUpService
}

// NewServices construye el grafo completo de servicios.
func NewServices(deps Deps) *Services {
	sessions := NewSessionService(deps)
	return &Services{
		Login:     NewLoginService(deps),
		MagicLink: NewMagicLinkService(deps),
		Passkeys:  NewPasskeyService(deps),
		MFA:       NewMFAService(deps),
		Sessions:  sessions,
		StepUp:    NewStepUpService(deps),
	}
}

// allowed consulta un limiter tolerando su ausencia y fallas de backend.
// Un limiter caído no debe tirar el login (fail-open, igual que el middleware).
func allowed(res rate.Result, err error) bool {
	if err != nil {
		return true
	}
	return res.Allowed
}
