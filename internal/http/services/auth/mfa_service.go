package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/janus-id/janus/internal/cache"
	"github.com/janus-id/janus/internal/domain/repository"
	dto "github.com/janus-id/janus/internal/http/dto/auth"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	"github.com/janus-id/janus/internal/security/secretbox"
	tokens "github.com/janus-id/janus/internal/security/token"
	"github.com/janus-id/janus/internal/security/totp"
)

const (
	mfaTokenPrefix   = "mfa:token:"
	mfaTokenBytes    = 32
	recoveryCodeLen  = 10
	challengeRateKey = "mfa-challenge:"
)

// MFAService maneja TOTP 2FA: inscripción, confirmación, challenges y
// recovery codes.
type MFAService interface {
	// Status describe el estado 2FA de la cuenta.
	Status(ctx context.Context, accountID string) (dto.MFAStatus, error)

	// Enroll genera un secreto nuevo en estado pending_confirmation.
	// Re-inscribir antes de confirmar rota el secreto. Con la política
	// RequireConfirmation=false la cuenta queda habilitada al toque y
	// recoveryCodes viene poblado.
	Enroll(ctx context.Context, acc *repository.Account) (result *dto.MFAEnrollResult, recoveryCodes []string, err error)

	// Confirm valida un código contra el secreto pendiente y habilita 2FA.
	// Devuelve los recovery codes en claro, única vez que se muestran.
	Confirm(ctx context.Context, acc *repository.Account, code string) ([]string, error)

	// Disable elimina el TOTP y todos los recovery codes.
	Disable(ctx context.Context, accountID string) error

	// SecretKey expone el secreto pendiente o activo para QR / setup key.
	SecretKey(ctx context.Context, acc *repository.Account) (secretB32, otpauthURL string, err error)

	// RotateRecovery invalida el juego anterior y genera uno nuevo.
	RotateRecovery(ctx context.Context, accountID string) ([]string, error)

	// RecoveryCodesRemaining cuenta los códigos sin usar.
	RecoveryCodesRemaining(ctx context.Context, accountID string) (int, error)

	// IssueChallengeToken emite el token opaco que representa un login con
	// password OK pendiente de 2FA.
	IssueChallengeToken(ctx context.Context, accountID string, remember bool) (string, error)

	// Challenge resuelve un token con un código TOTP o un recovery code
	// (excluyentes). En éxito consume el token y devuelve la cuenta.
	Challenge(ctx context.Context, token, code, recoveryCode string) (acc *repository.Account, remember bool, err error)
}

type mfaService struct {
	deps Deps
}

// NewMFAService construye el servicio 2FA.
func NewMFAService(deps Deps) MFAService {
	return &mfaService{deps: deps}
}

func (s *mfaService) Status(ctx context.Context, accountID string) (dto.MFAStatus, error) {
	row, err := s.deps.MFA.GetTOTP(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.MFAStatus{}, nil
		}
		return dto.MFAStatus{}, err
	}
	remaining, err := s.deps.MFA.CountRecoveryCodes(ctx, accountID)
	if err != nil {
		return dto.MFAStatus{}, err
	}
	return dto.MFAStatus{
		Enabled:                row.Confirmed(),
		Confirmed:              row.Confirmed(),
		RecoveryCodesRemaining: remaining,
	}, nil
}

func (s *mfaService) Enroll(ctx context.Context, acc *repository.Account) (*dto.MFAEnrollResult, []string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("mfa"), logger.Op("enroll"))

	if existing, err := s.deps.MFA.GetTOTP(ctx, acc.ID); err == nil && existing.Confirmed() {
		return nil, nil, ErrMFAAlreadyEnabled
	} else if err != nil && !repository.IsNotFound(err) {
		return nil, nil, err
	}

	_, b32, err := totp.GenerateSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("generate totp secret: %w", err)
	}
	enc, err := secretbox.Encrypt(b32)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt totp secret: %w", err)
	}
	if err := s.deps.MFA.UpsertTOTP(ctx, acc.ID, enc); err != nil {
		return nil, nil, err
	}

	result := &dto.MFAEnrollResult{
		SecretBase32: b32,
		OTPAuthURL:   totp.OTPAuthURL(s.deps.MFAPolicy.Issuer, acc.Email, b32),
	}

	if !s.deps.MFAPolicy.RequireConfirmation {
		if err := s.deps.MFA.ConfirmTOTP(ctx, acc.ID, s.deps.now()); err != nil {
			return nil, nil, err
		}
		codes, err := s.issueRecoveryCodes(ctx, acc.ID)
		if err != nil {
			return nil, nil, err
		}
		log.Info("totp enabled without confirmation round-trip", logger.AccountID(acc.ID))
		return result, codes, nil
	}

	log.Info("totp enrollment pending confirmation", logger.AccountID(acc.ID))
	return result, nil, nil
}

func (s *mfaService) Confirm(ctx context.Context, acc *repository.Account, code string) ([]string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("mfa"), logger.Op("confirm"))

	row, err := s.deps.MFA.GetTOTP(ctx, acc.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrMFANotEnrolled
		}
		return nil, err
	}
	if row.Confirmed() {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := s.decryptSecret(row.SecretEncrypted)
	if err != nil {
		return nil, err
	}
	ok, counter := totp.Verify(secret, code, s.deps.now(), s.deps.MFAPolicy.Window, nil)
	if !ok {
		return nil, ErrMFACodeInvalid
	}

	now := s.deps.now()
	if err := s.deps.MFA.ConfirmTOTP(ctx, acc.ID, now); err != nil {
		return nil, err
	}
	if err := s.deps.MFA.SetTOTPCounter(ctx, acc.ID, uint64(counter)); err != nil {
		return nil, err
	}
	codes, err := s.issueRecoveryCodes(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	log.Info("totp confirmed", logger.AccountID(acc.ID))
	return codes, nil
}

func (s *mfaService) Disable(ctx context.Context, accountID string) error {
	if err := s.deps.MFA.DisableTOTP(ctx, accountID); err != nil && !repository.IsNotFound(err) {
		return err
	}
	logger.From(ctx).Info("totp disabled",
		logger.Component("mfa"), logger.Op("disable"),
		logger.AccountID(accountID),
	)
	return nil
}

func (s *mfaService) SecretKey(ctx context.Context, acc *repository.Account) (string, string, error) {
	row, err := s.deps.MFA.GetTOTP(ctx, acc.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", "", ErrMFANotEnrolled
		}
		return "", "", err
	}
	b32, err := secretbox.Decrypt(row.SecretEncrypted)
	if err != nil {
		return "", "", fmt.Errorf("decrypt totp secret: %w", err)
	}
	return b32, totp.OTPAuthURL(s.deps.MFAPolicy.Issuer, acc.Email, b32), nil
}

func (s *mfaService) RotateRecovery(ctx context.Context, accountID string) ([]string, error) {
	row, err := s.deps.MFA.GetTOTP(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrMFANotEnrolled
		}
		return nil, err
	}
	if !row.Confirmed() {
		return nil, ErrMFANotEnrolled
	}
	return s.issueRecoveryCodes(ctx, accountID)
}

func (s *mfaService) RecoveryCodesRemaining(ctx context.Context, accountID string) (int, error) {
	return s.deps.MFA.CountRecoveryCodes(ctx, accountID)
}

// mfaChallenge es el payload cacheado detrás de un mfa_token.
type mfaChallenge struct {
	AccountID string `json:"account_id"`
	Remember  bool   `json:"remember"`
}

func (s *mfaService) IssueChallengeToken(ctx context.Context, accountID string, remember bool) (string, error) {
	tok, err := tokens.GenerateOpaqueToken(mfaTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate mfa token: %w", err)
	}
	payload, err := json.Marshal(mfaChallenge{AccountID: accountID, Remember: remember})
	if err != nil {
		return "", err
	}
	if err := s.deps.Cache.Set(ctx, mfaTokenPrefix+tok, string(payload), s.deps.MFAPolicy.ChallengeTTL); err != nil {
		return "", fmt.Errorf("cache mfa challenge: %w", err)
	}
	return tok, nil
}

func (s *mfaService) Challenge(ctx context.Context, token, code, recoveryCode string) (*repository.Account, bool, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("mfa"), logger.Op("challenge"))

	raw, err := s.deps.Cache.Get(ctx, mfaTokenPrefix+token)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, false, ErrMFATokenInvalid
		}
		return nil, false, err
	}
	var ch mfaChallenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return nil, false, ErrMFATokenInvalid
	}

	if s.deps.ChallengeLimiter != nil {
		if !allowed(s.deps.ChallengeLimiter.Allow(ctx, challengeRateKey+ch.AccountID)) {
			metrics.RateLimitedTotal.WithLabelValues("mfa_challenge").Inc()
			return nil, false, ErrRateLimited
		}
	}

	acc, err := s.deps.Accounts.GetByID(ctx, ch.AccountID)
	if err != nil {
		return nil, false, ErrMFATokenInvalid
	}

	switch {
	case code != "":
		if err := s.verifyTOTPCode(ctx, acc.ID, code); err != nil {
			metrics.MFAChallengesTotal.WithLabelValues("totp", "failed").Inc()
			log.Info("totp challenge failed", logger.AccountID(acc.ID))
			return nil, false, err
		}
		metrics.MFAChallengesTotal.WithLabelValues("totp", "ok").Inc()
	case recoveryCode != "":
		used, err := s.deps.MFA.UseRecoveryCode(ctx, acc.ID, tokens.SHA256Base64URL(recoveryCode))
		if err != nil {
			return nil, false, err
		}
		if !used {
			metrics.MFAChallengesTotal.WithLabelValues("recovery_code", "failed").Inc()
			log.Info("recovery code challenge failed", logger.AccountID(acc.ID))
			return nil, false, ErrRecoveryCodeInvalid
		}
		metrics.MFAChallengesTotal.WithLabelValues("recovery_code", "ok").Inc()
	default:
		return nil, false, ErrMFACodeInvalid
	}

	// Token consumido recién en éxito: los intentos fallidos gastan el
	// limiter, no el token.
	if err := s.deps.Cache.Delete(ctx, mfaTokenPrefix+token); err != nil {
		log.Warn("failed to consume mfa token", logger.Err(err))
	}

	log.Info("mfa challenge ok", logger.AccountID(acc.ID))
	return acc, ch.Remember, nil
}

func (s *mfaService) verifyTOTPCode(ctx context.Context, accountID, code string) error {
	row, err := s.deps.MFA.GetTOTP(ctx, accountID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrMFANotEnrolled
		}
		return err
	}
	if !row.Confirmed() {
		return ErrMFANotEnrolled
	}
	secret, err := s.decryptSecret(row.SecretEncrypted)
	if err != nil {
		return err
	}

	var last *int64
	if row.LastCounterUsed != nil {
		v := int64(*row.LastCounterUsed)
		last = &v
	}
	ok, counter := totp.Verify(secret, code, s.deps.now(), s.deps.MFAPolicy.Window, last)
	if !ok {
		return ErrMFACodeInvalid
	}
	return s.deps.MFA.SetTOTPCounter(ctx, accountID, uint64(counter))
}

func (s *mfaService) decryptSecret(enc string) ([]byte, error) {
	b32, err := secretbox.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("decrypt totp secret: %w", err)
	}
	raw, err := totp.DecodeSecret(b32)
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}
	return raw, nil
}

// issueRecoveryCodes reemplaza el juego completo. En DB quedan sólo hashes.
func (s *mfaService) issueRecoveryCodes(ctx context.Context, accountID string) ([]string, error) {
	n := s.deps.MFAPolicy.RecoveryCodes
	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, err := tokens.GenerateCode(recoveryCodeLen)
		if err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		c = c[:recoveryCodeLen/2] + "-" + c[recoveryCodeLen/2:]
		codes = append(codes, c)
		hashes = append(hashes, tokens.SHA256Base64URL(c))
	}
	if err := s.deps.MFA.SetRecoveryCodes(ctx, accountID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}
