package repository

import (
	"context"
	"time"
)

// MFATOTP representa la configuración TOTP de una cuenta.
type MFATOTP struct {
	AccountID       string
	SecretEncrypted string
	// ConfirmedAt es nil mientras el usuario no haya verificado un código:
	// un TOTP sin confirmar no participa del login.
	ConfirmedAt *time.Time
	// LastCounterUsed guarda el último contador TOTP aceptado (anti-replay).
	LastCounterUsed *uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Confirmed indica si el enrolamiento fue verificado.
func (m *MFATOTP) Confirmed() bool { return m.ConfirmedAt != nil }

// MFARepository define operaciones sobre MFA (TOTP y recovery codes).
type MFARepository interface {
	// ─── TOTP ───

	// UpsertTOTP crea o reemplaza el secreto TOTP de una cuenta.
	// Un re-enrolamiento pisa el secreto anterior y limpia la confirmación.
	UpsertTOTP(ctx context.Context, accountID, secretEnc string) error

	// ConfirmTOTP marca el TOTP como confirmado.
	// Retorna ErrNotFound si no hay enrolamiento pendiente.
	ConfirmTOTP(ctx context.Context, accountID string, at time.Time) error

	// GetTOTP obtiene la configuración TOTP de una cuenta.
	// Retorna ErrNotFound si no existe.
	GetTOTP(ctx context.Context, accountID string) (*MFATOTP, error)

	// SetTOTPCounter actualiza el último contador aceptado.
	SetTOTPCounter(ctx context.Context, accountID string, counter uint64) error

	// DisableTOTP elimina el TOTP y los recovery codes de la cuenta.
	DisableTOTP(ctx context.Context, accountID string) error

	// ─── Recovery codes ───

	// SetRecoveryCodes reemplaza los recovery codes de una cuenta.
	// Los codes llegan ya hasheados.
	SetRecoveryCodes(ctx context.Context, accountID string, hashes []string) error

	// CountRecoveryCodes cuenta los codes sin usar de una cuenta.
	CountRecoveryCodes(ctx context.Context, accountID string) (int, error)

	// UseRecoveryCode consume un recovery code (un solo uso).
	// Retorna true si el code existía sin usar y fue consumido.
	UseRecoveryCode(ctx context.Context, accountID, hash string) (bool, error)
}
