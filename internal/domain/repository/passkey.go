package repository

import (
	"context"
	"time"
)

// PasskeyCredential representa una credencial WebAuthn registrada.
type PasskeyCredential struct {
	ID        string
	AccountID string
	// Alias es el nombre que el usuario le puso ("MacBook", "YubiKey 5").
	Alias string

	// CredentialID es el ID binario que reporta el autenticador,
	// guardado en base64url sin padding.
	CredentialID    string
	PublicKey       []byte
	AttestationType string
	Transports      []string
	SignCount       uint32
	BackupEligible  bool
	BackupState     bool

	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// CreatePasskeyInput contiene los datos para registrar una credencial.
type CreatePasskeyInput struct {
	AccountID       string
	Alias           string
	CredentialID    string
	PublicKey       []byte
	AttestationType string
	Transports      []string
	SignCount       uint32
	BackupEligible  bool
	BackupState     bool
}

// PasskeyRepository define operaciones sobre credenciales WebAuthn.
type PasskeyRepository interface {
	// Create registra una credencial nueva.
	// Retorna ErrConflict si el CredentialID ya existe.
	Create(ctx context.Context, input CreatePasskeyInput) (*PasskeyCredential, error)

	// GetByCredentialID busca por el ID binario del autenticador (base64url).
	// Retorna ErrNotFound si no existe.
	GetByCredentialID(ctx context.Context, credentialID string) (*PasskeyCredential, error)

	// GetByID busca por el ID de fila, acotado a la cuenta dueña.
	// Retorna ErrNotFound si no existe o pertenece a otra cuenta.
	GetByID(ctx context.Context, accountID, id string) (*PasskeyCredential, error)

	// ListByAccount lista las credenciales de una cuenta, más reciente primero.
	ListByAccount(ctx context.Context, accountID string) ([]PasskeyCredential, error)

	// CountByAccount cuenta las credenciales de una cuenta.
	CountByAccount(ctx context.Context, accountID string) (int, error)

	// UpdateAlias renombra una credencial de la cuenta.
	UpdateAlias(ctx context.Context, accountID, id, alias string) error

	// UpdateAfterLogin actualiza sign count, backup state y last_used_at
	// después de una aserción exitosa.
	UpdateAfterLogin(ctx context.Context, credentialID string, signCount uint32, backupState bool, usedAt time.Time) error

	// Delete elimina una credencial de la cuenta.
	// Retorna ErrNotFound si no existe o pertenece a otra cuenta.
	Delete(ctx context.Context, accountID, id string) error
}
