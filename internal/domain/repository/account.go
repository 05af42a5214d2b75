package repository

import (
	"context"
	"time"
)

// Account representa una cuenta del sistema.
type Account struct {
	ID              string
	Email           string
	EmailVerifiedAt *time.Time
	Name            string
	// PasswordHash es nil para cuentas que sólo entran con passkey o magic link.
	PasswordHash *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword indica si la cuenta tiene password configurado.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// CreateAccountInput contiene los datos para crear una cuenta.
type CreateAccountInput struct {
	Email        string
	Name         string
	PasswordHash string // vacío => cuenta sin password
}

// AccountRepository define operaciones sobre cuentas.
type AccountRepository interface {
	// GetByEmail busca una cuenta por email (case-insensitive).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID busca una cuenta por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, accountID string) (*Account, error)

	// Create crea una cuenta nueva.
	// Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, input CreateAccountInput) (*Account, error)

	// UpdatePasswordHash reemplaza el hash del password.
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	// UpdateProfile actualiza nombre y email. Si el email cambia, la
	// verificación vuelve a NULL hasta que el buzón nuevo se pruebe.
	// Retorna ErrConflict si el email pertenece a otra cuenta.
	UpdateProfile(ctx context.Context, accountID, name, email string) (*Account, error)

	// SetEmailVerified marca el email como verificado ahora.
	SetEmailVerified(ctx context.Context, accountID string, at time.Time) error

	// Delete elimina la cuenta y todo lo asociado (passkeys, MFA, sesiones).
	Delete(ctx context.Context, accountID string) error
}
