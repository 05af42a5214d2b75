package repository

import (
	"context"
	"time"
)

// Session representa una sesión de navegador persistida.
//
// El ID opaco que viaja en la cookie nunca se guarda: la fila se indexa por
// su sha256 (SessionIDHash).
type Session struct {
	ID            string
	AccountID     string
	SessionIDHash string

	// Metadata de cliente para el panel de sesiones
	IPAddress  string
	UserAgent  string
	DeviceType string // desktop, mobile, unknown
	Browser    string
	Platform   string

	// Remember indica login con "recordarme" (TTL extendido).
	Remember bool

	// PasswordConfirmedAt respalda el gate de confirmación de password:
	// nil si nunca se confirmó en esta sesión.
	PasswordConfirmedAt *time.Time

	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// CreateSessionInput contiene los datos para crear una sesión.
type CreateSessionInput struct {
	AccountID     string
	SessionIDHash string
	IPAddress     string
	UserAgent     string
	DeviceType    string
	Browser       string
	Platform      string
	Remember      bool
	// PasswordConfirmedAt arranca seteado cuando el login fue con password.
	PasswordConfirmedAt *time.Time
	ExpiresAt           time.Time
}

// SessionRepository define operaciones para gestionar sesiones.
type SessionRepository interface {
	// Create crea una sesión nueva.
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// GetByIDHash obtiene una sesión por el hash del session ID.
	// Retorna ErrNotFound si no existe.
	GetByIDHash(ctx context.Context, sessionIDHash string) (*Session, error)

	// ListByAccount lista las sesiones vivas de una cuenta, actividad
	// más reciente primero.
	ListByAccount(ctx context.Context, accountID string) ([]Session, error)

	// TouchActivity actualiza el timestamp de última actividad.
	TouchActivity(ctx context.Context, sessionIDHash string, at time.Time) error

	// SetPasswordConfirmedAt registra una confirmación de password en la sesión.
	SetPasswordConfirmedAt(ctx context.Context, sessionIDHash string, at time.Time) error

	// Delete elimina una sesión puntual.
	Delete(ctx context.Context, sessionIDHash string) error

	// DeleteByAccountExcept elimina las sesiones de la cuenta salvo la actual.
	// keepIDHash vacío elimina todas. Retorna cuántas eliminó.
	DeleteByAccountExcept(ctx context.Context, accountID, keepIDHash string) (int, error)

	// DeleteExpired purga sesiones vencidas. Retorna cuántas eliminó.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
