// Package cache provee abstracciones para estado efímero con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Acá viven los challenges de MFA pendientes, el estado de ceremonias WebAuthn
// y los registros de consumo de magic links. Nada de esto es data de negocio
// durable: todo tiene TTL.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Kind   string // "memory" | "redis"
	Addr   string
	DB     int
	Prefix string // Prefijo para todas las keys
	// DefaultTTL aplica sólo al backend memory.
	DefaultTTL time.Duration
}

// Errores de cache.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg), nil
	default:
		return NewMemory(cfg), nil
	}
}
