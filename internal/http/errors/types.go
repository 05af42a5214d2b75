package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs, no se expone al cliente
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalles adicionales al error (útil para validaciones)
// Devuelve una COPIA del error para no mutar las variables globales base
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa)
// Devuelve una COPIA del error
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request - Errores de Cliente / Validación
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Faltan campos requeridos en la solicitud.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidParameter = &AppError{
		Code:       "INVALID_PARAMETER",
		Message:    "Uno de los parámetros de la URL o Query String es inválido.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized - Errores de Autenticación
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSessionExpired = &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "La sesión ha expirado, por favor inicie sesión nuevamente.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMagicLinkInvalid = &AppError{
		Code:       "MAGIC_LINK_INVALID",
		Message:    "El enlace de acceso es inválido o fue alterado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMagicLinkExpired = &AppError{
		Code:       "MAGIC_LINK_EXPIRED",
		Message:    "El enlace de acceso expiró. Solicite uno nuevo.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMagicLinkUsed = &AppError{
		Code:       "MAGIC_LINK_USED",
		Message:    "El enlace de acceso ya fue utilizado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMFACodeInvalid = &AppError{
		Code:       "MFA_CODE_INVALID",
		Message:    "El código de verificación es inválido o ya fue usado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrRecoveryCodeInvalid = &AppError{
		Code:       "RECOVERY_CODE_INVALID",
		Message:    "El código de recuperación es inválido o ya fue usado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMFATokenInvalid = &AppError{
		Code:       "MFA_TOKEN_INVALID",
		Message:    "El desafío MFA es inválido o expiró. Inicie sesión nuevamente.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrPasskeyAssertionInvalid = &AppError{
		Code:       "PASSKEY_ASSERTION_INVALID",
		Message:    "La verificación de la passkey falló.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 403 Forbidden - Errores de Permisos
// ---------------------------------------------------------------------------------

var (
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tiene permisos para realizar esta acción.",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrPasswordConfirmationRequired corta operaciones sensibles hasta que el
	// usuario reconfirme su password en esta sesión.
	ErrPasswordConfirmationRequired = &AppError{
		Code:       "PASSWORD_CONFIRMATION_REQUIRED",
		Message:    "Debe confirmar su contraseña para continuar.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNoPasswordSet = &AppError{
		Code:       "NO_PASSWORD_SET",
		Message:    "La cuenta no tiene contraseña configurada.",
		HTTPStatus: http.StatusForbidden,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found - Recursos no encontrados
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrPasskeyNotFound = &AppError{
		Code:       "PASSKEY_NOT_FOUND",
		Message:    "La passkey especificada no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRouteNotFound = &AppError{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "La ruta solicitada no existe.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 405 Method Not Allowed
// ---------------------------------------------------------------------------------

var (
	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

// ---------------------------------------------------------------------------------
// 409 Conflict - Errores de Estado/Conflicto
// ---------------------------------------------------------------------------------

var (
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "La solicitud entra en conflicto con el estado actual del servidor.",
		HTTPStatus: http.StatusConflict,
	}

	ErrEmailAlreadyInUse = &AppError{
		Code:       "EMAIL_ALREADY_IN_USE",
		Message:    "El correo electrónico ya está registrado.",
		HTTPStatus: http.StatusConflict,
	}

	ErrPasskeyAlreadyRegistered = &AppError{
		Code:       "PASSKEY_ALREADY_REGISTERED",
		Message:    "Esa passkey ya está registrada en una cuenta.",
		HTTPStatus: http.StatusConflict,
	}

	ErrMFAAlreadyEnabled = &AppError{
		Code:       "MFA_ALREADY_ENABLED",
		Message:    "La verificación en dos pasos ya está activa.",
		HTTPStatus: http.StatusConflict,
	}

	ErrLastCredential = &AppError{
		Code:       "LAST_CREDENTIAL",
		Message:    "No se puede eliminar el último medio de acceso de la cuenta.",
		HTTPStatus: http.StatusConflict,
	}
)

// ---------------------------------------------------------------------------------
// 422 Unprocessable Entity - Errores de Lógica de Negocio
// ---------------------------------------------------------------------------------

var (
	ErrUnprocessableEntity = &AppError{
		Code:       "UNPROCESSABLE_ENTITY",
		Message:    "No se pudo procesar las instrucciones contenidas.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrPasswordTooWeak = &AppError{
		Code:       "PASSWORD_TOO_WEAK",
		Message:    "La contraseña no cumple con los requisitos de seguridad.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrMFANotEnrolled = &AppError{
		Code:       "MFA_NOT_ENROLLED",
		Message:    "La cuenta no tiene verificación en dos pasos configurada.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// ---------------------------------------------------------------------------------
// 429 Too Many Requests - Rate Limiting
// ---------------------------------------------------------------------------------

var (
	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// ---------------------------------------------------------------------------------
// 500+ Server Errors - Errores Internos
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
