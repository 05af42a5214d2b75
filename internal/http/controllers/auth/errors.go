// Package auth contiene los controllers HTTP de autenticación.
// Los controllers validan el request, llaman al service y traducen sus
// errores al catálogo HTTP. Nada de lógica de negocio acá.
package auth

import (
	"errors"
	"net/http"

	httperrors "github.com/janus-id/janus/internal/http/errors"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/magiclink"
)

// writeServiceError traduce errores de service al catálogo HTTP.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case errors.Is(err, svc.ErrEmailTaken):
		httperrors.WriteError(w, httperrors.ErrEmailAlreadyInUse)
	case errors.Is(err, svc.ErrInvalidEmail):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid email address"))
	case errors.Is(err, svc.ErrWeakPassword):
		httperrors.WriteError(w, httperrors.ErrPasswordTooWeak)
	case errors.Is(err, svc.ErrNoPassword):
		httperrors.WriteError(w, httperrors.ErrNoPasswordSet)
	case errors.Is(err, svc.ErrRateLimited):
		httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
	case errors.Is(err, svc.ErrMFATokenInvalid):
		httperrors.WriteError(w, httperrors.ErrMFATokenInvalid)
	case errors.Is(err, svc.ErrMFACodeInvalid):
		httperrors.WriteError(w, httperrors.ErrMFACodeInvalid)
	case errors.Is(err, svc.ErrRecoveryCodeInvalid):
		httperrors.WriteError(w, httperrors.ErrRecoveryCodeInvalid)
	case errors.Is(err, svc.ErrMFANotEnrolled):
		httperrors.WriteError(w, httperrors.ErrMFANotEnrolled)
	case errors.Is(err, svc.ErrMFAAlreadyEnabled):
		httperrors.WriteError(w, httperrors.ErrMFAAlreadyEnabled)
	case errors.Is(err, svc.ErrCeremonyNotFound):
		httperrors.WriteError(w, httperrors.ErrPasskeyAssertionInvalid.WithDetail("ceremony expired"))
	case errors.Is(err, svc.ErrAssertionInvalid), errors.Is(err, svc.ErrPasskeyReplay):
		httperrors.WriteError(w, httperrors.ErrPasskeyAssertionInvalid)
	case errors.Is(err, svc.ErrAttestationInvalid):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("attestation rejected"))
	case errors.Is(err, svc.ErrPasskeyNotFound):
		httperrors.WriteError(w, httperrors.ErrPasskeyNotFound)
	case errors.Is(err, svc.ErrPasskeyDuplicate):
		httperrors.WriteError(w, httperrors.ErrPasskeyAlreadyRegistered)
	case errors.Is(err, svc.ErrLastCredential):
		httperrors.WriteError(w, httperrors.ErrLastCredential)
	case errors.Is(err, svc.ErrSessionInvalid):
		httperrors.WriteError(w, httperrors.ErrSessionExpired)
	case errors.Is(err, magiclink.ErrLinkExpired):
		httperrors.WriteError(w, httperrors.ErrMagicLinkExpired)
	case errors.Is(err, magiclink.ErrLinkUsed):
		httperrors.WriteError(w, httperrors.ErrMagicLinkUsed)
	case errors.Is(err, magiclink.ErrLinkSignature), errors.Is(err, magiclink.ErrLinkEmailMismatch):
		httperrors.WriteError(w, httperrors.ErrMagicLinkInvalid)
	default:
		httperrors.WriteError(w, err)
	}
}
