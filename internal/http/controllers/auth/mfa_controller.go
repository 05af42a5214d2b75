package auth

import (
	"net/http"

	dto "github.com/janus-id/janus/internal/http/dto/auth"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/observability/logger"
)

// MFAController maneja TOTP 2FA: inscripción, challenges y recovery codes.
type MFAController struct {
	mfa      svc.MFAService
	sessions svc.SessionService
}

// NewMFAController crea el controller 2FA.
func NewMFAController(mfa svc.MFAService, sessions svc.SessionService) *MFAController {
	return &MFAController{mfa: mfa, sessions: sessions}
}

// Enable maneja POST /user/two-factor-authentication
func (c *MFAController) Enable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	result, codes, err := c.mfa.Enroll(ctx, acc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	if codes != nil {
		// Política sin confirmación: quedó habilitado y los códigos salen acá.
		helpers.WriteJSON(w, http.StatusOK, struct {
			*dto.MFAEnrollResult
			RecoveryCodes []string `json:"recovery_codes"`
		}{result, codes})
		return
	}
	helpers.WriteJSON(w, http.StatusOK, result)
}

// Confirm maneja POST /user/confirmed-two-factor-authentication
func (c *MFAController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	var req dto.MFAConfirmRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code es obligatorio"))
		return
	}

	codes, err := c.mfa.Confirm(ctx, acc, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dto.MFAConfirmResult{RecoveryCodes: codes})
}

// Disable maneja DELETE /user/two-factor-authentication
func (c *MFAController) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	if err := c.mfa.Disable(ctx, acc.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteNoContent(w)
}

// Status maneja GET /user/two-factor-authentication
func (c *MFAController) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	st, err := c.mfa.Status(ctx, acc.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, st)
}

// SecretKey maneja GET /user/two-factor-secret-key
func (c *MFAController) SecretKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	b32, _, err := c.mfa.SecretKey(ctx, acc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"secret_key": b32})
}

// QRCode maneja GET /user/two-factor-qr-code
// Devuelve la URI de aprovisionamiento otpauth://; el QR lo dibuja el cliente.
func (c *MFAController) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	_, otpauthURL, err := c.mfa.SecretKey(ctx, acc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"url": otpauthURL})
}

// RecoveryCodes maneja GET /user/two-factor-recovery-codes
// Los códigos guardados son hashes: sólo se informa cuántos quedan.
func (c *MFAController) RecoveryCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	remaining, err := c.mfa.RecoveryCodesRemaining(ctx, acc.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}

// RegenerateRecoveryCodes maneja POST /user/two-factor-recovery-codes
func (c *MFAController) RegenerateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	codes, err := c.mfa.RotateRecovery(ctx, acc.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dto.MFARecoveryCodesResult{RecoveryCodes: codes})
}

// Challenge maneja POST /two-factor-challenge
func (c *MFAController) Challenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MFAController.Challenge"))

	var req dto.MFAChallengeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.MFAToken == "" || (req.Code == "" && req.RecoveryCode == "") {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("mfa_token y code o recovery_code son obligatorios"))
		return
	}

	acc, remember, err := c.mfa.Challenge(ctx, req.MFAToken, req.Code, req.RecoveryCode)
	if err != nil {
		log.Debug("mfa challenge failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	// remember del request pesa más que el capturado al emitir el token.
	if req.Remember {
		remember = true
	}

	// El challenge completa un login que ya probó el password.
	if _, err := c.sessions.Establish(ctx, w, r, acc, remember, true); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResult{
		Status:  "ok",
		Account: accountSummary(ctx, c.mfa, acc),
	})
}
