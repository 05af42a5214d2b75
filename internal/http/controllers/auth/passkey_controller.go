package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	dto "github.com/janus-id/janus/internal/http/dto/auth"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/observability/logger"
)

// PasskeyController maneja registro, login y gestión de credenciales WebAuthn.
type PasskeyController struct {
	passkeys svc.PasskeyService
	mfa      svc.MFAService
	sessions svc.SessionService
}

// NewPasskeyController crea el controller de passkeys.
func NewPasskeyController(passkeys svc.PasskeyService, mfa svc.MFAService, sessions svc.SessionService) *PasskeyController {
	return &PasskeyController{passkeys: passkeys, mfa: mfa, sessions: sessions}
}

// finishRequest es el body común de los finish: el ceremony id ata con el
// begin y credential viaja tal cual lo serializa el navegador.
type finishRequest struct {
	CeremonyID string          `json:"ceremony_id"`
	Alias      string          `json:"alias,omitempty"`
	Remember   bool            `json:"remember,omitempty"`
	Credential json.RawMessage `json:"credential"`
}

// RegisterOptions maneja POST /user/passkeys/options
func (c *PasskeyController) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	options, ceremonyID, err := c.passkeys.BeginRegistration(ctx, acc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"ceremony_id": ceremonyID,
		"options":     options,
	})
}

// Register maneja POST /user/passkeys
func (c *PasskeyController) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	var req finishRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.CeremonyID == "" || len(req.Credential) == 0 {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("ceremony_id y credential son obligatorios"))
		return
	}

	summary, err := c.passkeys.FinishRegistration(ctx, acc, req.CeremonyID, req.Alias, req.Credential)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, summary)
}

// List maneja GET /user/passkeys
func (c *PasskeyController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	list, err := c.passkeys.List(ctx, acc.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, list)
}

// Rename maneja PATCH /user/passkeys/{id}
func (c *PasskeyController) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	var req dto.PasskeyRenameRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.passkeys.Rename(ctx, acc.ID, chi.URLParam(r, "id"), req.Alias); err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteNoContent(w)
}

// Delete maneja DELETE /user/passkeys/{id}
func (c *PasskeyController) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	if err := c.passkeys.Delete(ctx, acc, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteNoContent(w)
}

// LoginOptions maneja POST /webauthn/login/options
func (c *PasskeyController) LoginOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	options, ceremonyID, err := c.passkeys.BeginLogin(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"ceremony_id": ceremonyID,
		"options":     options,
	})
}

// Login maneja POST /webauthn/login
func (c *PasskeyController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PasskeyController.Login"))

	var req finishRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.CeremonyID == "" || len(req.Credential) == 0 {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("ceremony_id y credential son obligatorios"))
		return
	}

	acc, err := c.passkeys.FinishLogin(ctx, req.CeremonyID, req.Credential)
	if err != nil {
		log.Debug("passkey login failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	// La aserción no prueba el password: sin step-up vigente.
	if _, err := c.sessions.Establish(ctx, w, r, acc, req.Remember, false); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResult{
		Status:  "ok",
		Account: accountSummary(ctx, c.mfa, acc),
	})
}
