package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dto "github.com/janus-id/janus/internal/http/dto/auth"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/observability/logger"
)

// MagicLinkController maneja el envío y consumo de enlaces de login.
type MagicLinkController struct {
	magic    svc.MagicLinkService
	mfa      svc.MFAService
	sessions svc.SessionService
}

// NewMagicLinkController crea el controller de magic links.
func NewMagicLinkController(magic svc.MagicLinkService, mfa svc.MFAService, sessions svc.SessionService) *MagicLinkController {
	return &MagicLinkController{magic: magic, mfa: mfa, sessions: sessions}
}

// Send maneja POST /magic-link/send
func (c *MagicLinkController) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.MagicLinkRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email es obligatorio"))
		return
	}

	if err := c.magic.Request(ctx, req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	// Misma respuesta exista o no la cuenta.
	helpers.WriteJSON(w, http.StatusAccepted, dto.MagicLinkRequested{Status: "sent"})
}

// Login maneja GET /magic-link/login/{account}
func (c *MagicLinkController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("MagicLinkController.Login"))

	accountID := chi.URLParam(r, "account")
	if accountID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest)
		return
	}

	acc, err := c.magic.Consume(ctx, accountID, r.URL.Query())
	if err != nil {
		log.Debug("magic link rejected", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	// El enlace prueba acceso al buzón, no conocimiento del password:
	// la sesión arranca sin step-up vigente.
	if _, err := c.sessions.Establish(ctx, w, r, acc, true, false); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResult{
		Status:  "ok",
		Account: accountSummary(ctx, c.mfa, acc),
	})
}
