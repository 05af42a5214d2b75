package auth

import (
	"net/http"

	dto "github.com/janus-id/janus/internal/http/dto/auth"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	svc "github.com/janus-id/janus/internal/http/services/auth"
)

// SessionController maneja el panel de sesiones de navegador y el logout.
type SessionController struct {
	sessions svc.SessionService
}

// NewSessionController crea el controller de sesiones.
func NewSessionController(sessions svc.SessionService) *SessionController {
	return &SessionController{sessions: sessions}
}

// List maneja GET /user/browser-sessions
func (c *SessionController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)
	sess := helpers.CurrentSession(ctx)

	list, err := c.sessions.List(ctx, acc.ID, sess.SessionIDHash)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, list)
}

// Logout maneja POST /logout
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := helpers.CurrentSession(ctx)

	if err := c.sessions.Logout(ctx, w, sess); err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteNoContent(w)
}

// LogoutOthers maneja DELETE /user/other-browser-sessions
func (c *SessionController) LogoutOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)
	sess := helpers.CurrentSession(ctx)

	var req dto.LogoutOthersRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("password es obligatorio"))
		return
	}

	n, err := c.sessions.LogoutOthers(ctx, acc, sess.SessionIDHash, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.LogoutOthersResult{Revoked: n})
}
