package auth

import (
	"context"
	"net/http"

	"github.com/janus-id/janus/internal/domain/repository"
	dto "github.com/janus-id/janus/internal/http/dto/auth"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	svc "github.com/janus-id/janus/internal/http/services/auth"
	"github.com/janus-id/janus/internal/observability/logger"
)

// LoginController maneja registro, login con password y cambio de password.
type LoginController struct {
	login    svc.LoginService
	mfa      svc.MFAService
	sessions svc.SessionService
}

// NewLoginController crea el controller de login.
func NewLoginController(login svc.LoginService, mfa svc.MFAService, sessions svc.SessionService) *LoginController {
	return &LoginController{login: login, mfa: mfa, sessions: sessions}
}

// accountSummary arma la vista pública de la cuenta.
func accountSummary(ctx context.Context, mfa svc.MFAService, acc *repository.Account) *dto.AccountSummary {
	summary := &dto.AccountSummary{
		ID:            acc.ID,
		Email:         acc.Email,
		Name:          acc.Name,
		EmailVerified: acc.EmailVerifiedAt != nil,
		HasPassword:   acc.HasPassword(),
	}
	if st, err := mfa.Status(ctx, acc.ID); err == nil {
		summary.MFAEnabled = st.Enabled
	}
	return summary
}

// Register maneja POST /register
func (c *LoginController) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.RegisterRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email y password son obligatorios"))
		return
	}

	acc, err := c.login.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Registro abre sesión: el password recién elegido cuenta como
	// confirmación para el step-up gate.
	if _, err := c.sessions.Establish(ctx, w, r, acc, false, true); err != nil {
		writeServiceError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.LoginResult{
		Status:  "ok",
		Account: accountSummary(ctx, c.mfa, acc),
	})
}

// Login maneja POST /login
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email y password son obligatorios"))
		return
	}

	acc, mfaRequired, err := c.login.PasswordLogin(ctx, req.Email, req.Password)
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")

	if mfaRequired {
		token, err := c.mfa.IssueChallengeToken(ctx, acc.ID, req.Remember)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		helpers.WriteJSON(w, http.StatusOK, dto.LoginResult{
			Status:   "mfa_required",
			MFAToken: token,
		})
		return
	}

	if _, err := c.sessions.Establish(ctx, w, r, acc, req.Remember, true); err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResult{
		Status:  "ok",
		Account: accountSummary(ctx, c.mfa, acc),
	})
}

// UpdatePassword maneja PUT /user/password
func (c *LoginController) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)
	sess := helpers.CurrentSession(ctx)

	var req dto.UpdatePasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("new_password es obligatorio"))
		return
	}

	if err := c.login.UpdatePassword(ctx, acc, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	// Cambio de password tumba las demás sesiones.
	if _, err := c.sessions.RevokeOthers(ctx, acc.ID, sess.SessionIDHash); err != nil {
		logger.From(ctx).Warn("failed to revoke other sessions after password change", logger.Err(err))
	}

	helpers.WriteNoContent(w)
}

// UpdateProfile maneja PUT /user/profile-information
func (c *LoginController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)

	var req dto.ProfileUpdateRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email es obligatorio"))
		return
	}

	updated, err := c.login.UpdateProfile(ctx, acc, req.Name, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, accountSummary(ctx, c.mfa, updated))
}

// Me maneja GET /user/me
func (c *LoginController) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)
	helpers.WriteJSON(w, http.StatusOK, accountSummary(ctx, c.mfa, acc))
}
