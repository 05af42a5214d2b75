package auth

import (
	"net/http"

	dto "github.com/janus-id/janus/internal/http/dto/auth"
	httperrors "github.com/janus-id/janus/internal/http/errors"
	"github.com/janus-id/janus/internal/http/helpers"
	svc "github.com/janus-id/janus/internal/http/services/auth"
)

// StepUpController maneja la confirmación reciente de password.
type StepUpController struct {
	stepup svc.StepUpService
}

// NewStepUpController crea el controller de step-up.
func NewStepUpController(stepup svc.StepUpService) *StepUpController {
	return &StepUpController{stepup: stepup}
}

// Confirm maneja POST /user/confirm-password
func (c *StepUpController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc := helpers.CurrentAccount(ctx)
	sess := helpers.CurrentSession(ctx)

	var req dto.ConfirmPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("password es obligatorio"))
		return
	}

	if err := c.stepup.Confirm(ctx, acc, sess, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	helpers.WriteNoContent(w)
}

// Status maneja GET /user/confirmed-password-status
func (c *StepUpController) Status(w http.ResponseWriter, r *http.Request) {
	sess := helpers.CurrentSession(r.Context())
	helpers.WriteJSON(w, http.StatusOK, c.stepup.Status(sess))
}
