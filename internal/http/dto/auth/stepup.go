package auth

import "time"

// ConfirmPasswordRequest es el body de POST /user/confirm-password.
type ConfirmPasswordRequest struct {
	Password string `json:"password"`
}

// PasswordConfirmationStatus indica si la confirmación reciente sigue vigente.
type PasswordConfirmationStatus struct {
	Confirmed   bool       `json:"confirmed"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// UpdatePasswordRequest es el body de PUT /user/password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
