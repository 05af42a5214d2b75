// Package auth contiene los DTOs de los flujos de autenticación.
package auth

// LoginRequest es el body de POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// LoginResult es la respuesta de un intento de login.
// Status "ok" incluye Account; "mfa_required" incluye MFAToken.
type LoginResult struct {
	Status   string          `json:"status"` // ok | mfa_required
	MFAToken string          `json:"mfa_token,omitempty"`
	Account  *AccountSummary `json:"account,omitempty"`
}

// AccountSummary es la vista pública de una cuenta.
type AccountSummary struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
	MFAEnabled    bool   `json:"mfa_enabled"`
	HasPassword   bool   `json:"has_password"`
}

// ProfileUpdateRequest es el body de PUT /user/profile-information.
type ProfileUpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterRequest es el body de POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
