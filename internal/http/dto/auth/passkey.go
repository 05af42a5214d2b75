package auth

import "time"

// PasskeySummary es la vista pública de una credencial WebAuthn.
type PasskeySummary struct {
	ID         string     `json:"id"`
	Alias      string     `json:"alias"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// PasskeyRenameRequest es el body de PATCH /passkeys/{id}.
type PasskeyRenameRequest struct {
	Alias string `json:"alias"`
}

// PasskeyRegisterBeginRequest permite nombrar la credencial antes de crearla.
type PasskeyRegisterBeginRequest struct {
	Alias string `json:"alias"`
}

// PasskeyLoginRequest acompaña la aserción al terminar un login discoverable.
type PasskeyLoginRequest struct {
	Remember bool `json:"remember"`
}
