package auth

// MagicLinkRequest es el body de POST /magic-link.
type MagicLinkRequest struct {
	Email    string `json:"email"`
	Remember bool   `json:"remember"`
}

// MagicLinkRequested confirma el envío sin revelar si la cuenta existe.
type MagicLinkRequested struct {
	Status string `json:"status"` // siempre "sent"
}
