package auth

import "time"

// SessionAgent describe el dispositivo detrás de una sesión.
type SessionAgent struct {
	IsDesktop bool   `json:"is_desktop"`
	Platform  string `json:"platform"`
	Browser   string `json:"browser"`
}

// SessionSummary es una entrada del listado de sesiones del navegador.
type SessionSummary struct {
	ID              string       `json:"id"`
	Agent           SessionAgent `json:"agent"`
	IPAddress       string       `json:"ip_address"`
	IsCurrentDevice bool         `json:"is_current_device"`
	LastActive      time.Time    `json:"last_active"`
}

// LogoutOthersRequest es el body de POST /user/sessions/logout-others.
type LogoutOthersRequest struct {
	Password string `json:"password"`
}

// LogoutOthersResult informa cuántas sesiones se revocaron.
type LogoutOthersResult struct {
	Revoked int `json:"revoked"`
}
