package auth

// MFAEnrollResult devuelve el secreto provisional al iniciar la inscripción TOTP.
type MFAEnrollResult struct {
	SecretBase32 string `json:"secret_base32"`
	OTPAuthURL   string `json:"otpauth_url"`
}

// MFAConfirmRequest es el body de POST /user/two-factor-confirm.
type MFAConfirmRequest struct {
	Code string `json:"code"`
}

// MFAConfirmResult incluye los códigos de recuperación recién generados.
// Es la única vez que se muestran en claro.
type MFAConfirmResult struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// MFAChallengeRequest es el body de POST /mfa/challenge. Code y
// RecoveryCode son mutuamente excluyentes.
type MFAChallengeRequest struct {
	MFAToken     string `json:"mfa_token"`
	Code         string `json:"code,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
	Remember     bool   `json:"remember"`
}

// MFAStatus describe el estado 2FA de la cuenta autenticada.
type MFAStatus struct {
	Enabled                bool `json:"enabled"`
	Confirmed              bool `json:"confirmed"`
	RecoveryCodesRemaining int  `json:"recovery_codes_remaining"`
}

// MFARecoveryCodesResult devuelve el juego completo tras una rotación.
type MFARecoveryCodesResult struct {
	RecoveryCodes []string `json:"recovery_codes"`
}
