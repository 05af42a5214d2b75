package auth

import (
	"encoding/base64"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/janus-id/janus/internal/domain/repository"
)

// passkeyUser adapta una cuenta al contrato webauthn.User. El user handle
// que ve el autenticador es el UUID de la cuenta en bytes.
type passkeyUser struct {
	acc   *repository.Account
	creds []webauthn.Credential
}

func (u *passkeyUser) WebAuthnID() []byte { return []byte(u.acc.ID) }

func (u *passkeyUser) WebAuthnName() string { return u.acc.Email }

func (u *passkeyUser) WebAuthnDisplayName() string {
	if u.acc.Name != "" {
		return u.acc.Name
	}
	return u.acc.Email
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func decodeCredentialID(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// toWebAuthnCredential reconstruye la credencial de librería desde la fila.
func toWebAuthnCredential(row repository.PasskeyCredential) (webauthn.Credential, error) {
	id, err := decodeCredentialID(row.CredentialID)
	if err != nil {
		return webauthn.Credential{}, err
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(row.Transports))
	for _, t := range row.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              id,
		PublicKey:       row.PublicKey,
		AttestationType: row.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: row.BackupEligible,
			BackupState:    row.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: row.SignCount,
		},
	}, nil
}

func toWebAuthnCredentials(rows []repository.PasskeyCredential) ([]webauthn.Credential, error) {
	out := make([]webauthn.Credential, 0, len(rows))
	for _, row := range rows {
		c, err := toWebAuthnCredential(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
