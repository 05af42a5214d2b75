package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/janus-id/janus/internal/cache"
	"github.com/janus-id/janus/internal/domain/repository"
	dto "github.com/janus-id/janus/internal/http/dto/auth"
	"github.com/janus-id/janus/internal/metrics"
	"github.com/janus-id/janus/internal/observability/logger"
	tokens "github.com/janus-id/janus/internal/security/token"
)

const (
	waRegPrefix    = "wa:reg:"
	waLoginPrefix  = "wa:login:"
	ceremonyBytes  = 16
	defaultPKAlias = "Passkey"
)

// PasskeyProvider es el subconjunto de *webauthn.WebAuthn que usa el
// servicio. Como interfaz, los tests pueden inyectar un fake y ejercitar
// la regla del sign counter sin un authenticator real.
type PasskeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

// PasskeyParser decodifica las respuestas JSON del navegador.
type PasskeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// PasskeyService maneja credenciales WebAuthn: ceremonias de registro y
// login discoverable, y la gestión (listar, renombrar, borrar).
//
// El estado de ceremonia (webauthn.SessionData) vive en cache con TTL; el
// ceremony id opaco ata el begin con el finish.
type PasskeyService interface {
	// BeginRegistration arma las opciones de creación excluyendo las
	// credenciales ya registradas de la cuenta.
	BeginRegistration(ctx context.Context, acc *repository.Account) (options *protocol.CredentialCreation, ceremonyID string, err error)

	// FinishRegistration verifica la attestation y persiste la credencial.
	FinishRegistration(ctx context.Context, acc *repository.Account, ceremonyID, alias string, credentialJSON []byte) (*dto.PasskeySummary, error)

	// BeginLogin arranca una ceremonia discoverable (sin identificar la
	// cuenta por adelantado).
	BeginLogin(ctx context.Context) (options *protocol.CredentialAssertion, ceremonyID string, err error)

	// FinishLogin valida la aserción y devuelve la cuenta dueña de la
	// credencial. El sign counter debe avanzar estrictamente cuando alguno
	// de los dos lados es distinto de cero.
	FinishLogin(ctx context.Context, ceremonyID string, credentialJSON []byte) (*repository.Account, error)

	// List lista las credenciales de la cuenta.
	List(ctx context.Context, accountID string) ([]dto.PasskeySummary, error)

	// Rename cambia el alias de una credencial de la cuenta.
	Rename(ctx context.Context, accountID, id, alias string) error

	// Delete elimina una credencial. Borrar la última credencial de una
	// cuenta sin password falla con ErrLastCredential.
	Delete(ctx context.Context, acc *repository.Account, id string) error
}

type passkeyService struct {
	deps Deps
}

// NewPasskeyService construye el servicio de passkeys.
func NewPasskeyService(deps Deps) PasskeyService {
	return &passkeyService{deps: deps}
}

func (s *passkeyService) parser() PasskeyParser {
	if s.deps.Parser != nil {
		return s.deps.Parser
	}
	return protocolParser{}
}

func (s *passkeyService) loadUser(ctx context.Context, acc *repository.Account) (*passkeyUser, error) {
	rows, err := s.deps.Passkeys.ListByAccount(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	creds, err := toWebAuthnCredentials(rows)
	if err != nil {
		return nil, fmt.Errorf("decode stored credentials: %w", err)
	}
	return &passkeyUser{acc: acc, creds: creds}, nil
}

func (s *passkeyService) BeginRegistration(ctx context.Context, acc *repository.Account) (*protocol.CredentialCreation, string, error) {
	user, err := s.loadUser(ctx, acc)
	if err != nil {
		return nil, "", err
	}

	opts := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(user.creds) > 0 && !s.deps.Passkey.AllowDuplicates {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(user.creds).CredentialDescriptors()))
	}

	creation, session, err := s.deps.WebAuthn.BeginRegistration(user, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("begin registration: %w", err)
	}

	ceremonyID, err := s.storeCeremony(ctx, waRegPrefix, session)
	if err != nil {
		return nil, "", err
	}
	return creation, ceremonyID, nil
}

func (s *passkeyService) FinishRegistration(ctx context.Context, acc *repository.Account, ceremonyID, alias string, credentialJSON []byte) (*dto.PasskeySummary, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("passkeys"), logger.Op("finish_registration"))

	session, err := s.takeCeremony(ctx, waRegPrefix, ceremonyID)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser().ParseCredentialCreationResponseBytes(credentialJSON)
	if err != nil {
		return nil, ErrAttestationInvalid
	}

	user, err := s.loadUser(ctx, acc)
	if err != nil {
		return nil, err
	}
	cred, err := s.deps.WebAuthn.CreateCredential(user, *session, parsed)
	if err != nil {
		log.Info("attestation rejected", logger.AccountID(acc.ID), logger.Err(err))
		return nil, ErrAttestationInvalid
	}

	if alias == "" {
		alias = defaultPKAlias
	}
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	row, err := s.deps.Passkeys.Create(ctx, repository.CreatePasskeyInput{
		AccountID:       acc.ID,
		Alias:           alias,
		CredentialID:    encodeCredentialID(cred.ID),
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      transports,
		SignCount:       cred.Authenticator.SignCount,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrPasskeyDuplicate
		}
		return nil, err
	}

	log.Info("passkey registered",
		logger.AccountID(acc.ID),
		logger.CredentialID(row.CredentialID),
	)
	return &dto.PasskeySummary{
		ID:        row.ID,
		Alias:     row.Alias,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *passkeyService) BeginLogin(ctx context.Context) (*protocol.CredentialAssertion, string, error) {
	assertion, session, err := s.deps.WebAuthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, "", fmt.Errorf("begin discoverable login: %w", err)
	}
	ceremonyID, err := s.storeCeremony(ctx, waLoginPrefix, session)
	if err != nil {
		return nil, "", err
	}
	return assertion, ceremonyID, nil
}

func (s *passkeyService) FinishLogin(ctx context.Context, ceremonyID string, credentialJSON []byte) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("passkeys"), logger.Op("finish_login"))

	session, err := s.takeCeremony(ctx, waLoginPrefix, ceremonyID)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser().ParseCredentialRequestResponseBytes(credentialJSON)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("passkey", "failed").Inc()
		return nil, ErrAssertionInvalid
	}

	handler := func(_, userHandle []byte) (webauthn.User, error) {
		acc, err := s.deps.Accounts.GetByID(ctx, string(userHandle))
		if err != nil {
			return nil, err
		}
		return s.loadUser(ctx, acc)
	}

	user, cred, err := s.deps.WebAuthn.ValidatePasskeyLogin(handler, *session, parsed)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("passkey", "failed").Inc()
		log.Info("passkey assertion rejected", logger.Err(err))
		return nil, ErrAssertionInvalid
	}

	credentialID := encodeCredentialID(cred.ID)
	stored, err := s.deps.Passkeys.GetByCredentialID(ctx, credentialID)
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.LoginAttemptsTotal.WithLabelValues("passkey", "failed").Inc()
			return nil, ErrAssertionInvalid
		}
		return nil, err
	}

	// El contador tiene que avanzar estricto cuando alguno de los dos es
	// distinto de cero. Un contador repetido o retrocedido huele a clon.
	if cred.Authenticator.CloneWarning ||
		((stored.SignCount != 0 || cred.Authenticator.SignCount != 0) && cred.Authenticator.SignCount <= stored.SignCount) {
		metrics.LoginAttemptsTotal.WithLabelValues("passkey", "failed").Inc()
		log.Warn("passkey sign counter did not advance",
			logger.CredentialID(credentialID),
			logger.Int("stored", int(stored.SignCount)),
			logger.Int("asserted", int(cred.Authenticator.SignCount)),
		)
		return nil, ErrPasskeyReplay
	}

	if err := s.deps.Passkeys.UpdateAfterLogin(ctx, credentialID, cred.Authenticator.SignCount, cred.Flags.BackupState, s.deps.now()); err != nil {
		return nil, err
	}

	pu, ok := user.(*passkeyUser)
	if !ok {
		return nil, ErrAssertionInvalid
	}

	metrics.LoginAttemptsTotal.WithLabelValues("passkey", "ok").Inc()
	log.Info("passkey login ok",
		logger.AccountID(pu.acc.ID),
		logger.CredentialID(credentialID),
	)
	return pu.acc, nil
}

func (s *passkeyService) List(ctx context.Context, accountID string) ([]dto.PasskeySummary, error) {
	rows, err := s.deps.Passkeys.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PasskeySummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.PasskeySummary{
			ID:         row.ID,
			Alias:      row.Alias,
			CreatedAt:  row.CreatedAt,
			LastUsedAt: row.LastUsedAt,
		})
	}
	return out, nil
}

func (s *passkeyService) Rename(ctx context.Context, accountID, id, alias string) error {
	if alias == "" {
		alias = defaultPKAlias
	}
	if err := s.deps.Passkeys.UpdateAlias(ctx, accountID, id, alias); err != nil {
		if repository.IsNotFound(err) {
			return ErrPasskeyNotFound
		}
		return err
	}
	return nil
}

func (s *passkeyService) Delete(ctx context.Context, acc *repository.Account, id string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("passkeys"), logger.Op("delete"))

	if !acc.HasPassword() {
		n, err := s.deps.Passkeys.CountByAccount(ctx, acc.ID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastCredential
		}
	}

	if err := s.deps.Passkeys.Delete(ctx, acc.ID, id); err != nil {
		if repository.IsNotFound(err) {
			// Ajena o inexistente: indistinguibles a propósito.
			return ErrPasskeyNotFound
		}
		return err
	}
	log.Info("passkey deleted", logger.AccountID(acc.ID))
	return nil
}

// storeCeremony persiste el SessionData con TTL y devuelve el ceremony id.
func (s *passkeyService) storeCeremony(ctx context.Context, prefix string, session *webauthn.SessionData) (string, error) {
	ceremonyID, err := tokens.GenerateOpaqueToken(ceremonyBytes)
	if err != nil {
		return "", fmt.Errorf("generate ceremony id: %w", err)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("encode ceremony session: %w", err)
	}
	if err := s.deps.Cache.Set(ctx, prefix+ceremonyID, string(payload), s.deps.Passkey.CeremonyTTL); err != nil {
		return "", fmt.Errorf("cache ceremony session: %w", err)
	}
	return ceremonyID, nil
}

// takeCeremony consume el SessionData (un finish por begin).
func (s *passkeyService) takeCeremony(ctx context.Context, prefix, ceremonyID string) (*webauthn.SessionData, error) {
	raw, err := s.deps.Cache.Get(ctx, prefix+ceremonyID)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrCeremonyNotFound
		}
		return nil, err
	}
	_ = s.deps.Cache.Delete(ctx, prefix+ceremonyID)

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, ErrCeremonyNotFound
	}
	return &session, nil
}
