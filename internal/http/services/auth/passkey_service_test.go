package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/require"

	"github.com/janus-id/janus/internal/domain/repository"
)

// seedPasskey inserta una credencial directo en el repo: registrar una de
// verdad necesita un autenticador, y acá probamos la gestión alrededor.
func seedPasskey(t *testing.T, env *testEnv, accountID, credentialID string) *repository.PasskeyCredential {
	t.Helper()
	row, err := env.store.Passkeys().Create(context.Background(), repository.CreatePasskeyInput{
		AccountID:       accountID,
		Alias:           "YubiKey 5",
		CredentialID:    credentialID,
		PublicKey:       []byte{0x01, 0x02, 0x03},
		AttestationType: "none",
		Transports:      []string{"usb"},
		SignCount:       7,
	})
	require.NoError(t, err)
	return row
}

func TestPasskeyBeginRegistrationStoresCeremony(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")

	options, ceremonyID, err := env.svcs.Passkeys.BeginRegistration(ctx, acc)
	require.NoError(t, err)
	require.NotEmpty(t, ceremonyID)
	require.NotEmpty(t, options.Response.Challenge)
	require.Equal(t, "id.test", options.Response.RelyingParty.ID)

	ok, err := env.cache.Exists(ctx, "wa:reg:"+ceremonyID)
	require.NoError(t, err)
	require.True(t, ok, "ceremony state must be cached under the ceremony id")
}

func TestPasskeyBeginRegistrationExcludesExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	seedPasskey(t, env, acc.ID, "AAAA")

	options, _, err := env.svcs.Passkeys.BeginRegistration(ctx, acc)
	require.NoError(t, err)
	require.Len(t, options.Response.CredentialExcludeList, 1,
		"registered credentials must be excluded to block duplicates")
}

func TestPasskeyFinishRegistrationUnknownCeremony(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	_, err := env.svcs.Passkeys.FinishRegistration(ctx, acc, "no-such-ceremony", "Key", []byte(`{}`))
	require.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestPasskeyBeginLoginIsDiscoverable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	options, ceremonyID, err := env.svcs.Passkeys.BeginLogin(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, options.Response.Challenge)
	require.Empty(t, options.Response.AllowedCredentials, "discoverable login names no credentials")

	ok, err := env.cache.Exists(ctx, "wa:login:"+ceremonyID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPasskeyFinishLoginConsumesCeremony(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, ceremonyID, err := env.svcs.Passkeys.BeginLogin(ctx)
	require.NoError(t, err)

	// Una aserción ilegible quema la ceremonia igual: un finish por begin.
	_, err = env.svcs.Passkeys.FinishLogin(ctx, ceremonyID, []byte("not-json"))
	require.ErrorIs(t, err, ErrAssertionInvalid)

	_, err = env.svcs.Passkeys.FinishLogin(ctx, ceremonyID, []byte("not-json"))
	require.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestPasskeyListRenameDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	row := seedPasskey(t, env, acc.ID, "AAAA")
	env.clock.Advance(time.Minute)
	seedPasskey(t, env, acc.ID, "BBBB")

	list, err := env.svcs.Passkeys.List(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, env.svcs.Passkeys.Rename(ctx, acc.ID, row.ID, "Llave del trabajo"))
	got, err := env.store.Passkeys().GetByID(ctx, acc.ID, row.ID)
	require.NoError(t, err)
	require.Equal(t, "Llave del trabajo", got.Alias)

	require.NoError(t, env.svcs.Passkeys.Delete(ctx, acc, row.ID))
	list, err = env.svcs.Passkeys.List(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestPasskeyDeleteForeignCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ana := env.mustRegister(t, "ana@example.com", "correct horse battery")
	eva := env.mustRegister(t, "eva@example.com", "correct horse battery")
	row := seedPasskey(t, env, ana.ID, "AAAA")

	// Ajena e inexistente responden igual.
	require.ErrorIs(t, env.svcs.Passkeys.Delete(ctx, eva, row.ID), ErrPasskeyNotFound)
	require.ErrorIs(t, env.svcs.Passkeys.Delete(ctx, eva, "no-such-id"), ErrPasskeyNotFound)
}

func TestPasskeyDeleteLastCredentialOfPasswordlessAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc, err := env.store.Accounts().Create(ctx, passwordlessAccount("maga@example.com"))
	require.NoError(t, err)
	row := seedPasskey(t, env, acc.ID, "AAAA")

	require.ErrorIs(t, env.svcs.Passkeys.Delete(ctx, acc, row.ID), ErrLastCredential,
		"a passwordless account must keep at least one passkey")

	// Con una segunda credencial la primera sí se puede borrar.
	seedPasskey(t, env, acc.ID, "BBBB")
	require.NoError(t, env.svcs.Passkeys.Delete(ctx, acc, row.ID))

	// Y con password, borrar la única restante está permitido.
	withPw := env.mustRegister(t, "ana@example.com", "correct horse battery")
	pk := seedPasskey(t, env, withPw.ID, "CCCC")
	require.NoError(t, env.svcs.Passkeys.Delete(ctx, withPw, pk.ID))
}

// fakePasskeyProvider devuelve una aserción preparada sin tocar la
// criptografía: un authenticator real no deja ejercitar la regla del
// contador en unit tests.
type fakePasskeyProvider struct {
	cred       webauthn.Credential
	userHandle []byte
}

func (f *fakePasskeyProvider) BeginRegistration(webauthn.User, ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	return &protocol.CredentialCreation{}, &webauthn.SessionData{}, nil
}

func (f *fakePasskeyProvider) CreateCredential(webauthn.User, webauthn.SessionData, *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	c := f.cred
	return &c, nil
}

func (f *fakePasskeyProvider) BeginDiscoverableLogin(...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	return &protocol.CredentialAssertion{}, &webauthn.SessionData{Challenge: "fake-challenge"}, nil
}

func (f *fakePasskeyProvider) ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, _ webauthn.SessionData, _ *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error) {
	user, err := handler(nil, f.userHandle)
	if err != nil {
		return nil, nil, err
	}
	c := f.cred
	return user, &c, nil
}

type fakePasskeyParser struct{}

func (fakePasskeyParser) ParseCredentialCreationResponseBytes([]byte) (*protocol.ParsedCredentialCreationData, error) {
	return &protocol.ParsedCredentialCreationData{}, nil
}

func (fakePasskeyParser) ParseCredentialRequestResponseBytes([]byte) (*protocol.ParsedCredentialAssertionData, error) {
	return &protocol.ParsedCredentialAssertionData{}, nil
}

func TestPasskeyLoginSignCounterRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	row := seedPasskey(t, env, acc.ID, "AAAA") // SignCount inicial: 7
	rawID, err := decodeCredentialID(row.CredentialID)
	require.NoError(t, err)

	provider := &fakePasskeyProvider{userHandle: []byte(acc.ID)}
	env.deps.WebAuthn = provider
	env.deps.Parser = fakePasskeyParser{}
	pk := NewPasskeyService(env.deps)

	login := func(signCount uint32, clone bool) (*repository.Account, error) {
		provider.cred = webauthn.Credential{
			ID:            rawID,
			Authenticator: webauthn.Authenticator{SignCount: signCount, CloneWarning: clone},
		}
		_, ceremonyID, err := pk.BeginLogin(ctx)
		require.NoError(t, err)
		return pk.FinishLogin(ctx, ceremonyID, []byte(`{}`))
	}

	// Contador repetido: el autenticador (o un clon) no avanzó.
	_, err = login(7, false)
	require.ErrorIs(t, err, ErrPasskeyReplay)

	// Contador retrocedido.
	_, err = login(3, false)
	require.ErrorIs(t, err, ErrPasskeyReplay)

	// CloneWarning manda aunque el contador avance.
	_, err = login(8, true)
	require.ErrorIs(t, err, ErrPasskeyReplay)

	// Avance estricto: login OK y el contador nuevo queda persistido.
	got, err := login(8, false)
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)

	stored, err := env.store.Passkeys().GetByCredentialID(ctx, row.CredentialID)
	require.NoError(t, err)
	require.Equal(t, uint32(8), stored.SignCount)
	require.NotNil(t, stored.LastUsedAt)
}
