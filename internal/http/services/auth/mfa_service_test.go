package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/security/totp"
)

// enrollAndConfirm deja la cuenta con TOTP habilitado y devuelve los
// recovery codes. El secreto queda accesible vía SecretKey.
func enrollAndConfirm(t *testing.T, env *testEnv, acc *repository.Account) []string {
	t.Helper()
	ctx := context.Background()

	result, _, err := env.svcs.MFA.Enroll(ctx, acc)
	require.NoError(t, err)
	require.NotEmpty(t, result.SecretBase32)
	require.Contains(t, result.OTPAuthURL, "otpauth://totp/")

	raw, err := totp.DecodeSecret(result.SecretBase32)
	require.NoError(t, err)

	codes, err := env.svcs.MFA.Confirm(ctx, acc, totp.Code(raw, env.clock.Now()))
	require.NoError(t, err)
	require.Len(t, codes, 8)
	return codes
}

func totpSecret(t *testing.T, env *testEnv, acc *repository.Account) []byte {
	t.Helper()
	b32, _, err := env.svcs.MFA.SecretKey(context.Background(), acc)
	require.NoError(t, err)
	raw, err := totp.DecodeSecret(b32)
	require.NoError(t, err)
	return raw
}

func TestMFAEnrollConfirmFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")

	st, err := env.svcs.MFA.Status(ctx, acc.ID)
	require.NoError(t, err)
	require.False(t, st.Enabled)

	enrollAndConfirm(t, env, acc)

	st, err = env.svcs.MFA.Status(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, 8, st.RecoveryCodesRemaining)

	// Segunda inscripción con 2FA activo no pasa.
	_, _, err = env.svcs.MFA.Enroll(ctx, acc)
	require.ErrorIs(t, err, ErrMFAAlreadyEnabled)
}

func TestMFAConfirmWrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	_, _, err := env.svcs.MFA.Enroll(ctx, acc)
	require.NoError(t, err)

	_, err = env.svcs.MFA.Confirm(ctx, acc, "000000")
	require.ErrorIs(t, err, ErrMFACodeInvalid)

	// Sigue pendiente: el login no exige challenge todavía.
	_, mfaRequired, err := env.svcs.Login.PasswordLogin(ctx, "ana@example.com", "correct horse battery")
	require.NoError(t, err)
	require.False(t, mfaRequired)
}

func TestMFAReenrollRotatesPendingSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")

	first, _, err := env.svcs.MFA.Enroll(ctx, acc)
	require.NoError(t, err)
	second, _, err := env.svcs.MFA.Enroll(ctx, acc)
	require.NoError(t, err)
	require.NotEqual(t, first.SecretBase32, second.SecretBase32)

	// El secreto viejo ya no confirma.
	oldRaw, err := totp.DecodeSecret(first.SecretBase32)
	require.NoError(t, err)
	_, err = env.svcs.MFA.Confirm(ctx, acc, totp.Code(oldRaw, env.clock.Now()))
	require.ErrorIs(t, err, ErrMFACodeInvalid)
}

func TestMFAChallengeWithTOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	enrollAndConfirm(t, env, acc)
	secret := totpSecret(t, env, acc)

	token, err := env.svcs.MFA.IssueChallengeToken(ctx, acc.ID, true)
	require.NoError(t, err)

	// Paso de tiempo: el código de la confirmación ya se usó en este paso.
	env.clock.Advance(31 * time.Second)

	got, remember, err := env.svcs.MFA.Challenge(ctx, token, totp.Code(secret, env.clock.Now()), "")
	require.NoError(t, err)
	require.True(t, remember)
	require.Equal(t, acc.ID, got.ID)

	// El token se consumió con el éxito.
	_, _, err = env.svcs.MFA.Challenge(ctx, token, totp.Code(secret, env.clock.Now()), "")
	require.ErrorIs(t, err, ErrMFATokenInvalid)
}

func TestMFAChallengeRejectsReplayedCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	enrollAndConfirm(t, env, acc)
	secret := totpSecret(t, env, acc)

	env.clock.Advance(31 * time.Second)
	code := totp.Code(secret, env.clock.Now())

	token, err := env.svcs.MFA.IssueChallengeToken(ctx, acc.ID, false)
	require.NoError(t, err)
	_, _, err = env.svcs.MFA.Challenge(ctx, token, code, "")
	require.NoError(t, err)

	// Mismo código, token nuevo: el contador ya avanzó.
	token2, err := env.svcs.MFA.IssueChallengeToken(ctx, acc.ID, false)
	require.NoError(t, err)
	_, _, err = env.svcs.MFA.Challenge(ctx, token2, code, "")
	require.ErrorIs(t, err, ErrMFACodeInvalid)
}

func TestMFAChallengeWithRecoveryCodeIsOneShot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	codes := enrollAndConfirm(t, env, acc)

	token, err := env.svcs.MFA.IssueChallengeToken(ctx, acc.ID, false)
	require.NoError(t, err)
	got, _, err := env.svcs.MFA.Challenge(ctx, token, "", codes[0])
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)

	remaining, err := env.svcs.MFA.RecoveryCodesRemaining(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, 7, remaining)

	// El mismo código no vale dos veces, y el error distingue recovery
	// code de TOTP inválido.
	token2, err := env.svcs.MFA.IssueChallengeToken(ctx, acc.ID, false)
	require.NoError(t, err)
	_, _, err = env.svcs.MFA.Challenge(ctx, token2, "", codes[0])
	require.ErrorIs(t, err, ErrRecoveryCodeInvalid)
	require.NotErrorIs(t, err, ErrMFACodeInvalid)
}

func TestMFAChallengeUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	enrollAndConfirm(t, env, acc)
	secret := totpSecret(t, env, acc)

	_, _, err := env.svcs.MFA.Challenge(ctx, "token-inexistente", totp.Code(secret, env.clock.Now()), "")
	require.ErrorIs(t, err, ErrMFATokenInvalid)
}

func TestMFARotateRecoveryInvalidatesOldSet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	oldCodes := enrollAndConfirm(t, env, acc)

	newCodes, err := env.svcs.MFA.RotateRecovery(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, newCodes, 8)
	require.NotEqual(t, oldCodes, newCodes)

	token, err := env.svcs.MFA.IssueChallengeToken(ctx, acc.ID, false)
	require.NoError(t, err)
	_, _, err = env.svcs.MFA.Challenge(ctx, token, "", oldCodes[1])
	require.ErrorIs(t, err, ErrRecoveryCodeInvalid)
}

func TestMFADisableRemovesEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	enrollAndConfirm(t, env, acc)

	require.NoError(t, env.svcs.MFA.Disable(ctx, acc.ID))

	st, err := env.svcs.MFA.Status(ctx, acc.ID)
	require.NoError(t, err)
	require.False(t, st.Enabled)
	require.Zero(t, st.RecoveryCodesRemaining)

	_, mfaRequired, err := env.svcs.Login.PasswordLogin(ctx, "ana@example.com", "correct horse battery")
	require.NoError(t, err)
	require.False(t, mfaRequired)
}

func TestMFAEnrollWithoutConfirmationPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deps.MFAPolicy.RequireConfirmation = false
	mfa := NewMFAService(env.deps)

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")

	result, codes, err := mfa.Enroll(ctx, acc)
	require.NoError(t, err)
	require.NotEmpty(t, result.SecretBase32)
	require.Len(t, codes, 8, "policy without confirmation issues recovery codes immediately")

	st, err := mfa.Status(ctx, acc.ID)
	require.NoError(t, err)
	require.True(t, st.Enabled)
}
