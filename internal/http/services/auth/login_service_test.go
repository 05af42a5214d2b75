package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/janus-id/janus/internal/rate"
)

func TestRegisterAndPasswordLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	require.True(t, acc.HasPassword())

	got, mfaRequired, err := env.svcs.Login.PasswordLogin(ctx, "ANA@example.com", "correct horse battery")
	require.NoError(t, err)
	require.False(t, mfaRequired)
	require.Equal(t, acc.ID, got.ID)
}

func TestPasswordLoginUniformFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustRegister(t, "ana@example.com", "correct horse battery")

	// Password incorrecto y cuenta inexistente devuelven el mismo error.
	_, _, err := env.svcs.Login.PasswordLogin(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.svcs.Login.PasswordLogin(ctx, "nadie@example.com", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustRegister(t, "ana@example.com", "correct horse battery")
	_, err := env.svcs.Login.Register(ctx, "Otra", "Ana@Example.com", "different password")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svcs.Login.Register(context.Background(), "Ana", "ana@example.com", "short")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestPasswordLoginRequiresMFAWhenEnabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	enrollAndConfirm(t, env, acc)

	_, mfaRequired, err := env.svcs.Login.PasswordLogin(ctx, "ana@example.com", "correct horse battery")
	require.NoError(t, err)
	require.True(t, mfaRequired, "confirmed TOTP must gate the login")
}

func TestPasswordLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deps.LoginLimiter = rate.NewMemoryLimiter(3, time.Minute)
	login := NewLoginService(env.deps)

	env.mustRegister(t, "ana@example.com", "correct horse battery")

	for i := 0; i < 3; i++ {
		_, _, err := login.PasswordLogin(ctx, "ana@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := login.PasswordLogin(ctx, "ana@example.com", "correct horse battery")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")

	err := env.svcs.Login.UpdatePassword(ctx, acc, "wrong", "new password here")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	err = env.svcs.Login.UpdatePassword(ctx, acc, "correct horse battery", "new password here")
	require.NoError(t, err)

	_, _, err = env.svcs.Login.PasswordLogin(ctx, "ana@example.com", "new password here")
	require.NoError(t, err)
	_, _, err = env.svcs.Login.PasswordLogin(ctx, "ana@example.com", "correct horse battery")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	require.NoError(t, env.store.Accounts().SetEmailVerified(ctx, acc.ID, env.clock.Now()))

	// Cambiar sólo el nombre no toca la verificación del email.
	acc, err := env.store.Accounts().GetByID(ctx, acc.ID)
	require.NoError(t, err)
	updated, err := env.svcs.Login.UpdateProfile(ctx, acc, "Ana María", "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, "Ana María", updated.Name)
	require.NotNil(t, updated.EmailVerifiedAt)

	// Un email nuevo queda sin verificar hasta probar el buzón.
	updated, err = env.svcs.Login.UpdateProfile(ctx, updated, "Ana María", "ana.maria@example.com")
	require.NoError(t, err)
	require.Equal(t, "ana.maria@example.com", updated.Email)
	require.Nil(t, updated.EmailVerifiedAt)

	// El email de otra cuenta no se puede tomar.
	env.mustRegister(t, "eva@example.com", "correct horse battery")
	_, err = env.svcs.Login.UpdateProfile(ctx, updated, "Ana", "eva@example.com")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.svcs.Login.UpdateProfile(ctx, updated, "Ana", "no-es-un-email")
	require.ErrorIs(t, err, ErrInvalidEmail)
}
