package auth

import (
	"context"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/janus-id/janus/internal/magiclink"
	"github.com/janus-id/janus/internal/rate"
)

var linkRe = regexp.MustCompile(`https://id\.test/magic-link/login/[^\s"]+`)

// requestLink dispara el envío y extrae la URL firmada del email capturado.
func requestLink(t *testing.T, env *testEnv, email string) *url.URL {
	t.Helper()
	require.NoError(t, env.svcs.MagicLink.Request(context.Background(), email))
	require.NotZero(t, env.sender.count(), "expected an email")

	raw := linkRe.FindString(env.sender.last().Text)
	require.NotEmpty(t, raw, "email should contain the signed link")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func accountIDFromLink(u *url.URL) string {
	parts := regexp.MustCompile(`/magic-link/login/([^/?]+)`).FindStringSubmatch(u.Path)
	if len(parts) != 2 {
		return ""
	}
	id, _ := url.PathUnescape(parts[1])
	return id
}

func TestMagicLinkRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	require.Nil(t, acc.EmailVerifiedAt)

	u := requestLink(t, env, "ana@example.com")
	require.Equal(t, acc.ID, accountIDFromLink(u))

	got, err := env.svcs.MagicLink.Consume(ctx, accountIDFromLink(u), u.Query())
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
	require.NotNil(t, got.EmailVerifiedAt, "consuming the link proves mailbox access")
}

func TestMagicLinkUnknownEmailLooksTheSame(t *testing.T) {
	env := newTestEnv(t)

	err := env.svcs.MagicLink.Request(context.Background(), "nadie@example.com")
	require.NoError(t, err, "unknown email must not be distinguishable")
	require.Zero(t, env.sender.count(), "no account, no email")
}

func TestMagicLinkSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustRegister(t, "ana@example.com", "correct horse battery")
	u := requestLink(t, env, "ana@example.com")
	id := accountIDFromLink(u)

	_, err := env.svcs.MagicLink.Consume(ctx, id, u.Query())
	require.NoError(t, err)

	_, err = env.svcs.MagicLink.Consume(ctx, id, u.Query())
	require.ErrorIs(t, err, magiclink.ErrLinkUsed)
}

func TestMagicLinkExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustRegister(t, "ana@example.com", "correct horse battery")
	u := requestLink(t, env, "ana@example.com")

	env.clock.Advance(16 * time.Minute)

	_, err := env.svcs.MagicLink.Consume(ctx, accountIDFromLink(u), u.Query())
	require.ErrorIs(t, err, magiclink.ErrLinkExpired)
}

func TestMagicLinkTamperedQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustRegister(t, "ana@example.com", "correct horse battery")
	u := requestLink(t, env, "ana@example.com")

	q := u.Query()
	q.Set("expires", "9999999999")
	_, err := env.svcs.MagicLink.Consume(ctx, accountIDFromLink(u), q)
	require.ErrorIs(t, err, magiclink.ErrLinkSignature)
}

func TestMagicLinkForeignAccountID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustRegister(t, "ana@example.com", "correct horse battery")
	eva := env.mustRegister(t, "eva@example.com", "correct horse battery")
	u := requestLink(t, env, "ana@example.com")

	// Enlace de ana presentado con el id de eva: la firma no matchea.
	_, err := env.svcs.MagicLink.Consume(ctx, eva.ID, u.Query())
	require.ErrorIs(t, err, magiclink.ErrLinkSignature)
}

func TestMagicLinkInvalidAfterEmailChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acc := env.mustRegister(t, "ana@example.com", "correct horse battery")
	u := requestLink(t, env, "ana@example.com")

	// El hash del enlace va atado al email vigente al firmarlo: cambiar
	// el email deja sin efecto los enlaces pendientes.
	_, err := env.svcs.Login.UpdateProfile(ctx, acc, "Ana", "ana.nueva@example.com")
	require.NoError(t, err)

	_, err = env.svcs.MagicLink.Consume(ctx, accountIDFromLink(u), u.Query())
	require.ErrorIs(t, err, magiclink.ErrLinkEmailMismatch)
}

func TestMagicLinkPerEmailRateLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deps.MagicLinkLimiter = rate.NewMemoryLimiter(3, 5*time.Minute)
	magic := NewMagicLinkService(env.deps)

	env.mustRegister(t, "ana@example.com", "correct horse battery")

	for i := 0; i < 3; i++ {
		require.NoError(t, magic.Request(ctx, "ana@example.com"))
	}
	require.ErrorIs(t, magic.Request(ctx, "ana@example.com"), ErrRateLimited)

	// Otro email no comparte la ventana.
	require.NoError(t, magic.Request(ctx, "otra@example.com"))
}
