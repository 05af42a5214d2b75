package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/janus-id/janus/internal/cache"
	"github.com/janus-id/janus/internal/domain/repository"
	"github.com/janus-id/janus/internal/magiclink"
	"github.com/janus-id/janus/internal/security/password"
	"github.com/janus-id/janus/internal/security/secretbox"
	"github.com/janus-id/janus/internal/store/memory"
)

// testClock es un reloj controlable compartido por store, signer y services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// capturedEmail registra envíos para asertar sin SMTP.
type capturedEmail struct {
	To, Subject, HTML, Text string
}

type captureSender struct {
	mu   sync.Mutex
	sent []capturedEmail
}

func (s *captureSender) Send(_ context.Context, to, subject, htmlBody, textBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, capturedEmail{To: to, Subject: subject, HTML: htmlBody, Text: textBody})
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *captureSender) last() capturedEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

type testEnv struct {
	clock  *testClock
	store  *memory.Store
	cache  cache.Client
	sender *captureSender
	deps   Deps
	svcs   *Services
}

// fastParams baja el costo de argon2 para que los tests no se arrastren.
var fastParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if err := secretbox.UnsafeSetMasterKeyForTests(testMasterKey()); err != nil {
		t.Fatalf("set secretbox key: %v", err)
	}
	t.Cleanup(secretbox.UnsafeResetSecretBoxForTests)

	clock := newTestClock()
	store := memory.New().WithClock(clock.Now)
	cc := cache.NewMemory(cache.Config{DefaultTTL: time.Minute})
	sender := &captureSender{}

	signer := magiclink.NewSigner([]byte("test-magic-key"), "https://id.test", 15*time.Minute).WithClock(clock.Now)

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          "id.test",
		RPDisplayName: "Janus Test",
		RPOrigins:     []string{"https://id.test"},
	})
	if err != nil {
		t.Fatalf("webauthn.New: %v", err)
	}

	deps := Deps{
		Accounts: store.Accounts(),
		Passkeys: store.Passkeys(),
		MFA:      store.MFA(),
		Sessions: store.Sessions(),

		Cache:    cc,
		Email:    sender,
		Signer:   signer,
		WebAuthn: wa,

		PasswordParams: fastParams,
		Session: SessionPolicy{
			CookieName:  "janus_session",
			SameSite:    "Lax",
			TTL:         24 * time.Hour,
			RememberTTL: 720 * time.Hour,
			RememberKey: []byte("test-remember-key"),
			StepUpTTL:   3 * time.Hour,
		},
		MFAPolicy: MFAPolicy{
			Issuer:              "Janus",
			Window:              1,
			RequireConfirmation: true,
			RecoveryCodes:       8,
			ChallengeTTL:        5 * time.Minute,
		},
		Passkey: PasskeyPolicy{
			CeremonyTTL: 5 * time.Minute,
		},
		MagicLink: MagicLinkPolicy{
			TTL:       15 * time.Minute,
			SingleUse: true,
			AppName:   "Janus",
		},

		Now: clock.Now,
	}

	return &testEnv{
		clock:  clock,
		store:  store,
		cache:  cc,
		sender: sender,
		deps:   deps,
		svcs:   NewServices(deps),
	}
}

func testMasterKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i + 1)
	}
	return k
}

// passwordlessAccount arma el input de una cuenta sin password.
func passwordlessAccount(email string) repository.CreateAccountInput {
	return repository.CreateAccountInput{Email: email, Name: "Passwordless"}
}

// mustRegister crea una cuenta con password por la vía del service.
func (e *testEnv) mustRegister(t *testing.T, email, plain string) *repository.Account {
	t.Helper()
	acc, err := e.svcs.Login.Register(context.Background(), "Test User", email, plain)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return acc
}
