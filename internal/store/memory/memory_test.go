package memory

import (
	"context"
	"testing"
	"time"

	"github.com/janus-id/janus/internal/domain/repository"
)

func TestAccounts_CreateAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	a, err := s.Accounts().Create(ctx, repository.CreateAccountInput{
		Email:        "User@Example.com",
		Name:         "Test User",
		PasswordHash: "$argon2id$fake",
	})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected generated ID")
	}
	if a.Email != "user@example.com" {
		t.Fatalf("email should be normalized, got %q", a.Email)
	}

	// Lookup case-insensitive
	got, err := s.Accounts().GetByEmail(ctx, "USER@example.COM")
	if err != nil {
		t.Fatalf("GetByEmail err: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("ID mismatch: %s vs %s", got.ID, a.ID)
	}

	// Duplicado
	if _, err := s.Accounts().Create(ctx, repository.CreateAccountInput{Email: "user@example.com"}); !repository.IsConflict(err) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestAccounts_DeleteCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	a, _ := s.Accounts().Create(ctx, repository.CreateAccountInput{Email: "x@example.com"})
	_, _ = s.Passkeys().Create(ctx, repository.CreatePasskeyInput{
		AccountID: a.ID, Alias: "key", CredentialID: "cred-1", PublicKey: []byte{1},
	})
	_ = s.MFA().UpsertTOTP(ctx, a.ID, "enc")
	_, _ = s.Sessions().Create(ctx, repository.CreateSessionInput{
		AccountID: a.ID, SessionIDHash: "h1", ExpiresAt: time.Now().Add(time.Hour),
	})

	if err := s.Accounts().Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := s.Passkeys().GetByCredentialID(ctx, "cred-1"); !repository.IsNotFound(err) {
		t.Fatalf("passkey should be gone, got %v", err)
	}
	if _, err := s.MFA().GetTOTP(ctx, a.ID); !repository.IsNotFound(err) {
		t.Fatalf("totp should be gone, got %v", err)
	}
	if _, err := s.Sessions().GetByIDHash(ctx, "h1"); !repository.IsNotFound(err) {
		t.Fatalf("session should be gone, got %v", err)
	}
}

func TestMFA_RecoveryCodesAreOneShot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	if err := s.MFA().SetRecoveryCodes(ctx, "acc", []string{"h1", "h2", "h3"}); err != nil {
		t.Fatal(err)
	}
	ok, err := s.MFA().UseRecoveryCode(ctx, "acc", "h2")
	if err != nil || !ok {
		t.Fatalf("first use: ok=%v err=%v", ok, err)
	}
	ok, err = s.MFA().UseRecoveryCode(ctx, "acc", "h2")
	if err != nil || ok {
		t.Fatalf("second use should fail: ok=%v err=%v", ok, err)
	}
	if n, _ := s.MFA().CountRecoveryCodes(ctx, "acc"); n != 2 {
		t.Fatalf("want 2 codes left, got %d", n)
	}
}

func TestMFA_ReenrollClearsConfirmation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	_ = s.MFA().UpsertTOTP(ctx, "acc", "enc1")
	_ = s.MFA().ConfirmTOTP(ctx, "acc", time.Now())
	m, _ := s.MFA().GetTOTP(ctx, "acc")
	if !m.Confirmed() {
		t.Fatal("should be confirmed")
	}

	_ = s.MFA().UpsertTOTP(ctx, "acc", "enc2")
	m, _ = s.MFA().GetTOTP(ctx, "acc")
	if m.Confirmed() {
		t.Fatal("re-enroll should clear confirmation")
	}
	if m.SecretEncrypted != "enc2" {
		t.Fatalf("secret should be replaced, got %q", m.SecretEncrypted)
	}
}

func TestSessions_DeleteByAccountExceptKeepsCurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	exp := time.Now().Add(time.Hour)
	for _, h := range []string{"h1", "h2", "h3"} {
		if _, err := s.Sessions().Create(ctx, repository.CreateSessionInput{
			AccountID: "acc", SessionIDHash: h, ExpiresAt: exp,
		}); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = s.Sessions().Create(ctx, repository.CreateSessionInput{
		AccountID: "other", SessionIDHash: "ho", ExpiresAt: exp,
	})

	n, err := s.Sessions().DeleteByAccountExcept(ctx, "acc", "h2")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("want 2 deleted, got %d", n)
	}
	if _, err := s.Sessions().GetByIDHash(ctx, "h2"); err != nil {
		t.Fatalf("current session should survive: %v", err)
	}
	if _, err := s.Sessions().GetByIDHash(ctx, "ho"); err != nil {
		t.Fatalf("other account session should survive: %v", err)
	}
}

func TestSessions_ListExcludesExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })

	_, _ = s.Sessions().Create(ctx, repository.CreateSessionInput{
		AccountID: "acc", SessionIDHash: "live", ExpiresAt: now.Add(time.Hour),
	})
	_, _ = s.Sessions().Create(ctx, repository.CreateSessionInput{
		AccountID: "acc", SessionIDHash: "dead", ExpiresAt: now.Add(-time.Minute),
	})

	list, err := s.Sessions().ListByAccount(ctx, "acc")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].SessionIDHash != "live" {
		t.Fatalf("want only live session, got %+v", list)
	}
}

func TestPasskeys_SignCountUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	c, err := s.Passkeys().Create(ctx, repository.CreatePasskeyInput{
		AccountID: "acc", Alias: "YubiKey", CredentialID: "cred-a", PublicKey: []byte{1, 2}, SignCount: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	usedAt := time.Now()
	if err := s.Passkeys().UpdateAfterLogin(ctx, "cred-a", 9, true, usedAt); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Passkeys().GetByID(ctx, "acc", c.ID)
	if got.SignCount != 9 || !got.BackupState || got.LastUsedAt == nil {
		t.Fatalf("update not applied: %+v", got)
	}

	// credential_id duplicado
	if _, err := s.Passkeys().Create(ctx, repository.CreatePasskeyInput{
		AccountID: "acc", CredentialID: "cred-a",
	}); !repository.IsConflict(err) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}
