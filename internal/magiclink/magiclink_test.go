package magiclink

import (
	"net/url"
	"testing"
	"time"
)

func testSigner(now time.Time) *Signer {
	s := NewSigner([]byte("0123456789abcdef0123456789abcdef"), "https://id.example.com", 15*time.Minute)
	return s.WithClock(func() time.Time { return now })
}

func mustParseQuery(t *testing.T, link string) url.Values {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query()
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)

	link := s.Sign("acc-123", "User@Example.com")
	q := mustParseQuery(t, link)

	if err := s.Verify("acc-123", "user@example.com", q); err != nil {
		t.Fatalf("Verify err: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)
	q := mustParseQuery(t, s.Sign("acc-123", "user@example.com"))

	// 15m de TTL: a los 16m el enlace venció
	late := testSigner(now.Add(16 * time.Minute))
	if err := late.Verify("acc-123", "user@example.com", q); err != ErrLinkExpired {
		t.Fatalf("want ErrLinkExpired, got %v", err)
	}
}

func TestVerify_TamperedExpiresFailsSignatureNotExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)
	q := mustParseQuery(t, s.Sign("acc-123", "user@example.com"))

	// Empujar expires al futuro sin refirmar debe caer como firma inválida
	q.Set("expires", "9999999999")
	if err := s.Verify("acc-123", "user@example.com", q); err != ErrLinkSignature {
		t.Fatalf("want ErrLinkSignature, got %v", err)
	}
}

func TestVerify_WrongAccount(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)
	q := mustParseQuery(t, s.Sign("acc-123", "user@example.com"))

	if err := s.Verify("acc-999", "user@example.com", q); err != ErrLinkSignature {
		t.Fatalf("want ErrLinkSignature, got %v", err)
	}
}

func TestVerify_EmailChangedSinceIssue(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)
	q := mustParseQuery(t, s.Sign("acc-123", "old@example.com"))

	if err := s.Verify("acc-123", "new@example.com", q); err != ErrLinkEmailMismatch {
		t.Fatalf("want ErrLinkEmailMismatch, got %v", err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)
	q := mustParseQuery(t, s.Sign("acc-123", "user@example.com"))

	other := NewSigner([]byte("ffffffffffffffffffffffffffffffff"), "https://id.example.com", 15*time.Minute).
		WithClock(func() time.Time { return now })
	if err := other.Verify("acc-123", "user@example.com", q); err != ErrLinkSignature {
		t.Fatalf("want ErrLinkSignature, got %v", err)
	}
}

func TestFingerprint_StablePerSignature(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testSigner(now)
	q := mustParseQuery(t, s.Sign("acc-123", "user@example.com"))

	if Fingerprint(q) != Fingerprint(q) {
		t.Fatal("fingerprint should be deterministic")
	}
	q2 := mustParseQuery(t, testSigner(now.Add(time.Second)).Sign("acc-123", "user@example.com"))
	if Fingerprint(q) == Fingerprint(q2) {
		t.Fatal("different links should have different fingerprints")
	}
}
