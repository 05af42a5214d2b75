package totp

import (
	"strings"
	"testing"
	"time"
)

func TestVerify_WindowTolerance(t *testing.T) {
	t.Parallel()

	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret err: %v", err)
	}
	now := time.Date(2024, 6, 1, 10, 30, 15, 0, time.UTC)

	// Código del paso actual
	if ok, _ := Verify(raw, Code(raw, now), now, 1, nil); !ok {
		t.Fatal("current-step code should verify")
	}
	// Código del paso anterior dentro de la ventana
	if ok, _ := Verify(raw, Code(raw, now.Add(-30*time.Second)), now, 1, nil); !ok {
		t.Fatal("previous-step code should verify with window 1")
	}
	// Dos pasos atrás, fuera de la ventana
	if ok, _ := Verify(raw, Code(raw, now.Add(-60*time.Second)), now, 1, nil); ok {
		t.Fatal("code two steps back should not verify with window 1")
	}
}

func TestVerify_AntiReplay(t *testing.T) {
	t.Parallel()

	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret err: %v", err)
	}
	now := time.Date(2024, 6, 1, 10, 30, 15, 0, time.UTC)
	code := Code(raw, now)

	ok, counter := Verify(raw, code, now, 1, nil)
	if !ok {
		t.Fatal("first use should verify")
	}
	// El mismo código con el contador ya consumido no vale
	if ok, _ := Verify(raw, code, now, 1, &counter); ok {
		t.Fatal("replayed code should be rejected")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	rawA, _, _ := GenerateSecret()
	rawB, _, _ := GenerateSecret()
	now := time.Now()

	if ok, _ := Verify(rawB, Code(rawA, now), now, 1, nil); ok {
		t.Fatal("code from another secret should not verify")
	}
}

func TestOTPAuthURL(t *testing.T) {
	t.Parallel()

	u := OTPAuthURL("Janus", "user@example.com", "JBSWY3DPEHPK3PXP")
	// url.PathEscape deja ':' y '@' literales: son pchar válidos y los
	// authenticators los aceptan sin escapar.
	if !strings.HasPrefix(u, "otpauth://totp/Janus:user@example.com?") {
		t.Fatalf("unexpected label: %s", u)
	}
	for _, part := range []string{"secret=JBSWY3DPEHPK3PXP", "issuer=Janus", "digits=6", "period=30"} {
		if !strings.Contains(u, part) {
			t.Fatalf("URL missing %q: %s", part, u)
		}
	}
}

func TestVerify_RejectsMalformedCodes(t *testing.T) {
	t.Parallel()

	raw, _, _ := GenerateSecret()
	for _, code := range []string{"", "123", "1234567", "abcdef"} {
		if ok, _ := Verify(raw, code, time.Now(), 1, nil); ok {
			t.Fatalf("code %q should be rejected", code)
		}
	}
}
