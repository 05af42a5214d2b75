package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l := NewMemoryLimiter(3, 5*time.Minute).WithClock(func() time.Time { return now })

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "magic-link:user@example.com")
		if err != nil {
			t.Fatalf("Allow err: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}

	// El cuarto en la misma ventana se bloquea con retry-after > 0
	res, err := l.Allow(ctx, "magic-link:user@example.com")
	if err != nil {
		t.Fatalf("Allow err: %v", err)
	}
	if res.Allowed {
		t.Fatal("4th hit in window should be blocked")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter should be positive, got %v", res.RetryAfter)
	}

	// Otra key no comparte contador
	other, _ := l.Allow(ctx, "magic-link:otro@example.com")
	if !other.Allowed {
		t.Fatal("different key should not be throttled")
	}

	// Pasada la ventana, el contador arranca de cero
	now = base.Add(5*time.Minute + time.Second)
	res, _ = l.Allow(ctx, "magic-link:user@example.com")
	if !res.Allowed {
		t.Fatal("new window should reset the counter")
	}
}

func TestMemoryLimiter_KeyNormalization(t *testing.T) {
	t.Parallel()

	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "a b"); !res.Allowed {
		t.Fatal("first hit allowed")
	}
	// "a_b" es la misma key normalizada
	if res, _ := l.Allow(ctx, "a_b"); res.Allowed {
		t.Fatal("normalized key should share the counter")
	}
}
