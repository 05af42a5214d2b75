package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: misma semántica de ventana fija que RedisLimiter, pero
// in-process. Para dev, tests y deployments de un solo nodo sin Redis.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu   sync.Mutex
	hits map[string]*windowCounter
	// now es inyectable para tests.
	now func() time.Time
}

type windowCounter struct {
	start time.Time
	count int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		hits:   make(map[string]*windowCounter),
		now:    time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.Window)
	key = normalizeKey(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.hits[key]
	if !ok || wc.start.Before(winStart) {
		wc = &windowCounter{start: winStart}
		l.hits[key] = wc
	}
	wc.count++

	ttl := wc.start.Add(l.Window).Sub(now)
	return buildResult(wc.count, l.Max, ttl, l.Window), nil
}
