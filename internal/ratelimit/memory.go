package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. State resets on restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config) (*MemoryLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		cfg:     cfg,
	}, nil
}

// Check records a hit for identity at now. The window opens on the first hit
// and resets once now reaches its end.
func (l *MemoryLimiter) Check(_ context.Context, identity string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.cfg.Window)}
		l.windows[identity] = w
	}
	w.count++

	return decide(l.cfg, w.count, w.resetAt, now), nil
}

// StartJanitor evicts expired windows every interval until done is closed.
func (l *MemoryLimiter) StartJanitor(done <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				l.evictExpired(now)
			}
		}
	}()
}

func (l *MemoryLimiter) evictExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for identity, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, identity)
			evicted++
		}
	}
	return evicted
}

// Len reports how many identities currently hold a window.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
