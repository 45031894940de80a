package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/towermaze/internal/config"
)

// GenerateThrottle limits how often a client IP may request a generation.
// A client that exceeds the window quota is locked out, with the lockout
// doubling on each repeat up to a cap.
type GenerateThrottle struct {
	mu              sync.Mutex
	clients         map[string]*requestWindow
	maxRequests     int
	window          time.Duration
	lockout         time.Duration
	maxLockout      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

type requestWindow struct {
	start        time.Time
	count        int
	lockedUntil  time.Time
	lockoutCount int
}

// NewGenerateThrottle creates a throttle from the rate limit settings and
// starts its cleanup goroutine.
func NewGenerateThrottle(cfg config.RateLimitConfig) *GenerateThrottle {
	t := &GenerateThrottle{
		clients:         make(map[string]*requestWindow),
		maxRequests:     cfg.MaxRequests,
		window:          time.Duration(cfg.WindowSeconds) * time.Second,
		lockout:         time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:      time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	if t.maxRequests == 0 {
		t.maxRequests = 10
	}
	if t.window == 0 {
		t.window = time.Minute
	}
	if t.lockout == 0 {
		t.lockout = 30 * time.Second
	}
	if t.maxLockout == 0 {
		t.maxLockout = 5 * time.Minute
	}

	go t.cleanupLoop()
	return t
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (t *GenerateThrottle) Stop() {
	t.stopOnce.Do(func() { close(t.stopCleanup) })
}

// Allow records a request from ip. It reports false, with the time left
// until the client may retry, when the request is refused.
func (t *GenerateThrottle) Allow(ip string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w, ok := t.clients[ip]
	if !ok {
		w = &requestWindow{start: now}
		t.clients[ip] = w
	}

	if now.Before(w.lockedUntil) {
		return false, w.lockedUntil.Sub(now)
	}

	if now.Sub(w.start) >= t.window {
		w.start = now
		w.count = 0
	}

	w.count++
	if w.count <= t.maxRequests {
		return true, 0
	}

	w.lockoutCount++
	d := t.lockoutDuration(w.lockoutCount)
	w.lockedUntil = now.Add(d)
	w.start = w.lockedUntil
	w.count = 0
	return false, d
}

// lockoutDuration doubles the base lockout per repeat, capped at maxLockout.
func (t *GenerateThrottle) lockoutDuration(repeat int) time.Duration {
	d := t.lockout
	for i := 1; i < repeat; i++ {
		if d >= t.maxLockout/2 {
			return t.maxLockout
		}
		d *= 2
	}
	return min(d, t.maxLockout)
}

// IsLocked reports whether ip is currently locked out.
func (t *GenerateThrottle) IsLocked(ip string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.clients[ip]
	if !ok {
		return false, 0
	}
	now := t.now()
	if now.Before(w.lockedUntil) {
		return true, w.lockedUntil.Sub(now)
	}
	return false, 0
}

// GetRequests returns the request count in ip's current window.
func (t *GenerateThrottle) GetRequests(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.clients[ip]; ok {
		return w.count
	}
	return 0
}

func (t *GenerateThrottle) cleanupLoop() {
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCleanup:
			return
		case <-ticker.C:
			t.cleanup()
		}
	}
}

// cleanup drops clients whose window and lockout have both expired.
func (t *GenerateThrottle) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for ip, w := range t.clients {
		if !now.Before(w.lockedUntil) && now.Sub(w.start) >= t.window {
			delete(t.clients, ip)
		}
	}
}
