package server

import (
	"sync"
	"testing"
	"time"

	"github.com/lawnchairsociety/towermaze/internal/config"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestThrottle(t *testing.T, cfg config.RateLimitConfig) (*GenerateThrottle, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	th := NewGenerateThrottle(cfg)
	th.now = clock.Now
	t.Cleanup(th.Stop)
	return th, clock
}

func TestGenerateThrottle_Basic(t *testing.T) {
	th, _ := newTestThrottle(t, config.RateLimitConfig{
		MaxRequests:       3,
		WindowSeconds:     60,
		LockoutSeconds:    10,
		MaxLockoutSeconds: 100,
	})
	ip := "192.168.1.1"

	for i := 1; i <= 3; i++ {
		if ok, _ := th.Allow(ip); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	ok, wait := th.Allow(ip)
	if ok {
		t.Fatal("fourth request should be refused")
	}
	if wait != 10*time.Second {
		t.Errorf("lockout = %v, want 10s", wait)
	}

	if locked, _ := th.IsLocked(ip); !locked {
		t.Error("IP should be locked")
	}
}

func TestGenerateThrottle_WindowResets(t *testing.T) {
	th, clock := newTestThrottle(t, config.RateLimitConfig{
		MaxRequests:   2,
		WindowSeconds: 60,
	})
	ip := "192.168.1.1"

	th.Allow(ip)
	th.Allow(ip)
	if got := th.GetRequests(ip); got != 2 {
		t.Errorf("GetRequests() = %d, want 2", got)
	}

	clock.Advance(61 * time.Second)

	if ok, _ := th.Allow(ip); !ok {
		t.Error("request in a new window should be allowed")
	}
	if got := th.GetRequests(ip); got != 1 {
		t.Errorf("GetRequests() after reset = %d, want 1", got)
	}
}

func TestGenerateThrottle_ExponentialBackoff(t *testing.T) {
	th, clock := newTestThrottle(t, config.RateLimitConfig{
		MaxRequests:       1,
		WindowSeconds:     1,
		LockoutSeconds:    1,
		MaxLockoutSeconds: 10,
	})
	ip := "192.168.1.1"

	for _, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second} {
		if ok, _ := th.Allow(ip); !ok {
			t.Fatal("first request after a lockout should be allowed")
		}
		ok, d := th.Allow(ip)
		if ok {
			t.Fatal("second request should be refused")
		}
		if d != want {
			t.Errorf("lockout = %v, want %v", d, want)
		}

		// Still locked part way through.
		clock.Advance(d / 2)
		if ok, _ := th.Allow(ip); ok {
			t.Error("request during lockout should be refused")
		}
		clock.Advance(d - d/2)
	}
}

func TestGenerateThrottle_MultipleIPs(t *testing.T) {
	th, _ := newTestThrottle(t, config.RateLimitConfig{MaxRequests: 1})

	th.Allow("192.168.1.1")
	th.Allow("192.168.1.1")

	if locked, _ := th.IsLocked("192.168.1.1"); !locked {
		t.Error("IP1 should be locked")
	}
	if locked, _ := th.IsLocked("192.168.1.2"); locked {
		t.Error("IP2 should not be locked")
	}
	if ok, _ := th.Allow("192.168.1.2"); !ok {
		t.Error("first request for IP2 should be allowed")
	}
}

func TestGenerateThrottle_Defaults(t *testing.T) {
	th, _ := newTestThrottle(t, config.RateLimitConfig{})

	if th.maxRequests != 10 || th.window != time.Minute || th.lockout != 30*time.Second || th.maxLockout != 5*time.Minute {
		t.Errorf("defaults = %d %v %v %v", th.maxRequests, th.window, th.lockout, th.maxLockout)
	}
}

func TestGenerateThrottle_Cleanup(t *testing.T) {
	th, clock := newTestThrottle(t, config.RateLimitConfig{
		MaxRequests:    1,
		WindowSeconds:  60,
		LockoutSeconds: 30,
	})

	th.Allow("192.168.1.1")
	th.Allow("192.168.1.1") // locked for 30s
	th.Allow("192.168.1.2")

	clock.Advance(61 * time.Second)
	th.cleanup()

	th.mu.Lock()
	remaining := len(th.clients)
	th.mu.Unlock()
	// The locked client's window restarts when its lockout ends.
	if remaining != 1 {
		t.Errorf("%d clients after cleanup, want 1", remaining)
	}

	clock.Advance(60 * time.Second)
	th.cleanup()
	th.mu.Lock()
	remaining = len(th.clients)
	th.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d clients after second cleanup, want 0", remaining)
	}
}

func TestGenerateThrottle_StopTwice(t *testing.T) {
	th := NewGenerateThrottle(config.RateLimitConfig{})
	th.Stop()
	th.Stop()
}

func TestGenerateThrottle_ConcurrentAccess(t *testing.T) {
	th := NewGenerateThrottle(config.RateLimitConfig{MaxRequests: 5})
	defer th.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := "192.168.1." + string(rune('0'+id%10))
			for j := 0; j < 50; j++ {
				switch j % 3 {
				case 0:
					th.Allow(ip)
				case 1:
					th.IsLocked(ip)
				case 2:
					th.GetRequests(ip)
				}
			}
		}(i)
	}
	wg.Wait()
}
