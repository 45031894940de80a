package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/towermaze/internal/config"
)

// waitForSlots polls until ip holds want subscriber slots.
func waitForSlots(t *testing.T, s *Server, ip string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.connLimiter.GetIPCount(ip) != want {
		if time.Now().After(deadline) {
			t.Fatalf("%s holds %d slots, want %d", ip, s.connLimiter.GetIPCount(ip), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// dialStatus attempts a subscription and returns the handshake status.
func dialStatus(t *testing.T, ts *httptest.Server, header http.Header) int {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	if resp == nil {
		t.Fatalf("Dial() returned no response: %v", err)
	}
	return resp.StatusCode
}

func TestSubscriberSlotsKeyedByClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.Connections = config.ConnectionsConfig{MaxPerIP: 1, MaxTotal: 10}
	s, ts := newTestServer(t, cfg, nil)

	dialWS(t, ts, http.Header{"X-Forwarded-For": []string{"10.0.0.1, 172.16.0.1"}})
	if n := s.connLimiter.GetIPCount("10.0.0.1"); n != 1 {
		t.Errorf("forwarded client holds %d slots, want 1", n)
	}

	// Same client behind the proxy, second socket.
	status := dialStatus(t, ts, http.Header{"X-Forwarded-For": []string{"10.0.0.1"}})
	if status != http.StatusTooManyRequests {
		t.Errorf("second subscription from 10.0.0.1 got %d, want 429", status)
	}

	dialWS(t, ts, http.Header{"X-Real-Ip": []string{"10.0.0.2"}})
	if total, ips := s.connLimiter.GetStats(); total != 2 || ips != 2 {
		t.Errorf("GetStats() = %d, %d, want 2, 2", total, ips)
	}
}

func TestSubscriberTotalLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Connections = config.ConnectionsConfig{MaxTotal: 2}
	_, ts := newTestServer(t, cfg, nil)

	for _, ip := range []string{"10.1.0.1", "10.1.0.2"} {
		dialWS(t, ts, http.Header{"X-Real-Ip": []string{ip}})
	}

	status := dialStatus(t, ts, http.Header{"X-Real-Ip": []string{"10.1.0.3"}})
	if status != http.StatusTooManyRequests {
		t.Errorf("third subscriber got %d, want 429", status)
	}
}

func TestSubscriberDisconnectReleasesSlot(t *testing.T) {
	cfg := testConfig()
	cfg.Connections.MaxPerIP = 1
	s, ts := newTestServer(t, cfg, nil)
	header := http.Header{"X-Forwarded-For": []string{"10.2.0.7"}}

	conn := dialWS(t, ts, header)
	waitForSlots(t, s, "10.2.0.7", 1)

	conn.Close()
	waitForSlots(t, s, "10.2.0.7", 0)
	if n := s.Publisher().SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after disconnect, want 0", n)
	}

	// The freed slot is usable again.
	dialWS(t, ts, header)
	waitForSlots(t, s, "10.2.0.7", 1)
}

func TestConnLimiterReleaseBookkeeping(t *testing.T) {
	cl := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 2, MaxTotal: 3})

	for _, ip := range []string{"a", "a", "b"} {
		if !cl.TryAcquire(ip) {
			t.Fatalf("TryAcquire(%q) rejected under the limits", ip)
		}
	}
	if cl.TryAcquire("c") {
		t.Error("TryAcquire beyond the total limit succeeded")
	}

	cl.Release("nobody")
	if total, _ := cl.GetStats(); total != 3 {
		t.Errorf("releasing an unknown IP changed the total to %d", total)
	}

	cl.Release("b")
	if total, ips := cl.GetStats(); total != 2 || ips != 1 {
		t.Errorf("GetStats() after release = %d, %d, want 2, 1", total, ips)
	}
	if cl.TryAcquire("a") {
		t.Error("third slot for a exceeded the per-IP limit")
	}
	if !cl.TryAcquire("c") {
		t.Error("freed slot not reusable by another IP")
	}
}

func TestConnLimiterZeroMeansUnlimited(t *testing.T) {
	cl := NewConnLimiter(config.ConnectionsConfig{})
	for i := 0; i < 500; i++ {
		if !cl.TryAcquire("10.9.9.9") {
			t.Fatalf("acquire %d rejected with no limits set", i)
		}
	}
	if n := cl.GetIPCount("10.9.9.9"); n != 500 {
		t.Errorf("GetIPCount() = %d, want 500", n)
	}
}

func TestConnLimiterConcurrentChurn(t *testing.T) {
	cl := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 4, MaxTotal: 16})

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ip := []string{"10.3.0.1", "10.3.0.2", "10.3.0.3"}[w%3]
			for j := 0; j < 100; j++ {
				if cl.TryAcquire(ip) {
					cl.Release(ip)
				}
			}
		}(w)
	}
	wg.Wait()

	if total, ips := cl.GetStats(); total != 0 || ips != 0 {
		t.Errorf("GetStats() = %d, %d after churn, want 0, 0", total, ips)
	}
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"socket address", "192.0.2.10:5123", nil, "192.0.2.10"},
		{"ipv6 socket address", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"address without port", "192.0.2.11", nil, "192.0.2.11"},
		{"first forwarded hop", "192.0.2.12:80", map[string]string{"X-Forwarded-For": " 10.4.0.1 , 172.16.0.9"}, "10.4.0.1"},
		{"real ip header", "192.0.2.13:80", map[string]string{"X-Real-IP": " 10.4.0.2 "}, "10.4.0.2"},
		{"forwarded wins over real ip", "192.0.2.14:80", map[string]string{"X-Forwarded-For": "10.4.0.3", "X-Real-IP": "10.4.0.4"}, "10.4.0.3"},
		{"empty forwarded hop falls through", "192.0.2.15:80", map[string]string{"X-Forwarded-For": ", 10.4.0.5", "X-Real-IP": "10.4.0.6"}, "10.4.0.6"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := getRealIP(r); got != tc.want {
				t.Errorf("getRealIP() = %q, want %q", got, tc.want)
			}
		})
	}
}
