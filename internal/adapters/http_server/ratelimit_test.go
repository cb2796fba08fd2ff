package httpserver_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpserver "hotel_search/internal/adapters/http_server"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	clk := &clock{t: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := httpserver.NewLimiter(1, 2, time.Minute).WithClock(clk.now)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatalf("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("clients have separate buckets")
	}
	clk.advance(time.Second)
	if !l.Allow("a") {
		t.Fatalf("one token refills per second")
	}
}

func TestLimiter_SweepDropsIdleClients(t *testing.T) {
	clk := &clock{t: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := httpserver.NewLimiter(1, 1, time.Minute).WithClock(clk.now)

	l.Allow("a")
	clk.advance(40 * time.Second)
	l.Allow("b")
	clk.advance(30 * time.Second)

	if n := l.Sweep(); n != 1 {
		t.Fatalf("only b is still fresh, kept %d", n)
	}
	// a starts over with a full bucket
	if !l.Allow("a") {
		t.Fatalf("evicted client should get a new bucket")
	}
}

func searchFrom(h http.Handler, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/listings/search", strings.NewReader(`{}`))
	req.RemoteAddr = remoteAddr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_Middleware(t *testing.T) {
	l := httpserver.NewLimiter(0.001, 1, time.Minute)
	h := newServer(&fakeSearcher{}, l)

	if rr := searchFrom(h, "203.0.113.9:40000", nil); rr.Code != http.StatusOK {
		t.Fatalf("first request: %d", rr.Code)
	}
	// a new source port is the same client
	rr := searchFrom(h, "203.0.113.9:40001", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	decodeProblem(t, rr)

	if rr := searchFrom(h, "198.51.100.4:40000", nil); rr.Code != http.StatusOK {
		t.Fatalf("other client: %d", rr.Code)
	}

	health := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:40002"
	h.ServeHTTP(health, req)
	if health.Code != http.StatusOK {
		t.Fatalf("healthz is not rate limited, got %d", health.Code)
	}
}

func TestRateLimit_ForwardedForRotationDoesNotEscape(t *testing.T) {
	l := httpserver.NewLimiter(1, 1, time.Minute)
	h := newServer(&fakeSearcher{}, l)

	allowed := 0
	for i := 0; i < 100; i++ {
		hdr := map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.%d.%d", i/256, i%256)}
		if searchFrom(h, "203.0.113.9:40000", hdr).Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 1 {
		t.Fatalf("burst of 1 from one peer, %d/100 allowed", allowed)
	}
	if n := l.Sweep(); n != 1 {
		t.Fatalf("one peer should hold one bucket, got %d", n)
	}
}

func TestRateLimit_TrustedProxyKeysOnForwardedClient(t *testing.T) {
	l := httpserver.NewLimiter(0.001, 1, time.Minute)
	srv := httpserver.New(5*time.Second, l, true)
	srv.MountHandlers(&httpserver.Handlers{S: &fakeSearcher{}})
	h := srv.Mux()

	proxy := "10.0.0.1:5000"
	if rr := searchFrom(h, proxy, map[string]string{"X-Forwarded-For": "203.0.113.9"}); rr.Code != http.StatusOK {
		t.Fatalf("first client: %d", rr.Code)
	}
	if rr := searchFrom(h, proxy, map[string]string{"X-Forwarded-For": "198.51.100.4"}); rr.Code != http.StatusOK {
		t.Fatalf("second client behind the same proxy: %d", rr.Code)
	}
	if rr := searchFrom(h, proxy, map[string]string{"X-Forwarded-For": "203.0.113.9"}); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("first client again: want 429, got %d", rr.Code)
	}
}
