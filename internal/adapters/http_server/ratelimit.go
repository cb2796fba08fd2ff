package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hotel_search/internal/adapters/observability"
)

// Limiter hands out one token bucket per client key. Buckets idle for
// longer than idle are dropped by Sweep.
type Limiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLimiter(rps float64, burst int, idle time.Duration) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		clients: map[string]*client{},
	}
}

// WithClock replaces the time source. Tests only.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	l.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

// Sweep drops idle buckets and returns how many remain.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
	return len(l.clients)
}

// Run sweeps every idle period until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if l.idle <= 0 {
		return
	}
	t := time.NewTicker(l.idle)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}

// clientKey is the peer host. Behind a trusted proxy RealIP has already
// replaced RemoteAddr; raw forwarding headers are never read here.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// RateLimit rejects callers over their budget with 429.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			observability.ObserveRateLimited(routeOf(r))
			if l.rps > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(1/float64(l.rps))+1))
			}
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
		})
	}
}
