package gateway

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit caps request throughput for a route group.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Visitors idle longer than this lose their bucket; activity keeps pushing
// the window forward so an active client never gets a fresh burst.
const visitorIdleExpiry = 5 * time.Minute

// RateLimiter tracks a token bucket per client identifier.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	nowFn    func() time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	r := &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		nowFn:    time.Now,
	}
	go r.sweepLoop()
	return r
}

// Middleware rejects requests above the configured rate with 429.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		limiter := r.obtainLimiter(clientID(req))
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	if entry, ok := r.visitors[id]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	perSecond := r.limit.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter, lastSeen: now}
	return limiter
}

func (r *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		r.sweepIdle()
	}
}

func (r *RateLimiter) sweepIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.nowFn().Add(-visitorIdleExpiry)
	for id, entry := range r.visitors {
		if entry.lastSeen.Before(cutoff) {
			delete(r.visitors, id)
		}
	}
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if comma := strings.IndexByte(ip, ','); comma > 0 {
			ip = ip[:comma]
		}
		if parsed := net.ParseIP(strings.TrimSpace(ip)); parsed != nil {
			return parsed.String()
		}
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
