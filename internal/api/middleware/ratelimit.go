package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/config"
)

// limiterIdleTTL is how long an unused limiter is kept before it is dropped.
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per authenticated user, falling back to
// the client address for anonymous requests.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter creates a RateLimiter from cfg. It returns nil when rate
// limiting is disabled; a nil *RateLimiter passes every request through.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, cfg.RequestsPerMinute/6)
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:    burst,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Limit rejects requests over the caller's budget with 429 and a
// Retry-After header.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := l.reserve(clientKey(r))
		if !res.OK() {
			l.reject(w, r, time.Second)
			return
		}
		if delay := res.DelayFrom(l.now()); delay > 0 {
			res.CancelAt(l.now())
			l.reject(w, r, delay)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) reject(w http.ResponseWriter, r *http.Request, retry time.Duration) {
	secs := int(retry.Round(time.Second) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
	shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many requests")
}

func (l *RateLimiter) reserve(key string) *rate.Reservation {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.ReserveN(now, 1)
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func clientKey(r *http.Request) string {
	if id, ok := shared.UserIDFromContext(r.Context()); ok {
		return "user:" + id.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
