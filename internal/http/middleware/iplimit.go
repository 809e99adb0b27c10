package middleware

import (
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// IPLimiter hands out one token bucket per client IP.
type IPLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idle    time.Duration
	buckets map[string]*ipBucket
	now     func() time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIPLimiter(rps float64, burst int) *IPLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 10
	}
	return &IPLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		buckets: map[string]*ipBucket{},
		now:     time.Now,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.buckets) > 4096 {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.idle {
				delete(l.buckets, k)
			}
		}
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Middleware rejects a client IP that has spent its burst.
func (l *IPLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many attempts, please try again later"})
			}
			return next(c)
		}
	}
}
