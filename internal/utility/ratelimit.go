package utility

import (
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const defaultTrackedIPs = 10000

// IPRateLimiter keeps one token bucket per client IP. The least recently seen
// IPs are evicted once the cache is full.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows perMinute requests per IP with the given burst.
func NewIPRateLimiter(perMinute, burst, trackedIPs int) (*IPRateLimiter, error) {
	if trackedIPs <= 0 {
		trackedIPs = defaultTrackedIPs
	}
	if burst <= 0 {
		burst = 1
	}
	cache, err := lru.New[string, *rate.Limiter](trackedIPs)
	if err != nil {
		return nil, err
	}
	return &IPRateLimiter{
		limiters: cache,
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}, nil
}

// Allow consumes one token for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(ip, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := GetRealIP(c)
			if !l.Allow(ip) {
				log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("Rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many attempts, please try again later"})
			}
			return next(c)
		}
	}
}
