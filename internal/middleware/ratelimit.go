package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radiusdt/vidpulse/internal/config"
	"github.com/radiusdt/vidpulse/internal/metrics"
)

// PublicPathPrefix marks the unauthenticated report routes, which are
// limited per client IP instead of globally.
const PublicPathPrefix = "/public/"

// RateLimitMiddleware implements token bucket rate limiting: one shared
// bucket for authenticated routes and one bucket per client IP for public
// routes.
type RateLimitMiddleware struct {
	cfg     config.RateLimitConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter

	mu         sync.Mutex
	ipLimiters map[string]*ipLimiter
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware. m may be nil.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		ipLimiters: make(map[string]*ipLimiter),
	}
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		limiter := rl.limiter
		endpoint := "api"
		if strings.HasPrefix(r.URL.Path, PublicPathPrefix) {
			limiter = rl.getIPLimiter(clientIP(r))
			endpoint = "public"
		}

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("path", r.URL.Path),
				zap.String("ip", clientIP(r)),
			)
			rl.metrics.RecordRateLimitHit(endpoint)
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) getIPLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.ipLimiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.PublicRPS), rl.cfg.PublicBurst)}
		rl.ipLimiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

// CleanupIPLimiters drops per-IP limiters idle for longer than maxIdle.
func (rl *RateLimitMiddleware) CleanupIPLimiters(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for ip, l := range rl.ipLimiters {
		if l.lastSeen.Before(cutoff) {
			delete(rl.ipLimiters, ip)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("cleaned up IP rate limiters", zap.Int("removed", removed))
	}
	return removed
}

// clientIP extracts the client IP, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
