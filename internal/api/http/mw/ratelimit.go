package mw

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"odinboard/internal/security"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// RateBucket describes one token bucket
type RateBucket struct {
	RefillPerSec int           // tokens added per second
	Burst        int           // bucket capacity
	TTL          time.Duration // idle key lifetime in redis
}

// RateLimitConfig holds both buckets. The IP bucket always applies; the JWT
// bucket applies only when the request carries a verifiable subject.
type RateLimitConfig struct {
	ByJWT    RateBucket
	ByIP     RateBucket
	Verifier *security.RS256Verifier // optional
}

type RateLimitMiddleware struct {
	rdb *redis.Client
	cfg RateLimitConfig
}

func NewRateLimit(rdb *redis.Client, cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.ByIP.TTL <= 0 {
		cfg.ByIP.TTL = 2 * time.Minute
	}
	if cfg.ByJWT.TTL <= 0 {
		cfg.ByJWT.TTL = 2 * time.Minute
	}
	return &RateLimitMiddleware{rdb: rdb, cfg: cfg}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()

		if !m.permit(r.Context(), "rl:ip:"+ipOrUnknown(r), now, m.cfg.ByIP) {
			tooManyRequests(w)
			return
		}

		if sub := m.subject(r); sub != "" {
			if !m.permit(r.Context(), "rl:jwt:"+sub, now, m.cfg.ByJWT) {
				tooManyRequests(w)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// subject returns the caller identity for the JWT bucket. The auth middleware
// fills the context on protected routes; on public routes we verify the bearer
// ourselves so authenticated clients get their own bucket there too.
func (m *RateLimitMiddleware) subject(r *http.Request) string {
	if sub := SubjectFromContext(r); sub != "" {
		return sub
	}
	if m.cfg.Verifier == nil {
		return ""
	}

	claims, err := m.cfg.Verifier.VerifyBearer(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	if rc, ok := claims.(*jwt.RegisteredClaims); ok {
		return rc.Subject
	}
	return ""
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
}

// token bucket state lives in a redis hash, refill and take are one atomic
// script round-trip
var tokenBucketScript = redis.NewScript(`
local now_ms = tonumber(ARGV[1])
local rate   = tonumber(ARGV[2])
local cap    = tonumber(ARGV[3])

local prev_ms = tonumber(redis.call('HGET', KEYS[1], 'ts') or now_ms)
local level   = tonumber(redis.call('HGET', KEYS[1], 'tok') or cap)

if now_ms > prev_ms then
  level = math.min(cap, level + (now_ms - prev_ms) * rate / 1000.0)
end

local taken = 0
if level >= 1 then
  level = level - 1
  taken = 1
end

redis.call('HSET', KEYS[1], 'tok', level, 'ts', now_ms)
redis.call('EXPIRE', KEYS[1], ARGV[4])

return taken
`)

// permit fails open: a redis outage must not take the read API down with it
func (m *RateLimitMiddleware) permit(ctx context.Context, key string, now time.Time, b RateBucket) bool {
	ttl := int(b.TTL.Seconds())
	if ttl <= 0 {
		ttl = 120
	}

	taken, err := tokenBucketScript.Run(ctx, m.rdb, []string{key},
		now.UnixMilli(), b.RefillPerSec, b.Burst, ttl).Int64()
	if err != nil {
		return true
	}
	return taken == 1
}

func ipOrUnknown(r *http.Request) string {
	if ip := clientIP(r); ip != "" {
		return ip
	}
	return "unknown"
}

// clientIP prefers the proxy headers, falls back to the socket peer
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
