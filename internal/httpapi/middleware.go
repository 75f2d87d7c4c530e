package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/obs"
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging emits one structured JSON line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		obs.LogRequest(map[string]any{
			"ts":          time.Now().UTC().Format(time.RFC3339Nano),
			"level":       "info",
			"msg":         "request_complete",
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.code,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          ClientIP(r),
		})
	})
}

// CORS answers preflight and marks responses for the browser chat UI,
// which is served from a different origin. Any origin is accepted; the
// credential gate is the bearer token or API key, not the origin.
func CORS(next http.Handler) http.Handler {
	const (
		allowedMethods = "GET,POST,DELETE,OPTIONS"
		allowedHeaders = "Authorization,Content-Type,X-API-Key"
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		w.Header().Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets baseline hardening headers. The API serves JSON
// only, so the CSP forbids everything.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the caller address: first X-Forwarded-For entry, then
// X-Real-IP, then the transport peer, then "unknown". The value feeds
// audit logging and the IP gate, never identity.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
	return "unknown"
}

// roleLimiter keeps one token bucket per caller, refilled at the
// requests-per-minute budget of the caller's most generous role. Idle
// buckets are dropped after a TTL.
type roleLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	rpm  int
	seen time.Time
}

const bucketTTL = 5 * time.Minute

func newRoleLimiter() *roleLimiter {
	rl := &roleLimiter{buckets: make(map[string]*bucket)}
	go rl.reap()
	return rl
}

func (rl *roleLimiter) reap() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for k, b := range rl.buckets {
			if now.Sub(b.seen) > bucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow consumes one token from the caller's bucket, recreating it when
// the budget changed (role assignment took effect).
func (rl *roleLimiter) Allow(key string, rpm int) bool {
	if rpm <= 0 {
		rpm = 1
	}
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok || b.rpm != rpm {
		b = &bucket{
			lim: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
			rpm: rpm,
		}
		rl.buckets[key] = b
	}
	b.seen = time.Now()
	rl.mu.Unlock()
	return b.lim.Allow()
}

// withRateLimit enforces the per-role request budget. Authenticated
// callers are keyed by user id; anonymous callers share per-IP buckets
// at the viewer budget.
func (a *API) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		user, _ := auth.UserFromContext(r.Context())
		rpm, err := a.svc.RateLimitFor(r.Context(), user)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit lookup failed")
			return
		}
		key := "anon:" + ClientIP(r)
		if user != nil {
			key = "user:" + user.ID
		}
		if !a.limiter.Allow(key, rpm) {
			a.auditReject(r, http.StatusTooManyRequests, "rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
