package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ticketdesk.org/internal/ids"
	"ticketdesk.org/internal/obs"
	"ticketdesk.org/internal/quota"
)

type ctxKey string

const requestIDCtxKey ctxKey = "request_id"

const requestIDHeader = "X-Request-Id"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestID assigns each request a ULID and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = ids.New()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDCtxKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return v
	}
	return ""
}

// LoggingJSON emits one structured line per request.
func LoggingJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		obs.LogRequest(map[string]any{
			"ts":          start.UTC().Format(time.RFC3339Nano),
			"level":       "info",
			"msg":         "http_request",
			"request_id":  requestIDFrom(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.code,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      clientIP(r),
		})
	})
}

// SecurityHeaders: response hardening for every route.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// MaxBodyBytes: limit request body size.
func MaxBodyBytes(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is a token-bucket throttle per connection address for the
// general API surface. The login endpoint additionally runs the
// fixed-window quota inside the gate.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*limiterBucket

	done chan struct{}
	once sync.Once
}

type limiterBucket struct {
	lim *rate.Limiter
	ts  time.Time
}

// NewRateLimiter starts the throttle and its idle-bucket sweeper. Callers
// own the lifecycle and stop the sweeper with Close.
func NewRateLimiter(burst, perSecond int) *RateLimiter {
	l := &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*limiterBucket),
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Close stops the sweeper goroutine. Safe to call more than once.
func (l *RateLimiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *RateLimiter) sweep() {
	const ttl = 5 * time.Minute
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for k, b := range l.buckets {
				if now.Sub(b.ts) > ttl {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Wrap applies the throttle in front of next.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := connIP(r)
		if ip == "" {
			ip = "unknown"
		}
		l.mu.Lock()
		b, ok := l.buckets[ip]
		if !ok {
			b = &limiterBucket{lim: rate.NewLimiter(l.limit, l.burst)}
			l.buckets[ip] = b
		}
		b.ts = time.Now()
		allowed := b.lim.Allow()
		l.mu.Unlock()
		if !allowed {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is for observability only: it prefers the forwarded address so
// log lines behind a proxy show the real client. It must never feed a
// security decision; the header is client-controlled.
func clientIP(r *http.Request) string {
	// X-Forwarded-For support (first IP)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return connIP(r)
}

// connIP is the peer address of the TCP connection itself.
func connIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// partitionKey derives the login quota partition from the connection's
// normalized IPv4 representation. Forwarding headers do not participate:
// a caller rotating X-Forwarded-For must not mint fresh partitions, so
// deployments behind a proxy terminate it where the connection address is
// the client's. Unresolvable addresses land in the shared fallback
// partition rather than escaping the quota.
func partitionKey(r *http.Request) string {
	ip := net.ParseIP(connIP(r))
	if ip == nil {
		return quota.FallbackKey
	}
	if v4 := ip.To4(); v4 != nil {
		return "ip:" + v4.String()
	}
	return "ip:" + ip.String()
}
