package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, "timeout") }
}

// ---- status-recording ResponseWriter ----

type srw struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *srw) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *srw) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *srw) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// ---- Metrics middleware ----

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &srw{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		observability.ObserveHTTP(route, r.Method, sw.Status(), time.Since(start))
	})
}

// ---- Structured logging middleware ----

func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &srw{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			ev := l.Info()
			if sw.Status() >= 500 {
				ev = l.Error()
			}
			ev.
				Str("route", route).
				Str("method", r.Method).
				Int("status", sw.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", clientIP(r)).
				Str("ua", r.UserAgent()).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("http_request")
		})
	}
}

// clientIP is the host part of RemoteAddr. chimw.RealIP, when enabled, has
// already replaced RemoteAddr with the proxy-reported address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// ---- Per-client rate limiting ----

type clientLimiters struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	m     map[string]*clientLimiter
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

const limiterIdle = 10 * time.Minute

func (c *clientLimiters) get(key string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.m) > 4096 {
		for k, v := range c.m {
			if now.Sub(v.seen) > limiterIdle {
				delete(c.m, k)
			}
		}
	}
	cl, ok := c.m[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(c.rps, c.burst)}
		c.m[key] = cl
	}
	cl.seen = now
	return cl.lim
}

// RateLimit answers 429 once a client IP exceeds rps sustained, burst peak.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = int(rps) + 1
	}
	cls := &clientLimiters{rps: rate.Limit(rps), burst: burst, m: make(map[string]*clientLimiter)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cls.get(clientIP(r), time.Now()).Allow() {
				observability.RateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ---- Authorization gate ----

type TokenVerifier interface {
	Verify(raw string) (domain.Principal, error)
}

type principalKey struct{}

func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

type Gate struct{ tokens TokenVerifier }

func NewGate(v TokenVerifier) *Gate { return &Gate{tokens: v} }

// Require authenticates the bearer token (401 on failure) and then checks the
// caller's role against required (403 on failure).
func (g *Gate) Require(required domain.RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(h, "Bearer ")
			raw = strings.TrimSpace(raw)
			if !ok || raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="hotel-api"`)
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing or malformed bearer token")
				return
			}
			p, err := g.tokens.Verify(raw)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					writeError(w, err)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="hotel-api", error="invalid_token"`)
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			if !domain.Authorize(required, p.Role) {
				writeProblem(w, http.StatusForbidden, "Forbidden", "role "+string(p.Role)+" may not access this resource")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
