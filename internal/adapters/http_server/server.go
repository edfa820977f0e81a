package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

type Options struct {
	RequestTimeout time.Duration
	RateLimitRPS   float64 // per client IP; <= 0 disables limiting
	RateLimitBurst int
	// TrustProxy takes the client IP from X-Forwarded-For/X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy  bool
	CORSOrigins []string // empty disables CORS
}

type Server struct{ mux *chi.Mux }

func New(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	m := chi.NewRouter()

	// Middlewares must be registered before any route.
	if opts.TrustProxy {
		m.Use(chimw.RealIP)
	}
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		m.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match"},
			ExposedHeaders:   []string{"ETag", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	m.Use(Timeout(opts.RequestTimeout))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	if opts.RateLimitRPS > 0 {
		m.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
