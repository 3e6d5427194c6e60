package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meterbot/internal/core"
	"meterbot/internal/log"
	"meterbot/internal/metrics"
	"meterbot/internal/middleware/ratelimit"
	"meterbot/internal/middleware/security"
	"meterbot/internal/services"
)

// BillingService is what the gateway needs from the application layer
type BillingService interface {
	HandleMessage(ctx context.Context, user core.UserID, text string) (services.Reply, error)
	History(ctx context.Context, user core.UserID) []core.Calculation
	Statement(ctx context.Context, user core.UserID) ([]byte, error)
	Ready(ctx context.Context) error
}

// Options tunes the gateway. Zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc    BillingService
	logger *log.Logger

	ipLimiter   *ratelimit.Limiter
	userLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server
func NewServer(addr string, svc BillingService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}

	s := &Server{
		svc:    svc,
		logger: logger,
		ipLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Scope:             "ip",
			RequestsPerMinute: opts.RateLimitPerMinute * 2,
		}),
		userLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Scope:             "user",
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(logger))
	r.Use(metrics.Middleware())
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.ipLimiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))
		r.Get("/keyboard", s.handleKeyboard)
		r.Post("/messages", s.handleMessage)
		r.Get("/users/{userID}/history", s.handleHistory)
		r.Get("/users/{userID}/statement.xlsx", s.handleStatement)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the limiters and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.ipLimiter.Stop()
		s.userLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
