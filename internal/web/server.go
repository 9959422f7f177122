// Package web is the reference CRM backend: JWT access tokens, a
// cookie-backed refresh session and a lead-creation endpoint. The leadsync
// client is developed and tested against it.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/config"
	"github.com/JonMunkholm/LeadSync/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Observer receives server-side events; *metrics.Metrics implements it.
type Observer interface {
	middleware.HTTPObserver
	LeadCreated()
	Rejected(reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveHTTP(string, string, int, time.Duration) {}
func (nopObserver) LeadCreated()                                   {}
func (nopObserver) Rejected(string)                                {}

// Options configures optional server collaborators.
type Options struct {
	// Leads defaults to a MemoryLeadStore.
	Leads LeadStore
	// Observer defaults to a no-op.
	Observer Observer
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	// Now overrides the clock for token and session expiry.
	Now func() time.Time
}

// Server is the HTTP server for the reference backend.
type Server struct {
	cfg      config.DevServerConfig
	leads    LeadStore
	obs      Observer
	tokens   *tokens
	sessions *sessions
	limiter  *Limiter
	writes   atomic.Int64
	now      func() time.Time

	router *chi.Mux

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewServer creates a Server.
func NewServer(cfg config.DevServerConfig, opts Options) *Server {
	if opts.Leads == nil {
		opts.Leads = NewMemoryLeadStore()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		cfg:      cfg,
		leads:    opts.Leads,
		obs:      opts.Observer,
		tokens:   &tokens{secret: []byte(cfg.JWTSecret), ttl: cfg.AccessTTL, now: opts.Now},
		sessions: newSessions(cfg.SessionTTL, opts.Now),
		limiter:  NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		now:      opts.Now,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes(opts.Metrics)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger(s.obs))
	s.router.Use(chimw.Recoverer)
}

func (s *Server) setupRoutes(metricsHandler http.Handler) {
	s.router.Get("/healthz", s.handleHealth)
	if metricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	s.router.Route("/api", func(r chi.Router) {
		// Session routes authenticate with the cookie, not the bearer.
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(s.tokens.verify, func(*http.Request) {
				s.obs.Rejected("unauthorized")
			}))
			r.Get("/auth/me", s.handleMe)
			r.Get("/leads", s.handleListLeads)
			r.With(s.limiter.Middleware(func() { s.obs.Rejected("busy") })).
				Post("/leads", s.handleCreateLead)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"writers": s.limiter.Status(),
	})
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and blocks until the server stops. It returns nil
// after a graceful Shutdown.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	slog.Info("starting dev server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. A later Start returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
