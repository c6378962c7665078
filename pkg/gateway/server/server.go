// Package server wires the gateway's routes and middleware chain.
package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/fluentvoice/fluentvoice/pkg/auth"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/config"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/handlers"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/metrics"
	"github.com/fluentvoice/fluentvoice/pkg/gateway/mw"
	"github.com/fluentvoice/fluentvoice/pkg/store"
)

// Options carry the server's collaborators. AuthService and Checkout may be
// nil when the corresponding feature is not configured.
type Options struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    store.Store
	Sessions *auth.Sessions
	Metrics  *metrics.Metrics
	Auth     handlers.AuthService
	Checkout handlers.CheckoutService

	// StorePinger reports store connectivity for readiness; nil means
	// always ready.
	StorePinger handlers.Pinger
}

type Server struct {
	opts     Options
	mux      *http.ServeMux
	draining atomic.Bool
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sessions == nil {
		opts.Sessions = auth.NewSessions(opts.Config.SessionTTL)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New("fluentvoice")
	}
	s := &Server{
		opts: opts,
		mux:  http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	cfg := s.opts.Config
	logger := s.opts.Logger

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: cfg, Store: s.opts.StorePinger, Draining: s.draining.Load})
	s.mux.Handle("/metrics", s.opts.Metrics.Handler())

	s.mux.Handle("/auth/login", handlers.LoginHandler{Auth: s.opts.Auth, Logger: logger})
	s.mux.Handle("/auth/callback", handlers.CallbackHandler{
		Auth:                s.opts.Auth,
		Sessions:            s.opts.Sessions,
		Store:               s.opts.Store,
		SignupCreditSeconds: cfg.SignupCreditSeconds,
		Logger:              logger,
	})
	s.mux.Handle("/auth/logout", handlers.LogoutHandler{Sessions: s.opts.Sessions})

	s.mux.Handle("/v1/avatars", handlers.AvatarsHandler{})
	s.mux.Handle("/v1/profile", handlers.ProfileHandler{
		Store:               s.opts.Store,
		SignupCreditSeconds: cfg.SignupCreditSeconds,
		Logger:              logger,
	})
	s.mux.Handle("/v1/sessions", handlers.SessionsHandler{
		Store:  s.opts.Store,
		Limit:  cfg.HistoryLimit,
		Logger: logger,
	})
	s.mux.Handle("/v1/checkout", handlers.CheckoutHandler{
		Service: s.opts.Checkout,
		Logger:  logger,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// Sessions exposes the token registry, for wiring and tests.
func (s *Server) Sessions() *auth.Sessions {
	return s.opts.Sessions
}

// SetDraining flips readiness to not-ready so load balancers stop routing
// new traffic before shutdown. Requests in flight are unaffected.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.opts.Config, s.opts.Sessions, s.opts.Metrics, h)
	h = mw.CORS(s.opts.Config, h)
	h = mw.Recover(s.opts.Logger, h)
	h = mw.Observe(s.opts.Metrics, h)
	h = mw.AccessLog(s.opts.Logger, h)
	h = mw.RequestID(h)
	return h
}
